package backend

import (
	"context"
	"fmt"
	"net/http"
)

// EditProfileRequest updates a volunteer's location and category
// subscriptions. A nil Location keeps the stored one; an empty Categories
// slice clears the subscriptions.
type EditProfileRequest struct {
	Location   *Location `json:"location"`
	Categories []int64   `json:"categories"`
}

// EditVolunteerProfile updates the volunteer's service area and categories.
func (c *Client) EditVolunteerProfile(ctx context.Context, token string, req EditProfileRequest) error {
	if req.Categories == nil {
		req.Categories = []int64{}
	}
	return c.do(ctx, "edit_profile", http.MethodPut, "/volunteer/profile/", token, req, nil)
}

// DeactivateProfile disables the account of the given role. The session
// should be reset afterwards: the stored tokens are no longer usable.
func (c *Client) DeactivateProfile(ctx context.Context, token, rolePath string) error {
	return c.do(ctx, "deactivate_profile", http.MethodDelete,
		fmt.Sprintf("/%s/profile/", rolePath), token, nil, nil)
}
