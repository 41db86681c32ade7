package backend

import (
	"context"
	"net/http"
)

// Category is one entry of the assistance category tree.
type Category struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id,omitempty"`
	IsActive bool   `json:"is_active"`
}

type createCategoryRequest struct {
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

// CreateOrActivateCategory creates a category, or reactivates a previously
// deactivated one with the same name.
func (c *Client) CreateOrActivateCategory(ctx context.Context, token, name string, parentID *int64) (Category, error) {
	var cat Category
	err := c.do(ctx, "create_category", http.MethodPost, "/moderator/categories/", token,
		createCategoryRequest{Name: name, ParentID: parentID}, &cat)
	if err != nil {
		return Category{}, err
	}
	return cat, nil
}

type categoryRef struct {
	ID int64 `json:"id"`
}

// DeactivateCategory hides the category from new requests.
func (c *Client) DeactivateCategory(ctx context.Context, token string, id int64) error {
	return c.do(ctx, "deactivate_category", http.MethodDelete,
		"/moderator/categories/", token, categoryRef{ID: id}, nil)
}

type verifyUserRequest struct {
	UserID     int64 `json:"user_id"`
	IsVerified bool  `json:"is_verified"`
}

// VerifyUser approves or rejects a pending account.
func (c *Client) VerifyUser(ctx context.Context, token string, userID int64, approved bool) error {
	return c.do(ctx, "verify_user", http.MethodPost,
		"/moderator/verify_user/", token, verifyUserRequest{UserID: userID, IsVerified: approved}, nil)
}
