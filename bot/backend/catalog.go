package backend

import (
	"context"
	"net/http"
)

type developerCreds struct {
	Client   string `json:"client"`
	Password string `json:"password"`
}

type listCategoriesRequest struct {
	ForDevelopers developerCreds `json:"for_developers"`
	Client        string         `json:"client"`
	Password      string         `json:"password"`
}

// ListCategories fetches the active category tree. The endpoint is
// credential-in-body: no user token involved.
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	name, password := c.serviceCreds()
	creds := developerCreds{Client: name, Password: password}
	req := listCategoriesRequest{ForDevelopers: creds, Client: name, Password: password}

	var cats []Category
	if err := c.do(ctx, "list_categories", http.MethodPost, "/developers/categories/", "", req, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// Customer is a registered platform user as seen by moderators.
type Customer struct {
	ID         int64  `json:"id"`
	TgID       string `json:"tg_id"`
	PhoneNum   string `json:"phone_num"`
	Firstname  string `json:"firstname"`
	Lastname   string `json:"lastname"`
	Patronymic string `json:"patronymic"`
	RoleID     int    `json:"role_id"`
	IsVerified bool   `json:"is_verified"`
}

// ListCustomers fetches all registered users for moderator review.
func (c *Client) ListCustomers(ctx context.Context) ([]Customer, error) {
	name, password := c.serviceCreds()
	req := developerCreds{Client: name, Password: password}

	var customers []Customer
	if err := c.do(ctx, "list_customers", http.MethodPost, "/developers/customers/", "", req, &customers); err != nil {
		return nil, err
	}
	return customers, nil
}
