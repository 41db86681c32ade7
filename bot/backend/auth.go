package backend

import (
	"context"
	"net/http"
)

// TokenPair is the backend's auth response. Refresh may be empty on the
// refresh endpoint, meaning the old refresh token stays valid.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Location is a point with an optional display address.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// RegisterRequest creates a platform account bound to a Telegram id.
// Location is required for volunteers and ignored for beneficiaries.
type RegisterRequest struct {
	PhoneNum   string    `json:"phone_num"`
	TgID       string    `json:"tg_id"`
	Firstname  string    `json:"firstname"`
	Lastname   string    `json:"lastname"`
	Patronymic string    `json:"patronymic"`
	RoleID     int       `json:"role_id"`
	Client     string    `json:"client"`
	Password   string    `json:"password"`
	Location   *Location `json:"location,omitempty"`
}

// Register creates the user account. The backend answers 201 with no body.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	req.Client, req.Password = c.serviceCreds()
	return c.do(ctx, "register", http.MethodPost, "/auth/register/", "", req, nil)
}

type loginRequest struct {
	TgID     string `json:"tg_id"`
	RoleID   int    `json:"role_id"`
	Client   string `json:"client"`
	Password string `json:"password"`
}

// Login exchanges the Telegram id and role for a token pair. A 403 means the
// account exists but awaits moderator verification.
func (c *Client) Login(ctx context.Context, tgID string, roleID int) (TokenPair, error) {
	req := loginRequest{TgID: tgID, RoleID: roleID}
	req.Client, req.Password = c.serviceCreds()

	var pair TokenPair
	if err := c.do(ctx, "login", http.MethodPost, "/auth/login/", "", req, &pair); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

type moderatorLoginRequest struct {
	PhoneNumber    string `json:"phone_number"`
	Password       string `json:"password"`
	Client         string `json:"client"`
	ClientPassword string `json:"client_password"`
}

// LoginModerator authenticates a moderator by phone number and password.
func (c *Client) LoginModerator(ctx context.Context, phone, password string) (TokenPair, error) {
	req := moderatorLoginRequest{PhoneNumber: phone, Password: password}
	req.Client, req.ClientPassword = c.serviceCreds()

	var pair TokenPair
	if err := c.do(ctx, "login_moderator", http.MethodPost, "/moderator/login/", "", req, &pair); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges a refresh token for a new pair. The response may omit
// refresh_token; callers keep the old one in that case.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	var pair TokenPair
	err := c.do(ctx, "refresh", http.MethodPost, "/auth/refresh/", "",
		refreshRequest{RefreshToken: refreshToken}, &pair)
	if err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}
