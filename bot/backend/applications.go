package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"
)

// ApplicationType selects which slice of requests to list.
type ApplicationType string

const (
	ApplicationsAvailable  ApplicationType = "available"
	ApplicationsInProgress ApplicationType = "in_progress"
	ApplicationsFinished   ApplicationType = "finished"
)

// Creator is the requester attached to a listed application.
type Creator struct {
	FirstName string `json:"first_name"`
	PhoneNum  string `json:"phone_num"`
}

// Application is one assistance request as the backend returns it. Distance
// is present only on volunteer listings (km from the volunteer's location).
type Application struct {
	ID          int64    `json:"id"`
	Description string   `json:"description"`
	CategoryID  *int64   `json:"category_id,omitempty"`
	Address     string   `json:"address,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	ActiveTo    string   `json:"active_to,omitempty"`
	Distance    *float64 `json:"distance,omitempty"`
	Creator     *Creator `json:"creator,omitempty"`
	IsDone      bool     `json:"is_done,omitempty"`
}

// ListApplications fetches the role's applications of the given type. The
// result is always sorted ascending by id so page boundaries are stable
// across reloads regardless of backend ordering.
func (c *Client) ListApplications(ctx context.Context, token, rolePath string, appType ApplicationType) ([]Application, error) {
	path := fmt.Sprintf("/%s/applications/?type=%s", rolePath, url.QueryEscape(string(appType)))

	var apps []Application
	if err := c.do(ctx, "list_applications", http.MethodGet, path, token, nil, &apps); err != nil {
		return nil, err
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].ID < apps[j].ID })
	return apps, nil
}

type applicationRef struct {
	ApplicationID int64 `json:"application_id"`
}

// AcceptApplication assigns the application to the calling volunteer.
func (c *Client) AcceptApplication(ctx context.Context, token string, id int64) error {
	return c.do(ctx, "accept_application", http.MethodPost,
		"/volunteer/applications/accept/", token, applicationRef{ApplicationID: id}, nil)
}

// CancelApplication releases an application the volunteer had accepted.
func (c *Client) CancelApplication(ctx context.Context, token string, id int64) error {
	return c.do(ctx, "cancel_application", http.MethodPost,
		"/volunteer/applications/cancel/", token, applicationRef{ApplicationID: id}, nil)
}

// ReportFile is one attachment of a closing report.
type ReportFile struct {
	Name string
	Data []byte
}

// CloseApplication marks the application done, uploading the volunteer's
// report files as multipart form data.
func (c *Client) CloseApplication(ctx context.Context, token string, id int64, files []ReportFile) error {
	const op = "close_application"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("application_id", strconv.FormatInt(id, 10)); err != nil {
		return fmt.Errorf("backend: %s: build form: %w", op, err)
	}
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Name)
		if err != nil {
			return fmt.Errorf("backend: %s: build form: %w", op, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return fmt.Errorf("backend: %s: build form: %w", op, err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("backend: %s: build form: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/volunteer/applications/close/", bytes.NewReader(buf.Bytes()))
	if err != nil {
		return fmt.Errorf("backend: %s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	raw := buf.Bytes()
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(raw)), nil
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportErr(op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(op, resp)
	}
	return nil
}

// CreateApplicationRequest describes a new assistance request. CategoryID,
// Address and coordinates are optional; ActiveTo is an ISO 8601 date.
type CreateApplicationRequest struct {
	Description string   `json:"description"`
	CategoryID  *int64   `json:"category_id"`
	Address     *string  `json:"address"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	ActiveTo    string   `json:"active_to"`
}

// CreateApplication files a new request for the beneficiary.
func (c *Client) CreateApplication(ctx context.Context, token string, req CreateApplicationRequest) (Application, error) {
	var app Application
	err := c.do(ctx, "create_application", http.MethodPost,
		"/beneficiary/applications/", token, req, &app)
	if err != nil {
		return Application{}, err
	}
	return app, nil
}

// ConfirmApplication lets the beneficiary confirm completed work.
func (c *Client) ConfirmApplication(ctx context.Context, token string, id int64) error {
	return c.do(ctx, "confirm_application", http.MethodPut,
		"/beneficiary/applications/", token, applicationRef{ApplicationID: id}, nil)
}

// DeleteApplication removes the beneficiary's own request.
func (c *Client) DeleteApplication(ctx context.Context, token string, id int64) error {
	return c.do(ctx, "delete_application", http.MethodDelete,
		"/beneficiary/applications/", token, applicationRef{ApplicationID: id}, nil)
}

// DeleteApplicationModerator deactivates any request by id.
func (c *Client) DeleteApplicationModerator(ctx context.Context, token string, id int64) error {
	return c.do(ctx, "delete_application_moderator", http.MethodDelete,
		"/moderator/applications/", token, applicationRef{ApplicationID: id}, nil)
}

// ActiveToLayout is the date format the backend expects in active_to.
const ActiveToLayout = time.RFC3339
