// Package session holds per-user conversation state: role, backend
// credentials, the active dialog position, collected form fields, and the
// pagination cursor of a browsing dialog. Storage backends are pluggable.
package session

import "context"

// Role identifies what the backend knows the user as.
type Role string

const (
	RoleUnauthenticated Role = "unauthenticated"
	RoleBeneficiary     Role = "beneficiary"
	RoleVolunteer       Role = "volunteer"
	RoleModerator       Role = "moderator"
)

// Path returns the URL path segment the backend uses for this role.
func (r Role) Path() string {
	return string(r)
}

// BackendID returns the numeric role identifier used by the backend API.
func (r Role) BackendID() int {
	switch r {
	case RoleBeneficiary:
		return 1
	case RoleVolunteer:
		return 2
	case RoleModerator:
		return 3
	}
	return 0
}

// StateIdle marks a session with no active dialog.
const StateIdle = "idle"

// Credentials carries the backend token pair. Both tokens are always present
// together; a half-filled pair never exists in a stored session.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Item is one entry of a browsed list: an opaque backend record reduced to
// the id used for selection and the rendered label.
type Item struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// Cursor tracks client-side pagination over a list fetched once per dialog.
type Cursor struct {
	Items    []Item `json:"items"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// Session is the per-user state container.
type Session struct {
	UserID      int64             `json:"user_id"`
	Role        Role              `json:"role"`
	Credentials *Credentials      `json:"credentials,omitempty"`
	Dialog      string            `json:"dialog,omitempty"`
	State       string            `json:"state"`
	Form        map[string]string `json:"form,omitempty"`
	Cursor      *Cursor           `json:"cursor,omitempty"`
}

// New returns an unauthenticated idle session for the given user.
func New(userID int64) *Session {
	return &Session{
		UserID: userID,
		Role:   RoleUnauthenticated,
		State:  StateIdle,
	}
}

// Authenticated reports whether the session carries a token pair.
func (s *Session) Authenticated() bool {
	return s.Credentials != nil &&
		s.Credentials.AccessToken != "" &&
		s.Credentials.RefreshToken != ""
}

// SetCredentials replaces the token pair atomically. When the new refresh
// token is empty the previous one is retained so the pair is never half-blank.
func (s *Session) SetCredentials(access, refresh string) {
	if refresh == "" && s.Credentials != nil {
		refresh = s.Credentials.RefreshToken
	}
	s.Credentials = &Credentials{AccessToken: access, RefreshToken: refresh}
}

// ClearCredentials drops the token pair.
func (s *Session) ClearCredentials() {
	s.Credentials = nil
}

// ResetDialog terminates the active dialog and discards its form data. The
// cursor survives: a finished browse keeps serving page flips.
func (s *Session) ResetDialog() {
	s.Dialog = ""
	s.State = StateIdle
	s.Form = nil
}

// ResetAuth drops credentials and role and terminates any active dialog.
// Used when the backend no longer recognizes the stored tokens.
func (s *Session) ResetAuth() {
	s.ClearCredentials()
	s.Role = RoleUnauthenticated
	s.ResetDialog()
	s.Cursor = nil
}

// SetForm stores a collected field of the active dialog.
func (s *Session) SetForm(key, value string) {
	if s.Form == nil {
		s.Form = make(map[string]string)
	}
	s.Form[key] = value
}

// FormValue returns a collected field, or "" when absent.
func (s *Session) FormValue(key string) string {
	return s.Form[key]
}

// Clone returns a deep copy so store implementations never alias caller state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Credentials != nil {
		creds := *s.Credentials
		out.Credentials = &creds
	}
	if s.Form != nil {
		out.Form = make(map[string]string, len(s.Form))
		for k, v := range s.Form {
			out.Form[k] = v
		}
	}
	if s.Cursor != nil {
		cur := *s.Cursor
		cur.Items = append([]Item(nil), s.Cursor.Items...)
		out.Cursor = &cur
	}
	return &out
}

// Store persists sessions keyed by user id. Get returns a fresh
// unauthenticated session when none is stored yet.
type Store interface {
	Get(ctx context.Context, userID int64) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, userID int64) error
}
