// Package backend is the typed gateway to the assistance platform REST API.
// Every operation returns either a decoded value or an *Error whose Kind
// places the failure in a small taxonomy the dialog layer can act on.
package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Kind classifies a gateway failure by what the caller should do about it,
// not by which endpoint produced it.
type Kind int

const (
	// KindValidation: the backend rejected the request content (400).
	// The user can fix their input and retry.
	KindValidation Kind = iota
	// KindForbidden: authenticated but not allowed (403), or the token was
	// rejected outright (401). The guardian decides what happens next.
	KindForbidden
	// KindNotFound: the referenced entity no longer exists (404), usually a
	// stale list item.
	KindNotFound
	// KindUnavailable: transport failure or a 5xx. Retrying later may help;
	// the user's input was fine.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// Error is the uniform gateway error. Detail carries the backend's human
// message when one was present in the response body.
type Error struct {
	Kind     Kind
	Op       string
	HTTPCode int
	Detail   string
	cause    error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend: %s: %s (%s)", e.Op, e.Detail, e.Kind)
	}
	if e.cause != nil {
		return fmt.Sprintf("backend: %s: %v (%s)", e.Op, e.cause, e.Kind)
	}
	return fmt.Sprintf("backend: %s: http %d (%s)", e.Op, e.HTTPCode, e.Kind)
}

func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is(err, &Error{Kind: ...}) match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// IsKind reports whether err is a gateway error of the given kind.
func IsKind(err error, k Kind) bool {
	var be *Error
	return errors.As(err, &be) && be.Kind == k
}

// IsAuthRejected reports whether the backend rejected the access token (401).
// Distinct from a plain 403: a rejected token is the guardian's cue to
// refresh, while a 403 means "verified user required".
func IsAuthRejected(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.Kind == KindForbidden && be.HTTPCode == http.StatusUnauthorized
}

type detailBody struct {
	Detail string `json:"detail"`
}

// classify maps a non-2xx response to the taxonomy. The body is consumed.
func classify(op string, resp *http.Response) *Error {
	var detail string
	if body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<10)); err == nil {
		var d detailBody
		if json.Unmarshal(body, &d) == nil && d.Detail != "" {
			detail = d.Detail
		}
	}

	kind := KindUnavailable
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		kind = KindValidation
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		kind = KindForbidden
	case resp.StatusCode == http.StatusNotFound:
		kind = KindNotFound
	}
	return &Error{Kind: kind, Op: op, HTTPCode: resp.StatusCode, Detail: detail}
}

// transportErr wraps a failed round trip as KindUnavailable.
func transportErr(op string, err error) *Error {
	return &Error{Kind: KindUnavailable, Op: op, cause: err}
}
