package flows

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

const (
	minNameLength = 2
	maxNameLength = 50
)

var (
	errBadPhone       = errors.New("phone must start with +, 8 or 380")
	errBadName        = errors.New("name parts must be letters only")
	errBadNameLength  = errors.New("name length out of bounds")
	errBadCoordinates = errors.New("expected \"latitude, longitude\"")
)

var (
	nameRe        = regexp.MustCompile(`^[A-Za-zА-ЯІЇЄҐа-яіїєґЁё']+$`)
	coordinatesRe = regexp.MustCompile(`^(-?\d+(\.\d+)?),\s*(-?\d+(\.\d+)?)$`)
	digitsRe      = regexp.MustCompile(`^\d+$`)
)

// NormalizePhone brings a phone number to the backend's canonical form:
// digits only, country prefix 380. A leading + is stripped, a leading 8 is
// the domestic prefix and becomes 380.
func NormalizePhone(raw string) (string, error) {
	phone := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(phone, "+"):
		phone = phone[1:]
	case strings.HasPrefix(phone, "8"):
		phone = "380" + phone[1:]
	}
	if !strings.HasPrefix(phone, "380") || !digitsRe.MatchString(phone) {
		return "", errBadPhone
	}
	return phone, nil
}

// FullName is a parsed user name. Single token: first name only. Two tokens:
// last + first. Three or more: last + first + patronymic (rest joined).
type FullName struct {
	First      string
	Last       string
	Patronymic string
}

// ParseFullName splits and validates a one-line full name.
func ParseFullName(raw string) (FullName, error) {
	parts := strings.Fields(raw)
	if len(parts) == 0 {
		return FullName{}, errBadName
	}
	for _, p := range parts {
		if !nameRe.MatchString(p) {
			return FullName{}, errBadName
		}
	}
	total := len(strings.Join(parts, " "))
	if total < minNameLength || total > maxNameLength {
		return FullName{}, errBadNameLength
	}

	switch len(parts) {
	case 1:
		return FullName{First: parts[0]}, nil
	case 2:
		return FullName{Last: parts[0], First: parts[1]}, nil
	default:
		return FullName{Last: parts[0], First: parts[1], Patronymic: strings.Join(parts[2:], " ")}, nil
	}
}

// ParseCoordinates reads a manually typed "lat, lon" pair.
func ParseCoordinates(raw string) (lat, lon float64, err error) {
	m := coordinatesRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return 0, 0, errBadCoordinates
	}
	lat, err = strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, errBadCoordinates
	}
	lon, err = strconv.ParseFloat(m[3], 64)
	if err != nil {
		return 0, 0, errBadCoordinates
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, errBadCoordinates
	}
	return lat, lon, nil
}
