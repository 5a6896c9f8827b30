package origin

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSignature is returned for any signature that fails to decode or match.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrInvalidUserAgent is returned when the User-Agent lacks the provider prefix.
	ErrInvalidUserAgent = errors.New("invalid user agent")
)

// MissingHeaderError reports a required header that was absent from a delivery.
type MissingHeaderError struct {
	Header string
}

func (e *MissingHeaderError) Error() string {
	return fmt.Sprintf("missing required header: %s", e.Header)
}

func missing(header string) error {
	return &MissingHeaderError{Header: header}
}

// IsMissingHeader reports whether err is a MissingHeaderError and returns the header name.
func IsMissingHeader(err error) (string, bool) {
	var mh *MissingHeaderError
	if errors.As(err, &mh) {
		return mh.Header, true
	}
	return "", false
}
