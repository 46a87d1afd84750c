package billing

import (
	"regexp"
	"strings"
)

var (
	mobilePattern = regexp.MustCompile(`^[6-9][0-9]{9}$`)
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// ContactDetails are what the payer confirms right before paying. The
// gateway and the receipt carry them.
type ContactDetails struct {
	Mobile        string `json:"mobile"`
	Email         string `json:"email"`
	TermsAccepted bool   `json:"termsAccepted"`
}

func (c ContactDetails) normalize() ContactDetails {
	c.Mobile = strings.TrimSpace(c.Mobile)
	c.Email = strings.TrimSpace(c.Email)
	return c
}

// Validate reports the first problem: mobile, then email, then terms.
func (c ContactDetails) Validate() ErrorKind {
	c = c.normalize()

	switch {
	case !mobilePattern.MatchString(c.Mobile):
		return InvalidMobile
	case !emailPattern.MatchString(c.Email):
		return InvalidEmail
	case !c.TermsAccepted:
		return TermsNotAccepted
	}
	return NoError
}

// ContactError carries the kind of a rejected confirmation.
type ContactError struct {
	Kind ErrorKind
}

func (e *ContactError) Error() string {
	return ErrInvalidContact.Error() + ": " + string(e.Kind)
}

func (e *ContactError) Unwrap() error {
	return ErrInvalidContact
}
