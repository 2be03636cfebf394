package password

import (
	"fmt"
	"unicode"
)

const defaultMinLength = 8

// Policy is the password strength policy enforced at registration and
// password-change time.
type Policy struct {
	MinLength int
}

// Validate returns every rule the candidate password violates, as
// human-readable reasons. An empty slice means the password is acceptable.
func (p Policy) Validate(password string) []string {
	minLength := p.MinLength
	if minLength < defaultMinLength {
		minLength = defaultMinLength
	}

	var reasons []string
	if len(password) < minLength {
		reasons = append(reasons, fmt.Sprintf("password must be at least %d characters long", minLength))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !hasUpper {
		reasons = append(reasons, "password must contain an uppercase letter")
	}
	if !hasLower {
		reasons = append(reasons, "password must contain a lowercase letter")
	}
	if !hasDigit {
		reasons = append(reasons, "password must contain a digit")
	}
	if !hasSpecial {
		reasons = append(reasons, "password must contain a special character")
	}

	return reasons
}
