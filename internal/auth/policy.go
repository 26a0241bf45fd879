package auth

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// Policy holds token lifetimes and the refresh rotation switch.
type Policy struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Rotate mints a new refresh token on every successful refresh.
	Rotate bool
}

// TokenPair is the result of a login or refresh.  RefreshToken is empty
// when a refresh ran with rotation disabled.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

func mintPair(c *Codec, subject string, p Policy, withRefresh bool) (TokenPair, error) {
	at, err := c.Issue(subject, KindAccess, p.AccessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	pair := TokenPair{AccessToken: at.Token, AccessExpiresAt: at.Exp}
	if !withRefresh {
		return pair, nil
	}
	rt, err := c.Issue(subject, KindRefresh, p.RefreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	pair.RefreshToken = rt.Token
	pair.RefreshExpiresAt = rt.Exp
	return pair, nil
}

var loginNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{4,32}$`)

const (
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt input limit
)

func validLoginName(s string) error {
	if !loginNamePattern.MatchString(s) {
		return fmt.Errorf("%w: login name must be 4-32 letters, digits or underscores", ErrInvalidInput)
	}
	return nil
}

// validPassword requires a letter, a digit and a symbol.
func validPassword(s string) error {
	if len(s) < minPasswordLen || len(s) > maxPasswordLen {
		return fmt.Errorf("%w: password must be %d-%d bytes", ErrInvalidInput, minPasswordLen, maxPasswordLen)
	}
	var letter, digit, symbol bool
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	if !letter || !digit || !symbol {
		return fmt.Errorf("%w: password needs a letter, a digit and a symbol", ErrInvalidInput)
	}
	return nil
}

// ValidateEmail checks that s is a bare address such as a@b.example.
func ValidateEmail(s string) error {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || !strings.Contains(s, "@") {
		return fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	return nil
}
