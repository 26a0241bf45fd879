package auth

import "strings"

// Validator turns an access token into a Principal.  It trusts the verified
// claims and never touches the store.
type Validator struct {
	codec *Codec
}

func NewValidator(codec *Codec) *Validator { return &Validator{codec: codec} }

// Validate returns ErrUnauthenticated for an empty token and the codec's
// error (ErrMalformed, ErrBadSignature, ErrExpired) otherwise.
func (v *Validator) Validate(token string) (Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, ErrUnauthenticated
	}
	claims, err := v.codec.Verify(token, KindAccess)
	if err != nil {
		return Principal{}, err
	}
	return Principal{
		AccountID:   claims.Subject,
		Authorities: []string{AuthorityUser},
	}, nil
}
