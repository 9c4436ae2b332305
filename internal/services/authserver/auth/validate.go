package auth

import (
	validation "github.com/go-ozzo/ozzo-validation"
)

const (
	maxLoginLen    = 128
	maxPasswordLen = 256
)

type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Login, validation.Required, validation.Length(1, maxLoginLen)),
		validation.Field(&r.Password, validation.Required, validation.Length(1, maxPasswordLen)),
	)
}

type RegisterRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Theme    string `json:"theme,omitempty"`
}

// ValidateWithThemes checks field limits and that a non-empty theme is one
// of themes.
func (r RegisterRequest) ValidateWithThemes(themes []string) error {
	allowed := make([]interface{}, len(themes))
	for i, t := range themes {
		allowed[i] = t
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Login, validation.Required, validation.Length(1, maxLoginLen)),
		validation.Field(&r.Password, validation.Required, validation.Length(1, maxPasswordLen)),
		validation.Field(&r.Theme, validation.In(allowed...)),
	)
}
