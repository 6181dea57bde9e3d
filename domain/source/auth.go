package source

import "fmt"

// AuthKind discriminates upstream authentication variants.
type AuthKind string

// Authentication variants. The string values double as the stored
// discriminator column.
const (
	AuthNone   AuthKind = "none"
	AuthBasic  AuthKind = "basic"
	AuthBearer AuthKind = "bearer"
	AuthParam  AuthKind = "param"
)

// Auth describes how an upstream call authenticates itself.
// Only the fields of the active Kind are meaningful.
type Auth struct {
	Kind       AuthKind
	Username   string // basic
	Password   string // basic
	Token      string // bearer
	ParamKey   string // param: query parameter name
	ParamValue string // param: query parameter value
}

// ParseAuthKind maps a discriminator string to its kind.
// An unknown discriminator is a configuration error.
func ParseAuthKind(s string) (AuthKind, error) {
	switch k := AuthKind(s); k {
	case AuthNone, AuthBasic, AuthBearer, AuthParam:
		return k, nil
	}
	return "", fmt.Errorf("unknown auth type %q", s)
}
