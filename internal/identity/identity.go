// Package identity resolves the owner that lifecycle operations act for.
package identity

import (
	"context"
	"os/user"
	"strings"
)

// Provider returns the current owner id, or false when nobody is authenticated.
type Provider interface {
	CurrentUserID(ctx context.Context) (string, bool)
}

// Static always resolves to the same owner. The empty Static is unauthenticated.
type Static string

// CurrentUserID implements Provider.
func (s Static) CurrentUserID(context.Context) (string, bool) {
	id := strings.TrimSpace(string(s))
	return id, id != ""
}

// FromEnvironment returns explicit when set, otherwise the operating system user name.
func FromEnvironment(explicit string) Static {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return Static(explicit)
	}
	u, err := user.Current()
	if err != nil {
		return ""
	}
	return Static(u.Username)
}
