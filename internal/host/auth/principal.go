// Package auth guards every command route under /api (object.*,
// subscriptions.*, modify, reads included) behind the admin principal:
// HTTP Basic credentials or a cookie session minted by Login from a JSON
// username/password, with no bearer-token or per-device
// credential paths since this domain has no equivalent of either.
package auth

import "github.com/gin-gonic/gin"

// CredentialType records how a request established its Principal.
type CredentialType int

const (
	_ CredentialType = iota
	Basic
	Session
)

func (c CredentialType) String() string {
	switch c {
	case Basic:
		return "basic"
	case Session:
		return "session"
	default:
		return "unknown"
	}
}

// Principal is the authenticated caller of a command request.
type Principal struct {
	Credential CredentialType
	ID         string
}

const contextKey = "selva.principal"

// SetPrincipal attaches p to the request context.
func SetPrincipal(c *gin.Context, p *Principal) {
	c.Set(contextKey, p)
}

// GetPrincipal returns the Principal attached by a prior auth check, or nil.
func GetPrincipal(c *gin.Context) *Principal {
	v, ok := c.Get(contextKey)
	if !ok {
		return nil
	}
	p, _ := v.(*Principal)
	return p
}
