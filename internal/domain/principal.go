package domain

// AuthMethod describes how a caller authenticated with the API.
type AuthMethod string

const (
	AuthMethodJWT       AuthMethod = "jwt"
	AuthMethodDevHeader AuthMethod = "dev_header"
)

// Principal captures normalized caller identity independent of auth mechanism. ID is the owner
// key every conversation is scoped to.
type Principal struct {
	ID         string
	AuthMethod AuthMethod
	Subject    string
	Issuer     string
	Username   string
	Email      string
	Scopes     []string
}

// HasScope checks if the principal possesses a scope.
func (p Principal) HasScope(scope string) bool {
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
