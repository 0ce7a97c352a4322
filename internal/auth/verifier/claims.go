package verifier

import (
	"strings"
	"time"
)

// VerifiedClaims are the claims of an identity token whose structure,
// signature, issuer, audience and expiry have all been checked. They are
// only built by Verifier.Verify.
type VerifiedClaims struct {
	Subject  string
	Issuer   string
	Audience string // the expected audience the token matched

	Email          string
	EmailVerified  *bool // nil when the token does not carry the claim
	IsPrivateEmail bool  // Apple private relay address
	Nonce          string

	IssuedAt time.Time
	Expiry   time.Time

	Raw map[string]any
}

// flexBool reads a claim that providers encode either as a JSON boolean or
// as the strings "true"/"false" (Apple does the latter).
func flexBool(raw map[string]any, name string) *bool {
	v, ok := raw[name]
	if !ok {
		return nil
	}

	var b bool
	switch t := v.(type) {
	case bool:
		b = t
	case string:
		switch strings.ToLower(t) {
		case "true":
			b = true
		case "false":
			b = false
		default:
			return nil
		}
	default:
		return nil
	}
	return &b
}

func stringClaim(raw map[string]any, name string) string {
	s, _ := raw[name].(string)
	return s
}
