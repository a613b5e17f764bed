package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Credential carries everything needed to mint a client assertion.
type Credential struct {
	TenantID   string
	ClientID   string
	Bundle     []byte // PKCS#12, password-protected
	Password   string
	Thumbprint string        // x5t; computed from the certificate when empty
	Lifetime   time.Duration // requested assertion/token validity window
}

// TokenEndpoint returns the tenant's OAuth2 v2.0 token endpoint, which is
// both the assertion audience and the exchange target.
func (c Credential) TokenEndpoint() string {
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", c.TenantID)
}

// SignAssertion decodes the credential's certificate bundle and produces a
// signed RS256 client-assertion JWT in compact serialization. Each call
// mints a fresh jti so the provider never rejects an assertion as replayed.
func SignAssertion(cred Credential) (string, error) {
	if cred.Lifetime <= 0 {
		return "", fmt.Errorf("%w: token lifetime must be positive, got %s", ErrCredential, cred.Lifetime)
	}

	key, cert, err := DecodeBundle(cred.Bundle, cred.Password)
	if err != nil {
		return "", err
	}

	thumbprint := cred.Thumbprint
	if thumbprint == "" {
		thumbprint = Thumbprint(cert)
	}

	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"aud": cred.TokenEndpoint(),
		"iss": cred.ClientID,
		"sub": cred.ClientID,
		"jti": uuid.NewString(),
		"nbf": now.Unix(),
		"exp": now.Add(cred.Lifetime).Unix(),
	})
	token.Header["x5t"] = thumbprint

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("auth: signing assertion: %w", err)
	}

	return signed, nil
}
