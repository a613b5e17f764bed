package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultScope requests Graph application permissions via .default,
// which resolves to whatever the app registration has been granted.
const DefaultScope = "https://graph.microsoft.com/.default"

const assertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// AuthError is a token endpoint rejection. It carries the provider's
// status code and error body verbatim — a malformed assertion or expired
// certificate will not succeed on retry, so callers must not retry.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: token endpoint returned HTTP %d: %s", e.StatusCode, e.Body)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Exchange performs a single client-credentials POST, trading the signed
// assertion for a bearer token. The token's claims are never interpreted;
// expiry bookkeeping uses the endpoint's expires_in only.
func Exchange(
	ctx context.Context,
	httpClient *http.Client,
	tokenURL, clientID, assertion, scope string,
	logger *slog.Logger,
) (*oauth2.Token, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	if scope == "" {
		scope = DefaultScope
	}

	form := url.Values{
		"grant_type":            {"client_credentials"},
		"client_id":             {clientID},
		"client_assertion_type": {assertionType},
		"client_assertion":      {assertion},
		"scope":                 {scope},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("auth: creating token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	logger.Info("exchanging client assertion for token",
		slog.String("token_url", tokenURL),
		slog.String("client_id", clientID),
	)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, fmt.Errorf("auth: reading token response: %w", readErr)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &AuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("auth: decoding token response: %w", err)
	}

	if tr.AccessToken == "" {
		return nil, &AuthError{StatusCode: resp.StatusCode, Body: "response contained no access_token"}
	}

	tok := &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   tr.TokenType,
	}
	if tr.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}

	logger.Info("token acquired",
		slog.Time("expiry", tok.Expiry),
	)

	return tok, nil
}

// Acquire signs a fresh assertion for cred and exchanges it in one step.
// The returned token lives in memory only and is never persisted.
func Acquire(ctx context.Context, httpClient *http.Client, cred Credential, scope string, logger *slog.Logger) (*oauth2.Token, error) {
	assertion, err := SignAssertion(cred)
	if err != nil {
		return nil, err
	}

	return Exchange(ctx, httpClient, cred.TokenEndpoint(), cred.ClientID, assertion, scope, logger)
}
