package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"crisis-alerts/internal/common/errors"

	"github.com/jonboulle/clockwork"
)

// KeycloakClient obtains service tokens and introspects caller tokens.
type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	clock        clockwork.Clock

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// TokenResponse holds the response from Keycloak's token endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

// TokenInfo holds the fields of the introspection response the API uses.
type TokenInfo struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Username  string `json:"username,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Sub       string `json:"sub,omitempty"`
	Iss       string `json:"iss,omitempty"`
}

// Principal names the caller for logs.
func (t *TokenInfo) Principal() string {
	switch {
	case t.Username != "":
		return t.Username
	case t.ClientID != "":
		return t.ClientID
	default:
		return t.Sub
	}
}

func NewKeycloakClient(baseURL, realm, clientID, clientSecret string) *KeycloakClient {
	return &KeycloakClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		clock:        clockwork.NewRealClock(),
	}
}

// WithClock replaces the clock used for token expiry.
func (k *KeycloakClient) WithClock(clock clockwork.Clock) *KeycloakClient {
	k.clock = clock
	return k
}

// Token returns a client-credentials access token, cached until shortly
// before it expires.
func (k *KeycloakClient) Token(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.accessToken != "" && k.clock.Now().Before(k.tokenExpiry) {
		return k.accessToken, nil
	}

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	resp, err := k.postForm(ctx, k.realmURL("token"), data)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		stdErr := errors.NewAuthenticationError(fmt.Sprintf("token request failed with status %d: %s", resp.StatusCode, string(body)))
		stdErr.Retryable = isTransientHTTPError(resp.StatusCode)
		return "", stdErr
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", errors.NewAuthenticationError("failed to decode token response: " + err.Error())
	}

	// refresh ten seconds early
	lifetime := time.Duration(tokenResp.ExpiresIn)*time.Second - 10*time.Second
	k.accessToken = tokenResp.AccessToken
	k.tokenExpiry = k.clock.Now().Add(lifetime)

	return k.accessToken, nil
}

// ValidateToken introspects token and fails unless it is active.
func (k *KeycloakClient) ValidateToken(ctx context.Context, token string) (*TokenInfo, error) {
	data := url.Values{}
	data.Set("token", token)
	data.Set("token_type_hint", "access_token")
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	resp, err := k.postForm(ctx, k.realmURL("token/introspect"), data)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		stdErr := errors.NewAuthenticationError(fmt.Sprintf("introspection failed with status %d: %s", resp.StatusCode, string(body)))
		stdErr.Retryable = isTransientHTTPError(resp.StatusCode)
		return nil, stdErr
	}

	var tokenInfo TokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&tokenInfo); err != nil {
		return nil, errors.NewAuthenticationError("failed to decode introspection response: " + err.Error())
	}
	if !tokenInfo.Active {
		return nil, errors.NewAuthenticationError("token is not active")
	}
	return &tokenInfo, nil
}

func (k *KeycloakClient) realmURL(endpoint string) string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/%s", k.baseURL, k.realm, endpoint)
}

func (k *KeycloakClient) postForm(ctx context.Context, target string, data url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, errors.NewAuthenticationError("failed to create request: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		stdErr := errors.NewAuthenticationError("keycloak unreachable: " + err.Error())
		stdErr.Retryable = true
		return nil, stdErr
	}
	return resp, nil
}

func isTransientHTTPError(statusCode int) bool {
	switch statusCode {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
