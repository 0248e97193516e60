package github

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/usagestats/usagestats/httpclient"
	"github.com/usagestats/usagestats/util"
)

// Authenticator produces the Authorization header value for API calls.
type Authenticator interface {
	Authorization(ctx context.Context) (string, error)
}

// BasicAuth authenticates with a username and a password or personal token.
type BasicAuth struct {
	Username string
	Password string
}

func (b BasicAuth) Authorization(context.Context) (string, error) {
	return "Basic " + util.Base64Encode([]byte(b.Username+":"+b.Password)), nil
}

// NoAuth sends unauthenticated requests.
type NoAuth struct{}

func (NoAuth) Authorization(context.Context) (string, error) { return "", nil }

const (
	jwtBackdate = 60 * time.Second
	jwtLifetime = 9 * time.Minute
	// tokens are refreshed this long before GitHub expires them
	tokenSlack = time.Minute
)

// AppAuth authenticates as a GitHub App installation. It signs a short-lived
// RS256 JWT and exchanges it for an installation token, cached until shortly
// before it expires.
type AppAuth struct {
	AppID          string
	InstallationID string
	APIURL         string

	key    *rsa.PrivateKey
	client *httpclient.Client
	now    func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewAppAuth(appID, installationID, apiURL string, key *rsa.PrivateKey, client *httpclient.Client) *AppAuth {
	return &AppAuth{
		AppID:          appID,
		InstallationID: installationID,
		APIURL:         strings.TrimSuffix(apiURL, "/"),
		key:            key,
		client:         client,
		now:            time.Now,
	}
}

// LoadPrivateKey reads a PEM encoded RSA key.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// AppJWT signs the JWT identifying the app.
func (a *AppAuth) AppJWT() (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Issuer:    a.AppID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-jwtBackdate)),
		ExpiresAt: jwt.NewNumericDate(now.Add(jwtLifetime)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(a.key)
	if err != nil {
		return "", fmt.Errorf("sign app jwt: %w", err)
	}
	return signed, nil
}

type installationToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *AppAuth) Authorization(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && a.now().Add(tokenSlack).Before(a.expires) {
		return "token " + a.token, nil
	}

	appJWT, err := a.AppJWT()
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/app/installations/%s/access_tokens", a.APIURL, a.InstallationID)
	resp, err := a.client.Post(ctx, url, map[string]string{
		"Authorization": "Bearer " + appJWT,
		"Accept":        "application/vnd.github+json",
	}, nil)
	if err != nil {
		return "", fmt.Errorf("%w: installation token: %v", ErrAPI, err)
	}
	if !resp.OK() {
		return "", fmt.Errorf("%w: installation token: status %d", ErrAPI, resp.StatusCode)
	}

	var tok installationToken
	if err := json.Unmarshal(resp.Body, &tok); err != nil {
		return "", fmt.Errorf("%w: decode installation token: %v", ErrAPI, err)
	}
	if tok.Token == "" {
		return "", fmt.Errorf("%w: empty installation token", ErrAPI)
	}
	a.token, a.expires = tok.Token, tok.ExpiresAt
	return "token " + a.token, nil
}
