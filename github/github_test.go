package github

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usagestats/usagestats/httpclient"
	"github.com/usagestats/usagestats/logger"
)

func newHTTP() *httpclient.Client {
	return httpclient.New(2*time.Second, "github-test", nil)
}

func TestNextLink(t *testing.T) {
	header := `<https://api.github.com/repositories/1/stargazers?per_page=100&page=2>; rel="next", <https://api.github.com/repositories/1/stargazers?per_page=100&page=9>; rel="last"`
	assert.Equal(t, "https://api.github.com/repositories/1/stargazers?per_page=100&page=2", NextLink(header))
	assert.Equal(t, "", NextLink(`<https://x/?page=1>; rel="prev"`))
	assert.Equal(t, "", NextLink(""))
}

func TestStargazers_FollowsPages(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, starMediaType, r.Header.Get("Accept"))
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "octo", user)
		assert.Equal(t, "secret", pass)

		switch r.URL.Query().Get("page") {
		case "":
			assert.Equal(t, "/repos/rethinkdb/rethinkdb/stargazers", r.URL.Path)
			assert.Equal(t, "100", r.URL.Query().Get("per_page"))
			w.Header().Set("Link", fmt.Sprintf(`<%s/repos/rethinkdb/rethinkdb/stargazers?per_page=100&page=2>; rel="next"`, srv.URL))
			_, _ = w.Write([]byte(`[{"starred_at":"2012-10-30T05:37:47Z","user":{"login":"a"}}]`))
		case "2":
			_, _ = w.Write([]byte(`[{"starred_at":"2012-11-01T00:00:00Z","user":{"login":"b"}},{"starred_at":"2013-01-02T00:00:00Z","user":{"login":"c"}}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(newHTTP(), BasicAuth{Username: "octo", Password: "secret"}, srv.URL, logger.NewTestLogger(t))
	stars, err := c.Stargazers(context.Background(), "rethinkdb", "rethinkdb")
	require.NoError(t, err)
	assert.Equal(t, []Star{
		{User: "a", StarredAt: "2012-10-30T05:37:47Z"},
		{User: "b", StarredAt: "2012-11-01T00:00:00Z"},
		{User: "c", StarredAt: "2013-01-02T00:00:00Z"},
	}, stars)
}

func TestStargazers_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "broken") {
			_, _ = w.Write([]byte(`{"message":"not a list"}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(newHTTP(), nil, srv.URL, logger.NewNoOpLogger())

	_, err := c.Stargazers(context.Background(), "o", "r")
	assert.True(t, errors.Is(err, ErrAPI))

	_, err = c.Stargazers(context.Background(), "o", "broken")
	assert.True(t, errors.Is(err, ErrAPI))
}

func TestPerMonth(t *testing.T) {
	counts, err := PerMonth([]Star{
		{User: "a", StarredAt: "2013-01-02T00:00:00Z"},
		{User: "b", StarredAt: "2012-10-30T05:37:47Z"},
		{User: "c", StarredAt: "2012-10-31T05:37:47Z"},
		{User: "d", StarredAt: "2012-09-01T00:00:00Z"},
	})
	require.NoError(t, err)

	periods := make([]string, len(counts))
	for i, c := range counts {
		periods[i] = c.Period
	}
	assert.Equal(t, []string{"2012-9", "2012-10", "2013-1"}, periods)
	assert.Equal(t, 2, counts[1].Count)

	_, err = PerMonth([]Star{{User: "x", StarredAt: "yesterday"}})
	assert.Error(t, err)

	empty, err := PerMonth(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAppAuth(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var exchanges int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/app/installations/42/access_tokens", r.URL.Path)

		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		claims := &jwt.RegisteredClaims{}
		parser := jwt.NewParser(jwt.WithoutClaimsValidation())
		tok, err := parser.ParseWithClaims(raw, claims, func(tok *jwt.Token) (interface{}, error) {
			assert.Equal(t, jwt.SigningMethodRS256, tok.Method)
			return &key.PublicKey, nil
		})
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.True(t, tok.Valid)
		assert.Equal(t, "1234", claims.Issuer)
		assert.Equal(t, now.Add(-60*time.Second).Unix(), claims.IssuedAt.Unix())
		assert.Equal(t, now.Add(9*time.Minute).Unix(), claims.ExpiresAt.Unix())

		atomic.AddInt32(&exchanges, 1)
		fmt.Fprintf(w, `{"token":"ghs_abc","expires_at":"%s"}`, now.Add(time.Hour).Format(time.RFC3339))
	}))
	defer srv.Close()

	auth := NewAppAuth("1234", "42", srv.URL+"/", key, newHTTP())
	auth.now = func() time.Time { return now }

	header, err := auth.Authorization(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token ghs_abc", header)

	_, err = auth.Authorization(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&exchanges))

	now = now.Add(time.Hour)
	_, err = auth.Authorization(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&exchanges))
}

func TestAppAuth_Rejected(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err = NewAppAuth("1", "2", srv.URL, key, newHTTP()).Authorization(context.Background())
	assert.True(t, errors.Is(err, ErrAPI))
}

func TestBasicAuth(t *testing.T) {
	h, err := BasicAuth{Username: "u", Password: "p"}.Authorization(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Basic dTpw", h)
}
