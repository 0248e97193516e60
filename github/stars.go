// Package github collects the stargazers of a repository and counts them per month.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/usagestats/usagestats/httpclient"
	"github.com/usagestats/usagestats/logger"
)

const (
	DefaultAPIURL = "https://api.github.com"
	starMediaType = "application/vnd.github.star+json"
	perPage       = 100
	// StarredAtLayout is the layout of starred_at timestamps.
	StarredAtLayout = "2006-01-02T15:04:05Z"
)

var ErrAPI = errors.New("github api")

// Star is one stargazer.
type Star struct {
	User      string `json:"user"`
	StarredAt string `json:"starred_at"`
}

type stargazer struct {
	StarredAt string `json:"starred_at"`
	User      struct {
		Login string `json:"login"`
	} `json:"user"`
}

type Client struct {
	http   *httpclient.Client
	auth   Authenticator
	apiURL string
	log    logger.Logger
}

func NewClient(http *httpclient.Client, auth Authenticator, apiURL string, log logger.Logger) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if auth == nil {
		auth = NoAuth{}
	}
	return &Client{
		http:   http,
		auth:   auth,
		apiURL: strings.TrimSuffix(apiURL, "/"),
		log:    log,
	}
}

// Stargazers fetches every stargazer of owner/repo, following the Link
// header from page to page.
func (c *Client) Stargazers(ctx context.Context, owner, repo string) ([]Star, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/stargazers?per_page=%d", c.apiURL, owner, repo, perPage)

	var stars []Star
	for url != "" {
		page, next, err := c.fetchPage(ctx, url)
		if err != nil {
			return nil, err
		}
		stars = append(stars, page...)
		c.log.Debug("fetched stargazers page", map[string]interface{}{"url": url, "count": len(page), "next": next})
		url = next
	}
	return stars, nil
}

func (c *Client) fetchPage(ctx context.Context, url string) ([]Star, string, error) {
	headers := map[string]string{"Accept": starMediaType}
	authz, err := c.auth.Authorization(ctx)
	if err != nil {
		return nil, "", err
	}
	if authz != "" {
		headers["Authorization"] = authz
	}

	resp, err := c.http.Get(ctx, url, headers)
	if err != nil {
		return nil, "", fmt.Errorf("%w: GET %s: %v", ErrAPI, url, err)
	}
	if !resp.OK() {
		return nil, "", fmt.Errorf("%w: GET %s: status %d", ErrAPI, url, resp.StatusCode)
	}

	var raw []stargazer
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, "", fmt.Errorf("%w: decode %s: %v", ErrAPI, url, err)
	}
	stars := make([]Star, len(raw))
	for i, s := range raw {
		stars[i] = Star{User: s.User.Login, StarredAt: s.StarredAt}
	}
	return stars, NextLink(resp.Header.Get("Link")), nil
}

var linkURL = regexp.MustCompile(`<([^<>]+)>`)

// NextLink returns the rel="next" target of a Link header, or "".
func NextLink(header string) string {
	for _, link := range strings.Split(header, ",") {
		if !strings.Contains(link, `rel="next"`) {
			continue
		}
		if m := linkURL.FindStringSubmatch(link); m != nil {
			return m[1]
		}
	}
	return ""
}

// PeriodCount is the number of stars given in one calendar month.
type PeriodCount struct {
	Year   int
	Month  int
	Period string
	Count  int
}

// PerMonth counts stars per month, ordered by year then month. Periods are
// formatted "<year>-<month>" without padding.
func PerMonth(stars []Star) ([]PeriodCount, error) {
	type ym struct{ year, month int }
	counts := make(map[ym]int)
	for _, s := range stars {
		t, err := time.Parse(StarredAtLayout, s.StarredAt)
		if err != nil {
			return nil, fmt.Errorf("star by %s: %w", s.User, err)
		}
		counts[ym{t.Year(), int(t.Month())}]++
	}

	out := make([]PeriodCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, PeriodCount{
			Year:   k.year,
			Month:  k.month,
			Period: fmt.Sprintf("%d-%d", k.year, k.month),
			Count:  n,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}
