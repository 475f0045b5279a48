// Package release lists published releases for a repository via the GitHub API.
package release

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/go-github/v60/github"
)

// Release is the subset of release metadata the build pipeline consumes.
type Release struct {
	TagName     string
	Name        string
	Body        string // release notes markdown
	Prerelease  bool
	PublishedAt time.Time
}

// Client wraps the GitHub releases API for a single repository.
type Client struct {
	gh    *github.Client
	owner string
	repo  string
}

// NewClient creates a release client. Token may be empty for public
// repositories, at the cost of a lower rate limit.
func NewClient(owner, repo, token string) *Client {
	gh := github.NewClient(nil)
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	return &Client{gh: gh, owner: owner, repo: repo}
}

// WithBaseURL points the client at a different API endpoint (tests, GHE).
func (c *Client) WithBaseURL(base string) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Path == "" || u.Path[len(u.Path)-1] != '/' {
		u.Path += "/"
	}
	c.gh.BaseURL = u
	return c, nil
}

// LastN fetches the n most recent releases, newest first (API order).
// Draft releases are excluded; the result is consumed once per run.
func (c *Client) LastN(ctx context.Context, n int) ([]Release, error) {
	if n <= 0 {
		return nil, fmt.Errorf("release count must be positive, got %d", n)
	}

	ghReleases, _, err := c.gh.Repositories.ListReleases(ctx, c.owner, c.repo, &github.ListOptions{PerPage: n})
	if err != nil {
		return nil, fmt.Errorf("list releases for %s/%s: %w", c.owner, c.repo, err)
	}

	releases := make([]Release, 0, len(ghReleases))
	for _, r := range ghReleases {
		if r.GetDraft() {
			continue
		}
		releases = append(releases, Release{
			TagName:     r.GetTagName(),
			Name:        r.GetName(),
			Body:        r.GetBody(),
			Prerelease:  r.GetPrerelease(),
			PublishedAt: r.GetPublishedAt().Time,
		})
	}
	return releases, nil
}

// Tags returns just the tag names of the given releases, preserving order.
func Tags(releases []Release) []string {
	tags := make([]string, 0, len(releases))
	for _, r := range releases {
		tags = append(tags, r.TagName)
	}
	return tags
}
