package gh

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v83/github"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

const pageSize = 100

type PullRequest struct {
	Author    string
	CreatedAt time.Time
}

// Repo is the subset of repository metadata the scorers consume.
type Repo struct {
	Owner        string
	Name         string
	Description  string
	License      string
	SizeKB       int
	Stars        int
	Forks        int
	OpenIssues   int
	Archived     bool
	ReadmeBytes  int
	PullRequests []PullRequest
}

type Client struct {
	api *github.Client
}

// NewClient returns a GitHub client. An empty token yields an anonymous client
// and an empty baseURL targets api.github.com.
func NewClient(ctx context.Context, token, baseURL string) (*Client, error) {
	var hc *http.Client
	if token != "" {
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			TokenType:   "token",
			AccessToken: token,
		}))
	}
	api := github.NewClient(hc)
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing github base url: %w", err)
		}
		api.BaseURL = u
	}
	return &Client{api: api}, nil
}

// Repo fetches repository metadata, README size and the latest pull requests
// concurrently.
func (c *Client) Repo(ctx context.Context, owner, name string) (*Repo, error) {
	r := &Repo{Owner: owner, Name: name}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		repo, _, err := c.api.Repositories.Get(gctx, owner, name)
		if err != nil {
			return fmt.Errorf("getting repo %s/%s: %w", owner, name, err)
		}
		r.Description = repo.GetDescription()
		r.SizeKB = repo.GetSize()
		r.Stars = repo.GetStargazersCount()
		r.Forks = repo.GetForksCount()
		r.OpenIssues = repo.GetOpenIssuesCount()
		r.Archived = repo.GetArchived()
		if repo.License != nil {
			r.License = repo.License.GetSPDXID()
		}
		return nil
	})

	g.Go(func() error {
		readme, resp, err := c.api.Repositories.GetReadme(gctx, owner, name, nil)
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusNotFound {
				return nil
			}
			return fmt.Errorf("getting readme %s/%s: %w", owner, name, err)
		}
		r.ReadmeBytes = readme.GetSize()
		return nil
	})

	g.Go(func() error {
		opt := &github.PullRequestListOptions{
			State:       "all",
			ListOptions: github.ListOptions{PerPage: pageSize},
		}
		items, _, err := c.api.PullRequests.List(gctx, owner, name, opt)
		if err != nil {
			return fmt.Errorf("listing pull requests %s/%s: %w", owner, name, err)
		}
		prs := make([]PullRequest, 0, len(items))
		for _, pr := range items {
			login := pr.GetUser().GetLogin()
			if login == "" {
				continue
			}
			prs = append(prs, PullRequest{Author: login, CreatedAt: pr.GetCreatedAt().Time})
		}
		r.PullRequests = prs
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return r, nil
}
