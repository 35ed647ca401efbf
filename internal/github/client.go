// Package github reads public account data from the GitHub REST API and
// assembles it into snapshots and account-wide summaries.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/skill-verifier/internal/types"
)

const (
	// DefaultBaseURL is the public GitHub REST API root
	DefaultBaseURL = "https://api.github.com"
	// DefaultTimeout bounds each request
	DefaultTimeout = 30 * time.Second

	userAgent     = "skill-verifier"
	acceptDefault = "application/vnd.github+json"
	// topics needed a preview media type on older API versions
	acceptTopics = "application/vnd.github.mercy-preview+json"
)

// APIError is a non-2xx response from the GitHub API
type APIError struct {
	StatusCode  int
	URL         string
	Body        string
	RateLimited bool
	ResetAt     string
}

func (e *APIError) Error() string {
	if e.RateLimited {
		return fmt.Sprintf("github API rate limit exceeded for %s, resets at: %s", e.URL, e.ResetAt)
	}
	return fmt.Sprintf("github API error %d for %s: %s", e.StatusCode, e.URL, e.Body)
}

// Repository is one entry of a user's repository listing
type Repository struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	StargazersCount int    `json:"stargazers_count"`
	ForksCount      int    `json:"forks_count"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// API is the subset of GitHub reads the aggregator needs
type API interface {
	ListRepos(ctx context.Context, username string) ([]Repository, error)
	GetUser(ctx context.Context, username string) (*types.UserInfo, error)
	GetLanguages(ctx context.Context, username, repo string) (map[string]int, error)
	GetCommits(ctx context.Context, username, repo string, limit int) ([]types.CommitRef, error)
	GetReadme(ctx context.Context, username, repo string) (string, error)
	GetTopics(ctx context.Context, username, repo string) ([]string, error)
}

// Client is a minimal GitHub REST client
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client. An empty baseURL means the public API and an
// empty token means unauthenticated requests.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// getJSON issues an authenticated GET and decodes a 2xx body into target
func (c *Client) getJSON(ctx context.Context, path, accept string, target any) error {
	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			URL:        endpoint,
			Body:       strings.TrimSpace(string(body)),
		}
		if resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0" {
			apiErr.RateLimited = true
			apiErr.ResetAt = resp.Header.Get("X-RateLimit-Reset")
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}

func repoPath(username, repo, suffix string) string {
	return fmt.Sprintf("/repos/%s/%s/%s", url.PathEscape(username), url.PathEscape(repo), suffix)
}

// ListRepos returns the user's public repositories in the order GitHub lists them
func (c *Client) ListRepos(ctx context.Context, username string) ([]Repository, error) {
	var repos []Repository
	path := fmt.Sprintf("/users/%s/repos?per_page=100", url.PathEscape(username))
	if err := c.getJSON(ctx, path, acceptDefault, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

type userResponse struct {
	ID          int64  `json:"id"`
	Login       string `json:"login"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatar_url"`
	Bio         string `json:"bio"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
	CreatedAt   string `json:"created_at"`
}

// GetUser returns the public profile of a user
func (c *Client) GetUser(ctx context.Context, username string) (*types.UserInfo, error) {
	var u userResponse
	if err := c.getJSON(ctx, "/users/"+url.PathEscape(username), acceptDefault, &u); err != nil {
		return nil, err
	}
	return &types.UserInfo{
		ID:          u.ID,
		Login:       u.Login,
		Name:        u.Name,
		Email:       u.Email,
		AvatarURL:   u.AvatarURL,
		Bio:         u.Bio,
		Company:     u.Company,
		Location:    u.Location,
		PublicRepos: u.PublicRepos,
		Followers:   u.Followers,
		Following:   u.Following,
		CreatedAt:   u.CreatedAt,
	}, nil
}

// GetLanguages returns bytes of code per language
func (c *Client) GetLanguages(ctx context.Context, username, repo string) (map[string]int, error) {
	languages := map[string]int{}
	if err := c.getJSON(ctx, repoPath(username, repo, "languages"), acceptDefault, &languages); err != nil {
		return nil, err
	}
	return languages, nil
}

type commitResponse struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name string `json:"name"`
			Date string `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

// GetCommits returns up to limit of the most recent commits
func (c *Client) GetCommits(ctx context.Context, username, repo string, limit int) ([]types.CommitRef, error) {
	var raw []commitResponse
	path := repoPath(username, repo, fmt.Sprintf("commits?per_page=%d", limit))
	if err := c.getJSON(ctx, path, acceptDefault, &raw); err != nil {
		return nil, err
	}

	commits := make([]types.CommitRef, 0, len(raw))
	for _, rc := range raw {
		commits = append(commits, types.CommitRef{
			SHA:     rc.SHA,
			Message: rc.Commit.Message,
			Author:  rc.Commit.Author.Name,
			Date:    rc.Commit.Author.Date,
		})
	}
	return commits, nil
}

type readmeResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// GetReadme returns the decoded README with any embedded HTML reduced to text
func (c *Client) GetReadme(ctx context.Context, username, repo string) (string, error) {
	var r readmeResponse
	if err := c.getJSON(ctx, repoPath(username, repo, "readme"), acceptDefault, &r); err != nil {
		return "", err
	}
	if r.Content == "" {
		return "", nil
	}

	text := r.Content
	if r.Encoding == "" || r.Encoding == "base64" {
		// GitHub wraps the payload at 60 columns
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(r.Content, "\n", ""))
		if err != nil {
			return "", fmt.Errorf("failed to decode README for %s/%s: %w", username, repo, err)
		}
		text = string(decoded)
	}
	return StripHTML(text), nil
}

type topicsResponse struct {
	Names []string `json:"names"`
}

// GetTopics returns the repository's topic tags
func (c *Client) GetTopics(ctx context.Context, username, repo string) ([]string, error) {
	var t topicsResponse
	if err := c.getJSON(ctx, repoPath(username, repo, "topics"), acceptTopics, &t); err != nil {
		return nil, err
	}
	if t.Names == nil {
		return []string{}, nil
	}
	return t.Names, nil
}

var htmlTagPattern = regexp.MustCompile(`(?i)</?(p|div|span|img|a|h[1-6]|br|table|tr|td|picture|source|details|summary|center|ul|li)\b[^>]*>`)

// StripHTML reduces HTML fragments embedded in README markdown to their text.
// Text without HTML tags is returned unchanged.
func StripHTML(text string) string {
	if !htmlTagPattern.MatchString(text) {
		return text
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return htmlTagPattern.ReplaceAllString(text, "")
	}
	doc.Find("script, style").Remove()
	return strings.TrimSpace(doc.Text())
}
