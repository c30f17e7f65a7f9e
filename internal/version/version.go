// Package version compares release versions and checks GitHub for newer
// ethdeploy releases.
package version

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Defaults for the release checker.
const (
	DefaultBaseURL = "https://api.github.com"
	DefaultOwner   = "mrz1836"
	DefaultRepo    = "ethdeploy"
	DefaultTimeout = 10 * time.Second

	maxErrorBodySize    = 1024
	maxResponseBodySize = 64 * 1024
	maxAttempts         = 3
)

var (
	// ErrReleaseAPI indicates the release endpoint answered with an error.
	ErrReleaseAPI = errors.New("release API request failed")

	// ErrInvalidRepository indicates an empty or malformed owner/repo pair.
	ErrInvalidRepository = errors.New("invalid owner/repo")
)

var repoNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// Release is the subset of a GitHub release used by the checker.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
	HTMLURL     string    `json:"html_url"`
}

// Info reports how the running version relates to the latest release.
type Info struct {
	Current string `json:"current"`
	Latest  string `json:"latest"`
	URL     string `json:"url,omitempty"`
	IsNewer bool   `json:"update_available"`
}

// Checker fetches the latest release of a repository.
type Checker struct {
	baseURL   string
	owner     string
	repo      string
	client    *http.Client
	userAgent string
	retries   uint64
}

// Option configures a Checker.
type Option func(*Checker)

// WithBaseURL points the checker at another API host.
func WithBaseURL(url string) Option {
	return func(c *Checker) { c.baseURL = strings.TrimSuffix(url, "/") }
}

// WithRepository selects the repository to check.
func WithRepository(owner, repo string) Option {
	return func(c *Checker) { c.owner, c.repo = owner, repo }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Checker) { c.client = client }
}

// WithRetries sets how many times a failed request is retried.
func WithRetries(n uint64) Option {
	return func(c *Checker) { c.retries = n }
}

// NewChecker creates a release checker for the ethdeploy repository.
func NewChecker(current string, opts ...Option) *Checker {
	c := &Checker{
		baseURL:   DefaultBaseURL,
		owner:     DefaultOwner,
		repo:      DefaultRepo,
		client:    &http.Client{Timeout: DefaultTimeout},
		userAgent: fmt.Sprintf("ethdeploy/%s (%s/%s)", NormalizeVersion(current), runtime.GOOS, runtime.GOARCH),
		retries:   maxAttempts - 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Latest fetches the latest published release. Server errors and transport
// failures are retried with exponential backoff; client errors are not.
func (c *Checker) Latest(ctx context.Context) (*Release, error) {
	if c.owner == "" || c.repo == "" ||
		!repoNamePattern.MatchString(c.owner) || !repoNamePattern.MatchString(c.repo) {
		return nil, fmt.Errorf("%w: %q/%q", ErrInvalidRepository, c.owner, c.repo)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, c.owner, c.repo)
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.retries), ctx)

	return backoff.RetryWithData(func() (*Release, error) {
		return c.fetch(ctx, url)
	}, policy)
}

func (c *Checker) fetch(ctx context.Context, url string) (*Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.client.Do(req) //nolint:gosec // G107: URL is built from the configured API host
	if err != nil {
		return nil, fmt.Errorf("fetching release: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		apiErr := fmt.Errorf("%w: status %d: %s", ErrReleaseAPI, resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode < http.StatusInternalServerError {
			return nil, backoff.Permanent(apiErr)
		}
		return nil, apiErr
	}

	var release Release
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBodySize)).Decode(&release); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decoding release: %w", err))
	}
	return &release, nil
}

// Check compares current against the latest release.
func (c *Checker) Check(ctx context.Context, current string) (*Info, error) {
	release, err := c.Latest(ctx)
	if err != nil {
		return nil, err
	}
	return &Info{
		Current: current,
		Latest:  release.TagName,
		URL:     release.HTMLURL,
		IsNewer: IsNewerVersion(current, release.TagName),
	}, nil
}

// CompareVersions returns 1, 0 or -1 as v1 is newer than, equal to or older
// than v2. Development builds and commit hashes sort before every release.
func CompareVersions(v1, v2 string) int {
	dev1, dev2 := isDevelopment(v1), isDevelopment(v2)
	switch {
	case dev1 && dev2:
		return 0
	case dev1:
		return -1
	case dev2:
		return 1
	}

	p1, p2 := parseVersion(v1), parseVersion(v2)
	for i := range 3 {
		if p1[i] != p2[i] {
			if p1[i] > p2[i] {
				return 1
			}
			return -1
		}
	}
	return 0
}

// IsNewerVersion reports whether latest is newer than current.
func IsNewerVersion(current, latest string) bool {
	return CompareVersions(latest, current) > 0
}

// NormalizeVersion strips whitespace, leading v's and any pre-release or
// build suffix.
func NormalizeVersion(v string) string {
	v = strings.TrimLeft(strings.TrimSpace(v), "v")
	if i := strings.IndexAny(v, "-+"); i != -1 {
		v = v[:i]
	}
	return v
}

func isDevelopment(v string) bool {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	return v == "" || v == "dev" || isCommitHash(v)
}

// parseVersion returns major, minor and patch; missing or malformed parts are zero.
func parseVersion(v string) [3]int {
	var out [3]int
	for i, part := range strings.SplitN(NormalizeVersion(v), ".", 3) {
		if n, err := strconv.Atoi(part); err == nil {
			out[i] = n
		}
	}
	return out
}

// isCommitHash reports whether s looks like a short or full git SHA. At least
// one hex letter is required so that numeric versions are not mistaken for one.
func isCommitHash(s string) bool {
	s = strings.TrimSuffix(s, "-dirty")
	if len(s) < 7 || len(s) > 40 {
		return false
	}
	hasLetter := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F'):
			hasLetter = true
		default:
			return false
		}
	}
	return hasLetter
}
