// Package ci follows GitHub Actions runs until they complete and submits
// their outcome as build reports.
package ci

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stupid-simple/pkgledger/links"
)

const (
	DefaultTimeout = 10 * time.Second
	apiVersion     = "2022-11-28"

	StatusCompleted   = "completed"
	ConclusionSuccess = "success"
)

// RunStatus is the part of a workflow run the watcher cares about.
type RunStatus struct {
	ID         int64  `json:"id"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	HeadSHA    string `json:"head_sha"`
	HTMLURL    string `json:"html_url"`
}

func (s RunStatus) Completed() bool {
	return s.Status == StatusCompleted
}

func (s RunStatus) Succeeded() bool {
	return s.Completed() && s.Conclusion == ConclusionSuccess
}

// Client queries the actions API. An empty token sends unauthenticated
// requests, which GitHub rate limits heavily.
type Client struct {
	client  *resty.Client
	token   string
	timeout time.Duration
}

func NewClient(client *resty.Client, token string) *Client {
	if client == nil {
		client = resty.New()
	}
	return &Client{
		client:  client,
		token:   token,
		timeout: DefaultTimeout,
	}
}

// RunStatus fetches the workflow run id of the repository whose tree is
// browsable at gh.
func (c *Client) RunStatus(ctx context.Context, gh, runID string) (*RunStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("X-GitHub-Api-Version", apiVersion).
		SetResult(&RunStatus{})
	if c.token != "" {
		req.SetAuthToken(c.token)
	}

	url := links.RunAPIURL(gh, runID)
	resp, err := req.Get(url)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, &StatusError{URL: url, Code: resp.StatusCode()}
	}
	return resp.Result().(*RunStatus), nil
}

type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}
