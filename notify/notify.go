// Package notify posts build failure messages to a chat webhook.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/stupid-simple/pkgledger/errkind"
	"github.com/stupid-simple/pkgledger/links"
)

const DefaultTimeout = 10 * time.Second

// Failure identifies a failed build.
type Failure struct {
	Repository string
	// Source is the repository's source tree link. It locates the CI run
	// page when no run base URL is configured.
	Source     string
	Directory  string
	Arch       string
	BuildID    string
}

type message struct {
	Content string `json:"content"`
}

// Dispatcher delivers failure messages to a single webhook endpoint. Delivery
// is best effort: errors are logged and never returned.
type Dispatcher struct {
	endpoint   string
	runBaseURL string
	client     *resty.Client
	timeout    time.Duration
	logger     zerolog.Logger
}

type Option func(*Dispatcher)

func WithHTTPClient(client *resty.Client) Option {
	return func(d *Dispatcher) {
		d.client = client
	}
}

// Base URL of CI run pages, the build id is appended to it.
func WithRunBaseURL(base string) Option {
	return func(d *Dispatcher) {
		d.runBaseURL = base
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

// NewDispatcher returns a dispatcher posting to endpoint. An empty endpoint
// disables delivery.
func NewDispatcher(endpoint string, logger zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		endpoint: endpoint,
		timeout:  DefaultTimeout,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.client == nil {
		d.client = resty.New()
	}
	return d
}

// Message renders the text posted for a failure.
func (d *Dispatcher) Message(f Failure) string {
	return fmt.Sprintf("Build failed: %s/%s (%s)\n%s",
		f.Repository, f.Directory, f.Arch, links.BuildURL(d.runBaseURL, f.Source, f.BuildID))
}

func (d *Dispatcher) NotifyFailure(ctx context.Context, f Failure) {
	if d.endpoint == "" {
		d.logger.Debug().Str("build_id", f.BuildID).Msg("webhook not configured, skipping notification")
		return
	}

	if err := d.deliver(ctx, f); err != nil {
		d.logger.Warn().
			Err(err).
			Str("repo", f.Repository).
			Str("build_id", f.BuildID).
			Msg("failed to deliver failure notification")
		return
	}
	d.logger.Debug().Str("repo", f.Repository).Str("build_id", f.BuildID).Msg("failure notification delivered")
}

func (d *Dispatcher) deliver(ctx context.Context, f Failure) error {
	const op = "notify failure"

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	resp, err := d.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(message{Content: d.Message(f)}).
		Post(d.endpoint)
	if err != nil {
		return errkind.Wrap(errkind.NotificationFailure, op, err)
	}
	if resp.IsError() {
		return errkind.New(errkind.NotificationFailure, op, "webhook answered %s", resp.Status())
	}
	return nil
}
