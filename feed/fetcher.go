package feed

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/stupid-simple/pkgledger/errkind"
)

const (
	DefaultTimeout = 60 * time.Second
	DefaultMaxSize = 512 << 20
)

// Fetcher downloads and decodes the upstream index of a repository. It holds
// no state between calls.
type Fetcher struct {
	client   *resty.Client
	suffixes []string
	maxSize  int64
	timeout  time.Duration
	logger   zerolog.Logger
}

type Option func(*Fetcher)

// Use a shared HTTP client.
func WithHTTPClient(client *resty.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// Bound a whole fetch, both documents included.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = timeout
	}
}

// Accept primary index artifacts ending in any of suffixes.
func WithSuffixes(suffixes ...string) Option {
	return func(f *Fetcher) {
		if len(suffixes) > 0 {
			f.suffixes = suffixes
		}
	}
}

// Cap the decompressed size of the primary index.
func WithMaxSize(maxSize int64) Option {
	return func(f *Fetcher) {
		f.maxSize = maxSize
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		suffixes: []string{DefaultSuffix},
		maxSize:  DefaultMaxSize,
		timeout:  DefaultTimeout,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = resty.New()
	}
	return f
}

// Fetch reads <link>/repodata/repomd.xml, locates the primary index, and
// returns its packages keyed by name, version, release and arch.
func (f *Fetcher) Fetch(ctx context.Context, link string) (Index, error) {
	const op = "fetch feed"

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	link = strings.TrimRight(link, "/")
	logger := f.logger.With().Str("link", link).Logger()
	startTime := time.Now()

	descriptor, err := f.get(ctx, link+"/"+DescriptorPath)
	if err != nil {
		return nil, errkind.Wrap(errkind.FeedUnavailable, op, err)
	}
	href, err := FindArtifact(descriptor, f.suffixes)
	_ = descriptor.Close()
	if err != nil {
		return nil, errkind.Wrap(errkind.FeedMalformed, op, err)
	}
	logger.Debug().Str("href", href).Msg("found primary index")

	artifact, err := f.get(ctx, artifactURL(link, href))
	if err != nil {
		return nil, errkind.Wrap(errkind.FeedUnavailable, op, err)
	}
	defer func() {
		_ = artifact.Close()
	}()

	r, err := Decompress(artifact, href, f.maxSize)
	if err != nil {
		return nil, errkind.Wrap(errkind.FeedMalformed, op, err)
	}
	defer func() {
		_ = r.Close()
	}()

	index, err := ParsePrimary(r)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errkind.Wrap(errkind.FeedUnavailable, op, err)
		}
		return nil, errkind.Wrap(errkind.FeedMalformed, op, err)
	}

	logger.Info().
		Int("packages", len(index)).
		Float64("seconds", time.Since(startTime).Seconds()).
		Msg("fetched upstream index")
	return index, nil
}

func (f *Fetcher) get(ctx context.Context, url string) (io.ReadCloser, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	body := resp.RawBody()
	if code := resp.StatusCode(); code < 200 || code > 299 {
		if body != nil {
			_ = body.Close()
		}
		return nil, fmt.Errorf("GET %s: unexpected status %d", url, code)
	}
	return body, nil
}

func artifactURL(link, href string) string {
	if strings.Contains(href, "://") {
		return href
	}
	return link + "/" + strings.TrimLeft(href, "/")
}
