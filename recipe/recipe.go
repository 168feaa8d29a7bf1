// Package recipe reads the anda.hcl build recipes kept next to every package.
package recipe

import (
	"context"
	"net/http"
	"path"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/rs/zerolog"
	"github.com/stupid-simple/pkgledger/errkind"
)

const DefaultTimeout = 10 * time.Second

// Recipe holds the parts of a recipe the service links to.
type Recipe struct {
	Project string
	// Spec is the RPM spec file, relative to the package directory.
	Spec string
}

var (
	fileSchema = &hcl.BodySchema{
		Blocks: []hcl.BlockHeaderSchema{{Type: "project", LabelNames: []string{"name"}}},
	}
	projectSchema = &hcl.BodySchema{
		Blocks: []hcl.BlockHeaderSchema{{Type: "rpm"}},
	}
	rpmSchema = &hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{{Name: "spec", Required: true}},
	}
)

// Parse reads the first project of a recipe, by name, and its RPM spec.
// Attributes and blocks other than those are ignored.
func Parse(src []byte, filename string) (*Recipe, error) {
	const op = "parse recipe"

	file, diags := hclsyntax.ParseConfig(src, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, errkind.Wrap(errkind.FeedMalformed, op, diags)
	}
	content, _, diags := file.Body.PartialContent(fileSchema)
	if diags.HasErrors() {
		return nil, errkind.Wrap(errkind.FeedMalformed, op, diags)
	}
	if len(content.Blocks) == 0 {
		return nil, errkind.New(errkind.NotFound, op, "%s declares no project", filename)
	}

	projects := content.Blocks
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].Labels[0] < projects[j].Labels[0]
	})
	project := projects[0]

	body, _, diags := project.Body.PartialContent(projectSchema)
	if diags.HasErrors() {
		return nil, errkind.Wrap(errkind.FeedMalformed, op, diags)
	}
	if len(body.Blocks) == 0 {
		return nil, errkind.New(errkind.NotFound, op, "project %q has no rpm block", project.Labels[0])
	}

	rpm, _, diags := body.Blocks[0].Body.PartialContent(rpmSchema)
	if diags.HasErrors() {
		return nil, errkind.Wrap(errkind.FeedMalformed, op, diags)
	}
	var spec string
	if diags := gohcl.DecodeExpression(rpm.Attributes["spec"].Expr, nil, &spec); diags.HasErrors() {
		return nil, errkind.Wrap(errkind.FeedMalformed, op, diags)
	}
	return &Recipe{Project: project.Labels[0], Spec: spec}, nil
}

// Loader downloads and parses recipes.
type Loader struct {
	client  *resty.Client
	timeout time.Duration
	logger  zerolog.Logger
}

type Option func(*Loader)

func WithTimeout(timeout time.Duration) Option {
	return func(l *Loader) {
		l.timeout = timeout
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

func NewLoader(client *resty.Client, opts ...Option) *Loader {
	l := &Loader{
		client:  client,
		timeout: DefaultTimeout,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.client == nil {
		l.client = resty.New()
	}
	return l
}

// Load fetches the recipe at url. A missing recipe is NOT_FOUND, any other
// transport failure FEED_UNAVAILABLE.
func (l *Loader) Load(ctx context.Context, url string) (*Recipe, error) {
	const op = "load recipe"

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	resp, err := l.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, errkind.Wrap(errkind.FeedUnavailable, op, err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, errkind.New(errkind.NotFound, op, "no recipe at %s", url)
	case !resp.IsSuccess():
		return nil, errkind.New(errkind.FeedUnavailable, op, "GET %s: %s", url, resp.Status())
	}

	r, err := Parse(resp.Body(), path.Base(url))
	if err != nil {
		l.logger.Debug().Err(err).Str("url", url).Msg("unusable recipe")
		return nil, err
	}
	return r, nil
}
