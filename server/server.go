// Package server exposes the catalog, the build ledger and the discovery view
// over HTTP.
package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stupid-simple/pkgledger/database"
	"github.com/stupid-simple/pkgledger/recipe"
	"github.com/stupid-simple/pkgledger/reconcile"
	"github.com/stupid-simple/pkgledger/tracker"
)

type BuildTracker interface {
	SubmitBuild(ctx context.Context, report tracker.Report) (*tracker.Result, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, repo string) ([]reconcile.DiscoveryEntry, error)
}

type RunWatcher interface {
	Watch(ctx context.Context, report tracker.Report) error
}

type RecipeLoader interface {
	Load(ctx context.Context, url string) (*recipe.Recipe, error)
}

const DefaultStoreTimeout = 30 * time.Second

type Params struct {
	DB         *database.Database
	Tracker    BuildTracker
	Reconciler Reconciler
	// Watcher is optional, run watches answer 501 without it.
	Watcher RunWatcher
	// Recipes is optional, spec redirects answer 501 without it.
	Recipes RecipeLoader
	// Key verifies bearer tokens. Without it write routes are closed.
	Key []byte
	// StoreTimeout bounds routes that only talk to the database.
	StoreTimeout time.Duration
	Logger       zerolog.Logger
}

type handlers struct {
	db         *database.Database
	tracker    BuildTracker
	reconciler Reconciler
	watcher    RunWatcher
	recipes    RecipeLoader
}

// New builds the application with every route registered.
func New(params Params) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "pkgledger",
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
		BodyLimit:             1 << 20,
		Immutable:             true,
	})
	app.Use(requestLogger(params.Logger))

	h := &handlers{
		db:         params.DB,
		tracker:    params.Tracker,
		reconciler: params.Reconciler,
		watcher:    params.Watcher,
		recipes:    params.Recipes,
	}
	admin := AdminRequired(params.Key)
	timeout := params.StoreTimeout
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	// Submissions and discovery bound their own store and feed calls.
	store := storeTimeout(timeout)

	app.Get("/repos", store, h.listRepositories)
	app.Get("/repos/:name", store, h.getRepository)
	app.Put("/repos/:name", admin, store, h.putRepository)
	app.Delete("/repos/:name", admin, store, h.deleteRepository)

	redirect := app.Group("/redirect", store)
	redirect.Get("/:repo/packages/:name", h.redirectSource)
	redirect.Get("/:repo/packages/:name/hcl", h.redirectRecipe)
	redirect.Get("/:repo/packages/:name/spec", h.redirectSpec)
	redirect.Get("/:repo/packages/:name/spec/raw", h.redirectRawSpec)

	app.Get("/:repo/discovery", h.discovery)
	app.Get("/:repo/packages", store, h.listPackages)
	app.Get("/:repo/packages/:name", store, h.getPackage)
	app.Put("/:repo/packages/:name", admin, store, h.putPackage)
	app.Delete("/:repo/packages/:name", admin, store, h.deletePackage)
	app.Get("/:repo/builds/:name", store, h.listBuilds)
	app.Post("/:repo/builds/:name", admin, h.submitBuild)
	app.Post("/:repo/runs/:name", admin, store, h.watchRun)

	return app
}
