package server

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/stupid-simple/pkgledger/database"
	"github.com/stupid-simple/pkgledger/fileutils"
	"github.com/stupid-simple/pkgledger/links"
	"github.com/stupid-simple/pkgledger/tracker"
)

func (h *handlers) listRepositories(c *fiber.Ctx) error {
	repos, err := h.db.ListRepositories(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(repos)
}

func (h *handlers) getRepository(c *fiber.Ctx) error {
	repo, err := h.db.GetRepository(c.UserContext(), c.Params("name"))
	if err != nil {
		return err
	}
	return c.JSON(repo)
}

type repositoryBody struct {
	Link string `json:"link"`
	Gh   string `json:"gh"`
}

func (h *handlers) putRepository(c *fiber.Ctx) error {
	var body repositoryBody
	if err := c.BodyParser(&body); err != nil {
		return validation("invalid body: %v", err)
	}
	outcome, err := h.db.PutRepository(c.UserContext(), database.Repository{
		Name: c.Params("name"),
		Link: body.Link,
		Gh:   body.Gh,
	})
	if err != nil {
		return err
	}
	return c.SendStatus(upsertStatus(outcome))
}

func (h *handlers) deleteRepository(c *fiber.Ctx) error {
	if err := h.db.DeleteRepository(c.UserContext(), c.Params("name")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) listPackages(c *fiber.Ctx) error {
	opts := []database.ListOption{}
	if n := c.Query("n"); n != "" {
		limit, err := strconv.Atoi(n)
		if err != nil {
			return validation("invalid n %q", n)
		}
		opts = append(opts, database.WithListLimit(limit))
	}
	if off := c.Query("offset"); off != "" {
		offset, err := strconv.Atoi(off)
		if err != nil {
			return validation("invalid offset %q", off)
		}
		opts = append(opts, database.WithListOffset(offset))
	}
	sort, err := database.ParseSort(c.Query("order"))
	if err != nil {
		return err
	}
	opts = append(opts, database.WithListSort(sort))

	pkgs, err := h.db.ListPackages(c.UserContext(), c.Params("repo"), opts...)
	if err != nil {
		return err
	}
	return c.JSON(pkgs)
}

func (h *handlers) getPackage(c *fiber.Ctx) error {
	pkg, err := h.db.GetPackage(c.UserContext(), c.Params("repo"), c.Params("name"))
	if err != nil {
		return err
	}
	return c.JSON(pkg)
}

type packageBody struct {
	Version string `json:"ver"`
	Release string `json:"rel"`
	Arch    string `json:"arch"`
	Dirs    string `json:"dirs"`
}

// putPackage registers a package directly, without a build.
func (h *handlers) putPackage(c *fiber.Ctx) error {
	var body packageBody
	if err := c.BodyParser(&body); err != nil {
		return validation("invalid body: %v", err)
	}
	if body.Version == "" || body.Release == "" || body.Arch == "" {
		return validation("ver, rel and arch are required")
	}

	ctx := c.UserContext()
	repo := c.Params("repo")
	if _, err := h.db.GetRepository(ctx, repo); err != nil {
		return err
	}
	key := database.PackageKey{Name: c.Params("name"), Repo: repo, Arch: body.Arch}
	outcome, err := h.db.UpsertPackage(ctx, key, body.Version, body.Release, body.Dirs)
	if err != nil {
		return err
	}
	return c.SendStatus(upsertStatus(outcome))
}

func (h *handlers) deletePackage(c *fiber.Ctx) error {
	ver, rel, arch := c.Query("ver"), c.Query("rel"), c.Query("arch")
	if ver == "" || rel == "" || arch == "" {
		return validation("ver, rel and arch are required")
	}
	key := database.PackageKey{Name: c.Params("name"), Repo: c.Params("repo"), Arch: arch}
	if err := h.db.DeletePackage(c.UserContext(), key, ver, rel); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) listBuilds(c *fiber.Ctx) error {
	builds, err := h.db.ListBuilds(c.UserContext(), c.Params("repo"), c.Params("name"))
	if err != nil {
		return err
	}
	return c.JSON(builds)
}

func (h *handlers) parseReport(c *fiber.Ctx) (tracker.Report, error) {
	var report tracker.Report
	if err := c.BodyParser(&report); err != nil {
		return report, validation("invalid body: %v", err)
	}
	report.Repository = c.Params("repo")
	report.Name = c.Params("name")
	return report, nil
}

func (h *handlers) submitBuild(c *fiber.Ctx) error {
	report, err := h.parseReport(c)
	if err != nil {
		return err
	}
	res, err := h.tracker.SubmitBuild(c.UserContext(), report)
	if err != nil {
		return err
	}
	if res.Outcome == tracker.Created {
		return c.Status(fiber.StatusCreated).JSON(res.Package)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) watchRun(c *fiber.Ctx) error {
	if h.watcher == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "CI run watching is not configured")
	}
	report, err := h.parseReport(c)
	if err != nil {
		return err
	}
	if err := h.watcher.Watch(c.UserContext(), report); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// discovery serves the reconciled view with a content hash as ETag.
func (h *handlers) discovery(c *fiber.Ctx) error {
	entries, err := h.reconciler.Reconcile(c.UserContext(), c.Params("repo"))
	if err != nil {
		return err
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	etag := `"` + fileutils.Digest(data) + `"`

	c.Set(fiber.HeaderETag, etag)
	if c.Get(fiber.HeaderIfNoneMatch) == etag {
		return c.SendStatus(fiber.StatusNotModified)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(data)
}

func (h *handlers) redirectSource(c *fiber.Ctx) error {
	repo, pkg, err := h.lookup(c)
	if err != nil {
		return err
	}
	return c.Redirect(links.SourceURL(repo.Gh, pkg.Dirs), fiber.StatusFound)
}

func (h *handlers) redirectRecipe(c *fiber.Ctx) error {
	repo, pkg, err := h.lookup(c)
	if err != nil {
		return err
	}
	return c.Redirect(links.RecipeURL(repo.Gh, pkg.Dirs), fiber.StatusFound)
}

// redirectSpec follows the recipe of a package to its RPM spec file.
func (h *handlers) redirectSpec(c *fiber.Ctx) error {
	repo, pkg, spec, err := h.spec(c)
	if err != nil {
		return err
	}
	return c.Redirect(links.SpecURL(repo.Gh, pkg.Dirs, spec), fiber.StatusFound)
}

func (h *handlers) redirectRawSpec(c *fiber.Ctx) error {
	repo, pkg, spec, err := h.spec(c)
	if err != nil {
		return err
	}
	return c.Redirect(links.RawSpecURL(repo.Gh, pkg.Dirs, spec), fiber.StatusFound)
}

func (h *handlers) spec(c *fiber.Ctx) (*database.Repository, *database.Package, string, error) {
	if h.recipes == nil {
		return nil, nil, "", fiber.NewError(fiber.StatusNotImplemented, "recipe lookups are not configured")
	}
	repo, pkg, err := h.lookup(c)
	if err != nil {
		return nil, nil, "", err
	}
	r, err := h.recipes.Load(c.UserContext(), links.RawRecipeURL(repo.Gh, pkg.Dirs))
	if err != nil {
		return nil, nil, "", err
	}
	return repo, pkg, r.Spec, nil
}

func (h *handlers) lookup(c *fiber.Ctx) (*database.Repository, *database.Package, error) {
	ctx := c.UserContext()
	repo, err := h.db.GetRepository(ctx, c.Params("repo"))
	if err != nil {
		return nil, nil, err
	}
	pkg, err := h.db.GetPackage(ctx, repo.Name, c.Params("name"))
	if err != nil {
		return nil, nil, err
	}
	return repo, pkg, nil
}

func upsertStatus(outcome database.UpsertOutcome) int {
	if outcome == database.Inserted {
		return fiber.StatusCreated
	}
	return fiber.StatusNoContent
}
