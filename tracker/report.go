package tracker

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/stupid-simple/pkgledger/errkind"
)

// Report is the outcome of one CI build, as submitted by the build system.
type Report struct {
	Repository string `json:"-"`
	Name       string `json:"-"`
	Version    string `json:"ver"`
	Release    string `json:"rel"`
	Arch       string `json:"arch"`
	BuildID    string `json:"id"`
	Dirs       string `json:"dirs"`
	Commit     string `json:"commit"`
	Succeeded  bool   `json:"succ"`
}

// Validate checks the required fields. Dirs and Commit are optional.
func (r *Report) Validate() error {
	const op = "validate report"

	r.Dirs = strings.TrimRight(r.Dirs, "/")
	missing := []string{}
	for _, f := range []struct {
		name  string
		value string
	}{
		{"repository", r.Repository},
		{"name", r.Name},
		{"version", r.Version},
		{"release", r.Release},
		{"arch", r.Arch},
		{"build id", r.BuildID},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return errkind.New(errkind.Validation, op, "missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func (r Report) MarshalZerologObject(e *zerolog.Event) {
	e.Str("repo", r.Repository).
		Str("name", r.Name).
		Str("version", r.Version).
		Str("release", r.Release).
		Str("arch", r.Arch).
		Str("build_id", r.BuildID).
		Bool("succeeded", r.Succeeded)
	if r.Dirs != "" {
		e.Str("dirs", r.Dirs)
	}
	if r.Commit != "" {
		e.Str("commit", r.Commit)
	}
}
