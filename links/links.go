// Package links builds the URLs published for packages and builds.
package links

import "strings"

// RecipeFile is the build recipe kept in every package directory.
const RecipeFile = "anda.hcl"

// SourceURL is the browsable source directory of a package.
func SourceURL(gh, dirs string) string {
	return join(gh, dirs)
}

// RecipeURL points at the recipe inside the package directory.
func RecipeURL(gh, dirs string) string {
	return join(gh, dirs, RecipeFile)
}

// RunURL is the human facing page of a CI run.
func RunURL(base, id string) string {
	return join(base, id)
}

// BuildURL points at the CI run of a build. Without a configured base the
// GitHub Actions page of the repository behind gh is used.
func BuildURL(base, gh, id string) string {
	if base != "" {
		return RunURL(base, id)
	}
	return join(repoRoot(gh), "actions", "runs", id)
}

// RunAPIURL maps a github.com tree link onto the actions API endpoint of a run,
// e.g. https://github.com/org/repo/tree/main -> https://api.github.com/repos/org/repo/actions/runs/<id>.
func RunAPIURL(gh, id string) string {
	repo := strings.Replace(repoRoot(gh), "github.com", "api.github.com/repos", 1)
	return join(repo, "actions", "runs", id)
}

// RawURL maps a github.com tree link onto raw.githubusercontent.com.
func RawURL(gh string) string {
	raw := strings.Replace(gh, "github.com", "raw.githubusercontent.com", 1)
	return strings.Replace(raw, "/tree/", "/", 1)
}

// RawRecipeURL is the plain text recipe of a package directory.
func RawRecipeURL(gh, dirs string) string {
	return join(RawURL(gh), dirs, RecipeFile)
}

// SpecURL points at a file named by the recipe, relative to the package
// directory. RawSpecURL is its plain text form.
func SpecURL(gh, dirs, spec string) string {
	return join(gh, dirs, spec)
}

func RawSpecURL(gh, dirs, spec string) string {
	return join(RawURL(gh), dirs, spec)
}

// repoRoot drops the /tree/<ref> suffix of a github.com link.
func repoRoot(gh string) string {
	if i := strings.Index(gh, "/tree/"); i >= 0 {
		return gh[:i]
	}
	return strings.TrimRight(gh, "/")
}

func join(parts ...string) string {
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = strings.TrimLeft(p, "/")
		}
		if i < len(parts)-1 {
			p = strings.TrimRight(p, "/")
		}
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, "/")
}
