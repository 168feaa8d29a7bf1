package database

import (
	"strings"

	"github.com/stupid-simple/pkgledger/errkind"
	"gorm.io/gorm/clause"
)

// SortColumn is a catalog column packages can be ordered by.
type SortColumn string

const (
	SortByName    SortColumn = "name"
	SortByVersion SortColumn = "version"
	SortByRelease SortColumn = "release"
	SortByArch    SortColumn = "arch"
	SortByDirs    SortColumn = "dirs"
)

// Only these names ever reach the ORDER BY clause.
var sortColumns = map[string]SortColumn{
	"name":    SortByName,
	"version": SortByVersion,
	"ver":     SortByVersion,
	"release": SortByRelease,
	"rel":     SortByRelease,
	"arch":    SortByArch,
	"dirs":    SortByDirs,
}

type Sort struct {
	Column SortColumn
	Desc   bool
}

var DefaultSort = Sort{Column: SortByName, Desc: true}

// ParseSort accepts "column", "column asc", "column desc" or "-column".
// An empty string yields DefaultSort.
func ParseSort(s string) (Sort, error) {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return DefaultSort, nil
	}
	if len(fields) > 2 {
		return Sort{}, errkind.New(errkind.Validation, "parse sort", "invalid sort %q", s)
	}

	name := fields[0]
	desc := false
	if strings.HasPrefix(name, "-") {
		if len(fields) > 1 {
			return Sort{}, errkind.New(errkind.Validation, "parse sort", "invalid sort %q", s)
		}
		name = name[1:]
		desc = true
	}
	if len(fields) == 2 {
		switch fields[1] {
		case "asc":
		case "desc":
			desc = true
		default:
			return Sort{}, errkind.New(errkind.Validation, "parse sort", "invalid sort direction %q", fields[1])
		}
	}

	col, ok := sortColumns[name]
	if !ok {
		return Sort{}, errkind.New(errkind.Validation, "parse sort", "cannot sort by %q", name)
	}
	return Sort{Column: col, Desc: desc}, nil
}

func (s Sort) String() string {
	if s.Desc {
		return string(s.Column) + " desc"
	}
	return string(s.Column) + " asc"
}

func (s Sort) orderBy() clause.OrderByColumn {
	col := s.Column
	if col == "" {
		col = DefaultSort.Column
	}
	return clause.OrderByColumn{Column: clause.Column{Name: string(col)}, Desc: s.Desc}
}
