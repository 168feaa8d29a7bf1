// Package feed reads the rpm-md metadata of an upstream package repository:
// the repomd.xml descriptor and the compressed primary package index it
// points to.
package feed

// Key identifies one package build in the upstream index.
type Key struct {
	Name    string
	Version string
	Release string
	Arch    string
}

// Meta is what the upstream index knows about a package that the catalog does not.
type Meta struct {
	Summary string
	License string
}

// Index is built fresh on every fetch.
type Index map[Key]Meta

func (i Index) Lookup(name, version, release, arch string) (Meta, bool) {
	m, ok := i[Key{Name: name, Version: version, Release: release, Arch: arch}]
	return m, ok
}
