// Package feedtest serves rpm-md fixtures over HTTP for tests.
package feedtest

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klauspost/compress/gzip"
)

// PrimaryHref is the artifact location advertised by Descriptor.
const PrimaryHref = "repodata/abc-primary.xml.gz"

type Package struct {
	Name    string
	Version string
	Release string
	Arch    string
	Summary string
	License string
}

// Descriptor renders a repomd.xml pointing at href.
func Descriptor(href string) []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<repomd xmlns="http://linux.duke.edu/metadata/repo" xmlns:rpm="http://linux.duke.edu/metadata/rpm">` + "\n")
	b.WriteString(`  <revision>1700000000</revision>` + "\n")
	b.WriteString(`  <data type="filelists"><location href="repodata/abc-filelists.xml.gz"/></data>` + "\n")
	fmt.Fprintf(&b, `  <data type="primary"><location href=%q/></data>`+"\n", href)
	b.WriteString(`</repomd>` + "\n")
	return b.Bytes()
}

// Primary renders a primary.xml document.
func Primary(pkgs ...Package) []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&b, `<metadata xmlns="http://linux.duke.edu/metadata/common" xmlns:rpm="http://linux.duke.edu/metadata/rpm" packages="%d">`+"\n", len(pkgs))
	for _, p := range pkgs {
		b.WriteString(`<package type="rpm">`)
		b.WriteString(`<name>`)
		_ = xml.EscapeText(&b, []byte(p.Name))
		b.WriteString(`</name><arch>`)
		_ = xml.EscapeText(&b, []byte(p.Arch))
		fmt.Fprintf(&b, `</arch><version epoch="0" ver=%q rel=%q/>`, p.Version, p.Release)
		b.WriteString(`<summary>`)
		_ = xml.EscapeText(&b, []byte(p.Summary))
		b.WriteString(`</summary><format><rpm:license>`)
		_ = xml.EscapeText(&b, []byte(p.License))
		b.WriteString(`</rpm:license><rpm:provides><rpm:entry name="`)
		_ = xml.EscapeText(&b, []byte(p.Name))
		b.WriteString(`"/></rpm:provides></format></package>` + "\n")
	}
	b.WriteString(`</metadata>` + "\n")
	return b.Bytes()
}

// Gzip compresses data, splitting it into the given number of concatenated
// gzip members.
func Gzip(t testing.TB, data []byte, members int) []byte {
	t.Helper()
	if members < 1 {
		members = 1
	}
	var out bytes.Buffer
	chunk := (len(data) + members - 1) / members
	for i := 0; i < members; i++ {
		start := i * chunk
		end := min(start+chunk, len(data))
		if start > end {
			start = end
		}
		w := gzip.NewWriter(&out)
		if _, err := w.Write(data[start:end]); err != nil {
			t.Fatalf("gzip write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("gzip close: %v", err)
		}
	}
	return out.Bytes()
}

// NewServer serves files keyed by path (without leading slash). Missing paths
// answer 404.
func NewServer(t testing.TB, files map[string][]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path[1:]]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// NewRepository serves a complete repository holding pkgs, with the primary
// index gzip compressed in two members.
func NewRepository(t testing.TB, pkgs ...Package) *httptest.Server {
	t.Helper()
	return NewServer(t, map[string][]byte{
		"repodata/repomd.xml": Descriptor(PrimaryHref),
		PrimaryHref:           Gzip(t, Primary(pkgs...), 2),
	})
}
