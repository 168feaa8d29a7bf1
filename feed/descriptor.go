package feed

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DescriptorPath is where rpm-md repositories publish their descriptor.
const DescriptorPath = "repodata/repomd.xml"

// DefaultSuffix selects the gzip compressed primary index.
const DefaultSuffix = "primary.xml.gz"

var ErrNoArtifact = errors.New("no matching location in descriptor")

// FindArtifact returns the first <location href> of the descriptor that ends
// in one of suffixes.
func FindArtifact(r io.Reader, suffixes []string) (string, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode descriptor: %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "location" {
			continue
		}
		for _, attr := range se.Attr {
			if attr.Name.Local != "href" {
				continue
			}
			if hasAnySuffix(attr.Value, suffixes) {
				return attr.Value, nil
			}
		}
	}
	return "", fmt.Errorf("%w (suffixes %s)", ErrNoArtifact, strings.Join(suffixes, ", "))
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}
