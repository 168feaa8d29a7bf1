package feed

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

type primaryPackage struct {
	Name    string `xml:"name"`
	Arch    string `xml:"arch"`
	Version struct {
		Epoch string `xml:"epoch,attr"`
		Ver   string `xml:"ver,attr"`
		Rel   string `xml:"rel,attr"`
	} `xml:"version"`
	Summary string `xml:"summary"`
	License string `xml:"format>license"`
}

// ParsePrimary streams a primary.xml document into an Index. Packages are
// decoded one at a time so the whole document never sits in memory.
func ParsePrimary(r io.Reader) (Index, error) {
	dec := xml.NewDecoder(r)
	index := Index{}
	sawMetadata := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode primary: %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "metadata":
			sawMetadata = true
		case "package":
			var pkg primaryPackage
			if err := dec.DecodeElement(&pkg, &se); err != nil {
				return nil, fmt.Errorf("decode package: %w", err)
			}
			if pkg.Name == "" {
				continue
			}
			index[Key{
				Name:    pkg.Name,
				Version: pkg.Version.Ver,
				Release: pkg.Version.Rel,
				Arch:    pkg.Arch,
			}] = Meta{
				Summary: pkg.Summary,
				License: pkg.License,
			}
		}
	}

	if !sawMetadata {
		return nil, errors.New("decode primary: no <metadata> element")
	}
	return index, nil
}
