package library

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

// containerDoc is the subset of META-INF/container.xml we need: where the
// OPF package document lives inside the archive.
type containerDoc struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

// packageDoc is the subset of the OPF package metadata we need. Local names
// only; encoding/xml matches them regardless of the dc/opf namespaces.
type packageDoc struct {
	Metadata struct {
		Identifiers []string `xml:"identifier"`
		Titles      []string `xml:"title"`
		Metas       []struct {
			Property string `xml:"property,attr"`
			Value    string `xml:",chardata"`
		} `xml:"meta"`
	} `xml:"metadata"`
}

type epubMetadata struct {
	ID       string
	Title    string
	Modified time.Time
}

// readEpubMetadata extracts identifier, title and dcterms:modified from an
// EPUB's embedded package document. The file is self-describing; nothing is
// inferred from its name or mtime.
func readEpubMetadata(path string) (epubMetadata, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return epubMetadata{}, fmt.Errorf("not a readable zip archive: %w", err)
	}
	defer zr.Close()

	var container containerDoc
	if err := decodeZipXML(&zr.Reader, "META-INF/container.xml", &container); err != nil {
		return epubMetadata{}, err
	}
	if len(container.Rootfiles) == 0 || container.Rootfiles[0].FullPath == "" {
		return epubMetadata{}, fmt.Errorf("container.xml names no rootfile")
	}

	var pkg packageDoc
	if err := decodeZipXML(&zr.Reader, container.Rootfiles[0].FullPath, &pkg); err != nil {
		return epubMetadata{}, err
	}

	meta := epubMetadata{}
	for _, id := range pkg.Metadata.Identifiers {
		if id != "" {
			meta.ID = id
			break
		}
	}
	if meta.ID == "" {
		return epubMetadata{}, fmt.Errorf("package metadata has no identifier")
	}

	if len(pkg.Metadata.Titles) > 0 {
		meta.Title = pkg.Metadata.Titles[0]
	}

	for _, m := range pkg.Metadata.Metas {
		if m.Property == "dcterms:modified" {
			modified, err := time.Parse(time.RFC3339, m.Value)
			if err != nil {
				return epubMetadata{}, fmt.Errorf("invalid dcterms:modified %q: %w", m.Value, err)
			}
			meta.Modified = modified
			break
		}
	}
	if meta.Modified.IsZero() {
		return epubMetadata{}, fmt.Errorf("package metadata has no dcterms:modified")
	}

	return meta, nil
}

func decodeZipXML(zr *zip.Reader, name string, v any) error {
	f, err := zr.Open(name)
	if err != nil {
		return fmt.Errorf("missing %s: %w", name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if err := xml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	return nil
}
