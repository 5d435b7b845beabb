// Package reader turns local documents into the plain text the ingestion endpoint expects.
package reader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv/v2"

	"graphrag/internal/domain"
)

var plainExts = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".csv": true, ".json": true, ".log": true,
}

var convertExts = map[string]bool{
	".pdf": true, ".docx": true, ".doc": true, ".odt": true, ".rtf": true,
	".xml": true, ".html": true, ".htm": true, ".pages": true,
}

// Reader loads plain text files directly and converts office/PDF formats with docconv.
type Reader struct {
	convert func(path string) (string, error)
}

// New returns a Reader backed by docconv.
func New() *Reader {
	return &Reader{convert: convertPath}
}

// CanRead reports whether the extension of path is a known document type. Load accepts more.
func (r *Reader) CanRead(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return plainExts[ext] || convertExts[ext]
}

// Load reads path and returns its text. Converted documents get a ".txt" suffix on their name.
func (r *Reader) Load(path string) (domain.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	name := filepath.Base(path)

	switch {
	case plainExts[ext]:
		buf, err := os.ReadFile(path)
		if err != nil {
			return domain.Document{}, fmt.Errorf("reading text file: %w", err)
		}
		if !utf8.Valid(buf) {
			return domain.Document{}, fmt.Errorf("%s is not valid UTF-8 text", name)
		}
		return domain.Document{Path: path, Name: name, Content: string(buf)}, nil
	case convertExts[ext]:
		text, err := r.convert(path)
		if err != nil {
			return domain.Document{}, err
		}
		return domain.Document{Path: path, Name: name + ".txt", Content: text}, nil
	default:
		// Unknown extensions are sent as-is when they hold text, otherwise docconv gets a try.
		buf, err := os.ReadFile(path)
		if err != nil {
			return domain.Document{}, fmt.Errorf("reading file: %w", err)
		}
		if utf8.Valid(buf) {
			return domain.Document{Path: path, Name: name, Content: string(buf)}, nil
		}
		text, err := r.convert(path)
		if err != nil {
			return domain.Document{}, fmt.Errorf("unsupported file type %q: %w", ext, err)
		}
		return domain.Document{Path: path, Name: name + ".txt", Content: text}, nil
	}
}

func convertPath(path string) (string, error) {
	res, err := docconv.ConvertPath(path)
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	return res.Body, nil
}
