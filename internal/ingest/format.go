package ingest

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Format is the declared type of a source.
type Format string

const (
	FormatText Format = "text"
	FormatCode Format = "code"
	FormatPDF  Format = "pdf"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
)

var extensions = map[string]Format{
	".txt":  FormatText,
	".py":   FormatCode,
	".java": FormatCode,
	".cpp":  FormatCode,
	".js":   FormatCode,
	".pdf":  FormatPDF,
	".csv":  FormatCSV,
	".html": FormatHTML,
	".htm":  FormatHTML,
}

// FormatFromName maps a file name to its Format by extension.
func FormatFromName(name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if f, ok := extensions[ext]; ok {
		return f, nil
	}
	if ext == "" {
		ext = "(none)"
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
}

// SupportedExtensions lists every recognised extension, sorted.
func SupportedExtensions() []string {
	out := make([]string, 0, len(extensions))
	for ext := range extensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
