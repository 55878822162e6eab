// Package export renders stored partitions into formats other tools read.
package export

import (
	"io"
	"sort"

	"github.com/repolens/repolens/internal/github"
)

// ExportData is passed to every Exporter.
type ExportData struct {
	Repo   github.Repo
	Entity github.Entity
	Year   int
	Items  []github.Item
}

// Exporter writes ExportData to w in a specific format.
type Exporter interface {
	Export(w io.Writer, data ExportData) error
	// Ext is the file extension used when writing to a directory.
	Ext() string
}

// registry maps format names to Exporter implementations.
var registry = map[string]Exporter{
	"jsonl":    &JSONLExporter{},
	"json":     &JSONExporter{},
	"markdown": &MarkdownExporter{},
}

// Get returns the Exporter registered under name, and whether it was found.
func Get(name string) (Exporter, bool) {
	e, ok := registry[name]
	return e, ok
}

// ValidFormats returns the supported export format names, sorted.
func ValidFormats() []string {
	formats := make([]string, 0, len(registry))
	for k := range registry {
		formats = append(formats, k)
	}
	sort.Strings(formats)
	return formats
}
