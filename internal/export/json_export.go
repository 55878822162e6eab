package export

import (
	"encoding/json"
	"io"

	"github.com/repolens/repolens/internal/github"
)

// JSONLExporter writes one JSON object per item, in crawl order.
type JSONLExporter struct{}

func (e *JSONLExporter) Ext() string { return ".jsonl" }

func (e *JSONLExporter) Export(w io.Writer, data ExportData) error {
	enc := json.NewEncoder(w)
	for _, item := range data.Items {
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

// JSONExporter writes the partition as a single document with its metadata.
type JSONExporter struct{}

type jsonOutput struct {
	Repo   string        `json:"repo"`
	Entity github.Entity `json:"entity"`
	Year   int           `json:"year"`
	Count  int           `json:"count"`
	Items  []github.Item `json:"items"`
}

func (e *JSONExporter) Ext() string { return ".json" }

func (e *JSONExporter) Export(w io.Writer, data ExportData) error {
	items := data.Items
	if items == nil {
		items = []github.Item{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonOutput{
		Repo:   data.Repo.String(),
		Entity: data.Entity,
		Year:   data.Year,
		Count:  len(items),
		Items:  items,
	})
}
