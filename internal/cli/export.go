package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/repolens/repolens/internal/export"
	"github.com/repolens/repolens/internal/github"
)

func newExportCmd(e *env) *cobra.Command {
	var (
		entity string
		year   int
		format string
		outDir string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored partitions as JSON lines, JSON or markdown",
		Long: fmt.Sprintf(`Render stored partitions of one entity for use outside repolens.

Without --dir the partition is written to stdout and --year is required.
With --dir every stored year (or only --year) is written to
<dir>/<entity>_<year><ext>.

Formats: %s`, strings.Join(export.ValidFormats(), ", ")),
		RunE: func(cmd *cobra.Command, args []string) error {
			if e.cfg.Crawl.Owner == "" || e.cfg.Crawl.Repo == "" {
				return fmt.Errorf("repository owner and name are required (--repo owner/name)")
			}
			exporter, ok := export.Get(format)
			if !ok {
				return fmt.Errorf("unknown format %q (valid: %s)", format, strings.Join(export.ValidFormats(), ", "))
			}
			if entity == "" {
				entity = e.cfg.Crawl.Entity
			}
			kind, err := github.ParseEntity(entity)
			if err != nil {
				return err
			}
			if outDir == "" && year == 0 {
				return fmt.Errorf("--year is required when writing to stdout")
			}

			store := e.newStore()
			refs, err := store.Partitions()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			written := 0
			for _, ref := range refs {
				if ref.Entity != kind || (year != 0 && ref.Year != year) {
					continue
				}
				items, err := store.Read(ctx, ref.Entity, ref.Year)
				if err != nil {
					return err
				}
				data := export.ExportData{Repo: e.cfg.Repo(), Entity: ref.Entity, Year: ref.Year, Items: items}

				if outDir == "" {
					return exporter.Export(cmd.OutOrStdout(), data)
				}
				path := filepath.Join(outDir, fmt.Sprintf("%s_%d%s", ref.Entity, ref.Year, exporter.Ext()))
				if err := writeExport(path, exporter, data); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d items)\n", path, len(items))
				written++
			}
			if written == 0 {
				return fmt.Errorf("no stored %s partition matches", kind)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&entity, "entity", "", "entity to export: issues, prs or commit")
	cmd.Flags().IntVar(&year, "year", 0, "only this year")
	cmd.Flags().StringVar(&format, "format", "jsonl", "output format")
	cmd.Flags().StringVar(&outDir, "dir", "", "write one file per year into this directory")
	return cmd
}

func writeExport(path string, exporter export.Exporter, data export.ExportData) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export: mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	if err := exporter.Export(f, data); err != nil {
		f.Close()
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	return f.Close()
}
