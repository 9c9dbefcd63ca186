package artifacts

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/go-appsec/mockrec/mockrec/cliutil"
	"github.com/go-appsec/mockrec/mockrec/config"
	"github.com/go-appsec/mockrec/mockrec/logging"
	"github.com/go-appsec/mockrec/mockrec/service/sanitize"
	"github.com/go-appsec/mockrec/mockrec/service/store"
)

func openStore(cfg *config.Config) (*store.ArtifactStore, store.Storage) {
	storage := store.NewFileStorage(cfg.MockDir)
	return store.NewArtifactStore(cfg.MockDir, storage, sanitize.New(cfg.SanitizerOptions(), nil), logging.Discard()), storage
}

// entry is one row of `artifacts list`.
type entry struct {
	Path       string    `json:"path"`
	Method     string    `json:"method,omitempty"`
	URL        string    `json:"url,omitempty"`
	Status     int       `json:"status,omitempty"`
	RecordedAt time.Time `json:"recordedAt,omitzero"`
	Error      string    `json:"error,omitempty"`
}

func readEntries(cfg *config.Config) ([]entry, error) {
	artifacts, storage := openStore(cfg)
	paths, err := artifacts.List()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", cfg.MockDir, err)
	}

	entries := make([]entry, 0, len(paths))
	for _, rel := range paths {
		e := entry{Path: rel}
		a, err := storage.ReadArtifact(filepath.Join(cfg.MockDir, filepath.FromSlash(rel)))
		if err != nil {
			e.Error = err.Error()
		} else if a != nil {
			e.Method, e.URL, e.Status, e.RecordedAt = a.Method, a.URL, a.Status, a.RecordedAt
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func list(w io.Writer, cfg *config.Config, asJSON bool) error {
	entries, err := readEntries(cfg)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	} else if len(entries) == 0 {
		cliutil.NoResults(w, "No artifacts found in "+cfg.MockDir+".")
		cliutil.HintCommand(w, "To record", "mockrec serve --mode record")
		return nil
	}

	t := cliutil.NewTable(w)
	t.AppendHeader(table.Row{"Path", "Method", "URL", "Status", "Recorded"})
	if cliutil.IsTerminal(w) {
		t.SetRowPainter(cliutil.StatusRowPainter(3)) // status is column index 3
	}
	for _, e := range entries {
		if e.Error != "" {
			t.AppendRow(table.Row{e.Path, "", "unreadable: " + e.Error, "", ""})
			continue
		}
		var recorded string
		if !e.RecordedAt.IsZero() {
			recorded = e.RecordedAt.Format(time.RFC3339)
		}
		t.AppendRow(table.Row{e.Path, e.Method, e.URL, e.Status, recorded})
	}
	t.Render()
	cliutil.Summary(w, len(entries), "artifact", "artifacts")
	return nil
}

func clearAll(w io.Writer, cfg *config.Config) error {
	artifacts, _ := openStore(cfg)
	paths, err := artifacts.List()
	if err != nil {
		return fmt.Errorf("list %s: %w", cfg.MockDir, err)
	}
	if err := artifacts.ClearAll(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "Removed %d artifacts from %s\n", len(paths), cfg.MockDir)
	return nil
}

func preload(w io.Writer, cfg *config.Config) error {
	artifacts, _ := openStore(cfg)
	paths, err := artifacts.List()
	if err != nil {
		return fmt.Errorf("list %s: %w", cfg.MockDir, err)
	}
	loaded, err := artifacts.Preload()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "Loaded %d of %d artifacts from %s\n", loaded, len(paths), cfg.MockDir)
	if skipped := len(paths) - loaded; skipped > 0 {
		cliutil.HintCommand(w, fmt.Sprintf("%d unreadable, inspect with", skipped), "mockrec artifacts list")
	}
	return nil
}
