package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/soyunomas/dupescan/internal/engine"
	"github.com/spf13/afero"
)

// --- ESTRUCTURAS PARA EL REPORTE JSON ---

type ScanResults struct {
	TotalFilesScanned    int              `json:"total_files_scanned"`
	TotalSizeGroups      int              `json:"total_size_groups"`
	TotalDuplicateGroups int              `json:"total_duplicate_groups"`
	TotalDuplicateFiles  int              `json:"total_duplicate_files"`
	TotalWastedSpace     uint64           `json:"total_wasted_space"`
	ScanDurationSeconds  float64          `json:"scan_duration_seconds"`
	Groups               []DuplicateGroup `json:"groups"`
	Metadata             Metadata         `json:"metadata"`
}

type DuplicateGroup struct {
	Hash  string   `json:"hash"`
	Size  int64    `json:"size"`
	Files []string `json:"files"`
}

type Metadata struct {
	ScanID      string    `json:"scan_id"`
	ScannedPath string    `json:"scanned_path"`
	Timestamp   time.Time `json:"timestamp"`
	Interrupted bool      `json:"interrupted"`
}

// Build arma el documento JSON a partir del resultado.
func Build(res *engine.Result, scanID string, opts Options) ScanResults {
	views := prepare(res.Groups, opts)
	s := totals(views, res.Stats)

	out := ScanResults{
		TotalFilesScanned:    s.TotalFilesScanned,
		TotalSizeGroups:      s.TotalSizeGroups,
		TotalDuplicateGroups: s.TotalDuplicateGroups,
		TotalDuplicateFiles:  s.TotalDuplicateFiles,
		TotalWastedSpace:     s.TotalWastedSpace,
		ScanDurationSeconds:  res.Duration.Seconds(),
		Groups:               make([]DuplicateGroup, 0, len(views)),
		Metadata: Metadata{
			ScanID:      scanID,
			ScannedPath: res.Root,
			Timestamp:   time.Now(),
			Interrupted: res.Interrupted,
		},
	}
	for _, v := range views {
		g := DuplicateGroup{Hash: v.Digest, Size: v.Size}
		for _, f := range v.Files {
			g.Files = append(g.Files, f.Path)
		}
		out.Groups = append(out.Groups, g)
	}
	return out
}

// SaveJSON escribe el reporte en path (lo trunca si existe).
func SaveJSON(fsys afero.Fs, path string, res *engine.Result, scanID string, opts Options) error {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	data, err := json.MarshalIndent(Build(res, scanID, opts), "", "  ")
	if err != nil {
		return fmt.Errorf("serializando resultados: %w", err)
	}
	if err := afero.WriteFile(fsys, path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("escribiendo %s: %w", path, err)
	}
	return nil
}
