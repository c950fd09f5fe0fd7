package stats

import (
	"github.com/soyunomas/dupescan/internal/entities"
)

// Statistics son los números agregados que recibe el reporte.
type Statistics struct {
	TotalFilesScanned    int    `json:"total_files_scanned"`
	TotalSizeGroups      int    `json:"total_size_groups"`
	TotalDuplicateGroups int    `json:"total_duplicate_groups"`
	TotalDuplicateFiles  int    `json:"total_duplicate_files"`
	TotalWastedSpace     uint64 `json:"total_wasted_space"`
}

// Calculate resume el resultado del pipeline.
// Espacio desperdiciado = Σ tamaño × (miembros − 1).
func Calculate(groups entities.DuplicateSet, filesScanned, sizeGroups int) Statistics {
	s := Statistics{
		TotalFilesScanned:    filesScanned,
		TotalSizeGroups:      sizeGroups,
		TotalDuplicateGroups: len(groups),
	}
	for _, g := range groups {
		s.TotalDuplicateFiles += int(g.Count)
		if g.Count > 1 {
			s.TotalWastedSpace += Wasted(g)
		}
	}
	return s
}

// Wasted es el espacio recuperable de un grupo.
func Wasted(g *entities.DuplicateGroup) uint64 {
	if g.Count < 2 || g.Size <= 0 {
		return 0
	}
	return uint64(g.Size) * uint64(g.Count-1)
}
