package report

import (
	"errors"
	"io/fs"
	"sort"

	"github.com/soyunomas/dupescan/internal/entities"
	"github.com/soyunomas/dupescan/internal/stats"
	"github.com/spf13/afero"
)

type Options struct {
	Order      Order
	Color      bool
	Hyperlinks bool
	// Fs se usa para revalidar que los archivos siguen existiendo. nil = disco real.
	Fs afero.Fs
}

// groupView es un grupo listo para mostrar: sólo archivos que aún existen, ya ordenados.
type groupView struct {
	Digest    string
	Size      int64
	Files     []*entities.FileRef
	HardLinks map[string]bool
}

func (g groupView) wasted() uint64 {
	return uint64(g.Size) * uint64(len(g.Files)-1)
}

// prepare revalida la existencia de cada archivo (pudo borrarse después del
// escaneo), descarta grupos con menos de 2 supervivientes y ordena los grupos
// por espacio desperdiciado descendente.
func prepare(groups entities.DuplicateSet, opts Options) []groupView {
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	views := make([]groupView, 0, len(groups))
	for digest, g := range groups {
		var existing []*entities.FileRef
		for _, f := range g.Files {
			if _, err := fsys.Stat(f.Path); err != nil && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			existing = append(existing, f)
		}
		if len(existing) < 2 {
			continue
		}
		sortFiles(existing, opts.Order)

		v := groupView{Digest: digest, Size: g.Size, Files: existing}
		for i, f := range existing {
			for _, prev := range existing[:i] {
				if f.SameInode(prev) {
					if v.HardLinks == nil {
						v.HardLinks = make(map[string]bool)
					}
					v.HardLinks[f.Path] = true
					break
				}
			}
		}
		views = append(views, v)
	}

	sort.Slice(views, func(i, j int) bool {
		wi, wj := views[i].wasted(), views[j].wasted()
		if wi != wj {
			return wi > wj
		}
		return views[i].Digest < views[j].Digest
	})
	return views
}

// totals recalcula las estadísticas sobre lo que realmente se muestra.
func totals(views []groupView, base stats.Statistics) stats.Statistics {
	s := base
	s.TotalDuplicateGroups = len(views)
	s.TotalDuplicateFiles = 0
	s.TotalWastedSpace = 0
	for _, v := range views {
		s.TotalDuplicateFiles += len(v.Files)
		s.TotalWastedSpace += v.wasted()
	}
	return s
}
