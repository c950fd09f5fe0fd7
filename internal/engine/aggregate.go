package engine

import (
	"github.com/sirupsen/logrus"
	"github.com/soyunomas/dupescan/internal/entities"
)

// Aggregate fusiona los resultados por worker en un único mapa
// digest -> archivos y descarta los digests con menos de 2 miembros.
//
// Los bucket son disjuntos por construcción (tamaños distintos nunca comparten
// grupo); aun así se vuelve a comprobar que ningún archivo aparezca bajo dos
// digests distintos y que no queden grupos de un solo archivo.
func Aggregate(parts []entities.DuplicateSet, log *logrus.Entry) entities.DuplicateSet {
	merged := make(entities.DuplicateSet)
	conflicts := make(map[string]struct{})
	for _, p := range parts {
		mergeInto(merged, p, conflicts)
	}

	// Mismo digest con tamaños distintos es una colisión del hash: ningún
	// miembro es confiable.
	for digest := range conflicts {
		log.WithField("digest", digest).Warn("Colisión de hash entre tamaños distintos, se descarta el grupo")
		delete(merged, digest)
	}

	owner := make(map[string]string)
	for digest, g := range merged {
		kept := g.Files[:0]
		for _, f := range g.Files {
			if prev, dup := owner[f.Path]; dup {
				log.WithFields(logrus.Fields{
					"path":   f.Path,
					"digest": digest,
					"first":  prev,
				}).Warn("Archivo repetido en dos grupos, se conserva el primero")
				continue
			}
			owner[f.Path] = digest
			kept = append(kept, f)
		}
		g.Files = kept
		g.Count = int64(len(kept))
	}

	for digest, g := range merged {
		if g.Count < 2 {
			delete(merged, digest)
		}
	}
	return merged
}

// mergeInto fusiona src en dst. Los digests que aparecen con tamaños
// distintos no se mezclan y quedan anotados en conflicts.
func mergeInto(dst, src entities.DuplicateSet, conflicts map[string]struct{}) {
	for digest, g := range src {
		cur, ok := dst[digest]
		if !ok {
			dst[digest] = g
			continue
		}
		if cur.Size != g.Size {
			conflicts[digest] = struct{}{}
			continue
		}
		cur.Merge(&g.FileGroup)
	}
}
