package engine

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/soyunomas/dupescan/internal/entities"
	"github.com/soyunomas/dupescan/internal/progress"
	"go.opentelemetry.io/otel/attribute"
)

// progressEvery coalesce las actualizaciones del contador de hash completo.
const progressEvery = 100

// HashBuckets aplica el filtro en dos niveles a cada bucket de tamaño.
//
//	Fase A: hash de los primeros SampleSize bytes, se descartan subgrupos de 1.
//	Fase B: hash completo de los supervivientes, agrupado por digest.
//
// Los buckets se reparten entre workers y, dentro de cada bucket, los archivos
// se hashean en paralelo sobre el pool de I/O. Devuelve un mapa por bucket;
// Aggregate los fusiona.
func (e *Engine) HashBuckets(ctx context.Context, buckets entities.SizeBuckets) []entities.DuplicateSet {
	_, span := tracer.Start(ctx, "hash")
	defer span.End()

	// El total crece con los supervivientes de la fase A: sólo ellos reciben hash completo.
	counter := progress.NewCounter(e.sink, progress.PhaseHash, 0, progressEvery)
	e.hashProgress.Store(counter)

	// Buckets grandes primero: así el bucket más pesado no queda para el final.
	sizes := make([]uint64, 0, len(buckets))
	for size := range buckets {
		sizes = append(sizes, size)
	}
	sort.Slice(sizes, func(i, j int) bool {
		return buckets[sizes[i]].Count > buckets[sizes[j]].Count
	})

	// Cada worker guarda los resultados de sus buckets; Aggregate los fusiona
	arenas := make([][]entities.DuplicateSet, min(e.workers, max(1, len(sizes))))

	var skipped atomic.Int64
	fanOut(e.workers, sizes, func(w int, size uint64) {
		if e.tok.IsSet() {
			// Buckets sin empezar producen resultado vacío
			skipped.Add(1)
			return
		}
		if set := e.hashBucket(size, buckets[size], counter); len(set) > 0 {
			arenas[w] = append(arenas[w], set)
		}
	})
	counter.Complete()

	span.SetAttributes(
		attribute.Int("size_groups", len(sizes)),
		attribute.Int64("candidates", buckets.Candidates()),
		attribute.Int64("full_hashed", counter.Total()),
		attribute.Int64("skipped_groups", skipped.Load()),
	)
	var parts []entities.DuplicateSet
	for _, a := range arenas {
		parts = append(parts, a...)
	}
	return parts
}

// hashBucket procesa un bucket completo. Los archivos que fallan en cualquier
// fase desaparecen del resultado sin error.
func (e *Engine) hashBucket(size uint64, group *entities.FileGroup, counter *progress.Counter) entities.DuplicateSet {
	// --- FASE A: QUICK HASH ---
	quick := make([]string, len(group.Files))
	e.io.each(len(group.Files), func(i int) {
		d, err := e.hasher.QuickHash(group.Files[i].Path)
		if err != nil {
			e.drop("quick-hash", group.Files[i].Path, err)
			return
		}
		quick[i] = d
	})

	byQuick := make(map[string][]*entities.FileRef)
	for i, d := range quick {
		if d == "" {
			continue
		}
		byQuick[d] = append(byQuick[d], group.Files[i])
	}

	var survivors []*entities.FileRef
	var survivorQuick []string
	for d, refs := range byQuick {
		if len(refs) < 2 {
			continue
		}
		survivors = append(survivors, refs...)
		for range refs {
			survivorQuick = append(survivorQuick, d)
		}
	}
	if len(survivors) == 0 {
		return nil
	}
	counter.Grow(int64(len(survivors)))

	// --- FASE B: FULL HASH ---
	// Si el archivo cabe entero en la muestra, el quick hash ya es el hash completo
	// (mismo algoritmo, mismos bytes) y no hace falta volver a leerlo.
	wholeInSample := int64(size) <= e.hasher.SampleSize()

	full := make([]string, len(survivors))
	e.io.each(len(survivors), func(i int) {
		defer counter.Inc()
		if wholeInSample {
			full[i] = survivorQuick[i]
			return
		}
		d, err := e.hasher.FullHash(survivors[i].Path)
		if err != nil {
			e.drop("full-hash", survivors[i].Path, err)
			return
		}
		full[i] = d
	})

	out := make(entities.DuplicateSet)
	for i, d := range full {
		if d == "" {
			continue
		}
		g, ok := out[d]
		if !ok {
			g = &entities.DuplicateGroup{Digest: d, Size: int64(size)}
			out[d] = g
		}
		g.Add(survivors[i])
	}
	for d, g := range out {
		if g.Count < 2 {
			delete(out, d)
		}
	}
	return out
}
