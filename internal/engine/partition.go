package engine

import (
	"context"
	"fmt"

	"github.com/soyunomas/dupescan/internal/entities"
	"github.com/soyunomas/dupescan/internal/progress"
	"go.opentelemetry.io/otel/attribute"
)

// PartitionBySize agrupa los archivos por tamaño exacto.
//
// Los tamaños cero se excluyen y los buckets de un solo archivo se descartan.
// Se vuelve a leer la metadata de cada archivo: si desapareció o cambió de
// tamaño desde la recolección se descarta sin error. Con el token activado
// devuelve lo acumulado hasta ese momento.
func (e *Engine) PartitionBySize(ctx context.Context, refs []*entities.FileRef) entities.SizeBuckets {
	_, span := tracer.Start(ctx, "partition")
	defer span.End()

	counter := progress.NewCounter(e.sink, progress.PhasePartition, int64(len(refs)), checkEvery)

	// Un arena por worker, cada uno sobre un tramo contiguo
	chunks := split(refs, e.workers)
	arenas := make([]entities.SizeBuckets, len(chunks))
	fanOut(len(chunks), indexes(len(chunks)), func(_ int, c int) {
		arenas[c] = e.partitionChunk(chunks[c], counter)
	})

	buckets := mergeBuckets(arenas)
	for size, g := range buckets {
		if g.Count < 2 {
			delete(buckets, size)
		}
	}
	counter.Complete()

	span.SetAttributes(
		attribute.Int("files", len(refs)),
		attribute.Int("size_groups", len(buckets)),
	)
	return buckets
}

func (e *Engine) partitionChunk(refs []*entities.FileRef, counter *progress.Counter) entities.SizeBuckets {
	local := make(entities.SizeBuckets)
	for i, ref := range refs {
		if i%checkEvery == 0 && e.tok.IsSet() {
			break
		}
		counter.Inc()

		info, err := e.fs.Stat(ref.Path)
		if err != nil {
			e.drop("partition", ref.Path, err)
			continue
		}
		size := info.Size()
		if size != ref.Size {
			e.drop("partition", ref.Path, fmt.Errorf("el tamaño cambió de %d a %d", ref.Size, size))
			continue
		}
		if size == 0 {
			continue
		}

		key := uint64(size)
		g, ok := local[key]
		if !ok {
			g = &entities.FileGroup{}
			local[key] = g
		}
		g.Add(ref)
	}
	return local
}

// mergeBuckets es asociativo y conmutativo: el número de arenas no cambia el resultado.
func mergeBuckets(arenas []entities.SizeBuckets) entities.SizeBuckets {
	out := make(entities.SizeBuckets)
	for _, a := range arenas {
		for size, g := range a {
			if dst, ok := out[size]; ok {
				dst.Merge(g)
				continue
			}
			out[size] = g
		}
	}
	return out
}

func split(refs []*entities.FileRef, parts int) [][]*entities.FileRef {
	if len(refs) == 0 {
		return nil
	}
	parts = max(1, min(parts, len(refs)))
	step := (len(refs) + parts - 1) / parts
	out := make([][]*entities.FileRef, 0, parts)
	for lo := 0; lo < len(refs); lo += step {
		out = append(out, refs[lo:min(lo+step, len(refs))])
	}
	return out
}

func indexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
