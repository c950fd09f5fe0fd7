package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/soyunomas/dupescan/internal/entities"
	"github.com/soyunomas/dupescan/internal/hasher"
	"github.com/soyunomas/dupescan/internal/interrupt"
	"github.com/soyunomas/dupescan/internal/progress"
	"github.com/soyunomas/dupescan/internal/scanner"
	"github.com/soyunomas/dupescan/internal/stats"
	"go.opentelemetry.io/otel/attribute"
)

type Options struct {
	Scan    scanner.Config
	Hash    hasher.Options
	Workers int
}

// Result es lo que el pipeline entrega al reporte.
type Result struct {
	Root         string
	FilesScanned int
	SizeGroups   int
	Groups       entities.DuplicateSet
	Stats        stats.Statistics
	Duration     time.Duration
	Interrupted  bool
}

// Runner encadena recolección -> particionado -> hashing -> agregación.
type Runner struct {
	opts   Options
	engine *Engine
	tok    *interrupt.Token
	sink   progress.Sink
	log    *logrus.Entry
}

func NewRunner(opts Options, tok *interrupt.Token, sink progress.Sink, log *logrus.Entry) (*Runner, error) {
	if tok == nil {
		tok = interrupt.New()
	}
	if sink == nil {
		sink = progress.Nop
	}
	eng, err := New(nil, Config{Workers: opts.Workers, Hash: opts.Hash}, tok, sink, log)
	if err != nil {
		return nil, err
	}
	opts.Scan.Workers = eng.Workers()
	return &Runner{opts: opts, engine: eng, tok: tok, sink: sink, log: eng.log}, nil
}

// Engine expone el motor (p.ej. para consultar HashProgress).
func (r *Runner) Engine() *Engine {
	return r.engine
}

// Run ejecuta el pipeline completo sobre rootDir. Sólo devuelve error si la
// ruta es inválida o el recorrido falla de forma global; la cancelación
// devuelve un resultado parcial con Interrupted = true.
func (r *Runner) Run(ctx context.Context, rootDir string) (*Result, error) {
	start := time.Now()

	root, err := scanner.ValidateRoot(rootDir)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "run")
	defer span.End()

	r.log.WithField("path", root).Info("Iniciando escaneo de duplicados")
	r.log.WithFields(logrus.Fields{
		"quick_hash":  r.opts.Hash.SampleSize,
		"algorithm":   r.opts.Hash.Algorithm,
		"workers":     r.engine.Workers(),
		"min_size":    r.opts.Scan.MinSize,
		"follow_link": r.opts.Scan.FollowLinks,
	}).Debug("Configuración")

	res := &Result{Root: root, Groups: entities.DuplicateSet{}}
	defer func() {
		res.Duration = time.Since(start)
		res.Interrupted = r.tok.IsSet()
		res.Stats = stats.Calculate(res.Groups, res.FilesScanned, res.SizeGroups)
	}()

	// --- PASO 1: SCANNER ---
	files, err := r.collect(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("fallo en scanner: %w", err)
	}
	res.FilesScanned = len(files)
	progress.Finish(r.sink, progress.PhaseScan, fmt.Sprintf("%d archivos encontrados", len(files)))
	if len(files) == 0 {
		r.log.Info("No se encontraron archivos para procesar")
		return res, nil
	}

	// --- PASO 2: AGRUPAR POR TAMAÑO ---
	buckets := r.engine.PartitionBySize(ctx, files)
	res.SizeGroups = len(buckets)
	progress.Finish(r.sink, progress.PhasePartition, fmt.Sprintf("%d grupos por tamaño", len(buckets)))
	if len(buckets) == 0 {
		r.log.Info("No hay posibles duplicados")
		return res, nil
	}

	// --- PASO 3: QUICK + FULL HASH ---
	parts := r.engine.HashBuckets(ctx, buckets)
	progress.Finish(r.sink, progress.PhaseHash, "Hashing terminado")

	// --- PASO 4: AGREGAR ---
	_, aggSpan := tracer.Start(ctx, "aggregate")
	res.Groups = Aggregate(parts, r.log)
	aggSpan.SetAttributes(attribute.Int("duplicate_groups", len(res.Groups)))
	aggSpan.End()

	if r.tok.IsSet() {
		r.log.Warn("Escaneo interrumpido: el resultado es parcial")
	}
	return res, nil
}

func (r *Runner) collect(ctx context.Context, root string) ([]*entities.FileRef, error) {
	_, span := tracer.Start(ctx, "collect")
	defer span.End()

	c := scanner.New(r.opts.Scan, r.log)
	files, err := c.Collect(root, r.tok, r.sink)
	span.SetAttributes(attribute.Int("files", len(files)))
	return files, err
}
