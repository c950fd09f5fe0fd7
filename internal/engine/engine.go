// Package engine implementa el pipeline de detección de duplicados:
// tamaño -> hash parcial -> hash completo -> agregación.
//
// Cada fase reparte trabajo entre un número acotado de workers y termina en
// una barrera. Los workers acumulan en mapas locales que se fusionan al final,
// así el bucle caliente no comparte ningún mapa ni necesita locks.
package engine

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/soyunomas/dupescan/internal/hasher"
	"github.com/soyunomas/dupescan/internal/interrupt"
	"github.com/soyunomas/dupescan/internal/logging"
	"github.com/soyunomas/dupescan/internal/progress"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/soyunomas/dupescan/internal/engine")

// checkEvery: cada cuántos archivos se consulta el token en el particionado.
const checkEvery = 1000

// Engine ejecuta las fases de particionado y hashing.
type Engine struct {
	fs      afero.Fs
	hasher  *hasher.Hasher
	workers int
	io      *pool
	tok     *interrupt.Token
	sink    progress.Sink
	log     *logrus.Entry

	hashProgress atomic.Pointer[progress.Counter]
}

type Config struct {
	Workers int // 0 = runtime.NumCPU()
	Hash    hasher.Options
}

// New crea el motor. Un fs nil usa el sistema de archivos real.
func New(fs afero.Fs, cfg Config, tok *interrupt.Token, sink progress.Sink, log *logrus.Entry) (*Engine, error) {
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("número de workers inválido: %d", cfg.Workers)
	}
	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if tok == nil {
		tok = interrupt.New()
	}
	if sink == nil {
		sink = progress.Nop
	}
	if log == nil {
		log = logging.Discard()
	}

	h, err := hasher.New(fs, cfg.Hash)
	if err != nil {
		return nil, fmt.Errorf("configurando hasher: %w", err)
	}

	return &Engine{
		fs:      fs,
		hasher:  h,
		workers: workers,
		io:      newPool(workers),
		tok:     tok,
		sink:    sink,
		log:     log,
	}, nil
}

func (e *Engine) Workers() int {
	return e.workers
}

// HashProgress devuelve (archivos con hash completo, candidatos totales).
// Es aproximado mientras la fase de hashing está en curso.
func (e *Engine) HashProgress() (done, total int64) {
	c := e.hashProgress.Load()
	if c == nil {
		return 0, 0
	}
	return c.Load(), c.Total()
}

// drop registra un archivo descartado por error. Nunca detiene el pipeline.
func (e *Engine) drop(stage, path string, err error) {
	e.log.WithFields(logrus.Fields{
		"stage": stage,
		"path":  path,
	}).WithError(err).Debug("Archivo descartado")
}
