// Package progress define el canal por el que el pipeline publica su avance.
// El pipeline no sabe cómo se dibuja: sólo empuja (posición, total) por fase.
package progress

import (
	"sync/atomic"
)

// Phase identifica la etapa que reporta avance.
type Phase string

const (
	PhaseScan      Phase = "scan"
	PhasePartition Phase = "partition"
	PhaseHash      Phase = "hash"
)

// Unknown se usa como total cuando todavía no se conoce (recolección).
const Unknown int64 = -1

// Sink recibe actualizaciones de avance. Debe ser seguro para uso concurrente.
type Sink interface {
	Update(phase Phase, pos, total int64)
}

// Finisher es opcional: un Sink que además quiere saber cuándo termina una fase.
type Finisher interface {
	Finish(phase Phase, msg string)
}

// Finish avisa el fin de fase si el sink lo soporta.
func Finish(s Sink, phase Phase, msg string) {
	if f, ok := s.(Finisher); ok {
		f.Finish(phase, msg)
	}
}

type nop struct{}

func (nop) Update(Phase, int64, int64) {}

// Nop descarta todo.
var Nop Sink = nop{}

// Counter es un contador atómico que empuja al Sink cada `every` incrementos.
// La posición reportada es aproximada bajo concurrencia, no es una señal de corrección.
type Counter struct {
	sink  Sink
	phase Phase
	every int64
	total atomic.Int64
	n     atomic.Int64
}

func NewCounter(sink Sink, phase Phase, total, every int64) *Counter {
	if sink == nil {
		sink = Nop
	}
	if every < 1 {
		every = 1
	}
	c := &Counter{sink: sink, phase: phase, every: every}
	c.total.Store(total)
	return c
}

// Grow amplía el total cuando el trabajo se descubre sobre la marcha.
func (c *Counter) Grow(n int64) {
	c.total.Add(n)
}

// Inc avanza el contador en uno.
func (c *Counter) Inc() {
	cur := c.n.Add(1)
	if cur%c.every == 0 {
		total := c.total.Load()
		pos := cur
		if total >= 0 {
			pos = min(cur, total)
		}
		c.sink.Update(c.phase, pos, total)
	}
}

// Load devuelve la cuenta actual.
func (c *Counter) Load() int64 {
	return c.n.Load()
}

func (c *Counter) Total() int64 {
	return c.total.Load()
}

// Complete fija la posición final (el total si se conoce).
func (c *Counter) Complete() {
	total := c.total.Load()
	pos := c.n.Load()
	if total >= 0 {
		pos = total
	}
	c.sink.Update(c.phase, pos, total)
}
