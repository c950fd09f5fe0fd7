// Package interrupt contiene el token de cancelación cooperativa del pipeline.
//
// Es una bandera "pegajosa": una vez activada no se desactiva. Las etapas la
// consultan de forma oportunista y nunca abortan una lectura en curso.
package interrupt

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// Token es la bandera compartida entre todas las etapas.
type Token struct {
	flag atomic.Bool
}

func New() *Token {
	return &Token{}
}

// Cancelled crea un token ya activado (útil en tests).
func Cancelled() *Token {
	t := &Token{}
	t.Set()
	return t
}

func (t *Token) Set() {
	t.flag.Store(true)
}

// IsSet admite un token nil (nunca cancelado).
func (t *Token) IsSet() bool {
	if t == nil {
		return false
	}
	return t.flag.Load()
}

// NotifyOnSignal activa el token con SIGINT/SIGTERM.
// Una segunda señal en menos de forceWindow termina el proceso con exit(130).
// La función devuelta deja de escuchar señales.
func NotifyOnSignal(t *Token, log *logrus.Entry) (stop func()) {
	const forceWindow = 5 * time.Second

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		var last time.Time
		for {
			select {
			case sig := <-sigChan:
				if !last.IsZero() && time.Since(last) < forceWindow {
					log.Warn("Forzando salida inmediata...")
					os.Exit(130)
				}
				last = time.Now()
				log.WithField("signal", sig.String()).Warn("Interrumpido por el usuario, terminando trabajo en curso (Ctrl+C otra vez para forzar)")
				t.Set()
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(done)
	}
}
