package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// New construye el logger de la aplicación. "off" descarta toda la salida.
func New(level string, out io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05",
	})
	log.SetOutput(out)

	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = "info"
	}
	if level == "off" {
		log.SetOutput(io.Discard)
		log.SetLevel(logrus.PanicLevel)
		return log, nil
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("nivel de log inválido %q: %w", level, err)
	}
	log.SetLevel(lvl)
	return log, nil
}

// Component devuelve una entrada con el campo "component".
func Component(log *logrus.Logger, name string) *logrus.Entry {
	return log.WithField("component", name)
}

// Discard es un logger silencioso, útil en tests.
func Discard() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}
