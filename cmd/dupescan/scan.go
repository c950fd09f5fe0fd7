package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/subcommands"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/soyunomas/dupescan/internal/config"
	"github.com/soyunomas/dupescan/internal/engine"
	"github.com/soyunomas/dupescan/internal/interrupt"
	"github.com/soyunomas/dupescan/internal/logging"
	"github.com/soyunomas/dupescan/internal/progress"
	"github.com/soyunomas/dupescan/internal/report"
	"github.com/soyunomas/dupescan/internal/scanner"
	"github.com/soyunomas/dupescan/internal/tracing"
)

// stringList permite repetir un flag: -ignore build -ignore dist
type stringList []string

func (s *stringList) String() string     { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }

type scanCmd struct {
	configPath string

	logLevel    string
	followLinks bool
	noIgnore    bool
	ignore      stringList
	hidden      bool
	quickSize   int64
	quickBuf    int
	fullBuf     int
	algorithm   string
	outputJSON  string
	minSize     int64
	threads     int
	order       string
	hyperlinks  string
	color       string
	trace       bool
}

func (*scanCmd) Name() string     { return "scan" }
func (*scanCmd) Synopsis() string { return "Busca archivos duplicados en un directorio" }
func (*scanCmd) Usage() string {
	return `scan [flags] <directorio>:
  Agrupa archivos por tamaño, hash parcial y hash completo y muestra los duplicados.
  No borra ni mueve nada.
`
}

func (c *scanCmd) SetFlags(f *flag.FlagSet) {
	def := config.DefaultConfig()

	f.StringVar(&c.configPath, "config", "", "archivo de configuración YAML")
	f.StringVar(&c.logLevel, "log-level", def.Log.Level, "nivel de log (off, error, warn, info, debug, trace)")
	f.BoolVar(&c.followLinks, "follow-links", false, "seguir enlaces simbólicos")
	f.BoolVar(&c.noIgnore, "no-ignore", false, "no ignorar carpetas comunes (.git, node_modules, ...)")
	f.Var(&c.ignore, "ignore", "carpeta adicional a ignorar (repetible)")
	f.BoolVar(&c.hidden, "hidden", false, "incluir archivos y carpetas ocultos")
	f.Int64Var(&c.quickSize, "quick-hash-size", def.Hash.QuickHashSize, "bytes de la muestra para el hash rápido")
	f.IntVar(&c.quickBuf, "quick-buffer-size", def.Hash.QuickBufferSize, "buffer del hash rápido en KB")
	f.IntVar(&c.fullBuf, "full-buffer-size", def.Hash.FullBufferSize, "buffer del hash completo en MB")
	f.StringVar(&c.algorithm, "algorithm", def.Hash.Algorithm, "algoritmo de hash (sha256, xxhash)")
	f.StringVar(&c.outputJSON, "output-json", "", "guardar resultados en un archivo JSON")
	f.Int64Var(&c.minSize, "min-size", 0, "ignorar archivos más pequeños (bytes)")
	f.IntVar(&c.threads, "threads", 0, "número máximo de workers (0 = todos los núcleos)")
	f.StringVar(&c.order, "order", def.Output.Order, "orden dentro de cada grupo: shortest, longest, oldest, newest")
	f.StringVar(&c.hyperlinks, "hyperlinks", def.Output.Hyperlinks, "rutas como hipervínculos: auto, always, never")
	f.StringVar(&c.color, "color", def.Output.Color, "salida en color: auto, always, never")
	f.BoolVar(&c.trace, "trace", false, "exportar spans de OpenTelemetry a stderr")
}

// resolveConfig aplica: valores por defecto -> archivo -> flags explícitos.
func (c *scanCmd) resolveConfig(f *flag.FlagSet) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.configPath)
	if err != nil {
		return nil, err
	}

	f.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "log-level":
			cfg.Log.Level = c.logLevel
		case "follow-links":
			cfg.Scan.FollowLinks = c.followLinks
		case "no-ignore":
			cfg.Scan.NoIgnore = c.noIgnore
		case "ignore":
			cfg.Scan.Ignore = append(cfg.Scan.Ignore, c.ignore...)
		case "hidden":
			cfg.Scan.Hidden = c.hidden
		case "quick-hash-size":
			cfg.Hash.QuickHashSize = c.quickSize
		case "quick-buffer-size":
			cfg.Hash.QuickBufferSize = c.quickBuf
		case "full-buffer-size":
			cfg.Hash.FullBufferSize = c.fullBuf
		case "algorithm":
			cfg.Hash.Algorithm = c.algorithm
		case "output-json":
			cfg.Output.JSON = c.outputJSON
		case "min-size":
			cfg.Scan.MinSize = c.minSize
		case "threads":
			cfg.Workers = c.threads
		case "order":
			cfg.Output.Order = c.order
		case "hyperlinks":
			cfg.Output.Hyperlinks = c.hyperlinks
		case "color":
			cfg.Output.Color = c.color
		case "trace":
			cfg.Output.Trace = c.trace
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *scanCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() > 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	dir := "."
	if f.NArg() == 1 {
		dir = f.Arg(0)
	}

	cfg, err := c.resolveConfig(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Error de configuración: %v\n", err)
		return subcommands.ExitUsageError
	}

	logger, err := logging.New(cfg.Log.Level, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return subcommands.ExitUsageError
	}
	log := logging.Component(logger, "scan")

	// La ruta se valida antes de mostrar cualquier progreso
	root, err := scanner.ValidateRoot(dir)
	if err != nil {
		return die(err)
	}

	if cfg.Output.Trace {
		shutdown, err := tracing.Init(os.Stderr, Version)
		if err != nil {
			return die(fmt.Errorf("inicializando tracing: %w", err))
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.WithError(err).Warn("Error cerrando el exportador de trazas")
			}
		}()
	}

	tok := interrupt.New()
	stop := interrupt.NotifyOnSignal(tok, log)
	defer stop()

	var sink progress.Sink = progress.Nop
	if isTerminal(os.Stderr) {
		sink = progress.NewConsole(os.Stderr)
	}

	order, _ := report.ParseOrder(cfg.Output.Order)
	runner, err := engine.NewRunner(engine.Options{
		Scan: scanner.Config{
			MinSize:       cfg.Scan.MinSize,
			FollowLinks:   cfg.Scan.FollowLinks,
			IncludeHidden: cfg.Scan.Hidden,
			NoIgnore:      cfg.Scan.NoIgnore,
			Excludes:      cfg.Scan.Ignore,
		},
		Hash:    cfg.HashOptions(),
		Workers: cfg.Workers,
	}, tok, sink, logging.Component(logger, "engine"))
	if err != nil {
		return die(err)
	}

	res, err := runner.Run(ctx, root)
	if err != nil {
		return die(err)
	}

	opts := report.Options{
		Order:      order,
		Color:      config.Enabled(cfg.Output.Color, isTerminal(os.Stdout)),
		Hyperlinks: config.Enabled(cfg.Output.Hyperlinks, isTerminal(os.Stdout)),
	}
	if err := report.Print(os.Stdout, res, opts); err != nil {
		return die(err)
	}

	if cfg.Output.JSON != "" {
		if err := report.SaveJSON(nil, cfg.Output.JSON, res, uuid.NewString(), opts); err != nil {
			return die(err)
		}
		log.WithField("path", cfg.Output.JSON).Info("Resultados guardados")
	}

	logSummary(log, res)
	return subcommands.ExitSuccess
}

func logSummary(log *logrus.Entry, res *engine.Result) {
	log.WithFields(logrus.Fields{
		"duplicate_groups": res.Stats.TotalDuplicateGroups,
		"duplicate_files":  res.Stats.TotalDuplicateFiles,
		"interrupted":      res.Interrupted,
	}).Infof("Escaneo completado en %.2fs: %d grupos, %d archivos, %s desperdiciados",
		res.Duration.Seconds(),
		res.Stats.TotalDuplicateGroups,
		res.Stats.TotalDuplicateFiles,
		humanize.Bytes(res.Stats.TotalWastedSpace))
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func die(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "❌ Error fatal: %v\n", err)
	return subcommands.ExitFailure
}
