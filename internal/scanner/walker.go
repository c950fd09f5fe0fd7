package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/sirupsen/logrus"
	"github.com/soyunomas/dupescan/internal/entities"
	"github.com/soyunomas/dupescan/internal/interrupt"
	"github.com/soyunomas/dupescan/internal/progress"
)

var (
	ErrNotExist = errors.New("path does not exist")
	ErrNotDir   = errors.New("path is not a directory")
)

// DefaultIgnores son carpetas que casi nunca interesa escanear.
var DefaultIgnores = []string{".git", ".hg", ".svn", "node_modules", "__pycache__", ".cache"}

// Config define las reglas para el escaneo.
type Config struct {
	MinSize       int64    // Tamaño mínimo en bytes para considerar
	FollowLinks   bool     // Seguir enlaces simbólicos
	IncludeHidden bool     // Incluir dotfiles y archivos con atributo oculto
	NoIgnore      bool     // Desactiva DefaultIgnores
	Excludes      []string // Carpetas extra a ignorar (siempre aplican)
	Workers       int      // 0 = runtime.NumCPU()
}

// Collector encapsula la lógica de recorrido del sistema de archivos.
type Collector struct {
	cfg        Config
	excludeMap map[string]struct{} // Optimización O(1)
	log        *logrus.Entry
}

// New crea una nueva instancia del escáner con configuración.
func New(cfg Config, log *logrus.Entry) *Collector {
	// Pre-procesamos excludes a un mapa para búsquedas instantáneas
	exMap := make(map[string]struct{}, len(cfg.Excludes)+len(DefaultIgnores))
	if !cfg.NoIgnore {
		for _, e := range DefaultIgnores {
			exMap[e] = struct{}{}
		}
	}
	for _, e := range cfg.Excludes {
		exMap[e] = struct{}{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	return &Collector{
		cfg:        cfg,
		excludeMap: exMap,
		log:        log,
	}
}

// ValidateRoot comprueba que la raíz existe y es un directorio. Devuelve la ruta absoluta.
func ValidateRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolviendo %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotExist, abs)
		}
		return "", fmt.Errorf("stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotDir, abs)
	}
	return abs, nil
}

// Collect recorre rootDir (ya validado y absoluto) y devuelve los candidatos.
// Los errores por entrada se registran y se ignoran. Si el token se activa
// devuelve lo recolectado hasta ese momento.
func (c *Collector) Collect(rootDir string, tok *interrupt.Token, sink progress.Sink) ([]*entities.FileRef, error) {
	if sink == nil {
		sink = progress.Nop
	}

	if !c.cfg.IncludeHidden && c.isHiddenRoot(rootDir) {
		c.log.WithField("path", rootDir).Warn("La raíz está oculta; usa -hidden para escanearla")
		return nil, nil
	}

	var (
		mu    sync.Mutex
		files []*entities.FileRef
	)
	counter := progress.NewCounter(sink, progress.PhaseScan, progress.Unknown, 1000)

	conf := fastwalk.Config{Follow: c.cfg.FollowLinks, NumWorkers: c.cfg.Workers}

	// fastwalk invoca walkFn desde varios goroutines a la vez
	walkFn := func(path string, d fs.DirEntry, err error) error {
		if tok.IsSet() {
			return fs.SkipAll
		}

		// 1. Manejo de errores de acceso (permisos, etc)
		if err != nil {
			c.log.WithError(err).WithField("path", path).Debug("Error leyendo entrada")
			return nil
		}
		if path == rootDir {
			return nil
		}

		name := d.Name()
		isDir := c.isDir(path, d)
		if !c.cfg.IncludeHidden && (strings.HasPrefix(name, ".") || hasHiddenFlag(path, d)) {
			if isDir {
				return fastwalk.SkipDir
			}
			return nil
		}

		// 2. Si es directorio, verificamos si debemos ignorarlo (Optimizado)
		if isDir {
			if _, ok := c.excludeMap[name]; ok {
				return fastwalk.SkipDir
			}
			return nil
		}

		// 3. Obtener información del archivo (Stat)
		info, ok := c.regularInfo(path, d)
		if !ok {
			return nil
		}

		// 4. Filtro de Tamaño
		size := info.Size()
		if size < c.cfg.MinSize {
			return nil
		}

		// 5. Construcción de la Entidad
		devID, inode := getSysInfo(info)
		ref := &entities.FileRef{
			Path:     path,
			Size:     size,
			ModTime:  info.ModTime(),
			DeviceID: devID,
			Inode:    inode,
		}

		mu.Lock()
		files = append(files, ref)
		mu.Unlock()
		counter.Inc()
		return nil
	}

	if err := fastwalk.Walk(&conf, rootDir, walkFn); err != nil && !errors.Is(err, fs.SkipAll) {
		return files, fmt.Errorf("fallo recorriendo %s: %w", rootDir, err)
	}
	counter.Complete()
	return files, nil
}

// isDir también reconoce enlaces a directorios cuando se siguen enlaces:
// fastwalk los entrega como symlink pero después desciende en ellos.
func (c *Collector) isDir(path string, d fs.DirEntry) bool {
	if d.IsDir() {
		return true
	}
	if !c.cfg.FollowLinks || d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// regularInfo devuelve el FileInfo si la entrada es (o apunta a) un archivo regular.
func (c *Collector) regularInfo(path string, d fs.DirEntry) (fs.FileInfo, bool) {
	if d.Type()&fs.ModeSymlink != 0 {
		if !c.cfg.FollowLinks {
			return nil, false
		}
		info, err := os.Stat(path)
		if err != nil {
			c.log.WithError(err).WithField("path", path).Debug("Enlace roto")
			return nil, false
		}
		return info, info.Mode().IsRegular()
	}
	if !d.Type().IsRegular() {
		return nil, false
	}
	info, err := d.Info()
	if err != nil {
		c.log.WithError(err).WithField("path", path).Debug("No se pudo leer metadata")
		return nil, false
	}
	return info, true
}

func (c *Collector) isHiddenRoot(root string) bool {
	name := filepath.Base(root)
	if strings.HasPrefix(name, ".") && name != "." && name != ".." {
		return true
	}
	info, err := os.Lstat(root)
	if err != nil {
		return false
	}
	return hasHiddenFlag(root, fs.FileInfoToDirEntry(info))
}
