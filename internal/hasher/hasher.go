package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
)

// Algoritmos soportados. Quick y Full usan SIEMPRE el mismo; sólo cambia
// cuántos bytes se le dan. SHA256 es el valor por defecto; XXHash es más
// rápido pero no resiste colisiones provocadas.
const (
	XXHash = "xxhash"
	SHA256 = "sha256"
)

const (
	// DefaultSampleSize: bytes leídos para la prueba rápida (8KB)
	DefaultSampleSize = 8 * 1024
	// DefaultQuickBuffer: tamaño de bloque de lectura para la prueba rápida
	DefaultQuickBuffer = 64 * 1024
	// DefaultFullBuffer: buffer para el hash completo (1MB)
	DefaultFullBuffer = 1024 * 1024
)

type Options struct {
	Algorithm   string
	SampleSize  int64
	QuickBuffer int
	FullBuffer  int
}

// Hasher calcula huellas de contenido sobre un afero.Fs.
type Hasher struct {
	fs         afero.Fs
	sampleSize int64

	// hashPool para reutilizar el estado del digest
	hashPool sync.Pool
	// bufferPool solo para cargas pesadas (FullHash)
	bufferPool  sync.Pool
	quickBuffer int
}

func New(fs afero.Fs, opts Options) (*Hasher, error) {
	if opts.Algorithm == "" {
		opts.Algorithm = SHA256
	}
	if opts.SampleSize <= 0 {
		return nil, fmt.Errorf("tamaño de muestra inválido: %d", opts.SampleSize)
	}
	if opts.QuickBuffer <= 0 {
		opts.QuickBuffer = DefaultQuickBuffer
	}
	if opts.FullBuffer <= 0 {
		opts.FullBuffer = DefaultFullBuffer
	}

	var newHash func() hash.Hash
	switch opts.Algorithm {
	case XXHash:
		newHash = func() hash.Hash { return xxhash.New() }
	case SHA256:
		newHash = sha256.New
	default:
		return nil, fmt.Errorf("algoritmo de hash desconocido: %q", opts.Algorithm)
	}

	fullBuffer := opts.FullBuffer
	h := &Hasher{
		fs:          fs,
		sampleSize:  opts.SampleSize,
		quickBuffer: min(opts.QuickBuffer, int(opts.SampleSize)),
	}
	h.hashPool.New = func() any { return newHash() }
	h.bufferPool.New = func() any {
		b := make([]byte, fullBuffer)
		return &b
	}
	return h, nil
}

func (h *Hasher) SampleSize() int64 {
	return h.sampleSize
}

// QuickHash hashea como mucho los primeros SampleSize bytes.
// Si el archivo es más corto se hashea lo que haya: el resultado coincide con FullHash.
func (h *Hasher) QuickHash(path string) (string, error) {
	file, err := h.fs.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	d := h.getDigest()
	defer h.hashPool.Put(d)

	// Alloc simple. Es barato y evita locking del Pool global en lecturas pequeñas.
	buf := make([]byte, h.quickBuffer)
	if _, err := io.CopyBuffer(d, io.LimitReader(file, h.sampleSize), buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(d.Sum(nil)), nil
}

// FullHash calcula el hash completo. Aquí SI vale la pena usar Pools.
func (h *Hasher) FullHash(path string) (string, error) {
	file, err := h.fs.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	d := h.getDigest()
	defer h.hashPool.Put(d)

	bufPtr := h.bufferPool.Get().(*[]byte)
	defer h.bufferPool.Put(bufPtr)

	// onlyWriter evita que CopyBuffer use ReadFrom/WriteTo y ignore el buffer
	if _, err := io.CopyBuffer(onlyWriter{d}, file, *bufPtr); err != nil {
		return "", err
	}
	return hex.EncodeToString(d.Sum(nil)), nil
}

func (h *Hasher) getDigest() hash.Hash {
	d := h.hashPool.Get().(hash.Hash)
	d.Reset()
	return d
}

type onlyWriter struct {
	w io.Writer
}

func (o onlyWriter) Write(p []byte) (int, error) {
	return o.w.Write(p)
}
