package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/soyunomas/dupescan/internal/hasher"
	"github.com/soyunomas/dupescan/internal/logging"
	"github.com/soyunomas/dupescan/internal/report"
	"gopkg.in/yaml.v3"
)

// Config representa la configuración completa de un escaneo.
type Config struct {
	Scan    ScanConfig   `yaml:"scan"`
	Hash    HashConfig   `yaml:"hash"`
	Workers int          `yaml:"workers"`
	Log     LogConfig    `yaml:"log"`
	Output  OutputConfig `yaml:"output"`
}

// ScanConfig contiene las reglas de inclusión del recorrido
type ScanConfig struct {
	MinSize     int64    `yaml:"min_size"`
	FollowLinks bool     `yaml:"follow_links"`
	Hidden      bool     `yaml:"hidden"`
	NoIgnore    bool     `yaml:"no_ignore"`
	Ignore      []string `yaml:"ignore"`
}

// HashConfig contiene la configuración del cálculo de hashes
type HashConfig struct {
	Algorithm       string `yaml:"algorithm"`
	QuickHashSize   int64  `yaml:"quick_hash_size"`   // bytes
	QuickBufferSize int    `yaml:"quick_buffer_size"` // KB
	FullBufferSize  int    `yaml:"full_buffer_size"`  // MB
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type OutputConfig struct {
	JSON       string `yaml:"json"`
	Order      string `yaml:"order"`
	Hyperlinks string `yaml:"hyperlinks"` // auto, always, never
	Color      string `yaml:"color"`      // auto, always, never
	Trace      bool   `yaml:"trace"`
}

// DefaultConfig devuelve una configuración con valores por defecto
func DefaultConfig() *Config {
	return &Config{
		Hash: HashConfig{
			Algorithm:       hasher.SHA256,
			QuickHashSize:   hasher.DefaultSampleSize,
			QuickBufferSize: 64,
			FullBufferSize:  1,
		},
		Log: LogConfig{Level: "info"},
		Output: OutputConfig{
			Order:      "shortest",
			Hyperlinks: "auto",
			Color:      "auto",
		},
	}
}

// LoadConfig carga un archivo YAML sobre los valores por defecto.
// Una ruta vacía devuelve los valores por defecto.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("leyendo configuración %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parseando configuración %s: %w", path, err)
	}
	return cfg, nil
}

// Validate comprueba que la configuración sea coherente
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers no puede ser negativo: %d", c.Workers)
	}
	if c.Scan.MinSize < 0 {
		return fmt.Errorf("min_size no puede ser negativo: %d", c.Scan.MinSize)
	}
	switch c.Hash.Algorithm {
	case hasher.XXHash, hasher.SHA256:
	default:
		return fmt.Errorf("algoritmo de hash desconocido: %q", c.Hash.Algorithm)
	}
	if c.Hash.QuickHashSize <= 0 {
		return fmt.Errorf("quick_hash_size debe ser positivo: %d", c.Hash.QuickHashSize)
	}
	if c.Hash.QuickBufferSize <= 0 {
		return fmt.Errorf("quick_buffer_size debe ser positivo: %d", c.Hash.QuickBufferSize)
	}
	if c.Hash.FullBufferSize <= 0 {
		return fmt.Errorf("full_buffer_size debe ser positivo: %d", c.Hash.FullBufferSize)
	}
	if _, err := logging.New(c.Log.Level, io.Discard); err != nil {
		return err
	}
	if _, err := report.ParseOrder(c.Output.Order); err != nil {
		return err
	}
	if err := validMode("hyperlinks", c.Output.Hyperlinks); err != nil {
		return err
	}
	return validMode("color", c.Output.Color)
}

// HashOptions traduce la configuración a las opciones del hasher.
func (c *Config) HashOptions() hasher.Options {
	return hasher.Options{
		Algorithm:   c.Hash.Algorithm,
		SampleSize:  c.Hash.QuickHashSize,
		QuickBuffer: c.Hash.QuickBufferSize * 1024,
		FullBuffer:  c.Hash.FullBufferSize * 1024 * 1024,
	}
}

// Enabled resuelve un modo auto/always/never.
func Enabled(mode string, isTerminal bool) bool {
	switch strings.ToLower(mode) {
	case "always":
		return true
	case "never":
		return false
	default:
		return isTerminal
	}
}

func validMode(name, mode string) error {
	switch strings.ToLower(mode) {
	case "auto", "always", "never":
		return nil
	}
	return fmt.Errorf("%s: modo inválido %q (auto, always, never)", name, mode)
}
