package entities

import (
	"time"
)

// FileRef identifica un archivo candidato durante una ejecución.
// Se captura en la recolección y no cambia después.
type FileRef struct {
	Path     string    `json:"path"`
	Size     int64     `json:"size_bytes"`
	ModTime  time.Time `json:"mod_time"`
	DeviceID uint64    `json:"device_id"`
	Inode    uint64    `json:"inode"`
}

// SameInode indica si ambas referencias apuntan al mismo archivo en disco (hardlink).
func (f *FileRef) SameInode(o *FileRef) bool {
	if f.Inode == 0 && f.DeviceID == 0 {
		return false
	}
	return f.DeviceID == o.DeviceID && f.Inode == o.Inode
}

// FileGroup representa un conjunto de archivos que comparten criterios.
type FileGroup struct {
	Count int64      `json:"count"`
	Files []*FileRef `json:"files"`
}

// Add agrega un archivo al grupo
func (fg *FileGroup) Add(f *FileRef) {
	fg.Files = append(fg.Files, f)
	fg.Count++
}

// Merge agrega todos los miembros de otro grupo.
func (fg *FileGroup) Merge(other *FileGroup) {
	fg.Files = append(fg.Files, other.Files...)
	fg.Count += other.Count
}

// SizeBuckets agrupa archivos por tamaño exacto en bytes.
// Map: [Tamaño] -> [Grupo de Archivos]
type SizeBuckets map[uint64]*FileGroup

// Candidates devuelve el total de archivos en todos los buckets.
func (b SizeBuckets) Candidates() int64 {
	var n int64
	for _, g := range b {
		n += g.Count
	}
	return n
}

// DuplicateGroup son los archivos que comparten el mismo hash completo.
type DuplicateGroup struct {
	Digest string `json:"hash"`
	Size   int64  `json:"size"`
	FileGroup
}

// DuplicateSet: [Hash completo] -> [Grupo de duplicados]
type DuplicateSet map[string]*DuplicateGroup

func (d DuplicateSet) Files() int64 {
	var n int64
	for _, g := range d {
		n += g.Count
	}
	return n
}
