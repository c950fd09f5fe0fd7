package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/soyunomas/dupescan/internal/entities"
)

// Order decide qué archivo aparece primero dentro de cada grupo.
// Sólo afecta a la presentación: nunca se mueve ni se borra nada.
type Order int

const (
	ShortestPath Order = iota // Default
	LongestPath
	Oldest
	Newest
)

var orderNames = map[string]Order{
	"shortest": ShortestPath,
	"longest":  LongestPath,
	"oldest":   Oldest,
	"newest":   Newest,
}

func ParseOrder(s string) (Order, error) {
	o, ok := orderNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("orden desconocido: %q (shortest, longest, oldest, newest)", s)
	}
	return o, nil
}

func (o Order) String() string {
	for name, v := range orderNames {
		if v == o {
			return name
		}
	}
	return "unknown"
}

// sortFiles ordena el slice según el criterio.
// Si la función retorna TRUE, 'i' se coloca antes que 'j' (índice menor).
func sortFiles(files []*entities.FileRef, order Order) {
	sort.Slice(files, func(i, j int) bool {
		f1 := files[i]
		f2 := files[j]

		switch order {
		case ShortestPath:
			if len(f1.Path) != len(f2.Path) {
				return len(f1.Path) < len(f2.Path)
			}
		case LongestPath:
			if len(f1.Path) != len(f2.Path) {
				return len(f1.Path) > len(f2.Path)
			}
		case Oldest:
			if !f1.ModTime.Equal(f2.ModTime) {
				return f1.ModTime.Before(f2.ModTime)
			}
		case Newest:
			if !f1.ModTime.Equal(f2.ModTime) {
				return f1.ModTime.After(f2.ModTime)
			}
		}

		// --- CRITERIOS DE DESEMPATE ---
		// 1. Longitud de ruta (si no fue el criterio principal)
		if len(f1.Path) != len(f2.Path) {
			if order == LongestPath {
				return len(f1.Path) > len(f2.Path)
			}
			return len(f1.Path) < len(f2.Path)
		}

		// 2. Alfabético (último recurso)
		return f1.Path < f2.Path
	})
}
