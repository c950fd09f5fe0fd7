//go:build !darwin && !windows

package scanner

import "io/fs"

// Linux y demás: no hay atributo oculto, sólo dotfiles.
func hasHiddenFlag(string, fs.DirEntry) bool {
	return false
}
