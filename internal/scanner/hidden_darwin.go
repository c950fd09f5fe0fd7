//go:build darwin

package scanner

import (
	"io/fs"

	"golang.org/x/sys/unix"
)

// Flag BSD UF_HIDDEN (p.ej. ~/Library)
const ufHidden = 0x8000

func hasHiddenFlag(path string, _ fs.DirEntry) bool {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false
	}
	return st.Flags&ufHidden != 0
}
