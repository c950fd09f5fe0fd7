//go:build !unix

package scanner

import "io/fs"

// Sin inodos: la detección de hardlinks queda desactivada.
func getSysInfo(fs.FileInfo) (uint64, uint64) {
	return 0, 0
}
