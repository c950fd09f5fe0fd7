//go:build windows

package scanner

import (
	"io/fs"
	"syscall"
)

func hasHiddenFlag(_ string, d fs.DirEntry) bool {
	info, err := d.Info()
	if err != nil {
		return false
	}
	sys, ok := info.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return false
	}
	return sys.FileAttributes&(syscall.FILE_ATTRIBUTE_HIDDEN|syscall.FILE_ATTRIBUTE_SYSTEM) != 0
}
