package filesys

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// AtomicRename replaces dst with src via os.Rename (atomic on a single
// filesystem on POSIX) and fsyncs the containing directory afterward so the
// rename itself survives a crash. This is the primitive the MANIFEST advance
// and WAL rotation protocols are built from: write-to-temp, fsync the temp
// file, AtomicRename over the canonical name, which fsyncs the directory.
func AtomicRename(src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		return err
	}
	return SyncDir(filepath.Dir(dst))
}

// SyncDir fsyncs the directory at path so that prior renames/creates/deletes
// within it are durable. Opening a directory for fsync needs O_DIRECTORY on
// platforms where a plain os.Open of a directory cannot be safely fsynced,
// hence the unix-specific open here rather than os.Open.
func SyncDir(path string) error {
	fd, err := unix.Open(path, unix.O_DIRECTORY|unix.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	return unix.Fsync(fd)
}
