package fileutil

import (
	"os"
	"path/filepath"
	"strings"
)

// TempPrefix starts the name of every in-flight atomic write.
const TempPrefix = ".azul-"

// IsTempFile reports whether name belongs to an unfinished atomic write.
func IsTempFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, TempPrefix) && strings.HasSuffix(base, ".tmp")
}

// AtomicWrite writes data to path through a temp file in the same directory
// and a rename, so readers never observe a half-written file. A zero perm
// keeps the mode of an existing file and uses 0644 for a new one.
func AtomicWrite(path string, data []byte, perm os.FileMode) (err error) {
	if perm == 0 {
		perm = 0644
		if info, statErr := os.Stat(path); statErr == nil {
			perm = info.Mode().Perm()
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), TempPrefix+"*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Chmod(perm); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// AtomicWriteString is AtomicWrite for string content.
func AtomicWriteString(path, content string, perm os.FileMode) error {
	return AtomicWrite(path, []byte(content), perm)
}
