package downloader

import (
	"fmt"
	"github.com/klauspost/compress/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// extractNatives unpacks a natives jar into dest, skipping every entry
// whose name starts with one of the exclude prefixes (META-INF/ usually).
func extractNatives(jar, dest string, exclude []string) error {
	zr, err := zip.OpenReader(jar)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, i := range zr.File {
		if excluded(i.Name, exclude) || strings.HasSuffix(i.Name, "/") {
			continue
		}
		target := filepath.Join(dest, filepath.FromSlash(i.Name))
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
			return fmt.Errorf("illegal entry path %q", i.Name)
		}
		if err := extractFile(i, target); err != nil {
			return fmt.Errorf("extract %s: %w", i.Name, err)
		}
	}
	return nil
}

func excluded(name string, exclude []string) bool {
	for _, e := range exclude {
		if strings.HasPrefix(name, e) {
			return true
		}
	}
	return false
}

func extractFile(i *zip.File, target string) error {
	open, err := i.Open()
	if err != nil {
		return err
	}
	defer open.Close()
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, open)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return err
}
