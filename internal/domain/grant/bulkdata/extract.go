package bulkdata

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrMemberNotFound is returned when the zip does not contain the expected archive file.
var ErrMemberNotFound = errors.New("archive member not found")

// ExtractMember extracts the file named member from the zip at zipPath into
// destDir and returns the extracted path. Names are matched without regard
// to case or leading directories, since published zips are inconsistent
// about both.
func ExtractMember(zipPath, member, destDir string) (string, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", fmt.Errorf("failed to open zip: %w", err)
	}
	defer zr.Close()

	f := findMember(zr.File, member)
	if f == nil {
		return "", fmt.Errorf("%s in %s: %w", member, filepath.Base(zipPath), ErrMemberNotFound)
	}

	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create extract dir: %w", err)
	}
	dest := filepath.Join(destDir, member)
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		os.Remove(dest)
		return "", fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", dest, err)
	}
	return dest, nil
}

func findMember(files []*zip.File, member string) *zip.File {
	for _, f := range files {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.EqualFold(path.Base(f.Name), member) {
			return f
		}
	}
	return nil
}
