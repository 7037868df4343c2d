package library

import (
	"path/filepath"
	"strings"

	"github.com/MimeLyc/hardsub-pipeline/pkg/file"
)

// Scan lists the regular files directly inside dir whose extension is in
// exts, compared case-insensitively. The result is sorted by path so batch
// logs are reproducible. A missing directory yields an empty list.
func Scan(dir string, exts Extensions) ([]string, error) {
	all, err := file.ListRegular(dir)
	if err != nil {
		return nil, err
	}

	ret := make([]string, 0, len(all))
	for _, path := range all {
		if exts.Contains(filepath.Ext(path)) {
			ret = append(ret, path)
		}
	}
	return ret, nil
}

// IsMatch reports whether path has one of the extensions.
func IsMatch(path string, exts Extensions) bool {
	return exts.Contains(filepath.Ext(path))
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
