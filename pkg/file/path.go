package file

import (
	"path/filepath"
	"strings"
)

// ReplaceExt swaps the final extension of path for ext, keeping the
// directory. A missing dot on ext is added.
func ReplaceExt(path, ext string) string {
	if path == "" {
		return path
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.Join(filepath.Dir(path), Stem(path)+ext)
}

// Stem returns the base name of path without its final extension.
// e.g. "/in/ep 01.final.mkv" -> "ep 01.final"
func Stem(path string) string {
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	if ext == name {
		return name
	}
	return strings.TrimSuffix(name, ext)
}

// LowerExt returns the lower-cased extension of path including the dot.
func LowerExt(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
