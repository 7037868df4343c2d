package service

import (
	"path/filepath"

	"github.com/MimeLyc/hardsub-pipeline/pkg/file"
)

// Archive moves src into dir, creating dir if needed. Presence of a file
// under an archive directory is the only record that an item finished.
// Rename is atomic on one filesystem; a cross-device move fails instead of
// copying.
func Archive(src, dir string) (string, error) {
	return file.MoveInto(src, dir)
}

// archiveArtifacts checkpoints a finished item's audio and subtitle into
// their stage's archive subdirectory. Missing artifacts are skipped.
func archiveArtifacts(item *WorkItem) ([]string, error) {
	var moved []string
	for _, src := range []string{item.AudioPath, item.SubtitlePath} {
		if !file.Exists(src) {
			continue
		}
		dst, err := Archive(src, archiveDirOf(src))
		if err != nil {
			return moved, err
		}
		moved = append(moved, dst)
	}
	return moved, nil
}

func archiveDirOf(path string) string {
	return filepath.Join(filepath.Dir(path), ArchiveDirName)
}
