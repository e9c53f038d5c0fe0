package usecase

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"LegisImport/internal/domain"
)

// DiscoverFiles walks the input directory and queues every .xml record
// file. The first directory level below root names the document family.
func DiscoverFiles(root string) ([]domain.FileMeta, error) {
	var files []domain.FileMeta

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".xml") {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		segments := strings.Split(filepath.ToSlash(rel), "/")
		if len(segments) < 2 {
			// Files directly under root carry no family directory.
			return nil
		}

		files = append(files, domain.FileMeta{
			Path:     path,
			Category: segments[0],
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
