// Package migrations applies the embedded SQL schema for Postgres and ClickHouse.
package migrations

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// sqlFiles returns the .sql files in dir of fsys, sorted lexically (001_, 002_, ...).
func sqlFiles(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, dir+"/"+entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
