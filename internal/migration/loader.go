package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
)

// sqlSuffix is the extension of migration files: V{version}__{name}.sql.
const sqlSuffix = ".sql"

// LoadFromDir reads migration files from a directory on disk and returns them
// unsorted. Files that do not follow the V{version}__{name}.sql pattern are skipped.
func LoadFromDir(dir string) ([]Migration, error) {
	return LoadFS(os.DirFS(dir), ".")
}

// LoadFS reads migration files from dir inside fsys, which may be an embed.FS.
func LoadFS(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory %s: %w", dir, err)
	}

	var migrations []Migration

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), sqlSuffix) {
			continue
		}

		version, name, err := ParseIdentity(strings.TrimSuffix(entry.Name(), sqlSuffix))
		if errors.Is(err, ErrInvalidIdentity) {
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", entry.Name(), err)
		}

		m, err := readMigration(fsys, path.Join(dir, entry.Name()), version, name)
		if err != nil {
			return nil, err
		}

		migrations = append(migrations, m)
	}

	return migrations, nil
}

// LoadCatalog loads dir from fsys and builds a Catalog from it.
func LoadCatalog(fsys fs.FS, dir string) (*Catalog, error) {
	migrations, err := LoadFS(fsys, dir)
	if err != nil {
		return nil, err
	}

	return NewCatalog(migrations...)
}

func readMigration(fsys fs.FS, filePath string, version uint64, name string) (Migration, error) {
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return Migration{}, fmt.Errorf("reading migration file %s: %w", filePath, err)
	}

	return New(version, name, strings.TrimSpace(string(data))), nil
}
