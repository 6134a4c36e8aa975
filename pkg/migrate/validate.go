package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"regexp"
	"slices"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// ValidateDir checks the migrations in dir; EmbeddedDir checks the
// compiled-in set. Every dialect subdirectory present must carry exactly the
// root's versions.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	if dir == EmbeddedDir {
		return validateTree(Embedded())
	}
	return validateTree(os.DirFS(dir))
}

// ValidateFS checks file names, version uniqueness and the goose annotations
// of every .sql file at the root of fsys.
func ValidateFS(fsys fs.FS) error {
	_, err := versions(fsys)
	return err
}

func validateTree(fsys fs.FS) error {
	base, err := versions(fsys)
	if err != nil {
		return err
	}
	for _, d := range dialects {
		if d.subdir == "" {
			continue
		}
		if _, err := fs.Stat(fsys, d.subdir); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		sub, err := fs.Sub(fsys, d.subdir)
		if err != nil {
			return err
		}
		got, err := versions(sub)
		if err != nil {
			return fmt.Errorf("%s: %w", d.subdir, err)
		}
		if want, have := slices.Sorted(maps.Keys(base)), slices.Sorted(maps.Keys(got)); !slices.Equal(want, have) {
			return fmt.Errorf("%s migrations %v do not mirror %v", d.subdir, have, want)
		}
	}
	return nil
}

// versions maps each version at the root of fsys to its file name.
func versions(fsys fs.FS) (map[string]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	seen := map[string]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, ok := seen[m[1]]; ok {
			return nil, fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		seen[m[1]] = name

		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read file %q: %w", name, err)
		}
		if err := checkAnnotations(name, string(b)); err != nil {
			return nil, err
		}
	}
	return seen, nil
}

func checkAnnotations(name, txt string) error {
	for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
		if !strings.Contains(txt, marker) {
			return fmt.Errorf("migration %q missing %q", name, marker)
		}
	}
	begins := strings.Count(txt, "-- +goose StatementBegin")
	ends := strings.Count(txt, "-- +goose StatementEnd")
	if begins != ends {
		return fmt.Errorf("migration %q has %d StatementBegin and %d StatementEnd", name, begins, ends)
	}
	return nil
}
