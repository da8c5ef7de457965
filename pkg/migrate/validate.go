package migrate

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"regexp"
	"strconv"
	"strings"
)

var fileNameRe = regexp.MustCompile(`^(\d{14})_([a-z0-9]+(?:_[a-z0-9]+)*)\.sql$`)

// ValidateFS checks every .sql file at the root of fsys: the name must be
// <14-digit version>_<snake_name>.sql, versions must be unique, and each
// file needs goose Up and Down sections with balanced statement blocks.
func ValidateFS(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	versions := make(map[int64]string, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		version, err := parseFileName(name)
		if err != nil {
			return err
		}
		if prev, dup := versions[version]; dup {
			return fmt.Errorf("version %d used by both %s and %s", version, prev, name)
		}
		versions[version] = name

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if err := checkAnnotations(body); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func parseFileName(name string) (int64, error) {
	m := fileNameRe.FindStringSubmatch(name)
	if m == nil {
		return 0, fmt.Errorf("bad migration file name %q, want YYYYMMDDHHMMSS_snake_name.sql", name)
	}
	return strconv.ParseInt(m[1], 10, 64)
}

func checkAnnotations(body []byte) error {
	var up, down, open bool
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		switch strings.TrimSpace(sc.Text()) {
		case "-- +goose Up":
			if down {
				return fmt.Errorf("Up section after Down")
			}
			up = true
		case "-- +goose Down":
			if open {
				return fmt.Errorf("StatementBegin not closed before Down")
			}
			down = true
		case "-- +goose StatementBegin":
			if open {
				return fmt.Errorf("nested StatementBegin")
			}
			open = true
		case "-- +goose StatementEnd":
			if !open {
				return fmt.Errorf("StatementEnd without StatementBegin")
			}
			open = false
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	switch {
	case !up:
		return fmt.Errorf(`missing "-- +goose Up"`)
	case !down:
		return fmt.Errorf(`missing "-- +goose Down"`)
	case open:
		return fmt.Errorf("StatementBegin not closed")
	}
	return nil
}
