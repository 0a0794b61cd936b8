package migrate

import (
	"bytes"
	"cmp"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
)

//go:generate go run ../../cmd/migrationc -src migrations -out compiled.psv

//go:embed compiled.psv
var compiled []byte

// Delimiter separates fields in the compiled migration table.
const Delimiter = '|'

var header = []string{"timestamp", "name", "up", "down"}

// Migration is one schema version step.
type Migration struct {
	// Timestamp is the version: unix seconds at authoring time.
	Timestamp uint64
	Name      string
	Up        string
	Down      string
}

// Validate checks the fields of a single migration.
func (m Migration) Validate() error {
	if m.Timestamp == 0 {
		return invalid(0, "timestamp must be positive (migration %q)", m.Name)
	}
	if strings.TrimSpace(m.Name) == "" {
		return invalid(m.Timestamp, "name is empty")
	}
	if strings.TrimSpace(m.Up) == "" {
		return invalid(m.Timestamp, "up script is empty")
	}
	if strings.TrimSpace(m.Down) == "" {
		return invalid(m.Timestamp, "down script is empty")
	}
	return nil
}

// String returns "<timestamp>-<name>", the migration's directory name.
func (m Migration) String() string {
	return fmt.Sprintf("%d-%s", m.Timestamp, m.Name)
}

// Embedded returns the migrations compiled into the binary, oldest first.
func Embedded() ([]Migration, error) {
	return Parse(bytes.NewReader(compiled))
}

// Parse reads a compiled migration table. The result is sorted by timestamp.
func Parse(r io.Reader) ([]Migration, error) {
	cr := csv.NewReader(r)
	cr.Comma = Delimiter
	cr.FieldsPerRecord = len(header)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, &MigrationError{Code: ErrCodeInvalidMigration, Message: "read compiled table", Err: err}
	}
	if len(records) == 0 {
		return nil, invalid(0, "compiled table has no header")
	}
	if !slices.Equal(records[0], header) {
		return nil, invalid(0, "unexpected header %q", strings.Join(records[0], string(Delimiter)))
	}

	migrations := make([]Migration, 0, len(records)-1)
	for i, rec := range records[1:] {
		ts, err := strconv.ParseUint(rec[0], 10, 64)
		if err != nil {
			return nil, invalid(0, "row %d: timestamp %q is not unix seconds", i+1, rec[0])
		}
		migrations = append(migrations, Migration{Timestamp: ts, Name: rec[1], Up: rec[2], Down: rec[3]})
	}
	return checkSet(migrations)
}

// Load reads source migrations from fsys. Each top-level directory must be
// named <unix-seconds>-<name> and contain up.sql and down.sql. Other files
// are ignored.
func Load(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := entry.Name()
		prefix, name, ok := strings.Cut(dir, "-")
		if !ok {
			return nil, invalid(0, "directory %q is not <timestamp>-<name>", dir)
		}
		ts, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			return nil, invalid(0, "directory %q: timestamp is not unix seconds", dir)
		}

		up, err := fs.ReadFile(fsys, path.Join(dir, "up.sql"))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", dir, err)
		}
		down, err := fs.ReadFile(fsys, path.Join(dir, "down.sql"))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", dir, err)
		}
		migrations = append(migrations, Migration{Timestamp: ts, Name: name, Up: string(up), Down: string(down)})
	}
	return checkSet(migrations)
}

// Encode writes migrations as a compiled table, oldest first.
func Encode(w io.Writer, migrations []Migration) error {
	sorted, err := checkSet(slices.Clone(migrations))
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	cw.Comma = Delimiter
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, m := range sorted {
		row := []string{strconv.FormatUint(m.Timestamp, 10), m.Name, m.Up, m.Down}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// checkSet validates every migration, rejects duplicate timestamps and sorts
// the slice in place.
func checkSet(migrations []Migration) ([]Migration, error) {
	var errs []error
	for _, m := range migrations {
		if err := m.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	slices.SortFunc(migrations, func(a, b Migration) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	for i := 1; i < len(migrations); i++ {
		if migrations[i].Timestamp == migrations[i-1].Timestamp {
			return nil, invalid(migrations[i].Timestamp, "duplicate timestamp (%s and %s)",
				migrations[i-1].Name, migrations[i].Name)
		}
	}
	return migrations, nil
}
