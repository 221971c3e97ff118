package dataset

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/gzip"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/go-scripts/harvest/internal/types"
)

var tracer = otel.Tracer("harvest.internal.dataset")

// Header is the column layout of every dataset written by the store
var Header = []string{"datestamp", "name", "address", "city"}

// Store persists one gzip compressed CSV file per dataset identifier
type Store struct {
	Dir    string
	Now    func() time.Time
	Logger *log.Logger
}

// MergeResult describes a completed merge
type MergeResult struct {
	Path     string
	Existing int
	Added    int
	// Records is the full dataset as written
	Records []types.Listing
}

// New creates a store writing into dir
func New(dir string, logger *log.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, types.PersistenceError("create dir", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Store{Dir: dir, Now: time.Now, Logger: logger}, nil
}

// Path returns the dataset file of id
func (s *Store) Path(id string) string {
	return filepath.Join(s.Dir, id+".csv.gz")
}

// Load reads the dataset of id. A missing file is an empty dataset.
func (s *Store) Load(ctx context.Context, id string) ([]types.Listing, error) {
	_, span := tracer.Start(ctx, "Load")
	defer span.End()

	records, err := s.load(s.Path(id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load dataset")
		return nil, err
	}
	span.SetAttributes(attribute.Int("records", len(records)))
	return records, nil
}

// Merge unions records into the dataset of id and atomically rewrites it.
// Records already present are skipped, new ones are appended in order and
// stamped with the current date. The previous file stays untouched when
// anything fails.
func (s *Store) Merge(ctx context.Context, id string, records []types.Listing) (MergeResult, error) {
	ctx, span := tracer.Start(ctx, "Merge")
	defer span.End()

	path := s.Path(id)
	result := MergeResult{Path: path}

	existing, err := s.load(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load dataset")
		return result, err
	}

	merged := make([]types.Listing, 0, len(existing)+len(records))
	seen := make(map[types.Key]struct{}, len(existing)+len(records))
	for _, l := range existing {
		seen[l.Key()] = struct{}{}
		merged = append(merged, l)
	}

	today := s.now().Format(types.DateLayout)
	for _, l := range records {
		if !l.Valid() {
			continue
		}
		key := l.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		l.Datestamp = today
		merged = append(merged, l)
		result.Added++
	}
	result.Existing = len(existing)

	err = writeAtomic(ctx, path, func(w io.Writer) error {
		return encode(w, merged)
	})
	if err != nil {
		err = types.PersistenceError("write", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write dataset")
		return result, err
	}

	result.Records = merged
	span.SetAttributes(
		attribute.Int("existing", result.Existing),
		attribute.Int("added", result.Added),
	)
	s.logger().Info("dataset written", "path", path, "existing", result.Existing, "added", result.Added, "total", len(merged))
	return result, nil
}

// ExportJSON writes records as an indented JSON array next to the dataset
// of id and returns the file path.
func (s *Store) ExportJSON(ctx context.Context, id string, records []types.Listing) (string, error) {
	path := filepath.Join(s.Dir, id+".json")

	err := writeAtomic(ctx, path, func(w io.Writer) error {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if records == nil {
			records = []types.Listing{}
		}
		return encoder.Encode(records)
	})
	if err != nil {
		return "", types.PersistenceError("export json", err)
	}
	return path, nil
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Store) logger() *log.Logger {
	if s.Logger == nil {
		return log.Default()
	}
	return s.Logger
}

// load reads path, mapping columns by header name so files written before
// the datestamp or city columns existed still load.
func (s *Store) load(path string) ([]types.Listing, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, types.PersistenceError("load", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, types.PersistenceError("load", fmt.Errorf("%s: %w", path, err))
	}
	defer gz.Close()

	reader := csv.NewReader(gz)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, types.PersistenceError("load", fmt.Errorf("%s: header: %w", path, err))
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	if _, ok := columns["name"]; !ok {
		return nil, types.PersistenceError("load", fmt.Errorf("%s: no name column in header %q", path, header))
	}

	field := func(row []string, column string) string {
		i, ok := columns[column]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	today := s.now().Format(types.DateLayout)
	var records []types.Listing
	seen := make(map[types.Key]struct{})
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, types.PersistenceError("load", fmt.Errorf("%s: %w", path, err))
		}

		l := types.Listing{
			Datestamp: field(row, "datestamp"),
			Name:      field(row, "name"),
			Address:   field(row, "address"),
			City:      field(row, "city"),
		}
		if !l.Valid() {
			s.logger().Debug("skipping row without name", "path", path, "line", line)
			continue
		}
		if _, dup := seen[l.Key()]; dup {
			continue
		}
		seen[l.Key()] = struct{}{}
		if l.Datestamp == "" {
			l.Datestamp = today
		}
		records = append(records, l)
	}
	return records, nil
}

func encode(w io.Writer, records []types.Listing) error {
	gz := gzip.NewWriter(w)
	cw := csv.NewWriter(gz)

	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, l := range records {
		if err := cw.Write([]string{l.Datestamp, l.Name, l.Address, l.City}); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return gz.Close()
}

// writeAtomic fills a temp file next to path, syncs it and renames it over
// path. On failure the temp file is removed and path is left as it was.
func writeAtomic(ctx context.Context, path string, fill func(io.Writer) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = fill(tmp); err != nil {
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
