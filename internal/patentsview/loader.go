package patentsview

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"patentworld/internal/engine"
	apperrors "patentworld/internal/errors"
	"patentworld/internal/infrastructure"
)

const utf8BOM = "\ufeff"

// LoadStats reports the outcome of loading one table
type LoadStats struct {
	Table    string        `json:"table"`
	File     string        `json:"file"`
	Rows     int64         `json:"rows"`
	Rejected int64         `json:"rejected"`
	Duration time.Duration `json:"duration"`
}

// Loader streams PatentsView TSV files into the database
type Loader struct {
	db        *engine.DB
	batchSize int
	metrics   *infrastructure.BatchMetrics
	logger    *slog.Logger
}

// NewLoader creates a loader. A nil metrics records nothing.
func NewLoader(db *engine.DB, batchSize int, metrics *infrastructure.BatchMetrics, logger *slog.Logger) *Loader {
	if batchSize <= 0 {
		batchSize = 50000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		db:        db,
		batchSize: batchSize,
		metrics:   metrics,
		logger:    infrastructure.WithComponent(logger, "loader"),
	}
}

// LoadAll recreates every catalog table, loads the discovered files, and
// builds indexes. Optional tables without a file are left empty.
func (l *Loader) LoadAll(ctx context.Context, files []SourceFile) ([]LoadStats, error) {
	found := make(map[string]SourceFile, len(files))
	for _, f := range files {
		found[f.Spec.Name] = f
	}

	var all []LoadStats
	for _, spec := range Catalog {
		if err := l.db.RecreateTable(ctx, spec.Table()); err != nil {
			return all, err
		}

		src, ok := found[spec.Name]
		if !ok {
			continue
		}

		stats, err := l.loadFile(ctx, src)
		if err != nil {
			return all, err
		}
		all = append(all, stats)
	}

	start := time.Now()
	if err := l.db.CreateIndexes(ctx); err != nil {
		return all, err
	}
	l.logger.InfoContext(ctx, "Indexes built", slog.Duration("duration", time.Since(start)))

	return all, nil
}

func (l *Loader) loadFile(ctx context.Context, src SourceFile) (LoadStats, error) {
	rc, err := OpenTable(src.Path)
	if err != nil {
		return LoadStats{}, err
	}
	defer rc.Close()

	l.logger.InfoContext(ctx, "Loading table",
		slog.String("table", src.Spec.Name),
		slog.String("file", src.Path),
		infrastructure.Bytes("size", src.Size))

	stats, err := l.Load(ctx, rc, src.Spec)
	stats.File = src.Path
	return stats, err
}

// Load reads one TSV stream into spec's table, which must already exist.
// Rows whose required columns fail conversion are rejected and counted.
func (l *Loader) Load(ctx context.Context, r io.Reader, spec TableSpec) (LoadStats, error) {
	start := time.Now()
	stats := LoadStats{Table: spec.Name}

	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return stats, apperrors.NewParsingError("empty file, no header", nil).WithContext("table", spec.Name)
		}
		return stats, apperrors.NewParsingError("failed to read header", err).WithContext("table", spec.Name)
	}

	positions, err := mapColumns(header, spec)
	if err != nil {
		return stats, err
	}

	table := spec.Table()
	insert := table.InsertSQL()

	var (
		tx   *sqlx.Tx
		stmt *sqlx.Stmt
		n    int
	)
	begin := func() error {
		var err error
		if tx, err = l.db.BeginTxx(ctx, nil); err != nil {
			return apperrors.NewLoadError(spec.Name, err)
		}
		if stmt, err = tx.PreparexContext(ctx, insert); err != nil {
			tx.Rollback()
			return apperrors.NewLoadError(spec.Name, err)
		}
		n = 0
		return nil
	}
	commit := func() error {
		stmt.Close()
		if err := tx.Commit(); err != nil {
			return apperrors.NewLoadError(spec.Name, err)
		}
		return nil
	}

	if err := begin(); err != nil {
		return stats, err
	}

	values := make([]interface{}, len(spec.Columns))
	line := 1
	for {
		record, err := reader.Read()
		line++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				stats.Rejected++
				continue
			}
			tx.Rollback()
			return stats, apperrors.NewLoadError(spec.Name, err).WithContext("line", line)
		}

		if !convertRow(record, positions, spec.Columns, values) {
			stats.Rejected++
			continue
		}

		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			tx.Rollback()
			return stats, apperrors.NewLoadError(spec.Name, err).WithContext("line", line)
		}
		stats.Rows++
		n++

		if n >= l.batchSize {
			if err := commit(); err != nil {
				return stats, err
			}
			if err := begin(); err != nil {
				return stats, err
			}
		}
	}

	if err := commit(); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	l.metrics.RecordLoad(ctx, spec.Name, stats.Rows, stats.Rejected)

	l.logger.InfoContext(ctx, "Table loaded",
		slog.String("table", spec.Name),
		infrastructure.Count("rows", stats.Rows),
		infrastructure.Count("rejected", stats.Rejected),
		infrastructure.Rate("throughput", stats.Rows, stats.Duration),
		slog.Duration("duration", stats.Duration))

	return stats, nil
}

// mapColumns returns, per spec column, its index in the header. Optional
// columns absent from the header map to -1.
func mapColumns(header []string, spec TableSpec) ([]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}

	positions := make([]int, len(spec.Columns))
	var missing []string
	for i, c := range spec.Columns {
		pos, ok := index[strings.ToLower(c.Source)]
		if !ok {
			if c.Required {
				missing = append(missing, c.Source)
			}
			pos = -1
		}
		positions[i] = pos
	}

	if len(missing) > 0 {
		return nil, apperrors.NewParsingError(
			fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")), nil).
			WithContext("table", spec.Name)
	}
	return positions, nil
}

// convertRow fills values from record. It returns false when a required
// column is empty or fails conversion.
func convertRow(record []string, positions []int, cols []ColumnSpec, values []interface{}) bool {
	for i, c := range cols {
		raw := ""
		if pos := positions[i]; pos >= 0 && pos < len(record) {
			raw = record[pos]
		}
		v := convert(raw, c.Kind)
		if v == nil && c.Required {
			return false
		}
		values[i] = v
	}
	return true
}

// convert parses one field. Empty or unparseable values become NULL.
func convert(raw string, kind Kind) interface{} {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "NULL") {
		return nil
	}

	switch kind {
	case KindInt:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
		// some releases write integer columns as "3.0"
		if f, err := strconv.ParseFloat(raw, 64); err == nil && f == float64(int64(f)) {
			return int64(f)
		}
		return nil
	case KindReal:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil
		}
		return f
	case KindDate:
		return parseDate(raw)
	default:
		return raw
	}
}

// parseDate accepts YYYY-MM-DD; placeholders such as 0000-00-00 are NULL
func parseDate(raw string) interface{} {
	if len(raw) > 10 {
		raw = raw[:10]
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil || t.Year() < 1790 {
		return nil
	}
	return t.Format("2006-01-02")
}
