package patentsview

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	apperrors "patentworld/internal/errors"
)

// SourceFile is a discovered bulk file for one catalog table
type SourceFile struct {
	Spec   TableSpec
	Path   string
	Zipped bool
	Size   int64
}

// Discover finds "<name>.tsv" or "<name>.tsv.zip" for every catalog table in
// dir. A missing required table is a NOT_FOUND error; missing optional tables
// are skipped with a warning.
func Discover(dir string, logger *slog.Logger) ([]SourceFile, error) {
	if logger == nil {
		logger = slog.Default()
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("raw data directory %s", dir))
	}

	var files []SourceFile
	var missing []string

	for _, spec := range Catalog {
		src, ok := findSource(dir, spec)
		if !ok {
			if spec.Optional {
				logger.Warn("Optional table not found, skipping",
					slog.String("table", spec.Name),
					slog.Any("candidates", spec.Files))
				continue
			}
			missing = append(missing, spec.Files[0])
			continue
		}
		files = append(files, src)
	}

	if len(missing) > 0 {
		return nil, apperrors.NewNotFoundError("required tables "+strings.Join(missing, ", ")).
			WithContext("dir", dir)
	}
	return files, nil
}

func findSource(dir string, spec TableSpec) (SourceFile, bool) {
	for _, base := range spec.Files {
		for _, candidate := range []struct {
			name   string
			zipped bool
		}{
			{base + ".tsv", false},
			{base + ".tsv.zip", true},
		} {
			path := filepath.Join(dir, candidate.name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return SourceFile{Spec: spec, Path: path, Zipped: candidate.zipped, Size: info.Size()}, true
			}
		}
	}
	return SourceFile{}, false
}

// zipMember closes the member reader together with its archive
type zipMember struct {
	io.ReadCloser
	archive *zip.ReadCloser
}

func (z *zipMember) Close() error {
	err := z.ReadCloser.Close()
	if cerr := z.archive.Close(); err == nil {
		err = cerr
	}
	return err
}

// OpenTable opens a plain TSV, or the first .tsv member of a zip archive
func OpenTable(path string) (io.ReadCloser, error) {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		f, err := os.Open(path)
		if err != nil {
			return nil, apperrors.NewStorageError("failed to open source file", err).WithContext("path", path)
		}
		return f, nil
	}

	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, apperrors.NewParsingError("failed to open zip archive", err).WithContext("path", path)
	}

	for _, member := range archive.File {
		if member.FileInfo().IsDir() || !strings.EqualFold(filepath.Ext(member.Name), ".tsv") {
			continue
		}
		rc, err := member.Open()
		if err != nil {
			archive.Close()
			return nil, apperrors.NewParsingError("failed to open zip member", err).
				WithContext("path", path).WithContext("member", member.Name)
		}
		return &zipMember{ReadCloser: rc, archive: archive}, nil
	}

	archive.Close()
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("tsv member in %s", path))
}
