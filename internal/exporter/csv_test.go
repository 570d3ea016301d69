package exporter

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := strings.TrimPrefix(string(data), "\ufeff")
	records, err := csv.NewReader(strings.NewReader(content)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestCSVWriter_WriteCSV(t *testing.T) {
	tempDir := t.TempDir()
	writer := NewCSVWriter(tempDir)

	tests := []struct {
		name     string
		filePath string
		options  WriteOptions
		want     [][]string
		wantBOM  bool
	}{
		{
			name:     "headers and records",
			filePath: "audit/report.csv",
			options: WriteOptions{
				Headers: []string{"id", "status"},
				Records: [][]string{{"c1", "pass"}, {"c2", "fail"}},
			},
			want: [][]string{{"id", "status"}, {"c1", "pass"}, {"c2", "fail"}},
		},
		{
			name:     "bom prefix",
			filePath: "bom.csv",
			options: WriteOptions{
				Headers:   []string{"a"},
				Records:   [][]string{{"Åbo, \"quoted\""}},
				BOMPrefix: true,
			},
			want:    [][]string{{"a"}, {"Åbo, \"quoted\""}},
			wantBOM: true,
		},
		{
			name:     "empty records",
			filePath: "empty.csv",
			options:  WriteOptions{Headers: []string{"x", "y"}},
			want:     [][]string{{"x", "y"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := writer.WriteCSV(tt.filePath, tt.options)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(tempDir, tt.filePath), path)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBOM, strings.HasPrefix(string(data), "\ufeff"))
			assert.Equal(t, tt.want, readCSV(t, path))
		})
	}
}

func TestCSVWriter_AppendAndOverwrite(t *testing.T) {
	writer := NewCSVWriter(t.TempDir())

	path, err := writer.WriteSimpleCSV("x.csv", []string{"h"}, [][]string{{"1"}, {"2"}})
	require.NoError(t, err)

	_, err = writer.WriteCSV("x.csv", WriteOptions{Records: [][]string{{"3"}}, Append: true})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"h"}, {"1"}, {"2"}, {"3"}}, readCSV(t, path))

	_, err = writer.WriteSimpleCSV("x.csv", []string{"h"}, [][]string{{"9"}})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"h"}, {"9"}}, readCSV(t, path))
}

func TestCSVWriter_AbsolutePath(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "abs.csv")
	path, err := NewCSVWriter("/nonexistent-base").WriteSimpleCSV(abs, []string{"a"}, nil)
	require.NoError(t, err)
	assert.Equal(t, abs, path)
	assert.FileExists(t, abs)
}
