package analysis_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patentworld/internal/analysis"
	"patentworld/internal/exporter"
)

func TestManifest(t *testing.T) {
	planned := []analysis.Analysis{newStub("a"), newStub("b"), newStub("c")}

	t.Run("NewManifest", func(t *testing.T) {
		m := analysis.NewManifest("run-1", planned)

		assert.Equal(t, "run-1", m.RunID)
		assert.Equal(t, analysis.StatusRunning, m.Status)
		assert.Equal(t, exporter.SchemaVersion, m.SchemaVersion)
		require.Len(t, m.Entries, 3)
		for _, e := range m.Entries {
			assert.Equal(t, analysis.StatusPending, e.Status)
			assert.Equal(t, e.ID+".json", e.Output)
		}
	})

	t.Run("RecordCompletion", func(t *testing.T) {
		m := analysis.NewManifest("run-1", planned)
		m.RecordStart("a")

		e, ok := m.Entry("a")
		require.True(t, ok)
		assert.Equal(t, analysis.StatusRunning, e.Status)

		m.RecordCompletion("a", exporter.WriteResult{Path: "/x/a.json", Size: 12, Digest: "abc"})
		e, _ = m.Entry("a")
		assert.Equal(t, analysis.StatusCompleted, e.Status)
		assert.Equal(t, int64(12), e.Size)
		assert.Equal(t, "abc", e.Digest)
		assert.GreaterOrEqual(t, e.DurationMS, int64(0))
		assert.Equal(t, 1, m.Completed())
	})

	t.Run("RecordFailure", func(t *testing.T) {
		m := analysis.NewManifest("run-1", planned)
		m.RecordStart("a")
		m.RecordCompletion("a", exporter.WriteResult{})
		m.RecordStart("b")
		m.RecordFailure("b", errors.New("boom"))
		m.Finish()

		assert.Equal(t, analysis.StatusFailed, m.Status)
		assert.Contains(t, m.Error, "analysis b failed: boom")

		b, _ := m.Entry("b")
		assert.Equal(t, analysis.StatusFailed, b.Status)
		assert.Equal(t, "boom", b.Error)

		c, _ := m.Entry("c")
		assert.Equal(t, analysis.StatusSkipped, c.Status)
		assert.NotEmpty(t, m.Duration)
	})

	t.Run("Finish", func(t *testing.T) {
		m := analysis.NewManifest("run-1", nil)
		m.Finish()
		assert.Equal(t, analysis.StatusCompleted, m.Status)
		assert.False(t, m.EndTime.Before(m.StartTime))

		_, ok := m.Entry("a")
		assert.False(t, ok)
	})

	t.Run("Save", func(t *testing.T) {
		dir := t.TempDir()
		m := analysis.NewManifest("run-1", planned)
		m.RecordStart("a")
		m.RecordCompletion("a", exporter.WriteResult{Size: 3, Digest: "d"})
		m.Finish()

		res, err := m.Save(exporter.NewJSONWriter(dir, 6, nil))
		require.NoError(t, err)
		assert.Equal(t, analysis.ManifestFile, res.Path)
		assert.Positive(t, res.Size)

		doc, err := exporter.ReadJSON(filepath.Join(dir, analysis.ManifestFile))
		require.NoError(t, err)
		obj := doc.(map[string]interface{})
		assert.Equal(t, "run-1", obj["run_id"])
		assert.Equal(t, "completed", obj["status"])
		assert.NotContains(t, obj, "error")

		entries := obj["entries"].([]interface{})
		require.Len(t, entries, 3)
		first := entries[0].(map[string]interface{})
		assert.Equal(t, "a", first["id"])
		assert.Equal(t, "d", first["digest"])
		second := entries[1].(map[string]interface{})
		assert.Equal(t, "skipped", second["status"])
		assert.NotContains(t, second, "digest")
	})
}
