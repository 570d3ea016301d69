package analysis

import (
	"sync"
	"time"

	"patentworld/internal/exporter"
)

// Run and entry statuses
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// ManifestFile is the manifest's path relative to the output directory
const ManifestFile = "manifest.json"

// Manifest records one build run and every output it wrote
type Manifest struct {
	mu sync.RWMutex

	RunID         string    `json:"run_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Duration      string    `json:"duration"`
	SchemaVersion int       `json:"schema_version"`
	Version       string    `json:"version"`
	MinYear       int       `json:"min_year"`
	MaxYear       int       `json:"max_year"`
	Database      string    `json:"database"`

	Entries []ManifestEntry `json:"entries"`

	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ManifestEntry tracks the execution of one analysis
type ManifestEntry struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Output     string    `json:"output"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	DurationMS int64     `json:"duration_ms"`
	Status     string    `json:"status"`
	Size       int64     `json:"size,omitempty"`
	Digest     string    `json:"digest,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// NewManifest creates a manifest listing every planned analysis as pending
func NewManifest(runID string, planned []Analysis) *Manifest {
	m := &Manifest{
		RunID:         runID,
		StartTime:     time.Now().UTC(),
		SchemaVersion: exporter.SchemaVersion,
		Entries:       make([]ManifestEntry, 0, len(planned)),
		Status:        StatusRunning,
	}
	for _, a := range planned {
		m.Entries = append(m.Entries, ManifestEntry{
			ID:     a.ID(),
			Name:   a.Name(),
			Output: a.Output(),
			Status: StatusPending,
		})
	}
	return m
}

func (m *Manifest) entry(id string) *ManifestEntry {
	for i := range m.Entries {
		if m.Entries[i].ID == id {
			return &m.Entries[i]
		}
	}
	return nil
}

// RecordStart marks an analysis as running
func (m *Manifest) RecordStart(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e := m.entry(id); e != nil {
		e.StartTime = time.Now().UTC()
		e.Status = StatusRunning
	}
}

// RecordCompletion marks an analysis as completed with its written output
func (m *Manifest) RecordCompletion(id string, res exporter.WriteResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e := m.entry(id); e != nil {
		e.EndTime = time.Now().UTC()
		e.DurationMS = e.EndTime.Sub(e.StartTime).Milliseconds()
		e.Status = StatusCompleted
		e.Size = res.Size
		e.Digest = res.Digest
	}
}

// RecordFailure marks an analysis and the run as failed
func (m *Manifest) RecordFailure(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e := m.entry(id); e != nil {
		e.EndTime = time.Now().UTC()
		e.DurationMS = e.EndTime.Sub(e.StartTime).Milliseconds()
		e.Status = StatusFailed
		e.Error = err.Error()
	}
	m.Status = StatusFailed
	m.Error = "analysis " + id + " failed: " + err.Error()
}

// Abort marks the run as failed without blaming an analysis
func (m *Manifest) Abort(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Status = StatusFailed
	m.Error = err.Error()
}

// Finish closes the run. Entries still pending are marked skipped.
func (m *Manifest) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.Entries {
		if m.Entries[i].Status == StatusPending {
			m.Entries[i].Status = StatusSkipped
		}
	}
	if m.Status == StatusRunning {
		m.Status = StatusCompleted
	}
	m.EndTime = time.Now().UTC()
	m.Duration = m.EndTime.Sub(m.StartTime).String()
}

// Entry returns a copy of the entry for id
func (m *Manifest) Entry(id string) (ManifestEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if e := m.entry(id); e != nil {
		return *e, true
	}
	return ManifestEntry{}, false
}

// Completed counts the completed entries
func (m *Manifest) Completed() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, e := range m.Entries {
		if e.Status == StatusCompleted {
			n++
		}
	}
	return n
}

// Save writes the manifest through w, replacing the previous one
func (m *Manifest) Save(w *exporter.JSONWriter) (exporter.WriteResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return w.Write(ManifestFile, m)
}
