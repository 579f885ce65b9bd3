package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/aelpxy/volsnap/internal/constants"
	"github.com/aelpxy/volsnap/internal/utils"
	"github.com/aelpxy/volsnap/pkg/models"
)

// HistoryRegistry records every cycle run on this host.
type HistoryRegistry struct {
	mu      sync.Mutex
	history models.CycleHistory
	path    string
	limit   int
}

func NewHistoryRegistry(stateDir string) *HistoryRegistry {
	return &HistoryRegistry{
		history: models.CycleHistory{Records: []models.CycleRecord{}},
		path:    filepath.Join(stateDir, constants.HistoryFileName),
		limit:   constants.MaxHistoryRecords,
	}
}

func (r *HistoryRegistry) Initialize() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := json.Unmarshal(data, &r.history); err != nil {
		return fmt.Errorf("failed to parse history: %w", err)
	}
	return nil
}

func (r *HistoryRegistry) save() error {
	data, err := json.MarshalIndent(r.history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	if err := utils.AtomicWriteFile(r.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}

	return nil
}

func (r *HistoryRegistry) Add(record models.CycleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.history.Records = append(r.history.Records, record)
	if over := len(r.history.Records) - r.limit; over > 0 {
		r.history.Records = r.history.Records[over:]
	}
	return r.save()
}

func (r *HistoryRegistry) Update(record models.CycleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.history.Records {
		if r.history.Records[i].ID == record.ID {
			r.history.Records[i] = record
			return r.save()
		}
	}
	return fmt.Errorf("cycle not found: %s", record.ID)
}

func (r *HistoryRegistry) Get(id string) (*models.CycleRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.history.Records {
		if r.history.Records[i].ID == id {
			rec := r.history.Records[i]
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("cycle not found: %s", id)
}

// List returns records newest first, optionally restricted to one kind.
func (r *HistoryRegistry) List(kind models.CycleKind) []models.CycleRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.CycleRecord
	for _, rec := range r.history.Records {
		if kind == "" || rec.Kind == kind {
			out = append(out, rec)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

func sortNewestFirst(artifacts []models.BackupArtifact) {
	sort.SliceStable(artifacts, func(i, j int) bool {
		a, b := artifacts[i], artifacts[j]
		if a.Valid != b.Valid {
			return a.Valid
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}
