package models

import "time"

type CycleKind string

const (
	CycleBackup  CycleKind = "backup"
	CycleRestore CycleKind = "restore"
)

type CycleRecord struct {
	ID          string    `json:"id"`
	Kind        CycleKind `json:"kind"`
	Artifact    string    `json:"artifact,omitempty"`
	Volumes     []string  `json:"volumes"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	SizeBytes   int64     `json:"size_bytes"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
}

const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type CycleHistory struct {
	Records []CycleRecord `json:"records"`
}
