package models

import "time"

// Volume is a data directory under the backup root, named after the
// container volume mounted there.
type Volume struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type BackupArtifact struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Valid     bool      `json:"valid"`
}

// ContainerHandle identifies a container that was stopped and must be
// started again.
type ContainerHandle struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SelfIdentity is the container identity of the running controller. It is
// never stopped while quiescing a volume.
type SelfIdentity struct {
	ID string `json:"id"`
}

func (s SelfIdentity) IsZero() bool {
	return s.ID == ""
}
