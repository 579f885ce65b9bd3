package docker

import (
	"fmt"
	"os"
	"strings"

	"github.com/aelpxy/volsnap/pkg/models"
)

// ResolveSelfIdentity returns override when set, otherwise the hostname,
// which the runtime sets to the container's short ID.
func ResolveSelfIdentity(override string) (models.SelfIdentity, error) {
	if id := strings.TrimSpace(override); id != "" {
		return models.SelfIdentity{ID: id}, nil
	}

	hostname, err := os.Hostname()
	if err != nil {
		return models.SelfIdentity{}, fmt.Errorf("failed to resolve own container id: %w", err)
	}
	return models.SelfIdentity{ID: strings.TrimSpace(hostname)}, nil
}
