package docker

import (
	"testing"

	"github.com/aelpxy/volsnap/pkg/models"
	"github.com/docker/docker/api/types"
	"github.com/stretchr/testify/assert"
)

func TestIsSelf(t *testing.T) {
	full := "3f4e8a9b1c2d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b1c2d3e4f5a6b7c8d9e0f"
	ctr := types.Container{ID: full, Names: []string{"/volsnap"}}

	tests := []struct {
		name string
		self models.SelfIdentity
		want bool
	}{
		{"short id from hostname", models.SelfIdentity{ID: full[:12]}, true},
		{"full id", models.SelfIdentity{ID: full}, true},
		{"container name", models.SelfIdentity{ID: "volsnap"}, true},
		{"other container", models.SelfIdentity{ID: "aaaaaaaaaaaa"}, false},
		{"single character hostname", models.SelfIdentity{ID: "3"}, false},
		{"short hostname prefix", models.SelfIdentity{ID: "3f4e"}, false},
		{"prefix shorter than short id", models.SelfIdentity{ID: full[:11]}, false},
		{"unset identity", models.SelfIdentity{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isSelf(ctr, tt.self))
		})
	}
}

func TestContainerName(t *testing.T) {
	assert.Equal(t, "postgres", containerName(types.Container{ID: "abc", Names: []string{"/postgres"}}))
	assert.Equal(t, "0123456789ab", containerName(types.Container{ID: "0123456789abcdef"}))
}

func TestResolveSelfIdentity(t *testing.T) {
	id, err := ResolveSelfIdentity("  abc123  ")
	assert.NoError(t, err)
	assert.Equal(t, "abc123", id.ID)

	id, err = ResolveSelfIdentity("")
	assert.NoError(t, err)
	assert.NotEmpty(t, id.ID)
}
