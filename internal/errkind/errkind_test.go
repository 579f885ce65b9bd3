package errkind

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	base := errors.New("connection refused")

	err := Wrap(Transport, "upload", base)

	assert.EqualError(t, err, "transport: upload: connection refused")
	assert.ErrorIs(t, err, base)
	assert.Equal(t, Transport, KindOf(err))
	assert.True(t, Retryable(err))
}

func TestWrap_Nil(t *testing.T) {
	assert.NoError(t, Wrap(Archive, "compress", nil))
}

func TestKindOf_ThroughFmtWrapping(t *testing.T) {
	err := fmt.Errorf("volume %s: %w", "db", Errorf(ContainerControl, "stop", "daemon gone"))

	assert.Equal(t, ContainerControl, KindOf(err))
	assert.True(t, Is(err, ContainerControl))
	assert.False(t, Retryable(err))
}

func TestKindOf_Unclassified(t *testing.T) {
	assert.Equal(t, Unknown, KindOf(errors.New("plain")))
	assert.False(t, Is(nil, Unknown))
}

func TestKind_String(t *testing.T) {
	tests := map[Kind]string{
		Configuration:    "configuration",
		ContainerControl: "container-control",
		Archive:          "archive",
		Transport:        "transport",
		Policy:           "policy",
		Unknown:          "unknown",
	}
	for kind, want := range tests {
		assert.Equal(t, want, kind.String())
	}
}

func TestError_NoOp(t *testing.T) {
	err := Wrap(Configuration, "", errors.New("ACTION must be backup or restore"))
	assert.EqualError(t, err, "configuration: ACTION must be backup or restore")
}
