package docker

import "time"

const (
	ContainerOpTimeout = 30 * time.Second
	// StopGracePeriod is passed to the runtime before it kills a container.
	StopGracePeriod = 10
	PingTimeout     = 5 * time.Second
)

// ShortIDLength is the length of the abbreviated container ID the runtime
// uses as a container's hostname.
const ShortIDLength = 12
