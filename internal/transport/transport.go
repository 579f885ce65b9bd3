// Package transport moves backup artifacts between the controller and the
// backup target.
package transport

import (
	"context"
	"path"
)

// Transport is a backup target. Remote paths always use forward slashes.
type Transport interface {
	Upload(ctx context.Context, localPath, remotePath string) error
	Download(ctx context.Context, remotePath, localPath string) error
	// List returns the names of the regular files directly inside dir.
	List(ctx context.Context, dir string) ([]string, error)
	Delete(ctx context.Context, remotePath string) error
	// ListNewest returns the base names of files in dir matching the shell
	// glob pattern, newest first by modification time.
	ListNewest(ctx context.Context, dir, pattern string) ([]string, error)
	String() string
}

func RemotePath(dir, name string) string {
	return path.Join(dir, name)
}
