// Package archive reads and writes the gzip-compressed tarballs used for
// volume snapshots and combined backup bundles.
package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

type Codec struct {
	level int
}

func NewCodec() *Codec {
	return &Codec{level: gzip.DefaultCompression}
}

func NewCodecWithLevel(level int) (*Codec, error) {
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		return nil, fmt.Errorf("invalid compression level %d", level)
	}
	return &Codec{level: level}, nil
}

// CompressDirectory writes the contents of src to dst. Entry names are
// relative to src, so extracting the archive recreates src's children.
func (c *Codec) CompressDirectory(ctx context.Context, src, dst string) (err error) {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}

	tw, closeAll, err := c.create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeAll(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		return addEntry(tw, path, filepath.ToSlash(rel))
	})
}

// CompressFiles folds each file into dst as a top-level entry named after
// its base name and removes the file once it has been written.
func (c *Codec) CompressFiles(ctx context.Context, paths []string, dst string) (err error) {
	tw, closeAll, err := c.create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeAll(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := addEntry(tw, path, filepath.Base(path)); err != nil {
			return err
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}

	return nil
}

// Decompress extracts src into outDir, creating it if needed. Entries that
// would land outside outDir are rejected.
func (c *Codec) Decompress(ctx context.Context, src, outDir string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to read gzip header of %s: %w", src, err)
	}
	defer gz.Close()

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", outDir, err)
	}

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", src, err)
		}

		target, err := safeJoin(outDir, hdr.Name)
		if err != nil {
			return err
		}
		if target == "" {
			continue
		}
		if err := checkNoSymlinkParents(outDir, target, hdr.Typeflag == tar.TypeDir); err != nil {
			return err
		}

		if err := extractEntry(tr, hdr, target); err != nil {
			return err
		}
	}
}

func (c *Codec) create(dst string) (*tar.Writer, func() error, error) {
	f, err := os.Create(dst)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", dst, err)
	}

	gz, err := gzip.NewWriterLevel(f, c.level)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	tw := tar.NewWriter(gz)

	closeAll := func() error {
		terr := tw.Close()
		gerr := gz.Close()
		ferr := f.Close()
		for _, e := range []error{terr, gerr, ferr} {
			if e != nil {
				return fmt.Errorf("failed to finalize %s: %w", dst, e)
			}
		}
		return nil
	}

	return tw, closeAll, nil
}

func addEntry(tw *tar.Writer, path, name string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}

	var link string
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		if link, err = os.Readlink(path); err != nil {
			return err
		}
	case info.IsDir(), info.Mode().IsRegular():
	default:
		// sockets, pipes and devices have no portable archive form
		return nil
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return fmt.Errorf("failed to build header for %s: %w", path, err)
	}
	hdr.Name = name
	if info.IsDir() {
		hdr.Name += "/"
	}

	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write header for %s: %w", path, err)
	}

	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("failed to archive %s: %w", path, err)
	}
	return nil
}

func extractEntry(tr *tar.Reader, hdr *tar.Header, target string) error {
	mode := os.FileMode(hdr.Mode).Perm()

	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(target, mode|0700); err != nil {
			return err
		}
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		// replace an earlier symlink entry instead of writing through it
		if info, err := os.Lstat(target); err == nil && info.Mode()&os.ModeSymlink != 0 {
			if err := os.Remove(target); err != nil {
				return err
			}
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return fmt.Errorf("failed to extract %s: %w", hdr.Name, err)
		}
		if err := out.Close(); err != nil {
			return err
		}
	case tar.TypeSymlink:
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		os.Remove(target)
		if err := os.Symlink(hdr.Linkname, target); err != nil {
			return err
		}
		return chown(target, hdr)
	default:
		return nil
	}

	if err := chown(target, hdr); err != nil {
		return err
	}
	return os.Chtimes(target, hdr.ModTime, hdr.ModTime)
}

// chown restores ownership when running as root. Database volumes depend on
// it, since their files belong to the service user.
func chown(target string, hdr *tar.Header) error {
	if os.Geteuid() != 0 {
		return nil
	}
	if err := os.Lchown(target, hdr.Uid, hdr.Gid); err != nil {
		return fmt.Errorf("failed to set owner of %s: %w", target, err)
	}
	return nil
}

func safeJoin(root, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." || clean == string(filepath.Separator) {
		return "", nil
	}
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes the output directory", name)
	}
	return filepath.Join(root, clean), nil
}

// checkNoSymlinkParents rejects target when a path component below root is
// a symlink, which an earlier entry of the same archive may have created.
// With self set, target itself is checked too.
func checkNoSymlinkParents(root, target string, self bool) error {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return err
	}

	parts := strings.Split(rel, string(filepath.Separator))
	if !self {
		parts = parts[:len(parts)-1]
	}

	cur := root
	for _, part := range parts {
		cur = filepath.Join(cur, part)
		info, err := os.Lstat(cur)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("archive entry %q escapes the output directory through symlink %s", rel, cur)
		}
	}
	return nil
}
