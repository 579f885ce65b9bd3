package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

type SFTPConfig struct {
	Host           string
	Port           int
	User           string
	KeyPath        string
	KnownHostsPath string
	DialTimeout    time.Duration
}

// SFTP talks to an SSH server using key authentication. Every operation
// opens its own connection, so a long-lived scheduler never holds a stale
// session between cycles.
type SFTP struct {
	cfg SFTPConfig
	log zerolog.Logger
}

func NewSFTP(cfg SFTPConfig, log zerolog.Logger) (*SFTP, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("sftp host is required")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("sftp user is required")
	}
	if cfg.KeyPath == "" {
		return nil, fmt.Errorf("ssh key path is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 30 * time.Second
	}

	return &SFTP{
		cfg: cfg,
		log: log.With().Str("component", "sftp").Str("host", cfg.Host).Logger(),
	}, nil
}

func (s *SFTP) String() string {
	return fmt.Sprintf("sftp://%s@%s", s.cfg.User, s.addr())
}

func (s *SFTP) addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

func (s *SFTP) clientConfig() (*ssh.ClientConfig, error) {
	key, err := os.ReadFile(s.cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read ssh key %s: %w", s.cfg.KeyPath, err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ssh key %s: %w", s.cfg.KeyPath, err)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if s.cfg.KnownHostsPath != "" {
		hostKeyCallback, err = knownhosts.New(s.cfg.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts: %w", err)
		}
	} else {
		s.log.Warn().Msg("no known_hosts file configured, host key is not verified")
	}

	return &ssh.ClientConfig{
		User:            s.cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         s.cfg.DialTimeout,
	}, nil
}

func (s *SFTP) dial(ctx context.Context) (*ssh.Client, error) {
	config, err := s.clientConfig()
	if err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: s.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", s.addr(), err)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, s.addr(), config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", s.addr(), err)
	}

	return ssh.NewClient(c, chans, reqs), nil
}

// withClient runs fn on a fresh connection. Cancelling ctx closes the
// connection, which unblocks any in-flight transfer.
func (s *SFTP) withClient(ctx context.Context, fn func(*ssh.Client) error) error {
	client, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	stop := context.AfterFunc(ctx, func() { client.Close() })
	defer stop()

	if err := fn(client); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (s *SFTP) withSFTP(ctx context.Context, fn func(*sftp.Client) error) error {
	return s.withClient(ctx, func(client *ssh.Client) error {
		sc, err := sftp.NewClient(client)
		if err != nil {
			return fmt.Errorf("failed to start sftp subsystem: %w", err)
		}
		defer sc.Close()
		return fn(sc)
	})
}

func (s *SFTP) Upload(ctx context.Context, localPath, remotePath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer src.Close()

	return s.withSFTP(ctx, func(sc *sftp.Client) error {
		dst, err := sc.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
		if err != nil {
			return fmt.Errorf("failed to create remote file %s: %w", remotePath, err)
		}

		n, err := io.Copy(dst, src)
		if err != nil {
			dst.Close()
			return fmt.Errorf("failed to upload %s: %w", remotePath, err)
		}
		if err := dst.Close(); err != nil {
			return fmt.Errorf("failed to finalize %s: %w", remotePath, err)
		}
		if err := sc.Chmod(remotePath, 0644); err != nil {
			s.log.Debug().Err(err).Str("path", remotePath).Msg("could not set remote file mode")
		}

		s.log.Debug().Str("path", remotePath).Int64("bytes", n).Msg("uploaded")
		return nil
	})
}

func (s *SFTP) Download(ctx context.Context, remotePath, localPath string) error {
	return s.withSFTP(ctx, func(sc *sftp.Client) error {
		src, err := sc.Open(remotePath)
		if err != nil {
			return fmt.Errorf("failed to open remote file %s: %w", remotePath, err)
		}
		defer src.Close()

		dst, err := os.Create(localPath)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", localPath, err)
		}

		n, err := io.Copy(dst, src)
		if err != nil {
			dst.Close()
			return fmt.Errorf("failed to download %s: %w", remotePath, err)
		}
		if err := dst.Close(); err != nil {
			return err
		}

		s.log.Debug().Str("path", remotePath).Int64("bytes", n).Msg("downloaded")
		return nil
	})
}

func (s *SFTP) List(ctx context.Context, dir string) ([]string, error) {
	var names []string
	err := s.withSFTP(ctx, func(sc *sftp.Client) error {
		entries, err := sc.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.Mode().IsRegular() {
				names = append(names, e.Name())
			}
		}
		return nil
	})
	return names, err
}

func (s *SFTP) Delete(ctx context.Context, remotePath string) error {
	return s.withSFTP(ctx, func(sc *sftp.Client) error {
		if err := sc.Remove(remotePath); err != nil {
			return fmt.Errorf("failed to delete %s: %w", remotePath, err)
		}
		return nil
	})
}

// ListNewest runs ls -t on the server so ordering follows the remote
// filesystem's modification times. A missing directory is an error; a
// directory without matches yields an empty listing.
func (s *SFTP) ListNewest(ctx context.Context, dir, pattern string) ([]string, error) {
	command := listNewestCommand(dir, pattern)

	var out []byte
	err := s.withClient(ctx, func(client *ssh.Client) error {
		session, err := client.NewSession()
		if err != nil {
			return fmt.Errorf("failed to open ssh session: %w", err)
		}
		defer session.Close()

		out, err = session.Output(command)
		if err != nil {
			var exitErr *ssh.ExitError
			if errors.As(err, &exitErr) {
				return fmt.Errorf("remote command %q exited with status %d", command, exitErr.ExitStatus())
			}
			return fmt.Errorf("remote command %q failed: %w", command, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return parseListing(string(out)), nil
}

// listNewestCommand fails only when dir cannot be entered. ls exits
// non-zero when the glob matches nothing, which is not an error here.
func listNewestCommand(dir, pattern string) string {
	return fmt.Sprintf("cd %s && { ls -t %s 2>/dev/null; true; }", shellQuote(dir), pattern)
}

func parseListing(out string) []string {
	var names []string
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		names = append(names, path.Base(line))
	}
	return names
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
