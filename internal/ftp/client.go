// Package ftp downloads carrier spreadsheets from the operator's FTP drop.
//
// Paths stored in the jobs table are relative to the FTP root and may carry
// an ftp:// prefix left over from older tooling; the client strips it and
// walks the directory segments with CWD before issuing a binary RETR.
package ftp

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/sabanasdb/internal/logging"
)

// DefaultTimeout bounds the control connection dial when the caller's
// context carries no deadline of its own.
const DefaultTimeout = 30 * time.Second

// Config holds the connection settings for the carrier FTP drop.
type Config struct {
	// Host is the server address, with an optional port (default 21).
	// Scheme prefixes (ftp://, ftps://) are tolerated and stripped.
	Host string
	// User and Password are the read-only download credentials.
	User     string
	Password string
	// Timeout bounds dial and transfer when non-zero.
	Timeout time.Duration
}

// Client downloads files from a single FTP server. It opens a fresh
// control connection per download; the carrier drop terminates idle
// sessions aggressively, so pooling buys nothing.
type Client struct {
	cfg Config
}

// NewClient creates a download client for the given server.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{cfg: cfg}
}

// Download fetches remotePath from the server into destDir, creating the
// directory if needed, and returns the local path of the downloaded file.
// The local file keeps the remote basename. A failed transfer leaves no
// partial file behind.
func (c *Client) Download(ctx context.Context, remotePath, destDir string) (string, error) {
	addr := NormalizeHost(c.cfg.Host)
	if addr == "" {
		return "", fmt.Errorf("ftp: no host configured")
	}

	rel := cleanRemotePath(remotePath)
	base := path.Base(rel)
	if base == "" || base == "." || base == "/" {
		return "", fmt.Errorf("ftp: remote path %q has no file name", remotePath)
	}

	conn, err := ftp.Dial(addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(c.cfg.Timeout),
	)
	if err != nil {
		return "", fmt.Errorf("ftp: dial %s: %w", addr, err)
	}
	defer func() {
		if qerr := conn.Quit(); qerr != nil {
			logging.Debugf("ftp: quit after download: %v", qerr)
		}
	}()

	if err := conn.Login(c.cfg.User, c.cfg.Password); err != nil {
		return "", fmt.Errorf("ftp: login as %s: %w", c.cfg.User, err)
	}

	// Walk into the directory holding the file. Some drops land the session
	// directly in the right directory, so a failed CWD is not fatal; the
	// RETR below reports the real error if the file is truly absent.
	for _, dir := range strings.Split(path.Dir(rel), "/") {
		if dir == "" || dir == "." {
			continue
		}
		if cdErr := conn.ChangeDir(dir); cdErr != nil {
			logging.Debugf("ftp: cwd %s: %v", dir, cdErr)
		}
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("ftp: create %s: %w", destDir, err)
	}
	localPath := filepath.Join(destDir, base)

	resp, err := conn.Retr(base)
	if err != nil {
		return "", fmt.Errorf("ftp: retrieve %s: %w", rel, err)
	}
	defer resp.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = resp.SetDeadline(deadline)
	} else if c.cfg.Timeout > 0 {
		_ = resp.SetDeadline(time.Now().Add(c.cfg.Timeout))
	}

	out, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("ftp: create %s: %w", localPath, err)
	}

	n, err := io.Copy(out, resp)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(localPath)
		return "", fmt.Errorf("ftp: download %s: %w", rel, err)
	}

	logging.Debugf("ftp: downloaded %s (%d bytes) to %s", rel, n, localPath)
	return localPath, nil
}

// NormalizeHost strips scheme prefixes and trailing slashes from a host
// string and appends the default FTP port when none is present.
func NormalizeHost(host string) string {
	h := strings.TrimSpace(host)
	for _, prefix := range []string{"ftp://", "ftps://"} {
		if strings.HasPrefix(h, prefix) {
			h = h[len(prefix):]
			break
		}
	}
	h = strings.TrimRight(h, "/")
	if h == "" {
		return ""
	}
	if !strings.Contains(h, ":") {
		h += ":21"
	}
	return h
}

// cleanRemotePath reduces a stored file path to a server-relative path:
// no scheme prefix, no leading slash, forward slashes only.
func cleanRemotePath(p string) string {
	s := strings.TrimSpace(p)
	s = strings.TrimPrefix(s, "ftp://")
	s = strings.TrimPrefix(s, "ftps://")
	s = strings.ReplaceAll(s, "\\", "/")
	return strings.TrimLeft(s, "/")
}
