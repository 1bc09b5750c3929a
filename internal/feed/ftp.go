package feed

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"listraksync/internal/domain"
	"listraksync/internal/models"

	"github.com/jlaffaye/ftp"
	"github.com/rs/zerolog"
)

// ftpConn is the part of *ftp.ServerConn the transport uses.
type ftpConn interface {
	Login(user, password string) error
	MakeDir(path string) error
	ChangeDir(path string) error
	Stor(path string, r io.Reader) error
	Rename(from, to string) error
	Delete(path string) error
	Quit() error
}

type dialFunc func(ctx context.Context, addr string, timeout time.Duration) (ftpConn, error)

func dialFTP(ctx context.Context, addr string, timeout time.Duration) (ftpConn, error) {
	return ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(timeout))
}

// FTPTransport uploads feeds to the Listrak FTP server.
type FTPTransport struct {
	host      string
	username  string
	password  string
	remoteDir string
	timeout   time.Duration
	dial      dialFunc
	logger    *zerolog.Logger
}

// NewFTPTransport reads the FTP account of scopeID from settings.
func NewFTPTransport(settings domain.SettingsProvider, scopeID, remoteDir string, logger *zerolog.Logger) (*FTPTransport, error) {
	username := settings.Get(models.SettingFTPUsername, scopeID)
	password := settings.Get(models.SettingFTPPassword, scopeID)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: ftp credentials missing for scope %q", models.ErrConfiguration, scopeID)
	}
	host := settings.Get(models.SettingFTPHost, scopeID)
	if host == "" {
		host = "ftp.listrak.com:21"
	}
	return &FTPTransport{
		host:      host,
		username:  username,
		password:  password,
		remoteDir: remoteDir,
		timeout:   30 * time.Second,
		dial:      dialFTP,
		logger:    logger,
	}, nil
}

// Deliver stores "<name>.part" and renames it once the upload completed.
func (t *FTPTransport) Deliver(ctx context.Context, name string, write func(io.Writer) error) error {
	conn, err := t.dial(ctx, t.host, t.timeout)
	if err != nil {
		return fmt.Errorf("dial ftp %s: %w", t.host, err)
	}
	defer func() {
		if err := conn.Quit(); err != nil {
			t.logger.Debug().Err(err).Msg("ftp quit")
		}
	}()

	if err := conn.Login(t.username, t.password); err != nil {
		return fmt.Errorf("ftp login as %s: %w", t.username, err)
	}

	dir := path.Clean("/" + strings.Trim(t.remoteDir, "/"))
	if err := ensureDir(conn, dir); err != nil {
		return err
	}
	final := path.Join(dir, name)
	tmp := final + ".part"

	pr, pw := io.Pipe()
	written := make(chan error, 1)
	go func() {
		err := write(pw)
		_ = pw.CloseWithError(err)
		written <- err
	}()

	storErr := conn.Stor(tmp, pr)
	// unblock the writer if the server stopped reading
	_ = pr.CloseWithError(io.ErrClosedPipe)
	writeErr := <-written

	if storErr != nil || writeErr != nil {
		if err := conn.Delete(tmp); err != nil {
			t.logger.Warn().Err(err).Str("file", tmp).Msg("failed to delete partial upload")
		}
		if storErr != nil {
			return fmt.Errorf("ftp upload %s: %w", tmp, storErr)
		}
		return writeErr
	}

	if err := conn.Rename(tmp, final); err != nil {
		if derr := conn.Delete(tmp); derr != nil {
			t.logger.Warn().Err(derr).Str("file", tmp).Msg("failed to delete partial upload")
		}
		return fmt.Errorf("ftp rename %s: %w", tmp, err)
	}
	t.logger.Info().Str("host", t.host).Str("file", final).Msg("feed uploaded")
	return nil
}

// ensureDir creates dir and all parents. A failing MKD is fine as long as
// the directory can be entered afterwards.
func ensureDir(conn ftpConn, dir string) error {
	if dir == "/" {
		return nil
	}
	current := ""
	for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
		current += "/" + part
		if err := conn.MakeDir(current); err != nil {
			if cdErr := conn.ChangeDir(current); cdErr != nil {
				return fmt.Errorf("ftp mkdir %s: %w", current, err)
			}
		}
	}
	return conn.ChangeDir("/")
}
