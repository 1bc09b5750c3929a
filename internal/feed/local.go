package feed

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
)

// LocalTransport writes feeds into a directory of fs.
type LocalTransport struct {
	fs  afero.Fs
	dir string
}

func NewLocalTransport(fs afero.Fs, dir string) *LocalTransport {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &LocalTransport{fs: fs, dir: dir}
}

// Deliver writes to "<name>.part" and renames it over the final file.
func (t *LocalTransport) Deliver(ctx context.Context, name string, write func(io.Writer) error) (err error) {
	if err := t.fs.MkdirAll(t.dir, 0o755); err != nil {
		return fmt.Errorf("create feed directory %s: %w", t.dir, err)
	}
	final := filepath.Join(t.dir, name)
	tmp := final + ".part"

	f, err := t.fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			_ = t.fs.Remove(tmp)
		}
	}()

	if err = write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	if err = t.fs.Rename(tmp, final); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
