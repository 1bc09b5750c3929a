package feed

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"listraksync/internal/config"
	"listraksync/internal/mapper"
	"listraksync/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProducts struct {
	products []models.Product
	calls    int
}

func (f *fakeProducts) ProductsPage(_ context.Context, _ string, offset, limit int) ([]models.Product, error) {
	f.calls++
	if offset >= len(f.products) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.products) {
		end = len(f.products)
	}
	return f.products[offset:end], nil
}

func products(n int) []models.Product {
	out := make([]models.Product, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Product{
			ID:            fmt.Sprintf("p%d", i),
			ProductNumber: fmt.Sprintf("SW-%04d", i),
			Name:          fmt.Sprintf("Product\t%d", i),
			Price:         decimal.NewFromInt(int64(10 + i)),
			Stock:         int64(i),
			Active:        true,
		})
	}
	return out
}

func readFeed(t *testing.T, data []byte) [][]string {
	t.Helper()
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = '\t'
	records, err := r.ReadAll()
	require.NoError(t, err)
	return records
}

func TestExportLocal(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	for _, n := range []int{0, 1, 3, 7} {
		t.Run(fmt.Sprintf("N=%d", n), func(t *testing.T) {
			fs := afero.NewMemMapFs()
			source := &fakeProducts{products: products(n)}
			exporter := NewExporter(source, "listrak_products.txt", 3, &logger)

			rows, err := exporter.Export(ctx, "s1", NewLocalTransport(fs, "/feeds"))
			require.NoError(t, err)
			assert.Equal(t, n, rows)

			data, err := afero.ReadFile(fs, "/feeds/listrak_products.txt")
			require.NoError(t, err)
			records := readFeed(t, data)
			require.Len(t, records, n+1)
			assert.Equal(t, mapper.ProductFeedHeader, records[0])

			exists, err := afero.Exists(fs, "/feeds/listrak_products.txt.part")
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestExportDeduplicatesProductNumbers(t *testing.T) {
	logger := zerolog.Nop()
	list := products(4)
	list = append(list, list[1], models.Product{ID: "blank"})
	fs := afero.NewMemMapFs()

	rows, err := NewExporter(&fakeProducts{products: list}, "feed.txt", 2, &logger).
		Export(context.Background(), "s1", NewLocalTransport(fs, "/out"))
	require.NoError(t, err)
	assert.Equal(t, 4, rows)

	data, err := afero.ReadFile(fs, "/out/feed.txt")
	require.NoError(t, err)
	records := readFeed(t, data)
	assert.Len(t, records, 5)
	assert.Equal(t, "Product\t1", records[2][1])
}

func TestExportWithPageSize(t *testing.T) {
	logger := zerolog.Nop()
	source := &fakeProducts{products: products(10)}
	exporter := NewExporter(source, "feed.txt", 500, &logger).WithPageSize(4)

	_, err := exporter.Export(context.Background(), "s1", NewLocalTransport(afero.NewMemMapFs(), "/out"))
	require.NoError(t, err)
	assert.Equal(t, 3, source.calls)
}

type errProducts struct{}

func (errProducts) ProductsPage(context.Context, string, int, int) ([]models.Product, error) {
	return nil, errors.New("db gone")
}

func TestLocalTransportKeepsPreviousFileOnFailure(t *testing.T) {
	logger := zerolog.Nop()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/out/feed.txt", []byte("previous"), 0o644))

	_, err := NewExporter(errProducts{}, "feed.txt", 10, &logger).
		Export(context.Background(), "s1", NewLocalTransport(fs, "/out"))
	require.Error(t, err)

	data, err := afero.ReadFile(fs, "/out/feed.txt")
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
	exists, _ := afero.Exists(fs, "/out/feed.txt.part")
	assert.False(t, exists)
}

type fakeFTP struct {
	dirs     map[string]bool
	files    map[string][]byte
	ops      []string
	storErr  error
	loginErr error
}

func newFakeFTP() *fakeFTP {
	return &fakeFTP{dirs: map[string]bool{"/": true}, files: map[string][]byte{}}
}

func (f *fakeFTP) Login(user, password string) error {
	f.ops = append(f.ops, "LOGIN "+user)
	return f.loginErr
}

func (f *fakeFTP) MakeDir(p string) error {
	f.ops = append(f.ops, "MKD "+p)
	if f.dirs[p] {
		return errors.New("550 exists")
	}
	f.dirs[p] = true
	return nil
}

func (f *fakeFTP) ChangeDir(p string) error {
	if !f.dirs[p] {
		return errors.New("550 no such directory")
	}
	return nil
}

func (f *fakeFTP) Stor(p string, r io.Reader) error {
	f.ops = append(f.ops, "STOR "+p)
	if f.storErr != nil {
		return f.storErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.files[p] = data
	return nil
}

func (f *fakeFTP) Rename(from, to string) error {
	f.ops = append(f.ops, "RNFR "+from+" RNTO "+to)
	f.files[to] = f.files[from]
	delete(f.files, from)
	return nil
}

func (f *fakeFTP) Delete(p string) error {
	f.ops = append(f.ops, "DELE "+p)
	delete(f.files, p)
	return nil
}

func (f *fakeFTP) Quit() error { return nil }

func newTestFTPTransport(t *testing.T, conn *fakeFTP, remoteDir string) *FTPTransport {
	t.Helper()
	logger := zerolog.Nop()
	settings := config.Settings{Global: map[string]string{
		models.SettingFTPUsername: "user",
		models.SettingFTPPassword: "pass",
	}}
	tr, err := NewFTPTransport(settings, "s1", remoteDir, &logger)
	require.NoError(t, err)
	tr.dial = func(context.Context, string, time.Duration) (ftpConn, error) { return conn, nil }
	return tr
}

func TestFTPTransport(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	t.Run("UploadsThroughTempName", func(t *testing.T) {
		conn := newFakeFTP()
		conn.dirs["/feeds"] = true
		tr := newTestFTPTransport(t, conn, "feeds/daily")
		assert.Equal(t, "ftp.listrak.com:21", tr.host)

		rows, err := NewExporter(&fakeProducts{products: products(5)}, "listrak_products.txt", 2, &logger).Export(ctx, "s1", tr)
		require.NoError(t, err)
		assert.Equal(t, 5, rows)

		assert.Contains(t, conn.ops, "MKD /feeds/daily")
		assert.Contains(t, conn.ops, "STOR /feeds/daily/listrak_products.txt.part")
		assert.Contains(t, conn.ops, "RNFR /feeds/daily/listrak_products.txt.part RNTO /feeds/daily/listrak_products.txt")

		records := readFeed(t, conn.files["/feeds/daily/listrak_products.txt"])
		assert.Len(t, records, 6)
		_, partial := conn.files["/feeds/daily/listrak_products.txt.part"]
		assert.False(t, partial)
	})

	t.Run("FailedUploadDeletesTemp", func(t *testing.T) {
		conn := newFakeFTP()
		conn.storErr = errors.New("426 connection closed")
		tr := newTestFTPTransport(t, conn, "")

		_, err := NewExporter(&fakeProducts{products: products(2)}, "feed.txt", 10, &logger).Export(ctx, "s1", tr)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "426")
		assert.Contains(t, conn.ops, "DELE /feed.txt.part")
		for _, op := range conn.ops {
			assert.False(t, strings.HasPrefix(op, "RNFR"), op)
		}
	})

	t.Run("LoginFailure", func(t *testing.T) {
		conn := newFakeFTP()
		conn.loginErr = errors.New("530 login incorrect")
		tr := newTestFTPTransport(t, conn, "feeds")

		err := tr.Deliver(ctx, "feed.txt", func(io.Writer) error { return nil })
		assert.ErrorContains(t, err, "530")
	})

	t.Run("MissingCredentials", func(t *testing.T) {
		_, err := NewFTPTransport(config.Settings{}, "s1", "", &logger)
		assert.ErrorIs(t, err, models.ErrConfiguration)
	})
}

func TestEnsureDir(t *testing.T) {
	conn := newFakeFTP()
	conn.dirs["/a"] = true

	require.NoError(t, ensureDir(conn, "/a/b/c"))
	assert.True(t, conn.dirs["/a/b"])
	assert.True(t, conn.dirs["/a/b/c"])
	assert.Equal(t, []string{"MKD /a", "MKD /a/b", "MKD /a/b/c"}, conn.ops)

	assert.NoError(t, ensureDir(conn, "/"))
}
