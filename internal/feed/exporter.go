package feed

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"listraksync/internal/domain"
	"listraksync/internal/logging"
	"listraksync/internal/mapper"
	"listraksync/internal/metrics"
	"listraksync/internal/models"

	"github.com/rs/zerolog"
)

// Transport delivers a finished feed under name. Implementations must never
// expose a partially written file under the final name.
type Transport interface {
	Deliver(ctx context.Context, name string, write func(io.Writer) error) error
}

// Exporter writes the product feed: a tab-delimited file with a header row
// and one row per distinct product number.
type Exporter struct {
	products domain.ProductSource
	fileName string
	pageSize int
	logger   *zerolog.Logger
}

func NewExporter(products domain.ProductSource, fileName string, pageSize int, logger *zerolog.Logger) *Exporter {
	if pageSize <= 0 {
		pageSize = models.DefaultFeedPageSize
	}
	return &Exporter{
		products: products,
		fileName: fileName,
		pageSize: pageSize,
		logger:   logging.Component(logger, "feed"),
	}
}

// WithPageSize returns a copy reading limit products per page.
func (e *Exporter) WithPageSize(limit int) *Exporter {
	cp := *e
	if limit > 0 {
		cp.pageSize = limit
	}
	return &cp
}

// Export streams the products of scopeID through t and returns the number of
// rows written, header excluded.
func (e *Exporter) Export(ctx context.Context, scopeID string, t Transport) (int, error) {
	rows := 0
	err := t.Deliver(ctx, e.fileName, func(w io.Writer) error {
		buf := bufio.NewWriter(w)
		out := csv.NewWriter(buf)
		out.Comma = '\t'

		if err := out.Write(mapper.ProductFeedHeader); err != nil {
			return fmt.Errorf("write header: %w", err)
		}

		seen := make(map[string]struct{})
		for offset := 0; ; offset += e.pageSize {
			page, err := e.products.ProductsPage(ctx, scopeID, offset, e.pageSize)
			if err != nil {
				return fmt.Errorf("read products page at %d: %w", offset, err)
			}
			for _, p := range page {
				if p.ProductNumber == "" {
					e.logger.Warn().Str("product_id", p.ID).Msg("product without number skipped")
					continue
				}
				if _, dup := seen[p.ProductNumber]; dup {
					continue
				}
				seen[p.ProductNumber] = struct{}{}
				if err := out.Write(mapper.Fields(mapper.ProductRow(p))); err != nil {
					return fmt.Errorf("write row %s: %w", p.ProductNumber, err)
				}
				rows++
			}
			if len(page) < e.pageSize {
				break
			}
		}

		out.Flush()
		if err := out.Error(); err != nil {
			return fmt.Errorf("flush feed: %w", err)
		}
		return buf.Flush()
	})
	if err != nil {
		return 0, err
	}

	metrics.AddFeedRows(rows)
	e.logger.Info().Str("scope_id", scopeID).Str("file", e.fileName).Int("rows", rows).Msg("product feed exported")
	return rows, nil
}
