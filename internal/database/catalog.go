package database

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"listraksync/internal/models"
)

// Host mirror tables. The commerce platform writes entity snapshots here as
// JSON documents; the dispatcher reads them page by page, ordered by id so
// pages never overlap.
const (
	tableScopes               = "scopes"
	tableCustomers            = "customers"
	tableOrders               = "orders"
	tableNewsletterRecipients = "newsletter_recipients"
	tableProducts             = "products"
)

var mirrorTables = []string{tableScopes, tableCustomers, tableOrders, tableNewsletterRecipients, tableProducts}

func (db *DB) UpsertScope(ctx context.Context, scope models.Scope) error {
	return db.upsertDocument(ctx, tableScopes, scope.ID, "", scope)
}

func (db *DB) UpsertCustomer(ctx context.Context, c models.Customer) error {
	return db.upsertDocument(ctx, tableCustomers, c.ID, c.ScopeID, c)
}

func (db *DB) UpsertOrder(ctx context.Context, o models.Order) error {
	return db.upsertDocument(ctx, tableOrders, o.ID, o.ScopeID, o)
}

func (db *DB) UpsertNewsletterRecipient(ctx context.Context, r models.NewsletterRecipient) error {
	return db.upsertDocument(ctx, tableNewsletterRecipients, r.ID, r.ScopeID, r)
}

func (db *DB) UpsertProduct(ctx context.Context, p models.Product) error {
	return db.upsertDocument(ctx, tableProducts, p.ID, p.ScopeID, p)
}

// Import reads a JSON array of entity snapshots of the given table and
// upserts each one. It returns how many documents were written.
func (db *DB) Import(ctx context.Context, table string, r io.Reader) (int, error) {
	switch table {
	case tableScopes:
		return importDocuments(ctx, r, db.UpsertScope)
	case tableCustomers:
		return importDocuments(ctx, r, db.UpsertCustomer)
	case tableOrders:
		return importDocuments(ctx, r, db.UpsertOrder)
	case tableNewsletterRecipients:
		return importDocuments(ctx, r, db.UpsertNewsletterRecipient)
	case tableProducts:
		return importDocuments(ctx, r, db.UpsertProduct)
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}
}

func importDocuments[T any](ctx context.Context, r io.Reader, upsert func(context.Context, T) error) (int, error) {
	var docs []T
	if err := json.NewDecoder(r).Decode(&docs); err != nil {
		return 0, fmt.Errorf("decode documents: %w", err)
	}
	for i, doc := range docs {
		if err := upsert(ctx, doc); err != nil {
			return i, err
		}
	}
	return len(docs), nil
}

// Scopes lists every sales channel known to the host.
func (db *DB) Scopes(ctx context.Context) ([]models.Scope, error) {
	return pageDocuments[models.Scope](ctx, db, tableScopes, "", nil, 0, -1)
}

func (db *DB) CustomersPage(ctx context.Context, scopeID string, ids []string, offset, limit int) ([]models.Customer, error) {
	return pageDocuments[models.Customer](ctx, db, tableCustomers, scopeID, ids, offset, limit)
}

func (db *DB) OrdersPage(ctx context.Context, scopeID string, ids []string, offset, limit int) ([]models.Order, error) {
	return pageDocuments[models.Order](ctx, db, tableOrders, scopeID, ids, offset, limit)
}

func (db *DB) NewsletterRecipientsPage(ctx context.Context, scopeID string, ids []string, offset, limit int) ([]models.NewsletterRecipient, error) {
	return pageDocuments[models.NewsletterRecipient](ctx, db, tableNewsletterRecipients, scopeID, ids, offset, limit)
}

func (db *DB) ProductsPage(ctx context.Context, scopeID string, offset, limit int) ([]models.Product, error) {
	return pageDocuments[models.Product](ctx, db, tableProducts, scopeID, nil, offset, limit)
}

func (db *DB) upsertDocument(ctx context.Context, table, id, scopeID string, doc any) error {
	if id == "" {
		return fmt.Errorf("%s: id is required", table)
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", table, id, err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, scope_id, payload, updated_at) VALUES (?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET scope_id = excluded.scope_id, payload = excluded.payload, updated_at = excluded.updated_at`, table)
	if _, err := db.ExecContext(ctx, query, id, scopeID, string(payload), time.Now()); err != nil {
		return fmt.Errorf("upsert %s %s: %w", table, id, err)
	}
	return nil
}

// pageDocuments reads [offset, offset+limit) ordered by id. An empty scopeID
// matches every scope; a non-empty ids list restricts the set. A negative
// limit reads everything.
func pageDocuments[T any](ctx context.Context, db *DB, table, scopeID string, ids []string, offset, limit int) ([]T, error) {
	var (
		where []string
		args  []any
	)
	if scopeID != "" {
		where = append(where, "scope_id = ?")
		args = append(args, scopeID)
	}
	if len(ids) > 0 {
		where = append(where, "id IN (?"+strings.Repeat(", ?", len(ids)-1)+")")
		for _, id := range ids {
			args = append(args, id)
		}
	}

	query := fmt.Sprintf("SELECT payload FROM %s", table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id ASC LIMIT ? OFFSET ?"
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("page %s: %w", table, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		var doc T
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", table, err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}
