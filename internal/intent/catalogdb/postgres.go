// internal/intent/catalogdb/postgres.go
package catalogdb

import (
	"context"
	"database/sql"
	"fmt"

	"intent-workers/pkg/catalog"

	"github.com/lib/pq"
)

// catalogQuery orders by position so the database source agrees with the
// file loaders on tie-break order.
const catalogQuery = `SELECT id, label, description, keywords, triggers, semantic_seed
	          FROM intent_catalog ORDER BY position ASC`

// LoadCatalog reads the intent catalog from the intent_catalog table. The
// result goes through the same validation as a catalog parsed from a file.
func LoadCatalog(ctx context.Context, db *sql.DB) (*catalog.Catalog, error) {
	rows, err := db.QueryContext(ctx, catalogQuery)
	if err != nil {
		return nil, fmt.Errorf("query intent catalog: %w", err)
	}
	defer rows.Close()

	cat := &catalog.Catalog{}
	for rows.Next() {
		var in catalog.Intent
		var description sql.NullString
		err := rows.Scan(&in.ID, &in.Label, &description,
			pq.Array(&in.Keywords), pq.Array(&in.Triggers), &in.SemanticSeed)
		if err != nil {
			return nil, fmt.Errorf("scan intent row: %w", err)
		}
		in.Description = description.String
		cat.Intents = append(cat.Intents, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read intent catalog: %w", err)
	}

	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("invalid intent catalog: %w", err)
	}
	return cat, nil
}

// SaveCatalog replaces the intent_catalog table contents with the given
// catalog in one transaction. Position records catalog order so a later
// LoadCatalog returns the intents in the same sequence.
func SaveCatalog(ctx context.Context, db *sql.DB, cat *catalog.Catalog) error {
	if err := cat.Validate(); err != nil {
		return fmt.Errorf("invalid intent catalog: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catalog transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM intent_catalog`); err != nil {
		return fmt.Errorf("clear intent catalog: %w", err)
	}

	const insertQuery = `INSERT INTO intent_catalog
		(id, label, description, keywords, triggers, semantic_seed, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for i, in := range cat.Intents {
		_, err := tx.ExecContext(ctx, insertQuery,
			in.ID, in.Label, in.Description,
			pq.Array(in.Keywords), pq.Array(in.Triggers), in.SemanticSeed, i)
		if err != nil {
			return fmt.Errorf("insert intent %q: %w", in.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog transaction: %w", err)
	}
	return nil
}
