package search

import (
	"context"
	"fmt"

	"gridbook/api/internal/store"
)

// SpreadsheetSearcher is the slice of the store the fallback needs.
type SpreadsheetSearcher interface {
	SearchSpreadsheets(ctx context.Context, userID, query string, limit, offset int) ([]store.SearchHit, error)
}

// PgSearch is the fallback searcher backed by ILIKE queries in Postgres.
// It is always available when the database is.
type PgSearch struct {
	store SpreadsheetSearcher
}

func NewPgSearch(store SpreadsheetSearcher) *PgSearch {
	return &PgSearch{store: store}
}

func (p *PgSearch) Search(ctx context.Context, q Query) ([]Result, int, error) {
	hits, err := p.store.SearchSpreadsheets(ctx, q.UserID, q.Text, q.Limit, q.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pg search: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		rtyp := ResultType(hit.Type)
		if q.FilterType != "" && q.FilterType != rtyp {
			continue
		}
		results = append(results, Result{
			Type:          rtyp,
			ID:            hit.SpreadsheetID,
			SpreadsheetID: hit.SpreadsheetID,
			SheetID:       hit.SheetID,
			Title:         hit.Title,
			Snippet:       hit.Snippet,
			Row:           hit.Row,
			Col:           hit.Col,
		})
	}
	return results, len(results), nil
}
