package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to
// Postgres ILIKE search.
type Service struct {
	meili *Meili
	pg    *PgSearch
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, pg *PgSearch) *Service {
	return &Service{meili: meili, pg: pg}
}

// Search tries Meilisearch if healthy, otherwise falls back to Postgres.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to postgres: %v", err)
	}

	results, total, err := s.pg.Search(ctx, q)
	if err != nil {
		log.Printf("search: postgres error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexSpreadsheet indexes a spreadsheet (fire-and-forget to Meilisearch).
func (s *Service) IndexSpreadsheet(rec SpreadsheetRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexSpreadsheet(rec); err != nil {
			log.Printf("search: index spreadsheet %s: %v", rec.ID, err)
		}
	}()
}

// IndexCells indexes cell records (fire-and-forget to Meilisearch).
func (s *Service) IndexCells(records []CellRecord) {
	if s.meili == nil || !s.meili.Healthy() || len(records) == 0 {
		return
	}
	go func() {
		if err := s.meili.IndexCells(records); err != nil {
			log.Printf("search: index cells: %v", err)
		}
	}()
}

// DeleteSpreadsheet removes a spreadsheet from the index (fire-and-forget).
func (s *Service) DeleteSpreadsheet(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteSpreadsheet(id); err != nil {
			log.Printf("search: delete spreadsheet %s: %v", id, err)
		}
	}()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
