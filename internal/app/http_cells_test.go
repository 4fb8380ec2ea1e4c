package app

import (
	"net/http"
	"testing"

	"gridbook/api/internal/grid"
	"gridbook/api/internal/store"
)

func seedCSFixture(t *testing.T) (*memStore, *Service, *HTTPServer, store.Sheet, string) {
	t.Helper()
	ms := newMemStore()
	seedUser(ms, "usr_1", "Avery", "avery@example.com")
	_, sheet := seedSpreadsheet(ms, "ss_1", "usr_1", store.KindCS, 3, 8)
	ms.prices["AK-47 Redline"] = store.ItemPrice{
		Name:          "AK-47 Redline",
		PriceLatest:   10,
		PriceReal:     8,
		BuyOrderPrice: 7,
	}
	svc := newTestService(ms)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, "usr_1")
	return ms, svc, server, sheet, token
}

func cellContent(cell store.Cell) string {
	if cell.Content == nil {
		return ""
	}
	return *cell.Content
}

func TestLinkEditCascades(t *testing.T) {
	ms, _, server, sheet, token := seedCSFixture(t)
	linkCell := cellAt(ms, sheet.ID, 0, 0)

	code, resp := doJSON(t, server, http.MethodPut, "/cells/content", token, map[string]any{
		"contents": []map[string]any{
			{"cellId": linkCell.ID, "content": "https://market.example.com/item/AK-47%20Redline"},
		},
	})
	if code != http.StatusOK {
		t.Fatalf("link edit: expected 200, got %d (%v)", code, resp)
	}

	// Quantity defaults to 1, so unit and extended prices match.
	wants := map[int]string{2: "10", 3: "10", 4: "8", 5: "8", 6: "7"}
	for col, want := range wants {
		if got := cellContent(cellAt(ms, sheet.ID, 0, col)); got != want {
			t.Errorf("col %d: expected %q, got %q", col, want, got)
		}
	}
}

func TestQuantityEditRecomputes(t *testing.T) {
	ms, _, server, sheet, token := seedCSFixture(t)
	setCellContent(ms, sheet.ID, 0, 0, "https://market.example.com/item/AK-47%20Redline")
	quantityCell := cellAt(ms, sheet.ID, 0, 1)

	code, resp := doJSON(t, server, http.MethodPut, "/cells/content", token, map[string]any{
		"contents": []map[string]any{{"cellId": quantityCell.ID, "content": "3"}},
	})
	if code != http.StatusOK {
		t.Fatalf("quantity edit: expected 200, got %d (%v)", code, resp)
	}

	if got := cellContent(cellAt(ms, sheet.ID, 0, 3)); got != "30" {
		t.Errorf("extended latest: expected 30, got %q", got)
	}
	if got := cellContent(cellAt(ms, sheet.ID, 0, 5)); got != "24" {
		t.Errorf("extended real: expected 24, got %q", got)
	}
	if got := cellContent(cellAt(ms, sheet.ID, 0, 2)); got != "10" {
		t.Errorf("unit latest: expected 10, got %q", got)
	}
}

func TestClearingLinkKeepsQuantity(t *testing.T) {
	ms, _, server, sheet, token := seedCSFixture(t)
	linkCell := setCellContent(ms, sheet.ID, 0, 0, "https://market.example.com/item/AK-47%20Redline")
	setCellContent(ms, sheet.ID, 0, 1, "3")
	setCellContent(ms, sheet.ID, 0, 3, "30")
	setCellContent(ms, sheet.ID, 0, 5, "24")

	code, resp := doJSON(t, server, http.MethodPut, "/cells/content", token, map[string]any{
		"contents": []map[string]any{{"cellId": linkCell.ID, "content": ""}},
	})
	if code != http.StatusOK {
		t.Fatalf("clear link: expected 200, got %d (%v)", code, resp)
	}

	if got := cellContent(cellAt(ms, sheet.ID, 0, 0)); got != "" {
		t.Errorf("link should be cleared, got %q", got)
	}
	if got := cellContent(cellAt(ms, sheet.ID, 0, 1)); got != "3" {
		t.Errorf("quantity must survive a link clear, got %q", got)
	}
	for _, col := range []int{2, 3, 4, 5, 6} {
		if got := cellContent(cellAt(ms, sheet.ID, 0, col)); got != "" {
			t.Errorf("derived col %d should be cleared, got %q", col, got)
		}
	}
}

func TestUnknownItemRejectedWithoutWrites(t *testing.T) {
	ms, _, server, sheet, token := seedCSFixture(t)
	linkCell := cellAt(ms, sheet.ID, 0, 0)

	code, resp := doJSON(t, server, http.MethodPut, "/cells/content", token, map[string]any{
		"contents": []map[string]any{
			{"cellId": linkCell.ID, "content": "https://market.example.com/item/No%20Such%20Item"},
		},
	})
	if code != http.StatusNotFound || resp["code"] != "NOT_FOUND" {
		t.Fatalf("expected 404 NOT_FOUND, got %d (%v)", code, resp)
	}

	// Nothing was written, the link cell included.
	if got := cellContent(cellAt(ms, sheet.ID, 0, 0)); got != "" {
		t.Errorf("link cell must stay untouched, got %q", got)
	}
	for _, col := range []int{2, 3, 4, 5, 6} {
		if got := cellContent(cellAt(ms, sheet.ID, 0, col)); got != "" {
			t.Errorf("derived col %d must stay untouched, got %q", col, got)
		}
	}
}

func TestNegativeQuantityRejected(t *testing.T) {
	ms, _, server, sheet, token := seedCSFixture(t)
	quantityCell := cellAt(ms, sheet.ID, 0, 1)

	code, resp := doJSON(t, server, http.MethodPut, "/cells/content", token, map[string]any{
		"contents": []map[string]any{{"cellId": quantityCell.ID, "content": "-2"}},
	})
	if code != http.StatusUnprocessableEntity || resp["code"] != "VALIDATION_ERROR" {
		t.Errorf("expected 422 VALIDATION_ERROR, got %d (%v)", code, resp)
	}
}

func TestDerivedCellNotEditable(t *testing.T) {
	ms, _, server, sheet, token := seedCSFixture(t)
	derivedCell := cellAt(ms, sheet.ID, 0, 4)

	code, resp := doJSON(t, server, http.MethodPut, "/cells/content", token, map[string]any{
		"contents": []map[string]any{{"cellId": derivedCell.ID, "content": "999"}},
	})
	if code != http.StatusForbidden || resp["code"] != "FORBIDDEN" {
		t.Errorf("expected 403 FORBIDDEN, got %d (%v)", code, resp)
	}
}

func TestUnprotectedColumnEditsNormally(t *testing.T) {
	ms, _, server, sheet, token := seedCSFixture(t)
	// Column 7 is past the pricing band even on a CS sheet.
	freeCell := cellAt(ms, sheet.ID, 0, 7)

	code, resp := doJSON(t, server, http.MethodPut, "/cells/content", token, map[string]any{
		"contents": []map[string]any{{"cellId": freeCell.ID, "content": "notes"}},
	})
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", code, resp)
	}
	if got := cellContent(cellAt(ms, sheet.ID, 0, 7)); got != "notes" {
		t.Errorf("expected notes, got %q", got)
	}
}

func TestFontSizeGrowsRowHeight(t *testing.T) {
	ms := newMemStore()
	seedUser(ms, "usr_1", "Avery", "avery@example.com")
	_, sheet := seedSpreadsheet(ms, "ss_1", "usr_1", store.KindNormal, 2, 2)
	cell := cellAt(ms, sheet.ID, 0, 0)

	svc := newTestService(ms)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, "usr_1")

	code, resp := doJSON(t, server, http.MethodPut, "/cells/style", token, map[string]any{
		"styles": []map[string]any{
			{"cellId": cell.ID, "style": map[string]string{"bold": "true", "fontSize": "32"}},
		},
	})
	if code != http.StatusOK {
		t.Fatalf("style edit: expected 200, got %d (%v)", code, resp)
	}

	// ceil(1.5 * 32) beats the default height of 25.
	if got := ms.sheets[sheet.ID].RowHeights[0]; got != grid.RequiredRowHeight(32) {
		t.Errorf("expected row height %d, got %d", grid.RequiredRowHeight(32), got)
	}
	updated := cellAt(ms, sheet.ID, 0, 0)
	if updated.Style["bold"] != "true" || updated.Style["fontSize"] != "32" {
		t.Errorf("style merge lost keys: %v", updated.Style)
	}
}

func TestFontSizeOutOfRange(t *testing.T) {
	ms := newMemStore()
	seedUser(ms, "usr_1", "Avery", "avery@example.com")
	_, sheet := seedSpreadsheet(ms, "ss_1", "usr_1", store.KindNormal, 2, 2)
	cell := cellAt(ms, sheet.ID, 0, 0)

	svc := newTestService(ms)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, "usr_1")

	code, resp := doJSON(t, server, http.MethodPut, "/cells/style", token, map[string]any{
		"styles": []map[string]any{
			{"cellId": cell.ID, "style": map[string]string{"fontSize": "120"}},
		},
	})
	if code != http.StatusUnprocessableEntity || resp["code"] != "VALIDATION_ERROR" {
		t.Errorf("expected 422 VALIDATION_ERROR, got %d (%v)", code, resp)
	}
}

func TestStyleMergePreservesExistingKeys(t *testing.T) {
	ms := newMemStore()
	seedUser(ms, "usr_1", "Avery", "avery@example.com")
	_, sheet := seedSpreadsheet(ms, "ss_1", "usr_1", store.KindNormal, 2, 2)
	cell := cellAt(ms, sheet.ID, 0, 0)
	ms.cells[cell.ID] = store.Cell{
		ID: cell.ID, SheetID: cell.SheetID, Row: cell.Row, Col: cell.Col,
		Style: map[string]string{"italic": "true"},
	}

	svc := newTestService(ms)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, "usr_1")

	code, _ := doJSON(t, server, http.MethodPut, "/cells/style", token, map[string]any{
		"styles": []map[string]any{
			{"cellId": cell.ID, "style": map[string]string{"bold": "true"}},
		},
	})
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	merged := ms.cells[cell.ID].Style
	if merged["italic"] != "true" || merged["bold"] != "true" {
		t.Errorf("expected merged style, got %v", merged)
	}
}

func TestAlignmentValidation(t *testing.T) {
	ms := newMemStore()
	seedUser(ms, "usr_1", "Avery", "avery@example.com")
	_, sheet := seedSpreadsheet(ms, "ss_1", "usr_1", store.KindNormal, 2, 2)
	cell := cellAt(ms, sheet.ID, 0, 0)

	svc := newTestService(ms)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, "usr_1")

	code, resp := doJSON(t, server, http.MethodPut, "/cells/h-alignment", token, map[string]any{
		"items": []map[string]any{{"cellId": cell.ID, "value": "diagonal"}},
	})
	if code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for invalid alignment, got %d (%v)", code, resp)
	}

	code, resp = doJSON(t, server, http.MethodPut, "/cells/h-alignment", token, map[string]any{
		"items": []map[string]any{{"cellId": cell.ID, "value": "center"}},
	})
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", code, resp)
	}
	cells := resp["cells"].([]any)
	if len(cells) != 1 || cells[0].(map[string]any)["hAlign"] != "center" {
		t.Errorf("expected updated cell with hAlign=center, got %v", resp)
	}
	if ms.cells[cell.ID].HAlign != "center" {
		t.Errorf("alignment not persisted")
	}
}

func TestBgColorBatchUpdates(t *testing.T) {
	ms := newMemStore()
	seedUser(ms, "usr_1", "Avery", "avery@example.com")
	_, sheet := seedSpreadsheet(ms, "ss_1", "usr_1", store.KindNormal, 2, 2)
	a := cellAt(ms, sheet.ID, 0, 0)
	b := cellAt(ms, sheet.ID, 1, 1)

	svc := newTestService(ms)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, "usr_1")

	code, resp := doJSON(t, server, http.MethodPut, "/cells/bg-color", token, map[string]any{
		"items": []map[string]any{
			{"cellId": a.ID, "value": "#ffeeaa"},
			{"cellId": b.ID, "value": "#112233"},
		},
	})
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", code, resp)
	}
	if len(resp["cells"].([]any)) != 2 {
		t.Errorf("expected 2 updated cells, got %v", resp["cells"])
	}
	if ms.cells[a.ID].BgColor != "#ffeeaa" || ms.cells[b.ID].BgColor != "#112233" {
		t.Errorf("bg colors not persisted")
	}
}
