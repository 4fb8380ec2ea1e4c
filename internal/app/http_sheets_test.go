package app

import (
	"net/http"
	"testing"

	"gridbook/api/internal/grid"
	"gridbook/api/internal/store"
	"gridbook/api/internal/util"
)

// findCell pulls one cell out of a sheet payload by coordinate.
func findCell(t *testing.T, payload map[string]any, row, col int) map[string]any {
	t.Helper()
	cells, ok := payload["cells"].([]any)
	if !ok {
		t.Fatalf("payload has no cells array: %v", payload)
	}
	for _, raw := range cells {
		cell := raw.(map[string]any)
		if int(cell["row"].(float64)) == row && int(cell["col"].(float64)) == col {
			return cell
		}
	}
	t.Fatalf("no cell at (%d,%d)", row, col)
	return nil
}

func TestInsertRowsShiftsBand(t *testing.T) {
	ms := newMemStore()
	seedUser(ms, "usr_1", "Avery", "avery@example.com")
	_, sheet := seedSpreadsheet(ms, "ss_1", "usr_1", store.KindNormal, 3, 3)
	setCellContent(ms, sheet.ID, 1, 0, "marker")

	svc := newTestService(ms)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, "usr_1")

	code, resp := doJSON(t, server, http.MethodPost, "/sheet/"+sheet.ID+"/rows", token, map[string]any{
		"startIndex": 1,
		"rowsNumber": 2,
	})
	if code != http.StatusOK {
		t.Fatalf("insert rows: expected 200, got %d (%v)", code, resp)
	}
	if int(resp["numRows"].(float64)) != 5 {
		t.Errorf("expected numRows 5, got %v", resp["numRows"])
	}

	// The marked row moved down past the inserted band.
	moved := findCell(t, resp, 3, 0)
	if moved["content"] != "marker" {
		t.Errorf("expected marker at row 3, got %v", moved["content"])
	}
	inserted := findCell(t, resp, 1, 0)
	if _, has := inserted["content"]; has {
		t.Errorf("inserted row should be blank, got %v", inserted["content"])
	}
}

func TestDeleteRowsShiftsBand(t *testing.T) {
	ms := newMemStore()
	seedUser(ms, "usr_1", "Avery", "avery@example.com")
	_, sheet := seedSpreadsheet(ms, "ss_1", "usr_1", store.KindNormal, 4, 2)
	setCellContent(ms, sheet.ID, 3, 1, "tail")

	svc := newTestService(ms)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, "usr_1")

	code, resp := doJSON(t, server, http.MethodDelete, "/sheet/"+sheet.ID+"/rows", token, map[string]any{
		"startIndex": 1,
		"rowsNumber": 2,
	})
	if code != http.StatusOK {
		t.Fatalf("delete rows: expected 200, got %d (%v)", code, resp)
	}
	if int(resp["numRows"].(float64)) != 2 {
		t.Errorf("expected numRows 2, got %v", resp["numRows"])
	}
	moved := findCell(t, resp, 1, 1)
	if moved["content"] != "tail" {
		t.Errorf("expected tail at row 1, got %v", moved["content"])
	}
}

func TestDeleteAllRowsRejected(t *testing.T) {
	ms := newMemStore()
	seedUser(ms, "usr_1", "Avery", "avery@example.com")
	_, sheet := seedSpreadsheet(ms, "ss_1", "usr_1", store.KindNormal, 2, 2)

	svc := newTestService(ms)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, "usr_1")

	code, resp := doJSON(t, server, http.MethodDelete, "/sheet/"+sheet.ID+"/rows", token, map[string]any{
		"startIndex": 0,
		"rowsNumber": 2,
	})
	if code != http.StatusConflict || resp["code"] != "CONFLICT" {
		t.Errorf("expected 409 CONFLICT, got %d (%v)", code, resp)
	}
}

func TestInsertRowsAtCapacity(t *testing.T) {
	ms := newMemStore()
	seedUser(ms, "usr_1", "Avery", "avery@example.com")
	ms.spreadsheets["ss_1"] = store.Spreadsheet{ID: "ss_1", OwnerID: "usr_1", Kind: store.KindNormal, Name: "Full"}
	sheet := store.Sheet{
		ID:            util.NewID("sh"),
		SpreadsheetID: "ss_1",
		Name:          "Sheet1",
		NumRows:       grid.MaxRows,
		NumCols:       2,
		RowHeights:    map[int]int{},
		ColWidths:     map[int]int{},
		HiddenRows:    map[int]bool{},
		HiddenCols:    map[int]bool{},
	}
	ms.sheets[sheet.ID] = sheet

	svc := newTestService(ms)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, "usr_1")

	code, resp := doJSON(t, server, http.MethodPost, "/sheet/"+sheet.ID+"/rows", token, map[string]any{
		"startIndex": 0,
		"rowsNumber": 1,
	})
	if code != http.StatusUnprocessableEntity || resp["code"] != "CAPACITY_EXCEEDED" {
		t.Errorf("expected 422 CAPACITY_EXCEEDED, got %d (%v)", code, resp)
	}
}

func TestVisibilityBatchAtomicity(t *testing.T) {
	ms := newMemStore()
	seedUser(ms, "usr_1", "Avery", "avery@example.com")
	_, sheet := seedSpreadsheet(ms, "ss_1", "usr_1", store.KindNormal, 2, 2)

	svc := newTestService(ms)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, "usr_1")

	// Hiding every row in one batch is rejected wholesale.
	code, resp := doJSON(t, server, http.MethodPatch, "/sheet/"+sheet.ID+"/row-hidden", token, map[string]any{
		"itemsVisibility": []map[string]any{
			{"index": 0, "hidden": true},
			{"index": 1, "hidden": true},
		},
	})
	if code != http.StatusConflict {
		t.Fatalf("expected 409 for hiding all rows, got %d (%v)", code, resp)
	}

	code, resp = doJSON(t, server, http.MethodGet, "/sheet/"+sheet.ID, token, nil)
	if code != http.StatusOK {
		t.Fatalf("get sheet: %d", code)
	}
	if hidden := resp["hiddenRows"].(map[string]any); len(hidden) != 0 {
		t.Errorf("rejected batch must not partially apply, got %v", hidden)
	}

	// A valid batch lands.
	code, _ = doJSON(t, server, http.MethodPatch, "/sheet/"+sheet.ID+"/row-hidden", token, map[string]any{
		"itemsVisibility": []map[string]any{{"index": 0, "hidden": true}},
	})
	if code != http.StatusOK {
		t.Fatalf("expected 200 hiding one row, got %d", code)
	}
	_, resp = doJSON(t, server, http.MethodGet, "/sheet/"+sheet.ID, token, nil)
	if hidden := resp["hiddenRows"].(map[string]any); hidden["0"] != true {
		t.Errorf("expected row 0 hidden, got %v", hidden)
	}
}

func TestRowHeightValidation(t *testing.T) {
	ms := newMemStore()
	seedUser(ms, "usr_1", "Avery", "avery@example.com")
	_, sheet := seedSpreadsheet(ms, "ss_1", "usr_1", store.KindNormal, 3, 3)

	svc := newTestService(ms)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, "usr_1")

	code, resp := doJSON(t, server, http.MethodPatch, "/sheet/"+sheet.ID+"/row-height", token, map[string]any{
		"index": 0, "height": grid.MinCellSizePx - 1,
	})
	if code != http.StatusUnprocessableEntity || resp["code"] != "VALIDATION_ERROR" {
		t.Errorf("expected 422 VALIDATION_ERROR for tiny height, got %d (%v)", code, resp)
	}

	code, _ = doJSON(t, server, http.MethodPatch, "/sheet/"+sheet.ID+"/row-height", token, map[string]any{
		"index": 0, "height": 30,
	})
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	_, resp = doJSON(t, server, http.MethodGet, "/sheet/"+sheet.ID, token, nil)
	heights := resp["rowHeights"].(map[string]any)
	if int(heights["0"].(float64)) != 30 {
		t.Errorf("expected rowHeights[0]=30, got %v", heights)
	}

	code, _ = doJSON(t, server, http.MethodPatch, "/sheet/"+sheet.ID+"/col-width", token, map[string]any{
		"index": 99, "width": 120,
	})
	if code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for out-of-range index, got %d", code)
	}
}

func TestCSProtectedColumnBand(t *testing.T) {
	ms := newMemStore()
	seedUser(ms, "usr_1", "Avery", "avery@example.com")
	_, sheet := seedSpreadsheet(ms, "ss_1", "usr_1", store.KindCS, 2, 9)

	svc := newTestService(ms)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, "usr_1")

	// Inside the pricing band: refused.
	code, resp := doJSON(t, server, http.MethodPost, "/sheet/"+sheet.ID+"/cols", token, map[string]any{
		"startIndex": 2, "columnsNumber": 1,
	})
	if code != http.StatusConflict {
		t.Errorf("expected 409 inserting inside protected band, got %d (%v)", code, resp)
	}
	code, _ = doJSON(t, server, http.MethodDelete, "/sheet/"+sheet.ID+"/cols", token, map[string]any{
		"startIndex": 0, "columnsNumber": 1,
	})
	if code != http.StatusConflict {
		t.Errorf("expected 409 deleting protected column, got %d", code)
	}

	// Past the band: allowed.
	code, resp = doJSON(t, server, http.MethodPost, "/sheet/"+sheet.ID+"/cols", token, map[string]any{
		"startIndex": grid.CSProtectedCols, "columnsNumber": 1,
	})
	if code != http.StatusOK {
		t.Fatalf("expected 200 past the band, got %d (%v)", code, resp)
	}
	if int(resp["numCols"].(float64)) != 10 {
		t.Errorf("expected numCols 10, got %v", resp["numCols"])
	}
}

func TestDeleteOnlySheetRejected(t *testing.T) {
	ms := newMemStore()
	seedUser(ms, "usr_1", "Avery", "avery@example.com")
	_, sheet := seedSpreadsheet(ms, "ss_1", "usr_1", store.KindNormal, 2, 2)

	svc := newTestService(ms)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, "usr_1")

	code, resp := doJSON(t, server, http.MethodDelete, "/sheet/"+sheet.ID, token, nil)
	if code != http.StatusConflict || resp["code"] != "CONFLICT" {
		t.Errorf("expected 409 CONFLICT deleting the only sheet, got %d (%v)", code, resp)
	}
}

func TestAddAndMoveSheet(t *testing.T) {
	ms := newMemStore()
	seedUser(ms, "usr_1", "Avery", "avery@example.com")
	_, first := seedSpreadsheet(ms, "ss_1", "usr_1", store.KindNormal, 2, 2)

	svc := newTestService(ms)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, "usr_1")

	code, resp := doJSON(t, server, http.MethodPost, "/spreadsheet/ss_1/sheets", token, map[string]any{
		"name": "Budget",
	})
	if code != http.StatusCreated {
		t.Fatalf("add sheet: expected 201, got %d (%v)", code, resp)
	}
	if resp["name"] != "Budget" || int(resp["position"].(float64)) != 1 {
		t.Errorf("unexpected new sheet payload: %v", resp)
	}
	secondID := resp["id"].(string)

	// Move it to the front.
	code, _ = doJSON(t, server, http.MethodPatch, "/sheet/"+secondID+"/position", token, map[string]any{
		"newIndex": 0,
	})
	if code != http.StatusOK {
		t.Fatalf("move sheet: expected 200, got %d", code)
	}
	if ms.sheets[secondID].Position != 0 {
		t.Errorf("expected moved sheet at position 0, got %d", ms.sheets[secondID].Position)
	}
	if ms.sheets[first.ID].Position != 1 {
		t.Errorf("expected first sheet displaced to 1, got %d", ms.sheets[first.ID].Position)
	}

	// Out-of-range target index.
	code, resp = doJSON(t, server, http.MethodPatch, "/sheet/"+secondID+"/position", token, map[string]any{
		"newIndex": 5,
	})
	if code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for out-of-range index, got %d (%v)", code, resp)
	}
}

func TestEvaluatedGrid(t *testing.T) {
	ms := newMemStore()
	seedUser(ms, "usr_1", "Avery", "avery@example.com")
	_, sheet := seedSpreadsheet(ms, "ss_1", "usr_1", store.KindNormal, 2, 2)
	setCellContent(ms, sheet.ID, 0, 0, "2")
	setCellContent(ms, sheet.ID, 0, 1, "3")
	setCellContent(ms, sheet.ID, 1, 0, "=SUM(A1:B1)")

	svc := newTestService(ms)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, "usr_1")

	code, resp := doJSON(t, server, http.MethodGet, "/sheet/"+sheet.ID+"/evaluated", token, nil)
	if code != http.StatusOK {
		t.Fatalf("evaluated: expected 200, got %d (%v)", code, resp)
	}
	formulaCell := findCell(t, resp, 1, 0)
	if formulaCell["evaluated"] != "5" {
		t.Errorf("expected evaluated 5, got %v", formulaCell["evaluated"])
	}
	if formulaCell["content"] != "=SUM(A1:B1)" {
		t.Errorf("raw content must be preserved, got %v", formulaCell["content"])
	}
}
