package app

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"gridbook/api/internal/authpw"
	"gridbook/api/internal/config"
	"gridbook/api/internal/formula"
	"gridbook/api/internal/store"
)

type refreshRec struct {
	userID    string
	expiresAt time.Time
}

type resetRec struct {
	userID string
	used   bool
}

// memStore is an in-memory stand-in for the Postgres store.
type memStore struct {
	mu           sync.Mutex
	users        map[string]store.User
	spreadsheets map[string]store.Spreadsheet
	sheets       map[string]store.Sheet
	cells        map[string]store.Cell
	shares       map[string]store.Share
	prices       map[string]store.ItemPrice
	refresh      map[string]refreshRec
	resets       map[string]resetRec
	pingErr      error
}

func newMemStore() *memStore {
	return &memStore{
		users:        map[string]store.User{},
		spreadsheets: map[string]store.Spreadsheet{},
		sheets:       map[string]store.Sheet{},
		cells:        map[string]store.Cell{},
		shares:       map[string]store.Share{},
		prices:       map[string]store.ItemPrice{},
		refresh:      map[string]refreshRec{},
		resets:       map[string]resetRec{},
	}
}

func shareKey(spreadsheetID, userID string) string {
	return spreadsheetID + "/" + userID
}

func (m *memStore) Ping(ctx context.Context) error { return m.pingErr }

func (m *memStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (m *memStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (m *memStore) CreateUser(ctx context.Context, user store.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *memStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.VerificationToken = token
	user.VerificationExpiresAt = &expiresAt
	m.users[userID] = user
	return nil
}

func (m *memStore) VerifyUserEmail(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, user := range m.users {
		if user.VerificationToken == token && token != "" {
			user.IsEmailVerified = true
			user.VerificationToken = ""
			m.users[id] = user
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *memStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.PasswordHash = passwordHash
	m.users[userID] = user
	return nil
}

func (m *memStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets[token] = resetRec{userID: userID}
	return nil
}

func (m *memStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.resets[token]
	if !ok || rec.used {
		return "", sql.ErrNoRows
	}
	return rec.userID, nil
}

func (m *memStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.resets[token]
	if !ok {
		return sql.ErrNoRows
	}
	rec.used = true
	m.resets[token] = rec
	return nil
}

func (m *memStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh[tokenHash] = refreshRec{userID: userID, expiresAt: expiresAt}
	return nil
}

func (m *memStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.refresh[tokenHash]
	if !ok || time.Now().After(rec.expiresAt) {
		return store.User{}, sql.ErrNoRows
	}
	user, ok := m.users[rec.userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (m *memStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.refresh, tokenHash)
	return nil
}

func (m *memStore) CreateSpreadsheet(ctx context.Context, spreadsheet store.Spreadsheet, sheet store.Sheet, cells []store.Cell) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spreadsheets[spreadsheet.ID] = spreadsheet
	m.sheets[sheet.ID] = sheet
	for _, cell := range cells {
		m.cells[cell.ID] = cell
	}
	return nil
}

func (m *memStore) GetSpreadsheet(ctx context.Context, spreadsheetID string) (store.Spreadsheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	spreadsheet, ok := m.spreadsheets[spreadsheetID]
	if !ok {
		return store.Spreadsheet{}, sql.ErrNoRows
	}
	return spreadsheet, nil
}

func (m *memStore) ListSpreadsheetsForUser(ctx context.Context, userID string) ([]store.SpreadsheetListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []store.SpreadsheetListing
	for _, spreadsheet := range m.spreadsheets {
		if spreadsheet.OwnerID == userID {
			items = append(items, store.SpreadsheetListing{Spreadsheet: spreadsheet, Permission: store.PermissionEdit})
			continue
		}
		if share, ok := m.shares[shareKey(spreadsheet.ID, userID)]; ok {
			items = append(items, store.SpreadsheetListing{Spreadsheet: spreadsheet, Permission: share.Permission})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m *memStore) RenameSpreadsheet(ctx context.Context, spreadsheetID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	spreadsheet, ok := m.spreadsheets[spreadsheetID]
	if !ok {
		return sql.ErrNoRows
	}
	spreadsheet.Name = name
	m.spreadsheets[spreadsheetID] = spreadsheet
	return nil
}

func (m *memStore) DeleteSpreadsheet(ctx context.Context, spreadsheetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.spreadsheets, spreadsheetID)
	for id, sheet := range m.sheets {
		if sheet.SpreadsheetID == spreadsheetID {
			delete(m.sheets, id)
		}
	}
	return nil
}

func (m *memStore) TouchSpreadsheetOpened(ctx context.Context, spreadsheetID, userID string) error {
	return nil
}

func (m *memStore) GetShare(ctx context.Context, spreadsheetID, userID string) (store.Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	share, ok := m.shares[shareKey(spreadsheetID, userID)]
	if !ok {
		return store.Share{}, sql.ErrNoRows
	}
	return share, nil
}

func (m *memStore) ListShares(ctx context.Context, spreadsheetID string) ([]store.Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var shares []store.Share
	for _, share := range m.shares {
		if share.SpreadsheetID == spreadsheetID {
			shares = append(shares, share)
		}
	}
	return shares, nil
}

func (m *memStore) UpsertShare(ctx context.Context, spreadsheetID, userID, permission string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shares[shareKey(spreadsheetID, userID)] = store.Share{
		SpreadsheetID: spreadsheetID,
		UserID:        userID,
		Permission:    permission,
	}
	return nil
}

func (m *memStore) DeleteShare(ctx context.Context, spreadsheetID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.shares, shareKey(spreadsheetID, userID))
	return nil
}

func (m *memStore) ViewerIDs(ctx context.Context, spreadsheetID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	spreadsheet, ok := m.spreadsheets[spreadsheetID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	viewers := []string{spreadsheet.OwnerID}
	for _, share := range m.shares {
		if share.SpreadsheetID == spreadsheetID {
			viewers = append(viewers, share.UserID)
		}
	}
	return viewers, nil
}

func (m *memStore) GetSheet(ctx context.Context, sheetID string) (store.Sheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sheet, ok := m.sheets[sheetID]
	if !ok {
		return store.Sheet{}, sql.ErrNoRows
	}
	return sheet, nil
}

func (m *memStore) ListSheets(ctx context.Context, spreadsheetID string) ([]store.Sheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sheets []store.Sheet
	for _, sheet := range m.sheets {
		if sheet.SpreadsheetID == spreadsheetID {
			sheets = append(sheets, sheet)
		}
	}
	sort.Slice(sheets, func(i, j int) bool { return sheets[i].Position < sheets[j].Position })
	return sheets, nil
}

func (m *memStore) SheetCount(ctx context.Context, spreadsheetID string) (int, error) {
	sheets, _ := m.ListSheets(ctx, spreadsheetID)
	return len(sheets), nil
}

func (m *memStore) InsertSheetWithCells(ctx context.Context, sheet store.Sheet, cells []store.Cell) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sheets[sheet.ID] = sheet
	for _, cell := range cells {
		m.cells[cell.ID] = cell
	}
	return nil
}

func (m *memStore) UpdateSheetMeta(ctx context.Context, sheetID, name, color string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sheet, ok := m.sheets[sheetID]
	if !ok {
		return sql.ErrNoRows
	}
	if name != "" {
		sheet.Name = name
	}
	if color != "" {
		sheet.Color = color
	}
	m.sheets[sheetID] = sheet
	return nil
}

func (m *memStore) DeleteSheetAndRenumber(ctx context.Context, sheetID, spreadsheetID string, position int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sheets, sheetID)
	for id, cell := range m.cells {
		if cell.SheetID == sheetID {
			delete(m.cells, id)
		}
	}
	for id, sheet := range m.sheets {
		if sheet.SpreadsheetID == spreadsheetID && sheet.Position > position {
			sheet.Position--
			m.sheets[id] = sheet
		}
	}
	return nil
}

func (m *memStore) MoveSheet(ctx context.Context, spreadsheetID, sheetID string, oldPos, newPos int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sheet := range m.sheets {
		if sheet.SpreadsheetID != spreadsheetID {
			continue
		}
		switch {
		case sheet.ID == sheetID:
			sheet.Position = newPos
		case oldPos < newPos && sheet.Position > oldPos && sheet.Position <= newPos:
			sheet.Position--
		case oldPos > newPos && sheet.Position >= newPos && sheet.Position < oldPos:
			sheet.Position++
		}
		m.sheets[id] = sheet
	}
	return nil
}

func (m *memStore) SaveRowHeights(ctx context.Context, sheetID string, heights map[int]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sheet, ok := m.sheets[sheetID]
	if !ok {
		return sql.ErrNoRows
	}
	sheet.RowHeights = heights
	m.sheets[sheetID] = sheet
	return nil
}

func (m *memStore) SaveColWidths(ctx context.Context, sheetID string, widths map[int]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sheet, ok := m.sheets[sheetID]
	if !ok {
		return sql.ErrNoRows
	}
	sheet.ColWidths = widths
	m.sheets[sheetID] = sheet
	return nil
}

func (m *memStore) SaveHiddenRows(ctx context.Context, sheetID string, hidden map[int]bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sheet, ok := m.sheets[sheetID]
	if !ok {
		return sql.ErrNoRows
	}
	sheet.HiddenRows = hidden
	m.sheets[sheetID] = sheet
	return nil
}

func (m *memStore) SaveHiddenCols(ctx context.Context, sheetID string, hidden map[int]bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sheet, ok := m.sheets[sheetID]
	if !ok {
		return sql.ErrNoRows
	}
	sheet.HiddenCols = hidden
	m.sheets[sheetID] = sheet
	return nil
}

func (m *memStore) InsertRowBand(ctx context.Context, p store.BandParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, cell := range m.cells {
		if cell.SheetID == p.SheetID && cell.Row >= p.Start {
			cell.Row += p.Count
			m.cells[id] = cell
		}
	}
	for _, cell := range p.NewCells {
		m.cells[cell.ID] = cell
	}
	sheet := m.sheets[p.SheetID]
	sheet.NumRows = p.NewExtent
	sheet.RowHeights = p.SizeMap
	sheet.HiddenRows = p.HiddenMap
	m.sheets[p.SheetID] = sheet
	return nil
}

func (m *memStore) DeleteRowBand(ctx context.Context, p store.BandParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, cell := range m.cells {
		if cell.SheetID != p.SheetID {
			continue
		}
		switch {
		case cell.Row >= p.Start && cell.Row < p.Start+p.Count:
			delete(m.cells, id)
		case cell.Row >= p.Start+p.Count:
			cell.Row -= p.Count
			m.cells[id] = cell
		}
	}
	sheet := m.sheets[p.SheetID]
	sheet.NumRows = p.NewExtent
	sheet.RowHeights = p.SizeMap
	sheet.HiddenRows = p.HiddenMap
	m.sheets[p.SheetID] = sheet
	return nil
}

func (m *memStore) InsertColBand(ctx context.Context, p store.BandParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, cell := range m.cells {
		if cell.SheetID == p.SheetID && cell.Col >= p.Start {
			cell.Col += p.Count
			m.cells[id] = cell
		}
	}
	for _, cell := range p.NewCells {
		m.cells[cell.ID] = cell
	}
	sheet := m.sheets[p.SheetID]
	sheet.NumCols = p.NewExtent
	sheet.ColWidths = p.SizeMap
	sheet.HiddenCols = p.HiddenMap
	m.sheets[p.SheetID] = sheet
	return nil
}

func (m *memStore) DeleteColBand(ctx context.Context, p store.BandParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, cell := range m.cells {
		if cell.SheetID != p.SheetID {
			continue
		}
		switch {
		case cell.Col >= p.Start && cell.Col < p.Start+p.Count:
			delete(m.cells, id)
		case cell.Col >= p.Start+p.Count:
			cell.Col -= p.Count
			m.cells[id] = cell
		}
	}
	sheet := m.sheets[p.SheetID]
	sheet.NumCols = p.NewExtent
	sheet.ColWidths = p.SizeMap
	sheet.HiddenCols = p.HiddenMap
	m.sheets[p.SheetID] = sheet
	return nil
}

func (m *memStore) ListCells(ctx context.Context, sheetID string) ([]store.Cell, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cells []store.Cell
	for _, cell := range m.cells {
		if cell.SheetID == sheetID {
			cells = append(cells, cell)
		}
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Row != cells[j].Row {
			return cells[i].Row < cells[j].Row
		}
		return cells[i].Col < cells[j].Col
	})
	return cells, nil
}

func (m *memStore) GetCell(ctx context.Context, cellID string) (store.Cell, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cell, ok := m.cells[cellID]
	if !ok {
		return store.Cell{}, sql.ErrNoRows
	}
	return cell, nil
}

func (m *memStore) GetCellAt(ctx context.Context, sheetID string, rowIdx, colIdx int) (store.Cell, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cell := range m.cells {
		if cell.SheetID == sheetID && cell.Row == rowIdx && cell.Col == colIdx {
			return cell, nil
		}
	}
	return store.Cell{}, sql.ErrNoRows
}

func (m *memStore) ApplyContentEditWithDerived(ctx context.Context, sheetID, cellID string, content *string, rowIdx int, derived []store.CellWrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cell, ok := m.cells[cellID]
	if !ok {
		return sql.ErrNoRows
	}
	cell.Content = content
	m.cells[cellID] = cell
	for _, write := range derived {
		for id, c := range m.cells {
			if c.SheetID == sheetID && c.Row == write.Row && c.Col == write.Col {
				c.Content = write.Content
				m.cells[id] = c
			}
		}
	}
	return nil
}

func (m *memStore) UpdateCellStyle(ctx context.Context, cellID string, style map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cell, ok := m.cells[cellID]
	if !ok {
		return sql.ErrNoRows
	}
	cell.Style = style
	m.cells[cellID] = cell
	return nil
}

func (m *memStore) UpdateCellStyleAndRowHeight(ctx context.Context, cellID string, style map[string]string, sheetID string, heights map[int]int) error {
	if err := m.UpdateCellStyle(ctx, cellID, style); err != nil {
		return err
	}
	return m.SaveRowHeights(ctx, sheetID, heights)
}

func (m *memStore) updateCellField(cellID string, apply func(*store.Cell)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cell, ok := m.cells[cellID]
	if !ok {
		return sql.ErrNoRows
	}
	apply(&cell)
	m.cells[cellID] = cell
	return nil
}

func (m *memStore) UpdateCellBgColor(ctx context.Context, cellID, bgColor string) error {
	return m.updateCellField(cellID, func(c *store.Cell) { c.BgColor = bgColor })
}

func (m *memStore) UpdateCellColor(ctx context.Context, cellID, color string) error {
	return m.updateCellField(cellID, func(c *store.Cell) { c.Color = color })
}

func (m *memStore) UpdateCellHAlign(ctx context.Context, cellID, align string) error {
	return m.updateCellField(cellID, func(c *store.Cell) { c.HAlign = align })
}

func (m *memStore) UpdateCellVAlign(ctx context.Context, cellID, align string) error {
	return m.updateCellField(cellID, func(c *store.Cell) { c.VAlign = align })
}

func (m *memStore) GetItemPrice(ctx context.Context, name string) (store.ItemPrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	price, ok := m.prices[name]
	if !ok {
		return store.ItemPrice{}, sql.ErrNoRows
	}
	return price, nil
}

func (m *memStore) UpsertItemPrices(ctx context.Context, prices []store.ItemPrice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, price := range prices {
		m.prices[price.Name] = price
	}
	return nil
}

// Test fixture helpers.

func newTestService(ms *memStore) *Service {
	return &Service{
		cfg: config.Config{
			JWTSecret:  "test-secret",
			AccessTTL:  time.Hour,
			RefreshTTL: 24 * time.Hour,
			AppBaseURL: "http://localhost:5173",
		},
		store:   ms,
		authpw:  authpw.NewService(ms),
		formula: formula.NewEvaluator(),
	}
}

func seedUser(ms *memStore, id, name, email string) store.User {
	user := store.User{ID: id, DisplayName: name, Email: email, IsEmailVerified: true}
	ms.users[id] = user
	return user
}

func seedSpreadsheet(ms *memStore, id, ownerID, kind string, rows, cols int) (store.Spreadsheet, store.Sheet) {
	spreadsheet := store.Spreadsheet{ID: id, OwnerID: ownerID, Kind: kind, Name: "Test " + id}
	sheet, cells := buildSheet(id, "Sheet1", 0, rows, cols, kind == store.KindCS)
	ms.spreadsheets[id] = spreadsheet
	ms.sheets[sheet.ID] = sheet
	for _, cell := range cells {
		ms.cells[cell.ID] = cell
	}
	return spreadsheet, sheet
}

func setCellContent(ms *memStore, sheetID string, row, col int, content string) store.Cell {
	for id, cell := range ms.cells {
		if cell.SheetID == sheetID && cell.Row == row && cell.Col == col {
			cell.Content = &content
			ms.cells[id] = cell
			return cell
		}
	}
	panic("cell not found")
}

func cellAt(ms *memStore, sheetID string, row, col int) store.Cell {
	cell, err := ms.GetCellAt(context.Background(), sheetID, row, col)
	if err != nil {
		panic("cell not found")
	}
	return cell
}

func TestSessionRoundTrip(t *testing.T) {
	ms := newMemStore()
	seedUser(ms, "usr_1", "Avery", "avery@example.com")
	svc := newTestService(ms)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "usr_1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if session.Token == "" || session.RefreshToken == "" {
		t.Fatalf("expected tokens, got %+v", session)
	}

	parsed, err := svc.SessionFromToken(ctx, session.Token)
	if err != nil {
		t.Fatalf("SessionFromToken: %v", err)
	}
	if parsed.UserID != "usr_1" || parsed.UserName != "Avery" {
		t.Errorf("unexpected session claims: %+v", parsed)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	ms := newMemStore()
	seedUser(ms, "usr_1", "Avery", "avery@example.com")
	svc := newTestService(ms)
	ctx := context.Background()

	first, err := svc.CreateSession(ctx, "usr_1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	second, err := svc.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Error("refresh token was not rotated")
	}

	if _, err := svc.Refresh(ctx, first.RefreshToken); err == nil {
		t.Error("expected revoked refresh token to be rejected")
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	ms := newMemStore()
	seedUser(ms, "usr_1", "Avery", "avery@example.com")
	svc := newTestService(ms)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "usr_1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := svc.Logout(ctx, session.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.Refresh(ctx, session.RefreshToken); err == nil {
		t.Error("expected refresh after logout to fail")
	}
}

func TestUpdatePricesValidatesNames(t *testing.T) {
	ms := newMemStore()
	svc := newTestService(ms)
	ctx := context.Background()

	if err := svc.UpdatePrices(ctx, nil); err == nil {
		t.Error("expected empty price batch to be rejected")
	}
	if err := svc.UpdatePrices(ctx, []store.ItemPrice{{Name: ""}}); err == nil {
		t.Error("expected blank price name to be rejected")
	}
	if err := svc.UpdatePrices(ctx, []store.ItemPrice{{Name: "Widget", PriceLatest: 2}}); err != nil {
		t.Errorf("UpdatePrices: %v", err)
	}
	if ms.prices["Widget"].PriceLatest != 2 {
		t.Error("price was not stored")
	}
}
