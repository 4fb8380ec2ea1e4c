package store

import "time"

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Spreadsheet kinds. CS spreadsheets carry the protected pricing band.
const (
	KindNormal = "NORMAL"
	KindCS     = "CS"
)

type Spreadsheet struct {
	ID         string
	OwnerID    string
	Kind       string
	Name       string
	LastOpened *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Sheet struct {
	ID            string
	SpreadsheetID string
	Name          string
	Position      int
	Color         string
	NumRows       int
	NumCols       int
	RowHeights    map[int]int
	ColWidths     map[int]int
	HiddenRows    map[int]bool
	HiddenCols    map[int]bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Cell struct {
	ID        string
	SheetID   string
	Row       int
	Col       int
	Protected bool
	Content   *string
	BgColor   string
	Color     string
	Style     map[string]string
	HAlign    string
	VAlign    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Share permissions.
const (
	PermissionView = "VIEW"
	PermissionEdit = "EDIT"
)

type Share struct {
	SpreadsheetID string
	UserID        string
	Permission    string
	LastOpened    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	// Joined fields for API responses
	UserEmail string
	UserName  string
}

// ItemPrice mirrors one row of the external market-data feed.
type ItemPrice struct {
	Name          string
	PriceLatest   float64
	PriceReal     float64
	BuyOrderPrice float64
	UpdatedAt     time.Time
}

// SpreadsheetListing is one row of a user's spreadsheet overview:
// the spreadsheet plus the caller's permission on it.
type SpreadsheetListing struct {
	Spreadsheet
	Permission string
	OwnerName  string
}

// CellWrite addresses a cell by coordinate for derived-column updates.
type CellWrite struct {
	Row     int
	Col     int
	Content *string
}
