package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultSpreadsheet ResultType = "spreadsheet"
	ResultCell        ResultType = "cell"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type          ResultType `json:"type"`
	ID            string     `json:"id"`
	SpreadsheetID string     `json:"spreadsheetId"`
	SheetID       string     `json:"sheetId,omitempty"`
	Title         string     `json:"title"`
	Snippet       string     `json:"snippet"`
	Row           int        `json:"row"`
	Col           int        `json:"col"`
}

// Query describes a search request. UserID scopes results to spreadsheets
// the caller owns or was granted.
type Query struct {
	Text       string
	UserID     string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// SpreadsheetRecord is the data we index for a spreadsheet.
type SpreadsheetRecord struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Viewers []string `json:"viewers"`
}

// CellRecord is the data we index for a cell with content.
type CellRecord struct {
	ID            string   `json:"id"`
	SpreadsheetID string   `json:"spreadsheetId"`
	SheetID       string   `json:"sheetId"`
	Content       string   `json:"content"`
	Row           int      `json:"row"`
	Col           int      `json:"col"`
	Viewers       []string `json:"viewers"`
}
