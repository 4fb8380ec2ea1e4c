package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"gridbook/api/internal/auth"
	"gridbook/api/internal/authpw"
	"gridbook/api/internal/config"
	"gridbook/api/internal/email"
	"gridbook/api/internal/export"
	"gridbook/api/internal/formula"
	"gridbook/api/internal/history"
	"gridbook/api/internal/search"
	"gridbook/api/internal/store"
	"gridbook/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	JTI          string
	ExpiresAt    time.Time
}

// dataStore is the slice of the Postgres store the service depends on.
type dataStore interface {
	Ping(ctx context.Context) error

	GetUserByID(ctx context.Context, userID string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error

	CreateSpreadsheet(ctx context.Context, spreadsheet store.Spreadsheet, sheet store.Sheet, cells []store.Cell) error
	GetSpreadsheet(ctx context.Context, spreadsheetID string) (store.Spreadsheet, error)
	ListSpreadsheetsForUser(ctx context.Context, userID string) ([]store.SpreadsheetListing, error)
	RenameSpreadsheet(ctx context.Context, spreadsheetID, name string) error
	DeleteSpreadsheet(ctx context.Context, spreadsheetID string) error
	TouchSpreadsheetOpened(ctx context.Context, spreadsheetID, userID string) error
	GetShare(ctx context.Context, spreadsheetID, userID string) (store.Share, error)
	ListShares(ctx context.Context, spreadsheetID string) ([]store.Share, error)
	UpsertShare(ctx context.Context, spreadsheetID, userID, permission string) error
	DeleteShare(ctx context.Context, spreadsheetID, userID string) error
	ViewerIDs(ctx context.Context, spreadsheetID string) ([]string, error)

	GetSheet(ctx context.Context, sheetID string) (store.Sheet, error)
	ListSheets(ctx context.Context, spreadsheetID string) ([]store.Sheet, error)
	SheetCount(ctx context.Context, spreadsheetID string) (int, error)
	InsertSheetWithCells(ctx context.Context, sheet store.Sheet, cells []store.Cell) error
	UpdateSheetMeta(ctx context.Context, sheetID, name, color string) error
	DeleteSheetAndRenumber(ctx context.Context, sheetID, spreadsheetID string, position int) error
	MoveSheet(ctx context.Context, spreadsheetID, sheetID string, oldPos, newPos int) error
	SaveRowHeights(ctx context.Context, sheetID string, heights map[int]int) error
	SaveColWidths(ctx context.Context, sheetID string, widths map[int]int) error
	SaveHiddenRows(ctx context.Context, sheetID string, hidden map[int]bool) error
	SaveHiddenCols(ctx context.Context, sheetID string, hidden map[int]bool) error
	InsertRowBand(ctx context.Context, p store.BandParams) error
	DeleteRowBand(ctx context.Context, p store.BandParams) error
	InsertColBand(ctx context.Context, p store.BandParams) error
	DeleteColBand(ctx context.Context, p store.BandParams) error

	ListCells(ctx context.Context, sheetID string) ([]store.Cell, error)
	GetCell(ctx context.Context, cellID string) (store.Cell, error)
	GetCellAt(ctx context.Context, sheetID string, rowIdx, colIdx int) (store.Cell, error)
	ApplyContentEditWithDerived(ctx context.Context, sheetID, cellID string, content *string, rowIdx int, derived []store.CellWrite) error
	UpdateCellStyle(ctx context.Context, cellID string, style map[string]string) error
	UpdateCellStyleAndRowHeight(ctx context.Context, cellID string, style map[string]string, sheetID string, heights map[int]int) error
	UpdateCellBgColor(ctx context.Context, cellID, bgColor string) error
	UpdateCellColor(ctx context.Context, cellID, color string) error
	UpdateCellHAlign(ctx context.Context, cellID, align string) error
	UpdateCellVAlign(ctx context.Context, cellID, align string) error

	GetItemPrice(ctx context.Context, name string) (store.ItemPrice, error)
	UpsertItemPrices(ctx context.Context, prices []store.ItemPrice) error
}

// sessionStore is the Redis refresh-token store. Nil means the Postgres
// fallback in dataStore handles refresh sessions.
type sessionStore interface {
	SaveSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeSession(ctx context.Context, tokenHash string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	authpw   *authpw.Service
	sessions sessionStore
	search   *search.Service
	exports  *export.Service
	email    *email.Service
	history  *history.Service
	formula  *formula.Evaluator
}

// Options carries the optional backends wired in at startup.
type Options struct {
	Sessions sessionStore
	Search   *search.Service
	Exports  *export.Service
	Email    *email.Service
	History  *history.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, opts Options) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		authpw:   authpw.NewService(dataStore),
		sessions: opts.Sessions,
		search:   opts.Search,
		exports:  opts.Exports,
		email:    opts.Email,
		history:  opts.History,
		formula:  formula.NewEvaluator(),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// AuthPasswordService exposes the email/password auth flows to the HTTP layer.
func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

// CreateSession issues an access token plus rotating refresh token for a user.
func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// session is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)

	var user store.User
	var err error
	if s.sessions != nil {
		user, err = s.sessions.LookupSession(ctx, tokenHash)
		if err == nil {
			_ = s.sessions.RevokeSession(ctx, tokenHash)
		}
	} else {
		user, err = s.store.LookupRefreshSession(ctx, tokenHash)
		if err == nil {
			err = s.store.RevokeRefreshSession(ctx, tokenHash)
		}
	}
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Name:  user.DisplayName,
		Email: user.Email,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewToken()
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	refreshHash := auth.HashToken(refresh)
	if s.sessions != nil {
		err = s.sessions.SaveSession(ctx, refreshHash, user, refreshExpires)
	} else {
		err = s.store.SaveRefreshSession(ctx, refreshHash, user.ID, refreshExpires)
	}
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Email:        user.Email,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// SessionFromToken validates a bearer token and resolves it to a session.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    claims.Sub,
		UserName:  claims.Name,
		Email:     claims.Email,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// Logout revokes the presented refresh token. Access tokens simply expire.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	tokenHash := auth.HashToken(refreshToken)
	if s.sessions != nil {
		return s.sessions.RevokeSession(ctx, tokenHash)
	}
	return s.store.RevokeRefreshSession(ctx, tokenHash)
}

// NotifyVerification sends the signup verification email in the background.
func (s *Service) NotifyVerification(to, userName, token string) {
	if s.email == nil || !s.email.IsConfigured() {
		return
	}
	go func() {
		verifyURL := fmt.Sprintf("%s/verify-email?token=%s", strings.TrimSuffix(s.cfg.AppBaseURL, "/"), token)
		if err := s.email.SendVerificationEmail(to, userName, verifyURL); err != nil {
			log.Printf("email: verification to %s: %v", to, err)
		}
	}()
}

// NotifyPasswordReset sends the password reset email in the background.
func (s *Service) NotifyPasswordReset(ctx context.Context, to, token string) {
	if s.email == nil || !s.email.IsConfigured() {
		return
	}
	userName := to
	if user, err := s.store.GetUserByEmail(ctx, to); err == nil {
		userName = user.DisplayName
	}
	go func() {
		resetURL := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimSuffix(s.cfg.AppBaseURL, "/"), token)
		if err := s.email.SendPasswordResetEmail(to, userName, resetURL); err != nil {
			log.Printf("email: password reset to %s: %v", to, err)
		}
	}()
}

// UpdatePrices bulk-upserts the market price mirror.
func (s *Service) UpdatePrices(ctx context.Context, prices []store.ItemPrice) error {
	if len(prices) == 0 {
		return errValidation("at least one price is required")
	}
	for _, price := range prices {
		if price.Name == "" {
			return errValidation("price name is required")
		}
	}
	return s.store.UpsertItemPrices(ctx, prices)
}

// SearchService returns the search facade, nil when not configured.
func (s *Service) SearchService() *search.Service {
	return s.search
}
