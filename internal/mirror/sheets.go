package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsConfig locates the spreadsheet and its tabs.
type SheetsConfig struct {
	SpreadsheetID  string
	ApplicationTab string        // default "Application Submissions"
	PNMTab         string        // default "PNMs"
	MetaTTL        time.Duration // how long the tab list is trusted; default 5m
}

// SheetsAPI is the slice of the Sheets v4 API the portal uses.
type SheetsAPI interface {
	SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error)
	AddSheet(ctx context.Context, spreadsheetID, title string) error
	AppendRow(ctx context.Context, spreadsheetID, rng string, row []any) error
}

// googleSheets adapts *sheets.Service to SheetsAPI.
type googleSheets struct {
	srv *sheets.Service
}

// NewSheetsAPI builds a Sheets client from service-account credentials:
// credentialsJSON if non-empty, otherwise the key file at credentialsFile,
// otherwise Application Default Credentials.
func NewSheetsAPI(ctx context.Context, credentialsJSON, credentialsFile string) (SheetsAPI, error) {
	data := []byte(credentialsJSON)
	if len(data) == 0 && credentialsFile != "" {
		b, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("mirror: reading sheets credentials: %w", err)
		}
		data = b
	}

	var creds *google.Credentials
	var err error
	if len(data) > 0 {
		creds, err = google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
	} else {
		creds, err = google.FindDefaultCredentials(ctx, sheets.SpreadsheetsScope)
	}
	if err != nil {
		return nil, fmt.Errorf("mirror: loading sheets credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("mirror: creating sheets service: %w", err)
	}
	return &googleSheets{srv: srv}, nil
}

func (g *googleSheets) SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error) {
	ss, err := g.srv.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			titles = append(titles, s.Properties.Title)
		}
	}
	return titles, nil
}

func (g *googleSheets) AddSheet(ctx context.Context, spreadsheetID, title string) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: title},
			},
		}},
	}
	_, err := g.srv.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	return err
}

func (g *googleSheets) AppendRow(ctx context.Context, spreadsheetID, rng string, row []any) error {
	vr := &sheets.ValueRange{Values: [][]any{row}}
	_, err := g.srv.Spreadsheets.Values.Append(spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// SheetMeta caches which tabs exist. The cache is trusted for TTL; after that
// the next ensure refetches it, so tabs deleted by hand get recreated.
type SheetMeta struct {
	TTL time.Duration

	mu        sync.Mutex
	titles    map[string]bool
	fetchedAt time.Time
	now       func() time.Time
}

func (m *SheetMeta) fresh() bool {
	return m.titles != nil && m.now().Sub(m.fetchedAt) < m.TTL
}

// ApplicationRow is one line of the application log:
// First | Last | Email | Year | Photo | Resume | Response.
type ApplicationRow struct {
	FirstName string
	LastName  string
	Email     string
	ClassYear string
	PhotoURL  string
	ResumeURL string
	Response  string
}

// PNMRow is one line of the PNM roster: ID | Name | Email | Year | Photo.
type PNMRow struct {
	ID        int64
	Name      string
	Email     string
	ClassYear string
	PhotoURL  string
}

// Sheets appends rows to the staff spreadsheet.
type Sheets struct {
	api    SheetsAPI
	cfg    SheetsConfig
	meta   *SheetMeta
	logger *slog.Logger
}

// NewSheets returns a Sheets writer. api may be nil, and SpreadsheetID may be
// empty; either way every append is skipped with a log line.
func NewSheets(api SheetsAPI, cfg SheetsConfig, logger *slog.Logger) *Sheets {
	if cfg.ApplicationTab == "" {
		cfg.ApplicationTab = "Application Submissions"
	}
	if cfg.PNMTab == "" {
		cfg.PNMTab = "PNMs"
	}
	if cfg.MetaTTL <= 0 {
		cfg.MetaTTL = 5 * time.Minute
	}
	return &Sheets{
		api:    api,
		cfg:    cfg,
		meta:   &SheetMeta{TTL: cfg.MetaTTL, now: time.Now},
		logger: logger,
	}
}

// AppendApplication logs a submitted application.
func (s *Sheets) AppendApplication(ctx context.Context, row ApplicationRow) error {
	return s.append(ctx, s.cfg.ApplicationTab, "A:G", []any{
		row.FirstName, row.LastName, row.Email,
		row.ClassYear, row.PhotoURL, row.ResumeURL, row.Response,
	})
}

// AppendPNM adds a candidate to the PNM roster.
func (s *Sheets) AppendPNM(ctx context.Context, row PNMRow) error {
	return s.append(ctx, s.cfg.PNMTab, "A:E", []any{
		row.ID, row.Name, strings.ToLower(row.Email), row.ClassYear, row.PhotoURL,
	})
}

func (s *Sheets) append(ctx context.Context, tab, cols string, row []any) error {
	if s.api == nil || s.cfg.SpreadsheetID == "" {
		s.logger.Warn("sheets not configured, skipping", slog.String("tab", tab))
		return nil
	}
	if err := s.ensureTab(ctx, tab); err != nil {
		return err
	}
	if err := s.api.AppendRow(ctx, s.cfg.SpreadsheetID, a1Range(tab, cols), row); err != nil {
		return fmt.Errorf("mirror: appending to %q: %w", tab, err)
	}
	s.logger.Info("sheets row appended", slog.String("tab", tab))
	return nil
}

// ensureTab creates tab if the spreadsheet does not have it.
func (s *Sheets) ensureTab(ctx context.Context, tab string) error {
	m := s.meta
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fresh() && m.titles[tab] {
		return nil
	}

	titles, err := s.api.SheetTitles(ctx, s.cfg.SpreadsheetID)
	if err != nil {
		return fmt.Errorf("mirror: reading spreadsheet metadata: %w", err)
	}
	m.titles = make(map[string]bool, len(titles))
	for _, t := range titles {
		m.titles[t] = true
	}
	m.fetchedAt = m.now()

	if m.titles[tab] {
		return nil
	}
	if err := s.api.AddSheet(ctx, s.cfg.SpreadsheetID, tab); err != nil {
		return fmt.Errorf("mirror: creating tab %q: %w", tab, err)
	}
	m.titles[tab] = true
	s.logger.Info("sheets tab created", slog.String("tab", tab))
	return nil
}

// a1Range quotes tab for A1 notation ("'PNMs'!A:E").
func a1Range(tab, cols string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'!" + cols
}
