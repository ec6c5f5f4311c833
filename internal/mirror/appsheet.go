// Package mirror pushes portal state to the two external record-keeping
// systems staff work from: an AppSheet app (one row per candidate) and a
// Google spreadsheet (append-only application and PNM logs).
//
// The portal's own store is the source of truth. Everything here is
// best-effort: failures are logged and dropped, never surfaced to the
// candidate and never rolled back locally.
package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Row is one AppSheet row, keyed by column name.
type Row map[string]any

// AppSheetConfig locates the AppSheet table.
type AppSheetConfig struct {
	AppID   string
	APIKey  string
	Table   string
	Timeout time.Duration // per call; default 10s
	BaseURL string        // default https://api.appsheet.com/api/v2
}

// Configured reports whether all three of app id, key and table are set.
func (c AppSheetConfig) Configured() bool {
	return c.AppID != "" && c.APIKey != "" && c.Table != ""
}

// APIError is a non-2xx response or a 2xx response whose body lists errors.
type APIError struct {
	Action string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("appsheet %s %d: %s", e.Action, e.Status, e.Body)
}

// duplicateRow matches the errors AppSheet returns when an Add hits an
// existing key. It is deliberately broad: a false positive only costs one
// Edit call.
var duplicateRow = regexp.MustCompile(`(?i)already exists|duplicate|key|400|409`)

// AppSheet is a client for the AppSheet v2 Action API.
type AppSheet struct {
	cfg      AppSheetConfig
	client   *http.Client
	endpoint string
	logger   *slog.Logger
}

// NewAppSheet returns a client. An unconfigured client is valid: every call
// logs and returns nil.
func NewAppSheet(cfg AppSheetConfig, client *http.Client, logger *slog.Logger) *AppSheet {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.appsheet.com/api/v2"
	}
	if client == nil {
		client = &http.Client{}
	}
	return &AppSheet{
		cfg:      cfg,
		client:   client,
		endpoint: fmt.Sprintf("%s/apps/%s/tables/%s/Action", cfg.BaseURL, url.PathEscape(cfg.AppID), url.PathEscape(cfg.Table)),
		logger:   logger,
	}
}

type actionRequest struct {
	Action     string            `json:"Action"`
	Properties map[string]string `json:"Properties"`
	Rows       []Row             `json:"Rows"`
}

// Add inserts row.
func (a *AppSheet) Add(ctx context.Context, row Row) error {
	return a.do(ctx, "Add", "", row)
}

// Edit updates the row whose Email matches row["Email"]. Without an Email
// the table's own key column decides.
func (a *AppSheet) Edit(ctx context.Context, row Row) error {
	email, _ := row["Email"].(string)
	return a.do(ctx, "Edit", a.selector(email), row)
}

// EditByEmail applies patch to the row for email.
func (a *AppSheet) EditByEmail(ctx context.Context, email string, patch Row) error {
	return a.do(ctx, "Edit", a.selector(email), patch)
}

// Upsert adds row and, if AppSheet reports it already exists, edits it by
// Email instead. The fallback gets its own timeout.
func (a *AppSheet) Upsert(ctx context.Context, row Row) error {
	err := a.Add(ctx, row)
	if err == nil {
		return nil
	}
	if !isDuplicate(err) {
		return err
	}
	email, _ := row["Email"].(string)
	a.logger.Debug("appsheet add hit existing row, editing", slog.String("email", email))
	return a.EditByEmail(ctx, email, row)
}

// EditPhoto sets the Photo column for email. Errors are logged, not returned.
func (a *AppSheet) EditPhoto(ctx context.Context, email, photoURL string) error {
	if err := a.EditByEmail(ctx, email, Row{"Photo": photoURL}); err != nil {
		a.logger.Warn("appsheet photo edit failed", slog.String("email", email), slog.String("error", err.Error()))
	}
	return nil
}

func isDuplicate(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return duplicateRow.MatchString(apiErr.Error())
}

func (a *AppSheet) selector(email string) string {
	if email == "" {
		return ""
	}
	return fmt.Sprintf(`Filter("%s", [Email] = "%s")`, exprQuote(a.cfg.Table), exprQuote(email))
}

// exprQuote escapes s for a double-quoted AppSheet expression literal.
func exprQuote(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}

func (a *AppSheet) do(ctx context.Context, action, selector string, row Row) error {
	if !a.cfg.Configured() {
		a.logger.Warn("appsheet not configured, skipping",
			slog.String("action", action),
			slog.Bool("has_app_id", a.cfg.AppID != ""),
			slog.Bool("has_key", a.cfg.APIKey != ""),
			slog.Bool("has_table", a.cfg.Table != ""),
		)
		return nil
	}

	props := map[string]string{"Locale": "en-US"}
	if selector != "" {
		props["Selector"] = selector
	}
	payload, err := json.Marshal(actionRequest{Action: action, Properties: props, Rows: []Row{row}})
	if err != nil {
		return fmt.Errorf("mirror: encoding appsheet %s: %w", action, err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("mirror: building appsheet request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("ApplicationAccessKey", a.cfg.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("mirror: appsheet %s timed out after %s: %w", action, a.cfg.Timeout, err)
		}
		return fmt.Errorf("mirror: appsheet %s: %w", action, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("mirror: reading appsheet response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Action: action, Status: resp.StatusCode, Body: truncate(string(body), 400)}
	}

	var parsed struct {
		Errors []any `json:"Errors"`
	}
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil && len(parsed.Errors) > 0 {
		errs, _ := json.Marshal(parsed.Errors)
		return &APIError{Action: action, Status: resp.StatusCode, Body: string(errs)}
	}

	a.logger.Debug("appsheet ok", slog.String("action", action))
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
