package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"sofia/internal/core"
	ports "sofia/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Expense rows use columns A:G = ID, Date, Payer, Amount, Description, Note, Created.
// Activity rows use columns A:G = At, Action, ExpenseID, Description, Amount, Payer, Date.
const (
	expenseCols  = "A:G"
	activityCols = "A:G"
)

type Config struct {
	SpreadsheetID   string
	ExpensesSheet   string
	ActivitySheet   string // empty disables the activity log
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	expensesSheet string
	activitySheet string

	mu       sync.Mutex
	sheetIDs map[string]int64
}

// Ensure interface conformance
var (
	_ ports.ExpenseWriter  = (*Client)(nil)
	_ ports.ExpenseLister  = (*Client)(nil)
	_ ports.ExpenseDeleter = (*Client)(nil)
	_ ports.ActivityReader = (*Client)(nil)
)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg), nil
}

// NewWithService wraps an already configured service.
func NewWithService(svc *gsheet.Service, cfg Config) *Client {
	expenses := strings.TrimSpace(cfg.ExpensesSheet)
	if expenses == "" {
		expenses = "Expenses"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		expensesSheet: expenses,
		activitySheet: strings.TrimSpace(cfg.ActivitySheet),
		sheetIDs:      map[string]int64{},
	}
}

// newSheetsService prefers inline JSON credentials over a file path.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", cfg.CredentialsFile)
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Append writes one expense row and returns the updated range.
func (c *Client) Append(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!%s", c.expensesSheet, expenseCols)
	vr := &gsheet.ValueRange{Values: [][]any{expenseRow(e)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.expensesSheet, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}

	if err := c.appendActivity(ctx, core.NewActivity(core.ActionAdd, e, time.Now())); err != nil {
		slog.WarnContext(ctx, "Failed to record activity in sheet", "expense_id", e.ID, "error", err)
	}
	return ref, nil
}

// ListExpenses reads the whole expense sheet, newest first.
func (c *Client) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	values, err := c.readValues(ctx, c.expensesSheet, expenseCols)
	if err != nil {
		return nil, err
	}
	out, skipped := parseExpenseRows(values)
	if skipped > 0 {
		slog.WarnContext(ctx, "Skipped unreadable expense rows", "sheet", c.expensesSheet, "count", skipped)
	}
	core.SortNewestFirst(out)
	return out, nil
}

// DeleteExpense finds the row whose column A equals id and removes it.
func (c *Client) DeleteExpense(ctx context.Context, id string) (core.Expense, error) {
	values, err := c.readValues(ctx, c.expensesSheet, expenseCols)
	if err != nil {
		return core.Expense{}, err
	}
	idx := findRow(values, id)
	if idx < 0 {
		return core.Expense{}, core.ErrNotFound
	}
	removed, _ := parseExpenseRow(toStrings(values[idx]))

	sheetID, err := c.sheetID(ctx, c.expensesSheet)
	if err != nil {
		return core.Expense{}, err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(idx),
					EndIndex:   int64(idx + 1),
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return core.Expense{}, fmt.Errorf("delete row %d in %s: %w", idx+1, c.expensesSheet, err)
	}

	if err := c.appendActivity(ctx, core.NewActivity(core.ActionDelete, removed, time.Now())); err != nil {
		slog.WarnContext(ctx, "Failed to record activity in sheet", "expense_id", id, "error", err)
	}
	return removed, nil
}

// ListActivity returns up to limit entries from the activity sheet, newest
// first. Without an activity sheet it returns nothing.
func (c *Client) ListActivity(ctx context.Context, limit int) ([]core.Activity, error) {
	if c.activitySheet == "" {
		return nil, nil
	}
	values, err := c.readValues(ctx, c.activitySheet, activityCols)
	if err != nil {
		return nil, err
	}
	all := parseActivityRows(values)
	out := make([]core.Activity, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, all[i])
	}
	return out, nil
}

func (c *Client) appendActivity(ctx context.Context, a core.Activity) error {
	if c.activitySheet == "" {
		return nil
	}
	rng := fmt.Sprintf("%s!%s", c.activitySheet, activityCols)
	vr := &gsheet.ValueRange{Values: [][]any{activityRow(a)}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}

func (c *Client) readValues(ctx context.Context, sheet, cols string) ([][]any, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!%s", sheet, cols)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// sheetID resolves a tab title to its numeric ID, cached per client.
func (c *Client) sheetID(ctx context.Context, title string) (int64, error) {
	c.mu.Lock()
	id, ok := c.sheetIDs[title]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet metadata: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range ss.Sheets {
		if s.Properties == nil {
			continue
		}
		c.sheetIDs[s.Properties.Title] = s.Properties.SheetId
	}
	id, ok = c.sheetIDs[title]
	if !ok {
		return 0, fmt.Errorf("sheet %q not found in spreadsheet", title)
	}
	return id, nil
}
