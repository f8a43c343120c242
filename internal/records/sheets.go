package records

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"cloud.google.com/go/auth"
	"cloud.google.com/go/auth/credentials"
	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/clickpilot/internal/config"
	"github.com/xkilldash9x/clickpilot/internal/network"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultSheetsBaseURL = "https://sheets.googleapis.com"
	sheetsScope          = "https://www.googleapis.com/auth/spreadsheets"
)

// SheetsClient is a Store backed by the Google Sheets v4 REST API, authorised
// as a service account.
type SheetsClient struct {
	httpClient    *http.Client
	tokens        auth.TokenProvider
	baseURL       string
	spreadsheetID string
	sheetName     string
	sheetID       int64
	logger        *zap.Logger
}

// SheetsOption customises a SheetsClient.
type SheetsOption func(*SheetsClient)

// WithTokenProvider bypasses credential discovery.
func WithTokenProvider(tp auth.TokenProvider) SheetsOption {
	return func(c *SheetsClient) { c.tokens = tp }
}

// WithBaseURL points the client at another API host.
func WithBaseURL(u string) SheetsOption {
	return func(c *SheetsClient) { c.baseURL = u }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) SheetsOption {
	return func(c *SheetsClient) { c.httpClient = h }
}

// NewSheetsClient loads credentials and resolves the numeric id of the
// configured tab once.
func NewSheetsClient(ctx context.Context, cfg config.RecordsConfig, logger *zap.Logger, opts ...SheetsOption) (*SheetsClient, error) {
	if cfg.SheetsID == "" {
		return nil, fmt.Errorf("records.sheets_id (SHEETS_ID) must be set")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := network.NewDefaultClientConfig().WithTimeout(30 * time.Second)
	hc.Logger = logger
	c := &SheetsClient{
		httpClient:    network.NewClient(hc),
		baseURL:       defaultSheetsBaseURL,
		spreadsheetID: cfg.SheetsID,
		sheetName:     cfg.SheetName,
		logger:        logger.Named("records.sheets"),
	}
	if c.sheetName == "" {
		c.sheetName = "Sheet1"
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.tokens == nil {
		creds, err := detectCredentials(cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		c.tokens = creds
	}

	id, err := c.resolveSheetID(ctx)
	if err != nil {
		return nil, err
	}
	c.sheetID = id
	c.logger.Info("Connected to spreadsheet.", zap.String("sheet", c.sheetName), zap.Int64("sheet_id", id))
	return c, nil
}

func detectCredentials(file string) (*auth.Credentials, error) {
	opts := &credentials.DetectOptions{Scopes: []string{sheetsScope}}
	if file != "" {
		path, err := homedir.Expand(file)
		if err != nil {
			return nil, fmt.Errorf("expanding credentials path: %w", err)
		}
		opts.CredentialsFile = path
	}
	creds, err := credentials.DetectDefault(opts)
	if err != nil {
		return nil, fmt.Errorf("loading service account credentials: %w", err)
	}
	return creds, nil
}

type spreadsheetMeta struct {
	Sheets []struct {
		Properties struct {
			SheetID int64  `json:"sheetId"`
			Title   string `json:"title"`
		} `json:"properties"`
	} `json:"sheets"`
}

type valuesResponse struct {
	Values [][]string `json:"values"`
}

func (c *SheetsClient) resolveSheetID(ctx context.Context) (int64, error) {
	u := fmt.Sprintf("%s/v4/spreadsheets/%s?fields=sheets.properties", c.baseURL, url.PathEscape(c.spreadsheetID))
	var meta spreadsheetMeta
	if err := c.do(ctx, http.MethodGet, u, nil, &meta); err != nil {
		return 0, fmt.Errorf("reading spreadsheet metadata: %w", err)
	}
	for _, s := range meta.Sheets {
		if s.Properties.Title == c.sheetName {
			return s.Properties.SheetID, nil
		}
	}
	return 0, fmt.Errorf("could not find sheet tab named %q", c.sheetName)
}

// Values returns every populated row of the tab.
func (c *SheetsClient) Values(ctx context.Context) ([][]string, error) {
	u := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s", c.baseURL, url.PathEscape(c.spreadsheetID), url.PathEscape(c.sheetName))
	var body valuesResponse
	if err := c.do(ctx, http.MethodGet, u, nil, &body); err != nil {
		return nil, fmt.Errorf("reading sheet values: %w", err)
	}
	return body.Values, nil
}

type gridRange struct {
	SheetID          int64 `json:"sheetId"`
	StartRowIndex    int   `json:"startRowIndex"`
	EndRowIndex      int   `json:"endRowIndex"`
	StartColumnIndex int   `json:"startColumnIndex"`
	EndColumnIndex   int   `json:"endColumnIndex"`
}

type rgb struct {
	Red   float64 `json:"red"`
	Green float64 `json:"green"`
	Blue  float64 `json:"blue"`
}

type cellData struct {
	UserEnteredValue struct {
		StringValue string `json:"stringValue"`
	} `json:"userEnteredValue"`
	UserEnteredFormat struct {
		BackgroundColor rgb `json:"backgroundColor"`
	} `json:"userEnteredFormat"`
}

type updateCellsRequest struct {
	Range  gridRange `json:"range"`
	Rows   []rowData `json:"rows"`
	Fields string    `json:"fields"`
}

type rowData struct {
	Values []cellData `json:"values"`
}

type batchRequest struct {
	UpdateCells updateCellsRequest `json:"updateCells"`
}

type batchUpdate struct {
	Requests []batchRequest `json:"requests"`
}

// UpdateCell sets one cell's value and background colour.
func (c *SheetsClient) UpdateCell(ctx context.Context, row, col int, value string, color Color) error {
	if err := checkCell(row, col); err != nil {
		return err
	}

	var cd cellData
	cd.UserEnteredValue.StringValue = value
	cd.UserEnteredFormat.BackgroundColor = rgb{
		Red:   float64(color.R) / 255,
		Green: float64(color.G) / 255,
		Blue:  float64(color.B) / 255,
	}
	payload := batchUpdate{Requests: []batchRequest{{UpdateCells: updateCellsRequest{
		Range: gridRange{
			SheetID:          c.sheetID,
			StartRowIndex:    row - 1,
			EndRowIndex:      row,
			StartColumnIndex: col - 1,
			EndColumnIndex:   col,
		},
		Rows:   []rowData{{Values: []cellData{cd}}},
		Fields: "userEnteredValue,userEnteredFormat.backgroundColor",
	}}}}

	u := fmt.Sprintf("%s/v4/spreadsheets/%s:batchUpdate", c.baseURL, url.PathEscape(c.spreadsheetID))
	if err := c.do(ctx, http.MethodPost, u, payload, nil); err != nil {
		return fmt.Errorf("updating %s%d: %w", ColumnLetter(col), row, err)
	}
	c.logger.Debug("Updated cell.", zap.String("cell", fmt.Sprintf("%s%d", ColumnLetter(col), row)))
	return nil
}

// do sends one authorised request; the error carries the body because
// Google puts the real reason there.
func (c *SheetsClient) do(ctx context.Context, method, u string, in, out interface{}) error {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("obtaining access token: %w", err)
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok.Value)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sheets API returned %d: %s", resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
