package records

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/clickpilot/internal/config"
)

// Client is one roster row.
type Client struct {
	Me                  string
	ReturnsPrinted      bool
	ReturnsSent         bool
	ClientID            string
	ClientName          string
	EmailTemp1          string
	EmailTemp2          string
	Comment             string
	EstimateQuarterlies string
	TaxReturn           string
	Signature           string
	SignatureTemplate   string
	RequireKBA          bool
	Invoice             string
	InvoiceAmount       string
	InvoiceTemplate     string
	Closer              string
	Pipeline            string
	Seal                string
	YearToSeal          string
	// RowIndex is the sheet row; the header is row 1.
	RowIndex int
}

// PortalURL is prefix + client id + portal suffix.
func (c Client) PortalURL(cfg config.RecordsConfig) string {
	return cfg.PortalPrefix + c.ClientID + cfg.PortalSuffix
}

// DocsURL is prefix + client id + docs suffix.
func (c Client) DocsURL(cfg config.RecordsConfig) string {
	return cfg.PortalPrefix + c.ClientID + cfg.DocsSuffix
}

// PipelineURL is prefix + client id + pipeline suffix.
func (c Client) PipelineURL(cfg config.RecordsConfig) string {
	return cfg.PortalPrefix + c.ClientID + cfg.PipelineSuffix
}

// EmailTemplates lists the non-empty email template names.
func (c Client) EmailTemplates() []string {
	return nonEmpty(c.EmailTemp1, c.EmailTemp2)
}

// Estimates lists the non-empty estimate entries.
func (c Client) Estimates() []string {
	return nonEmpty(c.EstimateQuarterlies)
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Roster is the parsed sheet.
type Roster struct {
	Header  []string
	Clients []Client
}

// Column returns the 1-based index of a header.
func (r *Roster) Column(name string) (int, bool) {
	for i, h := range r.Header {
		if strings.TrimSpace(h) == name {
			return i + 1, true
		}
	}
	return 0, false
}

// Row returns the client at sheet row n.
func (r *Roster) Row(n int) (Client, bool) {
	for _, c := range r.Clients {
		if c.RowIndex == n {
			return c, true
		}
	}
	return Client{}, false
}

// ParseClients reads the header row, then data rows until the first with an
// empty ME cell. An empty sheet yields an empty roster.
func ParseClients(values [][]string) (*Roster, error) {
	if len(values) == 0 {
		return &Roster{}, nil
	}
	header := values[0]
	idx := func(name string) (int, error) {
		for i, h := range header {
			if strings.TrimSpace(h) == name {
				return i, nil
			}
		}
		return 0, fmt.Errorf("missing expected header %q", name)
	}

	cols := map[string]int{}
	for _, name := range requiredHeaders {
		i, err := idx(name)
		if err != nil {
			return nil, err
		}
		cols[name] = i
	}

	roster := &Roster{Header: header}
	for n, row := range values[1:] {
		get := func(name string) string { return cell(row, cols[name]) }
		if get("ME") == "" {
			break
		}
		roster.Clients = append(roster.Clients, Client{
			Me:                  get("ME"),
			ReturnsPrinted:      parseYN(get("Returns Printed?")),
			ReturnsSent:         parseYN(get("Returns Sent?")),
			ClientID:            get("ClientID"),
			ClientName:          get("ClientName"),
			EmailTemp1:          get("EmailTemp1"),
			EmailTemp2:          get("EmailTemp2"),
			Comment:             get("Comment"),
			EstimateQuarterlies: get("Estimate/Quarterlies"),
			TaxReturn:           get("TaxReturn"),
			Signature:           get("Signature"),
			SignatureTemplate:   get("SignatureTemplate"),
			RequireKBA:          parseYN(get("RequireKBA")),
			Invoice:             get("Invoice"),
			InvoiceAmount:       get("InvoiceAmount"),
			InvoiceTemplate:     get("InvoiceTemplate"),
			Closer:              get("Closer"),
			Pipeline:            get("Pipeline"),
			Seal:                get("Seal"),
			YearToSeal:          get("YearToSeal"),
			RowIndex:            n + 2,
		})
	}
	return roster, nil
}

var requiredHeaders = []string{
	"ME", "Returns Printed?", "Returns Sent?", "ClientID", "ClientName",
	"EmailTemp1", "EmailTemp2", "Comment", "Estimate/Quarterlies", "TaxReturn",
	"Signature", "SignatureTemplate", "RequireKBA", "Invoice", "InvoiceAmount",
	"InvoiceTemplate", "Closer", "Pipeline", "Seal", "YearToSeal",
}

// Headers returns the column names ParseClients requires, in sheet order.
func Headers() []string {
	return append([]string(nil), requiredHeaders...)
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func parseYN(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "Y", "YES", "TRUE", "1":
		return true
	}
	return false
}
