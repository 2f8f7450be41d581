package universe

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/youngcan/wyckoff-funnel/internal/contracts"
	"github.com/youngcan/wyckoff-funnel/pkg/httputil"
	"github.com/youngcan/wyckoff-funnel/pkg/logger"
)

// HTMLLister is the degraded fallback: it scrapes the static stock-list
// page when the JSON API is unavailable. The page carries code and name
// only, so market cap and sector stay zero and Layer 1 skips the cap
// check for those symbols, mirroring the original behavior when the cap
// snapshot was missing.
type HTMLLister struct {
	client  *httputil.Client
	baseURL string
	logger  *logger.Logger
}

const stockListPageURL = "https://quote.eastmoney.com/stocklist.html"

// Anchors look like "平安银行(000001)".
var stockAnchorPattern = regexp.MustCompile(`^(.+)\((\d{6})\)$`)

// NewHTMLLister creates the fallback symbol lister.
func NewHTMLLister(client *httputil.Client, log *logger.Logger) *HTMLLister {
	return &HTMLLister{
		client:  client,
		baseURL: stockListPageURL,
		logger:  log.WithField("lister", "html"),
	}
}

// ListSymbols implements Lister by parsing the listing page anchors.
func (l *HTMLLister) ListSymbols(ctx context.Context) ([]contracts.Symbol, error) {
	resp, err := l.client.Get(ctx, l.baseURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse stock list page: %w", err)
	}

	symbols := parseStockListDoc(doc)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("stock list page yielded no symbols")
	}
	l.logger.WithField("count", len(symbols)).Debug("Listed symbols from HTML fallback")
	return symbols, nil
}

func parseStockListDoc(doc *goquery.Document) []contracts.Symbol {
	seen := make(map[string]bool)
	var symbols []contracts.Symbol

	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		m := stockAnchorPattern.FindStringSubmatch(strings.TrimSpace(a.Text()))
		if m == nil {
			return
		}
		name, code := strings.TrimSpace(m[1]), m[2]
		if seen[code] || contracts.BoardFromCode(code) == contracts.BoardUnknown {
			return
		}
		seen[code] = true
		symbols = append(symbols, contracts.Symbol{
			Code:        code,
			Name:        name,
			Exchange:    contracts.ExchangeFromCode(code),
			Board:       contracts.BoardFromCode(code),
			SpecialRisk: IsSpecialRisk(name),
		})
	})
	return symbols
}
