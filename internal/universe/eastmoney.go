package universe

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/youngcan/wyckoff-funnel/internal/contracts"
	"github.com/youngcan/wyckoff-funnel/pkg/httputil"
	"github.com/youngcan/wyckoff-funnel/pkg/logger"
)

// EastmoneyLister loads the full market list from the eastmoney clist API,
// including name, latest price (suspension marker), total market cap, and
// industry classification.
type EastmoneyLister struct {
	client  *httputil.Client
	baseURL string
	logger  *logger.Logger
}

const (
	eastmoneyListURL = "https://82.push2.eastmoney.com/api/qt/clist/get"

	// SZ main (t:6), ChiNext (t:80), SH main (t:2), STAR (t:23), BSE (t:81)
	eastmoneyListMarkets = "m:0+t:6,m:0+t:80,m:1+t:2,m:1+t:23,m:0+t:81+s:2048"

	// f2 price, f12 code, f14 name, f20 total market cap, f100 industry
	eastmoneyListFields = "f2,f12,f14,f20,f100"

	eastmoneyListPageSize = 500
)

// NewEastmoneyLister creates the primary symbol lister.
func NewEastmoneyLister(client *httputil.Client, log *logger.Logger) *EastmoneyLister {
	return &EastmoneyLister{
		client:  client,
		baseURL: eastmoneyListURL,
		logger:  log.WithField("lister", "eastmoney"),
	}
}

// ListSymbols implements Lister, paging through the full market.
func (l *EastmoneyLister) ListSymbols(ctx context.Context) ([]contracts.Symbol, error) {
	var all []contracts.Symbol
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s?pn=%d&pz=%d&fs=%s&fields=%s",
			l.baseURL, page, eastmoneyListPageSize, eastmoneyListMarkets, eastmoneyListFields)

		body, err := l.client.GetBody(ctx, url)
		if err != nil {
			return nil, err
		}

		total, batch, err := parseSymbolPage(body)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)

		if len(batch) < eastmoneyListPageSize || len(all) >= total {
			break
		}
	}
	l.logger.WithField("count", len(all)).Debug("Listed symbols")
	return all, nil
}

// parseSymbolPage parses one clist page: data.total plus data.diff rows.
func parseSymbolPage(body []byte) (total int, symbols []contracts.Symbol, err error) {
	data := gjson.GetBytes(body, "data")
	if !data.Exists() {
		return 0, nil, fmt.Errorf("eastmoney list: no data object")
	}
	total = int(data.Get("total").Int())

	diff := data.Get("diff")
	if !diff.Exists() {
		return total, nil, nil
	}
	diff.ForEach(func(_, row gjson.Result) bool {
		code := strings.TrimSpace(row.Get("f12").String())
		if code == "" {
			return true
		}
		name := strings.TrimSpace(row.Get("f14").String())

		// Suspended stocks report "-" instead of a price.
		price := row.Get("f2")
		suspended := price.Type == gjson.String || !price.Exists()

		symbols = append(symbols, contracts.Symbol{
			Code:        code,
			Name:        name,
			Exchange:    contracts.ExchangeFromCode(code),
			Board:       contracts.BoardFromCode(code),
			Sector:      strings.TrimSpace(row.Get("f100").String()),
			SpecialRisk: IsSpecialRisk(name),
			Suspended:   suspended,
			MarketCap:   row.Get("f20").Float(),
		})
		return true
	})
	return total, symbols, nil
}
