package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/youngcan/wyckoff-funnel/internal/contracts"
	"github.com/youngcan/wyckoff-funnel/pkg/httputil"
	"github.com/youngcan/wyckoff-funnel/pkg/logger"
)

// Sina is the tertiary history provider (CN_MarketDataService kline API).
// It serves unadjusted prices only and no date-range parameter, so the
// response is fetched at maximum depth and trimmed client-side.
type Sina struct {
	client  *httputil.Client
	baseURL string
	logger  *logger.Logger
}

const (
	sinaKlineURL = "https://money.finance.sina.com.cn/quotes_service/api/json_v2.php/CN_MarketDataService.getKLineData"

	// Maximum rows the endpoint serves per request.
	sinaMaxRows = 1023
)

// NewSina creates the sina provider.
func NewSina(client *httputil.Client, log *logger.Logger) *Sina {
	return &Sina{
		client:  client,
		baseURL: sinaKlineURL,
		logger:  log.WithField("provider", string(ProviderSina)),
	}
}

// Name implements HistoryProvider.
func (p *Sina) Name() ProviderName { return ProviderSina }

// FetchHistory fetches daily bars for a stock. The adjust mode is ignored:
// sina serves raw prices only, same as the original fallback sources that
// served a single adjustment.
func (p *Sina) FetchHistory(ctx context.Context, symbol string, start, end time.Time, adjust AdjustMode) ([]contracts.OHLCVBar, error) {
	url := fmt.Sprintf("%s?symbol=%s&scale=240&ma=no&datalen=%d",
		p.baseURL, prefixedCode(symbol), sinaMaxRows)

	body, err := p.client.GetBody(ctx, url)
	if err != nil {
		return nil, err
	}
	bars, err := parseSinaKlines(body)
	if err != nil {
		return nil, err
	}
	return trimRange(bars, start, end), nil
}

// parseSinaKlines parses the JSON array of
// {"day":"2024-01-02","open":"...","high":"...","low":"...","close":"...","volume":"..."}.
func parseSinaKlines(body []byte) ([]contracts.OHLCVBar, error) {
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return nil, &MalformedError{Provider: ProviderSina, Msg: "response is not an array"}
	}
	rows := root.Array()
	if len(rows) == 0 {
		return nil, &MalformedError{Provider: ProviderSina, Msg: "empty response"}
	}

	bars := make([]contracts.OHLCVBar, 0, len(rows))
	for _, row := range rows {
		date, err := time.Parse(dateLayout, row.Get("day").String())
		if err != nil {
			continue
		}
		cls := row.Get("close").Float()
		volume := row.Get("volume").Float() // shares
		bars = append(bars, contracts.OHLCVBar{
			Date:   date,
			Open:   row.Get("open").Float(),
			High:   row.Get("high").Float(),
			Low:    row.Get("low").Float(),
			Close:  cls,
			Volume: volume,
			Amount: cls * volume, // not served; estimated
		})
	}
	if len(bars) == 0 {
		return nil, &MalformedError{Provider: ProviderSina, Msg: "no parseable rows"}
	}
	return bars, nil
}

// trimRange keeps bars with start <= date <= end.
func trimRange(bars []contracts.OHLCVBar, start, end time.Time) []contracts.OHLCVBar {
	out := make([]contracts.OHLCVBar, 0, len(bars))
	for _, b := range bars {
		if b.Date.Before(start) || b.Date.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}
