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

// Tencent is the secondary history provider (ifzq gtimg fqkline API).
// It serves no amount or turnover columns; amount is estimated from
// close * volume.
type Tencent struct {
	client  *httputil.Client
	baseURL string
	logger  *logger.Logger
}

const tencentKlineURL = "https://web.ifzq.gtimg.cn/appstock/app/fqkline/get"

// NewTencent creates the tencent provider.
func NewTencent(client *httputil.Client, log *logger.Logger) *Tencent {
	return &Tencent{
		client:  client,
		baseURL: tencentKlineURL,
		logger:  log.WithField("provider", string(ProviderTencent)),
	}
}

// Name implements HistoryProvider.
func (p *Tencent) Name() ProviderName { return ProviderTencent }

// FetchHistory fetches daily bars for a stock.
func (p *Tencent) FetchHistory(ctx context.Context, symbol string, start, end time.Time, adjust AdjustMode) ([]contracts.OHLCVBar, error) {
	code := prefixedCode(symbol)
	kind := tencentKlineKind(adjust)
	url := fmt.Sprintf("%s?param=%s,day,%s,%s,640,%s",
		p.baseURL, code, start.Format(dateLayout), end.Format(dateLayout), kind)

	body, err := p.client.GetBody(ctx, url)
	if err != nil {
		return nil, err
	}
	return parseTencentKlines(body, code, kind)
}

// parseTencentKlines parses data.<code>.<kind>day rows:
// ["2024-01-02","open","close","high","low","volume", ...].
func parseTencentKlines(body []byte, code, kind string) ([]contracts.OHLCVBar, error) {
	series := gjson.GetBytes(body, fmt.Sprintf("data.%s.%sday", code, kind))
	if !series.Exists() {
		// Unadjusted responses come back under plain "day".
		series = gjson.GetBytes(body, fmt.Sprintf("data.%s.day", code))
	}
	if !series.Exists() || !series.IsArray() {
		return nil, &MalformedError{Provider: ProviderTencent, Msg: "no kline rows for " + code}
	}
	rows := series.Array()
	if len(rows) == 0 {
		return nil, &MalformedError{Provider: ProviderTencent, Msg: "empty kline rows"}
	}

	bars := make([]contracts.OHLCVBar, 0, len(rows))
	for _, row := range rows {
		cols := row.Array()
		if len(cols) < 6 {
			continue
		}
		date, err := time.Parse(dateLayout, cols[0].String())
		if err != nil {
			continue
		}
		open := cols[1].Float()
		cls := cols[2].Float()
		high := cols[3].Float()
		low := cols[4].Float()
		volLots := cols[5].Float()

		volume := volLots * 100
		bars = append(bars, contracts.OHLCVBar{
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  cls,
			Volume: volume,
			Amount: cls * volume, // not served; estimated
		})
	}
	if len(bars) == 0 {
		return nil, &MalformedError{Provider: ProviderTencent, Msg: "no parseable kline rows"}
	}
	return bars, nil
}

// tencentKlineKind maps AdjustMode to the tencent kline kind prefix.
func tencentKlineKind(adjust AdjustMode) string {
	switch adjust {
	case AdjustForward:
		return "qfq"
	case AdjustBackward:
		return "hfq"
	default:
		return ""
	}
}
