package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/youngcan/wyckoff-funnel/internal/contracts"
	"github.com/youngcan/wyckoff-funnel/pkg/httputil"
	"github.com/youngcan/wyckoff-funnel/pkg/logger"
)

// Eastmoney is the primary history provider (push2his kline API).
type Eastmoney struct {
	client  *httputil.Client
	baseURL string
	logger  *logger.Logger
}

const (
	eastmoneyKlineURL = "https://push2his.eastmoney.com/api/qt/stock/kline/get"

	// fields2: f51 date, f52 open, f53 close, f54 high, f55 low,
	// f56 volume(lots), f57 amount, f58 amplitude, f59 pct_chg,
	// f60 chg, f61 turnover_rate
	eastmoneyKlineFields = "f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61"
)

// NewEastmoney creates the eastmoney provider.
func NewEastmoney(client *httputil.Client, log *logger.Logger) *Eastmoney {
	return &Eastmoney{
		client:  client,
		baseURL: eastmoneyKlineURL,
		logger:  log.WithField("provider", string(ProviderEastmoney)),
	}
}

// Name implements HistoryProvider.
func (p *Eastmoney) Name() ProviderName { return ProviderEastmoney }

// FetchHistory fetches daily bars for a stock.
func (p *Eastmoney) FetchHistory(ctx context.Context, symbol string, start, end time.Time, adjust AdjustMode) ([]contracts.OHLCVBar, error) {
	return p.fetchKlines(ctx, secID(symbol), start, end, adjust)
}

// FetchIndexHistory fetches daily bars for a benchmark index.
// Index secids differ from stocks: SH composite is 1.000001.
func (p *Eastmoney) FetchIndexHistory(ctx context.Context, indexCode string, start, end time.Time) ([]contracts.OHLCVBar, error) {
	return p.fetchKlines(ctx, indexSecID(indexCode), start, end, AdjustNone)
}

func (p *Eastmoney) fetchKlines(ctx context.Context, secid string, start, end time.Time, adjust AdjustMode) ([]contracts.OHLCVBar, error) {
	url := fmt.Sprintf("%s?secid=%s&fields1=f1,f2,f3,f4,f5,f6&fields2=%s&klt=101&fqt=%d&beg=%s&end=%s",
		p.baseURL, secid, eastmoneyKlineFields, fqt(adjust), compactDate(start), compactDate(end))

	body, err := p.client.GetBody(ctx, url)
	if err != nil {
		return nil, err
	}
	return parseEastmoneyKlines(body)
}

// parseEastmoneyKlines parses data.klines: one comma-joined string per bar.
func parseEastmoneyKlines(body []byte) ([]contracts.OHLCVBar, error) {
	klines := gjson.GetBytes(body, "data.klines")
	if !klines.Exists() || !klines.IsArray() {
		return nil, &MalformedError{Provider: ProviderEastmoney, Msg: "no data.klines"}
	}
	arr := klines.Array()
	if len(arr) == 0 {
		return nil, &MalformedError{Provider: ProviderEastmoney, Msg: "empty klines"}
	}

	bars := make([]contracts.OHLCVBar, 0, len(arr))
	for _, v := range arr {
		parts := strings.Split(strings.TrimSpace(v.String()), ",")
		if len(parts) < 11 {
			continue
		}
		date, err := time.Parse(dateLayout, parts[0])
		if err != nil {
			continue
		}
		open, _ := strconv.ParseFloat(parts[1], 64)
		cls, _ := strconv.ParseFloat(parts[2], 64)
		high, _ := strconv.ParseFloat(parts[3], 64)
		low, _ := strconv.ParseFloat(parts[4], 64)
		volLots, _ := strconv.ParseFloat(parts[5], 64)
		amount, _ := strconv.ParseFloat(parts[6], 64)
		amplitude, _ := strconv.ParseFloat(parts[7], 64)
		pctChg, _ := strconv.ParseFloat(parts[8], 64)
		turnover, _ := strconv.ParseFloat(parts[10], 64)

		bars = append(bars, contracts.OHLCVBar{
			Date:         date,
			Open:         open,
			High:         high,
			Low:          low,
			Close:        cls,
			Volume:       volLots * 100, // lots -> shares
			Amount:       amount,
			Amplitude:    amplitude,
			PctChange:    pctChg,
			TurnoverRate: turnover,
		})
	}
	if len(bars) == 0 {
		return nil, &MalformedError{Provider: ProviderEastmoney, Msg: "no parseable klines"}
	}
	return bars, nil
}

// fqt maps AdjustMode to the eastmoney fqt parameter.
func fqt(adjust AdjustMode) int {
	switch adjust {
	case AdjustForward:
		return 1
	case AdjustBackward:
		return 2
	default:
		return 0
	}
}

// indexSecID maps an index code to its eastmoney secid. Shenzhen indices
// (399xxx) live on market 0, everything else on market 1.
func indexSecID(code string) string {
	if strings.HasPrefix(code, "399") {
		return "0." + code
	}
	return "1." + code
}
