package marketdata

import (
	"context"
	"time"

	"github.com/tidwall/gjson"

	"github.com/youngcan/wyckoff-funnel/internal/contracts"
	"github.com/youngcan/wyckoff-funnel/pkg/httputil"
	"github.com/youngcan/wyckoff-funnel/pkg/logger"
)

// Tushare is the quaternary history provider (pro HTTP API, token gated).
// It also serves benchmark index history, which the free JSON endpoints
// are unreliable for.
type Tushare struct {
	client  *httputil.Client
	baseURL string
	token   string
	logger  *logger.Logger
}

// NewTushare creates the tushare provider. An empty token yields a provider
// that fails fast, letting the chain account for it without a request.
func NewTushare(client *httputil.Client, baseURL, token string, log *logger.Logger) *Tushare {
	return &Tushare{
		client:  client,
		baseURL: baseURL,
		token:   token,
		logger:  log.WithField("provider", string(ProviderTushare)),
	}
}

// Name implements HistoryProvider.
func (p *Tushare) Name() ProviderName { return ProviderTushare }

type tushareRequest struct {
	APIName string            `json:"api_name"`
	Token   string            `json:"token"`
	Params  map[string]string `json:"params"`
	Fields  string            `json:"fields"`
}

// FetchHistory fetches daily bars for a stock. The daily endpoint serves
// unadjusted prices; adjusted series come from the providers ahead of it
// in the chain.
func (p *Tushare) FetchHistory(ctx context.Context, symbol string, start, end time.Time, adjust AdjustMode) ([]contracts.OHLCVBar, error) {
	return p.query(ctx, "daily", tsCode(symbol), start, end)
}

// FetchIndexHistory fetches daily bars for a benchmark index.
func (p *Tushare) FetchIndexHistory(ctx context.Context, indexCode string, start, end time.Time) ([]contracts.OHLCVBar, error) {
	return p.query(ctx, "index_daily", indexTsCode(indexCode), start, end)
}

func (p *Tushare) query(ctx context.Context, apiName, code string, start, end time.Time) ([]contracts.OHLCVBar, error) {
	if p.token == "" {
		return nil, &MalformedError{Provider: ProviderTushare, Msg: "no token configured"}
	}

	body, err := p.client.PostJSON(ctx, p.baseURL, tushareRequest{
		APIName: apiName,
		Token:   p.token,
		Params: map[string]string{
			"ts_code":    code,
			"start_date": compactDate(start),
			"end_date":   compactDate(end),
		},
		Fields: "trade_date,open,high,low,close,vol,amount,pct_chg",
	})
	if err != nil {
		return nil, err
	}
	return parseTushareDaily(body)
}

// parseTushareDaily parses {"code":0,"data":{"fields":[...],"items":[[...]]}}.
// Rows come newest first; CleanSeries re-sorts downstream.
func parseTushareDaily(body []byte) ([]contracts.OHLCVBar, error) {
	if code := gjson.GetBytes(body, "code"); code.Int() != 0 {
		return nil, &MalformedError{
			Provider: ProviderTushare,
			Msg:      gjson.GetBytes(body, "msg").String(),
		}
	}

	fields := gjson.GetBytes(body, "data.fields").Array()
	items := gjson.GetBytes(body, "data.items").Array()
	if len(fields) == 0 || len(items) == 0 {
		return nil, &MalformedError{Provider: ProviderTushare, Msg: "empty data"}
	}

	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		idx[f.String()] = i
	}
	col := func(row []gjson.Result, name string) gjson.Result {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return gjson.Result{}
		}
		return row[i]
	}

	bars := make([]contracts.OHLCVBar, 0, len(items))
	for _, item := range items {
		row := item.Array()
		date, err := time.Parse("20060102", col(row, "trade_date").String())
		if err != nil {
			continue
		}
		bars = append(bars, contracts.OHLCVBar{
			Date:      date,
			Open:      col(row, "open").Float(),
			High:      col(row, "high").Float(),
			Low:       col(row, "low").Float(),
			Close:     col(row, "close").Float(),
			Volume:    col(row, "vol").Float() * 100,     // lots -> shares
			Amount:    col(row, "amount").Float() * 1000, // thousand CNY -> CNY
			PctChange: col(row, "pct_chg").Float(),
		})
	}
	if len(bars) == 0 {
		return nil, &MalformedError{Provider: ProviderTushare, Msg: "no parseable rows"}
	}
	return bars, nil
}

// indexTsCode maps an index code to tushare format: 000001 -> 000001.SH,
// 399001 -> 399001.SZ.
func indexTsCode(code string) string {
	if len(code) > 0 && code[0] == '3' {
		return code + ".SZ"
	}
	return code + ".SH"
}
