package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/youngcan/wyckoff-funnel/internal/contracts"
)

// ProviderName identifies a history data source.
type ProviderName string

const (
	ProviderEastmoney ProviderName = "eastmoney"
	ProviderTencent   ProviderName = "tencent"
	ProviderSina      ProviderName = "sina"
	ProviderTushare   ProviderName = "tushare"
)

// AdjustMode selects price adjustment for corporate actions.
type AdjustMode string

const (
	AdjustNone     AdjustMode = "none"
	AdjustForward  AdjustMode = "forward"  // 前复权
	AdjustBackward AdjustMode = "backward" // 后复权
)

// Valid reports whether m is a known adjust mode.
func (m AdjustMode) Valid() bool {
	switch m {
	case AdjustNone, AdjustForward, AdjustBackward:
		return true
	}
	return false
}

// HistoryProvider serves daily OHLCV history for one symbol. Implementations
// return raw parsed bars; cleaning and validation happen in the gateway.
type HistoryProvider interface {
	Name() ProviderName
	FetchHistory(ctx context.Context, symbol string, start, end time.Time, adjust AdjustMode) ([]contracts.OHLCVBar, error)
}

// IndexProvider serves daily history for a benchmark index.
type IndexProvider interface {
	FetchIndexHistory(ctx context.Context, indexCode string, start, end time.Time) ([]contracts.OHLCVBar, error)
}

// History is a fetched, cleaned series tagged with the provider that
// served it, for auditability.
type History struct {
	Symbol   string
	Provider ProviderName
	Bars     []contracts.OHLCVBar
}

// MalformedError marks a response that parsed but did not match the
// expected schema, or came back empty. It skips the remaining retry budget
// of the provider and moves straight to the next one in the chain.
type MalformedError struct {
	Provider ProviderName
	Msg      string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: malformed response: %s", e.Provider, e.Msg)
}

// secID converts a 6-digit code to the eastmoney secid format:
// SH 600519 -> "1.600519", SZ 000001 -> "0.000001".
func secID(code string) string {
	if contracts.ExchangeFromCode(code) == "SH" {
		return "1." + code
	}
	return "0." + code
}

// prefixedCode converts a 6-digit code to the tencent/sina format:
// 600519 -> "sh600519", 000001 -> "sz000001".
func prefixedCode(code string) string {
	switch contracts.ExchangeFromCode(code) {
	case "SH":
		return "sh" + code
	case "BJ":
		return "bj" + code
	}
	return "sz" + code
}

// tsCode converts a 6-digit code to the tushare format:
// 600519 -> "600519.SH", 000001 -> "000001.SZ".
func tsCode(code string) string {
	switch contracts.ExchangeFromCode(code) {
	case "SH":
		return code + ".SH"
	case "BJ":
		return code + ".BJ"
	}
	return code + ".SZ"
}

const dateLayout = "2006-01-02"

func compactDate(t time.Time) string {
	return t.Format("20060102")
}
