package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEastmoneyKlines(t *testing.T) {
	body := []byte(`{
		"data": {
			"code": "600519",
			"klines": [
				"2026-03-02,1650.00,1666.80,1670.00,1645.10,28000,4650000000.00,1.51,1.02,16.80,0.22",
				"2026-03-03,1667.00,1660.00,1672.50,1655.00,21000,3490000000.00,1.05,-0.41,-6.80,0.17"
			]
		}
	}`)

	bars, err := parseEastmoneyKlines(body)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	first := bars[0]
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, 1650.00, first.Open)
	assert.Equal(t, 1666.80, first.Close)
	assert.Equal(t, 1670.00, first.High)
	assert.Equal(t, 1645.10, first.Low)
	assert.Equal(t, 2800000.0, first.Volume, "lots are converted to shares")
	assert.Equal(t, 4650000000.00, first.Amount)
	assert.Equal(t, 1.02, first.PctChange)
	assert.Equal(t, 0.22, first.TurnoverRate)
	assert.Equal(t, 1.51, first.Amplitude)
}

func TestParseEastmoneyKlines_Malformed(t *testing.T) {
	cases := map[string]string{
		"missing data":   `{"rc": 0}`,
		"empty klines":   `{"data": {"klines": []}}`,
		"truncated rows": `{"data": {"klines": ["2026-03-02,1650.00"]}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseEastmoneyKlines([]byte(body))
			var merr *MalformedError
			require.ErrorAs(t, err, &merr)
			assert.Equal(t, ProviderEastmoney, merr.Provider)
		})
	}
}

func TestParseTencentKlines(t *testing.T) {
	body := []byte(`{
		"data": {
			"sh600519": {
				"qfqday": [
					["2026-03-02", "1650.00", "1666.80", "1670.00", "1645.10", "28000"],
					["2026-03-03", "1667.00", "1660.00", "1672.50", "1655.00", "21000"]
				]
			}
		}
	}`)

	bars, err := parseTencentKlines(body, "sh600519", "qfq")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 1666.80, bars[0].Close)
	assert.Equal(t, 2800000.0, bars[0].Volume)
	assert.Equal(t, 1666.80*2800000, bars[0].Amount, "amount is estimated from close and volume")
}

func TestParseTencentKlines_UnadjustedFallbackKey(t *testing.T) {
	body := []byte(`{
		"data": {
			"sh600519": {
				"day": [["2026-03-02", "1650.00", "1666.80", "1670.00", "1645.10", "28000"]]
			}
		}
	}`)

	bars, err := parseTencentKlines(body, "sh600519", "qfq")
	require.NoError(t, err)
	assert.Len(t, bars, 1)
}

func TestParseSinaKlines(t *testing.T) {
	body := []byte(`[
		{"day": "2026-03-02", "open": "12.50", "high": "12.80", "low": "12.40", "close": "12.75", "volume": "15600000"},
		{"day": "2026-03-03", "open": "12.76", "high": "12.90", "low": "12.60", "close": "12.68", "volume": "11200000"}
	]`)

	bars, err := parseSinaKlines(body)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 12.75, bars[0].Close)
	assert.Equal(t, 15600000.0, bars[0].Volume, "sina serves shares, not lots")
}

func TestParseSinaKlines_NotArray(t *testing.T) {
	_, err := parseSinaKlines([]byte(`null`))
	var merr *MalformedError
	require.ErrorAs(t, err, &merr)
}

func TestTrimRange(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }
	bars, err := parseSinaKlines([]byte(`[
		{"day": "2026-03-01", "open": "1", "high": "1", "low": "1", "close": "1", "volume": "100"},
		{"day": "2026-03-02", "open": "1", "high": "1", "low": "1", "close": "1", "volume": "100"},
		{"day": "2026-03-05", "open": "1", "high": "1", "low": "1", "close": "1", "volume": "100"}
	]`))
	require.NoError(t, err)

	trimmed := trimRange(bars, day(2), day(4))
	require.Len(t, trimmed, 1)
	assert.Equal(t, day(2), trimmed[0].Date)
}

func TestParseTushareDaily(t *testing.T) {
	body := []byte(`{
		"code": 0,
		"data": {
			"fields": ["ts_code", "trade_date", "open", "high", "low", "close", "pct_chg", "vol", "amount"],
			"items": [
				["600519.SH", "20260303", 1667.0, 1672.5, 1655.0, 1660.0, -0.41, 21000, 3490000.0],
				["600519.SH", "20260302", 1650.0, 1670.0, 1645.1, 1666.8, 1.02, 28000, 4650000.0]
			]
		}
	}`)

	bars, err := parseTushareDaily(body)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	// Rows arrive newest first; the parser preserves input order.
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), bars[0].Date)
	assert.Equal(t, 2100000.0, bars[0].Volume, "lots are converted to shares")
	assert.Equal(t, 3490000000.0, bars[0].Amount, "thousand CNY converted to CNY")
	assert.Equal(t, -0.41, bars[0].PctChange)
}

func TestParseTushareDaily_APIError(t *testing.T) {
	_, err := parseTushareDaily([]byte(`{"code": 2002, "msg": "token invalid"}`))
	var merr *MalformedError
	require.ErrorAs(t, err, &merr)
	assert.Contains(t, merr.Msg, "token invalid")
}

func TestSymbolCodeFormats(t *testing.T) {
	assert.Equal(t, "1.600519", secID("600519"))
	assert.Equal(t, "0.000001", secID("000001"))
	assert.Equal(t, "sh600519", prefixedCode("600519"))
	assert.Equal(t, "sz300750", prefixedCode("300750"))
	assert.Equal(t, "600519.SH", tsCode("600519"))
	assert.Equal(t, "000001.SZ", tsCode("000001"))
	assert.Equal(t, "1.000300", indexSecID("000300"))
	assert.Equal(t, "0.399006", indexSecID("399006"))
	assert.Equal(t, "000300.SH", indexTsCode("000300"))
	assert.Equal(t, "399006.SZ", indexTsCode("399006"))
}

func TestAdjustModeMappings(t *testing.T) {
	assert.Equal(t, 1, fqt(AdjustForward))
	assert.Equal(t, 2, fqt(AdjustBackward))
	assert.Equal(t, 0, fqt(AdjustNone))
	assert.Equal(t, "qfq", tencentKlineKind(AdjustForward))
	assert.Equal(t, "hfq", tencentKlineKind(AdjustBackward))
	assert.Equal(t, "", tencentKlineKind(AdjustNone))

	assert.True(t, AdjustForward.Valid())
	assert.False(t, AdjustMode("split").Valid())
}
