package universe

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youngcan/wyckoff-funnel/internal/contracts"
)

func TestParseSymbolPage(t *testing.T) {
	body := []byte(`{
		"data": {
			"total": 3,
			"diff": [
				{"f2": 11.52, "f12": "600000", "f14": "浦发银行", "f20": 338200000000, "f100": "银行"},
				{"f2": "-", "f12": "600002", "f14": "停牌股份", "f20": 5000000000, "f100": "综合"},
				{"f2": 3.21, "f12": "000004", "f14": "*ST国华", "f20": 2100000000, "f100": "软件开发"}
			]
		}
	}`)

	total, symbols, err := parseSymbolPage(body)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, symbols, 3)

	pufa := symbols[0]
	assert.Equal(t, "600000", pufa.Code)
	assert.Equal(t, "浦发银行", pufa.Name)
	assert.Equal(t, "SH", pufa.Exchange)
	assert.Equal(t, contracts.BoardMain, pufa.Board)
	assert.Equal(t, "银行", pufa.Sector)
	assert.Equal(t, 338200000000.0, pufa.MarketCap)
	assert.False(t, pufa.Suspended)
	assert.False(t, pufa.SpecialRisk)

	assert.True(t, symbols[1].Suspended, "dash price marks suspension")
	assert.True(t, symbols[2].SpecialRisk)
	assert.Equal(t, "SZ", symbols[2].Exchange)
}

func TestParseSymbolPage_NoData(t *testing.T) {
	_, _, err := parseSymbolPage([]byte(`{"rc": 0}`))
	require.Error(t, err)
}

func TestParseStockListDoc(t *testing.T) {
	html := `<html><body>
		<div id="quotesearch">
			<ul>
				<li><a href="/sh600000.html">浦发银行(600000)</a></li>
				<li><a href="/sz000001.html">平安银行(000001)</a></li>
				<li><a href="/sh600000.html">浦发银行(600000)</a></li>
				<li><a href="/about.html">关于我们</a></li>
				<li><a href="/sh900901.html">云赛B股(900901)</a></li>
			</ul>
		</div>
	</body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	symbols := parseStockListDoc(doc)
	require.Len(t, symbols, 2, "duplicates, non-stock anchors, and unknown boards are dropped")
	assert.Equal(t, "600000", symbols[0].Code)
	assert.Equal(t, "浦发银行", symbols[0].Name)
	assert.Equal(t, "000001", symbols[1].Code)
	assert.Zero(t, symbols[0].MarketCap, "degraded source carries no cap snapshot")
}
