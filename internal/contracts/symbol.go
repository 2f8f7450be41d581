package contracts

import "time"

// Board classifies the listing board of an A-share symbol.
type Board string

const (
	BoardMain    Board = "main"    // 主板 (SH 60x, SZ 000/001/002/003)
	BoardGrowth  Board = "growth"  // 创业板 (300/301)
	BoardSTAR    Board = "star"    // 科创板 (688)
	BoardBeijing Board = "beijing" // 北交所 (8xx/4xx)
	BoardUnknown Board = "unknown"
)

// BoardFromCode derives the board from a 6-digit symbol code.
func BoardFromCode(code string) Board {
	switch {
	case len(code) != 6:
		return BoardUnknown
	case hasPrefix(code, "600", "601", "603", "605", "000", "001", "002", "003"):
		return BoardMain
	case hasPrefix(code, "300", "301"):
		return BoardGrowth
	case hasPrefix(code, "688", "689"):
		return BoardSTAR
	case hasPrefix(code, "430", "830", "831", "832", "833", "834", "835", "836", "837", "838", "839", "870", "871", "872", "873", "920"):
		return BoardBeijing
	default:
		return BoardUnknown
	}
}

func hasPrefix(code string, prefixes ...string) bool {
	for _, p := range prefixes {
		if len(code) >= len(p) && code[:len(p)] == p {
			return true
		}
	}
	return false
}

// Symbol is one listed equity in the screening universe.
// Identity is Code; a Symbol is immutable once the universe is built.
type Symbol struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Exchange    string  `json:"exchange"` // "SH" / "SZ" / "BJ"
	Board       Board   `json:"board"`
	Sector      string  `json:"sector"`
	SpecialRisk bool    `json:"special_risk"` // ST / *ST flagged
	Suspended   bool    `json:"suspended"`
	MarketCap   float64 `json:"market_cap"` // CNY
}

// ExchangeFromCode derives the exchange from a 6-digit symbol code.
func ExchangeFromCode(code string) string {
	switch BoardFromCode(code) {
	case BoardBeijing:
		return "BJ"
	}
	if hasPrefix(code, "6", "9", "5") {
		return "SH"
	}
	return "SZ"
}

// SymbolUniverse is the full candidate pool for one screening run,
// including a market-cap/sector snapshot taken at build time.
// Immutable for the duration of a run.
type SymbolUniverse struct {
	BuiltAt  time.Time         `json:"built_at"`
	Symbols  []Symbol          `json:"symbols"`
	Excluded map[string]Reason `json:"excluded"` // code -> exclusion reason
}

// Count returns the number of symbols in the universe.
func (u *SymbolUniverse) Count() int {
	return len(u.Symbols)
}

// Contains reports whether code is part of the universe.
func (u *SymbolUniverse) Contains(code string) bool {
	for _, s := range u.Symbols {
		if s.Code == code {
			return true
		}
	}
	return false
}
