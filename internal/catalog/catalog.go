package catalog

import (
	"regexp"
	"strings"
)

// Ticker is one tradable line under an instrument alias.
type Ticker struct {
	Name   string
	Symbol string
}

// Entry groups the tickers sold under one human alias, plus the free-text
// pattern that resolves to it.
type Entry struct {
	Alias   string
	Pattern *regexp.Regexp
	Tickers []Ticker
}

// Symbol returns the tradable identifier alerts bind to. Entries with more
// than one ticker bind to the first.
func (e *Entry) Symbol() string {
	return e.Tickers[0].Symbol
}

type Catalog struct {
	entries []Entry
}

var defaultCatalog = &Catalog{entries: []Entry{
	{
		Alias:   "SP500",
		Pattern: regexp.MustCompile(`\b(sp|sp500|500|s&p)\b`),
		Tickers: []Ticker{{Name: "ETF", Symbol: "SXR8.DE"}},
	},
	{
		Alias:   "Nasdaq100",
		Pattern: regexp.MustCompile(`\b(ndq|ndq100|nasdaq|nasdaq100|nq|nq100|100)\b`),
		Tickers: []Ticker{{Name: "ETF", Symbol: "SXRV.DE"}},
	},
	{
		Alias:   "Oro",
		Pattern: regexp.MustCompile(`\b(oro|gold|au)\b`),
		Tickers: []Ticker{{Name: "ETC", Symbol: "XGDU.MI"}},
	},
	{
		Alias:   "Bitcoin",
		Pattern: regexp.MustCompile(`\b(btc|bitcoin)\b`),
		Tickers: []Ticker{
			{Name: "ETF", Symbol: "VBTC.DE"},
			{Name: "COIN", Symbol: "BTC-USD"},
		},
	},
	{
		Alias:   "Uranio",
		Pattern: regexp.MustCompile(`\b(uranio|ur|uranium|ura)\b`),
		Tickers: []Ticker{{Name: "ETF", Symbol: "NUKL.DE"}},
	},
	{
		Alias:   "Mercados Emergentes",
		Pattern: regexp.MustCompile(`\b(emergentes|emerging|markets|mercados|em)\b`),
		Tickers: []Ticker{{Name: "ETF", Symbol: "XMME.DE"}},
	},
	{
		Alias:   "MSCI Pacific ex-Japan",
		Pattern: regexp.MustCompile(`\b(pacific|mscip)\b`),
		Tickers: []Ticker{{Name: "ETF", Symbol: "SXR1.DE"}},
	},
}}

// Default returns the built-in instrument catalog. Read-only at runtime.
func Default() *Catalog {
	return defaultCatalog
}

func (c *Catalog) Entries() []Entry {
	return c.entries
}

// At resolves a selection index, as carried in callback data.
func (c *Catalog) At(i int) (*Entry, bool) {
	if i < 0 || i >= len(c.entries) {
		return nil, false
	}
	return &c.entries[i], true
}

// ByAlias resolves an exact alias match, case-insensitive. Falls back to the
// match patterns so "sp500", "nasdaq" etc. work as one-shot arguments too.
func (c *Catalog) ByAlias(alias string) (*Entry, int, bool) {
	needle := strings.ToLower(strings.TrimSpace(alias))
	for i := range c.entries {
		if strings.ToLower(c.entries[i].Alias) == needle {
			return &c.entries[i], i, true
		}
	}
	return c.Match(needle)
}

// Match resolves lowercased free text against the entry patterns, first
// match wins.
func (c *Catalog) Match(text string) (*Entry, int, bool) {
	for i := range c.entries {
		if c.entries[i].Pattern.MatchString(text) {
			return &c.entries[i], i, true
		}
	}
	return nil, -1, false
}
