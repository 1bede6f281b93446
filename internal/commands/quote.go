// Package commands implements the read-only surfaces: instrument quotes,
// the market summary and the price chart.
package commands

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"vigia-telegram-bot/internal/catalog"
	"vigia-telegram-bot/internal/price"
	"vigia-telegram-bot/lib/helpers"
	"vigia-telegram-bot/lib/translation"
)

// Quoter is the slice of the price client these commands need.
type Quoter interface {
	GetPrice(ctx context.Context, symbol string) (price.Quote, error)
	History(ctx context.Context, symbol, rng, interval string) ([]price.Point, string, error)
}

// InstrumentQuote renders one line per ticker under the instrument, errors
// inlined per ticker so a single bad symbol never eats the reply.
func InstrumentQuote(ctx context.Context, quoter Quoter, entry *catalog.Entry) string {
	var b strings.Builder
	for _, ticker := range entry.Tickers {
		quote, err := quoter.GetPrice(ctx, ticker.Symbol)
		if err != nil {
			log.Warnf("quote failed for %s: %v", ticker.Symbol, err)
			b.WriteString(helpers.EscapeMarkdownV2(
				translation.Translate("  -> %s [%s]: error al obtener.\n", ticker.Name, ticker.Symbol)))
			continue
		}
		b.WriteString(translation.Translate("  \\-\\> Precio de *%s* \\(%s\\): *%s %s*\n",
			helpers.EscapeMarkdownV2(entry.Alias),
			helpers.EscapeMarkdownV2(ticker.Name),
			helpers.FormatPriceUS(quote.Price, true),
			helpers.EscapeMarkdownV2(quote.Currency),
		))
	}
	return b.String()
}

// MarketSummary walks the whole catalog, one section per instrument.
func MarketSummary(ctx context.Context, quoter Quoter, cat *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString(translation.Translate("*Resumen de Mercado*\n"))

	for i := range cat.Entries() {
		entry := &cat.Entries()[i]
		b.WriteString(fmt.Sprintf("\n*%s*:\n", helpers.EscapeMarkdownV2(entry.Alias)))
		for _, ticker := range entry.Tickers {
			quote, err := quoter.GetPrice(ctx, ticker.Symbol)
			if err != nil {
				log.Warnf("summary quote failed for %s: %v", ticker.Symbol, err)
				b.WriteString(helpers.EscapeMarkdownV2(
					translation.Translate("  -> %s [%s]: error.\n", ticker.Name, ticker.Symbol)))
				continue
			}
			b.WriteString(fmt.Sprintf(
				"  \\-\\> %s: *%s %s*\n",
				helpers.EscapeMarkdownV2(ticker.Name),
				helpers.FormatPriceUS(quote.Price, true),
				helpers.EscapeMarkdownV2(quote.Currency),
			))
		}
	}
	return b.String()
}
