// Package dialogue drives the guided alert-creation flow: pick an
// instrument, send a target price, done. It also covers the one-shot
// "/alerta <activo> <precio>" path; both end in the same insert.
package dialogue

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"vigia-telegram-bot/internal/catalog"
	"vigia-telegram-bot/internal/database"
	"vigia-telegram-bot/internal/price"
	"vigia-telegram-bot/lib/helpers"
	"vigia-telegram-bot/lib/translation"
)

// PriceSource is the market-data lookup the flow uses to capture the alert
// currency at creation time, best-effort.
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) (price.Quote, error)
}

// Option is one selectable instrument, rendered as a button by the
// transport layer. Ref round-trips through callback data.
type Option struct {
	Label string
	Ref   string
}

// Result is what the transport layer renders back to the user. Text is
// ready-to-send MarkdownV2.
type Result struct {
	Text    string
	Options []Option
}

type Flow struct {
	sessions *Sessions
	store    *database.Store
	catalog  *catalog.Catalog
	prices   PriceSource
	timeout  time.Duration
}

func NewFlow(store *database.Store, cat *catalog.Catalog, prices PriceSource, sessionTTL, priceTimeout time.Duration) *Flow {
	return &Flow{
		sessions: NewSessions(sessionTTL),
		store:    store,
		catalog:  cat,
		prices:   prices,
		timeout:  priceTimeout,
	}
}

func (f *Flow) Sessions() *Sessions {
	return f.sessions
}

// StartCreation opens the guided flow when called without arguments, or
// creates the alert directly from "<activo> <precio>". Malformed one-shot
// arguments end with a usage error and no session.
func (f *Flow) StartCreation(ctx context.Context, chatID int64, args []string) Result {
	switch len(args) {
	case 0:
		f.sessions.put(chatID, &Session{State: StateAwaitingInstrument})
		return Result{
			Text:    helpers.EscapeMarkdownV2(translation.Translate("¿Sobre qué activo quieres la alerta? Elige uno:")),
			Options: f.instrumentOptions(),
		}
	case 2:
		entry, _, ok := f.catalog.ByAlias(args[0])
		if !ok {
			return Result{Text: helpers.EscapeMarkdownV2(
				translation.Translate("No conozco el activo «%s». Escribe /tickers para ver la lista.", args[0]))}
		}
		return f.create(ctx, chatID, entry, args[1])
	default:
		return Result{Text: helpers.EscapeMarkdownV2(
			translation.Translate("Uso: /alerta <activo> <precio>\nEjemplo: /alerta sp500 650\nO simplemente /alerta para ir paso a paso."))}
	}
}

// SelectInstrument moves the session to the price step. Anything that is not
// a valid catalog selection leaves the state untouched.
func (f *Flow) SelectInstrument(chatID int64, ref string) Result {
	session := f.sessions.get(chatID)
	if session == nil || session.State != StateAwaitingInstrument {
		return Result{Text: helpers.EscapeMarkdownV2(
			translation.Translate("La sesión ha caducado. Empieza de nuevo con /alerta."))}
	}

	index, err := strconv.Atoi(ref)
	if err != nil {
		return Result{
			Text:    helpers.EscapeMarkdownV2(translation.Translate("No he reconocido esa opción. Elige un activo de la lista o /cancelar.")),
			Options: f.instrumentOptions(),
		}
	}
	entry, ok := f.catalog.At(index)
	if !ok {
		return Result{
			Text:    helpers.EscapeMarkdownV2(translation.Translate("No he reconocido esa opción. Elige un activo de la lista o /cancelar.")),
			Options: f.instrumentOptions(),
		}
	}

	session.State = StateAwaitingPrice
	session.Instrument = entry
	f.sessions.put(chatID, session)

	return Result{Text: helpers.EscapeMarkdownV2(
		translation.Translate("Vale, %s. ¿A qué precio te aviso? Envíame solo el número.", entry.Alias))}
}

// HandlePriceInput finishes the flow. An unparsable value keeps the session
// at the price step and prompts again; a missing session means the process
// restarted or the session expired.
func (f *Flow) HandlePriceInput(ctx context.Context, chatID int64, text string) Result {
	session := f.sessions.get(chatID)
	if session == nil || session.State != StateAwaitingPrice || session.Instrument == nil {
		return Result{Text: helpers.EscapeMarkdownV2(
			translation.Translate("La sesión ha caducado. Empieza de nuevo con /alerta."))}
	}

	if _, err := parseTarget(text); err != nil {
		f.sessions.put(chatID, session)
		return Result{Text: helpers.EscapeMarkdownV2(
			translation.Translate("Ese precio no me vale. Envíame un número positivo, por ejemplo 650.50"))}
	}

	result := f.create(ctx, chatID, session.Instrument, text)
	f.sessions.remove(chatID)
	return result
}

// CancelCreation always succeeds, whatever the current state.
func (f *Flow) CancelCreation(chatID int64) Result {
	f.sessions.remove(chatID)
	return Result{Text: helpers.EscapeMarkdownV2(
		translation.Translate("Cancelado. Aquí estaré si me necesitas."))}
}

// AwaitingPrice tells the text router whether a plain message belongs to
// this chat's dialogue.
func (f *Flow) AwaitingPrice(chatID int64) bool {
	session := f.sessions.get(chatID)
	return session != nil && session.State == StateAwaitingPrice
}

// AwaitingInstrument reports a session stuck on the selection step, so the
// router can re-prompt instead of classifying the text as an intent.
func (f *Flow) AwaitingInstrument(chatID int64) bool {
	session := f.sessions.get(chatID)
	return session != nil && session.State == StateAwaitingInstrument
}

// create is the single write path shared by the one-shot command and the
// guided flow.
func (f *Flow) create(ctx context.Context, chatID int64, entry *catalog.Entry, rawTarget string) Result {
	target, err := parseTarget(rawTarget)
	if err != nil {
		return Result{Text: helpers.EscapeMarkdownV2(
			translation.Translate("Ese precio no me vale. Envíame un número positivo, por ejemplo 650.50"))}
	}

	// Currency is cosmetic; a failed lookup just leaves it empty.
	currency := ""
	lookupCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	if quote, err := f.prices.GetPrice(lookupCtx, entry.Symbol()); err == nil {
		currency = quote.Currency
	} else {
		log.Debugf("currency lookup failed for %s: %v", entry.Symbol(), err)
	}

	value := strconv.FormatFloat(target, 'f', -1, 64)
	if _, err := f.store.InsertAlert(chatID, entry.Symbol(), entry.Alias, value, currency); err != nil {
		log.Errorf("failed to save alert for chat %d: %v", chatID, err)
		return Result{Text: helpers.EscapeMarkdownV2(
			translation.Translate("No he podido guardar la alerta, inténtalo de nuevo en un rato."))}
	}

	confirm := translation.Translate("✅ Alerta creada para *%s* en *%s %s*\\.\nTe aviso cuando el precio cruce ese umbral\\.",
		helpers.EscapeMarkdownV2(entry.Alias),
		helpers.FormatPriceUS(target, true),
		helpers.EscapeMarkdownV2(currency),
	)
	return Result{Text: confirm}
}

func (f *Flow) instrumentOptions() []Option {
	var options []Option
	for i, entry := range f.catalog.Entries() {
		options = append(options, Option{
			Label: entry.Alias,
			Ref:   strconv.Itoa(i),
		})
	}
	return options
}

// parseTarget accepts a positive finite decimal, with comma or dot as the
// decimal separator. ParseFloat also accepts "nan" and "inf", which would
// otherwise slip past the positivity check.
func parseTarget(text string) (float64, error) {
	text = strings.TrimSpace(strings.ReplaceAll(text, ",", "."))
	target, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(target) || math.IsInf(target, 0) || target <= 0 {
		return 0, errors.Errorf("target must be a positive number, got %v", target)
	}
	return target, nil
}
