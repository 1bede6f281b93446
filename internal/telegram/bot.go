package telegram

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"vigia-telegram-bot/internal/catalog"
	"vigia-telegram-bot/internal/commands"
	"vigia-telegram-bot/internal/database"
	"vigia-telegram-bot/internal/dialogue"
	"vigia-telegram-bot/internal/intent"
	"vigia-telegram-bot/internal/price"
	"vigia-telegram-bot/lib/helpers"
	"vigia-telegram-bot/lib/translation"
)

// summaryBudget caps the multi-symbol commands (summary, chart) that issue
// one upstream request per ticker.
const summaryBudget = 2 * time.Minute

// bareNumber spots a price-step reply arriving without a session.
var bareNumber = regexp.MustCompile(`^\d+([.,]\d+)?$`)

// orphanPrice reports a bare numeric message that resolves to no catalog
// entry: a price reply whose dialogue is gone. Numbers like "100" are
// catalog aliases and belong to the intent chain instead.
func orphanPrice(cat *catalog.Catalog, text string) bool {
	text = strings.TrimSpace(text)
	if !bareNumber.MatchString(text) {
		return false
	}
	_, _, ok := cat.Match(strings.ToLower(text))
	return !ok
}

// NewBot creates new telegram bot
func NewBot(c BotConfig, store *database.Store, cat *catalog.Catalog, flow *dialogue.Flow, prices *price.Client) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(c.Token)
	if err != nil {
		return nil, errors.Wrap(err, "could not create telegram bot")
	}

	bot.Debug = c.Debug

	return &Bot{
		Bot:     bot,
		Config:  c,
		store:   store,
		catalog: cat,
		flow:    flow,
		prices:  prices,
	}, nil
}

// GetUpdatesChannel gets new updates
func (b *Bot) GetUpdatesChannel() (tgbotapi.UpdatesChannel, error) {
	updatesConfig := tgbotapi.NewUpdate(0)
	if b.Config.UpdatesTimeout > 0 {
		updatesConfig.Timeout = b.Config.UpdatesTimeout
	}
	return b.Bot.GetUpdatesChan(updatesConfig), nil
}

// SendMessage sends a telegram message
func (b *Bot) SendMessage(m Message) error {
	msg := tgbotapi.NewMessage(int64(m.ChatID), m.Text)
	msg.ReplyToMessageID = m.MessageID
	msg.DisableWebPagePreview = true
	msg.ParseMode = "MarkdownV2"
	_, err := b.Bot.Send(msg)
	return errors.Wrapf(err, "could not send message: %v", m)
}

// Notify delivers a message to an arbitrary chat, outside any
// request/response cycle. The alert checker sends through this.
func (b *Bot) Notify(chatID int64, text string) error {
	return b.SendMessage(Message{ChatID: int(chatID), Text: text})
}

// HandleUpdate processes one inbound message and returns the reply text, or
// "" when the handler already sent everything itself.
func (b *Bot) HandleUpdate(u tgbotapi.Update) string {
	if log.IsLevelEnabled(log.DebugLevel) {
		log.Debugf("update: %s", spew.Sdump(u.Message))
	}

	chatID := u.Message.Chat.ID

	if u.Message.IsCommand() {
		log.Debugf("received command: %s", u.Message.Command())
		switch u.Message.Command() {
		case "start":
			return welcomeText()
		case "opciones":
			return optionsText()
		case "tickers":
			b.sendTickerKeyboard(chatID)
			return ""
		case "alerta":
			args := strings.Fields(u.Message.CommandArguments())
			ctx, cancel := context.WithTimeout(context.Background(), summaryBudget)
			defer cancel()
			b.sendDialogueResult(chatID, b.flow.StartCreation(ctx, chatID, args))
			return ""
		case "misalertas":
			b.sendAlertList(chatID)
			return ""
		case "cancelar":
			return b.flow.CancelCreation(chatID).Text
		case "grafico":
			return b.handleChartCommand(chatID, u.Message.CommandArguments())
		}
		return optionsText()
	}

	return b.handleText(chatID, u.Message.Text)
}

// handleText routes free text: an open dialogue session wins, then the
// intent chain. Unclassified text stays unanswered on purpose.
func (b *Bot) handleText(chatID int64, text string) string {
	if b.flow.AwaitingPrice(chatID) {
		ctx, cancel := context.WithTimeout(context.Background(), summaryBudget)
		defer cancel()
		b.sendDialogueResult(chatID, b.flow.HandlePriceInput(ctx, chatID, text))
		return ""
	}
	if b.flow.AwaitingInstrument(chatID) {
		// Not a selection; the user must use the buttons or cancel.
		b.sendDialogueResult(chatID, b.flow.SelectInstrument(chatID, text))
		return ""
	}
	if orphanPrice(b.catalog, text) {
		// A lone number with no open session is a price reply that
		// outlived its dialogue, probably across a restart.
		ctx, cancel := context.WithTimeout(context.Background(), summaryBudget)
		defer cancel()
		b.sendDialogueResult(chatID, b.flow.HandlePriceInput(ctx, chatID, text))
		return ""
	}

	classified := intent.Classify(b.catalog, text)
	switch classified.Kind {
	case intent.Instrument:
		entry, ok := b.catalog.At(classified.InstrumentIndex)
		if !ok {
			return ""
		}
		return b.quoteInstrument(chatID, entry)
	case intent.Options:
		return optionsText()
	case intent.Tickers:
		b.sendTickerKeyboard(chatID)
		return ""
	case intent.MyAlerts:
		b.sendAlertList(chatID)
		return ""
	case intent.Greeting:
		return helpers.EscapeMarkdownV2(intent.RandomGreeting())
	case intent.Thanks:
		return helpers.EscapeMarkdownV2(intent.RandomAcknowledgement())
	case intent.Summary:
		return b.marketSummary(chatID)
	}
	return ""
}

func (b *Bot) quoteInstrument(chatID int64, entry *catalog.Entry) string {
	b.SendMessage(Message{ChatID: int(chatID), Text: helpers.EscapeMarkdownV2(
		translation.Translate("Buscando %s...", entry.Alias))})

	ctx, cancel := context.WithTimeout(context.Background(), summaryBudget)
	defer cancel()
	return commands.InstrumentQuote(ctx, b.prices, entry)
}

func (b *Bot) marketSummary(chatID int64) string {
	b.SendMessage(Message{ChatID: int(chatID), Text: helpers.EscapeMarkdownV2(
		translation.Translate("Buscando resumen de mercado... ⌛\n(Esto puede tardar unos segundos)"))})

	ctx, cancel := context.WithTimeout(context.Background(), summaryBudget)
	defer cancel()
	return commands.MarketSummary(ctx, b.prices, b.catalog)
}

func (b *Bot) handleChartCommand(chatID int64, args string) string {
	entry, _, ok := b.catalog.ByAlias(args)
	if !ok {
		return helpers.EscapeMarkdownV2(
			translation.Translate("Uso: /grafico <activo>\nEjemplo: /grafico sp500"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), summaryBudget)
	defer cancel()
	chartData, caption, err := commands.CommandChart(ctx, b.prices, entry)
	if err != nil {
		log.Errorf("chart failed for %s: %v", entry.Alias, err)
		return helpers.EscapeMarkdownV2(
			translation.Translate("No he podido generar el gráfico de %s.", entry.Alias))
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{
		Name:  "chart.png",
		Bytes: chartData,
	})
	photo.Caption = caption
	photo.ParseMode = "MarkdownV2"
	if _, err := b.Bot.Send(photo); err != nil {
		log.Error("error sending chart: ", err)
	}
	return ""
}

// HandleCallbackQuery dispatches button presses by callback-data prefix.
func (b *Bot) HandleCallbackQuery(callbackQuery *tgbotapi.CallbackQuery) {
	data := callbackQuery.Data
	chatID := callbackQuery.Message.Chat.ID

	switch {
	case strings.HasPrefix(data, "ticker:"):
		b.Bot.Send(tgbotapi.NewCallback(callbackQuery.ID, ""))
		index, err := strconv.Atoi(strings.TrimPrefix(data, "ticker:"))
		entry, ok := b.catalog.At(index)
		if err != nil || !ok {
			b.SendMessage(Message{ChatID: int(chatID), Text: helpers.EscapeMarkdownV2(
				translation.Translate("Error: no he reconocido ese botón."))})
			return
		}
		if text := b.quoteInstrument(chatID, entry); text != "" {
			b.SendMessage(Message{ChatID: int(chatID), Text: text})
		}

	case data == "resumen":
		b.Bot.Send(tgbotapi.NewCallback(callbackQuery.ID,
			translation.Translate("Buscando, esto tardará unos segundos...")))
		if text := b.marketSummary(chatID); text != "" {
			b.SendMessage(Message{ChatID: int(chatID), Text: text})
		}

	case strings.HasPrefix(data, "alertsel:"):
		b.Bot.Send(tgbotapi.NewCallback(callbackQuery.ID, ""))
		b.sendDialogueResult(chatID, b.flow.SelectInstrument(chatID, strings.TrimPrefix(data, "alertsel:")))

	case strings.HasPrefix(data, "alertdel:"):
		b.Bot.Send(tgbotapi.NewCallback(callbackQuery.ID, ""))
		b.handleAlertDelete(chatID, strings.TrimPrefix(data, "alertdel:"))

	default:
		b.Bot.Send(tgbotapi.NewCallback(callbackQuery.ID,
			translation.Translate("No he reconocido esa acción.")))
	}
}

// sendDialogueResult renders a dialogue step: its text plus the instrument
// options as an inline keyboard when the step offers a choice.
func (b *Bot) sendDialogueResult(chatID int64, result dialogue.Result) {
	msg := tgbotapi.NewMessage(chatID, result.Text)
	msg.ParseMode = "MarkdownV2"

	if len(result.Options) > 0 {
		var rows [][]tgbotapi.InlineKeyboardButton
		for _, option := range result.Options {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(option.Label, "alertsel:"+option.Ref),
			))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}

	if _, err := b.Bot.Send(msg); err != nil {
		log.Errorf("failed to send dialogue step to chat %d: %v", chatID, err)
	}
}

func (b *Bot) sendTickerKeyboard(chatID int64) {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, entry := range b.catalog.Entries() {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(entry.Alias, fmt.Sprintf("ticker:%d", i)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(translation.Translate("Resumen de Mercado"), "resumen"),
	))

	msg := tgbotapi.NewMessage(chatID, helpers.EscapeMarkdownV2(
		translation.Translate("*Tickers disponibles*\n(Pulsa para ver el precio)")))
	msg.ParseMode = "MarkdownV2"
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)

	if _, err := b.Bot.Send(msg); err != nil {
		log.Errorf("failed to send ticker keyboard to chat %d: %v", chatID, err)
	}
}

// sendAlertList renders the chat's alerts with one delete button each.
// Ownership is enforced again at deletion time, not just here.
func (b *Bot) sendAlertList(chatID int64) {
	alerts, err := b.store.AlertsByChat(chatID)
	if err != nil {
		log.Errorf("failed to fetch alerts for chat %d: %v", chatID, err)
		b.SendMessage(Message{ChatID: int(chatID), Text: helpers.EscapeMarkdownV2(
			translation.Translate("No he podido consultar tus alertas, inténtalo en un rato."))})
		return
	}

	if len(alerts) == 0 {
		b.SendMessage(Message{ChatID: int(chatID), Text: helpers.EscapeMarkdownV2(
			translation.Translate("No tienes alertas activas. Crea una con /alerta."))})
		return
	}

	var list strings.Builder
	list.WriteString(translation.Translate("*Tus alertas*\n"))
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, a := range alerts {
		state := translation.Translate("vigilando")
		if a.Triggered {
			state = translation.Translate("disparada")
		}
		list.WriteString(fmt.Sprintf(
			"\n▫️ *%s* @ *%s %s* \\(%s, %s\\)\n",
			helpers.EscapeMarkdownV2(a.Name),
			helpers.FormatPriceUS(a.Target, true),
			helpers.EscapeMarkdownV2(a.Currency),
			helpers.EscapeMarkdownV2(state),
			helpers.EscapeMarkdownV2(helpers.FormatDate(a.CreatedAt)),
		))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				translation.Translate("🗑 Borrar %s @ %s", a.Name, helpers.FormatPriceUS(a.Target, false)),
				fmt.Sprintf("alertdel:%d", a.ID),
			),
		))
	}

	msg := tgbotapi.NewMessage(chatID, list.String())
	msg.ParseMode = "MarkdownV2"
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.Bot.Send(msg); err != nil {
		log.Errorf("failed to send alert list to chat %d: %v", chatID, err)
	}
}

func (b *Bot) handleAlertDelete(chatID int64, ref string) {
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		b.SendMessage(Message{ChatID: int(chatID), Text: helpers.EscapeMarkdownV2(
			translation.Translate("Error: no he reconocido ese botón."))})
		return
	}

	removed, err := b.store.DeleteAlert(id, chatID)
	if err != nil {
		log.Errorf("failed to delete alert %d for chat %d: %v", id, chatID, err)
		b.SendMessage(Message{ChatID: int(chatID), Text: helpers.EscapeMarkdownV2(
			translation.Translate("No he podido borrar la alerta, inténtalo en un rato."))})
		return
	}
	if !removed {
		b.SendMessage(Message{ChatID: int(chatID), Text: helpers.EscapeMarkdownV2(
			translation.Translate("No he encontrado esa alerta."))})
		return
	}
	b.SendMessage(Message{ChatID: int(chatID), Text: helpers.EscapeMarkdownV2(
		translation.Translate("Alerta eliminada. 🗑"))})
}

func welcomeText() string {
	return helpers.EscapeMarkdownV2(translation.Translate(
		"¡Hola! Soy tu Vigía de Bolsa.\n\n" +
			"Simplemente escríbeme qué quieres ver:\n" +
			"  -> 'sp500'\n" +
			"  -> 'nasdaq'\n" +
			"  -> 'cuanto vale el oro'\n\n" +
			"Para ver todos los comandos de ayuda, escribe /opciones."))
}

func optionsText() string {
	return helpers.EscapeMarkdownV2(translation.Translate(
		"Opciones disponibles\n\n" +
			"🤖 Modo inteligente (recomendado):\n" +
			"Escríbeme directamente el activo que buscas. Entiendo frases como:\n" +
			"  -> 'sp500'\n" +
			"  -> 'precio del 100 (nasdaq100)'\n" +
			"  -> 'oro'\n\n" +
			"🔔 Alertas:\n" +
			"  -> /alerta (crear una alerta de precio, paso a paso)\n" +
			"  -> /alerta sp500 650 (alerta directa)\n" +
			"  -> /misalertas (ver y borrar tus alertas)\n" +
			"  -> /cancelar (cancelar la alerta a medias)\n\n" +
			"🆘 Comandos de ayuda:\n" +
			"  -> /start (ver el mensaje de bienvenida)\n" +
			"  -> /opciones (ver este menú)\n" +
			"  -> /tickers (ver lista de activos)\n" +
			"  -> /grafico sp500 (gráfico de 7 días)"))
}
