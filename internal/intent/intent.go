// Package intent classifies free-form messages the way the bot's regex chain
// always has: instrument lookups first, then help intents, then small talk,
// then the market summary. Anything else stays unanswered.
package intent

import (
	"math/rand"
	"regexp"
	"strings"

	"vigia-telegram-bot/internal/catalog"
)

type Kind int

const (
	None Kind = iota
	Instrument
	Options
	Tickers
	MyAlerts
	Greeting
	Thanks
	Summary
)

// Intent is the tagged classification result. InstrumentIndex is only
// meaningful for Kind == Instrument.
type Intent struct {
	Kind            Kind
	InstrumentIndex int
}

var (
	reGreeting = regexp.MustCompile(`hola|buenos dias|buenas|saludos|hey|klk|holi|holaa|hoola`)
	reThanks   = regexp.MustCompile(`gracias|thx|thanks|ty|maquina|fiera|crack|mastodonte|titan|genio`)
	reTickers  = regexp.MustCompile(`tickers|lista|activos|que tienes|lst`)
	reOptions  = regexp.MustCompile(`opciones|ayuda|comandos|menu|que haces|opc`)
	reSummary  = regexp.MustCompile(`todo|resumen|mercado|completo|general|global`)
	reMyAlerts = regexp.MustCompile(`\b(mis alertas|alertas|ver alertas|dime mis alertas)\b`)
)

// Classify is a pure function over the message text; order matters and the
// first match wins.
func Classify(cat *catalog.Catalog, text string) Intent {
	text = strings.ToLower(strings.TrimSpace(text))

	if _, i, ok := cat.Match(text); ok {
		return Intent{Kind: Instrument, InstrumentIndex: i}
	}

	switch {
	case reOptions.MatchString(text):
		return Intent{Kind: Options}
	case reTickers.MatchString(text):
		return Intent{Kind: Tickers}
	case reMyAlerts.MatchString(text):
		return Intent{Kind: MyAlerts}
	case reGreeting.MatchString(text):
		return Intent{Kind: Greeting}
	case reThanks.MatchString(text):
		return Intent{Kind: Thanks}
	case reSummary.MatchString(text):
		return Intent{Kind: Summary}
	}
	return Intent{Kind: None}
}

var greetings = []string{
	"¡Hola! Soy tu Vigía. Escribe /opciones para ver qué hago",
	"¡Saludos! ¿Listo para ver el mercado? Escribe /opciones",
	"¡Buenas! ¿En qué te puedo ayudar? Escribe /opciones",
	"¿Qué tal? Escribe 'sp' o /opciones para empezar",
	"¡Buenas, comandante! Sistema Vigía en línea. Iniciando protocolo /opciones.",
	"¡Hola humano! Mi código vibra de emoción al verte. ¿Probamos /opciones?",
}

var acknowledgements = []string{
	"¡De nada! Para eso estamos.",
	"Un placer, máquina.",
	"Faltaría más. ¿Algo más?",
	"De nada. Vigilar es mi trabajo.",
	"A mandar. 🫡",
	"Para eso me compilaron, colega.",
}

func RandomGreeting() string {
	return greetings[rand.Intn(len(greetings))]
}

func RandomAcknowledgement() string {
	return acknowledgements[rand.Intn(len(acknowledgements))]
}
