package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"vigia-telegram-bot/internal/catalog"
	"vigia-telegram-bot/internal/database"
	"vigia-telegram-bot/internal/dialogue"
	"vigia-telegram-bot/internal/price"
)

// BotConfig configuration of the bot
type BotConfig struct {
	Token          string
	Debug          bool
	UpdatesTimeout int
}

// Bot telegram interaction client
type Bot struct {
	Bot     *tgbotapi.BotAPI
	Config  BotConfig
	store   *database.Store
	catalog *catalog.Catalog
	flow    *dialogue.Flow
	prices  *price.Client
}

// Message a telegram message struct
type Message struct {
	ChatID    int
	MessageID int
	Text      string
}
