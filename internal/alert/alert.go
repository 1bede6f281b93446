// Package alert holds the periodic checker that re-evaluates every stored
// alert against live prices. An alert fires once when the price falls below
// its target and re-arms once the price recovers above it; a price sitting
// exactly on the target changes nothing.
package alert

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"vigia-telegram-bot/internal/database"
	"vigia-telegram-bot/internal/price"
	"vigia-telegram-bot/internal/types"
	"vigia-telegram-bot/lib/helpers"
	"vigia-telegram-bot/lib/translation"
)

// Notifier delivers a message to a chat outside any request/response cycle.
type Notifier interface {
	Notify(chatID int64, text string) error
}

// PriceSource is the synchronous one-symbol quote lookup.
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) (price.Quote, error)
}

var (
	notificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vigia",
			Subsystem: "alert_checker",
			Name:      "notifications_sent",
			Help:      "Alert notifications delivered, by kind",
		},
		[]string{"kind"},
	)
	cyclesCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vigia",
		Subsystem: "alert_checker",
		Name:      "cycles_completed",
		Help:      "Completed evaluation cycles",
	})
	corruptRemoved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vigia",
		Subsystem: "alert_checker",
		Name:      "corrupt_alerts_removed",
		Help:      "Stored alerts removed because their data could not be evaluated",
	})
)

func init() {
	prometheus.MustRegister(notificationsSent, cyclesCompleted, corruptRemoved)
}

// Checker runs the evaluation cycles. The mutex serializes passes so a slow
// cycle can never overlap the next one.
type Checker struct {
	store    *database.Store
	prices   PriceSource
	notifier Notifier

	timeout  time.Duration
	delay    time.Duration
	interval time.Duration

	mu sync.Mutex
}

func New(store *database.Store, prices PriceSource, notifier Notifier, timeout, delay, interval time.Duration) *Checker {
	return &Checker{
		store:    store,
		prices:   prices,
		notifier: notifier,
		timeout:  timeout,
		delay:    delay,
		interval: interval,
	}
}

type action int

const (
	actionNone action = iota
	actionBreach
	actionRecovery
)

// decide applies the two-state hysteresis rule. Both comparisons are strict:
// equality never flips the flag in either direction.
func decide(triggered bool, current, target float64) action {
	switch {
	case !triggered && current < target:
		return actionBreach
	case triggered && current > target:
		return actionRecovery
	default:
		return actionNone
	}
}

// Run performs one full pass over every stored alert. A price failure skips
// that alert only; a store failure abandons the cycle for retry next
// interval; corrupt rows are deleted so they cannot fail forever.
func (c *Checker) Run(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	log.Debug("checking alerts...")

	alerts, corrupt, err := c.store.AllAlerts()
	if err != nil {
		log.Errorf("failed to fetch alerts, abandoning cycle: %v", err)
		return
	}

	for _, id := range corrupt {
		log.Warnf("removing corrupt alert %d", id)
		if err := c.store.DeleteAlertByID(id); err != nil {
			log.Errorf("failed to remove corrupt alert %d: %v", id, err)
			continue
		}
		corruptRemoved.Inc()
	}

	for _, a := range alerts {
		if ctx.Err() != nil {
			log.Warnf("cycle budget exhausted, %s and later alerts postponed", a.Symbol)
			return
		}
		c.check(ctx, a)
	}

	cyclesCompleted.Inc()
	log.Debug("alert check completed")
}

func (c *Checker) check(ctx context.Context, a types.Alert) {
	lookupCtx, cancel := context.WithTimeout(ctx, c.timeout)
	quote, err := c.prices.GetPrice(lookupCtx, a.Symbol)
	cancel()
	if err != nil {
		log.Warnf("no price for %s, skipping alert %d: %v", a.Symbol, a.ID, err)
		return
	}

	log.Debugf("alert %d: %s target=%.4f current=%.4f triggered=%v",
		a.ID, a.Symbol, a.Target, quote.Price, a.Triggered)

	var text, kind string
	var triggered bool
	switch decide(a.Triggered, quote.Price, a.Target) {
	case actionBreach:
		text = breachMessage(a, quote)
		kind = "breach"
		triggered = true
	case actionRecovery:
		text = recoveryMessage(a, quote)
		kind = "recovery"
		triggered = false
	default:
		return
	}

	// Notify before persisting: a crash in between re-notifies next cycle,
	// which beats silently losing the crossing. A failed send leaves the
	// flag untouched for the same reason.
	if err := c.notifier.Notify(a.ChatID, text); err != nil {
		log.Errorf("failed to notify chat %d for alert %d: %v", a.ChatID, a.ID, err)
		return
	}
	notificationsSent.WithLabelValues(kind).Inc()

	if err := c.store.SetTriggered(a.ID, triggered); err != nil {
		log.Errorf("failed to persist trigger state for alert %d: %v", a.ID, err)
	}
}

func breachMessage(a types.Alert, quote price.Quote) string {
	return translation.Translate("🚨 *%s* ha caído por debajo de tu objetivo\\.\nObjetivo: *%s %s*\nPrecio actual: *%s %s*",
		helpers.EscapeMarkdownV2(a.Name),
		helpers.FormatPriceUS(a.Target, true),
		helpers.EscapeMarkdownV2(a.Currency),
		helpers.FormatPriceUS(quote.Price, true),
		helpers.EscapeMarkdownV2(quote.Currency),
	)
}

func recoveryMessage(a types.Alert, quote price.Quote) string {
	return translation.Translate("✅ *%s* se ha recuperado por encima de tu objetivo\\.\nObjetivo: *%s %s*\nPrecio actual: *%s %s*",
		helpers.EscapeMarkdownV2(a.Name),
		helpers.FormatPriceUS(a.Target, true),
		helpers.EscapeMarkdownV2(a.Currency),
		helpers.FormatPriceUS(quote.Price, true),
		helpers.EscapeMarkdownV2(quote.Currency),
	)
}

// Start schedules evaluation cycles: one after the initial delay, then one
// per interval, each run awaited before the next is scheduled.
func (c *Checker) Start(ctx context.Context) {
	go func() {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return
		}

		for {
			runCtx, cancel := context.WithTimeout(ctx, c.interval)
			c.Run(runCtx)
			cancel()

			select {
			case <-time.After(c.interval):
			case <-ctx.Done():
				return
			}
		}
	}()
	log.Infof("alert checker started: first run in %s, then every %s", c.delay, c.interval)
}
