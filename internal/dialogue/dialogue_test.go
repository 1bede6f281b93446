package dialogue

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"vigia-telegram-bot/internal/catalog"
	"vigia-telegram-bot/internal/database"
	"vigia-telegram-bot/internal/price"
)

type fakePrices struct {
	quote price.Quote
	err   error
	calls int
}

func (f *fakePrices) GetPrice(context.Context, string) (price.Quote, error) {
	f.calls++
	return f.quote, f.err
}

func newTestFlow(t *testing.T, prices *fakePrices) (*Flow, *database.Store) {
	t.Helper()
	store, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewFlow(store, catalog.Default(), prices, 10*time.Minute, time.Second), store
}

func TestGuidedCreation(t *testing.T) {
	prices := &fakePrices{quote: price.Quote{Price: 660, Currency: "EUR"}}
	flow, store := newTestFlow(t, prices)
	ctx := context.Background()

	result := flow.StartCreation(ctx, 100, nil)
	if len(result.Options) != len(catalog.Default().Entries()) {
		t.Fatalf("expected one option per catalog entry, got %d", len(result.Options))
	}
	if !flow.AwaitingInstrument(100) {
		t.Fatal("starting with no args should reach the instrument step")
	}

	result = flow.SelectInstrument(100, "0")
	if !flow.AwaitingPrice(100) {
		t.Fatal("a valid selection should reach the price step")
	}
	if !strings.Contains(result.Text, "SP500") {
		t.Errorf("price prompt should name the instrument, got %q", result.Text)
	}

	flow.HandlePriceInput(ctx, 100, "650")
	if flow.AwaitingPrice(100) || flow.AwaitingInstrument(100) {
		t.Error("a successful creation should end the dialogue")
	}

	alerts, err := store.AlertsByChat(100)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	a := alerts[0]
	if a.Symbol != "SXR8.DE" || a.Name != "SP500" {
		t.Errorf("unexpected alert: %+v", a)
	}
	if a.Target != 650 {
		t.Errorf("expected exact target 650, got %v", a.Target)
	}
	if a.Currency != "EUR" {
		t.Errorf("currency should be captured at creation, got %q", a.Currency)
	}
	if a.Triggered {
		t.Error("new alerts must start untriggered")
	}
}

func TestInvalidSelectionKeepsState(t *testing.T) {
	flow, _ := newTestFlow(t, &fakePrices{})
	ctx := context.Background()

	flow.StartCreation(ctx, 100, nil)

	for _, ref := range []string{"banana", "-1", "999"} {
		result := flow.SelectInstrument(100, ref)
		if !flow.AwaitingInstrument(100) {
			t.Fatalf("selection %q must not change state", ref)
		}
		if len(result.Options) == 0 {
			t.Errorf("rejection for %q should re-offer the options", ref)
		}
	}
}

func TestInvalidPriceSelfLoop(t *testing.T) {
	prices := &fakePrices{quote: price.Quote{Price: 660, Currency: "EUR"}}
	flow, store := newTestFlow(t, prices)
	ctx := context.Background()

	flow.StartCreation(ctx, 100, nil)
	flow.SelectInstrument(100, "0")

	for _, bad := range []string{"abc", "-3", "0", "1.2.3", "", "nan", "NaN", "inf", "+Inf", "-inf"} {
		flow.HandlePriceInput(ctx, 100, bad)
		if !flow.AwaitingPrice(100) {
			t.Fatalf("invalid price %q must keep the price step open", bad)
		}
	}
	alerts, _ := store.AlertsByChat(100)
	if len(alerts) != 0 {
		t.Fatalf("invalid prices must not write alerts, found %d", len(alerts))
	}

	// The loop still exits on a valid price, comma decimals included.
	flow.HandlePriceInput(ctx, 100, "650,50")
	alerts, _ = store.AlertsByChat(100)
	if len(alerts) != 1 || alerts[0].Target != 650.5 {
		t.Fatalf("expected one alert at 650.5, got %+v", alerts)
	}
}

func TestCancelFromAnyState(t *testing.T) {
	flow, store := newTestFlow(t, &fakePrices{})
	ctx := context.Background()

	// From idle.
	flow.CancelCreation(100)

	// From the instrument step.
	flow.StartCreation(ctx, 100, nil)
	flow.CancelCreation(100)
	if flow.AwaitingInstrument(100) {
		t.Error("cancel must discard the instrument-step session")
	}

	// From the price step.
	flow.StartCreation(ctx, 100, nil)
	flow.SelectInstrument(100, "0")
	flow.CancelCreation(100)
	if flow.AwaitingPrice(100) {
		t.Error("cancel must discard the price-step session")
	}

	alerts, _ := store.AlertsByChat(100)
	if len(alerts) != 0 {
		t.Error("cancelled dialogues must not write alerts")
	}
}

func TestOneShotCreation(t *testing.T) {
	prices := &fakePrices{quote: price.Quote{Price: 660, Currency: "EUR"}}
	flow, store := newTestFlow(t, prices)
	ctx := context.Background()

	flow.StartCreation(ctx, 100, []string{"sp500", "650"})
	if flow.AwaitingInstrument(100) || flow.AwaitingPrice(100) {
		t.Error("the one-shot path must never open a session")
	}

	alerts, _ := store.AlertsByChat(100)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Target != 650 || alerts[0].Symbol != "SXR8.DE" || alerts[0].Currency != "EUR" {
		t.Errorf("unexpected alert: %+v", alerts[0])
	}
}

func TestOneShotValidation(t *testing.T) {
	flow, store := newTestFlow(t, &fakePrices{err: errors.New("offline")})
	ctx := context.Background()

	cases := [][]string{
		{"sp500"},                 // wrong argument count
		{"sp500", "650", "extra"}, // wrong argument count
		{"dogecoin", "650"},       // unknown alias
		{"sp500", "not-a-number"}, // malformed price
		{"sp500", "-1"},           // non-positive price
		{"sp500", "0"},            // non-positive price
		{"sp500", "nan"},          // non-finite price
		{"sp500", "inf"},          // non-finite price
		{"sp500", "+Inf"},         // non-finite price
	}
	for _, args := range cases {
		result := flow.StartCreation(ctx, 100, args)
		if result.Text == "" {
			t.Errorf("args %v should produce a user-visible error", args)
		}
		if flow.AwaitingInstrument(100) || flow.AwaitingPrice(100) {
			t.Errorf("args %v must not open a session", args)
		}
	}

	alerts, _ := store.AlertsByChat(100)
	if len(alerts) != 0 {
		t.Fatalf("invalid one-shot calls must not write alerts, found %d", len(alerts))
	}
}

func TestCurrencyLookupIsBestEffort(t *testing.T) {
	flow, store := newTestFlow(t, &fakePrices{err: errors.New("offline")})
	ctx := context.Background()

	result := flow.StartCreation(ctx, 100, []string{"oro", "55"})
	if result.Text == "" {
		t.Error("creation should still confirm")
	}

	alerts, _ := store.AlertsByChat(100)
	if len(alerts) != 1 {
		t.Fatalf("a failed currency lookup must not block creation, got %d alerts", len(alerts))
	}
	if alerts[0].Currency != "" {
		t.Errorf("currency should be empty on lookup failure, got %q", alerts[0].Currency)
	}
}

func TestExpiredSessionIsIdle(t *testing.T) {
	flow, store := newTestFlow(t, &fakePrices{})
	ctx := context.Background()

	flow.StartCreation(ctx, 100, nil)
	flow.SelectInstrument(100, "0")

	// Age the session past its TTL.
	flow.sessions.mu.Lock()
	flow.sessions.m[100].UpdatedAt = time.Now().Add(-time.Hour)
	flow.sessions.mu.Unlock()

	if flow.AwaitingPrice(100) {
		t.Fatal("an expired session must look idle")
	}
	result := flow.HandlePriceInput(ctx, 100, "650")
	if !strings.Contains(result.Text, "caducado") {
		t.Errorf("expected a session-expired message, got %q", result.Text)
	}
	alerts, _ := store.AlertsByChat(100)
	if len(alerts) != 0 {
		t.Error("an expired session must not write alerts")
	}
}

func TestSessionsAreIndependentPerChat(t *testing.T) {
	prices := &fakePrices{quote: price.Quote{Price: 660, Currency: "EUR"}}
	flow, store := newTestFlow(t, prices)
	ctx := context.Background()

	flow.StartCreation(ctx, 100, nil)
	flow.StartCreation(ctx, 200, nil)
	flow.SelectInstrument(100, "0")
	flow.SelectInstrument(200, "2")

	flow.HandlePriceInput(ctx, 100, "650")
	if !flow.AwaitingPrice(200) {
		t.Fatal("finishing one chat's dialogue must not touch another's")
	}

	flow.HandlePriceInput(ctx, 200, "55")
	a100, _ := store.AlertsByChat(100)
	a200, _ := store.AlertsByChat(200)
	if len(a100) != 1 || a100[0].Symbol != "SXR8.DE" {
		t.Errorf("chat 100 alert wrong: %+v", a100)
	}
	if len(a200) != 1 || a200[0].Symbol != "XGDU.MI" {
		t.Errorf("chat 200 alert wrong: %+v", a200)
	}
}

func TestRestartReplacesSession(t *testing.T) {
	flow, _ := newTestFlow(t, &fakePrices{})
	ctx := context.Background()

	flow.StartCreation(ctx, 100, nil)
	flow.SelectInstrument(100, "0")
	if !flow.AwaitingPrice(100) {
		t.Fatal("setup failed")
	}

	// Starting again replaces the open session, no stacking.
	flow.StartCreation(ctx, 100, nil)
	if !flow.AwaitingInstrument(100) {
		t.Error("a fresh start should reset the dialogue to the instrument step")
	}
}

func TestSweepDropsExpiredSessions(t *testing.T) {
	sessions := NewSessions(time.Minute)
	sessions.put(1, &Session{State: StateAwaitingInstrument})
	sessions.put(2, &Session{State: StateAwaitingPrice})

	sessions.mu.Lock()
	sessions.m[1].UpdatedAt = time.Now().Add(-time.Hour)
	sessions.mu.Unlock()

	if n := sessions.Sweep(); n != 1 {
		t.Errorf("expected 1 swept session, got %d", n)
	}
	if sessions.get(1) != nil {
		t.Error("expired session should be gone")
	}
	if sessions.get(2) == nil {
		t.Error("live session should survive the sweep")
	}
}
