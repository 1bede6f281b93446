package price_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vigia-telegram-bot/internal/price"
)

func chartBody(currency string, marketPrice float64, timestamps []int64, closes []string) string {
	ts := ""
	for i, t := range timestamps {
		if i > 0 {
			ts += ","
		}
		ts += fmt.Sprintf("%d", t)
	}
	cl := ""
	for i, c := range closes {
		if i > 0 {
			cl += ","
		}
		cl += c
	}
	return fmt.Sprintf(`{"chart":{"result":[{
		"meta":{"currency":%q,"regularMarketPrice":%v},
		"timestamp":[%s],
		"indicators":{"quote":[{"close":[%s]}]}
	}],"error":null}}`, currency, marketPrice, ts, cl)
}

func TestGetPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v8/finance/chart/SXR8.DE" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("range") != "1d" || r.URL.Query().Get("interval") != "1d" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		fmt.Fprint(w, chartBody("EUR", 648.06, nil, nil))
	}))
	defer server.Close()

	client := price.NewClientWithBaseURL(server.URL, time.Second)
	quote, err := client.GetPrice(context.Background(), "SXR8.DE")
	if err != nil {
		t.Fatalf("GetPrice failed: %v", err)
	}
	if quote.Price != 648.06 || quote.Currency != "EUR" {
		t.Errorf("unexpected quote: %+v", quote)
	}
}

func TestGetPriceErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		code int
	}{
		{"server error", "boom", http.StatusBadGateway},
		{"api error", `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`, http.StatusOK},
		{"empty result", `{"chart":{"result":[],"error":null}}`, http.StatusOK},
		{"zero price", chartBody("EUR", 0, nil, nil), http.StatusOK},
		{"malformed json", `{"chart":`, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.code)
				fmt.Fprint(w, tc.body)
			}))
			defer server.Close()

			client := price.NewClientWithBaseURL(server.URL, time.Second)
			if _, err := client.GetPrice(context.Background(), "SXR8.DE"); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestGetPriceHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := price.NewClientWithBaseURL(server.URL, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := client.GetPrice(ctx, "SXR8.DE"); err == nil {
		t.Error("expected a timeout error")
	}
}

func TestHistorySkipsNullBars(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("range") != "7d" || r.URL.Query().Get("interval") != "60m" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		fmt.Fprint(w, chartBody("EUR", 650,
			[]int64{1700000000, 1700003600, 1700007200},
			[]string{"648.1", "null", "649.3"}))
	}))
	defer server.Close()

	client := price.NewClientWithBaseURL(server.URL, time.Second)
	points, currency, err := client.History(context.Background(), "SXR8.DE", "7d", "60m")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if currency != "EUR" {
		t.Errorf("currency = %q", currency)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points after dropping the null bar, got %d", len(points))
	}
	if points[0].Close != 648.1 || points[1].Close != 649.3 {
		t.Errorf("unexpected closes: %+v", points)
	}
	if !points[0].Time.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("unexpected first timestamp: %v", points[0].Time)
	}
}

func TestHistoryAllNullBars(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartBody("EUR", 650,
			[]int64{1700000000, 1700003600},
			[]string{"null", "null"}))
	}))
	defer server.Close()

	client := price.NewClientWithBaseURL(server.URL, time.Second)
	if _, _, err := client.History(context.Background(), "SXR8.DE", "7d", "60m"); err == nil {
		t.Error("a history of only null bars should fail")
	}
}
