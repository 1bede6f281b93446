package commands

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"vigia-telegram-bot/internal/catalog"
	"vigia-telegram-bot/internal/price"
	"vigia-telegram-bot/lib/helpers"
	"vigia-telegram-bot/lib/translation"
)

var (
	chartLineColor = drawing.Color{R: 0, G: 122, B: 255, A: 255}
	chartFillColor = drawing.Color{R: 0, G: 122, B: 255, A: 25}
	chartBgColor   = drawing.Color{R: 55, G: 55, B: 55, A: 255}
	chartTextColor = drawing.Color{R: 200, G: 200, B: 200, A: 255}
)

// CommandChart renders the 7-day price chart for an instrument's primary
// ticker and returns the PNG plus a MarkdownV2 caption. Rendered charts are
// cached for five minutes.
func CommandChart(ctx context.Context, quoter Quoter, entry *catalog.Entry) ([]byte, string, error) {
	symbol := entry.Symbol()
	log.Debugf("processing chart request for %s", symbol)

	if cached, found := cacheGet(symbol); found {
		log.Debugf("returning cached chart for %s", symbol)
		return cached.ChartData, cached.Caption, nil
	}

	points, currency, err := quoter.History(ctx, symbol, "7d", "60m")
	if err != nil {
		return nil, "", errors.Wrapf(err, "no history for %s", symbol)
	}

	chartData, err := renderChart(entry, points)
	if err != nil {
		return nil, "", err
	}

	last := points[len(points)-1]
	caption := translation.Translate("*%s* \\(%s\\)\nÚltimo precio: *%s %s*",
		helpers.EscapeMarkdownV2(entry.Alias),
		helpers.EscapeMarkdownV2(symbol),
		helpers.FormatPriceUS(last.Close, true),
		helpers.EscapeMarkdownV2(currency),
	)

	cacheSet(symbol, chartData, caption, 5*time.Minute)

	return chartData, caption, nil
}

func renderChart(entry *catalog.Entry, points []price.Point) ([]byte, error) {
	times := make([]time.Time, 0, len(points))
	closes := make([]float64, 0, len(points))
	for _, p := range points {
		times = append(times, p.Time)
		closes = append(closes, p.Close)
	}

	minClose, maxClose := closes[0], closes[0]
	for _, v := range closes {
		if v < minClose {
			minClose = v
		}
		if v > maxClose {
			maxClose = v
		}
	}
	padding := (maxClose - minClose) * 0.1
	if padding == 0 {
		padding = maxClose * 0.01
	}

	graph := chart.Chart{
		Title:      fmt.Sprintf("%s · 7 días (%s)", entry.Alias, entry.Symbol()),
		Width:      1200,
		Height:     500,
		Background: chart.Style{FillColor: chartBgColor, FontColor: chartTextColor},
		Canvas:     chart.Style{FillColor: chartBgColor},
		TitleStyle: chart.Style{FontColor: chartTextColor},
		XAxis: chart.XAxis{
			Style:          chart.Style{FontColor: chartTextColor},
			ValueFormatter: chart.TimeValueFormatterWithFormat("02-Jan"),
		},
		YAxis: chart.YAxis{
			Style: chart.Style{FontColor: chartTextColor},
			Range: &chart.ContinuousRange{
				Min: minClose - padding,
				Max: maxClose + padding,
			},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return helpers.FormatPriceUS(f, false)
				}
				return ""
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name: entry.Alias,
				Style: chart.Style{
					StrokeColor: chartLineColor,
					FillColor:   chartFillColor,
				},
				XValues: times,
				YValues: closes,
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, errors.Wrap(err, "could not render chart")
	}
	return buf.Bytes(), nil
}
