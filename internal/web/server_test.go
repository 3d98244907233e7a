package web

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shell-tracker/internal/events"
	"shell-tracker/internal/report"
	"shell-tracker/internal/types"
)

type staticStatus report.Input

func (s staticStatus) ReportInput(context.Context) report.Input { return report.Input(s) }

func TestStatusEndpoint(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)
	srv := httptest.NewServer(NewServer(":0", events.NewBus(), staticStatus{
		Symbol: "SHELLUSDT", Price: 1.2, Running: true, Now: now,
	}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "SHELLUSDT", body["symbol"])
	assert.InDelta(t, 1.2, body["current_price"], 1e-9)
	assert.Equal(t, "2024-05-01 12:00:00", body["timestamp"])
	assert.NotEmpty(t, body["text_report"])
}

func TestStatusEndpointWithoutPrice(t *testing.T) {
	srv := httptest.NewServer(NewServer(":0", events.NewBus(), staticStatus{Symbol: "SHELLUSDT"}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestFeedStreamsEvents(t *testing.T) {
	bus := events.NewBus()
	srv := httptest.NewServer(NewServer(":0", bus, staticStatus{}).Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	bus.Publish(events.KindPriceUpdate, events.PriceUpdate{Price: 1.25, PctChange: 0.5})
	nan := math.NaN()
	bus.Publish(events.KindChartData, events.ChartData{Series: &types.CandleSeries{
		Symbol: "SHELLUSDT",
		Bars:   []types.Bar{{Candle: types.Candle{Ts: 1, Close: 1.1}, MAShort: nan, RSI: 55}},
	}})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	var first struct {
		Kind events.Kind        `json:"kind"`
		Data events.PriceUpdate `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, events.KindPriceUpdate, first.Kind)
	assert.InDelta(t, 1.25, first.Data.Price, 1e-9)

	var second struct {
		Kind events.Kind `json:"kind"`
		Data chartSeries `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, events.KindChartData, second.Kind)
	require.Len(t, second.Data.Bars, 1)
	assert.Nil(t, second.Data.Bars[0].MAShort)
	require.NotNil(t, second.Data.Bars[0].RSI)
	assert.InDelta(t, 55.0, *second.Data.Bars[0].RSI, 1e-9)
	assert.InDelta(t, 1.1, second.Data.Bars[0].Close, 1e-9)
}

func TestFeedClosesWithBus(t *testing.T) {
	bus := events.NewBus()
	srv := httptest.NewServer(NewServer(":0", bus, staticStatus{}).Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	bus.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
