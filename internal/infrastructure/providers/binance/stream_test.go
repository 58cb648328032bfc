package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	marketdata "main/internal/domain/entity/marketdata"
	domain "main/internal/domain/interfaces"
)

func streamServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		// Hold the connection open until the client disconnects.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSubscribeDeliversUpdates(t *testing.T) {
	frame := `{"e":"kline","E":1700000061000,"s":"BTCUSDT","k":{` +
		`"t":1700000040000,"i":"1m","o":"100.0","c":"101.5","h":"102.0","l":"99.5","v":"12.25","x":true}}`
	srv := streamServer(t, []string{`{"result":null,"id":1}`, frame})

	client := NewClient(Config{
		StreamURL: "ws" + strings.TrimPrefix(srv.URL, "http"),
	}, testLogger())

	updates := make(chan marketdata.CandleUpdate, 4)
	unsubscribe, err := client.Subscribe(context.Background(),
		domain.SubscribeParams{Symbol: "BTCUSDT", Interval: "1m"},
		func(u marketdata.CandleUpdate) { updates <- u })
	require.NoError(t, err)
	defer unsubscribe()

	select {
	case u := <-updates:
		assert.Equal(t, "BTCUSDT", u.Symbol)
		assert.Equal(t, int64(1_700_000_040), u.Time)
		assert.Equal(t, 101.5, u.Close)
		assert.Equal(t, 12.25, u.Volume)
		assert.True(t, u.Final)
	case <-time.After(5 * time.Second):
		t.Fatal("no candle update received")
	}
}

func TestSubscribeRejectsUnknownInterval(t *testing.T) {
	client := NewClient(Config{}, testLogger())

	_, err := client.Subscribe(context.Background(),
		domain.SubscribeParams{Symbol: "BTCUSDT", Interval: "7x"},
		func(marketdata.CandleUpdate) {})
	assert.Error(t, err)
}

func TestUnsubscribeIdempotent(t *testing.T) {
	srv := streamServer(t, nil)

	client := NewClient(Config{
		StreamURL: "ws" + strings.TrimPrefix(srv.URL, "http"),
	}, testLogger())

	unsubscribe, err := client.Subscribe(context.Background(),
		domain.SubscribeParams{Symbol: "BTCUSDT", Interval: "1m"},
		func(marketdata.CandleUpdate) {})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		unsubscribe()
		unsubscribe()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("unsubscribe did not return")
	}
}

func TestResubscribeReplacesStream(t *testing.T) {
	srv := streamServer(t, nil)
	client := NewClient(Config{
		StreamURL: "ws" + strings.TrimPrefix(srv.URL, "http"),
	}, testLogger())

	first, err := client.Subscribe(context.Background(),
		domain.SubscribeParams{Symbol: "BTCUSDT", Interval: "1m"},
		func(marketdata.CandleUpdate) {})
	require.NoError(t, err)

	second, err := client.Subscribe(context.Background(),
		domain.SubscribeParams{Symbol: "ETHUSDT", Interval: "1m"},
		func(marketdata.CandleUpdate) {})
	require.NoError(t, err)

	// The first teardown already ran inside Subscribe; calling it again
	// must not block or panic.
	first()
	second()
}
