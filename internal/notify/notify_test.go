package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ziarant/StarPupil/internal/contracts"
	"github.com/Ziarant/StarPupil/pkg/logger"
)

func testSignal() contracts.Signal {
	return contracts.Signal{
		InstrumentID: 7,
		Date:         time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC),
		Strategy:     "rsi_reversal",
		Kind:         contracts.SignalSell,
		Strength:     1.0,
		Reason:       "RSI 100.0 above overbought threshold 70",
		TriggerPrice: decimal.NewFromInt(119),
	}
}

type recordingNotifier struct {
	signals []contracts.Signal
	err     error
}

func (r *recordingNotifier) Notify(ctx context.Context, sig contracts.Signal) error {
	r.signals = append(r.signals, sig)
	return r.err
}

func TestMultiDeliversToAllChannels(t *testing.T) {
	a := &recordingNotifier{}
	b := &recordingNotifier{}
	multi := NewMulti(logger.NewWriter(io.Discard, "error"), a, b)

	require.NoError(t, multi.Notify(context.Background(), testSignal()))
	assert.Len(t, a.signals, 1)
	assert.Len(t, b.signals, 1)
}

// One channel failing must not starve the others.
func TestMultiContinuesPastFailure(t *testing.T) {
	failing := &recordingNotifier{err: errors.New("channel down")}
	healthy := &recordingNotifier{}
	multi := NewMulti(logger.NewWriter(io.Discard, "error"), failing, healthy)

	err := multi.Notify(context.Background(), testSignal())
	require.Error(t, err)
	assert.Len(t, healthy.signals, 1)
}

func TestFormatSignal(t *testing.T) {
	inst := contracts.Instrument{ID: 7, Exchange: "SSE", Symbol: "600519"}
	msg := FormatSignal(testSignal(), inst)

	assert.True(t, strings.HasPrefix(msg, "[SELL] SSE:600519 2026-08-21"))
	assert.Contains(t, msg, "119")
	assert.Contains(t, msg, "strength 1.00")
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(logger.NewWriter(io.Discard, "error"))
	defer hub.Close()

	server := httptest.NewServer(hub)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 },
		time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Notify(context.Background(), testSignal()))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var got contracts.Signal
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, contracts.SignalSell, got.Kind)
	assert.Equal(t, "rsi_reversal", got.Strategy)
}

func TestHubNotifyWithoutSubscribers(t *testing.T) {
	hub := NewHub(logger.NewWriter(io.Discard, "error"))
	assert.NoError(t, hub.Notify(context.Background(), testSignal()))
}
