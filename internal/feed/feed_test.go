package feed

import (
	"testing"

	"signalengine/internal/model"

	"github.com/stretchr/testify/require"
)

func TestFeed_SubscribeBeforeConnect_IsQueuedNotSent(t *testing.T) {
	f := New(Config{Endpoint: "wss://example.invalid/ws"})
	require.Equal(t, StateDisconnected, f.CurrentState())

	key := model.SubscriptionKey{Channel: "candle", Symbol: "BTC", Interval: "1m"}
	f.Subscribe(key)

	require.True(t, f.subs.Contain(key.String()))
	require.Nil(t, f.writerCh, "no writer queue exists before connect, so nothing is sent")
}

func TestSubscriptionKey_RoundTripsThroughString(t *testing.T) {
	key := model.SubscriptionKey{Channel: "candle", Symbol: "ETH", Interval: "5m"}
	parsed, err := model.ParseSubscriptionKey(key.String())
	require.NoError(t, err)
	require.Equal(t, key, parsed)
}

func TestState_String(t *testing.T) {
	require.Equal(t, "connected", StateConnected.String())
	require.Equal(t, "backoff", StateBackoff.String())
}
