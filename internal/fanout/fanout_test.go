package fanout

import (
	"context"
	"testing"
	"time"

	"signalengine/internal/model"
)

func TestFanOut_BroadcastsToAll(t *testing.T) {
	fo := New(10)
	out1 := fo.Subscribe()
	out2 := fo.Subscribe()

	input := make(chan model.Candle, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fo.Run(ctx, input)

	candle := model.Candle{
		Symbol:   "BTC",
		Interval: "1m",
		Open:     100,
		High:     110,
		Low:      90,
		Close:    105,
	}

	input <- candle
	time.Sleep(50 * time.Millisecond)

	select {
	case c := <-out1:
		if c.Symbol != "BTC" {
			t.Errorf("out1: expected symbol BTC, got %s", c.Symbol)
		}
	case <-time.After(time.Second):
		t.Fatal("out1: timed out waiting for candle")
	}

	select {
	case c := <-out2:
		if c.Symbol != "BTC" {
			t.Errorf("out2: expected symbol BTC, got %s", c.Symbol)
		}
	case <-time.After(time.Second):
		t.Fatal("out2: timed out waiting for candle")
	}
}

func TestFanOut_SlowConsumerDropsWithoutBlockingOthers(t *testing.T) {
	fo := New(1)
	slow := fo.Subscribe()
	fast := fo.Subscribe()

	var dropped int
	fo.OnDrop = func(idx int, _ model.Candle) { dropped++ }

	input := make(chan model.Candle, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fo.Run(ctx, input)

	for i := 0; i < 5; i++ {
		input <- model.Candle{Symbol: "ETH", Interval: "1m", Open: float64(i)}
	}
	time.Sleep(100 * time.Millisecond)

	if dropped == 0 {
		t.Fatal("expected at least one drop for the unread slow subscriber")
	}

	// fast consumer should still have received the first candle queued before
	// the buffer filled.
	select {
	case <-fast:
	default:
		t.Fatal("fast subscriber received nothing")
	}
	<-slow
}
