package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandle_Validate(t *testing.T) {
	cases := []struct {
		name    string
		candle  Candle
		wantErr bool
	}{
		{
			name:   "valid ordering",
			candle: Candle{Symbol: "BTC", Open: 100, High: 105, Low: 95, Close: 102, Volume: 10},
		},
		{
			name:    "high below close",
			candle:  Candle{Symbol: "BTC", Open: 100, High: 101, Low: 95, Close: 102, Volume: 10},
			wantErr: true,
		},
		{
			name:    "low above open",
			candle:  Candle{Symbol: "BTC", Open: 100, High: 105, Low: 101, Close: 102, Volume: 10},
			wantErr: true,
		},
		{
			name:    "negative volume",
			candle:  Candle{Symbol: "BTC", Open: 100, High: 105, Low: 95, Close: 102, Volume: -1},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.candle.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCandle_Key(t *testing.T) {
	c := Candle{Symbol: "BTC", Interval: "1m"}
	assert.Equal(t, "BTC:1m", c.Key())
}
