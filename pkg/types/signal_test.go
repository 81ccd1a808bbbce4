package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseSignalType(t *testing.T) {
	tests := []struct {
		in      string
		want    SignalType
		wantErr bool
	}{
		{"BUY", SignalBuy, false},
		{"sell", SignalSell, false},
		{" hold ", SignalHold, false},
		{"short", SignalHold, true},
	}
	for _, tt := range tests {
		got, err := ParseSignalType(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestSignalYAMLRoundTrip(t *testing.T) {
	var sig TradingSignal
	require.NoError(t, yaml.Unmarshal([]byte("symbol: AAPL\nsignal_type: SELL\nconfidence: 0.8\nstrategy_name: rsi\n"), &sig))
	assert.Equal(t, SignalSell, sig.Type)
	assert.Equal(t, "rsi", sig.StrategyName)
}

func TestSideHelpers(t *testing.T) {
	side, ok := SideForSignal(SignalSell)
	assert.True(t, ok)
	assert.Equal(t, SideShort, side)
	assert.Equal(t, SideLong, side.Opposite())

	_, ok = SideForSignal(SignalHold)
	assert.False(t, ok)

	parsed, err := ParseSide("buy")
	require.NoError(t, err)
	assert.Equal(t, SideLong, parsed)
}
