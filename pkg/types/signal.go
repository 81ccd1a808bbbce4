package types

import (
	"fmt"
	"strings"
	"time"
)

// SignalType is the direction a strategy votes for.
type SignalType int

const (
	SignalHold SignalType = iota
	SignalBuy
	SignalSell
)

func (s SignalType) String() string {
	switch s {
	case SignalHold:
		return "HOLD"
	case SignalBuy:
		return "BUY"
	case SignalSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// ParseSignalType converts "BUY", "SELL" or "HOLD" (any case) to a SignalType.
func ParseSignalType(s string) (SignalType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HOLD":
		return SignalHold, nil
	case "BUY":
		return SignalBuy, nil
	case "SELL":
		return SignalSell, nil
	default:
		return SignalHold, fmt.Errorf("unknown signal type %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s SignalType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SignalType) UnmarshalText(text []byte) error {
	v, err := ParseSignalType(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Side is the direction of a position or order.
type Side int

const (
	SideLong Side = iota
	SideShort
)

func (s Side) String() string {
	if s == SideShort {
		return "SHORT"
	}
	return "LONG"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideShort {
		return SideLong
	}
	return SideShort
}

// ParseSide accepts LONG/BUY and SHORT/SELL.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LONG", "BUY":
		return SideLong, nil
	case "SHORT", "SELL":
		return SideShort, nil
	default:
		return SideLong, fmt.Errorf("unknown side %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Side) UnmarshalText(text []byte) error {
	v, err := ParseSide(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// SideForSignal maps a non-HOLD signal to the side it would open.
func SideForSignal(s SignalType) (Side, bool) {
	switch s {
	case SignalBuy:
		return SideLong, true
	case SignalSell:
		return SideShort, true
	default:
		return SideLong, false
	}
}

// TradingSignal is one strategy's opinion on a symbol. Values are never
// mutated after construction.
type TradingSignal struct {
	Symbol       string            `json:"symbol" yaml:"symbol"`
	Type         SignalType        `json:"signal_type" yaml:"signal_type"`
	Confidence   float64           `json:"confidence" yaml:"confidence"`
	StrategyName string            `json:"strategy_name" yaml:"strategy_name"`
	Timestamp    time.Time         `json:"timestamp" yaml:"timestamp"`
	Metadata     map[string]string `json:"metadata,omitempty" yaml:"metadata"`
}
