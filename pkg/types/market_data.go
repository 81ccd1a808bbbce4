package types

import "time"

// Tick is a single price observation delivered by the market-data feed.
type Tick struct {
	Symbol    string    `json:"symbol" yaml:"symbol"`
	Price     float64   `json:"price" yaml:"price"`
	Volume    float64   `json:"volume,omitempty" yaml:"volume"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// SymbolProfile carries static reference data for an instrument.
type SymbolProfile struct {
	Sector    string  `json:"sector" yaml:"sector"`
	MarketCap float64 `json:"market_cap" yaml:"market_cap"`
}
