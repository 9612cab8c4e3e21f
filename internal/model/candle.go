package model

import "time"

// Candle is one closed 1-minute OHLCV bar. All prices are float64 USD;
// the string→float conversion happens exactly once, at feed decode.
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// KlineEvent is a single kline update from the exchange stream.
// IsClosed reports whether the bar is final; the engine acts only on
// closed bars and ignores intermediate updates.
type KlineEvent struct {
	Symbol   string `json:"symbol"`
	Candle   Candle `json:"candle"`
	IsClosed bool   `json:"is_closed"`
}

// PricePoint is one persisted price observation, written once per
// ready engine cycle.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}
