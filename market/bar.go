package market

import "time"

// Bar is a one-second OHLCV bar with the buy/sell volume split.
// Delta is BuyVolume minus SellVolume.
type Bar struct {
	Time       time.Time `json:"time"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     uint64    `json:"volume"`
	BuyVolume  uint64    `json:"buy_volume"`
	SellVolume uint64    `json:"sell_volume"`
	Delta      int64     `json:"delta"`
	TradeCount uint64    `json:"trade_count"`
	Symbol     string    `json:"symbol"`
}

// Range returns high minus low.
func (b Bar) Range() float64 { return b.High - b.Low }

// Bullish reports whether the bar closed above its open.
func (b Bar) Bullish() bool { return b.Close > b.Open }

// TypicalPrice is (high+low+close)/3, used for VWAP.
func (b Bar) TypicalPrice() float64 { return (b.High + b.Low + b.Close) / 3 }
