package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel is a single (price, size) pair. A zero size marks a removed
// level when the pair appears inside a Delta.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// Delta is the set of price levels changed by one book message, per side.
type Delta struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

func (d *Delta) append(side Side, level PriceLevel) {
	if side == Side_Bid {
		d.Bids = append(d.Bids, level)
	} else {
		d.Asks = append(d.Asks, level)
	}
}

// BookUpdate is delivered to the sink after each applied book message.
// When Forced is true the consumer must replace its whole copy of the book
// with a fresh snapshot instead of patching levels from Delta.
type BookUpdate struct {
	Feed             string
	Symbol           string
	Forced           bool
	Delta            Delta
	Timestamp        time.Time
	ReceiptTimestamp time.Time
}

type Trade struct {
	Feed             string
	Symbol           string
	Side             TradeSide
	Amount           decimal.Decimal
	Price            decimal.Decimal
	TradeID          string
	Timestamp        time.Time
	ReceiptTimestamp time.Time
}

// Quote is the venue-reported top of book.
type Quote struct {
	Feed             string
	Symbol           string
	Bid              decimal.Decimal
	Ask              decimal.Decimal
	Timestamp        time.Time
	ReceiptTimestamp time.Time
}

type Funding struct {
	Feed             string
	Symbol           string
	Rate             decimal.Decimal
	RateDaily        decimal.Decimal
	Interval         time.Time
	Timestamp        time.Time
	ReceiptTimestamp time.Time
}

type OpenInterest struct {
	Feed             string
	Symbol           string
	OpenInterest     int64
	Timestamp        time.Time
	ReceiptTimestamp time.Time
}
