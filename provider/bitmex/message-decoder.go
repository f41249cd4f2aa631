package bitmex

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/spooky-finn/go-bitmex-feed/domain"
)

const FeedID = "BITMEX"

// Channel names double as the table tags of inbound data messages.
const (
	ChannelTrade      = "trade"
	ChannelBook       = "orderBookL2"
	ChannelQuote      = "quote"
	ChannelFunding    = "funding"
	ChannelInstrument = "instrument"
)

type MessageKind int

const (
	KindUnknown MessageKind = iota
	KindInfo
	KindSubscribeAck
	KindVenueError
	KindTable
)

// Envelope is the classified form of one raw stream message. For KindTable
// the raw payload is kept for the table-specific decode.
type Envelope struct {
	Kind MessageKind

	Info       string
	Subscribe  string
	Success    bool
	VenueError string

	Table  string
	Action domain.Action

	raw []byte
}

// ClassifyMessage inspects the control keys of a raw message without a full
// decode. Control keys take priority over table data, in the venue's
// documented order: info, subscribe ack, error, then tables.
func ClassifyMessage(raw []byte) Envelope {
	parsed := gjson.ParseBytes(raw)

	if v := parsed.Get("info"); v.Exists() {
		return Envelope{Kind: KindInfo, Info: v.String(), raw: raw}
	}
	if v := parsed.Get("subscribe"); v.Exists() {
		return Envelope{
			Kind:      KindSubscribeAck,
			Subscribe: v.String(),
			Success:   parsed.Get("success").Bool(),
			raw:       raw,
		}
	}
	if v := parsed.Get("error"); v.Exists() {
		return Envelope{Kind: KindVenueError, VenueError: v.String(), raw: raw}
	}
	if v := parsed.Get("table"); v.Exists() {
		return Envelope{
			Kind:   KindTable,
			Table:  v.String(),
			Action: domain.Action(parsed.Get("action").String()),
			raw:    raw,
		}
	}

	return Envelope{Kind: KindUnknown, raw: raw}
}

// Raw returns the original message bytes, for diagnostics.
func (e Envelope) Raw() []byte { return e.raw }

// Table rows. Price and size fields decode into decimals straight from the
// JSON literal, so no digits are lost to binary floats. Timestamps are
// ISO-8601 with a Z suffix and parse to UTC.

type bookRow struct {
	Symbol string              `json:"symbol"`
	ID     int64               `json:"id"`
	Side   string              `json:"side"`
	Size   decimal.Decimal     `json:"size"`
	Price  decimal.NullDecimal `json:"price"`
}

type tradeRow struct {
	Timestamp  time.Time       `json:"timestamp"`
	Symbol     string          `json:"symbol"`
	Side       string          `json:"side"`
	Size       decimal.Decimal `json:"size"`
	Price      decimal.Decimal `json:"price"`
	TrdMatchID string          `json:"trdMatchID"`
}

type quoteRow struct {
	Timestamp time.Time       `json:"timestamp"`
	Symbol    string          `json:"symbol"`
	BidPrice  decimal.Decimal `json:"bidPrice"`
	AskPrice  decimal.Decimal `json:"askPrice"`
}

type fundingRow struct {
	Timestamp        time.Time       `json:"timestamp"`
	Symbol           string          `json:"symbol"`
	FundingInterval  time.Time       `json:"fundingInterval"`
	FundingRate      decimal.Decimal `json:"fundingRate"`
	FundingRateDaily decimal.Decimal `json:"fundingRateDaily"`
}

// instrumentRow ignores the table's many other fields on purpose; only
// entries that actually carry openInterest produce an event.
type instrumentRow struct {
	Timestamp    time.Time `json:"timestamp"`
	Symbol       string    `json:"symbol"`
	OpenInterest *int64    `json:"openInterest"`
}

func decodeRows[T any](raw []byte) ([]T, error) {
	var msg struct {
		Data []T `json:"data"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	return msg.Data, nil
}

func (r bookRow) toEntry() domain.BookEntry {
	entry := domain.BookEntry{
		Symbol:  r.Symbol,
		Side:    domain.SideFromToken(r.Side),
		OrderID: r.ID,
		Size:    r.Size,
	}
	if r.Price.Valid {
		entry.Price = r.Price.Decimal
	}
	return entry
}
