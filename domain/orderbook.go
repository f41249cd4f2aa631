package domain

import (
	"fmt"
	"time"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/shopspring/decimal"

	"github.com/spooky-finn/go-bitmex-feed/logger"
)

var log = logger.Get("engine")

type Action string

const (
	Action_Partial Action = "partial"
	Action_Insert  Action = "insert"
	Action_Update  Action = "update"
	Action_Delete  Action = "delete"
)

// BookEntry is one row of a book diff message. Price is venue-reported only
// for partial and insert actions; for update and delete it is resolved
// through the order-id index.
type BookEntry struct {
	Symbol  string
	Side    Side
	OrderID int64
	Price   decimal.Decimal
	Size    decimal.Decimal
}

// BookSnapshot is a price-sorted copy of one symbol's book, best levels
// first on both sides.
type BookSnapshot struct {
	Symbol string
	Bids   []PriceLevel
	Asks   []PriceLevel
}

type bookSide struct {
	levels *treemap.Map              // price -> size
	orders map[int64]decimal.Decimal // order id -> price
}

func newBookSide(comparator func(a, b interface{}) int) *bookSide {
	return &bookSide{
		levels: treemap.NewWith(comparator),
		orders: make(map[int64]decimal.Decimal),
	}
}

type symbolBook struct {
	bids *bookSide
	asks *bookSide

	// Set on the first partial since the last reset. Diffs arriving while
	// false are meaningless and dropped, per venue documentation.
	partialReceived bool
}

func newSymbolBook() *symbolBook {
	return &symbolBook{
		bids: newBookSide(descendingDecimal),
		asks: newBookSide(ascendingDecimal),
	}
}

func (b *symbolBook) side(s Side) *bookSide {
	if s == Side_Bid {
		return b.bids
	}
	return b.asks
}

func (b *symbolBook) clear() {
	b.bids = newBookSide(descendingDecimal)
	b.asks = newBookSide(ascendingDecimal)
}

// BookEngine reconstructs L2 books from per-order diff messages. It owns all
// per-symbol state and must be driven from a single goroutine: the strict
// arrival-order processing of one stream is what keeps the order-id index
// and the level map consistent without locks.
type BookEngine struct {
	feed  string
	books map[string]*symbolBook
}

func NewBookEngine(feed string) *BookEngine {
	return &BookEngine{
		feed:  feed,
		books: make(map[string]*symbolBook),
	}
}

// Reset drops every symbol's book and index and re-arms partial gating.
// Called before each (re)subscription cycle. Idempotent.
func (e *BookEngine) Reset() {
	e.books = make(map[string]*symbolBook)
}

// ResetSymbol drops one symbol's state so the next partial re-seeds it.
func (e *BookEngine) ResetSymbol(symbol string) {
	delete(e.books, symbol)
}

// Bootstrapped reports whether the symbol has received its partial since
// the last reset.
func (e *BookEngine) Bootstrapped(symbol string) bool {
	book, ok := e.books[symbol]
	return ok && book.partialReceived
}

// OpenBooks is the number of symbols with a bootstrapped book.
func (e *BookEngine) OpenBooks() int {
	n := 0
	for _, book := range e.books {
		if book.partialReceived {
			n++
		}
	}
	return n
}

// Apply mutates the symbol's book according to one diff message and returns
// the resulting update, or nil when the message is discarded (diff before
// partial, or an unexpected action tag).
//
// An update/delete entry referencing an unknown order id fails the whole
// message with ErrUnknownOrderID before any mutation, leaving the symbol's
// state untouched.
func (e *BookEngine) Apply(symbol string, action Action, entries []BookEntry, eventTime, receiptTime time.Time) (*BookUpdate, error) {
	book, ok := e.books[symbol]
	if !ok {
		book = newSymbolBook()
		e.books[symbol] = book
	}

	forced := false
	if !book.partialReceived {
		if action != Action_Partial {
			log.Debugf("discarding %s for %s received before partial", action, symbol)
			return nil, nil
		}
		book.partialReceived = true
	}

	delta := Delta{}

	switch action {
	case Action_Partial:
		// A partial is a full replace of the book, never a patch.
		book.clear()
		forced = true
		for _, entry := range entries {
			side := book.side(entry.Side)
			side.levels.Put(entry.Price, entry.Size)
			side.orders[entry.OrderID] = entry.Price
		}

	case Action_Insert:
		for _, entry := range entries {
			side := book.side(entry.Side)
			side.levels.Put(entry.Price, entry.Size)
			side.orders[entry.OrderID] = entry.Price
			delta.append(entry.Side, PriceLevel{Price: entry.Price, Size: entry.Size})
		}

	case Action_Update:
		prices, err := book.resolve(symbol, entries)
		if err != nil {
			return nil, err
		}
		for i, entry := range entries {
			side := book.side(entry.Side)
			side.levels.Put(prices[i], entry.Size)
			side.orders[entry.OrderID] = prices[i]
			delta.append(entry.Side, PriceLevel{Price: prices[i], Size: entry.Size})
		}

	case Action_Delete:
		prices, err := book.resolve(symbol, entries)
		if err != nil {
			return nil, err
		}
		for i, entry := range entries {
			side := book.side(entry.Side)
			delete(side.orders, entry.OrderID)
			side.levels.Remove(prices[i])
			delta.append(entry.Side, PriceLevel{Price: prices[i], Size: decimal.Zero})
		}

	default:
		log.Warnf("unexpected book action %q for %s", action, symbol)
		return nil, nil
	}

	return &BookUpdate{
		Feed:             e.feed,
		Symbol:           symbol,
		Forced:           forced,
		Delta:            delta,
		Timestamp:        eventTime,
		ReceiptTimestamp: receiptTime,
	}, nil
}

// resolve maps every entry's order id to its live price. Resolution happens
// before any mutation so a malformed message cannot partially apply.
func (b *symbolBook) resolve(symbol string, entries []BookEntry) ([]decimal.Decimal, error) {
	prices := make([]decimal.Decimal, len(entries))
	for i, entry := range entries {
		price, ok := b.side(entry.Side).orders[entry.OrderID]
		if !ok {
			return nil, fmt.Errorf("%s %s order %d: %w", symbol, entry.Side, entry.OrderID, ErrUnknownOrderID)
		}
		prices[i] = price
	}
	return prices, nil
}

// Snapshot copies the symbol's book, best levels first. A non-positive
// limit returns full depth. Returns nil for an unknown symbol.
func (e *BookEngine) Snapshot(symbol string, limit int) *BookSnapshot {
	book, ok := e.books[symbol]
	if !ok {
		return nil
	}

	return &BookSnapshot{
		Symbol: symbol,
		Bids:   copyLevels(book.bids.levels, limit),
		Asks:   copyLevels(book.asks.levels, limit),
	}
}

func copyLevels(levels *treemap.Map, limit int) []PriceLevel {
	n := levels.Size()
	if limit > 0 && limit < n {
		n = limit
	}

	result := make([]PriceLevel, 0, n)
	it := levels.Iterator()
	for it.Next() && len(result) < n {
		result = append(result, PriceLevel{
			Price: it.Key().(decimal.Decimal),
			Size:  it.Value().(decimal.Decimal),
		})
	}
	return result
}

func ascendingDecimal(a, b interface{}) int {
	return a.(decimal.Decimal).Cmp(b.(decimal.Decimal))
}

func descendingDecimal(a, b interface{}) int {
	return b.(decimal.Decimal).Cmp(a.(decimal.Decimal))
}
