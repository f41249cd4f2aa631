package bitmex

import (
	"errors"
	"time"

	"github.com/spooky-finn/go-bitmex-feed/domain"
	promclient "github.com/spooky-finn/go-bitmex-feed/infrastructure/prometheus"
	"github.com/spooky-finn/go-bitmex-feed/logger"
)

var log = logger.Get("bitmex")

// MessageHandler routes every decoded stream message to the book engine or
// to the matching normalizer and delivers the resulting events to the sink.
// It keeps no buffering: each message is processed to completion before the
// next is accepted, which fixes the delivery order seen by the sink.
type MessageHandler struct {
	engine *domain.BookEngine
	sink   domain.Sink

	// OnDesync is called after the handler re-arms a symbol whose book lost
	// sync. The caller decides how to obtain a fresh partial, typically by
	// resubscribing.
	OnDesync func(symbol string)
}

func NewMessageHandler(engine *domain.BookEngine, sink domain.Sink) *MessageHandler {
	return &MessageHandler{
		engine: engine,
		sink:   sink,
	}
}

// Reset starts a new subscription cycle: every book is dropped and will be
// re-seeded by the partials that follow. Must run on the same goroutine as
// Handle.
func (h *MessageHandler) Reset() {
	log.Infof("new subscription cycle, dropping all books")
	h.engine.Reset()
	promclient.OpenBooksGauge.Set(0)
}

func (h *MessageHandler) Handle(raw []byte) error {
	receipt := time.Now().UTC()
	env := ClassifyMessage(raw)

	switch env.Kind {
	case KindInfo:
		log.Infof("info message: %s", env.Info)
	case KindSubscribeAck:
		if !env.Success {
			log.Errorf("subscribe failed: %s", string(env.Raw()))
		}
	case KindVenueError:
		log.Errorf("error message from exchange: %s", env.VenueError)
	case KindTable:
		return h.handleTable(env, receipt)
	default:
		log.Warnf("unhandled message: %s", string(env.Raw()))
	}

	return nil
}

func (h *MessageHandler) handleTable(env Envelope, receipt time.Time) error {
	promclient.TableMessagesCounter.WithLabelValues(env.Table).Inc()

	switch env.Table {
	case ChannelTrade:
		return h.handleTrade(env, receipt)
	case ChannelBook:
		return h.handleBook(env, receipt)
	case ChannelQuote:
		return h.handleQuote(env, receipt)
	case ChannelFunding:
		return h.handleFunding(env, receipt)
	case ChannelInstrument:
		return h.handleInstrument(env, receipt)
	default:
		log.Warnf("unhandled table %q", env.Table)
		return nil
	}
}

func (h *MessageHandler) handleBook(env Envelope, receipt time.Time) error {
	rows, err := decodeRows[bookRow](env.Raw())
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	// All rows of one message belong to the same symbol.
	symbol := rows[0].Symbol
	entries := make([]domain.BookEntry, len(rows))
	for i, row := range rows {
		entries[i] = row.toEntry()
	}

	update, err := h.engine.Apply(symbol, env.Action, entries, receipt, receipt)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownOrderID) {
			// The book is desynchronized. Re-arm the gate so the symbol is
			// rebuilt from the next partial; the stream itself keeps going.
			log.Errorf("book desynchronized: %v", err)
			promclient.BookResyncCounter.Inc()
			h.engine.ResetSymbol(symbol)
			promclient.OpenBooksGauge.Set(float64(h.engine.OpenBooks()))

			if h.OnDesync != nil {
				h.OnDesync(symbol)
			}
			return nil
		}
		return err
	}

	if update == nil {
		if env.Action == domain.Action_Insert || env.Action == domain.Action_Update || env.Action == domain.Action_Delete {
			promclient.PreSnapshotDiscardCounter.Inc()
		}
		return nil
	}

	promclient.OpenBooksGauge.Set(float64(h.engine.OpenBooks()))
	h.sink.OnBookUpdate(update)
	return nil
}

func (h *MessageHandler) handleTrade(env Envelope, receipt time.Time) error {
	rows, err := decodeRows[tradeRow](env.Raw())
	if err != nil {
		return err
	}

	for _, row := range rows {
		h.sink.OnTrade(&domain.Trade{
			Feed:             FeedID,
			Symbol:           row.Symbol,
			Side:             domain.TradeSideFromToken(row.Side),
			Amount:           row.Size,
			Price:            row.Price,
			TradeID:          row.TrdMatchID,
			Timestamp:        row.Timestamp,
			ReceiptTimestamp: receipt,
		})
	}
	return nil
}

func (h *MessageHandler) handleQuote(env Envelope, receipt time.Time) error {
	rows, err := decodeRows[quoteRow](env.Raw())
	if err != nil {
		return err
	}

	for _, row := range rows {
		h.sink.OnQuote(&domain.Quote{
			Feed:             FeedID,
			Symbol:           row.Symbol,
			Bid:              row.BidPrice,
			Ask:              row.AskPrice,
			Timestamp:        row.Timestamp,
			ReceiptTimestamp: receipt,
		})
	}
	return nil
}

func (h *MessageHandler) handleFunding(env Envelope, receipt time.Time) error {
	rows, err := decodeRows[fundingRow](env.Raw())
	if err != nil {
		return err
	}

	for _, row := range rows {
		h.sink.OnFunding(&domain.Funding{
			Feed:             FeedID,
			Symbol:           row.Symbol,
			Rate:             row.FundingRate,
			RateDaily:        row.FundingRateDaily,
			Interval:         row.FundingInterval,
			Timestamp:        row.Timestamp,
			ReceiptTimestamp: receipt,
		})
	}
	return nil
}

func (h *MessageHandler) handleInstrument(env Envelope, receipt time.Time) error {
	rows, err := decodeRows[instrumentRow](env.Raw())
	if err != nil {
		return err
	}

	for _, row := range rows {
		if row.OpenInterest == nil {
			continue
		}
		h.sink.OnOpenInterest(&domain.OpenInterest{
			Feed:             FeedID,
			Symbol:           row.Symbol,
			OpenInterest:     *row.OpenInterest,
			Timestamp:        row.Timestamp,
			ReceiptTimestamp: receipt,
		})
	}
	return nil
}
