package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/spooky-finn/go-bitmex-feed/config"
	"github.com/spooky-finn/go-bitmex-feed/domain"
	"github.com/spooky-finn/go-bitmex-feed/logger"
	"github.com/spooky-finn/go-bitmex-feed/provider/bitmex"
)

var log = logger.Get("feed")

const bookReportInterval = 30 * time.Second

// MarketFeedUseCase wires the venue adapter to the book engine and drives
// the whole feed lifecycle: validate configured symbols, subscribe, then
// pump messages one at a time into the handler. The pump goroutine is the
// only one that touches the engine; reset markers arrive through the same
// stream as data, so a reconnect never mutates the books concurrently.
type MarketFeedUseCase struct {
	conf         *config.Config
	engine       *domain.BookEngine
	syncAPI      *bitmex.BitmexSyncAPI
	streamClient *bitmex.BitmexStreamClient
	handler      *bitmex.MessageHandler

	lastReport time.Time
}

func NewMarketFeedUseCase(conf *config.Config, sink domain.Sink) *MarketFeedUseCase {
	engine := domain.NewBookEngine(bitmex.FeedID)
	handler := bitmex.NewMessageHandler(engine, sink)
	streamClient := bitmex.NewBitmexStreamClient(conf.WsEndpoint, conf.Channels, conf.Symbols)

	// A desynchronized book needs a fresh partial, which the venue only
	// sends on subscription. Resubscribing enqueues a reset marker into the
	// stream the pump is currently draining, so it must run off the pump
	// goroutine.
	handler.OnDesync = func(symbol string) {
		log.Warnf("resubscribing after desync of %s", symbol)
		go func() {
			if err := streamClient.Resubscribe(); err != nil {
				log.Errorf("failed to resubscribe: %v", err)
			}
		}()
	}

	return &MarketFeedUseCase{
		conf:         conf,
		engine:       engine,
		syncAPI:      bitmex.NewBitmexSyncAPI(conf.RestEndpoint),
		streamClient: streamClient,
		handler:      handler,
		lastReport:   time.Now(),
	}
}

// Start validates configuration against the venue and begins streaming.
// A validation failure is fatal and happens before any subscription.
func (uc *MarketFeedUseCase) Start(ctx context.Context) error {
	if err := uc.syncAPI.ValidateSymbols(ctx, uc.conf.Symbols); err != nil {
		return err
	}

	if err := uc.streamClient.Connect(); err != nil {
		return err
	}

	go uc.pump(ctx)
	return nil
}

func (uc *MarketFeedUseCase) Stop() {
	uc.streamClient.Close()
}

// pump is the single consumer of the inbound stream. Handler errors are
// local to one message and never stop the loop.
func (uc *MarketFeedUseCase) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-uc.streamClient.Messages():
			if !ok {
				return
			}
			uc.process(msg)
		}
	}
}

func (uc *MarketFeedUseCase) process(msg bitmex.StreamMessage) {
	if msg.Reset {
		uc.handler.Reset()
		return
	}

	if config.DebugMode {
		log.Debugf("handling message: %s", string(msg.Data))
	}

	if err := uc.handler.Handle(msg.Data); err != nil {
		log.Errorf("failed to handle message: %v", err)
	}

	if time.Since(uc.lastReport) >= bookReportInterval {
		uc.lastReport = time.Now()
		uc.reportBooks()
	}
}

func (uc *MarketFeedUseCase) reportBooks() {
	for _, symbol := range uc.conf.Symbols {
		log.Info(uc.bookSummary(symbol))
	}
}

func (uc *MarketFeedUseCase) bookSummary(symbol string) string {
	snapshot := uc.engine.Snapshot(symbol, 1)
	if snapshot == nil || len(snapshot.Bids) == 0 || len(snapshot.Asks) == 0 {
		return fmt.Sprintf("%s: no book", symbol)
	}

	bid, ask := snapshot.Bids[0], snapshot.Asks[0]
	return fmt.Sprintf("%s: bid %s (%s) ask %s (%s)",
		symbol, bid.Price, bid.Size, ask.Price, ask.Size)
}
