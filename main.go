package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spooky-finn/go-bitmex-feed/config"
	"github.com/spooky-finn/go-bitmex-feed/domain"
	promclient "github.com/spooky-finn/go-bitmex-feed/infrastructure/prometheus"
	"github.com/spooky-finn/go-bitmex-feed/logger"
	"github.com/spooky-finn/go-bitmex-feed/usecase"
)

var log = logger.Get("main")

func main() {
	conf := config.Load()

	go promclient.StartPromClientServer(conf.MetricsAddr)

	queue := domain.NewEventQueue(&logSink{})
	queue.Start()

	feed := usecase.NewMarketFeedUseCase(conf, queue)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := feed.Start(ctx); err != nil {
		log.Fatalf("failed to start feed: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	feed.Stop()
	queue.Stop()
}

// logSink prints every normalized event, mostly useful with a terminal
// attached. Real consumers plug their own domain.Sink into the queue.
type logSink struct{}

func (s *logSink) OnTrade(t *domain.Trade) {
	log.Infof("trade %s %s %s @ %s", t.Symbol, t.Side, t.Amount, t.Price)
}

func (s *logSink) OnBookUpdate(u *domain.BookUpdate) {
	if u.Forced {
		log.Infof("book %s replaced", u.Symbol)
		return
	}
	log.Debugf("book %s delta: %d bids, %d asks", u.Symbol, len(u.Delta.Bids), len(u.Delta.Asks))
}

func (s *logSink) OnQuote(q *domain.Quote) {
	log.Debugf("quote %s bid=%s ask=%s", q.Symbol, q.Bid, q.Ask)
}

func (s *logSink) OnFunding(f *domain.Funding) {
	log.Infof("funding %s rate=%s daily=%s", f.Symbol, f.Rate, f.RateDaily)
}

func (s *logSink) OnOpenInterest(oi *domain.OpenInterest) {
	log.Infof("open interest %s %d", oi.Symbol, oi.OpenInterest)
}
