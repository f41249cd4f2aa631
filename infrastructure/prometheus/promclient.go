package promclient

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spooky-finn/go-bitmex-feed/logger"
)

var log = logger.Get("promclient")

var TableMessagesCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bitmex_table_messages_total",
		Help: "data messages handled, by table",
	},
	[]string{"table"},
)

var PreSnapshotDiscardCounter = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "bitmex_pre_snapshot_discards_total",
		Help: "book diffs discarded because they arrived before the partial",
	},
)

var BookResyncCounter = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "bitmex_book_resyncs_total",
		Help: "books re-armed after an unknown order id",
	},
)

var OpenBooksGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "bitmex_open_order_books",
		Help: "bootstrapped order books",
	},
)

func StartPromClientServer(addr string) {
	reg := prometheus.NewRegistry()
	promHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	reg.MustRegister(TableMessagesCounter)
	reg.MustRegister(PreSnapshotDiscardCounter)
	reg.MustRegister(BookResyncCounter)
	reg.MustRegister(OpenBooksGauge)
	reg.MustRegister(collectors.NewGoCollector())

	http.Handle("/metrics", promHandler)
	log.Infof("prometheus server listening at %s", addr)

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
