package main

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors for the clocking server, exposed at /metrics on the
// status API.
var (
	metricConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sutera_clocking_connections",
		Help: "Currently open client connections.",
	})
	metricMessagesIn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sutera_clocking_messages_in_total",
		Help: "Logical messages decoded from clients.",
	})
	metricMessagesOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sutera_clocking_messages_out_total",
		Help: "Logical messages written to clients.",
	})
	metricDesyncs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sutera_clocking_desync_total",
		Help: "Unfragmented diagnostics emitted by the frame codec.",
	})
	metricInstances = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sutera_clocking_instances",
		Help: "Live instance actors.",
	})
	metricPlayers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sutera_clocking_players",
		Help: "Players currently joined to any instance.",
	})
)

// RunMetrics logs a one-line summary every interval until ctx is cancelled;
// an interval with no live instance and no player logs nothing.
// The same numbers are scrapeable at /metrics; this loop is for operators
// tailing the process log.
func RunMetrics(ctx context.Context, mgr *Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			infos := mgr.Snapshot()
			players := 0
			for _, info := range infos {
				players += info.Players
			}
			if len(infos) > 0 || players > 0 {
				log.Printf("[metrics] instances=%d players=%d", len(infos), players)
			}
		}
	}
}
