package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSent    = "sent"
	outcomeSkipped = "skipped_empty"
	outcomeError   = "error"
)

var (
	dispatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_dispatches_total",
		Help: "Dispatch attempts by notification type and outcome.",
	}, []string{"type", "outcome"})

	tokensDeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notify_tokens_delivered_total",
		Help: "Tokens accepted by FCM across all multicast calls.",
	})

	tokensFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notify_tokens_failed_total",
		Help: "Per-token delivery rejections reported by FCM.",
	})
)
