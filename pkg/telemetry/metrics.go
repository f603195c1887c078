// Package telemetry exposes Prometheus metrics for the messaging core.
// Counters are bumped by an events subscriber and by the HTTP layer;
// the registry is served on /metrics by promhttp.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"causerie/pkg/events"
)

var (
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "causerie_messages_sent_total",
		Help: "Messages persisted, by discussion kind.",
	}, []string{"kind"})

	MessagesReported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "causerie_messages_reported_total",
		Help: "Report calls that recorded a new signaler.",
	})

	MessagesAutoDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "causerie_messages_auto_deleted_total",
		Help: "Messages removed by the report threshold rule.",
	})

	ContactsRequested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "causerie_contacts_requested_total",
		Help: "Contact requests created.",
	})

	RosterMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "causerie_roster_mutations_total",
		Help: "Roster mutations, by operation.",
	}, []string{"op"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "causerie_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})
)

// SubscribeEvents registers the counter-bumping event handler.
func SubscribeEvents() {
	events.Subscribe(func(e events.Event) {
		switch e.Type {
		case events.ContactRequested:
			ContactsRequested.Inc()
		case events.MessageReported:
			MessagesReported.Inc()
		case events.MessageAutoDeleted:
			MessagesAutoDeleted.Inc()
		case events.MemberAdded:
			RosterMutations.WithLabelValues("member_added").Inc()
		case events.MemberRemoved:
			RosterMutations.WithLabelValues("member_removed").Inc()
		case events.DiscussionDeleted:
			RosterMutations.WithLabelValues("discussion_deleted").Inc()
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request latency labeled by method and status.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		httpDuration.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Observe(time.Since(start).Seconds())
	})
}
