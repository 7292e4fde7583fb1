package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pisces"

// Collector exposes a Stats recorder as Prometheus metrics.
type Collector struct {
	stats   *Stats
	pending func() int

	messagesSent     *prometheus.Desc
	messagesReceived *prometheus.Desc
	bytesSent        *prometheus.Desc
	bytesReceived    *prometheus.Desc
	rateLimited      *prometheus.Desc
	sendFailed       *prometheus.Desc
	reconnects       *prometheus.Desc
	timeouts         *prometheus.Desc
	heartbeats       *prometheus.Desc
	connected        *prometheus.Desc
	latency          *prometheus.Desc
	pendingRequests  *prometheus.Desc
}

// NewCollector creates a collector labelled with the session id. pending
// reports the current pending-request count and may be nil.
func NewCollector(s *Stats, session string, pending func() int) *Collector {
	labels := prometheus.Labels{"session": session}
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "client", name), help, variable, labels)
	}

	return &Collector{
		stats:            s,
		pending:          pending,
		messagesSent:     desc("messages_sent_total", "Business frames handed to the transport."),
		messagesReceived: desc("messages_received_total", "Business frames received."),
		bytesSent:        desc("bytes_sent_total", "Encoded bytes of business frames sent."),
		bytesReceived:    desc("bytes_received_total", "Encoded bytes of business frames received."),
		rateLimited:      desc("rate_limited_total", "Sends rejected by the rate limiter."),
		sendFailed:       desc("send_failed_total", "Frames refused by the transport."),
		reconnects:       desc("reconnects_total", "Successful reconnections."),
		timeouts:         desc("request_timeouts_total", "Requests that expired without a response."),
		heartbeats:       desc("heartbeats_total", "Heartbeat frames by direction.", "direction"),
		connected:        desc("connected", "1 while the session is connected."),
		latency:          desc("response_latency_seconds", "Average request to response latency."),
		pendingRequests:  desc("pending_requests", "Requests awaiting a response."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.messagesSent
	ch <- c.messagesReceived
	ch <- c.bytesSent
	ch <- c.bytesReceived
	ch <- c.rateLimited
	ch <- c.sendFailed
	ch <- c.reconnects
	ch <- c.timeouts
	ch <- c.heartbeats
	ch <- c.connected
	ch <- c.latency
	ch <- c.pendingRequests
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.stats.Snapshot()

	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	counter(c.messagesSent, snap.MessagesSent)
	counter(c.messagesReceived, snap.MessagesReceived)
	counter(c.bytesSent, snap.BytesSent)
	counter(c.bytesReceived, snap.BytesReceived)
	counter(c.rateLimited, snap.RateLimited)
	counter(c.sendFailed, snap.SendFailed)
	counter(c.reconnects, snap.Reconnects)
	counter(c.timeouts, snap.Timeouts)
	counter(c.heartbeats, snap.HeartbeatsSent, "sent")
	counter(c.heartbeats, snap.HeartbeatsReceived, "received")

	connected := 0.0
	if !snap.ConnectedAt.IsZero() {
		connected = 1
	}
	ch <- prometheus.MustNewConstMetric(c.connected, prometheus.GaugeValue, connected)
	ch <- prometheus.MustNewConstMetric(c.latency, prometheus.GaugeValue, snap.AverageLatency.Seconds())

	pending := 0
	if c.pending != nil {
		pending = c.pending()
	}
	ch <- prometheus.MustNewConstMetric(c.pendingRequests, prometheus.GaugeValue, float64(pending))
}

var _ prometheus.Collector = (*Collector)(nil)
