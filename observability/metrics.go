// Package observability exposes the pipeline counters of the client and the
// development backend in Prometheus text format.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"

	"github.com/VictoriaMetrics/metrics"
)

const prefix = "classroom_live"

// Counter names are built with their labels inline, the way VictoriaMetrics expects.
func counterName(name string, labels ...string) string {
	if len(labels) == 0 {
		return prefix + "_" + name
	}
	out := prefix + "_" + name + "{"
	for i := 0; i+1 < len(labels); i += 2 {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%s=%q", labels[i], labels[i+1])
	}
	return out + "}"
}

var touched sync.Map

func counter(name string, labels ...string) *metrics.Counter {
	full := counterName(name, labels...)
	touched.Store(full, struct{}{})
	return metrics.GetOrCreateCounter(full)
}

func inc(name string, labels ...string) {
	counter(name, labels...).Inc()
}

// RecordHistoryFetch counts one history page request of a scope type
func RecordHistoryFetch(scopeType string, success bool) {
	inc("history_fetches_total", "scope", scopeType, "success", strconv.FormatBool(success))
}

func RecordStaleResponse(scopeType string) {
	inc("stale_responses_total", "scope", scopeType)
}

func RecordLiveDelivery(scopeType string) {
	inc("live_deliveries_total", "scope", scopeType)
}

func RecordDecodeFailure(scopeType string) {
	inc("decode_failures_total", "scope", scopeType)
}

func RecordReconnect(scopeType string) {
	inc("reconnects_total", "scope", scopeType)
}

func RecordSend(success bool) {
	inc("sends_total", "success", strconv.FormatBool(success))
}

// RecordPublished counts frames the development broker fanned out
func RecordPublished(destinationType string, delivered int) {
	counter("broker_published_total", "destination", destinationType).Add(delivered)
}

func RecordDroppedFrame() {
	inc("broker_dropped_frames_total")
}

func RecordCensored() {
	inc("censored_messages_total")
}

// Value reads a counter, zero if it was never touched.
func Value(name string, labels ...string) uint64 {
	return metrics.GetOrCreateCounter(counterName(name, labels...)).Get()
}

// Snapshot returns every classroom_live counter by full name
func Snapshot() map[string]uint64 {
	out := make(map[string]uint64)
	touched.Range(func(key, _ any) bool {
		name := key.(string)
		out[name] = metrics.GetOrCreateCounter(name).Get()
		return true
	})
	return out
}

// SortedNames orders the keys of a snapshot for display.
func SortedNames(snapshot map[string]uint64) []string {
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func WritePrometheus(w io.Writer) {
	metrics.WritePrometheus(w, true)
}
