package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	DispatchLatency    = metric.NewHistogram("1m1s")
	AdvertsPerSecond   = metric.NewCounter("10s1s")
	RecvAdvertsPerSec  = metric.NewCounter("10s1s")
	DroppedAdverts     = metric.NewCounter("1m10s")
	Recomputes         = metric.NewCounter("1m10s")
	TriggeredUpdates   = metric.NewCounter("1m10s")
	SentBytesPerSecond = metric.NewCounter("10s1s")
	RecvBytesPerSecond = metric.NewCounter("10s1s")
)

func init() {
	http.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	expvar.Publish("dvnet:Adverts/s", AdvertsPerSecond)
	expvar.Publish("dvnet:RecvAdverts/s", RecvAdvertsPerSec)
	expvar.Publish("dvnet:DroppedAdverts", DroppedAdverts)
	expvar.Publish("dvnet:Recomputes", Recomputes)
	expvar.Publish("dvnet:TriggeredUpdates", TriggeredUpdates)
	expvar.Publish("dvnet:SentBytes/s", SentBytesPerSecond)
	expvar.Publish("dvnet:RecvBytes/s", RecvBytesPerSecond)
	expvar.Publish("dvnet:DispatchLatency (µs)", DispatchLatency)
}
