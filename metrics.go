package wsapp

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/One-com/gone/log"
	"github.com/One-com/gone/metric"
	"github.com/One-com/gone/metric/sink/statsd"

	"github.com/One-com/wsapp/config"
)

// defaultMetricsApplication is the first part of the statsd prefix when none is configured.
const defaultMetricsApplication = "wsapp"

// metricsService pushes the registered metrics to statsd.
// It is a daemon.Server using no file descriptors.
type metricsService struct {
	Addr     string // statsd server, "!" for stdout
	Prefix   string
	Interval time.Duration
}

// loadMetricsConfig returns nil if no statsd address is configured.
func loadMetricsConfig(cfg *config.MetricsConfig) (srv *metricsService, err error) {

	if cfg == nil || cfg.Address == "" {
		return
	}

	app := cfg.Application
	if app == "" {
		app = defaultMetricsApplication
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = app + "." + metricsIdent(cfg.Ident)
	}

	srv = &metricsService{
		Addr:     cfg.Address,
		Prefix:   prefix,
		Interval: cfg.Interval.Duration,
	}
	return
}

// metricsIdent defaults to the short host name.
func metricsIdent(ident string) string {
	if ident != "" {
		return ident
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return strings.Split(host, ".")[0]
}

func (ms *metricsService) Description() string {
	return "Metrics"
}

func (ms *metricsService) Serve(ctx context.Context) (err error) {

	interval := ms.Interval
	if interval <= time.Second {
		interval = time.Second
	}

	var output statsd.Option
	if ms.Addr == "!" {
		output = statsd.Output(os.Stdout)
	} else {
		output = statsd.Peer(ms.Addr)
	}

	sink, err := statsd.New(
		output,
		statsd.Prefix(ms.Prefix),
		statsd.Buffer(1432))
	if err != nil {
		log.ERROR("Error initializing statsd sink", "err", err)
		return
	}

	log.INFO("Sending metrics", "interval", interval, "prefix", ms.Prefix, "statsd", ms.Addr)

	metric.SetDefaultOptions(metric.FlushInterval(interval))
	metric.SetDefaultSink(sink)
	metric.Start()

	<-ctx.Done()

	metric.Stop() // blocks until flushed
	return
}
