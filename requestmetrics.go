package wsapp

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/One-com/gone/log"
	"github.com/One-com/gone/metric"

	"github.com/One-com/gone/http/handlers/accesslog"
	"github.com/One-com/gone/http/rrwriter"
)

var (
	exactCodeSpec = regexp.MustCompile(`^\d\d\d$`)
	rangeCodeSpec = regexp.MustCompile(`^\d[xX]{2}$`)
)

type meter interface {
	Measure(rrwriter.RecordingResponseWriter)
}

type statusMeter struct {
	test  func(code int) bool
	meter *metric.Counter
}

func (m *statusMeter) Measure(rec rrwriter.RecordingResponseWriter) {
	if m.test(rec.Status()) {
		m.meter.Inc(1)
	}
}

type sizeMeter struct {
	meter metric.Histogram
}

func (m *sizeMeter) Measure(rec rrwriter.RecordingResponseWriter) {
	m.meter.Sample(int64(rec.Size()))
}

func exactCodeTest(val int) func(int) bool {
	return func(code int) bool {
		return val == code
	}
}

// val is 100, 200, 300...
func rangeCodeTest(val int) func(int) bool {
	return func(code int) bool {
		diff := code - val
		return diff >= 0 && diff < 100
	}
}

// parseMeterSpec turns a "," separated list of "size", status codes (404)
// and status classes (5XX) into metric names with their meter.
// Unknown entries are ignored.
func parseMeterSpec(name, spec string) (names []string, meters []meter) {
	for _, spc := range strings.Split(spec, ",") {
		spc = strings.TrimSpace(spc)
		switch {
		case spc == "size":
			mname := name + ".resp-size"
			names = append(names, mname)
			meters = append(meters, &sizeMeter{meter: metric.RegisterHistogram(mname)})
		case exactCodeSpec.MatchString(spc):
			i, _ := strconv.Atoi(spc)
			mname := name + ".code." + spc
			names = append(names, mname)
			meters = append(meters, &statusMeter{test: exactCodeTest(i), meter: metric.RegisterCounter(mname)})
		case rangeCodeSpec.MatchString(spc):
			i, _ := strconv.Atoi(spc[0:1])
			mname := name + ".code." + strings.ToUpper(spc)
			names = append(names, mname)
			meters = append(meters, &statusMeter{test: rangeCodeTest(i * 100), meter: metric.RegisterCounter(mname)})
		case spc != "":
			log.WARN("Ignoring unknown metric", "spec", spc)
		}
	}
	return
}

// metricsFunction creates the audit function updating the metrics named by spec
// for every completed request.
func metricsFunction(name, spec string) accesslog.AuditFunction {

	names, meters := parseMeterSpec(name, spec)
	for _, n := range names {
		log.DEBUG("Created request metric", "name", n)
	}

	return accesslog.AuditFunction(func(rec rrwriter.RecordingResponseWriter) {
		for _, mt := range meters {
			mt.Measure(rec)
		}
	})
}
