package wsapp

import (
	"fmt"
	"sync"
	"time"
)

// levelLogger is the part of *log.Logger used for request logging.
type levelLogger interface {
	INFO(msg string, kv ...interface{})
	WARN(msg string, kv ...interface{})
	ERROR(msg string, kv ...interface{})
}

type requestRecord struct {
	status  int
	method  string
	uri     string
	remote  string
	muted   bool
	elapsed time.Duration
}

// requestLogger logs completed requests, at INFO for success, WARN for 4XX and ERROR for 5XX.
// Successful requests served by muted handlers (periodic requests, like notification checks)
// are logged the first time only for a given URI. Failures are always logged.
type requestLogger struct {
	log levelLogger

	mu    sync.Mutex
	muted map[string]struct{} // URIs not logged anymore when successful
}

func newRequestLogger(l levelLogger) *requestLogger {
	return &requestLogger{
		log:   l,
		muted: make(map[string]struct{}),
	}
}

func (rl *requestLogger) logRequest(rec requestRecord) {
	var logf func(msg string, kv ...interface{})

	switch {
	case rec.status < 400:
		rl.mu.Lock()
		if _, ok := rl.muted[rec.uri]; ok {
			rl.mu.Unlock()
			return
		}
		if rec.muted {
			rl.muted[rec.uri] = struct{}{}
		}
		rl.mu.Unlock()
		if rec.muted {
			rl.log.WARN(fmt.Sprintf("request '%s' is muted => last time we log it", rec.uri))
		}
		logf = rl.log.INFO
	case rec.status < 500:
		logf = rl.log.WARN
	default:
		logf = rl.log.ERROR
	}

	ms := float64(rec.elapsed) / float64(time.Millisecond)
	logf(fmt.Sprintf("%d %s %s (%s) %.2fms", rec.status, rec.method, rec.uri, rec.remote, ms))
}
