package wsapp

import (
	"net"
	"net/http"
	"strconv"
	"time"

	stdlog "log"

	"github.com/One-com/gone/daemon"
	nshttp "github.com/One-com/gone/http"
	"github.com/One-com/gone/log"
	"github.com/One-com/gone/log/syslog"

	"github.com/One-com/wsapp/config"

	"github.com/One-com/gone/netutil/reaper"
)

// Callback turning IO activity timeout on/off for use as a http.Server.ConnState callback
func toggleIOActivityTimeout(conn net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew, http.StateActive:
		reaper.IOActivityTimeout(conn, true)
	case http.StateIdle, http.StateClosed, http.StateHijacked:
		reaper.IOActivityTimeout(conn, false)
	}
}

// newHTTPServer creates a deamon.Server complying HTTP server from config with the given handler
func newHTTPServer(name string, cfg config.ServerConfig, handler http.Handler) (srv *nshttp.Server, err error) {

	addr := cfg.Address + ":" + strconv.Itoa(cfg.Port)

	listener := daemon.ListenerSpec{
		Addr: addr,
	}

	var usingReaper bool
	if cfg.IOActivityTimeout.Duration != time.Duration(0) {
		usingReaper = true
		to := cfg.IOActivityTimeout.Duration
		reaperInterval := to / time.Duration(2)

		listener.PrepareListener = func(lin net.Listener) (lout net.Listener) {
			lout = reaper.NewIOActivityTimeoutListener(lin, to, reaperInterval)
			return
		}
	}

	// Set up a log adapter for stdlib HTTP server.
	errorGonelog := log.NewStdlibAdapter(log.GetLogger(name), syslog.LOG_CRIT)
	errorlog := stdlog.New(errorGonelog, "", 0)

	// Assemble the HTTP server object.
	httpserver := &http.Server{
		Handler:           handler,
		ErrorLog:          errorlog,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout.Duration,
		IdleTimeout:       cfg.IdleTimeout.Duration,
		ReadTimeout:       cfg.ReadTimeout.Duration,
		WriteTimeout:      cfg.WriteTimeout.Duration,
	}
	if usingReaper {
		httpserver.ConnState = toggleIOActivityTimeout
	}
	if cfg.DisableKeepAlives {
		httpserver.SetKeepAlivesEnabled(false)
	}
	srv = &nshttp.Server{
		Name:      name,
		Server:    httpserver,
		Listeners: daemon.ListenerGroup{listener},
	}

	return
}
