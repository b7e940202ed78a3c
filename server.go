package wsapp

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/One-com/gone/daemon"
	"github.com/One-com/gone/log"
	"github.com/One-com/gone/log/syslog"
	"github.com/pkg/errors"

	"github.com/One-com/wsapp/config"
	"github.com/One-com/wsapp/service"
)

// AppName is the name of the application logger.
const AppName = "wsapi"

// FallbackPattern is the last dispatch rule, matching anything not otherwise routed.
const FallbackPattern = "/.*"

type serverState int32

const (
	stateCreated serverState = iota
	stateDiscovering
	stateAssembled
	stateListening
	stateStopped
)

func (st serverState) String() string {
	switch st {
	case stateCreated:
		return "created"
	case stateDiscovering:
		return "discovering"
	case stateAssembled:
		return "assembled"
	case stateListening:
		return "listening"
	case stateStopped:
		return "stopped"
	}
	return "unknown"
}

// Server is the web services application server. It discovers the services
// stored in its services home directory, merges their routes in a single
// dispatch table and serves it.
//
// A Server goes through the states created, discovering, assembled, listening
// and stopped. It can only be started once.
type Server struct {
	name     string
	logger   *log.Logger
	registry *service.Registry

	urlBase      string
	debug        bool
	servicesHome string
	httpCfg      config.ServerConfig
	accessLog    string
	metricsCfg   *config.MetricsConfig

	state atomic.Int32

	// discovery result, computed once
	discoverOnce sync.Once
	services     []ServiceDescriptor
	servicesErr  error

	mu       sync.Mutex // serializes assembly and start
	topLevel []*RouteRule
	rules    []*RouteRule
	settings map[string]interface{}
	handler  http.Handler
}

// ServerOption configures a Server created by NewServer.
type ServerOption func(*Server)

// URLBase sets the URL prefix of all service namespaces (default "/api/").
func URLBase(base string) ServerOption {
	return ServerOption(func(s *Server) {
		s.urlBase = base
	})
}

// Port sets the port to listen to (default 8888).
func Port(port int) ServerOption {
	return ServerOption(func(s *Server) {
		s.httpCfg.Port = port
	})
}

// Address sets the address to listen on (default all interfaces).
func Address(addr string) ServerOption {
	return ServerOption(func(s *Server) {
		s.httpCfg.Address = addr
	})
}

// Debug activates debug mode: debug logging for the application and all services.
func Debug(debug bool) ServerOption {
	return ServerOption(func(s *Server) {
		s.debug = debug
	})
}

// WithRegistry makes the server resolve service code from reg instead of service.DefaultRegistry.
func WithRegistry(reg *service.Registry) ServerOption {
	return ServerOption(func(s *Server) {
		s.registry = reg
	})
}

// HTTPConfig sets the listener and timeouts configuration of the HTTP server.
func HTTPConfig(cfg config.ServerConfig) ServerOption {
	return ServerOption(func(s *Server) {
		s.httpCfg = cfg
	})
}

// AccessLog makes the server write an access log to the given file.
func AccessLog(filename string) ServerOption {
	return ServerOption(func(s *Server) {
		s.accessLog = filename
	})
}

// Metrics makes the server push metrics to statsd.
func Metrics(cfg *config.MetricsConfig) ServerOption {
	return ServerOption(func(s *Server) {
		s.metricsCfg = cfg
	})
}

// NewServer creates a Server.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		name:         AppName,
		registry:     service.DefaultRegistry,
		urlBase:      config.DefaultURLBase,
		servicesHome: config.DefaultServicesHome,
		httpCfg:      config.ServerConfig{Port: config.DefaultPort},
	}
	for _, o := range opts {
		o(s)
	}
	if s.httpCfg.Port == 0 {
		s.httpCfg.Port = config.DefaultPort
	}

	s.logger = log.GetLogger(s.name)
	if s.debug {
		s.logger.SetLevel(syslog.LOG_DEBUG)
		s.logger.WARN("Server instantiated with debug mode activated")
	}
	s.settings = map[string]interface{}{
		"debug": s.debug,
	}
	return s
}

// NewServerFromConfig creates a Server from a parsed configuration.
// Additional options are applied after the configuration.
func NewServerFromConfig(cfg *config.Config, opts ...ServerOption) (*Server, error) {
	cfg.ApplyDefaults()

	cfgOpts := []ServerOption{
		HTTPConfig(*cfg.Server),
		URLBase(cfg.Server.URLBase),
		Debug(cfg.Server.Debug),
		Metrics(cfg.Metrics),
	}
	if cfg.Log != nil {
		cfgOpts = append(cfgOpts, AccessLog(cfg.Log.AccessLog))
	}

	s := NewServer(append(cfgOpts, opts...)...)
	if err := s.SetServicesHome(cfg.Server.ServicesHome); err != nil {
		return nil, config.WrapError(err)
	}
	return s, nil
}

func (s *Server) setState(st serverState) {
	s.state.Store(int32(st))
}

func (s *Server) getState() serverState {
	return serverState(s.state.Load())
}

// ServicesHome returns the directory in which services are stored.
func (s *Server) ServicesHome() string {
	return s.servicesHome
}

// SetServicesHome overrides the directory in which services are stored.
// Relative paths are made absolute from the working directory. The directory must exist.
// It can't be changed once services have been discovered.
func (s *Server) SetServicesHome(path string) error {
	if path == s.servicesHome {
		return nil
	}
	if s.getState() != stateCreated {
		return errors.New("services already discovered")
	}
	if !filepath.IsAbs(path) {
		abspath, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		path = abspath
	}
	fi, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(err, "services home")
	}
	if !fi.IsDir() {
		return fmt.Errorf("services home %s is not a directory", path)
	}
	s.logger.INFO(fmt.Sprintf("services_home overridden to %s", path))
	s.servicesHome = path
	return nil
}

// AddTopLevelRoute adds a built-in route, matched before any service route.
// The pattern is absolute. Routes can't be added once the dispatch table is assembled.
func (s *Server) AddTopLevelRoute(route service.Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handler != nil {
		return errors.New("dispatch table already assembled")
	}
	rule, err := newRouteRule(route, nil)
	if err != nil {
		return err
	}
	s.topLevel = append(s.topLevel, rule)
	return nil
}

// Routes returns the patterns of the dispatch table in matching order.
// It is empty until the table is assembled.
func (s *Server) Routes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	patterns := make([]string, len(s.rules))
	for i, rule := range s.rules {
		patterns[i] = rule.Pattern
	}
	return patterns
}

// Handler returns the http.Handler serving the dispatch table, discovering
// services and assembling the table on first call.
func (s *Server) Handler() (http.Handler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assemble()
}

// assemble builds the dispatch table: the top level routes, then the routes
// of each service in discovery order, then the fallback route.
// Caller must hold s.mu.
func (s *Server) assemble() (http.Handler, error) {
	if s.handler != nil {
		return s.handler, nil
	}

	services, err := s.Services()
	if err != nil {
		return nil, err
	}

	rules := make([]*RouteRule, 0, len(s.topLevel)+1)
	rules = append(rules, s.topLevel...)
	for _, svc := range services {
		rules = append(rules, svc.Routes...)
	}
	fallback, err := newRouteRule(service.Route{Pattern: FallbackPattern, Handler: &invalidRequest{}}, nil)
	if err != nil {
		return nil, err
	}
	rules = append(rules, fallback)

	s.warnDuplicates(rules)
	s.rules = rules

	s.logger.INFO("url dispatch rules:")
	for _, rule := range rules {
		s.logger.INFO(fmt.Sprintf(" - %s -> %s", rule.Pattern, rule.handlerName()))
	}

	s.handler = &dispatcher{
		rules:    rules,
		settings: s.settings,
		server:   serverInfo{s},
		reqlog:   newRequestLogger(s.logger),
	}
	s.setState(stateAssembled)
	return s.handler, nil
}

// warnDuplicates logs patterns appearing more than once. Only the first one is ever matched.
func (s *Server) warnDuplicates(rules []*RouteRule) {
	seen := make(map[string]bool, len(rules))
	for _, rule := range rules {
		if seen[rule.Pattern] {
			s.logger.WARN("Duplicate route pattern is shadowed", "pattern", rule.Pattern, "handler", rule.handlerName())
			continue
		}
		seen[rule.Pattern] = true
	}
}

// Start discovers the services, assembles the dispatch table and serves it until
// the process is asked to exit by a signal or through the control socket.
// customSettings are merged over the base settings (holding "debug") made
// available to handlers.
// Stopping on a signal is not an error. Start can only be called once.
func (s *Server) Start(customSettings map[string]interface{}) (err error) {
	s.mu.Lock()
	if s.getState() >= stateListening {
		s.mu.Unlock()
		return &AlreadyStartedError{}
	}

	s.logger.INFO("server initializing")
	for k, v := range customSettings {
		s.settings[k] = v
	}

	handler, err := s.assemble()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.setState(stateListening)
	s.mu.Unlock()

	// make sure signal handling is in place
	Init()

	runoptions := []daemon.RunOption{
		daemon.Configurator(s.configure(handler)),
		daemon.ControlSocket("", runCfg.controlsocket),
		daemon.ShutdownTimeout(runCfg.shutdowntimeout),
		daemon.SdNotifyOnReady(true, runCfg.readymessage),
		daemon.SignalParentOnReady(),
	}

	s.logger.NOTICE("web server started", "pid", os.Getpid())
	err = daemon.Run(runoptions...)
	s.setState(stateStopped)
	if err != nil {
		s.logger.CRIT("Daemon exit error", "err", err)
		return err
	}
	s.logger.NOTICE("terminated")
	return nil
}

// configure returns the daemon configuration function instantiating the HTTP
// server and the metrics service.
func (s *Server) configure(handler http.Handler) daemon.ConfigFunc {
	return daemon.ConfigFunc(
		func() (servers []daemon.Server, cleanups []daemon.CleanupFunc, err error) {

			h, cleanup := wrapAuditHandler(s.name, handler, s.accessLog, metricsFunction(s.name, s.httpCfg.Metrics))
			if cleanup != nil {
				cleanups = append(cleanups, cleanup)
			}

			srv, err := newHTTPServer(s.name, s.httpCfg, h)
			if err != nil {
				return
			}
			servers = append(servers, srv)

			if s.metricsCfg != nil {
				ms, e := loadMetricsConfig(s.metricsCfg)
				if e != nil {
					err = e
					return
				}
				if ms != nil {
					servers = append(servers, ms)
				}
			}

			s.logger.INFO(fmt.Sprintf("listening on port %d", s.httpCfg.Port))
			return
		})
}

// serverInfo exposes the server to handlers without giving access to its control.
type serverInfo struct {
	s *Server
}

func (si serverInfo) Routes() []string {
	return si.s.Routes()
}
