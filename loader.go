package wsapp

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"

	"github.com/One-com/gone/log"
	"github.com/One-com/gone/log/syslog"
	"github.com/pkg/errors"

	"github.com/One-com/wsapp/config"
	"github.com/One-com/wsapp/service"
)

// Files marking a directory as holding service code. One of them must be present
// next to the MANIFEST.
const (
	sourceEntryFile = "service.go"
	pluginEntryFile = "service.so"
)

// PluginSymbol is the symbol looked up in a service Go plugin if the plugin
// didn't register its service from init().
const PluginSymbol = "Service"

// loadedService is the result of loading the code of a service.
type loadedService struct {
	svc    service.Service
	routes []service.Route
	logger *log.Logger
}

// loadService resolves the service code registered for the service directory,
// runs its initialization hook and fetches the route table named by the manifest.
// Resolution failures and a missing route table are *LoadError. Errors from
// the initialization hook are returned as is.
func (s *Server) loadService(name, dir string, m *config.Manifest) (ls *loadedService, err error) {

	identity := service.Identity(name)

	svc, ok := s.registry.Lookup(identity)
	if !ok {
		plugpath := filepath.Join(dir, pluginEntryFile)
		if _, e := os.Stat(plugpath); e == nil {
			s.logger.INFO(fmt.Sprintf("... opening plugin %s", plugpath))
			if e = s.openServicePlugin(name, plugpath); e != nil {
				return nil, &LoadError{Service: name, Identity: identity, Err: e}
			}
			svc, ok = s.registry.Lookup(identity)
			if !ok && s.registry != service.DefaultRegistry {
				// registered from the plugin init()
				svc, ok = service.DefaultRegistry.Lookup(identity)
			}
		}
	}
	if !ok {
		return nil, &LoadError{Service: name, Identity: identity, Err: errors.New("no such service code registered")}
	}

	svcLogger := s.serviceLogger(name)

	// run the service initialization code if any
	if initer, ok := svc.(service.Initializer); ok {
		s.logger.INFO("... invoking service Init")
		err = initer.Init(svcLogger, m.Settings)
		if err != nil {
			return nil, errors.Wrapf(err, "initializing service %s", name)
		}
		s.logger.INFO("... service Init OK")
	}

	routes, ok := svc.RouteTable(m.Mapping())
	if !ok {
		return nil, &LoadError{Service: name, Identity: identity, Err: fmt.Errorf("no route table \"%s\"", m.Mapping())}
	}

	return &loadedService{svc: svc, routes: routes, logger: svcLogger}, nil
}

// openServicePlugin loads a Go plugin. The plugin either registers its service in
// its init(), or it exports it as the PluginSymbol variable.
func (s *Server) openServicePlugin(name, path string) error {
	abspath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	p, err := plugin.Open(abspath)
	if err != nil {
		return err
	}

	sym, err := p.Lookup(PluginSymbol)
	if err != nil {
		// There was no exported service in this plugin,
		// so the plugin must have registered it in its init()
		return nil
	}

	switch svc := sym.(type) {
	case *service.Service:
		if svc == nil || *svc == nil {
			return errors.New("defect service plugin")
		}
		s.registry.Register(name, *svc)
	case service.Service:
		s.registry.Register(name, svc)
	default:
		return fmt.Errorf("defect service plugin: %s is %T", PluginSymbol, sym)
	}
	return nil
}

// serviceLogger creates the logger of a service, as a child of the application
// logger with the same level.
func (s *Server) serviceLogger(name string) *log.Logger {
	l := log.GetLogger(s.name + "/" + name)
	if s.debug {
		l.SetLevel(syslog.LOG_DEBUG)
	} else {
		l.SetLevel(s.logger.Level())
	}
	return l
}
