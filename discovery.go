package wsapp

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/pkg/errors"

	"github.com/One-com/wsapp/config"
)

// ServiceDescriptor describes a discovered service.
// Descriptors are created once during discovery and must not be modified.
type ServiceDescriptor struct {
	// Name is the service directory name, which is also its URL namespace.
	Name string
	// Label is the display label from the service manifest.
	Label string
	// Routes are the service routes rewritten in the service URL namespace.
	Routes []*RouteRule
}

// Services returns the services found in the services home directory.
// Discovery is done on the first call only. The same result is returned afterwards,
// so services added to the home directory later are never seen.
func (s *Server) Services() ([]ServiceDescriptor, error) {
	s.discoverOnce.Do(func() {
		s.setState(stateDiscovering)
		s.services, s.servicesErr = s.discoverServices(s.servicesHome)
		if s.servicesErr == nil && len(s.services) == 0 {
			s.logger.WARN("No service found")
		}
	})
	return s.services, s.servicesErr
}

// discoverServices scans the sub-directories of home, in name order, keeping
// the ones holding a service. A service directory contains a MANIFEST and the
// service code entry file.
//
// Code which can't be resolved or which misses the route table named by its
// manifest aborts the discovery with a *LoadError. Any other failure only
// discards the service at hand.
func (s *Server) discoverServices(home string) (services []ServiceDescriptor, err error) {

	s.logger.DEBUG(fmt.Sprintf("discovering services stored in %s", home))

	// os.ReadDir returns entries sorted by name
	entries, err := os.ReadDir(home)
	if err != nil {
		return nil, errors.Wrap(err, "scanning services home")
	}

	for _, entry := range entries {
		name := entry.Name()
		dir := filepath.Join(home, name)
		if fi, e := os.Stat(dir); e != nil || !fi.IsDir() {
			continue
		}

		s.logger.INFO(fmt.Sprintf("analysing directory %s...", dir))
		if !hasServiceMarkers(dir) {
			s.logger.INFO("*** expected files not found => discarded")
			continue
		}
		s.logger.INFO("... valid service location")

		desc, e := s.buildServiceDescriptor(name, dir)
		if e != nil {
			var lerr *LoadError
			if errors.As(e, &lerr) {
				s.logger.CRIT("Service code resolution failed", "service", name, "err", e)
				return nil, e
			}
			s.logger.ERROR(e.Error(), "service", name)
			s.logger.ERROR(fmt.Sprintf("*** Could not load service '%s' because of previous error", name))
			continue
		}
		services = append(services, desc)
		s.logger.INFO(">>> success")
	}
	return
}

// buildServiceDescriptor reads the manifest, loads the code and namespaces the routes
// of a single service. A panic of the service code is returned as an error.
func (s *Server) buildServiceDescriptor(name, dir string) (desc ServiceDescriptor, err error) {

	defer func() {
		if r := recover(); r != nil {
			s.logger.DEBUG("Service panic", "service", name, "stack", string(debug.Stack()))
			err = errors.Errorf("service %s panicked: %v", name, r)
		}
	}()

	m, err := config.ReadManifest(filepath.Join(dir, config.ManifestFileName))
	if err != nil {
		return
	}

	s.logger.INFO(fmt.Sprintf("... loading service '%s'...", name))
	ls, err := s.loadService(name, dir, m)
	if err != nil {
		return
	}

	rules, err := namespaceRoutes(name, s.urlBase, ls.routes, ls.logger)
	if err != nil {
		return
	}

	desc = ServiceDescriptor{
		Name:   name,
		Label:  m.Label(),
		Routes: rules,
	}
	return
}

// hasServiceMarkers tells if dir holds both a manifest and a service code entry file.
func hasServiceMarkers(dir string) bool {
	if !isFile(filepath.Join(dir, config.ManifestFileName)) {
		return false
	}
	return isFile(filepath.Join(dir, sourceEntryFile)) || isFile(filepath.Join(dir, pluginEntryFile))
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
