package wsapp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/One-com/gone/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/One-com/wsapp/config"
	"github.com/One-com/wsapp/service"
)

type testService struct {
	tables   service.RouteTables
	initErr  error
	panics   bool
	inits    int
	logger   *log.Logger
	settings map[string]string
}

func (s *testService) Init(logger *log.Logger, settings map[string]string) error {
	s.inits++
	s.logger = logger
	s.settings = settings
	if s.panics {
		panic("init exploded")
	}
	return s.initErr
}

func (s *testService) RouteTable(name string) ([]service.Route, bool) {
	return s.tables.RouteTable(name)
}

func newTestService(patterns ...string) *testService {
	routes := make([]service.Route, len(patterns))
	for i, p := range patterns {
		routes[i] = service.Route{Pattern: p, Handler: &service.BaseHandler{}}
	}
	return &testService{tables: service.RouteTables{service.DefaultMapping: routes}}
}

// writeServiceDir creates a service directory holding the given files.
func writeServiceDir(t *testing.T, home, name string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(home, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	for fname, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fname), []byte(content), 0644))
	}
}

func validServiceFiles(name string) map[string]string {
	return map[string]string{
		config.ManifestFileName: fmtManifest(name),
		sourceEntryFile:         "package " + name + "\n",
	}
}

func fmtManifest(name string) string {
	return `{"Service": {"Label": "` + name + ` service"}}`
}

func newTestServer(t *testing.T, home string, reg *service.Registry, opts ...ServerOption) *Server {
	t.Helper()
	s := NewServer(append([]ServerOption{WithRegistry(reg)}, opts...)...)
	require.NoError(t, s.SetServicesHome(home))
	return s
}

func serviceNames(services []ServiceDescriptor) []string {
	names := make([]string, len(services))
	for i, svc := range services {
		names[i] = svc.Name
	}
	return names
}

func TestDiscoveryRequiresBothMarkers(t *testing.T) {
	home := t.TempDir()
	reg := service.NewRegistry()
	for _, name := range []string{"delta", "alpha", "charlie", "bravo", "echo"} {
		reg.Register(name, newTestService("/x"))
	}

	writeServiceDir(t, home, "delta", validServiceFiles("delta"))
	writeServiceDir(t, home, "alpha", validServiceFiles("alpha"))
	writeServiceDir(t, home, "charlie", map[string]string{config.ManifestFileName: fmtManifest("charlie")})
	writeServiceDir(t, home, "bravo", map[string]string{sourceEntryFile: "package bravo\n"})
	writeServiceDir(t, home, "echo", map[string]string{
		config.ManifestFileName: fmtManifest("echo"),
		pluginEntryFile:         "",
	})
	// plain files are not candidates
	require.NoError(t, os.WriteFile(filepath.Join(home, "README"), []byte("hi"), 0644))

	s := newTestServer(t, home, reg)
	services, err := s.Services()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "delta", "echo"}, serviceNames(services))

	assert.Equal(t, "alpha service", services[0].Label)
	require.Len(t, services[0].Routes, 1)
	assert.Equal(t, "/api/alpha/x", services[0].Routes[0].Pattern)
}

func TestDiscoveryBadManifestSkipsService(t *testing.T) {
	home := t.TempDir()
	reg := service.NewRegistry()
	for _, name := range []string{"one", "two", "three"} {
		reg.Register(name, newTestService("/x"))
	}
	writeServiceDir(t, home, "one", validServiceFiles("one"))
	writeServiceDir(t, home, "two", map[string]string{
		config.ManifestFileName: `{"Service": {"Mapping": "handlers"}}`,
		sourceEntryFile:         "package two\n",
	})
	writeServiceDir(t, home, "three", validServiceFiles("three"))

	s := newTestServer(t, home, reg)
	services, err := s.Services()
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "three"}, serviceNames(services))
}

func TestDiscoveryUnresolvedCodeAborts(t *testing.T) {
	home := t.TempDir()
	reg := service.NewRegistry()
	reg.Register("one", newTestService("/x"))
	writeServiceDir(t, home, "one", validServiceFiles("one"))
	writeServiceDir(t, home, "two", validServiceFiles("two")) // not registered

	s := newTestServer(t, home, reg)
	services, err := s.Services()
	assert.Nil(t, services)

	var lerr *LoadError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, "two", lerr.Service)
	assert.Equal(t, "services/two", lerr.Identity)
}

func TestDiscoveryMissingRouteTableAborts(t *testing.T) {
	home := t.TempDir()
	reg := service.NewRegistry()
	reg.Register("one", newTestService("/x"))
	writeServiceDir(t, home, "one", map[string]string{
		config.ManifestFileName: `{"Service": {"Label": "One", "Mapping": "routes"}}`,
		sourceEntryFile:         "package one\n",
	})

	s := newTestServer(t, home, reg)
	_, err := s.Services()

	var lerr *LoadError
	require.True(t, errors.As(err, &lerr))
	assert.Contains(t, err.Error(), "routes")
}

func TestDiscoveryInitFailureSkipsService(t *testing.T) {
	home := t.TempDir()
	reg := service.NewRegistry()
	failing := newTestService("/x")
	failing.initErr = errors.New("no database")
	panicking := newTestService("/x")
	panicking.panics = true
	reg.Register("failing", failing)
	reg.Register("panicking", panicking)
	reg.Register("working", newTestService("/x"))
	for _, name := range []string{"failing", "panicking", "working"} {
		writeServiceDir(t, home, name, validServiceFiles(name))
	}

	s := newTestServer(t, home, reg)
	services, err := s.Services()
	require.NoError(t, err)
	assert.Equal(t, []string{"working"}, serviceNames(services))
	assert.Equal(t, 1, failing.inits)
	assert.Equal(t, 1, panicking.inits)
}

func TestDiscoveryInvalidRouteSkipsService(t *testing.T) {
	home := t.TempDir()
	reg := service.NewRegistry()
	reg.Register("broken", newTestService("/ok", "/bad[", "/after"))
	reg.Register("fine", newTestService("/ok"))
	writeServiceDir(t, home, "broken", validServiceFiles("broken"))
	writeServiceDir(t, home, "fine", validServiceFiles("fine"))

	s := newTestServer(t, home, reg)
	services, err := s.Services()
	require.NoError(t, err)
	assert.Equal(t, []string{"fine"}, serviceNames(services))
}

func TestDiscoveryInitCalledOnceWithSettings(t *testing.T) {
	home := t.TempDir()
	reg := service.NewRegistry()
	withSettings := newTestService("/x")
	withoutSettings := newTestService("/x")
	reg.Register("with", withSettings)
	reg.Register("without", withoutSettings)
	writeServiceDir(t, home, "with", map[string]string{
		config.ManifestFileName: `{
    "Service": {"Label": "With"},
    // passed to Init
    "Settings": {"color": "blue"}
}`,
		sourceEntryFile: "package with\n",
	})
	writeServiceDir(t, home, "without", validServiceFiles("without"))

	s := newTestServer(t, home, reg)
	_, err := s.Services()
	require.NoError(t, err)
	_, err = s.Services()
	require.NoError(t, err)

	assert.Equal(t, 1, withSettings.inits)
	assert.Equal(t, map[string]string{"color": "blue"}, withSettings.settings)
	assert.NotNil(t, withSettings.logger)

	assert.Equal(t, 1, withoutSettings.inits)
	assert.Nil(t, withoutSettings.settings)
}

func TestDiscoveryIsMemoized(t *testing.T) {
	home := t.TempDir()
	reg := service.NewRegistry()
	reg.Register("one", newTestService("/x"))
	reg.Register("two", newTestService("/x"))
	writeServiceDir(t, home, "one", validServiceFiles("one"))

	s := newTestServer(t, home, reg)
	first, err := s.Services()
	require.NoError(t, err)
	require.Len(t, first, 1)

	// not seen, discovery is done once
	writeServiceDir(t, home, "two", validServiceFiles("two"))

	second, err := s.Services()
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.True(t, &first[0] == &second[0])
}

func TestDiscoveryEmptyHome(t *testing.T) {
	s := newTestServer(t, t.TempDir(), service.NewRegistry())
	services, err := s.Services()
	require.NoError(t, err)
	assert.Empty(t, services)
}

func TestDiscoveryMissingHome(t *testing.T) {
	s := NewServer(WithRegistry(service.NewRegistry()))
	s.servicesHome = filepath.Join(t.TempDir(), "nowhere")
	_, err := s.Services()
	assert.Error(t, err)
}

func TestSetServicesHome(t *testing.T) {
	s := NewServer(WithRegistry(service.NewRegistry()))

	err := s.SetServicesHome(filepath.Join(t.TempDir(), "nowhere"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	assert.Error(t, s.SetServicesHome(file))

	home := t.TempDir()
	require.NoError(t, s.SetServicesHome(home))
	assert.Equal(t, home, s.ServicesHome())

	_, err = s.Services()
	require.NoError(t, err)
	assert.Error(t, s.SetServicesHome(t.TempDir()))
}
