package wsapp

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/One-com/wsapp/config"
	"github.com/One-com/wsapp/service"
)

func teapot(req *service.Request) error {
	return service.NewHTTPError(http.StatusTeapot, "")
}

func routesHandler(req *service.Request) error {
	return req.WriteJSON(req.Server.Routes())
}

func newAlphaBetaServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()
	home := t.TempDir()
	reg := service.NewRegistry()
	reg.Register("beta", newTestService("/y"))
	reg.Register("alpha", newTestService("/x", "z"))
	writeServiceDir(t, home, "beta", validServiceFiles("beta"))
	writeServiceDir(t, home, "alpha", validServiceFiles("alpha"))
	return newTestServer(t, home, reg, opts...)
}

func TestServerRouteOrder(t *testing.T) {
	s := newAlphaBetaServer(t)
	require.NoError(t, s.AddTopLevelRoute(service.Route{Pattern: "/version", Handler: service.HandlerFunc(teapot)}))
	assert.Empty(t, s.Routes())
	assert.Equal(t, stateCreated, s.getState())

	h, err := s.Handler()
	require.NoError(t, err)
	assert.Equal(t, []string{"/version", "/api/alpha/x", "/api/alpha/z", "/api/beta/y", FallbackPattern}, s.Routes())
	assert.Equal(t, stateAssembled, s.getState())

	again, err := s.Handler()
	require.NoError(t, err)
	assert.True(t, h == again)

	assert.Error(t, s.AddTopLevelRoute(service.Route{Pattern: "/late", Handler: service.HandlerFunc(teapot)}))
}

func TestServerTopLevelRoutePrecedence(t *testing.T) {
	s := newAlphaBetaServer(t)
	require.NoError(t, s.AddTopLevelRoute(service.Route{Pattern: "/api/alpha/x", Handler: service.HandlerFunc(teapot)}))

	h, err := s.Handler()
	require.NoError(t, err)

	// shadowed service route
	assert.Equal(t, http.StatusTeapot, serve(h, http.MethodGet, "/api/alpha/x").Code)
	// the service default verbs
	assert.Equal(t, http.StatusNotImplemented, serve(h, http.MethodGet, "/api/beta/y").Code)
	// fallback
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/api/gamma/x").Code)
}

func TestServerURLBase(t *testing.T) {
	s := newAlphaBetaServer(t, URLBase("/ws"))
	_, err := s.Handler()
	require.NoError(t, err)
	assert.Equal(t, []string{"/ws/alpha/x", "/ws/alpha/z", "/ws/beta/y", FallbackPattern}, s.Routes())
}

func TestServerRoutesIntrospection(t *testing.T) {
	s := newAlphaBetaServer(t)
	require.NoError(t, s.AddTopLevelRoute(service.Route{Pattern: "/routes", Handler: service.HandlerFunc(routesHandler)}))

	h, err := s.Handler()
	require.NoError(t, err)

	w := serve(h, http.MethodGet, "/routes")
	require.Equal(t, http.StatusOK, w.Code)
	var routes []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &routes))
	assert.Equal(t, s.Routes(), routes)
}

func TestServerDuplicateRoutes(t *testing.T) {
	s := newAlphaBetaServer(t)
	require.NoError(t, s.AddTopLevelRoute(service.Route{Pattern: "/api/beta/y", Handler: service.HandlerFunc(teapot)}))
	_, err := s.Handler()
	require.NoError(t, err)

	// both kept, the first one wins
	assert.Equal(t, []string{"/api/beta/y", "/api/alpha/x", "/api/alpha/z", "/api/beta/y", FallbackPattern}, s.Routes())
}

func TestServerInvalidTopLevelRoute(t *testing.T) {
	s := NewServer(WithRegistry(service.NewRegistry()))
	err := s.AddTopLevelRoute(service.Route{Pattern: "(", Handler: service.HandlerFunc(teapot)})
	var rerr *InvalidRouteError
	assert.True(t, errors.As(err, &rerr))
}

func TestServerDiscoveryErrorFailsAssembly(t *testing.T) {
	home := t.TempDir()
	writeServiceDir(t, home, "ghost", validServiceFiles("ghost"))
	s := newTestServer(t, home, service.NewRegistry())

	_, err := s.Handler()
	var lerr *LoadError
	require.True(t, errors.As(err, &lerr))
	assert.Empty(t, s.Routes())

	err = s.Start(nil)
	assert.True(t, errors.As(err, &lerr))
}

func TestServerAlreadyStarted(t *testing.T) {
	s := newAlphaBetaServer(t)
	s.setState(stateListening)

	err := s.Start(nil)
	var serr *AlreadyStartedError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "server already started", err.Error())

	s.setState(stateStopped)
	assert.True(t, errors.As(s.Start(nil), &serr))
}

func TestServerDebugSettings(t *testing.T) {
	s := NewServer(WithRegistry(service.NewRegistry()), Debug(true))
	assert.Equal(t, true, s.settings["debug"])

	s = NewServer(WithRegistry(service.NewRegistry()))
	assert.Equal(t, false, s.settings["debug"])
	assert.Equal(t, config.DefaultPort, s.httpCfg.Port)
	assert.Equal(t, config.DefaultURLBase, s.urlBase)
}

func TestNewServerFromConfig(t *testing.T) {
	home := t.TempDir()
	cfg := &config.Config{
		Server: &config.ServerConfig{
			Port:         9123,
			URLBase:      "/ws/",
			ServicesHome: home,
		},
		Log: &config.LogConfig{AccessLog: "/tmp/access.log"},
	}
	s, err := NewServerFromConfig(cfg, WithRegistry(service.NewRegistry()))
	require.NoError(t, err)
	assert.Equal(t, 9123, s.httpCfg.Port)
	assert.Equal(t, "/ws/", s.urlBase)
	assert.Equal(t, home, s.ServicesHome())
	assert.Equal(t, "/tmp/access.log", s.accessLog)

	cfg.Server.ServicesHome = home + "/missing"
	_, err = NewServerFromConfig(cfg)
	assert.Error(t, err)
}

func TestServerStateString(t *testing.T) {
	assert.Equal(t, "listening", stateListening.String())
	assert.Equal(t, "unknown", serverState(42).String())
}
