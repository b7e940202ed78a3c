package service

import (
	"sort"
	"sync"

	"github.com/One-com/gone/log"
)

// PackagePrefix is joined with a service directory name to form the identity
// under which the service code is registered.
const PackagePrefix = "services"

// DefaultMapping is the name of the route table used when a manifest doesn't name one.
const DefaultMapping = "handlers"

// Identity returns the module identity of the service stored in directory name.
func Identity(name string) string {
	return PackagePrefix + "/" + name
}

// Service is the code unit of a pluggable service.
type Service interface {
	// RouteTable returns the route table exported under name.
	// Routes are relative to the service URL namespace.
	RouteTable(name string) ([]Route, bool)
}

// Initializer is implemented by services needing one-time initialization.
// Init is called once during service discovery with the service logger and the
// "Settings" section of the service manifest (nil if absent).
// The order in which services are initialized is undefined, so Init must not
// rely on any other service having been initialized.
type Initializer interface {
	Init(logger *log.Logger, settings map[string]string) error
}

// RouteTables is a Service made from a set of named route tables.
type RouteTables map[string][]Route

func (rt RouteTables) RouteTable(name string) (routes []Route, ok bool) {
	routes, ok = rt[name]
	return
}

// Registry holds the service code units available for discovery, by identity.
type Registry struct {
	mu       sync.Mutex
	services map[string]Service
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{services: make(map[string]Service)}
}

// Register makes the service code for the service directory name available.
// Registering the same name twice replaces the previous registration.
func (r *Registry) Register(name string, s Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[Identity(name)] = s
}

// Lookup returns the service registered under identity.
func (r *Registry) Lookup(identity string) (s Service, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok = r.services[identity]
	return
}

// Identities returns the sorted registered identities.
func (r *Registry) Identities() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.services))
	for id := range r.services {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultRegistry is used by Register and by servers not given another registry.
var DefaultRegistry = NewRegistry()

// Register makes a service available in DefaultRegistry.
// Service packages (built in or loaded as Go plugins) call this from their init().
func Register(name string, s Service) {
	DefaultRegistry.Register(name, s)
}
