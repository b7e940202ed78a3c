package wsapp

import (
	"fmt"
)

// LoadError reports service code which could not be resolved, or which doesn't
// export the route table named by its manifest.
// A LoadError aborts the whole service discovery, and thus the server startup.
// All other errors met while loading a service only discard that service.
type LoadError struct {
	Service  string
	Identity string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading service %s (%s): %s", e.Service, e.Identity, e.Err.Error())
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// InvalidRouteError reports a namespaced route pattern which is not a valid regular expression.
type InvalidRouteError struct {
	Pattern string
	Err     error
}

func (e *InvalidRouteError) Error() string {
	return fmt.Sprintf("\"%s\" is an invalid route specification (%s)", e.Pattern, e.Err.Error())
}

func (e *InvalidRouteError) Unwrap() error {
	return e.Err
}

// AlreadyStartedError is returned when starting a Server which has already been started.
type AlreadyStartedError struct{}

func (e *AlreadyStartedError) Error() string {
	return "server already started"
}

// PanicError wraps a non-error value a handler panicked with.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprint(e.Value)
}
