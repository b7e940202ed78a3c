package wsapp

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/One-com/gone/log"

	"github.com/One-com/wsapp/service"
)

// RouteRule is an entry of the server dispatch table.
type RouteRule struct {
	// Pattern is the effective URL pattern, matched against the whole request path.
	Pattern string
	Handler service.Handler
	Params  map[string]interface{}

	// Logger of the owning service, nil for built-in rules.
	Logger *log.Logger

	re *regexp.Regexp
}

// match returns the pattern capture groups if path is matched.
func (r *RouteRule) match(path string) (args []string, ok bool) {
	m := r.re.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}
	return m[1:], true
}

// handlerName is the handler type name, used when logging the dispatch table.
func (r *RouteRule) handlerName() string {
	return strings.TrimPrefix(fmt.Sprintf("%T", r.Handler), "*")
}

// compileRoute anchors pattern so it must match the full request path.
func compileRoute(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("^(?:" + pattern + ")$")
}

// newRouteRule creates a rule for an absolute pattern.
func newRouteRule(route service.Route, logger *log.Logger) (*RouteRule, error) {
	re, err := compileRoute(route.Pattern)
	if err != nil {
		return nil, &InvalidRouteError{Pattern: route.Pattern, Err: err}
	}
	return &RouteRule{
		Pattern: route.Pattern,
		Handler: route.Handler,
		Params:  route.Params,
		Logger:  logger,
		re:      re,
	}, nil
}

// serviceURLBase returns the URL namespace of a service, ending with "/".
func serviceURLBase(urlBase, name string) string {
	return strings.TrimRight(urlBase, "/") + "/" + name + "/"
}

// namespaceRoutes rewrites service relative routes into the service URL namespace.
// A leading "/" of a route pattern is optional. Any route not compiling as a regular
// expression fails the whole service with an *InvalidRouteError.
func namespaceRoutes(name, urlBase string, routes []service.Route, logger *log.Logger) ([]*RouteRule, error) {
	base := serviceURLBase(urlBase, name)
	rules := make([]*RouteRule, 0, len(routes))
	for _, route := range routes {
		route.Pattern = base + strings.TrimPrefix(route.Pattern, "/")
		rule, err := newRouteRule(route, logger)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
