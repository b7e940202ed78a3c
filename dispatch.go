package wsapp

import (
	"fmt"
	"net/http"
	"reflect"
	"runtime/debug"
	"time"

	"github.com/pkg/errors"

	"github.com/One-com/wsapp/service"
)

// dispatcher is the http.Handler serving the dispatch table.
// Rules are tried in order, the first one matching the request path wins.
// The table is never modified once the dispatcher is created.
type dispatcher struct {
	rules    []*RouteRule
	settings map[string]interface{}
	server   service.ServerInfo
	reqlog   *requestLogger
}

func (d *dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	rule, args := d.match(r.URL.Path)
	if rule == nil {
		http.NotFound(w, r)
		d.reqlog.logRequest(requestRecord{
			status:  http.StatusNotFound,
			method:  r.Method,
			uri:     r.RequestURI,
			remote:  r.RemoteAddr,
			elapsed: time.Since(start),
		})
		return
	}

	req := service.NewRequest(w, r, rule.Logger)
	req.Args = args
	req.Params = rule.Params
	req.Settings = d.settings
	req.Server = d.server

	processRequest(rule.Handler, req)

	d.reqlog.logRequest(requestRecord{
		status:  req.Status(),
		method:  r.Method,
		uri:     r.RequestURI,
		remote:  r.RemoteAddr,
		muted:   service.IsMuted(rule.Handler),
		elapsed: time.Since(start),
	})
}

func (d *dispatcher) match(path string) (*RouteRule, []string) {
	for _, rule := range d.rules {
		if args, ok := rule.match(path); ok {
			return rule, args
		}
	}
	return nil, nil
}

func verbFor(h service.Handler, method string) func(*service.Request) error {
	switch method {
	case http.MethodGet:
		return h.Get
	case http.MethodPost:
		return h.Post
	case http.MethodPut:
		return h.Put
	case http.MethodDelete:
		return h.Delete
	}
	return nil
}

// processRequest invokes the handler verb for the request and enforces
// the uniform reply discipline:
//   - on success the reply is flushed to the client right away.
//   - a *service.HTTPError replies its status with {"message": ...}.
//   - any other error, or a panic, replies 500 with the error envelope.
func processRequest(h service.Handler, req *service.Request) {

	verb := verbFor(h, req.HTTPRequest.Method)
	if verb == nil {
		req.ResponseHeader().Set("Allow", "GET, POST, PUT, DELETE")
		writeHTTPError(req, service.NewHTTPError(http.StatusMethodNotAllowed, ""))
		return
	}

	err := invoke(verb, req)
	if err == nil {
		// Force a write of the reply now, so clients don't consider the request stalled.
		if ferr := req.Flush(); ferr != nil && req.Log != nil {
			req.Log.DEBUG("Reply flush failed", "err", ferr)
		}
		return
	}

	var herr *service.HTTPError
	if errors.As(err, &herr) {
		writeHTTPError(req, herr)
		return
	}

	exceptionReply(req, err)
}

// invoke calls verb, turning a panic into an error.
func invoke(verb func(*service.Request) error, req *service.Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if req.Log != nil {
				req.Log.ERROR("Handler panic", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			}
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = &PanicError{Value: r}
			}
		}
	}()
	return verb(req)
}

func writeHTTPError(req *service.Request, herr *service.HTTPError) {
	if req.Written() {
		if req.Log != nil {
			req.Log.ERROR("Can't reply error, reply already started", "status", herr.Code, "err", herr.Message)
		}
		return
	}
	req.SetStatus(herr.Code)
	req.WriteJSON(map[string]string{
		"message": herr.Message,
	})
	req.Flush()
}

// exceptionReply replies the 500 envelope for an unexpected error.
func exceptionReply(req *service.Request, err error) {
	errtype := errorTypeName(errors.Cause(err))
	message := err.Error()

	var additInfos string
	var reasoner service.Reasoner
	if errors.As(err, &reasoner) {
		additInfos = reasoner.Reason()
	}

	if req.Log != nil {
		req.Log.ERROR(fmt.Sprintf("unexpected error '%s' with message '%s'", errtype, message))
		req.Log.DEBUG(fmt.Sprintf("%+v", err))
	}

	if req.Written() {
		return
	}
	req.SetStatus(http.StatusInternalServerError)
	req.WriteJSON(map[string]string{
		"errtype":    errtype,
		"message":    message,
		"additInfos": additInfos,
	})
	req.Flush()
}

// errorTypeName returns the name of the concrete type of err, without package and pointer.
func errorTypeName(err error) string {
	t := reflect.TypeOf(err)
	if t == nil {
		return "error"
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

// invalidRequest is the fallback handler, replying 404 to anything not routed.
type invalidRequest struct {
	service.BaseHandler
}

func (h *invalidRequest) Get(req *service.Request) error {
	req.SetStatus(http.StatusNotFound)
	return nil
}

func (h *invalidRequest) Post(req *service.Request) error {
	return h.Get(req)
}

func (h *invalidRequest) Delete(req *service.Request) error {
	return h.Get(req)
}
