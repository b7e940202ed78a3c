package service

import (
	"net/http"
)

// Handler is implemented by every request handler contributed by a service.
// Each verb method is invoked by the server's dispatcher for the matching HTTP method.
// Returning a *HTTPError makes the server reply with that exact status,
// any other error is turned into a 500 JSON error envelope.
type Handler interface {
	Get(req *Request) error
	Post(req *Request) error
	Put(req *Request) error
	Delete(req *Request) error
}

// BaseHandler implements all verbs of Handler by replying 501 "not yet implemented".
// Concrete handlers embed it and override only the verbs they support.
type BaseHandler struct{}

func (h *BaseHandler) Get(req *Request) error {
	req.ReplyNotImplemented()
	return nil
}

func (h *BaseHandler) Post(req *Request) error {
	req.ReplyNotImplemented()
	return nil
}

func (h *BaseHandler) Put(req *Request) error {
	req.ReplyNotImplemented()
	return nil
}

func (h *BaseHandler) Delete(req *Request) error {
	req.ReplyNotImplemented()
	return nil
}

// Muted is implemented by handlers serving periodic requests (like notification polling)
// which should only be logged the first time a given URI is served successfully.
type Muted interface {
	MuteRequestLogging() bool
}

// Mute can be embedded in a handler to flag it as Muted.
type Mute struct{}

func (Mute) MuteRequestLogging() bool {
	return true
}

// IsMuted tells whether the handler asks for repeated request logging to be suppressed.
func IsMuted(h Handler) bool {
	if m, ok := h.(Muted); ok {
		return m.MuteRequestLogging()
	}
	return false
}

// Route maps a URL pattern (a regular expression, relative to the service namespace)
// to a Handler. Params are passed verbatim to the handler with every request.
type Route struct {
	Pattern string
	Handler Handler
	Params  map[string]interface{}
}

// HandlerFunc adapts an ordinary function to a Handler answering GET only.
type HandlerFunc func(req *Request) error

func (f HandlerFunc) Get(req *Request) error {
	return f(req)
}

func (f HandlerFunc) Post(req *Request) error {
	req.ReplyNotImplemented()
	return nil
}

func (f HandlerFunc) Put(req *Request) error {
	req.ReplyNotImplemented()
	return nil
}

func (f HandlerFunc) Delete(req *Request) error {
	req.ReplyNotImplemented()
	return nil
}

// statusText is used for the message of HTTPErrors created without one.
func statusText(code int) string {
	if s := http.StatusText(code); s != "" {
		return s
	}
	return "unknown status"
}
