package service

import (
	"encoding/json"
	"net/http"

	"github.com/One-com/gone/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// RIDKEY is the log key used to tag service log output with the request id.
var RIDKEY = "rid"

// RIDHEADER is the HTTP header from which the request id is taken, if present.
var RIDHEADER = "X-Request-ID"

const contentTypeJSON = "application/json; charset=UTF-8"

// ServerInfo exposes read-only server information to handlers.
type ServerInfo interface {
	// Routes returns the effective URL patterns of the dispatch table, in matching order.
	Routes() []string
}

// Request is passed to every Handler verb method. It carries the incoming
// HTTP request, the regexp groups captured from the URL, the route parameters
// and the application settings, and it is used to build the reply.
type Request struct {
	HTTPRequest *http.Request

	// Args are the URL pattern capture groups.
	Args []string

	// Params are the parameters attached to the route.
	Params map[string]interface{}

	// Settings are the application settings (at least "debug").
	Settings map[string]interface{}

	// Log is the owning service logger tagged with the request id. Nil for built-in routes.
	Log *log.Logger

	Server ServerInfo

	w           http.ResponseWriter
	id          string
	status      int
	wroteHeader bool
	size        int
}

// NewRequest is used by the dispatcher to create the per request context.
// If logger is non-nil, it is tagged with the request id.
func NewRequest(w http.ResponseWriter, r *http.Request, logger *log.Logger) *Request {
	id := r.Header.Get(RIDHEADER)
	if id == "" {
		id = uuid.NewString()
	}
	req := &Request{
		HTTPRequest: r,
		w:           w,
		id:          id,
		status:      http.StatusOK,
	}
	if logger != nil {
		req.Log = logger.With(RIDKEY, id)
	}
	return req
}

// ID returns the request id.
func (req *Request) ID() string {
	return req.id
}

// ResponseHeader returns the header map of the reply.
func (req *Request) ResponseHeader() http.Header {
	return req.w.Header()
}

// SetStatus sets the status of the reply. It has no effect once
// the reply has started to be written.
func (req *Request) SetStatus(code int) {
	if req.wroteHeader {
		if req.Log != nil {
			req.Log.DEBUG("status change ignored, reply already started", "status", code)
		}
		return
	}
	req.status = code
}

// Status returns the status of the reply.
func (req *Request) Status() int {
	return req.status
}

// Written tells if the reply has started to be written.
func (req *Request) Written() bool {
	return req.wroteHeader
}

// Size returns the number of body bytes written.
func (req *Request) Size() int {
	return req.size
}

func (req *Request) writeHeader() {
	if !req.wroteHeader {
		req.wroteHeader = true
		req.w.WriteHeader(req.status)
	}
}

// Write writes body data to the reply, sending the headers first if needed.
func (req *Request) Write(p []byte) (n int, err error) {
	req.writeHeader()
	n, err = req.w.Write(p)
	req.size += n
	return
}

// WriteJSON writes v JSON encoded as the reply body.
func (req *Request) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encoding reply")
	}
	if req.ResponseHeader().Get("Content-Type") == "" {
		req.ResponseHeader().Set("Content-Type", contentTypeJSON)
	}
	_, err = req.Write(data)
	return err
}

// Argument returns the last value of the named query or form argument,
// or def if the argument is not present.
func (req *Request) Argument(name, def string) string {
	if err := req.HTTPRequest.ParseForm(); err != nil {
		return def
	}
	vals, ok := req.HTTPRequest.Form[name]
	if !ok || len(vals) == 0 {
		return def
	}
	return vals[len(vals)-1]
}

// ErrorReply replies with the given status (500 if 0) and the body
// {"message": message, "additInfos": additInfos}.
func (req *Request) ErrorReply(message string, code int, additInfos string) {
	if code == 0 {
		code = http.StatusInternalServerError
	}
	req.SetStatus(code)
	if req.Log != nil {
		if additInfos != "" {
			req.Log.ERROR("request error: "+message, "additInfos", additInfos)
		} else {
			req.Log.ERROR("request error: " + message)
		}
	}
	req.WriteJSON(map[string]string{
		"message":    message,
		"additInfos": additInfos,
	})
}

// ReplyNotImplemented replies 501 {"message": "not yet implemented"}.
func (req *Request) ReplyNotImplemented() {
	req.SetStatus(http.StatusNotImplemented)
	req.WriteJSON(map[string]string{
		"message": "not yet implemented",
	})
}

// Flush sends the reply status if nothing has been written yet and forces
// the buffered reply data out to the client.
// A ResponseWriter not supporting flushing is not an error.
func (req *Request) Flush() error {
	req.writeHeader()
	err := http.NewResponseController(req.w).Flush()
	if errors.Is(err, http.ErrNotSupported) {
		return nil
	}
	return err
}
