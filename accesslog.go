package wsapp

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/One-com/gone/daemon"
	"github.com/One-com/gone/daemon/ctrl"
	"github.com/One-com/gone/log"

	"github.com/One-com/gone/http/handlers/accesslog"
)

// an access log file and the handler writing to it.
type accessLogFile struct {
	filename string
	handler  accesslog.DynamicLogHandler
	writer   io.WriteCloser
}

// access log files by server name
var (
	accessLogsMu sync.Mutex
	accessLogs   = make(map[string]*accessLogFile)
)

// a control socket command streaming the access log of a server to the client.
var accessLogControl = newAccessLogCommand(daemon.Log)

func init() {
	ctrl.RegisterCommand("alog", accessLogControl)
}

// ReopenAccessLogFiles opens the access log files again and swaps them in
// for the old file handles, which are closed. Used after external log rotation.
func ReopenAccessLogFiles() {
	accessLogsMu.Lock()
	defer accessLogsMu.Unlock()

	log.NOTICE("Reopening access log files")
	for name, alf := range accessLogs {
		file, err := openAccessLog(alf.filename)
		if err != nil {
			log.ERROR("Could not reopen access log", "server", name, "file", alf.filename, "err", err)
			continue
		}
		alf.handler.ToggleAccessLog(alf.writer, file)
		alf.writer.Close()
		alf.writer = file
	}
}

// wrapAuditHandler wraps the dispatch handler in an access log capable handler,
// calling audit for every completed request. If filename is not empty the access
// log is written to it. The returned cleanup closes the file.
func wrapAuditHandler(servername string, h http.Handler, filename string, audit accesslog.AuditFunction) (oh accesslog.DynamicLogHandler, cleanup daemon.CleanupFunc) {

	oh = accesslog.NewDynamicLogHandler(h, audit)
	accessLogControl.RegisterLogHandler(servername, oh)

	if filename == "" {
		log.DEBUG("No access log", "server", servername)
		return
	}

	out, err := openAccessLog(filename)
	if err != nil {
		log.CRIT("Unable to open access log", "file", filename, "err", err)
		return
	}
	log.INFO("Opened access log", "file", filename)

	accessLogsMu.Lock()
	alf := &accessLogFile{filename: filename, handler: oh, writer: out}
	accessLogs[servername] = alf
	accessLogsMu.Unlock()

	oh.ToggleAccessLog(nil, out)

	cleanup = func() error {
		accessLogsMu.Lock()
		defer accessLogsMu.Unlock()
		delete(accessLogs, servername)
		oh.ToggleAccessLog(alf.writer, nil)
		log.INFO("Closing access log", "file", filename)
		return alf.writer.Close()
	}
	return
}

func openAccessLog(filename string) (io.WriteCloser, error) {
	if strings.HasPrefix(filename, "|") {
		return nil, fmt.Errorf("Unsupported access log destination: %s", filename)
	}
	return os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
}

// -----------------------------  Control socket ------------------------------------

type accessLogCommand struct {
	mu       sync.Mutex
	handlers map[string]accesslog.DynamicLogHandler
	logger   daemon.LoggerFunc
}

func (lc *accessLogCommand) RegisterLogHandler(name string, lh accesslog.DynamicLogHandler) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.handlers[name] = lh
}

func (lc *accessLogCommand) handler(name string) (accesslog.DynamicLogHandler, bool) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	h, ok := lc.handlers[name]
	return h, ok
}

func (lc *accessLogCommand) ShortUsage() (syntax, comment string) {
	syntax = "-list | <server>"
	comment = "Output access log"
	return
}

func (lc *accessLogCommand) Usage(cmd string, w io.Writer) {
	fmt.Fprintln(w, cmd, "-list       List servers")
	fmt.Fprintln(w, cmd, "<server>    Output access log for this server")
}

func (lc *accessLogCommand) Invoke(ctx context.Context, w io.Writer, cmd string, args []string) (async func(), persistent string, err error) {

	fs := flag.NewFlagSet("alog", flag.ContinueOnError)
	list := fs.Bool("list", false, "List servers capable of access log")
	fs.SetOutput(w)
	err = fs.Parse(args)
	if err != nil {
		fmt.Fprintf(w, "Syntax error: %s", err.Error())
		return
	}

	if *list && fs.NArg() == 0 {
		lc.mu.Lock()
		for name := range lc.handlers {
			fmt.Fprintln(w, name)
		}
		lc.mu.Unlock()
		return
	}

	args = fs.Args()
	if len(args) != 1 {
		fmt.Fprintln(w, "No logging")
		return
	}
	handler, ok := lc.handler(args[0])
	if !ok {
		fmt.Fprintln(w, "No logging")
		return
	}

	persistent = cmd + " " + args[0]

	async = func() {
		lc.logger(daemon.LvlINFO, "Turning on access log")
		handler.ToggleAccessLog(nil, w)
		<-ctx.Done()
		lc.logger(daemon.LvlINFO, "Turning off access log")
		handler.ToggleAccessLog(w, nil)
	}
	return
}

func newAccessLogCommand(logger daemon.LoggerFunc) *accessLogCommand {
	return &accessLogCommand{
		logger:   logger,
		handlers: make(map[string]accesslog.DynamicLogHandler),
	}
}
