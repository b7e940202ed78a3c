package wsapp

import (
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/One-com/gone/daemon"
	"github.com/One-com/gone/daemon/ctrl"
	"github.com/One-com/gone/log"
	"github.com/One-com/gone/log/syslog"
	"github.com/One-com/gone/signals"

	"github.com/One-com/wsapp/config"
)

func init() {
	// Default to a simple systemd compatible log on stdout
	log.Minimal()
}

// A generic log function for lower level code.
func serverLogFunc(level int, message string) {
	log.Default().LogFromCaller(3, syslog.Priority(level), message)
}

/**************** SIGNAL HANDLING *******************/

// onSignalExit will ask the daemon to exit without waiting for graceful shutdown.
func onSignalExit() {
	log.Println("SIGINT received.")
	daemon.Exit(false)
}

// onSignalExitGraceful will ask the daemon to stop the server, letting it shutdown gracefully.
func onSignalExitGraceful() {
	log.Println("SIGTERM received.")
	daemon.Exit(true)
}

// onSignalIncLogLevel will increase the log level for the default logger.
func onSignalIncLogLevel() {
	log.IncLevel()
	log.Print(fmt.Sprintf("Log level: %d", log.Level()))
}

// onSignalDecLogLevel will decrease the log level for the default logger.
func onSignalDecLogLevel() {
	log.DecLevel()
	log.Print(fmt.Sprintf("Log level: %d", log.Level()))
}

// onSignalReopenAccessLogFiles will ask the access log file to be re-opened. (for external log rotation)
func onSignalReopenAccessLogFiles() {
	ReopenAccessLogFiles()
}

// HandledSignals is a map (syscall.Signal->func()) defining default
// OS signals to handle and how.
// Change this by assigning to HandledSignals before calling Init() if you need.
// Default signals:
//
//   SIGINT: Exit immediately
//   SIGTERM: Stop serving and exit once shutdown timeout is reached.
//   SIGTTIN: Increase log level
//   SIGTTOU: Decrease log level
//   SIGUSR1: Reopen the access log file.
//
// Services are discovered once, at startup, so there's no reload signal.
var HandledSignals = signals.Mappings{
	syscall.SIGINT:  onSignalExit,
	syscall.SIGTERM: onSignalExitGraceful,
	syscall.SIGTTIN: onSignalIncLogLevel,
	syscall.SIGTTOU: onSignalDecLogLevel,
	syscall.SIGUSR1: onSignalReopenAccessLogFiles,
}

/******************* Options ***********************************/

type runcfg struct {
	dryrun          bool          // just dump the parsed config and exit.
	controlsocket   string        // path of the UNIX control socket
	shutdowntimeout time.Duration // default delay to wait for graceful shutdown
	readymessage    string        // Message to send over systemd notify socket when ready
}

// Option to pass to Init()
type Option func(*runcfg)

// Default Config
var runCfg = runcfg{
	readymessage:  "Ready and serving",
	controlsocket: "./wsapp-control.sock",
}

// DumpConfig makes Main dry-run and exit after dumping the parsed configuration to os.Stdout
func DumpConfig(dryrun bool) Option {
	return Option(func(c *runcfg) {
		c.dryrun = dryrun
	})
}

// ControlSocket specifies an alternative path for the daemon
// control socket. If "", the socket is disabled.
// The socket defaults to "wsapp-control.sock" in the current working directory.
func ControlSocket(socketfile string) Option {
	return Option(func(c *runcfg) {
		c.controlsocket = socketfile
	})
}

// ShutdownTimeout changes how long to wait for the server to do graceful
// Shutdown before forcefully closing it. This is the default used by SIGTERM.
func ShutdownTimeout(to time.Duration) Option {
	return Option(func(c *runcfg) {
		c.shutdowntimeout = to
	})
}

// SdNotifyReadyMessage changes the default message to send to systemd
// via the notify socket.
func SdNotifyReadyMessage(msg string) Option {
	return Option(func(c *runcfg) {
		c.readymessage = msg
	})
}

/******************* Init logic ********************************/

var initOnce sync.Once

// DisableInit disables the default initialization of
// Logging, and OS signals using gone/log, gone/daemon and gone/signals.
// You are on your own now to handle signal and configure logging.
func DisableInit() {
	internalInit(false)
}

// Init initializes the daemon environment.
// If you don't call it, it is called for you by Main() and Server.Start().
// Init will: 1) Set the github.com/One-com/gone/daemon logger function. 2) Register a daemon controlling control socket command. 3) Start the signal handler processing HandledSignals.
// Options are applied on every call, but the initialization is done once.
func Init(opts ...Option) {
	internalInit(true, opts...)
}

func internalInit(doinit bool, opts ...Option) {

	for _, o := range opts {
		o(&runCfg)
	}

	initOnce.Do(func() {
		if doinit {
			daemon.SetLogger(serverLogFunc)
			ctrl.RegisterCommand("daemon", procControl)
			signals.RunSignalHandler(HandledSignals)
		}
	})
}

// Main runs a Server configured from the provided config file,
// serving services discovered in its services home directory until
// the process is asked to stop.
// Main can be provided options which will overwrite any options given to Init()
func Main(filename string, opts ...Option) error {
	return wsappmain(filename, opts...)
}

// wsappmain takes config as an interface to allow for an in memory buffer during tests
func wsappmain(cfgSpec interface{}, opts ...Option) (err error) {

	Init(opts...)

	var filename string
	var cfg *config.Config
	switch spec := cfgSpec.(type) {
	case string:
		filename = spec
		cfg, err = config.ParseConfigFromFile(spec)
	case io.ReadSeeker:
		cfg, err = config.ParseConfigFromReadSeeker(spec)
	default:
		err = fmt.Errorf("Unsupported config source %T", cfgSpec)
	}
	if err != nil {
		log.CRIT("Error parsing config file", "file", filename, "err", err)
		return
	}

	if runCfg.dryrun {
		cfg.Dump(os.Stdout)
		return
	}

	srv, err := NewServerFromConfig(cfg)
	if err != nil {
		log.CRIT("Error configuring server", "file", filename, "err", err)
		return
	}

	err = srv.Start(cfg.Settings)
	if err != nil {
		log.CRIT("aborting server start", "err", err)
	}
	return
}
