// Command wsappd runs the web services application server.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/One-com/gone/log"
	"github.com/One-com/gone/log/syslog"

	"github.com/One-com/wsapp"

	// built in services
	_ "github.com/One-com/wsapp/examples/services/diags"
	_ "github.com/One-com/wsapp/examples/services/hello"
)

var (
	VERSION   = "Not set"
	BUILDTIME = "In the past"
	REVISION  = "Unknown"
)

var (
	printVersion    bool
	configFile      string
	controlSocket   string
	shutdownTimeout time.Duration
	dryrun          bool
	logLevel        int
)

func init() {
	var maxprocs int

	flag.BoolVar(&printVersion, "v", false, "Print version")
	flag.StringVar(&configFile, "c", "wsapp.json", "Configuration file")
	flag.IntVar(&maxprocs, "j", runtime.NumCPU(), "Set GOMAXPROCS")

	flag.IntVar(&logLevel, "d", int(syslog.LOG_INFO), "Server syslog loglevel [0..7]")
	flag.BoolVar(&dryrun, "n", false, "Dryrun - Dump full config")
	flag.StringVar(&controlSocket, "s", "./wsapp-control.sock", "Path to control socket")
	flag.DurationVar(&shutdownTimeout, "g", time.Duration(0), "Default timeout to do graceful shutdown")

	flag.Parse()

	runtime.GOMAXPROCS(maxprocs)

	log.SetLevel(syslog.Priority(logLevel))
	log.SetFlags(log.Llevel | log.Lname)
	log.AutoColoring()

	wsapp.Init(wsapp.DumpConfig(dryrun), wsapp.ControlSocket(controlSocket), wsapp.ShutdownTimeout(shutdownTimeout))
}

func main() {

	if printVersion {
		fmt.Printf("Version:     \t%s\n", VERSION)
		fmt.Printf("Revision:    \t%s\n", REVISION)
		fmt.Printf("Build date:  \t%s\n", BUILDTIME)
		fmt.Printf("Go Compiler: \t%s\n", runtime.Version())
		return
	}

	// Main logs the reason of a failure
	if err := wsapp.Main(configFile); err != nil {
		os.Exit(2)
	}
}
