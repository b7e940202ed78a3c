package wsapp

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/One-com/gone/daemon"
	"github.com/One-com/gone/log"
	"github.com/One-com/gone/sd"
)

var procControl = &procCommand{}

// procCommand is a control socket command stopping the server process.
type procCommand struct{}

func (p *procCommand) ShortUsage() (syntax, comment string) {
	syntax = "[kill|stop <timeout seconds>]"
	comment = "control the daemon process"
	return
}

func (p *procCommand) Usage(cmd string, w io.Writer) {
	fmt.Fprintln(w, cmd, "kill                      Exit immediately")
	fmt.Fprintln(w, cmd, "stop <timeout seconds>    Stop serving and exit gracefully")
}

func (p *procCommand) Invoke(ctx context.Context, w io.Writer, cmd string, args []string) (async func(), persistent string, err error) {
	if len(args) == 0 {
		p.Usage(cmd, w)
		return
	}
	switch args[0] {
	case "kill":
		onSignalExit()
	case "stop":
		var timeout time.Duration
		if len(args) > 1 && args[1] != "" {
			var to int
			to, err = strconv.Atoi(args[1])
			if err != nil {
				return
			}
			timeout = time.Second * time.Duration(to)
		}
		log.NOTICE("Graceful exit", "timeout", timeout.String())
		sd.Notify(0, "STOPPING=1")
		daemon.ExitGracefulWithTimeout(timeout)
	default:
		fmt.Fprintln(w, "Unknown action")
	}
	return
}
