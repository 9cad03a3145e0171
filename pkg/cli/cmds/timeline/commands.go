package timeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/gasbridge/pkg/cli/sh"
	"github.com/robotalks/gasbridge/pkg/recorder"
)

func parseCount(args []string) (int, error) {
	if len(args) == 0 {
		return DefaultCount, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("Invalid N: %s", args[0])
	}
	return n, nil
}

func printLast(c *ishell.Context, args []string, fn func(*recorder.Record) bool) {
	n, err := parseCount(args)
	if err != nil {
		c.Err(err)
		return
	}
	sh.Print(c, Filter(sh.ShellFrom(c).Records, fn).Last(n))
}

func knownKind(kind recorder.Kind) bool {
	for _, k := range recorder.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

var (
	// SummaryCmd prints a summary of loaded records.
	SummaryCmd = ishell.Cmd{
		Name:    "summary",
		Aliases: []string{"s"},
		Help:    "",
		Func: sh.MustBeLoaded(func(c *ishell.Context) {
			sh.Print(c, Summarize(sh.ShellFrom(c).Records))
		}),
	}

	// TailCmd prints the last records.
	TailCmd = ishell.Cmd{
		Name:    "tail",
		Aliases: []string{"t"},
		Help:    "[N]",
		Func: sh.MustBeLoaded(func(c *ishell.Context) {
			printLast(c, c.Args, func(*recorder.Record) bool { return true })
		}),
	}

	// KindCmd prints the last records of a kind.
	KindCmd = ishell.Cmd{
		Name:    "kind",
		Aliases: []string{"k"},
		Help:    "KIND [N]",
		Func: sh.MustBeLoaded(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("KIND required"))
				return
			}
			kind := recorder.Kind(strings.ToLower(c.Args[0]))
			if !knownKind(kind) {
				c.Err(fmt.Errorf("Invalid KIND: %s", c.Args[0]))
				return
			}
			printLast(c, c.Args[1:], func(rec *recorder.Record) bool { return rec.Kind == kind })
		}),
	}

	// SensorCmd prints the last records of a sensor.
	SensorCmd = ishell.Cmd{
		Name:    "sensor",
		Aliases: []string{"src"},
		Help:    "NAME [N]",
		Func: sh.MustBeLoaded(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("NAME required"))
				return
			}
			name := c.Args[0]
			printLast(c, c.Args[1:], func(rec *recorder.Record) bool {
				return strings.EqualFold(rec.Source, name)
			})
		}),
	}
)

func init() {
	sh.AddCmds(
		&SummaryCmd,
		&TailCmd,
		&KindCmd,
		&SensorCmd,
	)
}
