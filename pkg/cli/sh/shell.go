// Package sh is the interactive shell for inspecting recorded logs.
package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/gasbridge/pkg/recorder"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell   *ishell.Shell
	Files   []string
	Records []recorder.Record
}

const (
	shellKey       = "$shell"
	emptyPrompt    = "[none] > "
	loadedPromptFn = "[%d records] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool
	openPath   string

	// commands
	commands = []*ishell.Cmd{
		&OpenCmd,
		&CloseCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.StringVar(&openPath, "open", openPath, "Log file or directory opened on start.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New() *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Shell:       ishell.New(),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(emptyPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeLoaded wraps command func requires records.
func MustBeLoaded(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if len(ShellFrom(c).Files) == 0 {
			c.Err(fmt.Errorf("no log opened"))
			return
		}
		fn(c)
	}
}

// Open loads log files. A directory expands to the logs in it, oldest
// first.
func (s *Shell) Open(paths ...string) error {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		logs, err := recorder.LogFiles(path)
		if err != nil {
			return err
		}
		files = append(files, logs...)
	}
	recs, err := recorder.ReadFiles(files...)
	if err != nil {
		return err
	}
	s.Files, s.Records = files, recs
	s.Shell.SetPrompt(fmt.Sprintf(loadedPromptFn, len(recs)))
	return nil
}

// Close forgets the loaded records.
func (s *Shell) Close() {
	s.Files, s.Records = nil, nil
	s.Shell.SetPrompt(emptyPrompt)
}

// Print prints v as JSON in JSON mode, or with its String form.
func Print(c *ishell.Context, v fmt.Stringer) {
	if ShellFrom(c).OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(v.String())
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// OpenCmd loads log files.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "FILE|DIR...",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(fmt.Errorf("FILE required"))
				return
			}
			s := ShellFrom(c)
			if err := s.Open(c.Args...); err != nil {
				c.Err(err)
				return
			}
			if s.Interactive && !s.OutputJSON {
				c.Printf("%d records from %d files\n", len(s.Records), len(s.Files))
			}
		},
	}

	// CloseCmd forgets loaded records.
	CloseCmd = ishell.Cmd{
		Name: "close",
		Help: "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Close()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	s := New()
	if openPath != "" {
		if err := s.Open(openPath); err != nil {
			log.Fatalln(err)
		}
	}
	s.Run(flag.Args()...)
}
