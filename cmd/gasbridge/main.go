package main

//go-build: CGO_ENABLED=0

import (
	"errors"
	"flag"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/gasbridge/pkg/bridge"
	"github.com/robotalks/gasbridge/pkg/config"
	"github.com/robotalks/gasbridge/pkg/framework"
	"github.com/robotalks/gasbridge/pkg/recorder"
)

// Exit codes.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
	exitStorage = 3
)

func init() {
	config.SetupFlags()
}

func exitCode(err error) int {
	var cfgErr *config.Error
	var storageErr *recorder.StorageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &cfgErr):
		return exitConfig
	case errors.As(err, &storageErr):
		return exitStorage
	}
	return exitRuntime
}

func run() error {
	cfg, err := config.LoadDefault()
	if err != nil {
		return err
	}
	b, err := bridge.New(cfg, bridge.Options{})
	if err != nil {
		return err
	}
	return framework.NewRunner().HandleSignals().
		Go(framework.NamedRun("bridge", b)).
		Wait()
}

func main() {
	flag.Parse()
	err := run()
	if err != nil {
		glog.Errorf("gasbridge: %v", err)
	}
	glog.Flush()
	os.Exit(exitCode(err))
}
