// Package bridge wires gas sensors to the flight controller link. Every
// serial channel is kept open by its own supervisor, decoded readings are
// queued in a bounded backlog and sent by a single transmitter, and
// everything that happens is written to the recorder.
package bridge

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/gasbridge/pkg/config"
	"github.com/robotalks/gasbridge/pkg/framework"
	"github.com/robotalks/gasbridge/pkg/mirror"
	"github.com/robotalks/gasbridge/pkg/recorder"
	"github.com/robotalks/gasbridge/pkg/serial"
	"github.com/robotalks/gasbridge/pkg/telemetry"
)

// Record sources not naming a sensor.
const (
	SourceLink    = "link"
	SourceBridge  = "bridge"
	SourceBacklog = "backlog"
)

// Options are the runtime dependencies of a Bridge.
type Options struct {
	// Opener opens serial ports, serial.OpenPort if nil.
	Opener serial.Opener
	// Mirrors are added to the ones from the configuration.
	Mirrors []mirror.Mirror
	Now     func() time.Time
}

// Bridge is the running bridge.
type Bridge struct {
	cfg  config.Config
	now  func() time.Time
	boot time.Time

	recorder *recorder.Recorder
	link     *telemetry.Link
	linkSup  *supervisor
	backlog  *Backlog
	mirrors  *mirror.Mux
	pumps    []*pump
	sups     []*supervisor
	linkUp   chan struct{}

	frameErrors, encodeErrors, sendFailures atomic.Uint64
}

// New validates the configuration, checks the output directory and builds
// all components. Nothing is opened before Run. It returns *config.Error
// for configuration problems and *recorder.StorageError if the output
// directory is not usable.
func New(cfg *config.Config, opts Options) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := recorder.Preflight(cfg.OutputDirectory); err != nil {
		return nil, err
	}
	if opts.Opener == nil {
		opts.Opener = serial.OpenPort
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	var mirrors []mirror.Mirror
	if port := cfg.Mirror.LoRaPort; port != "" {
		mirrors = append(mirrors, mirror.NewLoRa(serial.NewChannel(port, cfg.Mirror.LoRaBaud, opts.Opener)))
	}
	if url := cfg.Mirror.MQTTURL; url != "" {
		m, err := mirror.NewMQTT(url, cfg.Mirror.MQTTClientID)
		if err != nil {
			return nil, config.NewError(err)
		}
		mirrors = append(mirrors, m)
	}
	mirrors = append(mirrors, opts.Mirrors...)

	b := &Bridge{
		cfg:     *cfg,
		now:     opts.Now,
		boot:    opts.Now(),
		backlog: NewBacklog(cfg.BacklogSize),
		mirrors: mirror.NewMux(0, mirrors...),
		linkUp:  make(chan struct{}, 1),
	}
	b.recorder = recorder.New(recorder.Options{
		Dir:           cfg.OutputDirectory,
		QueueSize:     cfg.Recorder.QueueSize,
		MaxFileBytes:  cfg.Recorder.MaxFileBytes,
		MaxFileAge:    cfg.Recorder.MaxFileAge,
		PendingLimit:  cfg.Recorder.PendingLimit,
		RetryInterval: cfg.Recorder.RetryInterval,
		SampleCSV:     cfg.Recorder.SampleCSV,
		Now:           opts.Now,
	})

	b.link = telemetry.NewLink(
		serial.NewChannel(cfg.Link.Port, cfg.Link.Baud, opts.Opener),
		byte(cfg.Link.SystemID), byte(cfg.Link.ComponentID))
	b.link.Now = opts.Now
	b.linkSup = b.supervise(SourceLink, "link", cfg.Link.Port, cfg.Backoff.Link, b.link.Open, b.serveLink, b.link.Close)
	b.linkSup.onOpen = func() {
		select {
		case b.linkUp <- struct{}{}:
		default:
		}
	}

	for _, sc := range cfg.EnabledSensors() {
		p := newPump(b, sc, serial.NewChannel(sc.Port, sc.Baud, opts.Opener))
		b.pumps = append(b.pumps, p)
		p.sup = b.supervise(sc.Name, "sensor", sc.Port, cfg.Backoff.Sensor, p.open, p.serve, p.channel.Close)
	}
	return b, nil
}

func (b *Bridge) supervise(name, role, port string, backoff config.BackoffConfig,
	open func() error, serve func(context.Context) error, close func() error) *supervisor {
	s := &supervisor{
		name:    name,
		role:    role,
		port:    port,
		backoff: backoff,
		open:    open,
		serve:   serve,
		close:   close,
	}
	s.onTransition = func(from, to State, err error) {
		b.record(recorder.Event(name, role+" "+to.String(), err, b.now()))
		switch {
		case to == StateError && role == "link":
			glog.Errorf("%s %s (%s): %v", role, name, port, err)
		case to == StateError:
			glog.Warningf("%s %s (%s): %v", role, name, port, err)
		case to == StateOpen && from == StateReconnecting:
			glog.Infof("%s %s (%s) reconnected", role, name, port)
		case bool(glog.V(2)):
			glog.Infof("%s %s (%s): %s -> %s", role, name, port, from, to)
		}
	}
	b.sups = append(b.sups, s)
	return s
}

// Run runs the bridge until ctx is done. The recorder is drained and
// closed before returning.
func (b *Bridge) Run(ctx context.Context) error {
	glog.Infof("bridge starting: %d sensors, link %s, output %s",
		len(b.pumps), b.cfg.Link.Port, b.cfg.OutputDirectory)
	b.record(recorder.Event(SourceBridge, "started", nil, b.now()))

	runner := framework.NewRunnerWith(ctx)
	for _, s := range b.sups {
		runner.Go(framework.NamedRun(s.Name(), s))
	}
	runner.Go(
		framework.NamedRun("transmit", framework.RunFunc(b.transmit)),
		framework.NamedRun("facts", framework.RunFunc(b.receive)),
		framework.NamedRun("mirrors", b.mirrors),
		framework.NamedRun("status", framework.RunFunc(b.reportStatus)),
	)
	var errs framework.AggregatedError
	errs.Add(runner.Wait())

	b.record(recorder.Event(SourceBridge, "stopped", nil, b.now()))
	if err := b.mirrors.Close(); err != nil {
		glog.Warningf("close mirrors: %v", err)
	}
	errs.Add(b.recorder.Close())
	glog.Infof("bridge stopped: %s", b.Health())
	return errs.Aggregate()
}

func (b *Bridge) serveLink(ctx context.Context) error {
	return framework.RunWithContextCloser(ctx, b.link, func() error {
		return b.link.Run(ctx)
	})
}

func (b *Bridge) record(rec recorder.Record) {
	b.recorder.Record(rec)
}

// Link returns the flight controller link.
func (b *Bridge) Link() *telemetry.Link {
	return b.link
}

// Backlog returns the readings waiting for the link.
func (b *Bridge) Backlog() *Backlog {
	return b.backlog
}

// Recorder returns the recorder.
func (b *Bridge) Recorder() *recorder.Recorder {
	return b.recorder
}
