package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/gasbridge/pkg/mavlink"
	"github.com/robotalks/gasbridge/pkg/serial"
)

// DefaultInboxSize is the number of facts kept between polls.
const DefaultInboxSize = 256

// Fact is a decoded inbound message.
type Fact struct {
	Time        time.Time
	Seq         mavlink.Seq
	SystemID    byte
	ComponentID byte
	MsgID       uint32
	Message     mavlink.Message
}

// Name returns the message name.
func (f Fact) Name() string {
	return mavlink.Name(f.MsgID)
}

// Sent describes a send attempt.
type Sent struct {
	Seq   mavlink.Seq
	MsgID uint32
	Size  int
	Time  time.Time
}

// Counters are link statistics since creation.
type Counters struct {
	Sent       uint64 `json:"sent"`
	SendErrors uint64 `json:"send_errors"`
	Frames     uint64 `json:"frames"`
	BadFrames  uint64 `json:"bad_frames"`
	Unknown    uint64 `json:"unknown"`
	Dropped    uint64 `json:"dropped"`
}

// Link is the connection to the flight controller.
//
// The sequence number is taken before writing and advances once per send
// attempt that got as far as the write, so a failed write leaves a gap but
// sequence numbers are never repeated. An encoding failure doesn't consume
// a sequence number.
type Link struct {
	Channel     *serial.Channel
	SystemID    byte
	ComponentID byte
	Facts       *FactsStore
	InboxSize   int
	Now         func() time.Time

	sendLock sync.Mutex
	seq      mavlink.Seq

	inboxLock sync.Mutex
	inbox     []Fact
	incoming  chan struct{}

	sent, sendErrors, frames, badFrames, unknown, dropped atomic.Uint64
}

// NewLink creates a Link over a channel.
func NewLink(ch *serial.Channel, sysID, compID byte) *Link {
	return &Link{
		Channel:     ch,
		SystemID:    sysID,
		ComponentID: compID,
		Facts:       &FactsStore{},
		InboxSize:   DefaultInboxSize,
		Now:         time.Now,
		incoming:    make(chan struct{}, 1),
	}
}

// Open opens the underlying channel.
func (l *Link) Open() error {
	return l.Channel.Open()
}

// Close closes the underlying channel, unblocking Run.
func (l *Link) Close() error {
	return l.Channel.Close()
}

// State returns the channel state.
func (l *Link) State() serial.State {
	return l.Channel.State()
}

// NextSeq returns the sequence number the next send will use.
func (l *Link) NextSeq() mavlink.Seq {
	l.sendLock.Lock()
	defer l.sendLock.Unlock()
	return l.seq
}

// Send encodes and writes a message. Failures are returned to the caller,
// nothing is retried here.
func (l *Link) Send(msg mavlink.Message) (Sent, error) {
	l.sendLock.Lock()
	defer l.sendLock.Unlock()
	seq := l.seq
	b, err := mavlink.Encode(msg, l.SystemID, l.ComponentID, seq)
	if err != nil {
		return Sent{}, err
	}
	l.seq = seq.Next()
	sent := Sent{Seq: seq, MsgID: msg.MsgID(), Size: len(b), Time: l.Now()}
	if err := l.Channel.Write(b); err != nil {
		l.sendErrors.Add(1)
		return sent, err
	}
	l.sent.Add(1)
	return sent, nil
}

// Run reads and parses inbound frames until ctx is done or the channel fails.
func (l *Link) Run(ctx context.Context) error {
	var parser mavlink.Parser
	buf := make([]byte, 512)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := l.Channel.Read(buf)
		if err != nil {
			return err
		}
		for _, r := range parser.Feed(buf[:n]) {
			l.handleResult(r)
		}
	}
}

func (l *Link) handleResult(r mavlink.Result) {
	if r.Err != nil {
		l.badFrames.Add(1)
		if glog.V(2) {
			glog.Infof("link %s: %v", l.Channel.Path, r.Err)
		}
		return
	}
	l.frames.Add(1)
	msg, err := mavlink.Decode(r.Frame)
	if err != nil {
		l.unknown.Add(1)
		if glog.V(4) {
			glog.Infof("link %s: skip %v", l.Channel.Path, err)
		}
		return
	}
	now := l.Now()
	l.Facts.apply(msg, r.Frame, now)
	l.push(Fact{
		Time:        now,
		Seq:         r.Frame.Seq,
		SystemID:    r.Frame.SystemID,
		ComponentID: r.Frame.ComponentID,
		MsgID:       r.Frame.MsgID,
		Message:     msg,
	})
}

func (l *Link) push(f Fact) {
	l.inboxLock.Lock()
	if size := l.InboxSize; size > 0 && len(l.inbox) >= size {
		l.inbox = l.inbox[1:]
		l.dropped.Add(1)
	}
	l.inbox = append(l.inbox, f)
	l.inboxLock.Unlock()
	select {
	case l.incoming <- struct{}{}:
	default:
	}
}

// Incoming is signaled when facts are waiting to be polled.
func (l *Link) Incoming() <-chan struct{} {
	return l.incoming
}

// Poll returns the facts received since the last poll.
func (l *Link) Poll() []Fact {
	l.inboxLock.Lock()
	defer l.inboxLock.Unlock()
	facts := l.inbox
	l.inbox = nil
	return facts
}

// Counters returns a copy of the statistics.
func (l *Link) Counters() Counters {
	return Counters{
		Sent:       l.sent.Load(),
		SendErrors: l.sendErrors.Load(),
		Frames:     l.frames.Load(),
		BadFrames:  l.badFrames.Load(),
		Unknown:    l.unknown.Load(),
		Dropped:    l.dropped.Load(),
	}
}
