// Package outbox spools sealed decisions to disk and drains them to
// their configured destination (file, spreadsheet, webhook, FTP, raw
// TCP socket). Every sink shares one capability surface — serialize,
// send, file extension, retry-delay hint — so the retry pump is
// generic and the sink-specific code is only the transport.
package outbox

import (
	"time"

	"github.com/stroemhansen/yolocam/internal/decision"
	"github.com/stroemhansen/yolocam/internal/fsutil"
)

// Sink is the capability set every delivery destination implements.
type Sink interface {
	// Serialize renders d into the bytes written to disk and later sent.
	Serialize(d *decision.Decision) ([]byte, error)
	// Send delivers data to the destination. A non-nil error means the
	// file stays spooled for the next pump pass.
	Send(data []byte) error
	// FileExtension names the spooled file's suffix (".yod", ".yop", ...).
	FileExtension() string
	// RetryDelayHint returns how long the pump should wait before its
	// next attempt, given whether the previous attempt succeeded.
	RetryDelayHint(success bool) time.Duration
	// SettleAge is how long a freshly spooled file is left untouched
	// before the pump will consider it, giving the writer time to
	// finish a multi-step write.
	SettleAge() time.Duration
}

// Outbox spools decisions for one sink under dir and drains them
// oldest-first on Pump.
type Outbox struct {
	sink Sink
	fs   fsutil.FileSystem
	dir  string
}

// New builds an Outbox that spools into dir using fs.
func New(sink Sink, fs fsutil.FileSystem, dir string) *Outbox {
	return &Outbox{sink: sink, fs: fs, dir: dir}
}

// Enqueue serializes d and atomically writes it into the spool
// directory under a name derived from its id.
func (o *Outbox) Enqueue(d *decision.Decision) error {
	data, err := o.sink.Serialize(d)
	if err != nil {
		return err
	}
	name := o.dir + "/" + d.ID + o.sink.FileExtension()
	return fsutil.AtomicWriteFile(o.fs, name, data, 0644)
}

// Pump attempts delivery of the oldest eligible spooled file. It
// delivers at most one file per call and stops at the first failure,
// so files are never delivered out of order. It returns the delay the
// caller should wait before calling Pump again.
func (o *Outbox) Pump(now time.Time) time.Duration {
	entries, err := fsutil.ListOldestFirst(o.dir, o.sink.FileExtension())
	if err != nil {
		return o.sink.RetryDelayHint(false)
	}

	for _, e := range entries {
		if now.Sub(e.ModTime) < o.sink.SettleAge() {
			continue
		}
		data, err := o.fs.ReadFile(e.Path)
		if err != nil {
			continue
		}
		if err := o.sink.Send(data); err != nil {
			return o.sink.RetryDelayHint(false)
		}
		_ = o.fs.Remove(e.Path)
		return o.sink.RetryDelayHint(true)
	}
	return o.sink.RetryDelayHint(true)
}

// Pending counts the spooled files awaiting delivery.
func (o *Outbox) Pending() (int, error) {
	entries, err := fsutil.ListOldestFirst(o.dir, o.sink.FileExtension())
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}
