package outbox

import (
	"encoding/json"
	"time"

	"github.com/stroemhansen/yolocam/internal/decision"
)

// FileSink writes each decision as standalone JSON. Enqueue is the
// entire delivery — there is nothing further to send.
type FileSink struct{}

func (FileSink) Serialize(d *decision.Decision) ([]byte, error) { return json.Marshal(d) }
func (FileSink) Send([]byte) error                              { return nil }
func (FileSink) FileExtension() string                          { return ".yod" }
func (FileSink) RetryDelayHint(bool) time.Duration              { return 0 }
func (FileSink) SettleAge() time.Duration                       { return 0 }
