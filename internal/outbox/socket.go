package outbox

import (
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/stroemhansen/yolocam/internal/decision"
)

// controlChars maps the bracketed tokens the options keyword list may
// contain to their ASCII control byte, letting a socket payload embed
// frame delimiters a text field could never carry literally.
var controlChars = map[string]byte{
	"<STX>": 0x02,
	"<ETX>": 0x03,
	"<ENQ>": 0x05,
	"<ACK>": 0x06,
	"<NAK>": 0x15,
	"<EOT>": 0x04,
	"<CR>":  0x0D,
	"<LF>":  0x0A,
}

// SocketSink assembles a ';'-joined payload from the decision's JSON
// fields named by the options keyword list (with bracketed tokens
// substituted for control bytes) and sends it over a fresh TCP
// connection per decision.
type SocketSink struct {
	addr    string
	options string
	retry   *retryPolicy
}

// NewSocketSink builds a SocketSink targeting addr with the given
// comma-separated options keyword list.
func NewSocketSink(addr, options string) *SocketSink {
	return &SocketSink{addr: addr, options: options, retry: newRetryPolicy(1*time.Second, 30*time.Second)}
}

func (s *SocketSink) Serialize(d *decision.Decision) ([]byte, error) { return json.Marshal(d) }
func (s *SocketSink) FileExtension() string                         { return ".yod" }
func (s *SocketSink) SettleAge() time.Duration                      { return 800 * time.Millisecond }
func (s *SocketSink) RetryDelayHint(success bool) time.Duration     { return s.retry.hint(success) }

func (s *SocketSink) Send(data []byte) error {
	payload, err := assembleSocketPayload(data, s.options)
	if err != nil {
		return fmt.Errorf("outbox: assemble socket payload: %w", err)
	}

	conn, err := net.DialTimeout("tcp", s.addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("outbox: socket dial: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("outbox: socket write: %w", err)
	}
	return nil
}

// assembleSocketPayload builds the ';'-joined payload described by
// §4.4: each comma-separated token in options is either a bracketed
// control-character placeholder or a field name resolved against the
// decision's JSON representation.
func assembleSocketPayload(decisionJSON []byte, options string) ([]byte, error) {
	var fields map[string]any
	if err := json.Unmarshal(decisionJSON, &fields); err != nil {
		return nil, err
	}

	var parts []string
	for _, tok := range strings.Split(options, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if b, ok := controlChars[tok]; ok {
			parts = append(parts, string(rune(b)))
			continue
		}
		v, ok := fields[tok]
		if !ok {
			parts = append(parts, "")
			continue
		}
		parts = append(parts, fmt.Sprintf("%v", v))
	}
	return []byte(strings.Join(parts, ";")), nil
}
