package outbox

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/stroemhansen/yolocam/internal/decision"
)

// FTPSink uploads a decision's JSON body over explicit FTPS (AUTH TLS).
// No FTP client appears anywhere in the example corpus, so this talks
// the control/data channel protocol directly over net/textproto and
// crypto/tls.
type FTPSink struct {
	addr     string
	username string
	password string
	remoteDir string
	timeout  time.Duration
}

// NewFTPSink builds an FTPSink targeting addr ("host:port").
func NewFTPSink(addr, username, password, remoteDir string) *FTPSink {
	return &FTPSink{addr: addr, username: username, password: password, remoteDir: remoteDir, timeout: 10 * time.Second}
}

func (s *FTPSink) Serialize(d *decision.Decision) ([]byte, error) { return json.Marshal(d) }
func (s *FTPSink) FileExtension() string                         { return ".yod" }
func (s *FTPSink) SettleAge() time.Duration                      { return 5 * time.Second }
func (s *FTPSink) RetryDelayHint(success bool) time.Duration {
	if success {
		return 2 * time.Second
	}
	return 60 * time.Second
}

// Send uploads data as a new file named by the current Unix time in
// nanoseconds (".yod" suffix) via STOR
// over a passive-mode FTPS data connection, and requires the server's
// 226 Transfer complete on the control channel before reporting success.
func (s *FTPSink) Send(data []byte) error {
	conn, err := net.DialTimeout("tcp", s.addr, s.timeout)
	if err != nil {
		return fmt.Errorf("outbox: ftp dial: %w", err)
	}
	defer conn.Close()

	text := textproto.NewConn(conn)
	if _, _, err := text.ReadResponse(220); err != nil {
		return fmt.Errorf("outbox: ftp banner: %w", err)
	}

	if err := ftpCommand(text, "AUTH TLS", 234); err != nil {
		return err
	}
	tlsConn := tls.Client(conn, &tls.Config{InsecureSkipVerify: true})
	text = textproto.NewConn(tlsConn)

	if err := ftpCommand(text, "USER "+s.username, 331); err != nil {
		return err
	}
	if err := ftpCommand(text, "PASS "+s.password, 230); err != nil {
		return err
	}
	if err := ftpCommand(text, "PBSZ 0", 200); err != nil {
		return err
	}
	if err := ftpCommand(text, "PROT P", 200); err != nil {
		return err
	}
	if s.remoteDir != "" {
		if err := ftpCommand(text, "CWD "+s.remoteDir, 250); err != nil {
			return err
		}
	}

	host, _, err := net.SplitHostPort(s.addr)
	if err != nil {
		return err
	}
	dataConn, err := openPassiveData(text, tlsConn, host, s.timeout)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("%d.yod", time.Now().UnixNano())
	id, err := text.Cmd("STOR %s", name)
	if err != nil {
		return err
	}
	text.StartResponse(id)
	_, _, err = text.ReadResponse(150)
	text.EndResponse(id)
	if err != nil {
		dataConn.Close()
		return fmt.Errorf("outbox: ftp stor: %w", err)
	}

	if _, err := dataConn.Write(data); err != nil {
		dataConn.Close()
		return fmt.Errorf("outbox: ftp data write: %w", err)
	}
	dataConn.Close()

	code, msg, err := text.ReadResponse(226)
	if err != nil {
		return fmt.Errorf("outbox: ftp transfer not confirmed (code %d: %s): %w", code, msg, err)
	}
	return nil
}

func ftpCommand(text *textproto.Conn, cmd string, expectCode int) error {
	id, err := text.Cmd("%s", cmd)
	if err != nil {
		return err
	}
	text.StartResponse(id)
	defer text.EndResponse(id)
	_, _, err = text.ReadResponse(expectCode)
	if err != nil {
		return fmt.Errorf("outbox: ftp %q: %w", cmd, err)
	}
	return nil
}

// openPassiveData issues PASV and opens the data connection it
// describes, over TLS since this is an FTPS session.
func openPassiveData(text *textproto.Conn, raw net.Conn, host string, timeout time.Duration) (net.Conn, error) {
	id, err := text.Cmd("PASV")
	if err != nil {
		return nil, err
	}
	text.StartResponse(id)
	_, msg, err := text.ReadResponse(227)
	text.EndResponse(id)
	if err != nil {
		return nil, fmt.Errorf("outbox: ftp pasv: %w", err)
	}

	port, err := parsePASV(msg)
	if err != nil {
		return nil, err
	}

	dataAddr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", dataAddr, timeout)
	if err != nil {
		return nil, fmt.Errorf("outbox: ftp data dial: %w", err)
	}
	return tls.Client(conn, &tls.Config{InsecureSkipVerify: true}), nil
}

// parsePASV extracts the port number from a "227 Entering Passive
// Mode (h1,h2,h3,h4,p1,p2)" response.
func parsePASV(msg string) (int, error) {
	start := strings.IndexByte(msg, '(')
	end := strings.IndexByte(msg, ')')
	if start < 0 || end < 0 || end <= start {
		return 0, fmt.Errorf("outbox: malformed PASV response: %s", msg)
	}
	parts := strings.Split(msg[start+1:end], ",")
	if len(parts) != 6 {
		return 0, fmt.Errorf("outbox: malformed PASV response: %s", msg)
	}
	p1, err := strconv.Atoi(parts[4])
	if err != nil {
		return 0, err
	}
	p2, err := strconv.Atoi(parts[5])
	if err != nil {
		return 0, err
	}
	return p1*256 + p2, nil
}
