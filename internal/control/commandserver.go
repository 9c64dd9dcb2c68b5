package control

import (
	"bufio"
	"context"
	"fmt"
	crand "crypto/rand"
	"encoding/hex"
	"net"

	"github.com/stroemhansen/yolocam/internal/applog"
)

// CommandServer serves the command port (10001): one newline-terminated
// request frame in, one response frame out, per connection, for as long
// as the connection stays open — the teacher's serialmux line-framing
// idiom applied to a server rather than a serial port.
type CommandServer struct {
	addr    string
	handler *Handler
	logger  *applog.Logger
}

// NewCommandServer builds a CommandServer bound to addr (e.g. ":10001").
func NewCommandServer(addr string, handler *Handler, logger *applog.Logger) *CommandServer {
	return &CommandServer{addr: addr, handler: handler, logger: logger}
}

// Serve accepts connections until ctx is canceled or Listen fails.
func (s *CommandServer) Serve(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("control: command listen: %w", err)
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("control: command accept: %w", err)
			}
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *CommandServer) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	connID := randomConnID()

	scan := bufio.NewScanner(conn)
	for scan.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := scan.Text()
		if line == "" {
			continue
		}
		resp := s.handler.Dispatch(line)
		if _, err := fmt.Fprintln(conn, resp); err != nil {
			if s.logger != nil {
				s.logger.Networkf("control: command write to %s: %v", connID, err)
			}
			return
		}
	}
}

func randomConnID() string {
	b := make([]byte, 4)
	crand.Read(b)
	return hex.EncodeToString(b)
}
