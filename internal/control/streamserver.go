package control

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"net"

	"github.com/stroemhansen/yolocam/internal/applog"
)

// StreamServer serves the stream port (10003): the sole accepted frame
// is "<GET_FRAME>", answered with the capture loop's current JPEG
// base64-encoded into the reply body.
type StreamServer struct {
	addr   string
	frames FrameSource
	logger *applog.Logger
}

// NewStreamServer builds a StreamServer bound to addr (e.g. ":10003").
func NewStreamServer(addr string, frames FrameSource, logger *applog.Logger) *StreamServer {
	return &StreamServer{addr: addr, frames: frames, logger: logger}
}

// Serve accepts connections until ctx is canceled or Listen fails.
func (s *StreamServer) Serve(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("control: stream listen: %w", err)
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
				return fmt.Errorf("control: stream accept: %w", err)
			}
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *StreamServer) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	scan := bufio.NewScanner(conn)
	for scan.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		req, ok := parseFrame(scan.Text())
		if !ok || req.Token != "GET_FRAME" {
			fmt.Fprintln(conn, nak)
			continue
		}

		frame, ok := s.frames.CurrentFrameJPEG()
		if !ok {
			fmt.Fprintln(conn, nak)
			continue
		}
		resp := reply("GET_FRAME", base64.StdEncoding.EncodeToString(frame))
		if _, err := fmt.Fprintln(conn, resp); err != nil {
			if s.logger != nil {
				s.logger.Networkf("control: stream write: %v", err)
			}
			return
		}
	}
}
