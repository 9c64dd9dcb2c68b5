package control

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/stroemhansen/yolocam/internal/applog"
)

// webFrame is the web port's JSON envelope — the same token/cmd set the
// command port speaks, framed as a WebSocket text message instead of an
// angle-bracketed line, per §6's "slightly different framing."
type webFrame struct {
	Cmd  string          `json:"cmd"`
	Args string          `json:"args,omitempty"`
	Body json.RawMessage `json:"body,omitempty"`
}

// webReply mirrors webFrame for responses; Data carries whatever the
// handler's reply body decoded to (string or object), Ok reports
// whether the command succeeded.
type webReply struct {
	Cmd string `json:"cmd"`
	Ok  bool   `json:"ok"`
	Data any    `json:"data,omitempty"`
}

// WebServer serves the web control port (10005): dev/cam/get-frame
// mirrored over a live WebSocket connection instead of the command
// port's line protocol.
type WebServer struct {
	addr     string
	handler  *Handler
	logger   *applog.Logger
	upgrader websocket.Upgrader
}

// NewWebServer builds a WebServer bound to addr (e.g. ":10005").
func NewWebServer(addr string, handler *Handler, logger *applog.Logger) *WebServer {
	return &WebServer{
		addr:    addr,
		handler: handler,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Mux returns the http.ServeMux the caller should serve on addr (or
// mount alongside other routes), wiring the single "/" WebSocket
// upgrade endpoint.
func (s *WebServer) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleUpgrade)
	return mux
}

// ListenAndServe starts a dedicated HTTP server on addr for the
// WebSocket upgrade endpoint.
func (s *WebServer) ListenAndServe() error {
	return http.ListenAndServe(s.addr, s.Mux())
}

func (s *WebServer) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Networkf("control: web upgrade: %v", err)
		}
		return
	}
	defer conn.Close()

	for {
		var req webFrame
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		raw := "<" + req.Cmd + ">"
		if req.Args != "" {
			raw = "<" + req.Cmd + ":" + req.Args + ">"
		}
		raw += string(req.Body)

		resp := s.handler.Dispatch(raw)
		if req.Cmd == "GET_FRAME" && s.handler.Frames != nil {
			if frame, ok := s.handler.Frames.CurrentFrameJPEG(); ok {
				resp = reply("GET_FRAME", base64.StdEncoding.EncodeToString(frame))
			}
		}
		out := decodeWebReply(req.Cmd, resp)
		if err := conn.WriteJSON(out); err != nil {
			return
		}
	}
}

// decodeWebReply converts the command port's "<TOKEN:body>" framing
// back into a structured webReply for the WebSocket client.
func decodeWebReply(cmd, resp string) webReply {
	if resp == nak {
		return webReply{Cmd: cmd, Ok: false}
	}
	parsed, ok := parseFrame(resp)
	if !ok {
		return webReply{Cmd: cmd, Ok: false}
	}

	var data any = parsed.Args
	if parsed.Body != "" {
		var decoded any
		if err := json.Unmarshal([]byte(parsed.Body), &decoded); err == nil {
			data = decoded
		} else {
			data = parsed.Body
		}
	}
	return webReply{Cmd: cmd, Ok: true, Data: data}
}
