// Package control implements the appliance's three framed TCP/WebSocket
// control ports (§4.5/§6): a command port speaking a closed set of
// angle-bracketed tokens, a stream port serving raw frames, and a web
// port mirroring a slice of the command protocol over a WebSocket.
package control

import (
	"fmt"
	"regexp"
)

// frameRE splits a request frame into its token, optional ';'-delimited
// argument string, and any trailing JSON body — `<TOKEN>`,
// `<TOKEN:arg1;arg2>`, or `<SET_DEV_PARAMS>{...}`.
var frameRE = regexp.MustCompile(`^<([A-Z_]+)(?::([^>]*))?>(.*)$`)

// request is one parsed control-protocol frame.
type request struct {
	Token string
	Args  string
	Body  string
}

// parseFrame parses raw into a request, or reports ok=false if raw is
// not a well-formed `<TOKEN...>` frame.
func parseFrame(raw string) (request, bool) {
	m := frameRE.FindStringSubmatch(raw)
	if m == nil {
		return request{}, false
	}
	return request{Token: m[1], Args: m[2], Body: m[3]}, true
}

// nak is the fixed response to an unrecognized or malformed frame.
const nak = "<NAK>"

// reply frames token with body, e.g. reply("MODEL", "YOLOCAM") → "<MODEL:YOLOCAM>".
func reply(token, body string) string {
	return fmt.Sprintf("<%s:%s>", token, body)
}

// replyJSON frames token with a JSON body immediately following the
// closing '>', e.g. `<GET_DEV_PARAMS>{...}`.
func replyJSON(token string, json []byte) string {
	return fmt.Sprintf("<%s>%s", token, json)
}
