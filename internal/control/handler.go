package control

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/stroemhansen/yolocam/internal/appconfig"
	"github.com/stroemhansen/yolocam/internal/applog"
	"github.com/stroemhansen/yolocam/internal/decision"
	"github.com/stroemhansen/yolocam/internal/reading"
)

// GPIO is the subset of gpioctl's capability the command port drives.
// value is 0/1/2 = off/on/pulse on Set, the pin's live level on Get.
type GPIO interface {
	Get(pin int) (int, error)
	Set(pin int, value int) error
}

// FrameSource hands back the capture loop's current JPEG frame for
// <GET_FRAME> and <GET_RESULT>.
type FrameSource interface {
	CurrentFrameJPEG() ([]byte, bool)
}

// Recognizer is the subset of lprengine.Client the command port needs
// for a synchronous <GET_RESULT>.
type Recognizer interface {
	Recognize(cameraID string, frame []byte, regions, config string, mmc bool) (reading.Reading, error)
}

// NewPlateFlag is an edge-triggered latch the aggregator sets on every
// decision emission and <GET_NEW_PLATE> reads-and-clears.
type NewPlateFlag struct{ armed int32 }

// Set arms the flag.
func (f *NewPlateFlag) Set() { atomic.StoreInt32(&f.armed, 1) }

// TestAndClear reports whether the flag was armed, clearing it either way.
func (f *NewPlateFlag) TestAndClear() bool {
	return atomic.SwapInt32(&f.armed, 0) == 1
}

// Handler dispatches one parsed control-protocol frame to its action,
// holding every dependency the token table in §6 needs.
type Handler struct {
	Store      *appconfig.Store
	Blacklist  *appconfig.PlateList
	Whitelist  *appconfig.PlateList
	Ignorelist *appconfig.PlateList
	Logger     *applog.Logger
	Queue      *decision.Queue
	History    *reading.History
	GPIO       GPIO
	Frames     FrameSource
	Recognizer Recognizer
	NewPlate   *NewPlateFlag

	// Watchdog returns the housekeeper's 0..99 rollover counter.
	Watchdog func() int
	// CalibratePosition seeds the gyroscope's zero reference.
	CalibratePosition func() error
	// ResetStatistics clears counters named by the given bitmask
	// (bit0 decisions, bit1 fan-time).
	ResetStatistics func(flags int)
}

// Dispatch parses raw and returns the single response frame. An
// unrecognized token, or one whose handler errors, yields "<NAK>".
func (h *Handler) Dispatch(raw string) string {
	req, ok := parseFrame(raw)
	if !ok {
		return nak
	}

	switch req.Token {
	case "PING":
		return "<PING>"
	case "MODEL":
		return reply("MODEL", "YOLOCAM")
	case "WATCHDOG":
		if h.Watchdog == nil {
			return nak
		}
		return reply("WATCHDOG", strconv.Itoa(h.Watchdog()%100))
	case "GET_DEV_PARAMS":
		return h.getDevParams()
	case "SET_DEV_PARAMS":
		return h.setDevParams(req.Body)
	case "GET_CAM_PARAMS":
		return h.getCamParams()
	case "SET_CAM_PARAMS":
		return h.setCamParams(req.Body)
	case "GET_BLACKLIST":
		return h.getList(h.Blacklist, "GET_BLACKLIST")
	case "SET_BLACKLIST":
		return h.setList(h.Blacklist, req.Args, "SET_BLACKLIST")
	case "ADD_BLACKLIST":
		return h.addList(h.Blacklist, req.Args, "ADD_BLACKLIST")
	case "GET_WHITELIST":
		return h.getList(h.Whitelist, "GET_WHITELIST")
	case "SET_WHITELIST":
		return h.setList(h.Whitelist, req.Args, "SET_WHITELIST")
	case "ADD_WHITELIST":
		return h.addList(h.Whitelist, req.Args, "ADD_WHITELIST")
	case "GET_IGNORELIST":
		return h.getList(h.Ignorelist, "GET_IGNORELIST")
	case "SET_IGNORELIST":
		return h.setList(h.Ignorelist, req.Args, "SET_IGNORELIST")
	case "ADD_IGNORELIST":
		return h.addList(h.Ignorelist, req.Args, "ADD_IGNORELIST")
	case "GET_GPIO":
		return h.getGPIO(req.Args)
	case "SET_GPIO":
		return h.setGPIO(req.Args)
	case "GET_LOG_MESSAGES":
		return h.getLogMessages(req.Args)
	case "RESET_STATISTICS":
		return h.resetStatistics(req.Args)
	case "CALIBRATE_POSITION":
		return h.calibratePosition()
	case "GET_DECISION":
		return h.getDecision(req.Args)
	case "ACK_DECISION":
		return h.ackDecision(req.Args)
	case "GET_RESULT":
		return h.getResult()
	case "GET_READING":
		return h.getReading(req.Args)
	case "GET_NEW_PLATE":
		return h.getNewPlate()
	default:
		return nak
	}
}

func (h *Handler) getDevParams() string {
	data, err := json.Marshal(h.Store.Device())
	if err != nil {
		return nak
	}
	return replyJSON("GET_DEV_PARAMS", data)
}

func (h *Handler) setDevParams(body string) string {
	var incoming appconfig.Device
	if err := json.Unmarshal([]byte(body), &incoming); err != nil {
		return nak
	}
	if err := h.Store.UpdateDevice(func(d *appconfig.Device) { *d = incoming }); err != nil {
		return nak
	}
	return reply("SET_DEV_PARAMS", "OK")
}

func (h *Handler) getCamParams() string {
	data, err := json.Marshal(h.Store.Camera())
	if err != nil {
		return nak
	}
	return replyJSON("GET_CAM_PARAMS", data)
}

func (h *Handler) setCamParams(body string) string {
	var incoming appconfig.Camera
	if err := json.Unmarshal([]byte(body), &incoming); err != nil {
		return nak
	}
	if err := h.Store.UpdateCamera(func(c *appconfig.Camera) { *c = incoming }); err != nil {
		return nak
	}
	return reply("SET_CAM_PARAMS", "OK")
}

func (h *Handler) getList(list *appconfig.PlateList, token string) string {
	if list == nil {
		return nak
	}
	return reply(token, strings.Join(list.All(), "|"))
}

func (h *Handler) setList(list *appconfig.PlateList, args, token string) string {
	if list == nil {
		return nak
	}
	plates := splitPipeList(args)
	if err := list.Set(plates); err != nil {
		return nak
	}
	return reply(token, "OK")
}

func (h *Handler) addList(list *appconfig.PlateList, args, token string) string {
	if list == nil {
		return nak
	}
	for _, p := range splitPipeList(args) {
		if err := list.Add(p); err != nil {
			return nak
		}
	}
	return reply(token, "OK")
}

func splitPipeList(args string) []string {
	if args == "" {
		return nil
	}
	return strings.Split(args, "|")
}

func (h *Handler) getGPIO(args string) string {
	n, err := strconv.Atoi(args)
	if err != nil || h.GPIO == nil {
		return nak
	}
	v, err := h.GPIO.Get(n)
	if err != nil {
		return nak
	}
	return reply("GET_GPIO", fmt.Sprintf("%d;%d", n, v))
}

func (h *Handler) setGPIO(args string) string {
	parts := strings.SplitN(args, ";", 2)
	if len(parts) != 2 || h.GPIO == nil {
		return nak
	}
	n, err1 := strconv.Atoi(parts[0])
	v, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return nak
	}
	if err := h.GPIO.Set(n, v); err != nil {
		return nak
	}
	return reply("SET_GPIO", "OK")
}

func (h *Handler) getLogMessages(clientID string) string {
	if h.Logger == nil || clientID == "" {
		return nak
	}
	return reply("GET_LOG_MESSAGES", strings.Join(h.Logger.PendingMessages(clientID), "|"))
}

func (h *Handler) resetStatistics(args string) string {
	flags, err := strconv.Atoi(args)
	if err != nil || h.ResetStatistics == nil {
		return nak
	}
	h.ResetStatistics(flags)
	return reply("RESET_STATISTICS", "OK")
}

func (h *Handler) calibratePosition() string {
	if h.CalibratePosition == nil {
		return nak
	}
	if err := h.CalibratePosition(); err != nil {
		return nak
	}
	return reply("CALIBRATE_POSITION", "OK")
}

// getDecision implements §4.5's pull protocol: the oldest finalized
// decision not yet acked by clientID, falling back to the on-disk
// flushed store once the in-memory queue is drained.
func (h *Handler) getDecision(clientID string) string {
	if h.Queue == nil || clientID == "" {
		return nak
	}

	d, ok := h.Queue.Next(clientID)
	if !ok {
		entries, err := h.Queue.Flushed()
		if err == nil {
			for _, e := range entries {
				fd, err := h.Queue.LoadFlushed(e.Path)
				if err != nil {
					continue
				}
				if !fd.AckedBy(clientID) {
					d, ok = fd, true
					break
				}
			}
		}
	}
	if !ok {
		return nak
	}

	data, err := json.Marshal(d)
	if err != nil {
		return nak
	}
	return fmt.Sprintf("<GET_DECISION:%d>%s", d.Index, data)
}

func (h *Handler) ackDecision(args string) string {
	parts := strings.SplitN(args, ";", 2)
	if len(parts) != 2 || h.Queue == nil {
		return nak
	}
	clientID, id := parts[0], parts[1]
	h.Queue.Ack(id, clientID)
	return reply("ACK_DECISION", "OK")
}

func (h *Handler) getResult() string {
	if h.Frames == nil || h.Recognizer == nil {
		return nak
	}
	frame, ok := h.Frames.CurrentFrameJPEG()
	if !ok {
		return nak
	}
	cam := h.Store.Camera()
	r, err := h.Recognizer.Recognize(cam.ID, frame, cam.Lpr.Region, "", cam.Lpr.Options.Mmc)
	if err != nil {
		return nak
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nak
	}
	return replyJSON("GET_RESULT", data)
}

// readingWithImage enriches a recognizer Reading with the capture
// loop's current frame at the time of the request (not the frame the
// reading was taken from), for <GET_READING>'s "with image" requirement.
type readingWithImage struct {
	reading.Reading
	Image string `json:"image,omitempty"`
}

func (h *Handler) getReading(plate string) string {
	if h.History == nil || plate == "" {
		return nak
	}
	r, ok := h.History.MostRecentForPlate(plate)
	if !ok {
		return nak
	}
	out := readingWithImage{Reading: r}
	if h.Frames != nil {
		if frame, ok := h.Frames.CurrentFrameJPEG(); ok {
			out.Image = base64.StdEncoding.EncodeToString(frame)
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nak
	}
	return replyJSON("GET_READING", data)
}

func (h *Handler) getNewPlate() string {
	if h.NewPlate == nil {
		return reply("GET_NEW_PLATE", "0")
	}
	if h.NewPlate.TestAndClear() {
		return reply("GET_NEW_PLATE", "1")
	}
	return reply("GET_NEW_PLATE", "0")
}
