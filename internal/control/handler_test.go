package control

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stroemhansen/yolocam/internal/appconfig"
	"github.com/stroemhansen/yolocam/internal/decision"
	"github.com/stroemhansen/yolocam/internal/fsutil"
	"github.com/stroemhansen/yolocam/internal/reading"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	fs := fsutil.NewMemoryFileSystem()
	store, warnings := appconfig.NewStore(fs, "/yolodev.json", "/yolocam.json")
	require.NotEmpty(t, warnings, "no config files exist yet; defaults are expected")

	return &Handler{
		Store:      store,
		Blacklist:  appconfig.NewPlateList(fs, "/lists/blacklist.txt"),
		Whitelist:  appconfig.NewPlateList(fs, "/lists/whitelist.txt"),
		Ignorelist: appconfig.NewPlateList(fs, "/lists/ignorelist.txt"),
		Queue:      decision.NewQueue(false, nil, ""),
		History:    reading.NewHistory(0),
		NewPlate:   &NewPlateFlag{},
		Watchdog:   func() int { return 137 },
	}
}

func TestDispatchPing(t *testing.T) {
	h := newTestHandler(t)
	assert.Equal(t, "<PING>", h.Dispatch("<PING>"))
}

func TestDispatchModel(t *testing.T) {
	h := newTestHandler(t)
	assert.Equal(t, "<MODEL:YOLOCAM>", h.Dispatch("<MODEL>"))
}

func TestDispatchWatchdogRollsOverAt100(t *testing.T) {
	h := newTestHandler(t)
	assert.Equal(t, "<WATCHDOG:37>", h.Dispatch("<WATCHDOG>"))
}

func TestDispatchUnknownTokenIsNak(t *testing.T) {
	h := newTestHandler(t)
	assert.Equal(t, nak, h.Dispatch("<BOGUS_TOKEN>"))
}

func TestDispatchMalformedFrameIsNak(t *testing.T) {
	h := newTestHandler(t)
	assert.Equal(t, nak, h.Dispatch("garbage"))
}

func TestDispatchGetSetDevParamsRoundTrips(t *testing.T) {
	h := newTestHandler(t)

	resp := h.Dispatch("<GET_DEV_PARAMS>")
	req, ok := parseFrame(resp)
	require.True(t, ok)
	assert.Equal(t, "GET_DEV_PARAMS", req.Token)

	var dev appconfig.Device
	require.NoError(t, json.Unmarshal([]byte(req.Body), &dev))

	dev.Name = "front-gate"
	body, err := json.Marshal(dev)
	require.NoError(t, err)

	setResp := h.Dispatch("<SET_DEV_PARAMS>" + string(body))
	assert.Equal(t, "<SET_DEV_PARAMS:OK>", setResp)
	assert.Equal(t, "front-gate", h.Store.Device().Name)
}

func TestDispatchBlacklistAddSetGet(t *testing.T) {
	h := newTestHandler(t)

	assert.Equal(t, "<ADD_BLACKLIST:OK>", h.Dispatch("<ADD_BLACKLIST:AB123>"))
	assert.Equal(t, "<GET_BLACKLIST:AB123>", h.Dispatch("<GET_BLACKLIST>"))

	assert.Equal(t, "<SET_BLACKLIST:OK>", h.Dispatch("<SET_BLACKLIST:CC111|DD222>"))
	assert.Equal(t, "<GET_BLACKLIST:CC111|DD222>", h.Dispatch("<GET_BLACKLIST>"))
}

func TestDispatchGetNewPlateEdgeTriggered(t *testing.T) {
	h := newTestHandler(t)

	assert.Equal(t, "<GET_NEW_PLATE:0>", h.Dispatch("<GET_NEW_PLATE>"))
	h.NewPlate.Set()
	assert.Equal(t, "<GET_NEW_PLATE:1>", h.Dispatch("<GET_NEW_PLATE>"))
	assert.Equal(t, "<GET_NEW_PLATE:0>", h.Dispatch("<GET_NEW_PLATE>"))
}

func TestDispatchGetDecisionThenAckNeverReturnsAgain(t *testing.T) {
	h := newTestHandler(t)

	d := decision.New("cam1", "AB123", reading.Rectangle{}, 0.9, 0.8, nil, nil, nil, "")
	d.Pending = false
	require.NoError(t, h.Queue.Push(d))

	resp := h.Dispatch("<GET_DECISION:client-1>")
	req, ok := parseFrame(resp)
	require.True(t, ok)
	assert.Equal(t, "GET_DECISION", req.Token)

	var got decision.Decision
	require.NoError(t, json.Unmarshal([]byte(req.Body), &got))
	assert.Equal(t, "AB123", got.Plate)

	ackResp := h.Dispatch("<ACK_DECISION:client-1;" + got.ID + ">")
	assert.Equal(t, "<ACK_DECISION:OK>", ackResp)

	assert.Equal(t, nak, h.Dispatch("<GET_DECISION:client-1>"))
}

func TestDispatchGetDecisionWithholdsPending(t *testing.T) {
	h := newTestHandler(t)

	d := decision.New("cam1", "AB123", reading.Rectangle{}, 0.9, 0.8, nil, nil, nil, "")
	require.True(t, d.Pending)
	require.NoError(t, h.Queue.Push(d))

	assert.Equal(t, nak, h.Dispatch("<GET_DECISION:client-1>"))
}

func TestDispatchGetGpioRoundTrips(t *testing.T) {
	h := newTestHandler(t)
	h.GPIO = &fakeGPIO{levels: map[int]int{1: 1}}

	assert.Equal(t, "<GET_GPIO:1;1>", h.Dispatch("<GET_GPIO:1>"))
	assert.Equal(t, "<SET_GPIO:OK>", h.Dispatch("<SET_GPIO:2;2>"))
	assert.Equal(t, 2, h.GPIO.(*fakeGPIO).levels[2])
}

type fakeGPIO struct{ levels map[int]int }

func (g *fakeGPIO) Get(pin int) (int, error) { return g.levels[pin], nil }
func (g *fakeGPIO) Set(pin, value int) error {
	g.levels[pin] = value
	return nil
}
