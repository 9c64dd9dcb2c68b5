// Package appconfig holds the two JSON configuration documents —
// Device (read-mostly runtime state) and Camera (tunables) — and their
// atomic load/save lifecycle. Field names are preserved byte-for-byte
// from the recognition engine's own wire format so existing management
// clients keep working unmodified.
package appconfig

import "github.com/stroemhansen/yolocam/internal/reading"

// InterfaceType selects the decision sink.
type InterfaceType int

const (
	InterfaceAPI InterfaceType = iota
	InterfaceFILE
	InterfaceEXCEL
	InterfaceWebHook
	InterfaceFTP
	InterfaceSocket
)

// AuthenticationType selects how a webhook/FTP sink authenticates.
type AuthenticationType int

const (
	AuthNone AuthenticationType = iota
	AuthBasic
	AuthDigest
	AuthProxy
)

// SelectedDecision chooses which sample of a stable recognition run is
// sealed into the decision.
type SelectedDecision int

const (
	DecisionFirst SelectedDecision = iota
	DecisionMiddle
	DecisionLast
)

// DecisionModel selects the aggregator's emission rule.
type DecisionModel int

const (
	ModelFreeFlow DecisionModel = iota
	ModelAccessControl
)

// IrLightMode drives the internal IR illuminator.
type IrLightMode int

const (
	IrOff IrLightMode = iota
	IrOn
	IrAuto
)

// AuxiliaryOutput is the policy assigned to one of the two logical GPIO
// outputs.
type AuxiliaryOutput int

const (
	AuxNone AuxiliaryOutput = iota
	AuxWhitelist
	AuxBlacklist
	AuxRunning
	AuxNewPlate
	AuxPositionAlarm
	AuxExtIRLight
)

// IrLightControl drives the internal IR illuminator's auto-brightness
// gating.
type IrLightControl struct {
	Mode                IrLightMode `json:"mode"`
	BrightnessThreshold int         `json:"brightnessThreshold"`
	CurrentBrightness   int         `json:"currentBrightness"`
}

// Usage tracks the recognition engine's call counter against its
// licensed ceiling.
type Usage struct {
	Calls    int `json:"calls"`
	MaxCalls int `json:"max_calls"`
}

// DeviceInterface configures one delivery sink.
type DeviceInterface struct {
	Type           InterfaceType      `json:"type"`
	URL            string             `json:"url"`
	Authentication AuthenticationType `json:"authentication"`
	Username       string             `json:"username"`
	Password       string             `json:"password"`
	Options        string             `json:"options"`
	MailTo         string             `json:"mailTo"`
}

// Email configures the SMTPS relay used for Excel-bucket-rollover
// notifications.
type Email struct {
	Host       string   `json:"host"`
	Port       int      `json:"port"`
	Username   string   `json:"username"`
	Password   string   `json:"password"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	Sender     string   `json:"sender"`
	Recipients []string `json:"recipients"`
	Attachment string   `json:"attachment"`
}

// LprOptions carries the recognition-request tuning fields passed
// through to the engine's `config` form field verbatim.
type LprOptions struct {
	Enabled        int    `json:"enabled"`
	Mmc            bool   `json:"mmc"`
	Mode           string `json:"mode"`
	DetectionRule  string `json:"detection_rule"`
	DetectionMode  string `json:"detection_mode"`
}

// DecisionRecording configures the short rolling video clip attached to
// a decision.
type DecisionRecording struct {
	Length   int           `json:"length"`
	Size     reading.Size  `json:"size"`
	InfoText bool          `json:"infoText"`
	Outdated int           `json:"outdated"`
}

// SdkInformation is the recognition engine's /info/ response shape.
type SdkInformation struct {
	Version    string `json:"version"`
	LicenseKey string `json:"license_key"`
}

// Status is the appliance's live run-state flags.
type Status struct {
	Running          bool `json:"running"`
	DockerRunning    bool `json:"dockerRunning"`
	CameraConnected  bool `json:"cameraConnected"`
	BrightnessLevel  int  `json:"brightnessLevel"`
	Watchdog         int  `json:"watchdog"`
}

// Statistics accumulates the counters surfaced by <GET_DEV_PARAMS> and
// the hourly system-status POST.
type Statistics struct {
	CameraFramesPerSecond int     `json:"cameraFramesPerSecond"`
	OcrFramesPerSecond    int     `json:"ocrFramesPerSecond"`
	Decisions             int     `json:"decisions"`
	AvgFrameSize          int     `json:"avgFrameSize"`
	MinFrameSize          int     `json:"minFrameSize"`
	MaxFrameSize          int     `json:"maxFrameSize"`
	AvgLprTime            float64 `json:"avgLprTime"`
	MinLprTime            float64 `json:"minLprTime"`
	MaxLprTime            float64 `json:"maxLprTime"`
	NetworkErrors         int     `json:"networkErrors"`
	FatalErrors           int     `json:"fatalErrors"`
	Reboots               int     `json:"reboots"`
	UnexpectedReboots     int     `json:"unexpectedReboots"`
	LastRebootTime        string  `json:"lastRebootTime"`
}

// Device is the read-mostly runtime-state document.
type Device struct {
	Address                     string `json:"address"`
	Subnet                      string `json:"subnet"`
	Gateway                     string `json:"gateway"`
	Name                        string `json:"name"`
	Model                       string `json:"model"`
	Firmware                    string `json:"firmware"`
	DockerStatus                string `json:"dockerStatus"`
	SdkVersion                  string `json:"sdkVersion"`
	SdkLicense                  string `json:"sdkLicense"`
	SdkStatus                   string `json:"sdkStatus"`
	SdkUsage                    int    `json:"sdkUsage"`
	CpuName                     string `json:"cpuName"`
	CpuFrequency                int    `json:"cpuFrequency"`
	CpuTemperature              int    `json:"cpuTemperature"`
	EnclosureTemperature        int    `json:"enclosureTemperature"`
	FanTimeConsumption          int    `json:"fanTimeConsumption"`
	UsedMemory                  string `json:"usedMemory"`
	AuxiliaryEnabled            bool   `json:"auxiliaryEnabled"`
	GyroEnabled                 bool   `json:"gyroEnabled"`
	EnclosureTemperatureOption  int    `json:"enclosureTemperatureOption"`
	UtcTime                     string `json:"utcTime"`

	Status     Status     `json:"status"`
	Statistics Statistics `json:"statistics"`
	Auxiliary  AuxiliaryStatus `json:"auxiliary"`
}

// Camera is the tunables document.
type Camera struct {
	Changed        bool           `json:"-"`
	ID             string         `json:"id"`
	Address        string         `json:"address"`
	Username       string         `json:"username"`
	Password       string         `json:"password"`
	MountingAngle  int            `json:"mountingAngle"`
	Resolution     reading.Size   `json:"resolution"`
	ImageMask      string         `json:"imageMask"`
	Exposure       float64        `json:"exposure"`
	Brightness     float64        `json:"brightness"`
	Contrast       float64        `json:"contrast"`
	Hue            float64        `json:"hue"`
	Saturation     float64        `json:"saturation"`
	Sharpness      float64        `json:"sharpness"`
	Gamma          float64        `json:"gamma"`
	Gain           float64        `json:"gain"`
	IrLightControl IrLightControl `json:"irLightControl"`

	Lpr         Lpr         `json:"lpr"`
	VideoStream VideoStream `json:"videoStream"`
	Auxiliary   Auxiliary   `json:"auxiliary"`
	Firmware    Firmware    `json:"firmware"`
	Monitor     Monitor     `json:"monitor"`
	Email       Email       `json:"email"`
}

// Lpr holds the recognition pipeline's tunables.
type Lpr struct {
	Region              string            `json:"region"`
	MinRecognitions     int               `json:"minRecognitions"`
	FrameRate           float64           `json:"frameRate"`
	FrameHeight         int               `json:"frameHeight"`
	SelectedDecision    SelectedDecision  `json:"selectedDecision"`
	DirectionFilter     int               `json:"directionFilter"`
	DirectionThreshold  int               `json:"directionThreshold"`
	DecisionDelay       int               `json:"decisionDelay"`
	UseCandidates       bool              `json:"useCandidates"`
	DenyNumericDecision bool              `json:"denyNumericDecision"`
	MinTextScore        float64           `json:"minTextScore"`
	MinPlateScore       float64           `json:"minPlateScore"`
	PlateMargin         reading.Margin    `json:"plateMargin"`
	PlateBlockingTime   int               `json:"plateBlockingTime"`
	ResultExpireTime    int               `json:"resultExpireTime"`
	MaxPlateSize        reading.Size      `json:"maxPlateSize"`
	MinPlateSize        reading.Size      `json:"minPlateSize"`
	CropDecision        reading.Size      `json:"cropDecision"`
	IncludeFullImage    string            `json:"includeFullImage"`
	DecisionModel       DecisionModel     `json:"decisionModel"`
	DeviceInterface     DeviceInterface   `json:"deviceInterface"`
	DecisionRecording   DecisionRecording `json:"decisionRecording"`
	Options             LprOptions        `json:"options"`
	CurrentPlate        string            `json:"-"`
}

// VideoStream configures the live preview stream.
type VideoStream struct {
	Enabled     bool `json:"enabled"`
	Color       int  `json:"color"`
	Compression int  `json:"compression"`
}

// Auxiliary configures the two logical GPIO outputs and the fan/alarm
// thresholds.
type Auxiliary struct {
	Input1        int     `json:"input1"`
	Output1       AuxiliaryOutput `json:"output1"`
	Output2       AuxiliaryOutput `json:"output2"`
	PulseLength   float64 `json:"pulseLength"`
	StartFan      int     `json:"startFan"`
	PositionAlarm int     `json:"positionAlarm"`
}

// Monitor is the optional external status-POST target.
type Monitor struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuxiliaryStatus mirrors the live state of the Auxiliary outputs and
// gyroscope position.
type AuxiliaryStatus struct {
	Input1   int             `json:"input1"`
	Output1  int             `json:"output1"`
	Output2  int             `json:"output2"`
	Fan      int             `json:"fan"`
	IrLight  int             `json:"irLight"`
	Position reading.Position `json:"position"`
}

// Firmware tracks the installed and latest-known firmware versions and
// the distribution server's basic-auth credentials.
type Firmware struct {
	AutoUpdate bool   `json:"autoUpdate"`
	Version    string `json:"version"`
	Latest     string `json:"latest"`
	URL        string `json:"url"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

// SystemStatus is the payload POSTed hourly to Monitor.URL.
type SystemStatus struct {
	Address              string          `json:"address"`
	Firmware             string          `json:"firmware"`
	Decisions            int             `json:"decisions"`
	SdkStatus            string          `json:"sdkStatus"`
	CpuTemperature       int             `json:"cpuTemperature"`
	EnclosureTemperature int             `json:"enclosureTemperature"`
	FanTime              string          `json:"fanTime"`
	NetworkErrors        int             `json:"networkErrors"`
	FatalErrors          int             `json:"fatalErrors"`
	Reboots              int             `json:"reboots"`
	SystemRunning        bool            `json:"systemRunning"`
	DockerRunning        bool            `json:"dockerRunning"`
	CameraConnected      bool            `json:"cameraConnected"`
	Input1               int             `json:"input1"`
	Output1              int             `json:"output1"`
	Output2              int             `json:"output2"`
	Position             reading.Position `json:"position"`
}

// DefaultDevice returns a Device populated with the engine's documented
// defaults.
func DefaultDevice() Device {
	return Device{
		Address: "192.168.0.151",
		Subnet:  "255.255.255.0",
		Gateway: "192.168.0.1",
	}
}

// DefaultCamera returns a Camera populated with the engine's documented
// defaults.
func DefaultCamera() Camera {
	return Camera{
		Resolution: reading.Size{Width: 640, Height: 480},
		Lpr: Lpr{
			SelectedDecision: DecisionMiddle,
			DecisionRecording: DecisionRecording{
				Size:     reading.Size{Width: 640, Height: 480},
				InfoText: true,
				Outdated: 7,
			},
		},
		Auxiliary: Auxiliary{
			PulseLength: 1.0,
			StartFan:    60,
		},
		Firmware: Firmware{AutoUpdate: true},
	}
}
