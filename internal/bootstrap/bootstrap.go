// Package bootstrap loads the handful of values that cannot safely live
// in the hot-reloadable device/camera JSON documents: the recognition
// engine's auth token, the appliance license, serial ports, and listen
// addresses. These are supplied by a human-edited TOML file and may be
// overridden by CLI flags, in the style of the agent binary's flag block.
package bootstrap

import (
	"flag"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the bootstrap document, conventionally stored at
// /etc/yolocam/bootstrap.toml.
type Config struct {
	Token   string `toml:"token"`
	License string `toml:"license"`

	EngineAddress string `toml:"engine_address"`

	CommandAddress string `toml:"command_address"`
	StreamAddress  string `toml:"stream_address"`
	WebAddress     string `toml:"web_address"`
	DebugAddress   string `toml:"debug_address"`

	SerialPort string `toml:"serial_port"`

	DeviceConfigPath string `toml:"device_config_path"`
	CameraConfigPath string `toml:"camera_config_path"`
	DataDir          string `toml:"data_dir"`

	DistributionURL string `toml:"distribution_url"`
}

// Default returns the documented defaults for every field not supplied
// by the TOML file or a flag override.
func Default() Config {
	return Config{
		EngineAddress:    "127.0.0.1:8100",
		CommandAddress:   ":10001",
		StreamAddress:    ":10003",
		WebAddress:       ":10005",
		DebugAddress:     ":10006",
		SerialPort:       "/dev/ttyUSB0",
		DeviceConfigPath: "yolodev.ini",
		CameraConfigPath: "yolocam.ini",
		DataDir:          ".",
	}
}

// Load reads path (if it exists) over the documented defaults. A missing
// file is not an error — the appliance can run entirely off defaults and
// CLI flags.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("bootstrap: parse %s: %w", path, err)
	}
	return cfg, nil
}

// FlagSet registers the CLI flags that override the TOML document,
// matching the agent binary's `--token --license --address host:port`
// surface from the installer/agent CLI contract. Call Apply after
// fs.Parse to fold in any flags the caller actually set.
type FlagSet struct {
	token          *string
	license        *string
	engineAddress  *string
	bootstrapPath  *string
}

// RegisterFlags registers the bootstrap-overriding flags on fs.
func RegisterFlags(fs *flag.FlagSet) *FlagSet {
	return &FlagSet{
		token:         fs.String("token", "", "recognition engine API token"),
		license:       fs.String("license", "", "appliance license key"),
		engineAddress: fs.String("address", "", "recognition engine host:port"),
		bootstrapPath: fs.String("bootstrap", "/etc/yolocam/bootstrap.toml", "path to bootstrap TOML document"),
	}
}

// BootstrapPath returns the --bootstrap flag's value.
func (f *FlagSet) BootstrapPath() string {
	return *f.bootstrapPath
}

// Apply overlays any non-empty flag values onto cfg.
func (f *FlagSet) Apply(cfg Config) Config {
	if *f.token != "" {
		cfg.Token = *f.token
	}
	if *f.license != "" {
		cfg.License = *f.license
	}
	if *f.engineAddress != "" {
		cfg.EngineAddress = *f.engineAddress
	}
	return cfg
}
