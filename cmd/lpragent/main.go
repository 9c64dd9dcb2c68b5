// Command lpragent is the appliance's single long-running process: it
// owns the camera feed, talks to the recognition engine, aggregates
// readings into decisions, drains them to the configured sink, and
// serves the command/stream/web control ports plus the debug
// dashboard.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/stroemhansen/yolocam/internal/aggregator"
	"github.com/stroemhansen/yolocam/internal/appconfig"
	"github.com/stroemhansen/yolocam/internal/applog"
	"github.com/stroemhansen/yolocam/internal/auxpolicy"
	"github.com/stroemhansen/yolocam/internal/bootstrap"
	"github.com/stroemhansen/yolocam/internal/capture"
	"github.com/stroemhansen/yolocam/internal/control"
	"github.com/stroemhansen/yolocam/internal/decision"
	"github.com/stroemhansen/yolocam/internal/diag"
	"github.com/stroemhansen/yolocam/internal/firmware"
	"github.com/stroemhansen/yolocam/internal/fsutil"
	"github.com/stroemhansen/yolocam/internal/gpioctl"
	"github.com/stroemhansen/yolocam/internal/housekeeper"
	"github.com/stroemhansen/yolocam/internal/httputil"
	"github.com/stroemhansen/yolocam/internal/lprengine"
	"github.com/stroemhansen/yolocam/internal/mailer"
	"github.com/stroemhansen/yolocam/internal/outbox"
	"github.com/stroemhansen/yolocam/internal/reading"
	"github.com/stroemhansen/yolocam/internal/timeutil"
	"github.com/stroemhansen/yolocam/internal/version"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	bootFlags := bootstrap.RegisterFlags(fs)
	versionFlag := fs.Bool("version", false, "print version information and exit")
	fs.Parse(os.Args[1:])

	if *versionFlag {
		fmt.Printf("lpragent %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	cfg, err := bootstrap.Load(bootFlags.BootstrapPath())
	if err != nil {
		log.Fatalf("lpragent: load bootstrap config: %v", err)
	}
	cfg = bootFlags.Apply(cfg)

	osfs := fsutil.OSFileSystem{}
	clock := timeutil.RealClock{}

	applog.SetLogger(log.Printf)
	logger := applog.New(cfg.DataDir+"/logs", clock, func() {
		log.Printf("lpragent: fatal-error threshold reached, requesting restart")
		os.Exit(1)
	})
	defer logger.Close()

	store, warnings := appconfig.NewStore(osfs, cfg.DeviceConfigPath, cfg.CameraConfigPath)
	for _, w := range warnings {
		logger.Warningf("lpragent: config load: %v", w)
	}

	blacklist := appconfig.NewPlateList(osfs, cfg.DataDir+"/blacklist.txt")
	whitelist := appconfig.NewPlateList(osfs, cfg.DataDir+"/whitelist.txt")
	ignorelist := appconfig.NewPlateList(osfs, cfg.DataDir+"/ignorelist.txt")

	cam := store.Camera()

	httpClient := httputil.NewStandardClient(&http.Client{Timeout: 10 * time.Second})
	engine := lprengine.New(httpClient, cfg.EngineAddress, cfg.Token)

	history := reading.NewHistory(120)
	queue := decision.NewQueue(cam.Lpr.DeviceInterface.Type == appconfig.InterfaceAPI, osfs, cfg.DataDir+"/flushed")

	recordingFrames := 0
	if cam.Lpr.DecisionRecording.Length > 0 {
		recordingFrames = cam.Lpr.DecisionRecording.Length
	}
	loop := capture.NewLoop(cam.MountingAngle, cam.ImageMask, cam.Brightness, recordingFrames)
	loop.OnBrightnessChange = func(level int) {
		store.MutateDevice(func(d *appconfig.Device) { d.Status.BrightnessLevel = level })
	}

	agg := aggregator.New(store.Device().Address, history, queue, loop)
	agg.IgnoreListed = func(plate string) bool { return ignorelist.Contains(plate) }

	newPlateFlag := &control.NewPlateFlag{}

	sink, sinkDir := buildSink(cam.Lpr.DeviceInterface, cfg.DataDir)
	ob := outbox.New(sink, osfs, sinkDir)

	excelWriter := outbox.NewExcelWriter(osfs, cfg.DataDir+"/excel", outbox.BucketDaily)
	mailQueue := mailer.NewQueue(osfs, cfg.DataDir+"/email")
	excelWriter.OnRollover = func(xlsxPath string) {
		current := store.Camera()
		if err := mailQueue.Enqueue(current.Email, xlsxPath); err != nil {
			logger.Warningf("lpragent: spool rollover notification: %v", err)
		}
	}

	history24h := diag.NewDecisionHistory()

	agg.OnFinalize = func(d *decision.Decision) {
		history24h.Record(d.Timestamp)
		newPlateFlag.Set()

		if cam.Lpr.DeviceInterface.Type == appconfig.InterfaceEXCEL {
			if err := excelWriter.AppendRow(d); err != nil {
				logger.Warningf("lpragent: append excel row: %v", err)
			}
			return
		}
		if err := ob.Enqueue(d); err != nil {
			logger.Warningf("lpragent: enqueue decision %s: %v", d.ID, err)
		}
	}

	var gpio *gpioctl.Controller
	var gyro *gpioctl.Gyro
	var probe *gpioctl.EnclosureProbe
	if store.Device().AuxiliaryEnabled {
		gpio, err = gpioctl.New(defaultPinNames(), defaultPinNegate())
		if err != nil {
			logger.Errorf("lpragent: gpio init: %v", err)
		}
	}
	if store.Device().GyroEnabled {
		gyro, err = gpioctl.OpenGyro("")
		if err != nil {
			logger.Errorf("lpragent: gyro init: %v", err)
		} else if err := gyro.Calibrate(); err != nil {
			logger.Errorf("lpragent: gyro calibrate: %v", err)
		}
	}
	if store.Device().EnclosureTemperatureOption == 2 {
		probe, err = gpioctl.OpenEnclosureProbe(cfg.SerialPort)
		if err != nil {
			logger.Errorf("lpragent: enclosure probe init: %v", err)
		}
	}

	var policy *auxpolicy.Policy
	if gpio != nil {
		var gyroIface auxpolicy.Gyro
		if gyro != nil {
			gyroIface = gyro
		}
		policy = auxpolicy.New(gpio, gyroIface)
	}

	var commandGPIO control.GPIO
	if gpio != nil {
		commandGPIO = gpio
	}

	handler := &control.Handler{
		Store:      store,
		Blacklist:  blacklist,
		Whitelist:  whitelist,
		Ignorelist: ignorelist,
		Logger:     logger,
		Queue:      queue,
		History:    history,
		GPIO:       commandGPIO,
		Frames:     loop,
		Recognizer: engine,
		NewPlate:   newPlateFlag,
	}

	var hk *housekeeper.Housekeeper
	var watchdogCounter int32
	handler.Watchdog = func() int { return int(atomic.LoadInt32(&watchdogCounter)) % 100 }
	handler.CalibratePosition = func() error {
		if gyro == nil {
			return fmt.Errorf("lpragent: no gyroscope fitted")
		}
		return gyro.Calibrate()
	}
	handler.ResetStatistics = func(flags int) {
		store.MutateDevice(func(d *appconfig.Device) {
			if flags&1 != 0 {
				d.Statistics.Decisions = 0
			}
			if flags&2 != 0 {
				d.Statistics.FanTimeConsumption = 0
			}
		})
	}

	commandServer := control.NewCommandServer(cfg.CommandAddress, handler, logger)
	streamServer := control.NewStreamServer(cfg.StreamAddress, loop, logger)
	webServer := control.NewWebServer(cfg.WebAddress, handler, logger)

	updater := firmware.NewUpdater(httpClient, osfs, cfg.DistributionURL,
		store.Camera().Firmware.Username, store.Camera().Firmware.Password,
		cfg.DataDir, firmware.DefaultTrigger)

	tasks := housekeeper.Tasks{
		Every250ms: func() {
			if policy == nil {
				return
			}
			current := store.Camera()
			status, err := policy.Evaluate(current.Auxiliary, current.IrLightControl, auxpolicy.Signals{
				WhitelistHit: whitelist.Contains(current.Lpr.CurrentPlate),
				BlacklistHit: blacklist.Contains(current.Lpr.CurrentPlate),
				Running:      true,
				NewPlateHit:  newPlateFlag.TestAndClear(),
				CPUPercent:   readCPUPercent(),
				Brightness:   store.Device().Status.BrightnessLevel,
				Now:          clock.Now(),
			})
			if err != nil {
				logger.Errorf("lpragent: auxiliary policy: %v", err)
				return
			}
			store.MutateDevice(func(d *appconfig.Device) { d.Auxiliary = status })
		},
		Every1s: func() {
			atomic.AddInt32(&watchdogCounter, 1)
			store.MutateDevice(func(d *appconfig.Device) {
				d.Status.Watchdog = handler.Watchdog()
				if probe != nil {
					if t, ok := probe.Temperature(); ok {
						d.EnclosureTemperature = int(t)
					}
				}
			})
			if info, err := engine.FetchInfo(); err == nil {
				store.MutateDevice(func(d *appconfig.Device) {
					d.SdkVersion = info.Version
					d.SdkLicense = info.LicenseKey
				})
			}
		},
		Every2s: func() {
			queue.Prune(func(d *decision.Decision) bool { return !d.Delete })
		},
		PostDelay: func() {
			delay := ob.Pump(clock.Now())
			if hk != nil {
				hk.SetPostDelay(int(delay / time.Millisecond))
			}
		},
		Every30s: func() {
			if err := excelWriter.Rollover(clock.Now()); err != nil {
				logger.Warningf("lpragent: excel rollover: %v", err)
			}
			if err := logger.Flush(); err != nil {
				log.Printf("lpragent: flush log: %v", err)
			}
		},
		Every5min: func() {
			current := store.Camera()
			if current.Email.Host == "" {
				return
			}
			if _, err := mailQueue.Drain(current.Email); err != nil {
				logger.Warningf("lpragent: drain email outbox: %v", err)
			}
		},
		Every1h: func() {
			dev := store.Device()
			current := store.Camera()
			if current.Monitor.URL != "" {
				postSystemStatus(httpClient, dev, current)
			}
			if err := store.PersistDevice(); err != nil {
				logger.Errorf("lpragent: persist device config: %v", err)
			}
			logger.ResetFatalCount()
		},
		Daily: func() {
			if err := pruneDir(osfs, cfg.DataDir+"/excel", ".xlsx", 30*24*time.Hour, clock.Now()); err != nil {
				logger.Warningf("lpragent: prune excel retention: %v", err)
			}
			if err := applog.PruneOlderThan(cfg.DataDir+"/logs", 30*24*time.Hour, clock.Now()); err != nil {
				logger.Warningf("lpragent: prune log retention: %v", err)
			}
			if err := pruneDir(osfs, cfg.DataDir+"/flushed", ".yof", 60*24*time.Hour, clock.Now()); err != nil {
				logger.Warningf("lpragent: prune flushed decisions: %v", err)
			}
			if err := pruneDir(osfs, sinkDir, sink.FileExtension(), 60*24*time.Hour, clock.Now()); err != nil {
				logger.Warningf("lpragent: prune outbox retention: %v", err)
			}
			if store.Camera().Firmware.AutoUpdate {
				if newVersion, installed, err := updater.Check(version.Version); err != nil {
					logger.Errorf("lpragent: firmware check: %v", err)
				} else if installed {
					logger.Decisionf("lpragent: installed firmware %s", newVersion)
				}
			}
		},
	}
	hk = housekeeper.New(clock, tasks)

	diagServer := diag.NewServer(history24h)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		hk.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runCapture(ctx, cam, loop); err != nil && err != context.Canceled {
			logger.Errorf("lpragent: capture source error: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runRecognitionLoop(ctx, engine, loop, history, agg, store, cam.ID, logger)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := commandServer.Serve(ctx); err != nil {
			logger.Errorf("lpragent: command server: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := streamServer.Serve(ctx); err != nil {
			logger.Errorf("lpragent: stream server: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runHTTPServer(ctx, cfg.WebAddress, webServer.Mux(), "web server", logger)
	}()

	if probe != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := probe.Run(); err != nil {
				logger.Warningf("lpragent: enclosure probe: %v", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		runHTTPServer(ctx, cfg.DebugAddress, diagServer.Handler(), "debug server", logger)
	}()

	wg.Wait()
	log.Printf("lpragent: graceful shutdown complete")
}

// runRecognitionLoop drives the engine on a ticker derived from
// cam.Lpr.FrameRate, running every reading through the bounds-check
// sieve before appending it to history and ticking the aggregator.
func runRecognitionLoop(ctx context.Context, engine *lprengine.Client, loop *capture.Loop, history *reading.History, agg *aggregator.Aggregator, store *appconfig.Store, cameraID string, logger *applog.Logger) {
	cam := store.Camera()
	interval := time.Second
	if cam.Lpr.FrameRate > 0 {
		interval = time.Duration(float64(time.Second) / cam.Lpr.FrameRate)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			cam = store.Camera()
			frame, ok := loop.CurrentFrameJPEG()
			if !ok {
				continue
			}

			r, err := engine.Recognize(cameraID, frame, cam.Lpr.Region, "", cam.Lpr.Options.Mmc)
			if err != nil {
				logger.Networkf("lpragent: recognize: %v", err)
				continue
			}

			frameSize := lprengine.OrientedFrameSize(cam.Resolution, cam.MountingAngle)
			thresholds := lprengine.Thresholds{
				MinTextScore:  cam.Lpr.MinTextScore,
				MinPlateScore: cam.Lpr.MinPlateScore,
				MaxPlateSize:  cam.Lpr.MaxPlateSize,
				MinPlateSize:  cam.Lpr.MinPlateSize,
				Margin:        cam.Lpr.PlateMargin,
				FrameSize:     frameSize,
			}
			for i := range r.Results {
				r.Results[i].Passed = lprengine.Evaluate(r.Results[i], thresholds) == lprengine.OK
			}

			history.Append(r)
			agg.Tick(now, cam)
		}
	}
}

// runCapture opens the configured camera transport and runs it until
// ctx is canceled, reconnecting an IP source 12 s after it fails.
func runCapture(ctx context.Context, cam appconfig.Camera, loop *capture.Loop) error {
	if looksLikeURL(cam.Address) {
		source := capture.NewIPSource(cam.Address, nil)
		defer source.Close()
		for {
			if err := source.Run(ctx, loop, 200*time.Millisecond); err == nil || ctx.Err() != nil {
				return ctx.Err()
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(12 * time.Second):
			}
		}
	}

	dev, err := capture.OpenUSBCamera(cam.Address, uint32(cam.Resolution.Width), uint32(cam.Resolution.Height), 4)
	if err != nil {
		return fmt.Errorf("lpragent: open usb camera %s: %w", cam.Address, err)
	}
	defer dev.Close()
	return dev.Run(ctx, loop)
}

func looksLikeURL(address string) bool {
	return strings.HasPrefix(address, "http://") || strings.HasPrefix(address, "https://")
}

func runHTTPServer(ctx context.Context, addr string, mux http.Handler, name string, logger *applog.Logger) {
	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warningf("lpragent: %s shutdown: %v", name, err)
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("lpragent: %s: %v", name, err)
		}
	}
}

// pruneDir removes every file under dir matching suffix whose
// modification time is older than maxAge.
func pruneDir(fs fsutil.FileSystem, dir, suffix string, maxAge time.Duration, now time.Time) error {
	entries, err := fsutil.ListOldestFirst(dir, suffix)
	if err != nil {
		return err
	}
	cutoff := now.Add(-maxAge)
	for _, e := range entries {
		if e.ModTime.After(cutoff) {
			break
		}
		if err := fs.Remove(e.Path); err != nil {
			return err
		}
	}
	return nil
}

func buildSink(iface appconfig.DeviceInterface, dataDir string) (outbox.Sink, string) {
	switch iface.Type {
	case appconfig.InterfaceWebHook:
		return outbox.NewWebhookSink(iface), dataDir + "/sink-webhook"
	case appconfig.InterfaceFTP:
		return outbox.NewFTPSink(iface.URL, iface.Username, iface.Password, iface.Options), dataDir + "/sink-ftp"
	case appconfig.InterfaceSocket:
		return outbox.NewSocketSink(iface.URL, iface.Options), dataDir + "/sink-socket"
	default:
		return outbox.FileSink{}, dataDir + "/sink-file"
	}
}

func defaultPinNames() map[int]string {
	return map[int]string{
		auxpolicy.PinInput1:  "GPIO5",
		auxpolicy.PinOutput1: "GPIO6",
		auxpolicy.PinOutput2: "GPIO13",
		auxpolicy.PinFan:     "GPIO19",
		auxpolicy.PinIRLight: "GPIO26",
	}
}

func defaultPinNegate() map[int]bool {
	return map[int]bool{}
}

// readCPUPercent samples /proc/stat twice a fixed instant apart to
// derive an instantaneous CPU utilization percentage; unavailable on
// non-Linux build hosts, where it always reads 0.
func readCPUPercent() float64 {
	first, err := readProcStatTotal()
	if err != nil {
		return 0
	}
	time.Sleep(50 * time.Millisecond)
	second, err := readProcStatTotal()
	if err != nil {
		return 0
	}
	idleDelta := second.idle - first.idle
	totalDelta := second.total - first.total
	if totalDelta <= 0 {
		return 0
	}
	return 100 * (1 - float64(idleDelta)/float64(totalDelta))
}

type procStatSample struct{ idle, total uint64 }

func readProcStatTotal() (procStatSample, error) {
	data, err := os.ReadFile("/proc/stat")
	if err != nil {
		return procStatSample{}, err
	}
	line := strings.SplitN(string(data), "\n", 2)[0]
	fields := strings.Fields(line)
	if len(fields) < 5 || fields[0] != "cpu" {
		return procStatSample{}, fmt.Errorf("unexpected /proc/stat format")
	}
	var sample procStatSample
	for i, f := range fields[1:] {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			continue
		}
		sample.total += v
		if i == 3 {
			sample.idle = v
		}
	}
	return sample, nil
}

func postSystemStatus(client httputil.HTTPClient, dev appconfig.Device, cam appconfig.Camera) {
	if cam.Monitor.URL == "" {
		return
	}
	status := appconfig.SystemStatus{
		Address:              dev.Address,
		Firmware:             cam.Firmware.Version,
		Decisions:            dev.Statistics.Decisions,
		SdkStatus:            dev.SdkStatus,
		CpuTemperature:       dev.CpuTemperature,
		EnclosureTemperature: dev.EnclosureTemperature,
		FanTime:              fmt.Sprintf("%ds", dev.FanTimeConsumption),
		NetworkErrors:        dev.Statistics.NetworkErrors,
		FatalErrors:          dev.Statistics.FatalErrors,
		Reboots:              dev.Statistics.Reboots,
		SystemRunning:        dev.Status.Running,
		DockerRunning:        dev.Status.DockerRunning,
		CameraConnected:      dev.Status.CameraConnected,
		Input1:               dev.Auxiliary.Input1,
		Output1:              dev.Auxiliary.Output1,
		Output2:              dev.Auxiliary.Output2,
		Position:             dev.Auxiliary.Position,
	}
	body, err := json.Marshal(status)
	if err != nil {
		return
	}
	req, err := http.NewRequest(http.MethodPost, cam.Monitor.URL, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if cam.Monitor.Username != "" {
		req.SetBasicAuth(cam.Monitor.Username, cam.Monitor.Password)
	}
	resp, err := client.Do(req)
	if err == nil {
		resp.Body.Close()
	}
}
