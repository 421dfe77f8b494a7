// Command load-scale runs a load-cell kitchen scale: it tares on power-up,
// walks the operator through calibration when needed, shows the weight and
// publishes scale events to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/load-scale/internal/button"
	"github.com/sweeney/load-scale/internal/config"
	"github.com/sweeney/load-scale/internal/display"
	"github.com/sweeney/load-scale/internal/gpio"
	"github.com/sweeney/load-scale/internal/loadcell"
	"github.com/sweeney/load-scale/internal/logging"
	"github.com/sweeney/load-scale/internal/mqtt"
	"github.com/sweeney/load-scale/internal/scale"
	"github.com/sweeney/load-scale/internal/status"
	"github.com/sweeney/load-scale/internal/store"
	"github.com/sweeney/load-scale/internal/web"
)

func main() {
	configPath := flag.String("config", "", "Path to scale.yaml (default: search /etc/load-scale and .)")
	printWeight := flag.Bool("print-weight", false, "Print one reading using the stored factor and exit")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, *printWeight, log); err != nil {
		log.Fatal("fatal", zap.Error(err))
	}
}

func run(cfg *config.Config, printWeight bool, log *zap.Logger) error {
	sensor, err := loadcell.NewHX711(cfg.Sensor.Chip, cfg.Sensor.DataPin, cfg.Sensor.ClockPin, loadcell.Gain(cfg.Sensor.Gain))
	if err != nil {
		return fmt.Errorf("init load cell: %w", err)
	}
	defer sensor.Close()

	db, err := store.Open(cfg.Store.Path, cfg.Store.Namespace)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if printWeight {
		return printReading(sensor, db)
	}

	pin, err := gpio.NewRealReader(cfg.Button.Chip, cfg.Button.Pin, cfg.Button.Inverted)
	if err != nil {
		return fmt.Errorf("init button gpio: %w", err)
	}
	defer pin.Close()

	wsBroker := resolveWSBroker(cfg.HTTP.WSBroker, cfg.MQTT.Broker, log)

	// Tracker before STARTUP so the snapshot is available
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:         cfg.Button.Poll.Milliseconds(),
		LongPressMs:    cfg.Button.LongPress.Milliseconds(),
		LoopMs:         cfg.Loop.Interval.Milliseconds(),
		HeartbeatMs:    cfg.MQTT.Heartbeat.Milliseconds(),
		ReferenceGrams: cfg.Calibration.ReferenceGrams,
		Broker:         cfg.MQTT.Broker,
		HTTPPort:       cfg.HTTP.Addr,
		WSBroker:       wsBroker,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	publisher := mqtt.NewRealPublisher(mqtt.Options{
		Broker:     cfg.MQTT.Broker,
		ClientID:   cfg.MQTT.ClientID,
		BufferSize: cfg.MQTT.BufferSize,
	}, log.Named("mqtt"))
	defer publisher.Close()

	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      mqtt.EventStartup,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventStartup, ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		log.Warn("failed to publish startup event", zap.Error(err))
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, db, log.Named("web"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server error", zap.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info("http status server listening", zap.String("addr", cfg.HTTP.Addr))
	}

	events := button.Start(pin, button.Config{
		Inverted:  cfg.Button.Inverted,
		Poll:      cfg.Button.Poll,
		LongPress: cfg.Button.LongPress,
	}, log.Named("button"))

	disp := display.Multi{display.NewLog(log.Named("display")), display.NewMirror(tracker)}

	emit := eventSink(publisher, db, log)
	sc := scale.New(sensor, db, events, disp, scaleConfig(cfg.Calibration), log.Named("scale"),
		scale.WithEventHandler(emit),
		scale.WithPhaseHandler(tracker.SetPhase),
	)

	log.Info("started",
		zap.Int("button_pin", cfg.Button.Pin),
		zap.Duration("loop", cfg.Loop.Interval),
		zap.String("broker", cfg.MQTT.Broker),
		zap.Duration("heartbeat", cfg.MQTT.Heartbeat),
		zap.Bool("needs_calibration", sc.NeedsCalibration()),
	)

	if err := sc.Start(); err != nil {
		if errors.Is(err, button.ErrClosed) {
			return fmt.Errorf("startup: %w", err)
		}
		log.Error("startup sequence failed", zap.Error(err))
	}

	ticker := time.NewTicker(cfg.Loop.Interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(sc, emit, publisher, publisher, tracker, cfg.MQTT.Heartbeat, time.Now, ticker.C, sigCh, log)
}

func scaleConfig(c config.CalibrationConfig) scale.Config {
	return scale.Config{
		ReferenceGrams:     c.ReferenceGrams,
		TareSamples:        c.TareSamples,
		CalibrationSamples: c.Samples,
		SampleDelay:        c.SampleDelay,
		RetryDelay:         c.RetryDelay,
	}
}

// eventSink publishes scale events and records calibration outcomes.
// Failures are logged, never fatal.
func eventSink(publisher mqtt.Publisher, history store.History, log *zap.Logger) func(scale.Event) {
	return func(ev scale.Event) {
		if ev.Type != scale.EventWeight {
			log.Info("scale event", zap.String("event", string(ev.Type)))
		}
		if err := publisher.Publish(ev); err != nil {
			log.Warn("publish error", zap.String("event", string(ev.Type)), zap.Error(err))
		}

		var rec store.Calibration
		switch ev.Type {
		case scale.EventCalibrationComplete:
			rec = store.Calibration{
				Timestamp:  ev.Timestamp,
				Factor:     ev.Factor,
				AverageRaw: ev.AverageRaw,
				Succeeded:  true,
				Persisted:  ev.Persisted,
			}
		case scale.EventCalibrationFailed:
			rec = store.Calibration{Timestamp: ev.Timestamp, AverageRaw: ev.AverageRaw}
		default:
			return
		}
		if err := history.RecordCalibration(rec); err != nil {
			log.Warn("failed to record calibration", zap.Error(err))
		}
	}
}

func runLoop(sc *scale.Scale, emit func(scale.Event), publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal, log *zap.Logger) error {
	hb := status.NewHeartbeat(heartbeat, now())
	var shown string

	updateTracker := func() {
		factor, calibrated := sc.Factor()
		tracker.Update(sc.Phase(), factor, calibrated, sc.Counts())
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}

	for {
		select {
		case s := <-sig:
			log.Info("shutting down", zap.Stringer("signal", s))
			reason := signalName(s)
			updateTracker()
			snap := tracker.Snapshot()
			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      mqtt.EventShutdown,
				Reason:     reason,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, mqtt.EventShutdown, reason),
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Warn("failed to publish shutdown event", zap.Error(err))
			}
			return nil

		case <-tick:
			t := now()

			if action, ok := sc.PollAction(); ok {
				log.Info("button action", zap.String("action", string(action)))
				if err := sc.Handle(action); err != nil {
					if errors.Is(err, button.ErrClosed) {
						return fmt.Errorf("button input stopped: %w", err)
					}
					// Don't crash on display or sensor failure
					log.Error("action failed", zap.String("action", string(action)), zap.Error(err))
				}
				shown = ""
			}

			if grams, ok := sc.PollGrams(); ok {
				tracker.SetWeight(grams)
				text, err := sc.ShowWeight(grams)
				if err != nil {
					log.Warn("display error", zap.Error(err))
				}
				if text != shown {
					shown = text
					emit(scale.Event{Timestamp: t, Type: scale.EventWeight, Grams: grams})
				}
			}

			updateTracker()

			if hb.Due(t) {
				if net := readNetworkInfo(); net != nil {
					tracker.SetNetwork(net)
				}
				snap := tracker.Snapshot()
				log.Info("heartbeat",
					zap.Duration("uptime", snap.Uptime()),
					zap.Int("tares", snap.Counts.Tares),
					zap.Int("calibrations", snap.Counts.Calibrations),
				)
				hbEvent := mqtt.SystemEvent{
					Timestamp:  t,
					Event:      mqtt.EventHeartbeat,
					RawPayload: status.FormatStatusEvent(snap, mqtt.EventHeartbeat, ""),
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Warn("heartbeat publish error", zap.Error(err))
				}
			}
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

// printReading reports one conversion against the stored factor. The
// reading is not tared.
func printReading(sensor loadcell.Sensor, kv store.KV) error {
	sensor.SetScale(1.0)
	if bits, ok, err := kv.GetU32(scale.FactorKey); err == nil && ok {
		sensor.SetScale(math.Float32frombits(bits))
	} else {
		fmt.Println("not calibrated, showing raw counts")
	}
	grams, err := sensor.ReadScaled()
	if err != nil {
		return fmt.Errorf("read load cell: %w", err)
	}
	fmt.Println(scale.FormatWeight(grams))
	return nil
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

// resolveWSBroker converts the http.ws_broker setting into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" disables.
func resolveWSBroker(ws, broker string, log *zap.Logger) string {
	if ws == "off" || ws == "" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Warn("cannot derive websocket broker", zap.String("broker", broker), zap.Error(err))
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
