package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/theckman/yacspin"
	"go.uber.org/zap"

	"github.com/nanocal/nanocontrol/calibration"
	"github.com/nanocal/nanocontrol/daq"
	"github.com/nanocal/nanocontrol/fastheat"
	"github.com/nanocal/nanocontrol/mccdaq"
	"github.com/nanocal/nanocontrol/server"
	"github.com/nanocal/nanocontrol/sim"
	"github.com/nanocal/nanocontrol/waveform"
)

// LogFileName is created in Config.LogsDir
const LogFileName = "nanocontrol.log"

// setup creates the log and raw data folders and a logger writing to stderr
// and the log file
func setup(c Config) (*zap.Logger, error) {
	for _, dir := range []string{c.LogsDir, c.RawDataDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr", filepath.Join(c.LogsDir, LogFileName)}
	return cfg.Build()
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func driver(c Config) daq.Driver {
	if c.Mock {
		drv, _ := sim.NewDriver()
		return drv
	}
	return mccdaq.NewDriver()
}

// buildServer wires the controller.  The default calibration is applied as
// at every start; if it cannot be read the built-in one is kept.
func buildServer(c Config, log *zap.Logger) *server.Server {
	cal := calibration.NewStore(c.CalibrationPath, c.DefaultCalibrationPath, log)
	_ = cal.ApplyDefault()
	s := server.New(driver(c), cal, server.Config{
		SettingsPath: c.SettingsPath,
		RawDataDir:   c.RawDataDir,
		FastHeat: fastheat.Config{
			PollInterval: ms(c.PollIntervalMs),
			Timeout:      ms(c.ScanTimeoutMs),
		},
		StatusInterval: ms(c.StatusIntervalMs),
		Version:        Version,
	}, log)
	log.Info("Initial setup done", zap.Bool("mock", c.Mock), zap.String("settings", c.SettingsPath))
	return s
}

func run(c Config) error {
	log, err := setup(c)
	if err != nil {
		return err
	}
	defer log.Sync()
	s := buildServer(c, log)

	srv := &http.Server{Addr: c.Addr, Handler: server.NewMux(s, middleware.Logger)}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGABRT)
	go func() {
		<-sigChan
		log.Info("Shutdown signal received")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("HTTP shutdown failed", zap.Error(err))
		}
	}()

	log.Info("Now listening for requests", zap.String("addr", c.Addr))
	err = srv.ListenAndServe()
	if cerr := s.Close(); cerr != nil {
		log.Error("Failed to release DAQ device", zap.Error(cerr))
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// loadProfile reads {"time": [...], "temperature": [...]}
func loadProfile(path string) (waveform.Profile, error) {
	p := waveform.Profile{}
	pk := koanf.New(".")
	if err := pk.Load(file.Provider(path), json.Parser()); err != nil {
		return p, fmt.Errorf("reading profile %s: %w", path, err)
	}
	if err := pk.UnmarshalWithConf("", &p, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return p, err
	}
	return p, p.Validate()
}

// once runs a single heating profile with a spinner on the terminal
func once(c Config, profilePath string) error {
	profile, err := loadProfile(profilePath)
	if err != nil {
		return err
	}
	log, err := setup(c)
	if err != nil {
		return err
	}
	defer log.Sync()
	s := buildServer(c, log)
	defer s.Close()

	if err := s.Connect(); err != nil {
		return err
	}
	s.SetTimeProfile(profile.Time)
	s.SetTempProfile(profile.Temperature)
	if err := s.Arm(); err != nil {
		return err
	}

	spinner, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[11],
		Suffix:            " fast heating",
		SuffixAutoColon:   true,
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	})
	if err != nil {
		return err
	}
	if err := spinner.Start(); err != nil {
		return err
	}
	id, err := s.Start()
	if err != nil {
		spinner.StopFailMessage(err.Error())
		spinner.StopFail()
		return err
	}
	spinner.Message(id.String())

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
wait:
	for {
		select {
		case <-done:
			break wait
		case <-ticker.C:
			p := s.Progress()
			spinner.Message(fmt.Sprintf("%s ao %d ai %d", p.State, p.AO.Transfer.ScanCount, p.AI.Transfer.ScanCount))
		}
	}

	p := s.Progress()
	if p.State != fastheat.Finished {
		spinner.StopFailMessage(p.Error)
		spinner.StopFail()
		return errors.New(p.Error)
	}
	spinner.StopMessage(strings.Join(s.Saved(), " "))
	return spinner.Stop()
}

func probe() error {
	devs, err := mccdaq.ProbeUSB()
	if err != nil {
		return err
	}
	if len(devs) == 0 {
		fmt.Println("no MCC boards on the USB bus")
		return nil
	}
	for _, d := range devs {
		fmt.Println(d)
	}
	return nil
}
