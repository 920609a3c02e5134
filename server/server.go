// Package server exposes a nanocalorimeter controller over HTTP.
//
// The controller owns one DAQ board, the active calibration and the fast
// heating experiment.  Commands are POSTs with JSON bodies, state is read with
// GETs, and scan progress can be followed over a websocket.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nanocal/nanocontrol/calibration"
	"github.com/nanocal/nanocontrol/daq"
	"github.com/nanocal/nanocontrol/device"
	"github.com/nanocal/nanocontrol/fastheat"
	"github.com/nanocal/nanocontrol/generichttp"
	"github.com/nanocal/nanocontrol/server/middleware/locker"
	"github.com/nanocal/nanocontrol/settings"
	"github.com/nanocal/nanocontrol/waveform"
)

// Model names the instrument in /info
const Model = "nanocal 2.0"

// ErrNotConnected is generated by commands that need a board before
// POST /connection has succeeded
var ErrNotConnected = errors.New("no DAQ device connected")

// Config holds the paths and tunables of a Server
type Config struct {
	// SettingsPath is the experiment settings file, read on every connect
	SettingsPath string

	// RawDataDir receives the CSV and FITS capture of every run
	RawDataDir string

	FastHeat fastheat.Config

	// StatusInterval paces the websocket status stream
	StatusInterval time.Duration

	Version string
}

// Server is the controller.  Its exported methods back the HTTP routes and
// may also be called directly.
type Server struct {
	driver  daq.Driver
	cal     *calibration.Store
	cfg     Config
	log     *zap.Logger
	metrics *Metrics
	rt      generichttp.RouteTable

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	dev     *device.Handler
	params  settings.Parameters
	times   []float64
	temps   []float64
	fh      *fastheat.FastHeat
	running bool
	saved   []string
}

// New returns a Server with no board opened yet
func New(driver daq.Driver, cal *calibration.Store, cfg Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = 100 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{driver: driver, cal: cal, cfg: cfg, log: log, ctx: ctx, cancel: cancel}
	s.metrics = NewMetrics(s.connected)
	s.rt = s.routes()
	return s
}

// RT implements generichttp.HTTPer
func (s *Server) RT() generichttp.RouteTable { return s.rt }

// Metrics returns the collectors served on /metrics
func (s *Server) Metrics() *Metrics { return s.metrics }

// NewMux returns a router serving s with a lock on every command route and
// mw applied ahead of it
func NewMux(s *Server, mw ...func(http.Handler) http.Handler) chi.Router {
	lock := locker.New()
	locker.Inject(s, lock)
	r := chi.NewRouter()
	r.Use(mw...)
	r.Use(lock.Check)
	s.RT().Bind(r)
	return r
}

// Connect reads the settings file, opens the first board on the configured
// interface if none is open, and connects to it.  When the daq section
// changed since the board was opened, the board is released and the search
// is repeated; an armed experiment must then be armed again.
func (s *Server) Connect() error {
	params, err := settings.Load(s.cfg.SettingsPath)
	if err != nil {
		s.log.Error("Failed to load settings", zap.String("path", s.cfg.SettingsPath), zap.Error(err))
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fastheat.ErrRunning
	}
	s.params = params
	if s.dev != nil && s.dev.Params() != params.DAQ {
		old := s.dev.Params()
		if err := s.dev.Release(); err != nil {
			s.metrics.fault(err)
			return err
		}
		s.log.Info("DAQ parameters changed, reopening the board",
			zap.Stringer("from", old), zap.Stringer("to", params.DAQ))
		s.dev, s.fh = nil, nil
	}
	if s.dev == nil {
		dev, err := device.New(s.driver, params.DAQ, s.log)
		if err != nil {
			s.metrics.fault(err)
			return err
		}
		s.dev = dev
	}
	if s.dev.State() == device.Connected {
		return nil
	}
	if err := s.dev.Connect(); err != nil {
		s.metrics.fault(err)
		return err
	}
	return nil
}

// Reset disconnects and reconnects the board
func (s *Server) Reset() error {
	dev, err := s.device()
	if err != nil {
		return err
	}
	if err := dev.Reset(); err != nil {
		s.metrics.fault(err)
		return err
	}
	s.log.Info("Connection has been reset")
	return nil
}

// DeviceInfo reports the capabilities of the board
func (s *Server) DeviceInfo() (device.Info, error) {
	dev, err := s.device()
	if err != nil {
		return device.Info{}, err
	}
	return dev.Info()
}

func (s *Server) device() (*device.Handler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return nil, ErrNotConnected
	}
	return s.dev, nil
}

func (s *Server) connected() float64 {
	s.mu.Lock()
	dev := s.dev
	s.mu.Unlock()
	if dev != nil && dev.State() == device.Connected {
		return 1
	}
	return 0
}

// SetTimeProfile sets the time axis of the profile, in ms
func (s *Server) SetTimeProfile(t []float64) error {
	s.mu.Lock()
	s.times = append([]float64(nil), t...)
	s.mu.Unlock()
	s.log.Info("Fast heating time profile set", zap.Float64s("time_ms", t))
	return nil
}

// SetTempProfile sets the temperature axis of the profile
func (s *Server) SetTempProfile(t []float64) error {
	s.mu.Lock()
	s.temps = append([]float64(nil), t...)
	s.mu.Unlock()
	s.log.Info("Fast heating temperature profile set", zap.Float64s("temperature", t))
	return nil
}

// Profile returns the profile as currently set
func (s *Server) Profile() waveform.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return waveform.Profile{
		Time:        append([]float64(nil), s.times...),
		Temperature: append([]float64(nil), s.temps...),
	}
}

// Arm renders the profile through the active calibration with the settings
// of the last connect
func (s *Server) Arm() error {
	profile := s.Profile()
	cal := s.cal.Get()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return ErrNotConnected
	}
	if s.running {
		return fastheat.ErrRunning
	}
	fh := fastheat.New(s.dev, s.params, s.cfg.FastHeat, s.log)
	if err := fh.Arm(profile, cal.TemperatureToVoltage); err != nil {
		return err
	}
	s.fh = fh
	return nil
}

// Start launches the armed experiment in the background and returns its run
// ID.  The capture is saved to RawDataDir when the run finishes.
func (s *Server) Start() (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fh == nil {
		return uuid.Nil, fastheat.ErrNotArmed
	}
	if s.running {
		return uuid.Nil, fastheat.ErrRunning
	}
	fh, id := s.fh, uuid.New()
	s.running = true
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res, err := fh.RunAs(s.ctx, id)
		s.finish(res, err)
	}()
	return id, nil
}

func (s *Server) finish(res *fastheat.Result, err error) {
	s.metrics.observeRun(res, err)
	var paths []string
	if err == nil && s.cfg.RawDataDir != "" {
		paths, err = fastheat.Save(s.cfg.RawDataDir, res)
		if err != nil {
			s.log.Error("Failed to save raw data", zap.String("dir", s.cfg.RawDataDir), zap.Error(err))
		} else {
			s.log.Info("Raw data saved", zap.Strings("paths", paths))
		}
	}
	s.mu.Lock()
	s.running = false
	s.saved = paths
	s.mu.Unlock()
}

// Wait blocks until the background run, if any, is over
func (s *Server) Wait() {
	s.wg.Wait()
}

// Progress returns the state of the experiment
func (s *Server) Progress() fastheat.Progress {
	s.mu.Lock()
	fh := s.fh
	s.mu.Unlock()
	if fh == nil {
		return fastheat.Progress{State: fastheat.Idle}
	}
	return fh.Progress()
}

// Result returns the capture of the last finished run, or nil
func (s *Server) Result() *fastheat.Result {
	s.mu.Lock()
	fh := s.fh
	s.mu.Unlock()
	if fh == nil {
		return nil
	}
	return fh.Result()
}

// Saved returns the files written for the last run
func (s *Server) Saved() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.saved...)
}

// Close aborts a run in progress and releases the board
func (s *Server) Close() error {
	s.cancel()
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil || s.dev.State() == device.Released {
		return nil
	}
	return s.dev.Release()
}
