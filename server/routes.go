package server

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"net/http"

	"github.com/nanocal/nanocontrol/calibration"
	"github.com/nanocal/nanocontrol/daq"
	"github.com/nanocal/nanocontrol/device"
	"github.com/nanocal/nanocontrol/fastheat"
	"github.com/nanocal/nanocontrol/generichttp"
	"github.com/nanocal/nanocontrol/waveform"
)

// Info is the body of GET /info
type Info struct {
	Model   string `json:"model"`
	Version string `json:"version"`
}

// CalibrationInfo is the body of GET /calibration
type CalibrationInfo struct {
	calibration.Calibration
	Source string `json:"source"`
}

// RunStarted is the body of POST /fh/run
type RunStarted struct {
	RunID string `json:"runId"`
}

// statusFor maps an error to the HTTP status it is reported with
func statusFor(err error) int {
	switch {
	case errors.Is(err, waveform.ErrInvalidProfile),
		errors.Is(err, daq.ErrConfiguration),
		errors.Is(err, calibration.ErrNoCoefficients):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotConnected),
		errors.Is(err, daq.ErrNoDevices),
		errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, fastheat.ErrNotArmed),
		errors.Is(err, fastheat.ErrRunning),
		errors.Is(err, device.ErrScanInProgress),
		errors.Is(err, daq.ErrInvalidState):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// command wraps fcn as a body-less POST, mapping its error to a status
func command(fcn func() error) http.HandlerFunc {
	return generichttp.DoStatus(fcn, statusFor)
}

func (s *Server) routes() generichttp.RouteTable {
	get := func(p string) generichttp.MethodPath {
		return generichttp.MethodPath{Method: http.MethodGet, Path: p}
	}
	post := func(p string) generichttp.MethodPath {
		return generichttp.MethodPath{Method: http.MethodPost, Path: p}
	}
	rt := generichttp.RouteTable{
		post("/connection"):       command(s.Connect),
		post("/connection/reset"): command(s.Reset),
		get("/device-info"):       s.deviceInfo,

		post("/calibration/apply"):         command(s.cal.Apply),
		post("/calibration/apply-default"): command(s.cal.ApplyDefault),
		get("/calibration"): generichttp.GetJSON(func() (interface{}, error) {
			return CalibrationInfo{Calibration: s.cal.Get(), Source: s.cal.Source()}, nil
		}),

		post("/fh/time-profile"): generichttp.SetFloats(s.SetTimeProfile),
		get("/fh/time-profile"): generichttp.GetFloats(func() ([]float64, error) {
			return s.Profile().Time, nil
		}),
		post("/fh/temp-profile"): generichttp.SetFloats(s.SetTempProfile),
		get("/fh/temp-profile"): generichttp.GetFloats(func() ([]float64, error) {
			return s.Profile().Temperature, nil
		}),
		post("/fh/arm"):      command(s.Arm),
		post("/fh/run"):      s.run,
		get("/fh/status"):    generichttp.GetJSON(func() (interface{}, error) { return s.Progress(), nil }),
		get("/fh/status/ws"): s.statusStream,
		get("/fh/data"):      s.data(fastheat.WriteCSV, "text/csv"),
		get("/fh/data.fits"): s.data(fastheat.WriteFITS, "application/fits"),

		get("/info"): generichttp.GetJSON(func() (interface{}, error) {
			return Info{Model: Model, Version: s.cfg.Version}, nil
		}),
		get("/metrics"): s.metrics.Handler().ServeHTTP,
	}
	rt[get("/endpoints")] = func(w http.ResponseWriter, r *http.Request) {
		generichttp.Reply(w, rt.Endpoints())
	}
	return rt
}

func (s *Server) deviceInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.DeviceInfo()
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	generichttp.Reply(w, info)
}

func (s *Server) run(w http.ResponseWriter, r *http.Request) {
	id, err := s.Start()
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	generichttp.Reply(w, RunStarted{RunID: id.String()})
}

// data serves the last capture through write, buffered so that a failed
// encode still gets an error status
func (s *Server) data(write func(io.Writer, *fastheat.Result) error, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := s.Result()
		if res == nil {
			http.Error(w, "no capture available", http.StatusNotFound)
			return
		}
		var buf bytes.Buffer
		if err := write(&buf, res); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", "attachment; filename=\""+res.ID.String()+extension[contentType]+"\"")
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	}
}

var extension = map[string]string{
	"text/csv":         ".csv",
	"application/fits": ".fits",
}
