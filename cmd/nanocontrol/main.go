package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	yml "gopkg.in/yaml.v2"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "nanocontrol.yml"
	k              = koanf.New(".")
)

// Config holds the process level setup.  Experiment parameters live in the
// settings file it points to.
type Config struct {
	// Addr is the address to listen at
	Addr string `yaml:"Addr"`

	// SettingsPath is the JSON experiment settings file
	SettingsPath string `yaml:"SettingsPath"`

	// CalibrationPath and DefaultCalibrationPath are the calibration files
	// behind /calibration/apply and /calibration/apply-default
	CalibrationPath        string `yaml:"CalibrationPath"`
	DefaultCalibrationPath string `yaml:"DefaultCalibrationPath"`

	// LogsDir holds nanocontrol.log
	LogsDir string `yaml:"LogsDir"`

	// RawDataDir receives one CSV and one FITS file per run
	RawDataDir string `yaml:"RawDataDir"`

	// PollIntervalMs is the time between scan status polls
	PollIntervalMs int `yaml:"PollIntervalMs"`

	// ScanTimeoutMs is added to the profile duration to bound a run
	ScanTimeoutMs int `yaml:"ScanTimeoutMs"`

	// StatusIntervalMs paces the websocket status stream
	StatusIntervalMs int `yaml:"StatusIntervalMs"`

	// Mock replaces the hardware with a simulated board
	Mock bool `yaml:"Mock"`
}

func setupconfig() {
	k.Load(structs.Provider(Config{
		Addr:                   ":8000",
		SettingsPath:           "settings.json",
		CalibrationPath:        "calibration.json",
		DefaultCalibrationPath: "default_calibration.json",
		LogsDir:                "logs",
		RawDataDir:             "raw_data",
		PollIntervalMs:         10,
		ScanTimeoutMs:          5000,
		StatusIntervalMs:       100,
	}, "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `nanocontrol drives a nanocalorimeter through an MCC DAQ board and exposes
it over HTTP.  Heating profiles are played on the analog outputs while the
analog inputs are captured.

Usage:
	nanocontrol <command>

Commands:
	run
	once <profile.json>
	probe
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `nanocontrol is configured by nanocontrol.yml in the working directory.  For a
primer on YAML, see https://yaml.org/start.html.  "nanocontrol mkconf" writes
the defaults to the file.

The DAQ parameters (interface, sample rates, channels, ranges, scan options)
are read from the JSON file at SettingsPath every time a connection is made.

run serves the HTTP interface.  A typical session:
	POST /connection
	POST /fh/time-profile     {"f64s": [0, 10, 20]}      (ms)
	POST /fh/temp-profile     {"f64s": [25, 300, 25]}
	POST /fh/arm
	POST /fh/run              -> {"runId": ...}
	GET  /fh/status           (or the websocket /fh/status/ws)
	GET  /fh/data             (CSV; /fh/data.fits for FITS)
GET /endpoints lists every route.

once runs one heating profile from a JSON file of the form
	{"time": [0, 10, 20], "temperature": [25, 300, 25]}
and saves the capture into RawDataDir.

probe lists MCC boards on the USB bus, which helps when the DAQ library
finds none.

Mock: true replaces the board with a simulation, for trying the interface
without hardware.`
	fmt.Println(str)
}

func mkconf() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := Config{}
	k.Unmarshal("", &c)
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("nanocontrol version %v\n", Version)
}

func loadConfig() Config {
	c := Config{}
	if err := k.Unmarshal("", &c); err != nil {
		log.Fatal(err)
	}
	return c
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		if err := run(loadConfig()); err != nil {
			log.Fatal(err)
		}
		return
	case "once":
		if len(args) < 3 {
			log.Fatal("once needs a profile file")
		}
		if err := once(loadConfig(), args[2]); err != nil {
			log.Fatal(err)
		}
		return
	case "probe":
		if err := probe(); err != nil {
			log.Fatal(err)
		}
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
