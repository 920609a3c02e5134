package daq_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/nanocal/nanocontrol/daq"
)

func ExampleAnalogParams_ChannelCount() {
	p := daq.AnalogParams{LowChannel: 2, HighChannel: 5, SamplesPerChannel: 10}
	fmt.Println(p.ChannelCount(), p.BufferLen())
	// Output: 4 40
}

func TestScanOptionMatchesDriverValues(t *testing.T) {
	cases := map[daq.ScanOption]int{
		daq.DefaultIO:  0,
		daq.SingleIO:   1,
		daq.BlockIO:    2,
		daq.BurstIO:    4,
		daq.Continuous: 8,
		daq.ExtClock:   16,
		daq.ExtTrigger: 32,
		daq.PacerOut:   256,
	}
	for opt, want := range cases {
		if int(opt) != want {
			t.Errorf("expected option value %d, got %d", want, int(opt))
		}
	}
}

func TestInterfaceTypeString(t *testing.T) {
	s := (daq.USB | daq.Ethernet).String()
	if s != "usb|ethernet" {
		t.Errorf("expected usb|ethernet got %s", s)
	}
	if daq.AnyInterface != 7 {
		t.Errorf("expected AnyInterface == 7, got %d", daq.AnyInterface)
	}
}

func TestHardwareFaultKeepsDriverText(t *testing.T) {
	var err error = &daq.HardwareFault{Op: "ulAInScan", Code: 19, Message: "Device is busy"}
	wrapped := fmt.Errorf("analog input: %w", err)
	if !daq.IsHardwareFault(wrapped) {
		t.Fatal("expected wrapped error to be a hardware fault")
	}
	var hf *daq.HardwareFault
	if !errors.As(wrapped, &hf) || hf.Code != 19 {
		t.Errorf("expected code 19 to survive wrapping, got %+v", hf)
	}
	if !strings.Contains(wrapped.Error(), "Device is busy") {
		t.Errorf("expected driver message in %q", wrapped.Error())
	}
}
