// Package mccdaq implements the daq interfaces on MCC boards through libuldaq
package mccdaq

/*
#cgo CFLAGS: -I/usr/local/include
#cgo LDFLAGS: -L/usr/local/lib -luldaq
#include <stdlib.h>
#include <uldaq.h>

*/
import "C"
import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/nanocal/nanocontrol/daq"
)

// maxDevices bounds the inventory query
const maxDevices = 64

// enrich converts a UlError into a *daq.HardwareFault carrying the
// library's own message
func enrich(op string, code C.UlError) error {
	if code == C.ERR_NO_ERROR {
		return nil
	}
	var msg [C.ERR_MSG_LEN]C.char
	C.ulGetErrMsg(code, &msg[0])
	return &daq.HardwareFault{Op: op, Code: int(code), Message: C.GoString(&msg[0])}
}

// Driver finds and opens boards
type Driver struct {
	mu    sync.Mutex
	descs map[daq.Descriptor]C.DaqDeviceDescriptor
}

// NewDriver returns a driver with an empty inventory
func NewDriver() *Driver {
	return &Driver{descs: make(map[daq.Descriptor]C.DaqDeviceDescriptor)}
}

// Inventory lists boards on the interfaces in ifc
func (d *Driver) Inventory(ifc daq.InterfaceType) ([]daq.Descriptor, error) {
	var (
		ary     [maxDevices]C.DaqDeviceDescriptor
		numdevs C.uint = maxDevices
	)
	if err := enrich("ulGetDaqDeviceInventory", C.ulGetDaqDeviceInventory(C.DaqDeviceInterface(ifc), &ary[0], &numdevs)); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]daq.Descriptor, 0, int(numdevs))
	for i := 0; i < int(numdevs); i++ {
		c := ary[i]
		desc := daq.Descriptor{
			ProductName: C.GoString(&c.productName[0]),
			ProductID:   int(c.productId),
			Interface:   daq.InterfaceType(c.devInterface),
			DevString:   C.GoString(&c.devString[0]),
			UniqueID:    C.GoString(&c.uniqueId[0]),
		}
		d.descs[desc] = c
		out = append(out, desc)
	}
	return out, nil
}

// Open creates a handle for a board returned by Inventory
func (d *Driver) Open(desc daq.Descriptor) (daq.Board, error) {
	d.mu.Lock()
	c, ok := d.descs[desc]
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s (%s) not in the last inventory", daq.ErrNoDevices, desc.ProductName, desc.UniqueID)
	}
	handle := C.ulCreateDaqDevice(c)
	if handle == 0 {
		return nil, &daq.HardwareFault{Op: "ulCreateDaqDevice", Message: "device handle not created"}
	}
	b := &Board{handle: handle, desc: desc}
	b.ai = &Scanner{board: b, dir: daq.Input}
	b.ao = &Scanner{board: b, dir: daq.Output}
	return b, nil
}

// Board is an opened MCC board
type Board struct {
	handle C.DaqDeviceHandle
	desc   daq.Descriptor

	ai *Scanner
	ao *Scanner

	mu      sync.Mutex
	buffers []unsafe.Pointer
}

// Descriptor implements daq.Board
func (b *Board) Descriptor() daq.Descriptor { return b.desc }

// Connect sets the connection code, if non-zero, and connects
func (b *Board) Connect(code int64) error {
	if code != 0 {
		if err := enrich("ulDaqDeviceConnectionCode", C.ulDaqDeviceConnectionCode(b.handle, C.longlong(code))); err != nil {
			return err
		}
	}
	return enrich("ulConnectDaqDevice", C.ulConnectDaqDevice(b.handle))
}

// IsConnected implements daq.Board
func (b *Board) IsConnected() (bool, error) {
	var connected C.int
	if err := enrich("ulIsDaqDeviceConnected", C.ulIsDaqDeviceConnected(b.handle, &connected)); err != nil {
		return false, err
	}
	return connected != 0, nil
}

// Disconnect implements daq.Board
func (b *Board) Disconnect() error {
	return enrich("ulDisconnectDaqDevice", C.ulDisconnectDaqDevice(b.handle))
}

// Release frees the handle and every buffer handed out by NewBuffer
func (b *Board) Release() error {
	err := enrich("ulReleaseDaqDevice", C.ulReleaseDaqDevice(b.handle))
	b.mu.Lock()
	for _, p := range b.buffers {
		C.free(p)
	}
	b.buffers = nil
	b.mu.Unlock()
	return err
}

func (b *Board) hasDevice(item C.DevInfoItem) bool {
	var v C.longlong
	if C.ulDevGetInfo(b.handle, item, 0, &v) != C.ERR_NO_ERROR {
		return false
	}
	return v != 0
}

// AnalogInput implements daq.Board
func (b *Board) AnalogInput() daq.Scanner {
	if !b.hasDevice(C.DEV_INFO_HAS_AI_DEV) {
		return nil
	}
	return b.ai
}

// AnalogOutput implements daq.Board
func (b *Board) AnalogOutput() daq.Scanner {
	if !b.hasDevice(C.DEV_INFO_HAS_AO_DEV) {
		return nil
	}
	return b.ao
}

// newBuffer allocates n doubles in C memory, which the library may write
// while a scan runs
func (b *Board) newBuffer(n int) ([]float64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("buffer length %d must be positive", n)
	}
	p := C.calloc(C.size_t(n), C.size_t(C.sizeof_double))
	if p == nil {
		return nil, fmt.Errorf("allocating %d samples failed", n)
	}
	b.mu.Lock()
	b.buffers = append(b.buffers, p)
	b.mu.Unlock()
	return unsafe.Slice((*float64)(p), n), nil
}

// freeBuffer releases a buffer from newBuffer.  Slices the board did not
// allocate are rejected rather than passed to free.
func (b *Board) freeBuffer(buf []float64) error {
	if len(buf) == 0 {
		return fmt.Errorf("freeing an empty buffer")
	}
	p := unsafe.Pointer(&buf[0])
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, q := range b.buffers {
		if q == p {
			C.free(p)
			b.buffers = append(b.buffers[:i], b.buffers[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("buffer was not allocated by this board")
}
