package tensor

import (
	"fmt"
	"strconv"
	"strings"
)

// DeviceType identifies the kind of memory a buffer lives in.
type DeviceType uint8

const (
	// DeviceCPU is host memory.
	DeviceCPU DeviceType = iota
	// DeviceCUDA is accelerator memory. Buffers may carry this label but no
	// kernel executes on it.
	DeviceCUDA
)

func (t DeviceType) String() string {
	switch t {
	case DeviceCPU:
		return "cpu"
	case DeviceCUDA:
		return "cuda"
	default:
		return fmt.Sprintf("unknown(%d)", t)
	}
}

// Device is a placement: a device type plus an ordinal.
type Device struct {
	Type  DeviceType
	Index int
}

// CPU is the host placement.
var CPU = Device{Type: DeviceCPU}

// CUDA returns the accelerator placement with the given ordinal.
func CUDA(index int) Device {
	return Device{Type: DeviceCUDA, Index: index}
}

// IsHost reports whether d is host memory.
func (d Device) IsHost() bool {
	return d.Type == DeviceCPU
}

func (d Device) String() string {
	if d.Type == DeviceCPU {
		return "cpu"
	}
	return d.Type.String() + ":" + strconv.Itoa(d.Index)
}

// ParseDevice parses "cpu", "cuda" or "cuda:N".
func ParseDevice(s string) (Device, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "cpu":
		return CPU, nil
	case s == "cuda":
		return CUDA(0), nil
	case strings.HasPrefix(s, "cuda:"):
		n, err := strconv.Atoi(strings.TrimPrefix(s, "cuda:"))
		if err != nil || n < 0 {
			return Device{}, fmt.Errorf("invalid device ordinal in %q", s)
		}
		return CUDA(n), nil
	default:
		return Device{}, fmt.Errorf("unknown device %q", s)
	}
}

// Placed is anything that reports a placement.
type Placed interface {
	Device() Device
}

// SameDevice returns the common placement of all non-nil arguments.
// It returns false if two arguments disagree. With no non-nil arguments it
// returns CPU.
func SameDevice(ts ...Placed) (Device, bool) {
	var (
		dev   Device
		found bool
	)
	for _, t := range ts {
		if isNil(t) {
			continue
		}
		d := t.Device()
		if !found {
			dev, found = d, true
			continue
		}
		if d != dev {
			return dev, false
		}
	}
	if !found {
		return CPU, true
	}
	return dev, true
}

func isNil(p Placed) bool {
	switch v := p.(type) {
	case nil:
		return true
	case *Tensor[float32]:
		return v == nil
	case *Tensor[float64]:
		return v == nil
	case *Tensor[int32]:
		return v == nil
	case *Tensor[int64]:
		return v == nil
	default:
		return false
	}
}
