package main

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ========================================
// Touch Event Stream
// ========================================
// Decodes the multi-touch protocol from `adb shell getevent -lt` into
// per-finger TouchSamples scaled to screen pixels.

// TouchCalibration maps raw kernel axis values to screen pixels.
type TouchCalibration struct {
	MaxX, MaxY       int // raw axis maxima from the input device
	ScreenW, ScreenH int // screen size in pixels
}

// scaleX converts a raw X value to pixels. A zero axis max means the device
// already reports pixels.
func (c TouchCalibration) scaleX(raw int) int {
	if c.MaxX <= 0 || c.ScreenW <= 0 {
		return raw
	}
	return raw * c.ScreenW / c.MaxX
}

func (c TouchCalibration) scaleY(raw int) int {
	if c.MaxY <= 0 || c.ScreenH <= 0 {
		return raw
	}
	return raw * c.ScreenH / c.MaxY
}

// slotState accumulates one finger's state between SYN_REPORT boundaries.
type slotState struct {
	x, y        int
	hasPosition bool
	tracking    bool
	downPending bool
	upPending   bool
	movePending bool
}

// GeteventDecoder is a line-by-line decoder for `getevent -lt` output.
// Samples for all touched slots are emitted at each SYN_REPORT boundary.
type GeteventDecoder struct {
	calib       TouchCalibration
	currentSlot int
	slots       map[int]*slotState
	order       []int
}

// NewGeteventDecoder returns a decoder using the given calibration.
func NewGeteventDecoder(calib TouchCalibration) *GeteventDecoder {
	return &GeteventDecoder{
		calib: calib,
		slots: make(map[int]*slotState),
	}
}

// getevent -lt lines look like:
//
//	[   12345.678901] /dev/input/event1: EV_ABS  ABS_MT_SLOT          00000001
//	[   12345.678901] /dev/input/event1: EV_ABS  ABS_MT_TRACKING_ID   0000001f
//	[   12345.678901] /dev/input/event1: EV_ABS  ABS_MT_POSITION_X    000001a4
//	[   12345.678901] /dev/input/event1: EV_SYN  SYN_REPORT           00000000
//
// The device path segment is optional when getevent is bound to a single
// device.
var geteventLinePattern = regexp.MustCompile(`^\[\s*(\d+)\.(\d+)\]\s+(?:\S+:\s+)?(\w+)\s+(\w+)\s+(\S+)`)

const trackingIDNone = 0xffffffff

// Decode consumes one line and returns any samples completed by it.
// Unparseable lines are skipped.
func (d *GeteventDecoder) Decode(line string) []TouchSample {
	m := geteventLinePattern.FindStringSubmatch(line)
	if m == nil {
		return nil
	}

	sec, _ := strconv.ParseInt(m[1], 10, 64)
	usec, _ := strconv.ParseInt(m[2], 10, 64)
	timestamp := time.Duration(sec)*time.Second + time.Duration(usec)*time.Microsecond

	evType, code, rawValue := m[3], m[4], m[5]

	switch evType {
	case "EV_ABS":
		value64, err := strconv.ParseUint(strings.TrimPrefix(rawValue, "0x"), 16, 64)
		if err != nil {
			return nil
		}
		value := uint32(value64)

		switch code {
		case "ABS_MT_SLOT":
			d.currentSlot = int(value)
		case "ABS_MT_TRACKING_ID":
			slot := d.slot(d.currentSlot)
			if value == trackingIDNone {
				if slot.tracking {
					slot.tracking = false
					slot.upPending = true
				}
			} else if !slot.tracking {
				slot.tracking = true
				slot.downPending = true
			}
		case "ABS_MT_POSITION_X":
			slot := d.slot(d.currentSlot)
			slot.x = d.calib.scaleX(int(value))
			slot.hasPosition = true
			slot.movePending = true
		case "ABS_MT_POSITION_Y":
			slot := d.slot(d.currentSlot)
			slot.y = d.calib.scaleY(int(value))
			slot.hasPosition = true
			slot.movePending = true
		}

	case "EV_SYN":
		if code == "SYN_REPORT" {
			return d.emit(timestamp)
		}
	}
	return nil
}

func (d *GeteventDecoder) slot(id int) *slotState {
	s, ok := d.slots[id]
	if !ok {
		s = &slotState{}
		d.slots[id] = s
		d.order = append(d.order, id)
	}
	return s
}

// emit flushes pending per-slot transitions as samples, in slot discovery
// order for determinism.
func (d *GeteventDecoder) emit(timestamp time.Duration) []TouchSample {
	var samples []TouchSample
	for _, id := range d.order {
		s := d.slots[id]
		switch {
		case s.downPending:
			if !s.hasPosition {
				// Down without coordinates yet; hold until the position
				// arrives in a later report.
				continue
			}
			s.downPending = false
			s.movePending = false
			samples = append(samples, TouchSample{Slot: id, X: s.x, Y: s.y, Timestamp: timestamp, Phase: PhaseDown})
		case s.upPending:
			s.upPending = false
			s.movePending = false
			samples = append(samples, TouchSample{Slot: id, X: s.x, Y: s.y, Timestamp: timestamp, Phase: PhaseUp})
		case s.movePending && s.tracking:
			s.movePending = false
			samples = append(samples, TouchSample{Slot: id, X: s.x, Y: s.y, Timestamp: timestamp, Phase: PhaseMove})
		}
	}
	return samples
}

// ========================================
// Event source
// ========================================

// EventSource streams decoded touch samples from a device.
type EventSource interface {
	// Samples returns the sample channel. It is closed when the stream ends.
	Samples() <-chan TouchSample
	// Start begins streaming. It returns once the stream is running.
	Start(ctx context.Context) error
	// Stop terminates the stream.
	Stop()
}

// GeteventSource streams `getevent -lt` from the device touch input and
// decodes it.
type GeteventSource struct {
	adb      *Adb
	deviceID string

	ch     chan TouchSample
	cancel context.CancelFunc
	done   chan struct{}
}

// NewGeteventSource returns a source for the given device.
func NewGeteventSource(adb *Adb, deviceID string) *GeteventSource {
	return &GeteventSource{
		adb:      adb,
		deviceID: deviceID,
		ch:       make(chan TouchSample, 256),
		done:     make(chan struct{}),
	}
}

// Samples returns the decoded sample channel.
func (s *GeteventSource) Samples() <-chan TouchSample {
	return s.ch
}

// Start discovers the touch device, calibrates coordinate scaling, and
// launches the streaming goroutine.
func (s *GeteventSource) Start(ctx context.Context) error {
	touchDev, err := s.adb.FindTouchDevice(s.deviceID)
	if err != nil {
		return err
	}

	screenW, screenH, err := s.adb.ScreenSize(s.deviceID)
	if err != nil {
		return err
	}

	calib := TouchCalibration{
		MaxX:    touchDev.MaxX,
		MaxY:    touchDev.MaxY,
		ScreenW: screenW,
		ScreenH: screenH,
	}

	LogInfo("events").
		Str("device", s.deviceID).
		Str("input", touchDev.Path).
		Str("screen", fmt.Sprintf("%dx%d", screenW, screenH)).
		Msg("Touch event stream starting")

	ctx, s.cancel = context.WithCancel(ctx)
	cmd := s.adb.Command(ctx, s.deviceID, "shell", "getevent", "-lt", touchDev.Path)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start getevent: %w", err)
	}

	go func() {
		defer close(s.ch)
		defer close(s.done)
		defer cmd.Wait()

		decoder := NewGeteventDecoder(calib)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			for _, sample := range decoder.Decode(scanner.Text()) {
				select {
				case s.ch <- sample:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return nil
}

// Stop terminates the stream and waits for the goroutine to exit.
func (s *GeteventSource) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}
