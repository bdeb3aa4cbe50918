package main

import (
	"testing"
)

const sampleGeteventPL = `add device 1: /dev/input/event5
  name:     "gpio-keys"
  events:
    KEY (0001): KEY_VOLUMEDOWN        KEY_VOLUMEUP
add device 2: /dev/input/event2
  name:     "fts_ts"
  events:
    ABS (0003): ABS_MT_SLOT           : value 0, min 0, max 9, fuzz 0, flat 0, resolution 0
                ABS_MT_POSITION_X     : value 0, min 0, max 1079, fuzz 0, flat 0, resolution 0
                ABS_MT_POSITION_Y     : value 0, min 0, max 2339, fuzz 0, flat 0, resolution 0
                ABS_MT_TRACKING_ID    : value 0, min 0, max 65535, fuzz 0, flat 0, resolution 0
add device 3: /dev/input/event0
  name:     "qpnp_pon"
  events:
    KEY (0001): KEY_POWER
`

func TestParseInputDevices(t *testing.T) {
	devices := parseInputDevices(sampleGeteventPL)
	if len(devices) != 3 {
		t.Fatalf("Expected 3 devices, got %d", len(devices))
	}

	var touch *TouchDevice
	for i := range devices {
		if devices[i].Path == "/dev/input/event2" {
			touch = &devices[i]
		}
	}
	if touch == nil {
		t.Fatal("Expected /dev/input/event2 in the device list")
	}
	if touch.Name != "fts_ts" {
		t.Errorf("Expected name fts_ts, got %q", touch.Name)
	}
	if touch.MaxX != 1079 || touch.MaxY != 2339 {
		t.Errorf("Expected axis maxima (1079, 2339), got (%d, %d)", touch.MaxX, touch.MaxY)
	}

	for _, d := range devices {
		if d.Path == "/dev/input/event5" && (d.MaxX != 0 || d.MaxY != 0) {
			t.Errorf("Expected key device without MT axes, got %+v", d)
		}
	}
}

func TestParseInputDevicesEmpty(t *testing.T) {
	if devices := parseInputDevices(""); len(devices) != 0 {
		t.Errorf("Expected no devices from empty output, got %d", len(devices))
	}
}

func TestEventNumber(t *testing.T) {
	tests := []struct {
		path string
		want int
	}{
		{"/dev/input/event0", 0},
		{"/dev/input/event12", 12},
		{"/dev/input/mouse0", 999},
	}
	for _, tt := range tests {
		if got := eventNumber(tt.path); got != tt.want {
			t.Errorf("eventNumber(%q) = %d, expected %d", tt.path, got, tt.want)
		}
	}
}

const sampleUIDump = `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>
<hierarchy rotation="0">
  <node index="0" class="android.widget.FrameLayout" resource-id="" text="" content-desc="" bounds="[0,0][1080,1920]" clickable="false" long-clickable="false" scrollable="false">
    <node index="0" class="android.widget.Button" resource-id="com.app:id/login" text="Log in" content-desc="" bounds="[100,200][500,300]" clickable="true" long-clickable="false" scrollable="false"/>
    <node index="1" class="android.widget.ImageView" resource-id="" text="" content-desc="Logo" bounds="[600,200][700,300]" clickable="false" long-clickable="true" scrollable="false"/>
    <node index="2" class="android.view.View" resource-id="" text="" content-desc="" bounds="" clickable="false" long-clickable="false" scrollable="false"/>
  </node>
</hierarchy>`

func TestParseUIElements(t *testing.T) {
	elements, err := ParseUIElements(sampleUIDump)
	if err != nil {
		t.Fatalf("Failed to parse dump: %v", err)
	}
	// The boundless View node is dropped.
	if len(elements) != 3 {
		t.Fatalf("Expected 3 elements, got %d", len(elements))
	}

	// Document order: container first, then children.
	if elements[0].Class != "android.widget.FrameLayout" {
		t.Errorf("Expected root container first, got %s", elements[0].Class)
	}

	button := elements[1]
	if button.ResourceID != "com.app:id/login" || button.Text != "Log in" {
		t.Errorf("Unexpected button: %+v", button)
	}
	if button.Bounds != (Rect{100, 200, 500, 300}) {
		t.Errorf("Unexpected button bounds: %v", button.Bounds)
	}
	if !button.Clickable || button.LongClickable {
		t.Errorf("Unexpected button flags: %+v", button)
	}

	image := elements[2]
	if image.ContentDesc != "Logo" || !image.LongClickable {
		t.Errorf("Unexpected image element: %+v", image)
	}
	if image.Index != 1 {
		t.Errorf("Expected index 1, got %d", image.Index)
	}
}

func TestParseUIElementsInvalidXML(t *testing.T) {
	if _, err := ParseUIElements("<hierarchy><node"); err == nil {
		t.Error("Expected malformed XML to fail")
	}
}
