package types

// Device is one entry from `adb devices`.
type Device struct {
	ID    string `json:"id"`
	State string `json:"state"` // "device", "offline", "unauthorized"
	Model string `json:"model,omitempty"`
}

// Ready reports whether the device can accept commands.
func (d Device) Ready() bool {
	return d.State == "device"
}
