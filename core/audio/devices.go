package audio

type DeviceKind string

const (
	DeviceInput  DeviceKind = "input"
	DeviceOutput DeviceKind = "output"
)

// Device describes one host audio device. Enumerated sets are snapshots;
// selection is tracked separately by id.
type Device struct {
	ID    string
	Kind  DeviceKind
	Label string
}
