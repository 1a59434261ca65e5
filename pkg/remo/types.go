package remo

// ApplianceType is the kind of appliance registered in the Nature Remo cloud.
type ApplianceType string

const (
	ApplianceTypeIR    ApplianceType = "IR"
	ApplianceTypeTV    ApplianceType = "TV"
	ApplianceTypeAC    ApplianceType = "AC"
	ApplianceTypeLight ApplianceType = "LIGHT"
)

// Appliance is an appliance controlled through a Remo device.
type Appliance struct {
	ID       string          `json:"id"`
	Type     ApplianceType   `json:"type"`
	Nickname string          `json:"nickname"`
	Image    string          `json:"image,omitempty"`
	Model    *ApplianceModel `json:"model,omitempty"`
	Device   *Device         `json:"device,omitempty"`
	Signals  []Signal        `json:"signals"`
	TV       *TV             `json:"tv,omitempty"`
}

// ApplianceModel is the preset model the appliance was registered with.
type ApplianceModel struct {
	ID           string `json:"id"`
	Manufacturer string `json:"manufacturer"`
	RemoteName   string `json:"remote_name"`
	Name         string `json:"name"`
}

// Device is the Remo relay that emits the appliance's IR signals.
type Device struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	FirmwareVersion string `json:"firmware_version"`
	SerialNumber    string `json:"serial_number"`
}

// Signal is a learned IR signal.
type Signal struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// TV holds the preset buttons and last known state of a TV appliance.
type TV struct {
	State   TVState  `json:"state"`
	Buttons []Button `json:"buttons"`
}

// TVState is the state the cloud tracks for a TV appliance.
type TVState struct {
	Input string `json:"input"`
}

// Button is a named preset button.
type Button struct {
	Name  string `json:"name"`
	Label string `json:"label,omitempty"`
	Image string `json:"image,omitempty"`
}

// HasButton reports whether the TV exposes a button with the given name.
func (t *TV) HasButton(name string) bool {
	if t == nil {
		return false
	}
	for _, b := range t.Buttons {
		if b.Name == name {
			return true
		}
	}
	return false
}
