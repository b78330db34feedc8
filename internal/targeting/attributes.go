// Package targeting models the attributes a flag is evaluated against:
// a closed set of typed dimensions plus an explicit extension map.
package targeting

import (
	"maps"

	"github.com/rafaeljc/slipup/internal/ruleengine"
)

// Attribute names as seen by targeting rules.
const (
	AttrUserID             = "user_id"
	AttrPlatform           = "platform"
	AttrAppVersion         = "app_version"
	AttrDeviceOS           = "device_os"
	AttrDeviceOSVersion    = "device_os_version"
	AttrDeviceModel        = "device_model"
	AttrDeviceManufacturer = "device_manufacturer"
)

// DeviceInfo is the typed replacement for free-form device metadata.
type DeviceInfo struct {
	OS           string `json:"os,omitempty"`
	OSVersion    string `json:"os_version,omitempty"`
	Model        string `json:"model,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
}

// Attributes is the complete targeting context of the current user and device.
// It is a value: every update builds a new one, nothing is merged.
type Attributes struct {
	ID         string            `json:"id"`
	Platform   string            `json:"platform"`
	AppVersion string            `json:"app_version"`
	Device     *DeviceInfo       `json:"device_info,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// New builds an attribute set. device and extra are copied.
func New(userID, platform, appVersion string, device *DeviceInfo, extra map[string]string) Attributes {
	a := Attributes{
		ID:         userID,
		Platform:   platform,
		AppVersion: appVersion,
	}
	if device != nil {
		d := *device
		a.Device = &d
	}
	if len(extra) > 0 {
		a.Extra = maps.Clone(extra)
	}
	return a
}

// Clone returns a deep copy.
func (a Attributes) Clone() Attributes {
	return New(a.ID, a.Platform, a.AppVersion, a.Device, a.Extra)
}

// Flatten returns the attributes as a flat name/value map. Typed dimensions
// win over extras with the same name; empty values are left out.
func (a Attributes) Flatten() map[string]string {
	out := make(map[string]string, len(a.Extra)+7)
	maps.Copy(out, a.Extra)

	set := func(k, v string) {
		if v != "" {
			out[k] = v
		} else {
			delete(out, k)
		}
	}

	set(AttrUserID, a.ID)
	set(AttrPlatform, a.Platform)
	set(AttrAppVersion, a.AppVersion)

	var d DeviceInfo
	if a.Device != nil {
		d = *a.Device
	}
	set(AttrDeviceOS, d.OS)
	set(AttrDeviceOSVersion, d.OSVersion)
	set(AttrDeviceModel, d.Model)
	set(AttrDeviceManufacturer, d.Manufacturer)

	return out
}

// Context converts the attributes into the rule engine's input form.
func (a Attributes) Context() ruleengine.Context {
	return ruleengine.Context{
		UserID:     a.ID,
		Attributes: a.Flatten(),
	}
}
