package model

// Permissions is the fixed capability vector carried by every session.
// Defaults are conservative: a capability is granted only when the caller
// asked for it explicitly, or via the trusted preset.
type Permissions struct {
	ScreenShare     bool `json:"screenShare"`
	MouseControl    bool `json:"mouseControl"`
	KeyboardControl bool `json:"keyboardControl"`
	FileTransfer    bool `json:"fileTransfer"`
	Chat            bool `json:"chat"`
	Audio           bool `json:"audio"`
	Recording       bool `json:"recording"`
}

// TrustedPermissions is the fixed preset applied when a session is created
// with autoApprove.
func TrustedPermissions() Permissions {
	return Permissions{
		ScreenShare:     true,
		MouseControl:    true,
		KeyboardControl: true,
		Recording:       true,
	}
}

// PermissionsFromMap builds a permission set from a partial map. Keys absent
// from the map stay false; unknown keys are ignored.
func PermissionsFromMap(m map[string]bool) Permissions {
	var p Permissions
	p.Merge(m)
	return p
}

// Merge applies a partial update per key: only keys present in the map are
// touched, so revoking one capability never re-enables another by omission.
func (p *Permissions) Merge(m map[string]bool) {
	for key, val := range m {
		switch key {
		case "screenShare":
			p.ScreenShare = val
		case "mouseControl":
			p.MouseControl = val
		case "keyboardControl":
			p.KeyboardControl = val
		case "fileTransfer":
			p.FileTransfer = val
		case "chat":
			p.Chat = val
		case "audio":
			p.Audio = val
		case "recording":
			p.Recording = val
		}
	}
}
