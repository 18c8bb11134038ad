package permissions

import "errors"

// ErrMicrophoneDenied is returned by EnsurePermissions when capture cannot
// proceed without the user granting microphone access.
var ErrMicrophoneDenied = errors.New("microphone permission not granted")

// Status mirrors AVAuthorizationStatus.
type Status int

const (
	PermissionNotDetermined Status = 0
	PermissionRestricted    Status = 1
	PermissionDenied        Status = 2
	PermissionAuthorized    Status = 3
)

func (s Status) String() string {
	switch s {
	case PermissionNotDetermined:
		return "not determined"
	case PermissionRestricted:
		return "restricted"
	case PermissionDenied:
		return "denied"
	case PermissionAuthorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// shouldRequest reports whether asking the user can still change s.
func (s Status) shouldRequest() bool {
	return s == PermissionNotDetermined
}
