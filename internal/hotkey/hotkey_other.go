//go:build !linux && !darwin

package hotkey

// New reports ErrUnsupported; capture is still controlled from the tray.
func New() (Manager, error) {
	return nil, ErrUnsupported
}
