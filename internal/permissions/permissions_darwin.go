//go:build darwin

package permissions

/*
#cgo LDFLAGS: -framework AVFoundation
#import <AVFoundation/AVFoundation.h>

int checkMicrophonePermission() {
    AVAuthorizationStatus status = [AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
    return (int)status;
}

void requestMicrophonePermission() {
    [AVCaptureDevice requestAccessForMediaType:AVMediaTypeAudio completionHandler:^(BOOL granted) {}];
}
*/
import "C"

import "github.com/rs/zerolog"

// CheckMicrophone returns the current microphone permission status
func CheckMicrophone() Status {
	return Status(C.checkMicrophonePermission())
}

// RequestMicrophone triggers the system microphone permission dialog
func RequestMicrophone() {
	C.requestMicrophonePermission()
}

// EnsurePermissions checks microphone access and prompts when the user has
// not decided yet.
func EnsurePermissions(log zerolog.Logger) error {
	status := CheckMicrophone()
	if status == PermissionAuthorized {
		return nil
	}

	log.Warn().Stringer("status", status).Msg("Microphone permission required")
	if status.shouldRequest() {
		RequestMicrophone()
	} else {
		log.Warn().Msg("Enable it in System Settings → Privacy & Security → Microphone")
	}
	return ErrMicrophoneDenied
}
