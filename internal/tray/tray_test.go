package tray

import (
	"testing"
	"time"
)

func TestEmojiForStatus(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{"recording", "🔴"},
		{"paused", "🟡"},
		{"idle", "🟢"},
		{"error", "⚪️"},
		{"unknown", "🟢"},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			if got := emojiForStatus(tt.status); got != tt.want {
				t.Errorf("emojiForStatus(%q) = %s, want %s", tt.status, got, tt.want)
			}
		})
	}
}

// TestFormatTitle verifies the buffered span is only shown while a session
// holds audio.
func TestFormatTitle(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		buffered time.Duration
		want     string
	}{
		{"idle hides span", "idle", 3 * time.Second, "🎤 🟢"},
		{"error hides span", "error", 0, "🎤 ⚪️"},
		{"recording", "recording", 4200 * time.Millisecond, "🎤 🔴 4.2s"},
		{"paused", "paused", 10 * time.Second, "🎤 🟡 10.0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatTitle(tt.status, tt.buffered); got != tt.want {
				t.Errorf("formatTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpenCommand(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{"darwin", "open"},
		{"windows", "cmd"},
		{"linux", "xdg-open"},
		{"freebsd", "xdg-open"},
	}

	for _, tt := range tests {
		name, args := openCommand(tt.goos, "/tmp/streamcap.log")
		if name != tt.want {
			t.Errorf("openCommand(%s) = %s, want %s", tt.goos, name, tt.want)
		}
		if args[len(args)-1] != "/tmp/streamcap.log" {
			t.Errorf("openCommand(%s) should end with the path, got %v", tt.goos, args)
		}
	}
}
