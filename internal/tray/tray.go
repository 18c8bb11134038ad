package tray

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/getlantern/systray"
	"github.com/petems/streamcap/internal/app"
	"github.com/petems/streamcap/internal/audio"
	"github.com/petems/streamcap/internal/logging"
	"github.com/petems/streamcap/internal/monitor"
	"github.com/rs/zerolog"
)

type UI struct {
	app     *app.App
	version string
	commit  string
	log     zerolog.Logger
	ctx     context.Context

	mu       sync.Mutex
	status   string
	buffered time.Duration

	// Menu items
	mPause   *systray.MenuItem
	mClear   *systray.MenuItem
	mDevices *systray.MenuItem
	mCopy    *systray.MenuItem
}

// Status update methods for the app to call
func (u *UI) SetIdle() {
	u.updateStatus("idle")
}

func (u *UI) SetRecording() {
	u.updateStatus("recording")
}

func (u *UI) SetPaused() {
	u.updateStatus("paused")
}

func (u *UI) SetError() {
	u.updateStatus("error")
}

func New(application *app.App, log zerolog.Logger, version, commit string) *UI {
	return &UI{
		app:     application,
		version: version,
		commit:  commit,
		log:     log,
		status:  "idle",
	}
}

// SetApp sets the app reference (for circular dependency resolution)
func (u *UI) SetApp(application *app.App) {
	u.app = application
	application.Subscribe(u.onReading)
}

// Run blocks on the tray event loop until Quit is chosen or ctx ends. It
// must be called from the main goroutine.
func (u *UI) Run(ctx context.Context) error {
	u.ctx = ctx
	go func() {
		<-ctx.Done()
		systray.Quit()
	}()
	systray.Run(u.onReady, u.onExit)
	return nil
}

func (u *UI) onReady() {
	u.refreshTitle()
	systray.SetTooltip("Rolling microphone capture")

	// Build menu
	u.mPause = systray.AddMenuItem("Pause Capture", "Toggle with the hotkey too")
	u.mClear = systray.AddMenuItem("Clear Buffer", "Discard captured audio")
	systray.AddSeparator()

	u.mDevices = systray.AddMenuItem("Microphone", "Select audio device")
	u.buildDeviceMenu()

	systray.AddSeparator()
	u.mCopy = systray.AddMenuItem("Copy Status", "Copy capture statistics to the clipboard")
	mLogs := systray.AddMenuItem("Open Logs", "View application logs")
	mAbout := systray.AddMenuItem("About", "About StreamCap")
	mQuit := systray.AddMenuItem("Quit", "Exit application")

	// Event loop
	go u.handleEvents(mLogs, mAbout, mQuit)

	go func() {
		if err := u.app.Start(u.ctx); err != nil {
			u.log.Error().Err(err).Msg("Failed to start capture")
		}
	}()
}

func (u *UI) handleEvents(mLogs, mAbout, mQuit *systray.MenuItem) {
	for {
		select {
		case <-u.mPause.ClickedCh:
			u.togglePause()
		case <-u.mClear.ClickedCh:
			if err := u.app.Clear(); err != nil {
				u.log.Warn().Err(err).Msg("Cannot clear buffer")
			}
		case <-u.mCopy.ClickedCh:
			u.copyStatus()
		case <-mLogs.ClickedCh:
			u.openLogs()
		case <-mAbout.ClickedCh:
			u.showAbout()
		case <-mQuit.ClickedCh:
			systray.Quit()
			return
		}
	}
}

func (u *UI) buildDeviceMenu() {
	// Get devices from app
	devices, err := u.app.ListDevices()
	if err != nil {
		u.log.Error().Err(err).Msg("Failed to list audio devices")
		return
	}

	var itemsMu sync.Mutex
	deviceItems := make(map[int]*systray.MenuItem)
	checkOnly := func(index int) {
		itemsMu.Lock()
		defer itemsMu.Unlock()
		for i, itm := range deviceItems {
			if i == index {
				itm.Check()
			} else {
				itm.Uncheck()
			}
		}
	}

	selected := u.app.DeviceIndex()
	for _, dev := range devices {
		item := u.mDevices.AddSubMenuItem(dev.Name, "")
		if dev.Index == selected || (selected == audio.DefaultDevice && dev.Default) {
			item.Check()
		}
		deviceItems[dev.Index] = item

		go func(dev audio.AudioDevice, menuItem *systray.MenuItem) {
			for range menuItem.ClickedCh {
				prev := u.app.DeviceIndex()
				if err := u.app.SetDevice(u.ctx, dev.Index); err != nil {
					u.log.Error().Err(err).Str("device", dev.Name).Msg("Failed to switch audio device")
					checkOnly(prev)
					continue
				}
				checkOnly(dev.Index)
			}
		}(dev, item)
	}
}

func (u *UI) togglePause() {
	if err := u.app.TogglePause(); err != nil {
		u.log.Error().Err(err).Msg("Failed to toggle capture")
	}
}

func (u *UI) copyStatus() {
	status := u.app.Status()
	if err := clipboard.WriteAll(status); err != nil {
		u.log.Error().Err(err).Msg("Failed to copy status")
		return
	}
	u.log.Info().Str("status", status).Msg("Copied status to clipboard")
}

func (u *UI) openLogs() {
	name, args := openCommand(runtime.GOOS, logging.Path())
	if err := exec.Command(name, args...).Start(); err != nil {
		u.log.Error().Err(err).Msg("Failed to open logs")
	}
}

func (u *UI) showAbout() {
	// TODO: Show about dialog with native UI
	fmt.Printf("StreamCap %s (%s)\nRolling microphone capture\n", u.version, u.commit)
}

func (u *UI) onExit() {
	if err := u.app.Shutdown(context.Background()); err != nil {
		u.log.Warn().Err(err).Msg("Shutdown error")
	}
}

func (u *UI) onReading(r monitor.Reading) {
	u.mu.Lock()
	changed := r.Buffered.Round(100*time.Millisecond) != u.buffered.Round(100*time.Millisecond)
	u.buffered = r.Buffered
	u.mu.Unlock()

	if changed {
		u.refreshTitle()
	}
}

func (u *UI) updateStatus(status string) {
	u.mu.Lock()
	u.status = status
	u.mu.Unlock()

	if u.mPause != nil {
		if status == "paused" {
			u.mPause.SetTitle("Resume Capture")
		} else {
			u.mPause.SetTitle("Pause Capture")
		}
	}
	u.refreshTitle()
}

func (u *UI) refreshTitle() {
	u.mu.Lock()
	title := formatTitle(u.status, u.buffered)
	u.mu.Unlock()
	systray.SetTitle(title)
}

// formatTitle renders the microphone emoji, a status dot and the buffered span
func formatTitle(status string, buffered time.Duration) string {
	emoji := emojiForStatus(status)
	if status == "idle" || status == "error" {
		return fmt.Sprintf("🎤 %s", emoji)
	}
	return fmt.Sprintf("🎤 %s %.1fs", emoji, buffered.Seconds())
}

// emojiForStatus returns the appropriate status emoji
func emojiForStatus(status string) string {
	switch status {
	case "recording":
		return "🔴" // Red - capturing
	case "paused":
		return "🟡" // Yellow - paused, buffer kept
	case "idle":
		return "🟢" // Green - ready/idle
	case "error":
		return "⚪️" // White - error
	default:
		return "🟢" // Green - default to ready
	}
}

// openCommand returns the platform file opener for path
func openCommand(goos, path string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{path}
	case "windows":
		return "cmd", []string{"/c", "start", "", path}
	default:
		return "xdg-open", []string{path}
	}
}
