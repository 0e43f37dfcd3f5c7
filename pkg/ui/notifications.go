package ui

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"phototimer/pkg/config"
)

const appName = "Photo Timer"

// Titles and messages shown when the rotation needs the user's attention
const (
	TitleTimesUp     = "Time's up!"
	TitleEndOfList   = "End of photo list."
	TitleFetchError  = "Error fetching photos"
	TitleImageError  = "Failed to load image"
	MessageTimesUp   = "The interval has elapsed. Showing the next photo."
	MessageEndOfList = "There are no more photos in the list."
)

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	cmd := exec.Command("notify-send", "--app-name", appName, title, message)
	return cmd.Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	cmd := exec.Command("osascript", "-e", script)
	return cmd.Run()
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast>
	<visual>
		<binding template="ToastText02">
			<text id="1">%s</text>
			<text id="2">%s</text>
		</binding>
	</visual>
</toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("%s").Show($toast)
	`, xmlEscape(title), xmlEscape(message), appName)

	cmd := exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	return cmd.Run()
}

func xmlEscape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}

// PlatformSender returns the desktop sender for the current platform, or nil
func PlatformSender() NotificationSender {
	switch runtime.GOOS {
	case "linux":
		return &LinuxNotificationSender{}
	case "darwin":
		return &MacOSNotificationSender{}
	case "windows":
		return &WindowsNotificationSender{}
	default:
		return nil
	}
}

// Notifier reports rotation milestones and errors to the user
type Notifier struct {
	mu     sync.Mutex
	cfg    config.NotificationConfig
	sender NotificationSender
	out    io.Writer
}

// NewNotifier creates a Notifier printing to stdout. Desktop notifications
// are sent only when cfg selects them.
func NewNotifier(cfg config.NotificationConfig) *Notifier {
	var sender NotificationSender
	if strings.EqualFold(cfg.NotificationType, "desktop") {
		sender = PlatformSender()
	}
	return NewNotifierWithSender(cfg, sender, os.Stdout)
}

// NewNotifierWithSender creates a Notifier with an explicit sender and output
func NewNotifierWithSender(cfg config.NotificationConfig, sender NotificationSender, out io.Writer) *Notifier {
	if out == nil {
		out = io.Discard
	}
	return &Notifier{cfg: cfg, sender: sender, out: out}
}

// SetOutput redirects console output, e.g. while a full-screen UI owns the terminal
func (n *Notifier) SetOutput(w io.Writer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if w == nil {
		w = io.Discard
	}
	n.out = w
}

func (n *Notifier) active() bool {
	return n.cfg.Enabled && !strings.EqualFold(n.cfg.NotificationType, "none")
}

// TimesUp announces that the countdown reached zero
func (n *Notifier) TimesUp() {
	if !n.active() || !n.cfg.OnIntervalEnd {
		return
	}
	n.send(TitleTimesUp, MessageTimesUp, Cyan, Yellow)
}

// EndOfList announces that there is no next photo
func (n *Notifier) EndOfList() {
	if !n.active() || !n.cfg.OnIntervalEnd {
		return
	}
	n.send(TitleEndOfList, MessageEndOfList, Cyan, Yellow)
}

// FetchFailed reports a page that could not be fetched
func (n *Notifier) FetchFailed(err error) {
	n.SendError(TitleFetchError, err)
}

// ImageLoadFailed reports an image that could not be loaded
func (n *Notifier) ImageLoadFailed(err error) {
	n.SendError(TitleImageError, err)
}

// SendError sends an error notification
func (n *Notifier) SendError(title string, err error) {
	if !n.active() || !n.cfg.OnError || err == nil {
		return
	}
	n.send(title, err.Error(), Red, Red)
}

// SendNotification sends a notification with the default colours
func (n *Notifier) SendNotification(title, message string) {
	if !n.active() {
		return
	}
	n.send(title, message, Cyan, Yellow)
}

func (n *Notifier) send(title, message string, titleColor, messageColor func(string) string) {
	n.mu.Lock()
	fmt.Fprintf(n.out, "\n%s: %s\n", titleColor(title), messageColor(message))
	n.mu.Unlock()

	if n.sender != nil {
		// Desktop notifications are best effort
		_ = n.sender.Send(title, message)
	}
}
