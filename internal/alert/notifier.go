package alert

import "github.com/gen2brain/beeep"

// DesktopNotifier raises native desktop notifications.
type DesktopNotifier struct {
	// AppName is shown as the notification source on platforms that
	// support it.
	AppName string
}

// Notify implements Notifier via the platform notification facility.
func (n DesktopNotifier) Notify(title, body string) error {
	if n.AppName != "" {
		beeep.AppName = n.AppName
	}
	return beeep.Notify(title, body, "")
}
