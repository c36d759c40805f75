// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

// Level is the severity of a Notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Event names what happened.
type Event string

const (
	EventCompleted    Event = "completed"
	EventFailed       Event = "failed"
	EventTimedOut     Event = "timed_out"
	EventUploadFailed Event = "upload_failed"
	EventCopied       Event = "copied"
	EventCopyFailed   Event = "copy_failed"
)

// Notification is a transient message for the user. Losing one never
// affects tracked state.
type Notification struct {
	Level    Level
	Event    Event
	FileID   string
	FileName string
	Message  string
}

// Notifier shows notifications.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) { f(n) }

func (c *Controller) notify(n Notification) {
	if c.notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.Warnf("notifier panicked: %v", r)
		}
	}()
	c.notifier.Notify(n)
}
