// Package notify delivers user-facing messages about emojification runs.
package notify

import (
	"fmt"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/smegmarip/stash-emojify-plugin/internal/log"
)

const (
	// TitleNoFaces is sent when the detector finds no face in a photo
	TitleNoFaces = "No faces detected"
	// TitleNoEmoji is sent when a classified face has no emoji image
	TitleNoEmoji = "No emoji case detected"
)

// Notifier shows a short message to the user
type Notifier interface {
	Notify(title, message string) error
}

// LogNotifier writes notifications to the plugin log
type LogNotifier struct{}

// Notify implements Notifier
func (LogNotifier) Notify(title, message string) error {
	log.Warnf("%s: %s", title, message)
	return nil
}

// DesktopNotifier raises an OS desktop notification
type DesktopNotifier struct {
	AppIcon string
}

// Notify implements Notifier
func (d DesktopNotifier) Notify(title, message string) error {
	if err := beeep.Notify(title, message, d.AppIcon); err != nil {
		return fmt.Errorf("failed to send desktop notification: %w", err)
	}
	return nil
}

// Multi fans a notification out to several notifiers; every notifier is tried
type Multi []Notifier

// Notify implements Notifier and returns the first error encountered
func (m Multi) Notify(title, message string) error {
	var first error
	for _, n := range m {
		if err := n.Notify(title, message); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Notification is a single recorded message
type Notification struct {
	Title   string
	Message string
}

// Recorder keeps notifications in memory
type Recorder struct {
	mu            sync.Mutex
	notifications []Notification
}

// Notify implements Notifier
func (r *Recorder) Notify(title, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, Notification{Title: title, Message: message})
	return nil
}

// Notifications returns a copy of everything recorded so far
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.notifications))
	copy(out, r.notifications)
	return out
}

// Reset clears recorded notifications
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.notifications = nil
	r.mu.Unlock()
}
