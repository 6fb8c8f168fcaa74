// Package notify delivers fire-and-forget notifications for task events.
// Delivery failures are logged and discarded; they never affect the state
// transition that produced them.
package notify

import (
	"fmt"
	"log"
	"strings"
)

// Notification is one message bound for the configured sinks.
type Notification struct {
	Subject    string
	Body       string
	Critical   bool     // critical-priority alerts are marked in the sinks
	Recipients []string // technician identities, informational for the sink
}

// Notifier delivers a notification to one sink.
type Notifier interface {
	Send(n Notification) error
}

// Dispatch sends n to every notifier, logging failures. It never returns an
// error: notification delivery is best-effort by contract.
func Dispatch(notifiers []Notifier, n Notification) {
	for _, sink := range notifiers {
		if err := sink.Send(n); err != nil {
			log.Printf("notify: send %q: %v", n.Subject, err)
		}
	}
}

// LogNotifier writes notifications to the process log. It is the fallback
// sink when no chat integration is configured.
type LogNotifier struct{}

func (LogNotifier) Send(n Notification) error {
	prefix := "notify"
	if n.Critical {
		prefix = "notify [CRITICAL]"
	}
	if len(n.Recipients) > 0 {
		log.Printf("%s: %s → %s", prefix, n.Subject, strings.Join(n.Recipients, ", "))
	} else {
		log.Printf("%s: %s", prefix, n.Subject)
	}
	return nil
}

// TaskAssigned builds the notification for a new assignment.
func TaskAssigned(taskNumber, title string, critical bool, recipients []string) Notification {
	return Notification{
		Subject:    fmt.Sprintf("Task %s assigned: %s", taskNumber, title),
		Body:       fmt.Sprintf("You have been assigned to task %s (%s).", taskNumber, title),
		Critical:   critical,
		Recipients: recipients,
	}
}

// StatusChanged builds the notification for an administrative status change.
func StatusChanged(taskNumber, oldStatus, newStatus string, recipients []string) Notification {
	return Notification{
		Subject:    fmt.Sprintf("Task %s: %s → %s", taskNumber, oldStatus, newStatus),
		Body:       fmt.Sprintf("Task %s changed status from %s to %s.", taskNumber, oldStatus, newStatus),
		Recipients: recipients,
	}
}

// CriticalTask builds the immediate-attention alert for critical tasks.
func CriticalTask(taskNumber, title string, recipients []string) Notification {
	return Notification{
		Subject:    fmt.Sprintf("CRITICAL task %s requires immediate attention", taskNumber),
		Body:       title,
		Critical:   true,
		Recipients: recipients,
	}
}

// ScheduledActivated builds the notification for a scheduled task going live.
func ScheduledActivated(taskNumber, title string, critical bool, recipients []string) Notification {
	return Notification{
		Subject:    fmt.Sprintf("Scheduled task %s is now active", taskNumber),
		Body:       title,
		Critical:   critical,
		Recipients: recipients,
	}
}
