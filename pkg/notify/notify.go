// Package notify delivers the rendered report summary to its recipients
package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	// ErrNoRecipients is returned when a message has nobody to go to
	ErrNoRecipients = errors.New("no recipients")
)

// Config locates the recipient list
type Config struct {
	RecipientsFile string `yaml:"recipientsFile" default:"recipients.txt"`
	Subject        string `yaml:"subject" default:"Daily TLA Report"`
}

// Message is one notification
type Message struct {
	Recipients []string
	Subject    string
	Body       string
	// Attachments are paths of files produced by the run
	Attachments []string
}

// Notifier delivers messages
type Notifier interface {
	Notify(ctx context.Context, msg *Message) error
}

// LogNotifier writes messages to the log instead of sending them
type LogNotifier struct {
	log logrus.FieldLogger
}

// NewLogNotifier creates a notifier that logs each message
func NewLogNotifier(log logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{log: log.WithField("component", "notify")}
}

// Notify logs the message with its recipients
func (n *LogNotifier) Notify(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(msg.Recipients) == 0 {
		return ErrNoRecipients
	}

	n.log.WithFields(logrus.Fields{
		"recipients":  strings.Join(msg.Recipients, ","),
		"subject":     msg.Subject,
		"attachments": len(msg.Attachments),
	}).Info("Report summary ready for delivery")

	n.log.Info("\n" + msg.Body)

	return nil
}
