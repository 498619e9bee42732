// Package mail composes and delivers outgoing email.
//
// Delivery never happens on the request path: handlers hand messages to a
// Dispatcher which sends them from a background goroutine.
package mail

import "context"

// Message is a single outgoing email with a plain-text and an HTML body.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers one message synchronously.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
