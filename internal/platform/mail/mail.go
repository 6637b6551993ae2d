// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

/*
Package mail handles outbound transactional email.

It defines a transport-agnostic Dispatcher interface plus the HTML builders
for the authentication emails (magic link, one-time password). Services
depend only on the interface, so the transport can be swapped between the
development logger and a real provider without touching business logic.

Architecture:

  - Separation: Builders produce [Message] values; dispatchers deliver them.
  - Failure Contract: Dispatch errors surface to the caller, which decides
    whether to roll back issued credentials.
  - Development Mode: LogDispatcher writes the message to the structured log
    instead of the network.
*/
package mail

import (
	"context"
	"log/slog"
)

// Message is a fully rendered outbound email.
type Message struct {
	To       string
	From     string
	FromName string
	Subject  string
	HTML     string
	Text     string
}

// Dispatcher delivers rendered messages.
type Dispatcher interface {
	// Dispatch sends the message. A non-nil error means the message was
	// not handed to the transport and the caller may roll back whatever
	// credential the message carried.
	Dispatch(ctx context.Context, message Message) error
}

// LogDispatcher writes messages to the structured log instead of sending
// them. Used in development and tests.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher creates a dispatcher that logs instead of sending.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

// Dispatch implements [Dispatcher].
func (dispatcher *LogDispatcher) Dispatch(ctx context.Context, message Message) error {
	dispatcher.logger.InfoContext(ctx, "mail_dispatched_to_log",
		slog.String("to", message.To),
		slog.String("subject", message.Subject),
		slog.String("text", message.Text),
	)
	return nil
}
