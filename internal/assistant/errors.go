package assistant

import "errors"

var (
	// ErrEmptyMessage is returned when the visitor text is empty or whitespace.
	ErrEmptyMessage = errors.New("assistant: message is empty")

	// ErrBusy is returned when a turn is already in flight for the widget.
	ErrBusy = errors.New("assistant: a reply is already in progress")

	// ErrSessionUnavailable is returned when no remote session could be created.
	ErrSessionUnavailable = errors.New("assistant: chat session unavailable")

	// ErrUnmounted is returned once the widget has been discarded.
	ErrUnmounted = errors.New("assistant: widget is no longer mounted")
)
