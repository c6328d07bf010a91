package limits

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

const (
	// MaxBodySize bounds note, post and comment bodies.
	MaxBodySize = 16 * 1024

	// MaxTitleSize bounds post titles.
	MaxTitleSize = 256

	// MaxLabelSize bounds the label a peer announces about itself.
	MaxLabelSize = 64

	// MaxChannelSize bounds channel names.
	MaxChannelSize = 128

	// MaxIDSize bounds envelope and post ids.
	MaxIDSize = 64

	// MaxFrameSize is the absolute maximum for any frame read off the wire.
	// This prevents memory exhaustion attacks (1MB limit)
	MaxFrameSize = 1024 * 1024

	// MaxSyncIDs bounds the id list carried by one sync request.
	MaxSyncIDs = 10000
)

var (
	// ErrMessageEmpty indicates an empty message was provided
	ErrMessageEmpty = errors.New("empty message")

	// ErrMessageTooLarge indicates message exceeds maximum size
	ErrMessageTooLarge = errors.New("message too large")
)

// ValidateMessageSize validates a message against the specified maximum size.
// Returns an error with context including the actual and maximum sizes.
func ValidateMessageSize(message []byte, maxSize int) error {
	if len(message) == 0 {
		return ErrMessageEmpty
	}
	if len(message) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrMessageTooLarge, len(message), maxSize)
	}
	return nil
}

// ValidateBody validates a note, post or comment body.
func ValidateBody(body []byte) error {
	return ValidateMessageSize(body, MaxBodySize)
}

// ValidateChannel validates a channel name.
func ValidateChannel(channel string) error {
	if channel == "" {
		return ErrMessageEmpty
	}
	if len(channel) > MaxChannelSize {
		return fmt.Errorf("%w: channel length %d exceeds limit %d", ErrMessageTooLarge, len(channel), MaxChannelSize)
	}
	return nil
}

// ValidateFrame validates raw wire data against MaxFrameSize.
// This limit should be applied to all network-received data before parsing.
func ValidateFrame(data []byte) error {
	return ValidateMessageSize(data, MaxFrameSize)
}

// TruncateLabel cuts a label down to at most MaxLabelSize bytes.
func TruncateLabel(label string) string {
	return Truncate(label, MaxLabelSize)
}

// Truncate cuts s to at most size bytes without splitting a UTF-8 sequence.
func Truncate(s string, size int) string {
	if len(s) <= size {
		return s
	}
	cut := size
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// ValidateTitle validates a post title. Titles may be empty.
func ValidateTitle(title string) error {
	if len(title) > MaxTitleSize {
		return fmt.Errorf("%w: title length %d exceeds limit %d", ErrMessageTooLarge, len(title), MaxTitleSize)
	}
	return nil
}
