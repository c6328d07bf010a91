// Package limits provides centralized size constants and validation functions
// for peernotes. Every component that accepts untrusted or user supplied data
// checks it against these limits so enforcement stays consistent.
//
// # Size Hierarchy
//
//   - MaxBodySize (16 KiB): the largest note, post or comment body.
//   - MaxTitleSize (256 bytes): the largest post title.
//   - MaxLabelSize (64 bytes): the largest contact label announced in hello.
//   - MaxChannelSize (128 bytes): the longest channel name.
//   - MaxIDSize (64 bytes): the longest envelope or post id.
//   - MaxFrameSize (1 MiB): the absolute maximum for a single wire frame.
//     Frames above it are rejected before they are buffered.
//
// # Validation Functions
//
//	if err := limits.ValidateBody([]byte(text)); err != nil {
//	    // ErrMessageEmpty or ErrMessageTooLarge
//	}
//
// Use [ValidateMessageSize] for a custom limit and [Truncate] to shorten
// text without splitting a UTF-8 sequence.
package limits
