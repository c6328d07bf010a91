// Package envelope defines the wire unit exchanged between peers.
//
// An envelope is a JSON object:
//
//	{ "type": "note", "payload": {...}, "from": "<hex>", "to": "<hex>",
//	  "ts": 1700000000000, "id": "<hex>", "sig": "<hex>" }
//
// Broadcast kinds (post, vote, comment) carry "channel" instead of "to".
// The signature covers the canonical serialization of every field except
// "sig" itself. Note payloads are sealed for the recipient and carry
// {iv, tag, ciphertext} as hex strings.
//
// Control envelopes (hello, sync) are neither signed nor encrypted: hello is
// what bootstraps the ability to encrypt at all, and sync only lists ids.
package envelope
