// Package store holds the deduplicated, signature-verified facts a peer has
// accepted: private notes and the public board's posts, votes and comments.
//
// Every fact has a dedup key. Notes, posts and comments use their envelope
// id; votes use "<postId>:<voterPublicKeyHex>" so a voter counts at most
// once per post no matter how often the vote is gossiped. [Store.Insert] is
// idempotent: re-inserting a known key is a silent no-op that reports
// accepted == false and leaves every derived count untouched.
//
// The store tolerates orphans. A comment or vote may arrive before the post
// it references and is kept; it becomes visible through [Store.Comments] and
// [Store.VoteCount] by post id whether or not the post is ever seen.
package store
