// Package twitter connects parley to the X (Twitter) API v2.
//
// A rendered reply to a TweetTarget becomes a thread: every text segment
// is posted with POST /2/tweets and the id of each created tweet becomes
// the in_reply_to_tweet_id of the next one, so the thread builds in order
// even though the target of later tweets is unknown at render time.
// Media units declare an upload dependency executed against the v1.1
// media endpoint; the resulting media_id is merged into the tweet by the
// job's finalize hook.
//
// Direct messages go to POST /2/dm_conversations/with/:id/messages. They
// do not chain, so their jobs refresh the target to nil and each message
// falls back to its static DirectMessageTarget.
package twitter
