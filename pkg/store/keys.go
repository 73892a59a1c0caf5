package store

import (
	"fmt"
	"sync/atomic"
)

// Keyspace layout. Every entity is a JSON value under a namespaced key;
// message keys embed a zero-padded creation timestamp so iteration order
// is creation order.
//
//	user:<userID>                  User
//	extid:<subject>                userID
//	conv:<convID>                  Conversation
//	member:<convID>:<userID>       Member
//	umember:<userID>:<convID>      (membership index, empty value)
//	msg:<convID>:<pad(ts)>-<seq>   Message
//	msgid:<msgID>                  message key
//	react:<msgID>:<userID>:<emoji> Reaction
//	typing:<convID>:<userID>       TypingIndicator
//	blob:<ref>:meta / blob:<ref>:data

// seq reduces key collisions when multiple messages share the same
// nanosecond timestamp.
var seq uint64

func userKey(id string) string          { return "user:" + id }
func extidKey(subject string) string    { return "extid:" + subject }
func convKey(id string) string          { return "conv:" + id }
func memberKey(c, u string) string      { return "member:" + c + ":" + u }
func umemberKey(u, c string) string     { return "umember:" + u + ":" + c }
func msgPrefix(convID string) string    { return "msg:" + convID + ":" }
func msgidKey(id string) string         { return "msgid:" + id }
func reactPrefix(msgID string) string   { return "react:" + msgID + ":" }
func reactKey(m, u, e string) string    { return "react:" + m + ":" + u + ":" + e }
func typingPrefix(convID string) string { return "typing:" + convID + ":" }
func typingKey(c, u string) string      { return "typing:" + c + ":" + u }
func blobMetaKey(ref string) string     { return "blob:" + ref + ":meta" }
func blobDataKey(ref string) string     { return "blob:" + ref + ":data" }

// msgKey builds a creation-ordered message key for a conversation.
func msgKey(convID string, ts int64) string {
	s := atomic.AddUint64(&seq, 1)
	return fmt.Sprintf("%s%020d-%06d", msgPrefix(convID), ts, s)
}
