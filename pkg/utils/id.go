package utils

import "github.com/google/uuid"

// Entity id generators. Prefixes make ids self-describing in logs and in
// the keyspace; ordering never depends on them.

func GenUserID() string         { return "usr_" + uuid.NewString() }
func GenConversationID() string { return "conv_" + uuid.NewString() }
func GenMessageID() string      { return "msg_" + uuid.NewString() }
func GenBlobRef() string        { return "blob_" + uuid.NewString() }
