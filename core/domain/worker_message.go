package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// InboxProvider tags the inbox a message was ingested from.
type InboxProvider string

const (
	InboxAll   InboxProvider = "ALL"
	InboxGmail InboxProvider = "GMAIL"
)

// Message is an archived message as seen by the query planner.
// Messages are immutable and owned by the ingestion pipeline.
type Message struct {
	ID         string        `json:"id" bson:"message_id" db:"message_id"`
	UserKey    string        `json:"user_key" bson:"user_key" db:"user_key"`
	Provider   InboxProvider `json:"provider" bson:"provider" db:"provider"`
	Sender     string        `json:"sender" bson:"sender" db:"sender"`
	Recipients []string      `json:"recipients" bson:"recipients" db:"recipients"`
	Subject    string        `json:"subject" bson:"subject" db:"subject"`
	Body       string        `json:"body,omitempty" bson:"body" db:"body"`
	CreatedAt  int64         `json:"created_at" bson:"created_at" db:"created_at"` // unix seconds
}

// UserKeyFromEmail derives the partition key of an account.
// The address is normalised before hashing so "Jane@X.com " and "jane@x.com" map to one partition.
func UserKeyFromEmail(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

// Account links a user key to the address it was derived from.
type Account struct {
	UserKey  string        `json:"user_key" db:"user_key"`
	Email    string        `json:"email" db:"email"`
	Provider InboxProvider `json:"provider" db:"provider"`
	Primary  bool          `json:"primary" db:"is_primary"`
}

// SortByCreatedDesc is the canonical ordering of the date path:
// newest first, ties broken by ID for stable output.
func SortByCreatedDesc(a, b *Message) int {
	switch {
	case a.CreatedAt > b.CreatedAt:
		return -1
	case a.CreatedAt < b.CreatedAt:
		return 1
	}
	if a.UserKey != b.UserKey {
		return strings.Compare(a.UserKey, b.UserKey)
	}
	return strings.Compare(b.ID, a.ID)
}
