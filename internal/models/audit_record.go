package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// AuditRecord is one private message captured by the social spy log.
type AuditRecord struct {
	ID string `gorm:"primaryKey" json:"id"`
	// Kind is the message kind (dm, whisper, reply, group).
	Kind string `gorm:"type:text;not null;index" json:"kind"`
	// SenderID is the handle of the user who sent the message.
	SenderID   string `gorm:"type:text;not null;index" json:"sender_id"`
	SenderName string `gorm:"type:text" json:"sender_name"`
	// Recipients holds the display names of everyone the message reached.
	Recipients pq.StringArray `gorm:"type:text[]" json:"recipients"`
	// Group is set for group broadcasts.
	Group   string    `gorm:"column:group_name;type:text;index" json:"group,omitempty"`
	Content string    `gorm:"type:text;not null" json:"content"`
	SentAt  time.Time `gorm:"index" json:"sent_at"`
}

// BeforeCreate is a GORM hook that assigns a UUID when the ID is empty.
func (r *AuditRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}

// Receiver is how the receiving side is shown in text logs: the recipient
// names, prefixed by the group name for group messages.
func (r AuditRecord) Receiver() string {
	receivers := strings.Join(r.Recipients, ", ")
	if r.Group != "" {
		return r.Group + " (" + receivers + ")"
	}
	return receivers
}
