package model

import (
	"time"
)

// ProcessedMessage records a message id that has already been turned
// into a ticket. Rows are only ever inserted, never updated.
type ProcessedMessage struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	MessageID   string    `json:"message_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	ProcessedAt time.Time `json:"processed_at"`
}

// TableName specifies the table name for ProcessedMessage
func (ProcessedMessage) TableName() string {
	return "processed_messages"
}

// TicketLog is an audit row for one ticket-filing attempt.
type TicketLog struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	MessageID    string    `json:"message_id" gorm:"type:varchar(255);not null;index"`
	TicketNumber string    `json:"ticket_number" gorm:"type:varchar(64)"`
	Intent       string    `json:"intent" gorm:"type:varchar(16)"`
	Status       string    `json:"status" gorm:"type:varchar(50);not null"` // success, failure, skipped
	ErrorMsg     string    `json:"error_msg" gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for TicketLog
func (TicketLog) TableName() string {
	return "ticket_logs"
}
