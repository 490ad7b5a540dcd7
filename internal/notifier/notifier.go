// Package notifier sends approval requests for change tickets.
// Notification is best-effort: a failure is logged, never rolled
// back into the already-created ticket.
package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"inbox2itsm/internal/model"
)

// Notifier sends an approval notification for a change ticket.
type Notifier interface {
	NotifyApproval(ctx context.Context, ticket model.Ticket, msg model.Message) error
	Close() error
}

// buildApprovalMail renders the fixed approval template as an RFC822
// message.
func buildApprovalMail(from, to string, ticket model.Ticket, msg model.Message) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("From: %s\r\n", from))
	b.WriteString(fmt.Sprintf("To: %s\r\n", to))
	b.WriteString(fmt.Sprintf("Subject: Approval required: change request %s\r\n", ticket.Number))
	b.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")

	b.WriteString(fmt.Sprintf("Change request %s is awaiting your approval.\r\n", ticket.Number))
	b.WriteString("\r\n")
	b.WriteString(fmt.Sprintf("Requested by: %s\r\n", msg.Sender))
	b.WriteString(fmt.Sprintf("Summary: %s\r\n", msg.Subject))
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")

	return b.String()
}
