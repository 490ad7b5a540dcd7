package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/sirupsen/logrus"

	"inbox2itsm/internal/config"
	"inbox2itsm/internal/model"
)

// SMTPNotifier sends approval mail over SMTP with PLAIN auth, for
// deployments that pair it with the IMAP fetcher.
type SMTPNotifier struct {
	addr     string
	user     string
	password string
	from     string
	approver string
}

// NewSMTPNotifier creates an SMTP-backed notifier
func NewSMTPNotifier(mailbox *config.MailboxConfig, notify *config.NotifyConfig) *SMTPNotifier {
	return &SMTPNotifier{
		addr:     fmt.Sprintf("%s:%d", notify.SMTPHost, notify.SMTPPort),
		user:     notify.SMTPUser,
		password: notify.SMTPPassword,
		from:     mailbox.Address,
		approver: notify.ApproverEmail,
	}
}

// NotifyApproval sends the approval request for a change ticket
func (n *SMTPNotifier) NotifyApproval(ctx context.Context, ticket model.Ticket, msg model.Message) error {
	raw := buildApprovalMail(n.from, n.approver, ticket, msg)

	auth := sasl.NewPlainClient("", n.user, n.password)
	if err := smtp.SendMail(n.addr, auth, n.from, []string{n.approver}, strings.NewReader(raw)); err != nil {
		return fmt.Errorf("failed to send approval mail for %s: %w", ticket.Number, err)
	}

	logrus.Infof("Sent approval mail for %s to %s", ticket.Number, n.approver)
	return nil
}

// Close closes the notifier (connections are per-send)
func (n *SMTPNotifier) Close() error {
	return nil
}
