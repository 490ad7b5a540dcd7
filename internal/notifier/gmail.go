package notifier

import (
	"context"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/sirupsen/logrus"

	"inbox2itsm/internal/config"
	"inbox2itsm/internal/model"
)

// GmailNotifier sends approval mail through the Gmail API with the
// send scope, reusing the mailbox OAuth2 credentials.
type GmailNotifier struct {
	service  *gmail.Service
	from     string
	approver string
}

// NewGmailNotifier creates a Gmail-backed notifier
func NewGmailNotifier(mailbox *config.MailboxConfig, notify *config.NotifyConfig) (*GmailNotifier, error) {
	ctx := context.Background()

	oauth2Config := &oauth2.Config{
		ClientID:     mailbox.ClientID,
		ClientSecret: mailbox.ClientSecret,
		Scopes:       []string{gmail.GmailSendScope},
		Endpoint:     google.Endpoint,
	}

	token := &oauth2.Token{
		RefreshToken: mailbox.RefreshToken,
	}

	tokenSource := oauth2Config.TokenSource(ctx, token)

	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &GmailNotifier{
		service:  service,
		from:     mailbox.Address,
		approver: notify.ApproverEmail,
	}, nil
}

// NotifyApproval sends the approval request for a change ticket
func (n *GmailNotifier) NotifyApproval(ctx context.Context, ticket model.Ticket, msg model.Message) error {
	raw := buildApprovalMail(n.from, n.approver, ticket, msg)

	gmsg := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(raw)),
	}

	if _, err := n.service.Users.Messages.Send(n.from, gmsg).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to send approval mail for %s: %w", ticket.Number, err)
	}

	logrus.Infof("Sent approval mail for %s to %s", ticket.Number, n.approver)
	return nil
}

// Close closes the notifier (no-op for Gmail API)
func (n *GmailNotifier) Close() error {
	return nil
}
