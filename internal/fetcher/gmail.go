package fetcher

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

// GmailFetcher implements Fetcher using the Gmail API. It holds the
// readonly scope only, so fetching cannot change mailbox state.
type GmailFetcher struct {
	service *gmail.Service
	mailbox string
}

// NewGmailFetcher creates a new Gmail API fetcher
func NewGmailFetcher(cfg *config.MailboxConfig) (*GmailFetcher, error) {
	ctx := context.Background()

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gmail.GmailReadonlyScope},
		Endpoint:     google.Endpoint,
	}

	token := &oauth2.Token{
		RefreshToken: cfg.RefreshToken,
	}

	tokenSource := oauth2Config.TokenSource(ctx, token)

	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &GmailFetcher{
		service: service,
		mailbox: cfg.Address,
	}, nil
}

// FetchUnread fetches the currently-unread messages via the Gmail API
func (f *GmailFetcher) FetchUnread(ctx context.Context) ([]model.Message, error) {
	call := f.service.Users.Messages.List(f.mailbox).Q("is:unread").Context(ctx)
	response, err := call.Do()
	if err != nil {
		return nil, &TransientFetchError{Err: fmt.Errorf("failed to list messages: %w", err)}
	}

	var messages []model.Message

	for _, ref := range response.Messages {
		full, err := f.service.Users.Messages.Get(f.mailbox, ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			logrus.Warnf("Failed to get message %s: %v", ref.Id, err)
			continue
		}

		msg, err := f.parseMessage(full)
		if err != nil {
			logrus.Warnf("Failed to parse message %s: %v", ref.Id, err)
			continue
		}

		messages = append(messages, msg)
	}

	return messages, nil
}

// parseMessage normalizes a Gmail API message
func (f *GmailFetcher) parseMessage(raw *gmail.Message) (model.Message, error) {
	msg := model.Message{ID: raw.Id}

	for _, header := range raw.Payload.Headers {
		switch header.Name {
		case "Subject":
			msg.Subject = header.Value
		case "From":
			msg.Sender = header.Value
		}
	}

	if err := f.parseBody(raw.Payload, &msg); err != nil {
		return msg, err
	}

	return msg, nil
}

// parseBody recursively walks message parts, preferring text/plain
func (f *GmailFetcher) parseBody(part *gmail.MessagePart, msg *model.Message) error {
	if part.Body != nil && part.Body.Data != "" && part.MimeType == "text/plain" {
		data, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			return fmt.Errorf("failed to decode body data: %w", err)
		}
		if msg.Body == "" {
			msg.Body = string(data)
		}
	}

	for _, sub := range part.Parts {
		if err := f.parseBody(sub, msg); err != nil {
			return err
		}
	}

	return nil
}

// Close closes the Gmail fetcher
func (f *GmailFetcher) Close() error {
	// Gmail API service doesn't need explicit closing
	return nil
}
