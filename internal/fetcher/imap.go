package fetcher

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	"github.com/sirupsen/logrus"

	"inbox2itsm/internal/config"
	"inbox2itsm/internal/model"
)

// IMAPFetcher implements Fetcher over IMAP. It searches UNSEEN and
// fetches bodies with BODY.PEEK so the \Seen flag is never set.
type IMAPFetcher struct {
	client *client.Client
}

// NewIMAPFetcher connects and logs in to the IMAP server
func NewIMAPFetcher(cfg *config.MailboxConfig) (*IMAPFetcher, error) {
	c, err := client.DialTLS(fmt.Sprintf("%s:%d", cfg.IMAPHost, cfg.IMAPPort), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(cfg.IMAPUser, cfg.IMAPPassword); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	return &IMAPFetcher{client: c}, nil
}

// FetchUnread fetches the currently-unread messages from INBOX
func (f *IMAPFetcher) FetchUnread(ctx context.Context) ([]model.Message, error) {
	if _, err := f.client.Select("INBOX", true); err != nil {
		return nil, &TransientFetchError{Err: fmt.Errorf("failed to select INBOX: %w", err)}
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	seqNums, err := f.client.Search(criteria)
	if err != nil {
		return nil, &TransientFetchError{Err: fmt.Errorf("failed to search messages: %w", err)}
	}

	if len(seqNums) == 0 {
		return []model.Message{}, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(seqNums...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	ch := make(chan *imap.Message, len(seqNums))
	done := make(chan error, 1)

	go func() {
		done <- f.client.Fetch(seqset, items, ch)
	}()

	var messages []model.Message

	for raw := range ch {
		msg, err := f.parseMessage(raw, section)
		if err != nil {
			logrus.Warnf("Failed to parse IMAP message: %v", err)
			continue
		}
		messages = append(messages, msg)
	}

	if err := <-done; err != nil {
		return nil, &TransientFetchError{Err: fmt.Errorf("failed to fetch messages: %w", err)}
	}

	return messages, nil
}

// parseMessage normalizes one IMAP message. The Message-ID header is
// the dedup identity; it is stable across runs where sequence numbers
// and UIDs are not.
func (f *IMAPFetcher) parseMessage(raw *imap.Message, section *imap.BodySectionName) (model.Message, error) {
	msg := model.Message{}

	if raw.Envelope != nil {
		msg.ID = raw.Envelope.MessageId
		msg.Subject = raw.Envelope.Subject
		if len(raw.Envelope.From) > 0 {
			msg.Sender = raw.Envelope.From[0].Address()
		}
	}

	if msg.ID == "" {
		return msg, fmt.Errorf("message has no Message-ID header")
	}

	body, err := f.readBody(raw, section)
	if err != nil {
		return msg, err
	}
	msg.Body = body

	return msg, nil
}

// readBody extracts the text/plain body of a fetched message
func (f *IMAPFetcher) readBody(raw *imap.Message, section *imap.BodySectionName) (string, error) {
	r := raw.GetBody(section)
	if r == nil {
		return "", fmt.Errorf("failed to get message body")
	}

	entity, err := message.Read(r)
	if err != nil {
		return "", fmt.Errorf("failed to read message: %w", err)
	}

	if mr := entity.MultipartReader(); mr != nil {
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return "", fmt.Errorf("failed to read part: %w", err)
			}

			if !strings.Contains(p.Header.Get("Content-Type"), "text/plain") {
				continue
			}

			content, err := io.ReadAll(p.Body)
			if err != nil {
				return "", fmt.Errorf("failed to read part body: %w", err)
			}
			return string(content), nil
		}
		return "", nil
	}

	content, err := io.ReadAll(entity.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read message body: %w", err)
	}
	return string(content), nil
}

// Close logs out of the IMAP session
func (f *IMAPFetcher) Close() error {
	return f.client.Logout()
}
