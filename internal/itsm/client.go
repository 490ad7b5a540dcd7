// Package itsm files tickets in a ServiceNow-style table API.
package itsm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"inbox2itsm/internal/config"
	"inbox2itsm/internal/model"
)

// TicketCreationError wraps a non-2xx response from the table API.
// Non-fatal for the run; the one message is skipped and retried on
// the next scheduled invocation.
type TicketCreationError struct {
	Table      string
	StatusCode int
	Body       string
}

func (e *TicketCreationError) Error() string {
	return fmt.Sprintf("ticket creation in table %q failed with status %d: %s", e.Table, e.StatusCode, e.Body)
}

// Client is a table-API client for the ITSM backend.
type Client struct {
	baseURL       string
	user          string
	password      string
	incidentTable string
	changeTable   string
	client        *http.Client
}

// NewClient creates an ITSM client from configuration
func NewClient(cfg *config.ITSMConfig) *Client {
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		user:          cfg.User,
		password:      cfg.Password,
		incidentTable: cfg.IncidentTable,
		changeTable:   cfg.ChangeTable,
		client:        &http.Client{Timeout: 30 * time.Second},
	}
}

type createRequest struct {
	ShortDescription string `json:"short_description"`
	Description      string `json:"description"`
	ContactType      string `json:"contact_type"`
	CallerID         string `json:"caller_id,omitempty"`
}

type createResponse struct {
	Result struct {
		Number string `json:"number"`
		SysID  string `json:"sys_id"`
	} `json:"result"`
}

// Table returns the table name a given intent files into.
func (c *Client) Table(intent model.Intent) string {
	if intent == model.IntentChange {
		return c.changeTable
	}
	return c.incidentTable
}

// CreateTicket files one ticket for a message, choosing the table by
// intent. The subject becomes the short description and the body the
// long description.
func (c *Client) CreateTicket(ctx context.Context, msg model.Message, intent model.Intent) (model.Ticket, error) {
	table := c.Table(intent)

	payload, err := json.Marshal(createRequest{
		ShortDescription: msg.Subject,
		Description:      msg.Body,
		ContactType:      "email",
		CallerID:         msg.Sender,
	})
	if err != nil {
		return model.Ticket{}, fmt.Errorf("failed to encode ticket request: %w", err)
	}

	url := fmt.Sprintf("%s/api/now/table/%s", c.baseURL, table)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return model.Ticket{}, fmt.Errorf("failed to build ticket request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.user, c.password)

	resp, err := c.client.Do(req)
	if err != nil {
		return model.Ticket{}, fmt.Errorf("ticket request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.Ticket{}, &TicketCreationError{
			Table:      table,
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(body)),
		}
	}

	var decoded createResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return model.Ticket{}, fmt.Errorf("failed to decode ticket response: %w", err)
	}

	return model.Ticket{
		Number: decoded.Result.Number,
		SysID:  decoded.Result.SysID,
		Intent: intent,
	}, nil
}
