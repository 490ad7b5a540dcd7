package classifier

import (
	"context"
	"strings"

	"inbox2itsm/internal/model"
)

// changeToken is the literal prefix convention senders use to request
// a change without going through the classification API. Matching is
// case-sensitive.
const changeToken = "Change:"

// Source records how an intent was decided.
type Source int

const (
	SourceKeyword Source = iota
	SourceAPI
)

func (s Source) String() string {
	if s == SourceKeyword {
		return "keyword"
	}
	return "api"
}

// Result is the tagged outcome of one classification. When Err is
// non-nil the intent is undecided and the caller applies the fallback
// policy (safe default: incident).
type Result struct {
	Intent model.Intent
	Source Source
	Err    error
}

// API is the external text-classification service.
type API interface {
	Classify(ctx context.Context, text string) (string, error)
}

// Classifier maps a message's subject and body to a ticket intent.
type Classifier struct {
	api API
}

// New creates a classifier backed by the given API
func New(api API) *Classifier {
	return &Classifier{api: api}
}

// Classify decides the intent of a message. The keyword shortcut is
// checked first so unambiguous change requests never spend API quota.
func (c *Classifier) Classify(ctx context.Context, subject, body string) Result {
	if strings.Contains(subject, changeToken) || strings.Contains(body, changeToken) {
		return Result{Intent: model.IntentChange, Source: SourceKeyword}
	}

	label, err := c.api.Classify(ctx, subject+"\n"+body)
	if err != nil {
		return Result{Source: SourceAPI, Err: err}
	}

	return Result{Intent: mapLabel(label), Source: SourceAPI}
}

// mapLabel maps an API label to an intent. Any change-flavored label
// means change; everything else is an incident.
func mapLabel(label string) model.Intent {
	if strings.Contains(strings.ToLower(label), "change") {
		return model.IntentChange
	}
	return model.IntentIncident
}
