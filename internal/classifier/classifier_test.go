package classifier

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"inbox2itsm/internal/model"
)

type countingAPI struct {
	label string
	err   error
	calls int
}

func (a *countingAPI) Classify(ctx context.Context, text string) (string, error) {
	a.calls++
	return a.label, a.err
}

func TestKeywordShortcut(t *testing.T) {
	api := &countingAPI{label: "incident"}
	c := New(api)

	result := c.Classify(context.Background(), "Software Install", "Change: Install new software on server.")

	assert.NoError(t, result.Err)
	assert.Equal(t, model.IntentChange, result.Intent)
	assert.Equal(t, SourceKeyword, result.Source)
	assert.Equal(t, 0, api.calls, "keyword matches must not call the API")
}

func TestKeywordShortcutInSubject(t *testing.T) {
	api := &countingAPI{label: "incident"}
	c := New(api)

	result := c.Classify(context.Background(), "Change: add DNS record", "please")

	assert.Equal(t, model.IntentChange, result.Intent)
	assert.Equal(t, 0, api.calls)
}

func TestKeywordIsCaseSensitive(t *testing.T) {
	api := &countingAPI{label: "incident"}
	c := New(api)

	result := c.Classify(context.Background(), "software", "change: not the literal token")

	assert.Equal(t, model.IntentIncident, result.Intent)
	assert.Equal(t, SourceAPI, result.Source)
	assert.Equal(t, 1, api.calls)
}

func TestAPILabelMapping(t *testing.T) {
	tests := []struct {
		label string
		want  model.Intent
	}{
		{"incident", model.IntentIncident},
		{"problem report", model.IntentIncident},
		{"change", model.IntentChange},
		{"Change Request", model.IntentChange},
		{"CHANGE_REQUEST", model.IntentChange},
		{"", model.IntentIncident},
	}

	for _, tt := range tests {
		api := &countingAPI{label: tt.label}
		result := New(api).Classify(context.Background(), "Laptop Crashed", "My laptop isn't working!")
		assert.NoError(t, result.Err)
		assert.Equal(t, tt.want, result.Intent, "label %q", tt.label)
	}
}

func TestQuotaErrorSurfacesInResult(t *testing.T) {
	api := &countingAPI{err: ErrQuotaExceeded}
	c := New(api)

	result := c.Classify(context.Background(), "Please review", "nothing obvious")

	assert.ErrorIs(t, result.Err, ErrQuotaExceeded)
	assert.Equal(t, SourceAPI, result.Source)
}

func TestAPIErrorSurfacesInResult(t *testing.T) {
	api := &countingAPI{err: fmt.Errorf("connection refused")}
	c := New(api)

	result := c.Classify(context.Background(), "Please review", "nothing obvious")

	assert.Error(t, result.Err)
	assert.NotErrorIs(t, result.Err, ErrQuotaExceeded)
}
