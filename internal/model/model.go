package model

// Message is a normalized snapshot of one unread mailbox message.
// It is immutable once fetched; identity is the mailbox-assigned ID.
type Message struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Sender  string `json:"sender"`
}

// Intent is the classification outcome that decides which ITSM table
// a message becomes a ticket in.
type Intent int

const (
	IntentIncident Intent = iota
	IntentChange
)

// String returns the lowercase intent name.
func (i Intent) String() string {
	switch i {
	case IntentChange:
		return "change"
	default:
		return "incident"
	}
}

// Ticket is the record created in the ITSM backend. It is never
// mutated by this system after creation.
type Ticket struct {
	Number string `json:"number"`
	SysID  string `json:"sys_id"`
	Intent Intent `json:"intent"`
}
