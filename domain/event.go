package domain

// EventKind discriminates the closed set of inbound event variants. Payloads
// are decoded once at the transport boundary; unknown variants are rejected
// there instead of being duck-typed downstream.
type EventKind string

const (
	EventMessage    EventKind = "message"
	EventCardAction EventKind = "card_action"
	EventCISignal   EventKind = "ci_signal"
)

// ChatContext carries where a message came from. GroupID is empty for direct
// chats.
type ChatContext struct {
	ChatID  string
	GroupID string
}

// InGroup reports whether the event originated in a group chat.
func (c ChatContext) InGroup() bool {
	return c.GroupID != ""
}

// MessageEvent is an inbound text message from the chat transport.
type MessageEvent struct {
	EventID   string
	UserID    string
	Text      string
	Chat      ChatContext
	Mentioned bool
}

// CardActionEvent is a button press on an interactive card.
type CardActionEvent struct {
	EventID       string
	UserID        string
	Action        string
	TaskID        string
	CandidateID   string
	CandidateRank int
	Chat          ChatContext
}

// Card action names the dispatcher understands.
const (
	ActionAcceptTask      = "accept_task"
	ActionRejectTask      = "reject_task"
	ActionSubmitTask      = "submit_task"
	ActionSelectCandidate = "select_candidate"
)

// CISignal is the continuous-integration verdict delivered by the CI webhook.
type CISignal struct {
	EventID    string
	Repo       string
	CommitSHA  string
	CheckName  string
	Action     string
	Conclusion string
}

// Completed reports whether the signal carries a final conclusion.
func (s CISignal) Completed() bool {
	return s.Action == "completed"
}

// Passed maps the CI conclusion onto a pass/fail verdict.
func (s CISignal) Passed() bool {
	return s.Conclusion == "success"
}
