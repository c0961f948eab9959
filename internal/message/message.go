package message

// Action names carried in the "action" field of instructions and requests.
const (
	ActionShowInput   = "showInput"
	ActionAskQuestion = "askQuestion"
)

// CommandOpen is the keyboard command that summons the input bar.
const CommandOpen = "open-quickask"

// Instruction is sent by the coordinator to a page agent. A liveness probe
// sets Ping and leaves Action empty.
type Instruction struct {
	Action string `json:"action,omitempty"`
	Ping   bool   `json:"ping,omitempty"`
}

// ShowInput returns the toggle instruction.
func ShowInput() Instruction { return Instruction{Action: ActionShowInput} }

// Probe returns the liveness probe.
func Probe() Instruction { return Instruction{Ping: true} }

// PingReply is the page agent's answer to a probe.
type PingReply struct {
	Pong bool `json:"pong"`
}

// QuestionRequest is the one-shot call a page agent makes per submission.
type QuestionRequest struct {
	Action   string `json:"action" validate:"omitempty,eq=askQuestion"`
	Question string `json:"question"`
	URL      string `json:"url,omitempty"`
	Title    string `json:"title,omitempty"`
}

// NewQuestionRequest builds a request; url and title may be empty.
func NewQuestionRequest(question, url, title string) QuestionRequest {
	return QuestionRequest{
		Action:   ActionAskQuestion,
		Question: question,
		URL:      url,
		Title:    title,
	}
}

// AnswerResponse is the single reply to a QuestionRequest. Exactly one of
// Answer (on success) or Error (on failure) is meaningful.
type AnswerResponse struct {
	Success bool   `json:"success"`
	Answer  string `json:"answer,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Succeeded wraps an answer.
func Succeeded(answer string) AnswerResponse {
	return AnswerResponse{Success: true, Answer: answer}
}

// Failed wraps a human-readable failure message.
func Failed(msg string) AnswerResponse {
	return AnswerResponse{Success: false, Error: msg}
}

// Tab identifies a browser tab.
type Tab struct {
	ID    int    `json:"id"`
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
}

// Activation event sources.
const (
	SourceCommand = "command"
	SourceIcon    = "icon"
)

// ActivationEvent is a shortcut press or toolbar icon click.
type ActivationEvent struct {
	Source  string `json:"source" validate:"required,oneof=command icon"`
	Command string `json:"command,omitempty"`
	Tab     *Tab   `json:"tab,omitempty"`
}

// Activates reports whether the event should summon the input bar.
func (e ActivationEvent) Activates() bool {
	switch e.Source {
	case SourceIcon:
		return true
	case SourceCommand:
		return e.Command == "" || e.Command == CommandOpen
	default:
		return false
	}
}
