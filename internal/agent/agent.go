// Package agent is the per-page side of QuickAsk: it owns the input bar's
// visibility, sends at most one question at a time to the coordinator and
// renders the outcome through a View.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"quickask/internal/logger"
	"quickask/internal/message"
)

const (
	DefaultTimeout           = 30 * time.Second
	DefaultToastTTL          = 5 * time.Second
	DefaultMaxQuestionLength = 500

	FollowUpPrefix = "Follow up: "
)

// DefaultSuggestions are offered while the input is empty.
var DefaultSuggestions = []string{
	"What is this page about?",
	"Summarize the main points",
	"What are the key takeaways?",
}

var (
	ErrEmptyQuestion   = errors.New("agent: question is empty")
	ErrQuestionTooLong = errors.New("agent: question is too long")
	ErrNoAnswer        = errors.New("agent: no answer to act on")
	ErrNoClipboard     = errors.New("agent: clipboard unavailable")
	ErrHidden          = errors.New("agent: input is hidden")
)

// User-facing notification texts.
const (
	MsgEmptyQuestion = "Please enter a question"
	MsgTimeout       = "Request timed out. Please try again."
	MsgSubmitFailed  = "Failed to submit question. Please try again."
	MsgNoResponse    = "Failed to get response"
	MsgCopyFailed    = "Failed to copy to clipboard"
)

// Caller performs the single request/response exchange with the coordinator.
type Caller interface {
	Ask(ctx context.Context, req message.QuestionRequest) (message.AnswerResponse, error)
}

// View is the presentation collaborator. Its methods may be called from the
// goroutine running Submit as well as from the one driving the UI, sometimes
// while the agent holds its lock, so they must not call back into the agent.
type View interface {
	Show()
	Hide()
	Focus()
	SetQuestion(text string)
	SetBusy(busy bool)
	ShowAnswer(markup string)
	HideAnswer()
	ShowToast(id, text string)
	DismissToast(id string)
}

// Clipboard receives copied answers.
type Clipboard interface {
	WriteText(text string) error
}

// Page is the context reference of the page hosting the agent.
type Page struct {
	URL   string
	Title string
}

// Options tunes a PageAgent. Zero values fall back to defaults.
type Options struct {
	Timeout           time.Duration
	ToastTTL          time.Duration
	MaxQuestionLength int
	Clipboard         Clipboard
	Log               *slog.Logger
}

// PageAgent is safe for concurrent use.
type PageAgent struct {
	caller    Caller
	view      View
	page      Page
	clipboard Clipboard
	log       *slog.Logger
	timeout   time.Duration
	toastTTL  time.Duration
	maxLength int

	mu       sync.Mutex
	visible  bool
	pending  bool
	attach   bool
	session  uint64
	answer   string
	answered bool
}

// New builds a hidden agent for page.
func New(caller Caller, view View, page Page, opts Options) *PageAgent {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ToastTTL <= 0 {
		opts.ToastTTL = DefaultToastTTL
	}
	if opts.MaxQuestionLength <= 0 {
		opts.MaxQuestionLength = DefaultMaxQuestionLength
	}
	if opts.Log == nil {
		opts.Log = logger.Discard()
	}
	return &PageAgent{
		caller:    caller,
		view:      view,
		page:      page,
		clipboard: opts.Clipboard,
		log:       opts.Log,
		timeout:   opts.Timeout,
		toastTTL:  opts.ToastTTL,
		maxLength: opts.MaxQuestionLength,
		attach:    true,
	}
}

// Visible reports whether the input bar is shown.
func (a *PageAgent) Visible() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.visible
}

// Pending reports whether a question is in flight.
func (a *PageAgent) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending
}

// PageContextAttached reports whether the next question carries the page URL.
func (a *PageAgent) PageContextAttached() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attach
}

// HandleInstruction reacts to a coordinator message and returns the reply to
// send back, if any.
func (a *PageAgent) HandleInstruction(in message.Instruction) any {
	switch {
	case in.Ping:
		return message.PingReply{Pong: true}
	case in.Action == message.ActionShowInput:
		a.Toggle()
	}
	return nil
}

// Toggle flips between Hidden and Visible.
func (a *PageAgent) Toggle() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.visible {
		a.hideLocked()
		return
	}
	a.showLocked()
}

// showLocked keeps the input disabled while an earlier question is still in
// flight.
func (a *PageAgent) showLocked() {
	a.visible = true
	a.attach = true
	a.answered = false
	a.answer = ""
	a.session++

	a.view.SetQuestion("")
	a.view.HideAnswer()
	if a.pending {
		a.view.SetBusy(true)
	}
	a.view.Show()
	a.view.Focus()
}

// Hide handles close, Escape and outside clicks. An in-flight question is
// not cancelled; its reply is dropped when it arrives.
func (a *PageAgent) Hide() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hideLocked()
}

func (a *PageAgent) hideLocked() {
	a.visible = false
	a.session++

	a.view.HideAnswer()
	a.view.SetQuestion("")
	a.view.SetBusy(false)
	a.view.Hide()
}

// DetachPageContext drops the page URL from questions until the next show.
func (a *PageAgent) DetachPageContext() {
	a.mu.Lock()
	a.attach = false
	a.mu.Unlock()
}

// Submit sends question to the coordinator and renders the outcome. It is a
// no-op while another question is pending, and returns an error only for
// local validation failures or a hidden input.
func (a *PageAgent) Submit(ctx context.Context, question string) error {
	if !a.Visible() {
		return ErrHidden
	}
	q := strings.TrimSpace(question)
	if q == "" {
		a.toast(MsgEmptyQuestion)
		return ErrEmptyQuestion
	}
	if utf8.RuneCountInString(q) > a.maxLength {
		a.toast(fmt.Sprintf("Question is too long (max %d characters)", a.maxLength))
		return ErrQuestionTooLong
	}

	a.mu.Lock()
	if !a.visible {
		a.mu.Unlock()
		return ErrHidden
	}
	if a.pending {
		a.mu.Unlock()
		a.log.Debug("submit ignored while pending")
		return nil
	}
	a.pending = true
	session := a.session
	var req message.QuestionRequest
	if a.attach {
		req = message.NewQuestionRequest(q, a.page.URL, a.page.Title)
	} else {
		req = message.NewQuestionRequest(q, "", "")
	}
	a.view.SetBusy(true)
	a.mu.Unlock()

	resp, err := a.call(ctx, req)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = false
	a.view.SetBusy(false)
	if !a.visible || a.session != session {
		a.log.Debug("dropping reply for a closed input", "err", err)
		return nil
	}
	if err == nil && resp.Success {
		a.answer = resp.Answer
		a.answered = true
	}
	a.render(resp, err)
	return nil
}

// call bounds the exchange with the client timeout even when the caller
// ignores ctx.
func (a *PageAgent) call(ctx context.Context, req message.QuestionRequest) (message.AnswerResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	type result struct {
		resp message.AnswerResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- result{err: fmt.Errorf("agent: caller panicked: %v", rec)}
			}
		}()
		resp, err := a.caller.Ask(ctx, req)
		done <- result{resp: resp, err: err}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-ctx.Done():
		return message.AnswerResponse{}, ctx.Err()
	}
}

func (a *PageAgent) render(resp message.AnswerResponse, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		a.log.Warn("question timed out", "timeout", a.timeout)
		a.toast(MsgTimeout)
	case errors.Is(err, context.Canceled):
		a.log.Debug("question cancelled")
	case err != nil:
		a.log.Warn("question submission failed", "err", err)
		a.toast(MsgSubmitFailed)
	case !resp.Success:
		msg := resp.Error
		if msg == "" {
			msg = MsgNoResponse
		}
		a.toast(msg)
	default:
		a.view.ShowAnswer(RenderAnswer(resp.Answer))
	}
}

// AskSuggestion submits one of DefaultSuggestions.
func (a *PageAgent) AskSuggestion(ctx context.Context, i int) error {
	if i < 0 || i >= len(DefaultSuggestions) {
		return fmt.Errorf("agent: no suggestion %d", i)
	}
	s := DefaultSuggestions[i]
	a.view.SetQuestion(s)
	return a.Submit(ctx, s)
}

// CopyAnswer writes the last answer, unescaped, to the clipboard.
func (a *PageAgent) CopyAnswer() error {
	a.mu.Lock()
	answer, ok := a.answer, a.answered
	a.mu.Unlock()
	if !ok {
		return ErrNoAnswer
	}
	if a.clipboard == nil {
		a.toast(MsgCopyFailed)
		return ErrNoClipboard
	}
	if err := a.clipboard.WriteText(answer); err != nil {
		a.toast(MsgCopyFailed)
		return fmt.Errorf("agent: copy answer: %w", err)
	}
	return nil
}

// FollowUp prefills the input for a follow-up question.
func (a *PageAgent) FollowUp() error {
	a.mu.Lock()
	ok := a.answered
	a.mu.Unlock()
	if !ok {
		return ErrNoAnswer
	}
	a.view.SetQuestion(FollowUpPrefix)
	a.view.Focus()
	return nil
}

// CloseAnswer hides the answer bubble and keeps the input open.
func (a *PageAgent) CloseAnswer() {
	a.view.HideAnswer()
}

func (a *PageAgent) toast(text string) {
	id := uuid.NewString()
	a.view.ShowToast(id, text)
	time.AfterFunc(a.toastTTL, func() {
		a.view.DismissToast(id)
	})
}
