package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"quickask/internal/message"
)

// fakeView records what the agent asked it to display.
type fakeView struct {
	mu        sync.Mutex
	shown     bool
	busy      bool
	question  string
	answer    string
	focused   int
	toasts    map[string]string
	dismissed []string
	busyLog   []bool
	shows     int
	hides     int
}

func newFakeView() *fakeView {
	return &fakeView{toasts: map[string]string{}}
}

func (v *fakeView) Show()                   { v.mu.Lock(); v.shown = true; v.shows++; v.mu.Unlock() }
func (v *fakeView) Hide()                   { v.mu.Lock(); v.shown = false; v.hides++; v.mu.Unlock() }
func (v *fakeView) Focus()                  { v.mu.Lock(); v.focused++; v.mu.Unlock() }
func (v *fakeView) SetQuestion(text string) { v.mu.Lock(); v.question = text; v.mu.Unlock() }
func (v *fakeView) ShowAnswer(markup string) {
	v.mu.Lock()
	v.answer = markup
	v.mu.Unlock()
}
func (v *fakeView) HideAnswer() { v.mu.Lock(); v.answer = ""; v.mu.Unlock() }
func (v *fakeView) SetBusy(busy bool) {
	v.mu.Lock()
	v.busy = busy
	v.busyLog = append(v.busyLog, busy)
	v.mu.Unlock()
}
func (v *fakeView) ShowToast(id, text string) {
	v.mu.Lock()
	v.toasts[id] = text
	v.mu.Unlock()
}
func (v *fakeView) DismissToast(id string) {
	v.mu.Lock()
	delete(v.toasts, id)
	v.dismissed = append(v.dismissed, id)
	v.mu.Unlock()
}

func (v *fakeView) toastTexts() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []string
	for _, t := range v.toasts {
		out = append(out, t)
	}
	return out
}

type viewState struct {
	shown    bool
	busy     bool
	question string
	answer   string
	focused  int
}

func (v *fakeView) snapshot() viewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return viewState{shown: v.shown, busy: v.busy, question: v.question, answer: v.answer, focused: v.focused}
}

var testPage = Page{URL: "https://go.dev/doc/effective_go", Title: "Effective Go"}

func newTestAgent(c Caller, v View, opts Options) *PageAgent {
	if opts.ToastTTL == 0 {
		opts.ToastTTL = time.Hour
	}
	return New(c, v, testPage, opts)
}

func TestToggle(t *testing.T) {
	v := newFakeView()
	a := newTestAgent(new(MockCaller), v, Options{})
	require.False(t, a.Visible())

	v.SetQuestion("stale text")
	a.DetachPageContext()
	a.Toggle()

	assert.True(t, a.Visible())
	assert.True(t, a.PageContextAttached(), "showing resets the page context to attached")
	snap := v.snapshot()
	assert.True(t, snap.shown)
	assert.Empty(t, snap.question)
	assert.Equal(t, 1, snap.focused)

	a.Toggle()
	assert.False(t, a.Visible())
	assert.False(t, v.snapshot().shown)
}

func TestHandleInstruction(t *testing.T) {
	a := newTestAgent(new(MockCaller), newFakeView(), Options{})

	assert.Equal(t, message.PingReply{Pong: true}, a.HandleInstruction(message.Probe()))
	assert.False(t, a.Visible(), "probe must not toggle")

	assert.Nil(t, a.HandleInstruction(message.ShowInput()))
	assert.True(t, a.Visible())

	assert.Nil(t, a.HandleInstruction(message.Instruction{Action: "unknown"}))
	assert.True(t, a.Visible())
}

func TestSubmitSuccess(t *testing.T) {
	c := new(MockCaller)
	v := newFakeView()
	c.On("Ask", mock.Anything, message.NewQuestionRequest("What is Go?", testPage.URL, testPage.Title)).
		Return(message.Succeeded("Go is <fast>\nand simple"), nil).Once()
	a := newTestAgent(c, v, Options{})
	a.Toggle()

	err := a.Submit(context.Background(), "  What is Go?  ")

	require.NoError(t, err)
	assert.Equal(t, "Go is &lt;fast&gt;<br>and simple", v.snapshot().answer)
	assert.False(t, a.Pending())
	assert.False(t, v.snapshot().busy)
	assert.Equal(t, []bool{true, false}, v.busyLog)
	c.AssertExpectations(t)
}

func TestSubmitDetachedOmitsURL(t *testing.T) {
	c := new(MockCaller)
	c.On("Ask", mock.Anything, message.NewQuestionRequest("General?", "", "")).
		Return(message.Succeeded("ok"), nil).Once()
	a := newTestAgent(c, newFakeView(), Options{})
	a.Toggle()
	a.DetachPageContext()

	require.NoError(t, a.Submit(context.Background(), "General?"))

	c.AssertExpectations(t)
}

func TestSubmitEmptyQuestionIsLocal(t *testing.T) {
	c := new(MockCaller)
	v := newFakeView()
	a := newTestAgent(c, v, Options{})
	a.Toggle()

	err := a.Submit(context.Background(), "   \n\t")

	assert.ErrorIs(t, err, ErrEmptyQuestion)
	assert.Equal(t, []string{MsgEmptyQuestion}, v.toastTexts())
	c.AssertNotCalled(t, "Ask", mock.Anything, mock.Anything)
}

func TestSubmitTooLongIsLocal(t *testing.T) {
	c := new(MockCaller)
	a := newTestAgent(c, newFakeView(), Options{})
	a.Toggle()

	err := a.Submit(context.Background(), strings.Repeat("é", 501))

	assert.ErrorIs(t, err, ErrQuestionTooLong)
	c.AssertNotCalled(t, "Ask", mock.Anything, mock.Anything)
}

func TestSubmitIsSingleFlight(t *testing.T) {
	c := new(MockCaller)
	release := make(chan struct{})
	c.On("Ask", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(message.Succeeded("first"), nil).Once()
	v := newFakeView()
	a := newTestAgent(c, v, Options{})
	a.Toggle()

	done := make(chan error, 1)
	go func() { done <- a.Submit(context.Background(), "first") }()
	require.Eventually(t, a.Pending, time.Second, time.Millisecond)

	assert.NoError(t, a.Submit(context.Background(), "second"))
	assert.NoError(t, a.Submit(context.Background(), "third"))

	close(release)
	require.NoError(t, <-done)

	c.AssertNumberOfCalls(t, "Ask", 1)
	assert.Equal(t, "first", v.snapshot().answer)
	assert.False(t, a.Pending())
}

func TestSubmitFailures(t *testing.T) {
	tests := []struct {
		name      string
		resp      message.AnswerResponse
		err       error
		wantToast string
	}{
		{
			name:      "coordinator failure",
			resp:      message.Failed("Failed to get AI response. The AI service returned 500 Internal Server Error."),
			wantToast: "Failed to get AI response. The AI service returned 500 Internal Server Error.",
		},
		{
			name:      "failure without message",
			resp:      message.AnswerResponse{Success: false},
			wantToast: MsgNoResponse,
		},
		{
			name:      "transport error",
			err:       errors.New("connection refused"),
			wantToast: MsgSubmitFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := new(MockCaller)
			c.On("Ask", mock.Anything, mock.Anything).Return(tt.resp, tt.err).Once()
			v := newFakeView()
			a := newTestAgent(c, v, Options{})
			a.Toggle()

			require.NoError(t, a.Submit(context.Background(), "q"))

			assert.Equal(t, []string{tt.wantToast}, v.toastTexts())
			assert.True(t, a.Visible(), "failures do not change visibility")
			assert.False(t, a.Pending())
			assert.False(t, v.snapshot().busy)
			assert.Empty(t, v.snapshot().answer)
		})
	}
}

// silentCaller never answers and ignores cancellation, like a dropped channel.
type silentCaller struct{ block chan struct{} }

func (s silentCaller) Ask(context.Context, message.QuestionRequest) (message.AnswerResponse, error) {
	<-s.block
	return message.Succeeded("too late"), nil
}

func TestSubmitTimesOut(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	v := newFakeView()
	a := newTestAgent(silentCaller{block: block}, v, Options{Timeout: 30 * time.Millisecond})
	a.Toggle()

	start := time.Now()
	require.NoError(t, a.Submit(context.Background(), "q"))

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, []string{MsgTimeout}, v.toastTexts())
	assert.False(t, a.Pending())
	assert.False(t, v.snapshot().busy, "input must be interactive again")
}

func TestLateReplyAfterHideIsDropped(t *testing.T) {
	c := new(MockCaller)
	release := make(chan struct{})
	c.On("Ask", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(message.Succeeded("late answer"), nil).Once()
	v := newFakeView()
	a := newTestAgent(c, v, Options{})
	a.Toggle()

	done := make(chan error, 1)
	go func() { done <- a.Submit(context.Background(), "q") }()
	require.Eventually(t, a.Pending, time.Second, time.Millisecond)

	a.Hide()
	assert.False(t, v.snapshot().busy, "hiding clears the busy indicator")
	close(release)

	require.NoError(t, <-done)
	assert.Empty(t, v.snapshot().answer)
	assert.Empty(t, v.toastTexts())
	assert.False(t, a.Pending())
	assert.ErrorIs(t, a.FollowUp(), ErrNoAnswer)
}

func TestLateReplyAfterReopenIsDropped(t *testing.T) {
	c := new(MockCaller)
	release := make(chan struct{})
	c.On("Ask", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(message.Succeeded("stale"), nil).Once()
	v := newFakeView()
	a := newTestAgent(c, v, Options{})
	a.Toggle()

	done := make(chan error, 1)
	go func() { done <- a.Submit(context.Background(), "q") }()
	require.Eventually(t, a.Pending, time.Second, time.Millisecond)

	a.Toggle()
	a.Toggle()
	assert.True(t, v.snapshot().busy, "reopened input stays disabled while the old question is pending")

	assert.NoError(t, a.Submit(context.Background(), "second"))
	c.AssertNumberOfCalls(t, "Ask", 1)

	close(release)

	require.NoError(t, <-done)
	assert.True(t, a.Visible())
	assert.Empty(t, v.snapshot().answer)
	assert.False(t, v.snapshot().busy, "input is usable once the old reply arrives")
	assert.False(t, a.Pending())
}

func TestSubmitWhileHiddenSendsNothing(t *testing.T) {
	c := new(MockCaller)
	v := newFakeView()
	a := newTestAgent(c, v, Options{})

	assert.ErrorIs(t, a.Submit(context.Background(), "q"), ErrHidden)

	a.Toggle()
	a.Toggle()
	assert.ErrorIs(t, a.Submit(context.Background(), "q"), ErrHidden)

	assert.Empty(t, v.toastTexts())
	assert.False(t, a.Pending())
	c.AssertNotCalled(t, "Ask", mock.Anything, mock.Anything)
}

func TestConcurrentTogglesAlternate(t *testing.T) {
	v := newFakeView()
	a := newTestAgent(new(MockCaller), v, Options{})

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < 2*n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Toggle()
		}()
	}
	wg.Wait()

	assert.False(t, a.Visible())
	v.mu.Lock()
	defer v.mu.Unlock()
	assert.Equal(t, n, v.shows)
	assert.Equal(t, n, v.hides)
	assert.False(t, v.shown)
}

type panicCaller struct{}

func (panicCaller) Ask(context.Context, message.QuestionRequest) (message.AnswerResponse, error) {
	panic("bridge bug")
}

func TestSubmitSurvivesCallerPanic(t *testing.T) {
	v := newFakeView()
	a := newTestAgent(panicCaller{}, v, Options{})
	a.Toggle()

	require.NotPanics(t, func() {
		require.NoError(t, a.Submit(context.Background(), "q"))
	})
	assert.Equal(t, []string{MsgSubmitFailed}, v.toastTexts())
	assert.False(t, a.Pending())
}

func TestToastAutoDismisses(t *testing.T) {
	v := newFakeView()
	a := New(new(MockCaller), v, testPage, Options{ToastTTL: 20 * time.Millisecond})
	a.Toggle()

	_ = a.Submit(context.Background(), "")

	assert.Len(t, v.toastTexts(), 1)
	assert.Eventually(t, func() bool { return len(v.toastTexts()) == 0 }, time.Second, 5*time.Millisecond)
}

type fakeClipboard struct {
	text string
	err  error
}

func (f *fakeClipboard) WriteText(text string) error {
	if f.err != nil {
		return f.err
	}
	f.text = text
	return nil
}

func TestFollowUpAffordances(t *testing.T) {
	c := new(MockCaller)
	c.On("Ask", mock.Anything, mock.Anything).Return(message.Succeeded("a <b>\nc"), nil).Once()
	clip := &fakeClipboard{}
	v := newFakeView()
	a := newTestAgent(c, v, Options{Clipboard: clip})
	a.Toggle()

	assert.ErrorIs(t, a.CopyAnswer(), ErrNoAnswer)
	assert.ErrorIs(t, a.FollowUp(), ErrNoAnswer)

	require.NoError(t, a.Submit(context.Background(), "q"))

	require.NoError(t, a.CopyAnswer())
	assert.Equal(t, "a <b>\nc", clip.text, "clipboard gets the raw answer")

	require.NoError(t, a.FollowUp())
	assert.Equal(t, FollowUpPrefix, v.snapshot().question)

	a.CloseAnswer()
	assert.Empty(t, v.snapshot().answer)
	assert.True(t, a.Visible())
}

func TestCopyFailureShowsToast(t *testing.T) {
	c := new(MockCaller)
	c.On("Ask", mock.Anything, mock.Anything).Return(message.Succeeded("x"), nil).Once()
	v := newFakeView()
	a := newTestAgent(c, v, Options{Clipboard: &fakeClipboard{err: errors.New("denied")}})
	a.Toggle()
	require.NoError(t, a.Submit(context.Background(), "q"))

	assert.Error(t, a.CopyAnswer())
	assert.Equal(t, []string{MsgCopyFailed}, v.toastTexts())
}

func TestAskSuggestion(t *testing.T) {
	c := new(MockCaller)
	c.On("Ask", mock.Anything, mock.MatchedBy(func(r message.QuestionRequest) bool {
		return r.Question == DefaultSuggestions[1]
	})).Return(message.Succeeded("points"), nil).Once()
	v := newFakeView()
	a := newTestAgent(c, v, Options{})
	a.Toggle()

	require.NoError(t, a.AskSuggestion(context.Background(), 1))
	assert.Equal(t, DefaultSuggestions[1], v.snapshot().question)
	assert.Error(t, a.AskSuggestion(context.Background(), len(DefaultSuggestions)))
	c.AssertExpectations(t)
}
