package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/comigor/evo-go/internal/history"
	"github.com/comigor/evo-go/internal/llm"
	"github.com/comigor/evo-go/internal/retry"
	"github.com/comigor/evo-go/internal/storage"
)

// mockGenerator replays scripted results, one per call.
type mockGenerator struct {
	mu      sync.Mutex
	results []result
	prompts []string
	block   chan struct{}
	entered chan struct{}
}

type result struct {
	text string
	err  error
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (llm.Response, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	if len(m.results) == 0 {
		m.mu.Unlock()
		panic("mockGenerator: no more results configured for prompt: " + prompt)
	}
	r := m.results[0]
	m.results = m.results[1:]
	block, entered := m.block, m.entered
	m.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	return llm.Response{Text: r.text}, r.err
}

func (m *mockGenerator) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// recordingKV logs every write so tests can assert on persistence order.
type recordingKV struct {
	storage.Memory
	mu   sync.Mutex
	ops  []string
	fail bool
}

func (r *recordingKV) Set(ctx context.Context, key, value string) error {
	r.mu.Lock()
	r.ops = append(r.ops, "set "+key)
	fail := r.fail
	r.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return r.Memory.Set(ctx, key, value)
}

func (r *recordingKV) Remove(ctx context.Context, key string) error {
	r.mu.Lock()
	r.ops = append(r.ops, "remove "+key)
	r.mu.Unlock()
	return r.Memory.Remove(ctx, key)
}

func (r *recordingKV) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

var errOverloaded = &openai.APIError{HTTPStatusCode: 503, Message: "The model is overloaded"}

type fixture struct {
	ctrl  *Controller
	gen   *mockGenerator
	kv    *recordingKV
	timer *instantTimer
}

func newFixture(t *testing.T, results ...result) *fixture {
	t.Helper()
	kv := &recordingKV{}
	return newFixtureWithKV(t, kv, results...)
}

func newFixtureWithKV(t *testing.T, kv *recordingKV, results ...result) *fixture {
	t.Helper()
	gen := &mockGenerator{results: results}
	timer := newInstantTimer()
	policy := retry.Default(llm.IsUnavailable)
	policy.Timer = timer
	ctrl := New(context.Background(), gen, history.NewStore(kv), Options{Policy: policy})
	return &fixture{ctrl: ctrl, gen: gen, kv: kv, timer: timer}
}

// instantTimer records retry waits and fires immediately.
type instantTimer struct {
	mu    sync.Mutex
	waits []time.Duration
	c     chan time.Time
}

func newInstantTimer() *instantTimer {
	return &instantTimer{c: make(chan time.Time, 1)}
}

func (i *instantTimer) Start(d time.Duration) {
	i.mu.Lock()
	i.waits = append(i.waits, d)
	i.mu.Unlock()
	i.c <- time.Now()
}

func (i *instantTimer) Stop() {}

func (i *instantTimer) C() <-chan time.Time { return i.c }

func (i *instantTimer) Waits() []time.Duration {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]time.Duration(nil), i.waits...)
}

func ok(text string) result { return result{text: text} }
func fail(err error) result  { return result{err: err} }

func TestSubmit_AppendsPairAndPersists(t *testing.T) {
	f := newFixture(t, ok("Hello"))

	reply, err := f.ctrl.Submit(context.Background(), "Hi")
	require.NoError(t, err)
	require.Equal(t, "Hello", reply)
	require.Equal(t, StateIdle, f.ctrl.State())

	turns := f.ctrl.Turns()
	require.Len(t, turns, 2)
	require.Equal(t, history.Turn{Role: history.RoleUser, Content: "Hi", CreatedAt: turns[0].CreatedAt}, turns[0])
	require.Equal(t, history.RoleAssistant, turns[1].Role)
	require.Equal(t, "Hello", turns[1].Content)

	require.Equal(t, []string{"set chatHistory"}, f.kv.Ops())
	require.NoError(t, f.ctrl.LastError())
}

func TestSubmit_EmptyInput(t *testing.T) {
	f := newFixture(t)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := f.ctrl.Submit(context.Background(), text)
		require.ErrorIs(t, err, ErrEmptyInput)
	}
	require.Zero(t, f.gen.calls())
	require.Empty(t, f.ctrl.Turns())
	require.Empty(t, f.kv.Ops())
	require.Equal(t, "Please enter a query.", f.ctrl.DisplayMessage(ErrEmptyInput))
}

func TestSubmit_RetriesUnavailableThenSucceeds(t *testing.T) {
	f := newFixture(t, fail(errOverloaded), fail(errOverloaded), ok("Finally"))

	reply, err := f.ctrl.Submit(context.Background(), "Hi")
	require.NoError(t, err)
	require.Equal(t, "Finally", reply)
	require.Equal(t, 3, f.gen.calls())
	require.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, f.timer.Waits())
	require.Len(t, f.ctrl.Turns(), 2)
}

func TestSubmit_UnavailableExhausted(t *testing.T) {
	f := newFixture(t, fail(errOverloaded), fail(errOverloaded), fail(errOverloaded))

	_, err := f.ctrl.Submit(context.Background(), "Hi")
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
	require.Equal(t, 3, f.gen.calls())
	require.Empty(t, f.ctrl.Turns())
	require.Empty(t, f.kv.Ops())
	require.Equal(t, StateIdle, f.ctrl.State())
	require.ErrorIs(t, f.ctrl.LastError(), ErrUpstreamUnavailable)
	require.Equal(t, "Evo is currently overloaded. Please try again later.", f.ctrl.DisplayMessage(f.ctrl.LastError()))
}

func TestSubmit_OtherErrorNotRetried(t *testing.T) {
	boom := &openai.APIError{HTTPStatusCode: 401, Message: "invalid api key"}
	f := newFixture(t, fail(boom))

	_, err := f.ctrl.Submit(context.Background(), "Hi")
	require.ErrorIs(t, err, ErrUpstreamError)
	require.ErrorAs(t, err, new(*openai.APIError))
	require.Equal(t, 1, f.gen.calls())
	require.Empty(t, f.timer.Waits())
	require.Empty(t, f.ctrl.Turns())
	require.Equal(t, "Error: "+boom.Error(), f.ctrl.DisplayMessage(err))
	require.Equal(t, "upstream error: "+boom.Error(), err.Error())
}

func TestNew_KeepsExplicitPolicyFields(t *testing.T) {
	timer := newInstantTimer()
	ctrl := New(context.Background(), &mockGenerator{}, history.NewStore(&recordingKV{}), Options{
		Policy: retry.Policy{AttemptTimeout: 5 * time.Second, Timer: timer},
	})

	require.Equal(t, retry.DefaultMaxAttempts, ctrl.policy.MaxAttempts)
	require.Equal(t, retry.DefaultBackoff, ctrl.policy.Backoff)
	require.Equal(t, 5*time.Second, ctrl.policy.AttemptTimeout)
	require.Same(t, timer, ctrl.policy.Timer)
	require.NotNil(t, ctrl.policy.Retryable)
}

func TestNew_ZeroAttemptsKeepsBackoff(t *testing.T) {
	ctrl := New(context.Background(), &mockGenerator{}, history.NewStore(&recordingKV{}), Options{
		Policy: retry.Policy{Backoff: 10 * time.Millisecond},
	})

	require.Equal(t, retry.DefaultMaxAttempts, ctrl.policy.MaxAttempts)
	require.Equal(t, 10*time.Millisecond, ctrl.policy.Backoff)
}

func TestSubmit_EmptyReplyUsesPlaceholder(t *testing.T) {
	f := newFixture(t, ok(""))

	reply, err := f.ctrl.Submit(context.Background(), "Hi")
	require.NoError(t, err)
	require.Equal(t, "No response received from Evo.", reply)
	require.Equal(t, 1, f.gen.calls())
	require.Equal(t, reply, f.ctrl.Turns()[1].Content)
}

func TestSubmit_FailureClearsOnNextSuccess(t *testing.T) {
	f := newFixture(t, fail(errors.New("boom")), ok("Hello"))

	_, err := f.ctrl.Submit(context.Background(), "Hi")
	require.Error(t, err)
	require.Error(t, f.ctrl.LastError())

	_, err = f.ctrl.Submit(context.Background(), "Hi")
	require.NoError(t, err)
	require.NoError(t, f.ctrl.LastError())
}

func TestSubmit_BusyWhilePending(t *testing.T) {
	f := newFixture(t, ok("Hello"))
	f.gen.block = make(chan struct{})
	f.gen.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := f.ctrl.Submit(context.Background(), "Hi")
		done <- err
	}()
	<-f.gen.entered
	require.Equal(t, StatePending, f.ctrl.State())

	_, err := f.ctrl.Submit(context.Background(), "Again")
	require.ErrorIs(t, err, ErrBusy)
	_, err = f.ctrl.Regenerate(context.Background())
	require.ErrorIs(t, err, ErrBusy)
	require.ErrorIs(t, f.ctrl.NewChat(context.Background()), ErrBusy)
	require.ErrorIs(t, f.ctrl.DeleteHistory(context.Background()), ErrBusy)
	_, err = f.ctrl.Load(context.Background(), 0)
	require.ErrorIs(t, err, ErrBusy)

	close(f.gen.block)
	require.NoError(t, <-done)
	require.Equal(t, StateIdle, f.ctrl.State())
	require.Equal(t, 1, f.gen.calls())
	require.Len(t, f.ctrl.Turns(), 2)
}

func TestSubmit_StorageFailureKeepsInMemoryState(t *testing.T) {
	kv := &recordingKV{fail: true}
	f := newFixtureWithKV(t, kv, ok("Hello"))

	reply, err := f.ctrl.Submit(context.Background(), "Hi")
	require.NoError(t, err)
	require.Equal(t, "Hello", reply)
	require.Len(t, f.ctrl.Turns(), 2)
	require.Equal(t, []string{"set chatHistory"}, kv.Ops())
}

func TestRegenerate_AppendsNewPair(t *testing.T) {
	f := newFixture(t, ok("Hello"), ok("Hello again"))
	_, err := f.ctrl.Submit(context.Background(), "Hi")
	require.NoError(t, err)

	reply, err := f.ctrl.Regenerate(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Hello again", reply)
	require.Equal(t, []string{"Hi", "Hi"}, f.gen.prompts)

	turns := f.ctrl.Turns()
	require.Len(t, turns, 4)
	require.Equal(t, "Hello", turns[1].Content)
	require.Equal(t, "Hi", turns[2].Content)
	require.Equal(t, "Hello again", turns[3].Content)
}

func TestRegenerate_NoPriorUserTurn(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctrl.Regenerate(context.Background())
	require.ErrorIs(t, err, ErrNoPriorUserTurn)

	// second-to-last turn is not a user turn
	ctx := context.Background()
	kv := &recordingKV{}
	require.NoError(t, kv.Memory.Set(ctx, history.KeyConversation,
		`[{"role":"user","content":"a"},{"role":"assistant","content":"b"},{"role":"assistant","content":"c"}]`))
	f = newFixtureWithKV(t, kv)
	_, err = f.ctrl.Regenerate(ctx)
	require.ErrorIs(t, err, ErrNoPriorUserTurn)
	require.Zero(t, f.gen.calls())
}

func TestEditUserTurn(t *testing.T) {
	f := newFixture(t, ok("Hello"), ok("Fine"), ok("Sure"))
	ctx := context.Background()
	_, _ = f.ctrl.Submit(ctx, "Hi")
	_, _ = f.ctrl.Submit(ctx, "How are you?")

	_, err := f.ctrl.EditUserTurn(ctx, 1)
	require.ErrorIs(t, err, history.ErrInvalidTarget)
	_, err = f.ctrl.EditUserTurn(ctx, 9)
	require.ErrorIs(t, err, history.ErrIndexOutOfRange)
	require.Len(t, f.ctrl.Turns(), 4)

	content, err := f.ctrl.EditUserTurn(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, "How are you?", content)
	require.Len(t, f.ctrl.Turns(), 2)

	_, err = f.ctrl.Submit(ctx, "How are you, really?")
	require.NoError(t, err)
	require.Len(t, f.ctrl.Turns(), 4)
}

func TestRate(t *testing.T) {
	f := newFixture(t, ok("Hello"))
	ctx := context.Background()
	_, _ = f.ctrl.Submit(ctx, "Hi")

	require.ErrorIs(t, f.ctrl.Rate(ctx, 0, history.RatingUp), history.ErrInvalidTarget)
	require.NoError(t, f.ctrl.Rate(ctx, 1, history.RatingUp))
	require.NoError(t, f.ctrl.Rate(ctx, 1, history.RatingUp))
	require.Equal(t, history.RatingUp, f.ctrl.Turns()[1].Rating)
	require.Equal(t, []string{"set chatHistory", "set chatHistory", "set chatHistory"}, f.kv.Ops())
}

func TestSaveLoad(t *testing.T) {
	f := newFixture(t, ok("Hello"), ok("Other"))
	ctx := context.Background()
	_, _ = f.ctrl.Submit(ctx, "Hi")
	atSave := f.ctrl.Turns()

	ss, err := f.ctrl.Save(ctx, "")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(ss.Name, "Chat_"))

	require.NoError(t, f.ctrl.NewChat(ctx))
	_, _ = f.ctrl.Submit(ctx, "Different")

	_, err = f.ctrl.Load(ctx, 3)
	require.ErrorIs(t, err, history.ErrIndexOutOfRange)

	loaded, err := f.ctrl.Load(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, atSave, loaded)
	require.Equal(t, atSave, f.ctrl.Turns())
	require.Equal(t, 0, f.ctrl.Selected())

	require.Contains(t, f.kv.Ops(), "set savedChats")
}

func TestNewChatAndDeleteHistory(t *testing.T) {
	f := newFixture(t, ok("Hello"), ok("Hello"))
	ctx := context.Background()

	_, _ = f.ctrl.Submit(ctx, "Hi")
	require.NoError(t, f.ctrl.NewChat(ctx))
	require.Empty(t, f.ctrl.Turns())
	raw, found, _ := f.kv.Get(ctx, history.KeyConversation)
	require.True(t, found)
	require.Equal(t, "[]", raw)

	_, _ = f.ctrl.Submit(ctx, "Hi")
	require.NoError(t, f.ctrl.DeleteHistory(ctx))
	require.Empty(t, f.ctrl.Turns())
	_, found, _ = f.kv.Get(ctx, history.KeyConversation)
	require.False(t, found)

	ops := f.kv.Ops()
	require.Equal(t, "remove chatHistory", ops[len(ops)-1])
}

func TestNew_RestoresPersistedConversation(t *testing.T) {
	ctx := context.Background()
	kv := &recordingKV{}
	first := newFixtureWithKV(t, kv, ok("Hello"))
	_, err := first.ctrl.Submit(ctx, "Hi")
	require.NoError(t, err)

	second := newFixtureWithKV(t, kv)
	require.Equal(t, first.ctrl.Turns()[0].Content, second.ctrl.Turns()[0].Content)
	require.Len(t, second.ctrl.Turns(), 2)
}

func TestSubscribe_ReceivesEvents(t *testing.T) {
	f := newFixture(t, ok("Hello"))

	var mu sync.Mutex
	var events []Event
	unsubscribe := f.ctrl.Subscribe(func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	_, err := f.ctrl.Submit(context.Background(), "Hi")
	require.NoError(t, err)

	mu.Lock()
	got := append([]Event(nil), events...)
	mu.Unlock()
	require.Equal(t, []Event{
		{Type: EventState, State: StatePending, Turns: 0},
		{Type: EventState, State: StateIdle, Turns: 2},
		{Type: EventConversation, State: StateIdle, Turns: 2},
	}, got)

	unsubscribe()
	require.NoError(t, f.ctrl.NewChat(context.Background()))
	mu.Lock()
	require.Len(t, events, 3)
	mu.Unlock()
}

type fakeClipboard struct{ text string }

func (c *fakeClipboard) WriteAll(text string) error { c.text = text; return nil }

func TestCopy(t *testing.T) {
	f := newFixture(t, ok("Hello"))
	_, _ = f.ctrl.Submit(context.Background(), "Hi")

	_, err := f.ctrl.Copy(1)
	require.ErrorIs(t, err, ErrNoClipboard)

	cb := &fakeClipboard{}
	f.ctrl.clipboard = cb
	text, err := f.ctrl.Copy(1)
	require.NoError(t, err)
	require.Equal(t, "Hello", text)
	require.Equal(t, "Hello", cb.text)

	_, err = f.ctrl.Copy(7)
	require.ErrorIs(t, err, history.ErrIndexOutOfRange)
}

func TestShare(t *testing.T) {
	f := newFixture(t, ok("Hello"))
	_, _ = f.ctrl.Submit(context.Background(), "Hi")

	text, err := f.ctrl.Share(FormatText)
	require.NoError(t, err)
	require.Equal(t, "user: Hi\nassistant: Hello", text)

	js, err := f.ctrl.Share(FormatJSON)
	require.NoError(t, err)
	require.Contains(t, js, `"content": "Hello"`)

	y, err := f.ctrl.Share(FormatYAML)
	require.NoError(t, err)
	require.Contains(t, y, "content: Hello")

	_, err = f.ctrl.Share("pdf")
	require.Error(t, err)
}
