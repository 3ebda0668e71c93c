package supervisor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datalyze-ai/datalyze/core"
)

// stubPolicy replays canned routing decisions. Decisions carrying text append
// a supervisor message to the conversation, mirroring the model-backed policy.
type stubPolicy struct {
	steps []stubStep
	calls int
}

type stubStep struct {
	delegate string
	answer   string
	err      error
}

func (p *stubPolicy) Decide(runCtx *core.RunContext) (Decision, error) {
	step := stubStep{}
	if p.calls < len(p.steps) {
		step = p.steps[p.calls]
	}
	p.calls++

	if step.err != nil {
		return Decision{}, step.err
	}

	var events []core.Event
	if step.answer != "" {
		ev := core.NewMessageEvent(runCtx.RunID, "supervisor", step.answer)
		if err := runCtx.Append(ev); err != nil {
			return Decision{}, err
		}
		events = append(events, ev)
	}
	return Decision{Delegate: step.delegate, Events: events}, nil
}

// stubWorker emits one canned message per turn, or nothing when silent.
type stubWorker struct {
	name   string
	silent bool
	reply  string
	turns  int
}

func (w *stubWorker) Name() string { return w.name }

func (w *stubWorker) Respond(runCtx *core.RunContext) ([]core.Event, error) {
	w.turns++
	if w.silent {
		return nil, nil
	}
	ev := core.NewMessageEvent(runCtx.RunID, w.name, w.reply)
	if err := runCtx.Append(ev); err != nil {
		return nil, err
	}
	return []core.Event{ev}, nil
}

func TestNewValidation(t *testing.T) {
	policy := &stubPolicy{}
	analyst := &stubWorker{name: "analyst"}
	var confErr *core.ConfigurationError

	_, err := New("", policy, []WorkerAgent{analyst})
	require.Error(t, err)
	assert.ErrorAs(t, err, &confErr)

	_, err = New("supervisor", nil, []WorkerAgent{analyst})
	require.Error(t, err)
	assert.ErrorAs(t, err, &confErr)

	_, err = New("supervisor", policy, nil)
	require.Error(t, err)
	assert.ErrorAs(t, err, &confErr)

	_, err = New("supervisor", policy, []WorkerAgent{analyst, &stubWorker{name: "analyst"}})
	require.Error(t, err)
	assert.ErrorAs(t, err, &confErr)

	_, err = New("supervisor", policy, []WorkerAgent{&stubWorker{name: "supervisor"}})
	require.Error(t, err)
	assert.ErrorAs(t, err, &confErr)

	_, err = New("supervisor", policy, []WorkerAgent{analyst}, func(o *Options) { o.MaxIterations = 0 })
	require.Error(t, err)
	assert.ErrorAs(t, err, &confErr)
}

func TestRunDelegatesThenFinishes(t *testing.T) {
	analyst := &stubWorker{name: "analyst", reply: "the mean is 15"}
	policy := &stubPolicy{steps: []stubStep{
		{delegate: "analyst"},
		{answer: "The mean amount is 15."},
	}}

	sup, err := New("supervisor", policy, []WorkerAgent{analyst})
	require.NoError(t, err)

	answer, err := sup.Run(context.Background(), "sess-1", "what is the mean?")
	require.NoError(t, err)
	assert.Equal(t, "The mean amount is 15.", answer)
	assert.Equal(t, 1, analyst.turns)
	assert.Equal(t, 2, policy.calls)
}

func TestStreamEmitsOrderedSnapshots(t *testing.T) {
	analyst := &stubWorker{name: "analyst", reply: "computed"}
	policy := &stubPolicy{steps: []stubStep{
		{delegate: "analyst"},
		{answer: "done"},
	}}

	sup, err := New("supervisor", policy, []WorkerAgent{analyst})
	require.NoError(t, err)

	snapCh, errCh := sup.Stream(context.Background(), "sess-1", "question")

	var snapshots []Snapshot
	for snap := range snapCh {
		snapshots = append(snapshots, snap)
	}
	require.NoError(t, <-errCh)

	require.Len(t, snapshots, 2)

	first := snapshots[0]
	assert.Equal(t, 1, first.Iteration)
	assert.Equal(t, StateDelegated, first.State)
	require.Len(t, first.Updates, 2)
	assert.Equal(t, "supervisor", first.Updates[0].Node)
	assert.Equal(t, "analyst", first.Updates[1].Node)

	// The worker update ends with the handoff back to the supervisor.
	workerEvents := first.Updates[1].Events
	require.NotEmpty(t, workerEvents)
	record, ok := workerEvents[len(workerEvents)-1].HandoffRecord()
	require.True(t, ok)
	assert.Equal(t, core.Handoff{From: "analyst", To: "supervisor"}, record)

	last := snapshots[1]
	assert.Equal(t, 2, last.Iteration)
	assert.Equal(t, StateTerminal, last.State)
}

func TestRunRecordsHandoffsInSession(t *testing.T) {
	analyst := &stubWorker{name: "analyst", reply: "computed"}
	policy := &stubPolicy{steps: []stubStep{
		{delegate: "analyst"},
		{answer: "done"},
	}}
	store := newRecordingStore()

	sup, err := New("supervisor", policy, []WorkerAgent{analyst}, func(o *Options) {
		o.SessionStore = store
	})
	require.NoError(t, err)

	_, err = sup.Run(context.Background(), "sess-1", "question")
	require.NoError(t, err)

	var handoffs []core.Handoff
	for _, ev := range store.events["sess-1"] {
		if record, ok := ev.HandoffRecord(); ok {
			handoffs = append(handoffs, record)
		}
	}
	assert.Equal(t, []core.Handoff{
		{From: "supervisor", To: "analyst"},
		{From: "analyst", To: "supervisor"},
	}, handoffs)
}

func TestRunStopsOnIterationLimit(t *testing.T) {
	analyst := &stubWorker{name: "analyst", reply: "still working"}
	policy := &stubPolicy{steps: []stubStep{
		{delegate: "analyst"}, {delegate: "analyst"}, {delegate: "analyst"}, {delegate: "analyst"},
	}}

	sup, err := New("supervisor", policy, []WorkerAgent{analyst}, func(o *Options) {
		o.MaxIterations = 3
	})
	require.NoError(t, err)

	snapCh, errCh := sup.Stream(context.Background(), "sess-1", "question")
	var snapshots []Snapshot
	for snap := range snapCh {
		snapshots = append(snapshots, snap)
	}
	require.NoError(t, <-errCh)

	require.Len(t, snapshots, 4)
	assert.Equal(t, StateTerminal, snapshots[3].State)
	assert.Contains(t, ExtractAnswer(snapshots), "iteration limit (3)")
	assert.Equal(t, 3, analyst.turns)
}

func TestRunStopsOnRepeatedEmptyHandback(t *testing.T) {
	analyst := &stubWorker{name: "analyst", silent: true}
	policy := &stubPolicy{steps: []stubStep{
		{delegate: "analyst"}, {delegate: "analyst"}, {delegate: "analyst"},
	}}

	sup, err := New("supervisor", policy, []WorkerAgent{analyst})
	require.NoError(t, err)

	answer, err := sup.Run(context.Background(), "sess-1", "question")
	require.NoError(t, err)
	assert.Contains(t, answer, "no new output")
	assert.Equal(t, 1, analyst.turns)
}

func TestRunPropagatesPolicyError(t *testing.T) {
	wantErr := &core.ModelCallError{Agent: "supervisor", Attempts: 3}
	policy := &stubPolicy{steps: []stubStep{{err: wantErr}}}

	sup, err := New("supervisor", policy, []WorkerAgent{&stubWorker{name: "analyst"}})
	require.NoError(t, err)

	_, err = sup.Run(context.Background(), "sess-1", "question")
	require.Error(t, err)

	var mcErr *core.ModelCallError
	assert.ErrorAs(t, err, &mcErr)
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := &stubPolicy{steps: []stubStep{{delegate: "analyst"}}}
	sup, err := New("supervisor", policy, []WorkerAgent{&stubWorker{name: "analyst", reply: "x"}})
	require.NoError(t, err)

	_, err = sup.Run(ctx, "sess-1", "question")
	assert.ErrorIs(t, err, context.Canceled)
}

// recordingStore is an in-memory SessionStore keeping appended events visible
// for assertions.
type recordingStore struct {
	sessions map[string]*core.Session
	events   map[string][]core.Event
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		sessions: map[string]*core.Session{},
		events:   map[string][]core.Event{},
	}
}

func (s *recordingStore) Create(id string) (*core.Session, error) {
	sess := core.NewSession(id)
	s.sessions[id] = sess
	return sess, nil
}

func (s *recordingStore) Get(id string) (*core.Session, error) {
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	return s.Create(id)
}

func (s *recordingStore) AppendEvent(sessionID string, ev core.Event) error {
	s.events[sessionID] = append(s.events[sessionID], ev)
	return nil
}

func (s *recordingStore) ApplyDelta(sessionID string, delta map[string]any) error {
	if sess, ok := s.sessions[sessionID]; ok {
		sess.MergeState(delta)
	}
	return nil
}
