package supervisor

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datalyze-ai/datalyze/agent"
	"github.com/datalyze-ai/datalyze/core"
	"github.com/datalyze-ai/datalyze/model"
)

// scriptedModel replays a fixed sequence of generation outcomes, one entry per
// Generate call.
type scriptedModel struct {
	mu     sync.Mutex
	script [][]model.Response
}

func (m *scriptedModel) enqueue(responses ...model.Response) {
	m.script = append(m.script, responses)
}

func (m *scriptedModel) Generate(_ context.Context, _ model.Request) (<-chan model.Response, <-chan error) {
	m.mu.Lock()
	turn := []model.Response{textResponse("done")}
	if len(m.script) > 0 {
		turn = m.script[0]
		m.script = m.script[1:]
	}
	m.mu.Unlock()

	respCh := make(chan model.Response, len(turn))
	errCh := make(chan error, 1)
	go func() {
		defer close(respCh)
		defer close(errCh)
		for _, r := range turn {
			respCh <- r
		}
	}()
	return respCh, errCh
}

func (m *scriptedModel) Info() model.Info {
	return model.Info{Name: "scripted", Provider: "test", SupportsTools: true}
}

func textResponse(text string) model.Response {
	return model.Response{
		Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: text}}},
		FinishReason: "stop",
	}
}

func transferResponse(target string) model.Response {
	return model.Response{
		Content: core.Content{Role: "assistant", Parts: []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID:        "fc-transfer",
				Name:      "transfer_to_agent",
				Arguments: `{"agent":"` + target + `"}`,
			}},
		}},
		FinishReason: "tool_calls",
	}
}

func TestModelPolicyRouting(t *testing.T) {
	analystLLM := &scriptedModel{}
	analystLLM.enqueue(textResponse("the mean is 15"))
	analyst, err := agent.NewWorker("analyst", analystLLM, func(o *agent.Options) {
		o.Description = "Computes statistics over the loaded dataset."
	})
	require.NoError(t, err)

	supLLM := &scriptedModel{}
	supLLM.enqueue(transferResponse("analyst"))
	supLLM.enqueue(textResponse("The mean amount is 15."))

	policy, err := NewModelPolicy("supervisor", supLLM,
		agent.NewInstructionFromText("Route between your agents, answer when done."),
		[]string{"analyst"})
	require.NoError(t, err)

	sup, err := New("supervisor", policy, []WorkerAgent{analyst})
	require.NoError(t, err)

	answer, err := sup.Run(context.Background(), "sess-1", "what is the mean amount?")
	require.NoError(t, err)
	assert.Equal(t, "The mean amount is 15.", answer)
}

func TestModelPolicySnapshotsCarryToolEvents(t *testing.T) {
	analystLLM := &scriptedModel{}
	analystLLM.enqueue(textResponse("computed"))
	analyst, err := agent.NewWorker("analyst", analystLLM)
	require.NoError(t, err)

	supLLM := &scriptedModel{}
	supLLM.enqueue(transferResponse("analyst"))
	supLLM.enqueue(textResponse("all done"))

	policy, err := NewModelPolicy("supervisor", supLLM,
		agent.NewInstructionFromText("Route."), []string{"analyst"})
	require.NoError(t, err)

	sup, err := New("supervisor", policy, []WorkerAgent{analyst})
	require.NoError(t, err)

	snapCh, errCh := sup.Stream(context.Background(), "sess-1", "question")
	var snapshots []Snapshot
	for snap := range snapCh {
		snapshots = append(snapshots, snap)
	}
	require.NoError(t, <-errCh)
	require.Len(t, snapshots, 2)

	// The supervisor's delegation turn shows up as a transfer call plus its
	// function response, then the handoff marker.
	supEvents := snapshots[0].Updates[0].Events
	require.Len(t, supEvents, 3)
	require.Len(t, supEvents[0].GetFunctionCalls(), 1)
	assert.Equal(t, "transfer_to_agent", supEvents[0].GetFunctionCalls()[0].Name)
	require.Len(t, supEvents[1].GetFunctionResponses(), 1)
	assert.True(t, supEvents[2].IsHandoff())

	assert.Equal(t, "all done", ExtractAnswer(snapshots))
}

func TestModelPolicyRejectsUnknownTarget(t *testing.T) {
	analystLLM := &scriptedModel{}
	analyst, err := agent.NewWorker("analyst", analystLLM)
	require.NoError(t, err)

	supLLM := &scriptedModel{}
	// The transfer tool rejects the unknown target; the model then answers.
	supLLM.enqueue(transferResponse("nobody"))
	supLLM.enqueue(textResponse("cannot delegate, answering directly"))

	policy, err := NewModelPolicy("supervisor", supLLM,
		agent.NewInstructionFromText("Route."), []string{"analyst"})
	require.NoError(t, err)

	sup, err := New("supervisor", policy, []WorkerAgent{analyst})
	require.NoError(t, err)

	answer, err := sup.Run(context.Background(), "sess-1", "question")
	require.NoError(t, err)
	assert.Equal(t, "cannot delegate, answering directly", answer)
}
