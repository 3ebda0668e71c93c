package supervisor

import (
	"github.com/datalyze-ai/datalyze/agent"
	"github.com/datalyze-ai/datalyze/core"
	"github.com/datalyze-ai/datalyze/model"
	"github.com/datalyze-ai/datalyze/tool"
)

// Decision is the outcome of one routing step. An empty Delegate means the
// run is finished and the decision events carry the final answer.
type Decision struct {
	Delegate string
	Events   []core.Event
}

// Policy chooses the next step of the routing loop based on the conversation
// so far. Implementations append their reasoning events through the run
// context and return them for snapshot assembly.
type Policy interface {
	Decide(runCtx *core.RunContext) (Decision, error)
}

// ModelPolicy routes with a language model. The model sees the conversation
// history and a single transfer tool listing the registered workers; calling
// the tool delegates, answering in plain text finishes the run.
type ModelPolicy struct {
	worker *agent.Worker
}

// NewModelPolicy constructs a model-backed policy authoring events under the
// given name. agentNames is the closed set of valid delegation targets.
func NewModelPolicy(name string, llm model.Model, instruction agent.Instruction, agentNames []string, optFns ...func(o *agent.Options)) (*ModelPolicy, error) {
	w, err := agent.NewWorker(name, llm, append([]func(o *agent.Options){func(o *agent.Options) {
		o.Instruction = instruction
		o.Tools = []tool.Tool{tool.NewTransferToAgentTool(agentNames)}
	}}, optFns...)...)
	if err != nil {
		return nil, err
	}
	return &ModelPolicy{worker: w}, nil
}

// Decide runs one supervisor model turn. A transfer request in the emitted
// events yields a delegation; otherwise the turn's text is the final answer.
func (p *ModelPolicy) Decide(runCtx *core.RunContext) (Decision, error) {
	events, err := p.worker.Respond(runCtx)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{Events: events}
	for _, ev := range events {
		if ev.Actions.TransferToAgent != nil {
			d.Delegate = *ev.Actions.TransferToAgent
		}
	}
	return d, nil
}
