package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/datalyze-ai/datalyze/core"
	"github.com/datalyze-ai/datalyze/model"
	"github.com/datalyze-ai/datalyze/tool"
)

// Defaults for worker construction.
const (
	DefaultMaxToolRounds = 8
	DefaultRetryAttempts = 3
	DefaultRetryInterval = 500 * time.Millisecond
)

// Options configures a Worker instance.
//
// Use functional options with NewWorker to override defaults.
type Options struct {
	Description   string
	Instruction   Instruction
	Tools         []tool.Tool
	MaxToolRounds int
	RetryAttempts int
	RetryInterval time.Duration
	// ModelTimeout bounds a single model call; zero means no per-call bound
	// beyond the run context.
	ModelTimeout time.Duration
}

// Worker is a model-backed agent executing one delegated turn at a time.
//
// A turn alternates model calls with tool executions until the model answers
// without requesting a tool, a tool requests a control transfer, or the round
// ceiling is reached. Each model call is retried with exponential backoff
// before the turn fails with a ModelCallError.
type Worker struct {
	name          string
	description   string
	llm           model.Model
	instruction   Instruction
	tools         map[string]tool.Tool
	maxToolRounds int
	retryAttempts int
	retryInterval time.Duration
	modelTimeout  time.Duration
}

// NewWorker creates a worker agent with sensible defaults. Construction fails
// with a ConfigurationError when the name is empty, the model is nil or two
// tools share a name; these are wiring mistakes that must surface at startup,
// not mid-run.
func NewWorker(name string, llm model.Model, optFns ...func(o *Options)) (*Worker, error) {
	if name == "" {
		return nil, core.NewConfigurationError("agent", "worker name must not be empty")
	}
	if llm == nil {
		return nil, core.NewConfigurationError("agent", "worker %q requires a model", name)
	}

	opts := Options{
		Instruction:   NewInstructionFromText(fmt.Sprintf("You are %s, a helpful assistant.", name)),
		MaxToolRounds: DefaultMaxToolRounds,
		RetryAttempts: DefaultRetryAttempts,
		RetryInterval: DefaultRetryInterval,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	tools := make(map[string]tool.Tool, len(opts.Tools))
	for _, t := range opts.Tools {
		if _, exists := tools[t.Name()]; exists {
			return nil, core.NewConfigurationError("agent", "worker %q registers tool %q twice", name, t.Name())
		}
		tools[t.Name()] = t
	}

	return &Worker{
		name:          name,
		description:   opts.Description,
		llm:           llm,
		instruction:   opts.Instruction,
		tools:         tools,
		maxToolRounds: opts.MaxToolRounds,
		retryAttempts: opts.RetryAttempts,
		retryInterval: opts.RetryInterval,
		modelTimeout:  opts.ModelTimeout,
	}, nil
}

// Name returns the worker's unique name used for routing and event authorship.
func (w *Worker) Name() string { return w.name }

// Description returns the short capability summary shown to the supervisor.
func (w *Worker) Description() string { return w.description }

// HasTool checks if a tool is registered with the worker.
func (w *Worker) HasTool(name string) bool {
	_, exists := w.tools[name]
	return exists
}

// ListTools returns the sorted names of all registered tools.
func (w *Worker) ListTools() []string {
	names := make([]string, 0, len(w.tools))
	for name := range w.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Respond executes one delegated turn and returns the events it appended to
// the session, in order. The returned error is reserved for unrecoverable
// failures (cancellation, exhausted model retries); tool failures are encoded
// as error function responses inside the conversation instead.
func (w *Worker) Respond(runCtx *core.RunContext) ([]core.Event, error) {
	runCtx.LogDebug("agent.turn.start", "agent", w.name, "run", runCtx.RunID)

	var emitted []core.Event

	for round := 0; round < w.maxToolRounds; round++ {
		if err := runCtx.Err(); err != nil {
			return emitted, err
		}

		instructions, err := w.instruction.Resolve(runCtx)
		if err != nil {
			return emitted, fmt.Errorf("resolve instructions for %s: %w", w.name, err)
		}

		req := model.Request{
			Instructions: instructions,
			Contents:     contentsFromHistory(runCtx.History()),
			Tools:        w.toolDefinitions(),
		}

		resp, err := w.generate(runCtx, req)
		if err != nil {
			return emitted, err
		}

		ev := core.NewEvent(runCtx.RunID, w.name)
		content := resp.Content
		ev.Content = &content

		calls := ev.GetFunctionCalls()
		if len(calls) == 0 {
			complete := true
			ev.TurnComplete = &complete
		}

		if err := runCtx.Append(ev); err != nil {
			return emitted, err
		}
		emitted = append(emitted, ev)

		if len(calls) == 0 {
			runCtx.LogDebug("agent.turn.complete", "agent", w.name, "rounds", round+1)
			return emitted, nil
		}

		for _, call := range calls {
			toolCtx := core.NewToolContext(runCtx, w.name, call.ID)

			start := time.Now()
			result, toolErr := w.executeTool(toolCtx, call)
			runCtx.LogInfo("agent.tool.executed",
				"agent", w.name,
				"tool", call.Name,
				"duration_ms", time.Since(start).Milliseconds(),
				"error", toolErr != nil,
			)

			respEv := core.NewFunctionResponseEvent(runCtx.RunID, w.name, call.ID, call.Name, result, toolErr)
			toolCtx.ApplyActions(&respEv)

			if err := runCtx.Append(respEv); err != nil {
				return emitted, err
			}
			emitted = append(emitted, respEv)

			if respEv.Actions.TransferToAgent != nil {
				runCtx.LogDebug("agent.turn.transfer", "agent", w.name, "target", *respEv.Actions.TransferToAgent)
				return emitted, nil
			}
		}
	}

	runCtx.LogWarn("agent.turn.rounds_exhausted", "agent", w.name, "max_rounds", w.maxToolRounds)

	ev := core.NewMessageEvent(runCtx.RunID, w.name,
		fmt.Sprintf("Stopped after %d tool rounds without a final answer.", w.maxToolRounds))
	complete := true
	ev.TurnComplete = &complete
	if err := runCtx.Append(ev); err != nil {
		return emitted, err
	}
	return append(emitted, ev), nil
}

// generate performs one model call with bounded retry. Cancellation and
// retry exhaustion both surface as a ModelCallError wrapping the cause.
func (w *Worker) generate(runCtx *core.RunContext, req model.Request) (model.Response, error) {
	operation := func() (model.Response, error) {
		callCtx := runCtx.Context
		cancel := func() {}
		if w.modelTimeout > 0 {
			callCtx, cancel = context.WithTimeout(runCtx.Context, w.modelTimeout)
		}
		defer cancel()

		respCh, errCh := w.llm.Generate(callCtx, req)

		var final model.Response
		var got bool
		for respCh != nil || errCh != nil {
			select {
			case resp, ok := <-respCh:
				if !ok {
					respCh = nil
					continue
				}
				if !resp.Partial {
					final = resp
					got = true
				}
			case err, ok := <-errCh:
				if !ok {
					errCh = nil
					continue
				}
				if err != nil {
					return model.Response{}, err
				}
			case <-callCtx.Done():
				if runCtx.Err() != nil {
					return model.Response{}, backoff.Permanent(runCtx.Err())
				}
				// Per-call timeout; the next attempt gets a fresh deadline.
				return model.Response{}, callCtx.Err()
			}
		}
		if !got {
			return model.Response{}, errors.New("model produced no final response")
		}
		return final, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = w.retryInterval

	resp, err := backoff.Retry(runCtx.Context, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(w.retryAttempts)),
	)
	if err != nil {
		runCtx.LogError("agent.model.failed", "agent", w.name, "attempts", w.retryAttempts, "error", err.Error())
		return model.Response{}, &core.ModelCallError{Agent: w.name, Attempts: w.retryAttempts, Err: err}
	}
	return resp, nil
}

// executeTool dispatches a function call against the worker's closed tool
// table. Unknown tools and argument decode failures return errors that flow
// back to the model as error function responses.
func (w *Worker) executeTool(toolCtx *core.ToolContext, call core.FunctionCall) (any, error) {
	t, exists := w.tools[call.Name]
	if !exists {
		return nil, fmt.Errorf("unknown tool %q, available tools: %v", call.Name, w.ListTools())
	}

	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return nil, fmt.Errorf("decode arguments for %s: %w", call.Name, err)
		}
	}

	return t.Call(toolCtx, args)
}

func (w *Worker) toolDefinitions() []model.ToolDefinition {
	if len(w.tools) == 0 {
		return nil
	}
	defs := make([]model.ToolDefinition, 0, len(w.tools))
	for _, name := range w.ListTools() {
		t := w.tools[name]
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

func contentsFromHistory(events []core.Event) []core.Content {
	contents := make([]core.Content, 0, len(events))
	for _, ev := range events {
		if ev.Content == nil {
			continue
		}
		contents = append(contents, *ev.Content)
	}
	return contents
}
