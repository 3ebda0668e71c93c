// Package openai adapts the OpenAI Chat Completions API to the generic
// model.Model interface. Normalized conversation contents map onto chat
// messages, tool definitions onto function declarations, and completions
// (streaming or blocking) surface as model.Response chunks.
package openai

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/openai/openai-go"

	"github.com/datalyze-ai/datalyze/core"
	"github.com/datalyze-ai/datalyze/model"
)

// Options configure the adapter. Analysis runs want reproducible output, so
// the temperature defaults to 0.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Model drives OpenAI chat completions for the supervisor and worker agents.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel builds an adapter with a client configured from the environment.
func NewModel(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient builds an adapter around an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0,
		MaxCompletionTokens: 4000,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements model.Model. The request is converted once; streaming
// and blocking completions share the same parameter assembly.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := m.completionParams(req)
		if req.Stream {
			m.generateStream(ctx, params, out, errCh)
			return
		}
		m.generateBlocking(ctx, params, out, errCh)
	}()

	return out, errCh
}

// Info returns metadata describing this adapter.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}

// completionParams assembles the full API request. Request instructions
// become the leading system message and tool definitions become function
// declarations.
func (m *Model) completionParams(req model.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            chatMessages(req),
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}
	for _, def := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        def.Function.Name,
				Description: openai.String(def.Function.Description),
				Parameters:  def.Function.Parameters,
			},
		})
	}
	return params
}

// toolResults indexes function responses by call id. The chat format has no
// free-standing tool role; each result must follow the assistant turn that
// requested it, so conversion takes results out of this index as it walks
// the assistant messages.
type toolResults struct {
	byID  map[string]string
	order []string
}

func indexToolResults(contents []core.Content) *toolResults {
	r := &toolResults{byID: map[string]string{}}
	for _, c := range contents {
		if c.Role != "tool" {
			continue
		}
		for _, p := range c.Parts {
			part, ok := p.(core.FunctionResponsePart)
			if !ok {
				continue
			}
			fr := part.FunctionResponse
			if fr.ID == "" {
				continue
			}
			if _, seen := r.byID[fr.ID]; seen {
				continue
			}
			text := fr.Error
			if text == "" {
				if s, ok := fr.Response.(string); ok {
					text = s
				} else {
					text = fmt.Sprintf("%v", fr.Response)
				}
			}
			r.byID[fr.ID] = text
			r.order = append(r.order, fr.ID)
		}
	}
	return r
}

// take removes and returns the result recorded for a call id.
func (r *toolResults) take(id string) (string, bool) {
	text, ok := r.byID[id]
	if ok {
		delete(r.byID, id)
	}
	return text, ok
}

// chatMessages converts the normalized conversation into chat format.
func chatMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	results := indexToolResults(req.Contents)

	var msgs []openai.ChatCompletionMessageParamUnion
	if req.Instructions != "" {
		msgs = append(msgs, openai.SystemMessage(req.Instructions))
	}
	for _, c := range req.Contents {
		switch c.Role {
		case "tool":
			// Reattached behind the assistant turn that called the tool.
		case "system":
			msgs = append(msgs, openai.SystemMessage(c.Text()))
		case "assistant":
			msgs = appendAssistant(msgs, c, results)
		default: // user and unrecognized roles
			if text := c.Text(); text != "" {
				msgs = append(msgs, openai.UserMessage(text))
			}
		}
	}
	// Results whose assistant turn never appeared still need a message.
	for _, id := range results.order {
		if text, ok := results.take(id); ok {
			msgs = append(msgs, openai.ToolMessage(text, id))
		}
	}
	return msgs
}

// appendAssistant emits one assistant message, as a tool-calling turn when
// the content carries function calls, trailed by the matching tool results.
func appendAssistant(
	msgs []openai.ChatCompletionMessageParamUnion,
	c core.Content,
	results *toolResults,
) []openai.ChatCompletionMessageParamUnion {
	var calls []openai.ChatCompletionMessageToolCallParam
	var callIDs []string
	for _, p := range c.Parts {
		fc, ok := p.(core.FunctionCallPart)
		if !ok {
			continue
		}
		calls = append(calls, openai.ChatCompletionMessageToolCallParam{
			ID:   fc.FunctionCall.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      fc.FunctionCall.Name,
				Arguments: fc.FunctionCall.Arguments,
			},
		})
		callIDs = append(callIDs, fc.FunctionCall.ID)
	}

	if len(calls) == 0 {
		return append(msgs, openai.AssistantMessage(c.Text()))
	}

	msgs = append(msgs, openai.ChatCompletionMessageParamUnion{
		OfAssistant: &openai.ChatCompletionAssistantMessageParam{
			Role:      "assistant",
			ToolCalls: calls,
		},
	})
	for _, id := range callIDs {
		if text, ok := results.take(id); ok {
			msgs = append(msgs, openai.ToolMessage(text, id))
		}
	}
	return msgs
}

// streamState accumulates text and tool-call deltas until the API signals a
// finish reason. Tool call fragments arrive keyed by index with the id, the
// name and the argument chunks spread over several deltas.
type streamState struct {
	text  strings.Builder
	calls map[int64]*core.FunctionCall
}

func (s *streamState) final(reason string) model.Response {
	parts := make([]core.Part, 0, len(s.calls)+1)
	if s.text.Len() > 0 {
		parts = append(parts, core.TextPart{Text: s.text.String()})
	}
	idxs := make([]int64, 0, len(s.calls))
	for idx := range s.calls {
		idxs = append(idxs, idx)
	}
	slices.Sort(idxs)
	for _, idx := range idxs {
		parts = append(parts, core.FunctionCallPart{FunctionCall: *s.calls[idx]})
	}
	return model.Response{
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: reason,
	}
}

func partialResponse(p core.Part) model.Response {
	return model.Response{
		Partial: true,
		Content: core.Content{Role: "assistant", Parts: []core.Part{p}},
	}
}

// generateStream forwards each delta as a partial response and closes the
// turn with one complete response per finish reason.
func (m *Model) generateStream(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	state := &streamState{calls: map[int64]*core.FunctionCall{}}

	for stream.Next() {
		chunk := stream.Current()
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				state.text.WriteString(choice.Delta.Content)
				out <- partialResponse(core.TextPart{Text: choice.Delta.Content})
			}
			for _, tc := range choice.Delta.ToolCalls {
				call, ok := state.calls[tc.Index]
				if !ok {
					call = &core.FunctionCall{}
					state.calls[tc.Index] = call
				}
				if tc.ID != "" {
					call.ID = tc.ID
				}
				if tc.Function.Name != "" {
					call.Name = tc.Function.Name
				}
				call.Arguments += tc.Function.Arguments
				out <- partialResponse(core.FunctionCallPart{FunctionCall: *call})
			}
			if choice.FinishReason != "" {
				out <- state.final(choice.FinishReason)
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("openai stream: %w", err)
	}
}

// generateBlocking performs a single completion call and emits its final
// response.
func (m *Model) generateBlocking(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		errCh <- fmt.Errorf("openai completion: %w", err)
		return
	}
	if len(resp.Choices) == 0 {
		errCh <- fmt.Errorf("openai returned no choices")
		return
	}

	choice := resp.Choices[0]
	parts := make([]core.Part, 0, len(choice.Message.ToolCalls)+1)
	if choice.Message.Content != "" {
		parts = append(parts, core.TextPart{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}})
	}

	out <- model.Response{
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: choice.FinishReason,
	}
}
