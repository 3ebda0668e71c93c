package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datalyze-ai/datalyze/core"
	"github.com/datalyze-ai/datalyze/model"
)

func TestChatMessagesAttachesToolResults(t *testing.T) {
	req := model.Request{
		Instructions: "route the question",
		Contents: []core.Content{
			{Role: "user", Parts: []core.Part{core.TextPart{Text: "what is the mean?"}}},
			{Role: "assistant", Parts: []core.Part{
				core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "c1", Name: "analyze_data", Arguments: "{}"}},
			}},
			{Role: "tool", Parts: []core.Part{
				core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "c1", Name: "analyze_data", Response: "2 rows x 2 columns"}},
			}},
			{Role: "assistant", Parts: []core.Part{core.TextPart{Text: "The mean is 15."}}},
		},
	}

	msgs := chatMessages(req)
	require.Len(t, msgs, 5)

	assert.NotNil(t, msgs[0].OfSystem, "instructions lead as the system message")
	assert.NotNil(t, msgs[1].OfUser)

	require.NotNil(t, msgs[2].OfAssistant)
	require.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	assert.Equal(t, "analyze_data", msgs[2].OfAssistant.ToolCalls[0].Function.Name)

	require.NotNil(t, msgs[3].OfTool, "tool result follows its calling turn")
	assert.Equal(t, "c1", msgs[3].OfTool.ToolCallID)

	assert.NotNil(t, msgs[4].OfAssistant)
}

func TestChatMessagesEmitsOrphanToolResults(t *testing.T) {
	req := model.Request{Contents: []core.Content{
		{Role: "user", Parts: []core.Part{core.TextPart{Text: "hi"}}},
		{Role: "tool", Parts: []core.Part{
			core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "c9", Name: "save_code", Error: "code must not be blank"}},
		}},
	}}

	msgs := chatMessages(req)
	require.Len(t, msgs, 2)
	require.NotNil(t, msgs[1].OfTool)
	assert.Equal(t, "c9", msgs[1].OfTool.ToolCallID)
}

func TestStreamStateFinalKeepsCallOrder(t *testing.T) {
	state := &streamState{calls: map[int64]*core.FunctionCall{
		1: {ID: "c2", Name: "save_code"},
		0: {ID: "c1", Name: "analyze_data"},
	}}
	state.text.WriteString("working")

	resp := state.final("tool_calls")
	require.Len(t, resp.Content.Parts, 3)
	assert.Equal(t, core.TextPart{Text: "working"}, resp.Content.Parts[0])

	first, ok := resp.Content.Parts[1].(core.FunctionCallPart)
	require.True(t, ok)
	assert.Equal(t, "analyze_data", first.FunctionCall.Name)

	assert.Equal(t, "tool_calls", resp.FinishReason)
	assert.False(t, resp.Partial)
}
