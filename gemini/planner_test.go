package gemini_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/codeshell"
	"github.com/fwojciec/codeshell/gemini"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reply = `{"operations":[
  {"type":"edit","path":"main.go","selector":{"type":"search","pattern":"foo","occurrence":2},"content":"bar"},
  {"type":"rename","path":"a.txt","newPath":"b.txt"},
  {"type":"write","path":"c.txt","selector":"full","content":"c\n"}
]}`

func TestPlanner_Propose_ReturnsOperations(t *testing.T) {
	t.Parallel()

	var gotPrompt string
	var gotConfig *gemini.GenerateContentConfig
	client := &gemini.MockGenerativeClient{
		GenerateContentFn: func(ctx context.Context, model string, contents []*gemini.Content, config *gemini.GenerateContentConfig) (*gemini.GenerateContentResponse, error) {
			gotPrompt = contents[0].Parts[0].Text
			gotConfig = config
			return &gemini.GenerateContentResponse{Text: reply}, nil
		},
	}
	planner := gemini.NewPlanner(client, gemini.DefaultModel)

	ops, err := planner.Propose(context.Background(), "rename foo", []codeshell.FileSnapshot{{Path: "main.go", Text: "foo\nfoo\n"}})

	require.NoError(t, err)
	assert.Equal(t, []codeshell.Operation{
		{Type: codeshell.OpEdit, Path: "main.go", Selector: codeshell.SearchSelector("foo", 2), Content: "bar"},
		{Type: codeshell.OpRename, Path: "a.txt", NewPath: "b.txt", Selector: codeshell.FullSelector()},
		{Type: codeshell.OpWrite, Path: "c.txt", Selector: codeshell.FullSelector(), Content: "c\n"},
	}, ops)
	assert.Contains(t, gotPrompt, "### main.go")
	assert.Contains(t, gotPrompt, "   2| foo")
	assert.Contains(t, gotPrompt, "rename foo")
	require.NotNil(t, gotConfig.ResponseSchema)
	assert.Equal(t, "application/json", gotConfig.ResponseMIMEType)
}

func TestPlanner_Propose_PropagatesAPIError(t *testing.T) {
	t.Parallel()

	expected := errors.New("quota exceeded")
	client := &gemini.MockGenerativeClient{
		GenerateContentFn: func(context.Context, string, []*gemini.Content, *gemini.GenerateContentConfig) (*gemini.GenerateContentResponse, error) {
			return nil, expected
		},
	}

	_, err := gemini.NewPlanner(client, gemini.DefaultModel).Propose(context.Background(), "x", nil)

	assert.ErrorIs(t, err, expected)
}

func TestPlanner_Propose_RetriesRateLimits(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := &gemini.MockGenerativeClient{
		GenerateContentFn: func(context.Context, string, []*gemini.Content, *gemini.GenerateContentConfig) (*gemini.GenerateContentResponse, error) {
			if calls.Add(1) == 1 {
				return nil, gemini.NewAPIError(429, "slow down")
			}
			return &gemini.GenerateContentResponse{Text: `{"operations":[]}`}, nil
		},
	}
	planner := gemini.NewPlanner(client, gemini.DefaultModel, gemini.WithRetries(2, time.Millisecond))

	ops, err := planner.Propose(context.Background(), "x", nil)

	require.NoError(t, err)
	assert.Empty(t, ops)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPlanner_Propose_AsksAgainAfterInvalidJSON(t *testing.T) {
	t.Parallel()

	var history [][]*gemini.Content
	client := &gemini.MockGenerativeClient{
		GenerateContentFn: func(_ context.Context, _ string, contents []*gemini.Content, _ *gemini.GenerateContentConfig) (*gemini.GenerateContentResponse, error) {
			history = append(history, contents)
			if len(history) == 1 {
				return &gemini.GenerateContentResponse{Text: "not json"}, nil
			}
			return &gemini.GenerateContentResponse{Text: `{"operations":[{"type":"delete","path":"x"}]}`}, nil
		},
	}
	planner := gemini.NewPlanner(client, gemini.DefaultModel, gemini.WithRetries(1, time.Millisecond))

	ops, err := planner.Propose(context.Background(), "x", nil)

	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, codeshell.OpDelete, ops[0].Type)
	require.Len(t, history[1], 3)
	assert.Equal(t, "model", history[1][1].Role)
	assert.Equal(t, "not json", history[1][1].Parts[0].Text)
}

func TestPlanner_Propose_GivesUpOnInvalidJSON(t *testing.T) {
	t.Parallel()

	client := &gemini.MockGenerativeClient{
		GenerateContentFn: func(context.Context, string, []*gemini.Content, *gemini.GenerateContentConfig) (*gemini.GenerateContentResponse, error) {
			return &gemini.GenerateContentResponse{Text: "still not json"}, nil
		},
	}
	planner := gemini.NewPlanner(client, gemini.DefaultModel, gemini.WithRetries(0, 0))

	_, err := planner.Propose(context.Background(), "x", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse response")
}

func TestPlanner_Propose_Blocked(t *testing.T) {
	t.Parallel()

	for name, resp := range map[string]*gemini.GenerateContentResponse{
		"prompt": {BlockReason: "PROHIBITED_CONTENT"},
		"reply":  {Text: `{"operations":[`, FinishReason: gemini.FinishSafety},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			client := &gemini.MockGenerativeClient{
				GenerateContentFn: func(context.Context, string, []*gemini.Content, *gemini.GenerateContentConfig) (*gemini.GenerateContentResponse, error) {
					calls.Add(1)
					return resp, nil
				},
			}

			_, err := gemini.NewPlanner(client, gemini.DefaultModel, gemini.WithRetries(2, time.Millisecond)).Propose(context.Background(), "x", nil)

			require.ErrorIs(t, err, gemini.ErrBlocked)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestPlanner_Propose_AsksForSmallerReplyWhenCutOff(t *testing.T) {
	t.Parallel()

	var history [][]*gemini.Content
	client := &gemini.MockGenerativeClient{
		GenerateContentFn: func(_ context.Context, _ string, contents []*gemini.Content, config *gemini.GenerateContentConfig) (*gemini.GenerateContentResponse, error) {
			assert.Positive(t, config.MaxOutputTokens)
			history = append(history, contents)
			if len(history) == 1 {
				return &gemini.GenerateContentResponse{Text: `{"operations":[{"type":"write"`, FinishReason: gemini.FinishMaxTokens, OutputTokens: 32768}, nil
			}
			return &gemini.GenerateContentResponse{Text: `{"operations":[{"type":"delete","path":"x"}]}`, FinishReason: "STOP"}, nil
		},
	}

	ops, err := gemini.NewPlanner(client, gemini.DefaultModel, gemini.WithRetries(1, time.Millisecond)).Propose(context.Background(), "x", nil)

	require.NoError(t, err)
	require.Len(t, ops, 1)
	require.Len(t, history[1], 3)
	assert.Contains(t, history[1][2].Parts[0].Text, "cut off")
}
