package scaffold

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"hyperthink/internal/llmprovider"
)

// fakeCompleter replays a scripted sequence of responses, one per Complete
// call, and records every request it received. Safe for concurrent use so
// Plan's subtask fan-out can share one across goroutines.
type fakeCompleter struct {
	responses []fakeResponse
	calls     int32

	mu       sync.Mutex
	requests []llmprovider.Request

	costPerCall float64
	costErr     error
}

type fakeResponse struct {
	Content   string
	ToolCalls []llmprovider.ToolCall
	Err       error
}

func (f *fakeCompleter) Complete(ctx context.Context, req llmprovider.Request) (llmprovider.Completion, error) {
	idx := int(atomic.AddInt32(&f.calls, 1)) - 1
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if idx >= len(f.responses) {
		return llmprovider.Completion{}, fmt.Errorf("fakeCompleter: no scripted response for call %d", idx)
	}
	resp := f.responses[idx]
	if resp.Err != nil {
		return llmprovider.Completion{}, resp.Err
	}
	return llmprovider.Completion{
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
		Usage:     &llmprovider.Usage{PromptTokens: 10, CompletionTokens: 10},
	}, nil
}

func (f *fakeCompleter) EstimateCost(model string, usage llmprovider.Usage) (float64, error) {
	return f.costPerCall, f.costErr
}

func textResponse(content string) fakeResponse { return fakeResponse{Content: content} }
