package scaffold

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"hyperthink/internal/llmprovider"
	"hyperthink/internal/toolkit"
	"hyperthink/internal/usage"
)

// toolLoopParams bundles one call's worth of model parameters plus the
// conversation it runs against. ResponseFormat, if set, is only actually
// attached to the request once the model is done calling tools — see
// runToolLoop for why.
type toolLoopParams struct {
	Model             string
	Messages          []llmprovider.Message
	Temperature       float64
	TopP              float64
	TopK              *int
	ReasoningEffort   string
	ResponseFormat    *llmprovider.ResponseFormat
	MaxToolIterations int
}

func (p toolLoopParams) baseRequest() llmprovider.Request {
	return llmprovider.Request{
		Model:           p.Model,
		Temperature:     p.Temperature,
		TopP:            p.TopP,
		TopK:            p.TopK,
		ReasoningEffort: p.ReasoningEffort,
	}
}

// runToolLoop drives the agentic sub-loop for one starter or reviewer call:
// it offers the registry's tools on every call except the last allowed one
// (which drops tools so the model is forced to answer), executes any tool
// calls the model makes and feeds the results back, and applies
// ResponseFormat only to a call made with no tools attached — deferring a
// re-request without tools if the model settled on final content while tools
// were still on offer. The call budget is MaxToolIterations+1 requests.
func runToolLoop(ctx context.Context, completer llmprovider.Completer, reg toolkit.Registry, acc *usage.Accumulator, params toolLoopParams) (llmprovider.Completion, error) {
	messages := append([]llmprovider.Message(nil), params.Messages...)
	schemas := reg.Schemas()

	for iteration := 0; iteration <= params.MaxToolIterations; iteration++ {
		isLastAllowed := iteration >= params.MaxToolIterations

		req := params.baseRequest()
		req.Messages = messages
		if !isLastAllowed {
			req.Tools = schemas
		}
		deferFormat := params.ResponseFormat != nil && len(req.Tools) > 0
		if params.ResponseFormat != nil && !deferFormat {
			req.ResponseFormat = params.ResponseFormat
		}

		comp, err := callAndRecord(ctx, completer, req, acc)
		if err != nil {
			return llmprovider.Completion{}, err
		}

		if len(comp.ToolCalls) == 0 {
			if deferFormat {
				messages = append(messages, llmprovider.Message{
					Role:    llmprovider.RoleAssistant,
					Content: comp.Content,
				})
				finalReq := params.baseRequest()
				finalReq.Messages = messages
				finalReq.ResponseFormat = params.ResponseFormat
				return callAndRecord(ctx, completer, finalReq, acc)
			}
			return comp, nil
		}

		log.Debug().Int("iteration", iteration).Int("tool_calls", len(comp.ToolCalls)).Msg("scaffold_tool_loop_step")

		messages = append(messages, llmprovider.Message{
			Role:      llmprovider.RoleAssistant,
			Content:   comp.Content,
			ToolCalls: comp.ToolCalls,
		})
		for _, tc := range comp.ToolCalls {
			result := reg.Dispatch(ctx, tc.Name, tc.Arguments)
			log.Debug().Str("tool", tc.Name).Int("result_bytes", len(result)).Msg("scaffold_tool_dispatch")
			messages = append(messages, llmprovider.Message{
				Role:       llmprovider.RoleTool,
				Content:    result,
				ToolCallID: tc.ID,
			})
		}
	}

	return llmprovider.Completion{}, fmt.Errorf("%w: tool loop exhausted %d iterations without final content", ErrEmptyCompletion, params.MaxToolIterations+1)
}

func callAndRecord(ctx context.Context, completer llmprovider.Completer, req llmprovider.Request, acc *usage.Accumulator) (llmprovider.Completion, error) {
	comp, err := completer.Complete(ctx, req)
	if err != nil {
		return llmprovider.Completion{}, err
	}
	if comp.Usage != nil && acc != nil {
		cost, costErr := completer.EstimateCost(req.Model, *comp.Usage)
		acc.Add(comp.Usage.PromptTokens, comp.Usage.CompletionTokens, cost, costErr)
	}
	return comp, nil
}
