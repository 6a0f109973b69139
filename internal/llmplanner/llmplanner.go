// Package llmplanner implements an optional plan.Planner backed by the
// Anthropic Messages API: it hands the tool catalog to the model as
// native tool definitions and turns whatever tool_use blocks come back
// into plan.Step values. Kenny only constructs this planner when
// config.LLM.APIKey is set; otherwise the engine sticks to plan.Fallback.
package llmplanner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"kenny/internal/logging"
	"kenny/internal/plan"
	"kenny/internal/tools"
)

const defaultMaxTokens int64 = 1024

const systemPrompt = `You are Kenny's planner. Given a user's request and a ` +
	`catalog of tools, decide which tools to call and with what arguments to ` +
	`satisfy the request. Call one or more tools; do not respond with plain ` +
	`text. Prefer the fewest steps that fully satisfy the request. Never ` +
	`invent a tool name outside the provided catalog.`

// Planner calls the configured Anthropic model to decompose a query into
// tool-use steps. It implements plan.Planner.
type Planner struct {
	sdk     anthropic.Client
	model   string
	timeout time.Duration
}

// New builds a Planner. apiKey must be non-empty; callers check
// config.LLM.APIKey before constructing one and fall back to
// plan.Fallback{} otherwise.
func New(apiKey, model string, timeout time.Duration) *Planner {
	model = strings.TrimSpace(model)
	if model == "" {
		model = "claude-opus-4-5"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Planner{
		sdk:     anthropic.NewClient(option.WithAPIKey(strings.TrimSpace(apiKey))),
		model:   model,
		timeout: timeout,
	}
}

// Plan asks the model to decompose query into steps drawn from catalog.
// A non-nil error (including a timeout or an empty tool-use response)
// tells the caller to fall back to the rule-based planner.
func (p *Planner) Plan(ctx context.Context, query string, catalog []*tools.Tool) ([]plan.Step, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	toolDefs, err := adaptTools(catalog)
	if err != nil {
		return nil, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: defaultMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Tools:     toolDefs,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(query)),
		},
	}

	resp, err := p.sdk.Messages.New(ctx, params)
	if err != nil {
		logging.Plan("llm planner request failed: %v", err)
		return nil, err
	}

	steps := stepsFromResponse(resp, catalog)
	if len(steps) == 0 {
		return nil, fmt.Errorf("llm planner: model returned no tool calls")
	}
	return steps, nil
}

func adaptTools(catalog []*tools.Tool) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(catalog))
	for _, t := range catalog {
		schema := anthropic.ToolInputSchemaParam{
			Type:       constant.ValueOf[constant.Object](),
			Required:   t.Schema.Required,
			Properties: propertiesToMap(t.Schema.Properties),
		}
		param := anthropic.ToolParam{
			Name:        t.Name,
			InputSchema: schema,
		}
		if t.Description != "" {
			param.Description = anthropic.String(t.Description)
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &param})
	}
	return out, nil
}

func propertiesToMap(props map[string]tools.Property) map[string]any {
	out := make(map[string]any, len(props))
	for name, p := range props {
		entry := map[string]any{"type": p.Type, "description": p.Description}
		if p.Default != nil {
			entry["default"] = p.Default
		}
		if len(p.Enum) > 0 {
			entry["enum"] = p.Enum
		}
		if p.Items != nil {
			entry["items"] = map[string]any{"type": p.Items.Type}
		}
		out[name] = entry
	}
	return out
}

func stepsFromResponse(resp *anthropic.Message, catalog []*tools.Tool) []plan.Step {
	if resp == nil {
		return nil
	}
	var steps []plan.Step
	for _, block := range resp.Content {
		use, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok {
			continue
		}
		t := toolByName(catalog, use.Name)
		if t == nil {
			logging.Plan("llm planner proposed unknown tool %q, skipping", use.Name)
			continue
		}
		var args map[string]any
		if err := json.Unmarshal(use.Input, &args); err != nil {
			logging.Plan("llm planner returned unparseable arguments for %q: %v", use.Name, err)
			continue
		}
		steps = append(steps, plan.Step{
			ToolName:    use.Name,
			Arguments:   args,
			Description: fmt.Sprintf("%s (llm planner)", t.Description),
		})
	}
	return steps
}

func toolByName(catalog []*tools.Tool, name string) *tools.Tool {
	for _, t := range catalog {
		if t.Name == name {
			return t
		}
	}
	return nil
}
