package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/Kochanac/pi-mono/core"
	"github.com/Kochanac/pi-mono/model"
	"github.com/Kochanac/pi-mono/tool"
)

// AdvisorParams is the observation an advisor reacts to: the parent log as of
// the tool result, plus the call and its outcome.
type AdvisorParams struct {
	Messages   []core.Message
	ToolName   string
	ToolArgs   string
	ToolResult *core.ToolResultMessage
}

// AdvisorContext is the starting state CreateContext builds for the nested
// run. Messages become the child's first prompt batch; its log starts empty.
type AdvisorContext struct {
	SystemPrompt string
	Messages     []core.Message
}

// Advisor configures a recursively nested agent run fired after specific tool
// results. Advisors never alter tool results and never block forward progress
// other than by adding time; any failure is reported as an advisor_error event
// and skipped.
type Advisor struct {
	// Name is the stable identifier used in events and message tags.
	Name string

	// Model runs the nested agent; nil inherits the parent's model.
	Model     model.Model
	Reasoning model.ReasoningLevel

	// APIKey / GetAPIKey override the parent's key resolution for the child.
	APIKey    string
	GetAPIKey func(ctx context.Context, provider string) (string, error)

	// Tools for the nested run; empty makes the advisor a single-shot call.
	Tools []tool.Tool

	// Advisors nests further advisors; arbitrary depth is supported.
	Advisors []Advisor

	// Trigger decides whether the advisor fires for a given tool result. A
	// nil trigger fires after every tool result.
	Trigger func(ctx context.Context, p AdvisorParams) (bool, error)

	// CreateContext builds the child's starting state. Required.
	CreateContext func(ctx context.Context, p AdvisorParams) (*AdvisorContext, error)

	// ExtractResult distills the child's new messages into the verdict text;
	// nil uses DefaultExtractResult. An empty result injects nothing.
	ExtractResult func(msgs []core.Message) string

	// ConvertToLLM for the nested run; nil uses DefaultConvertToLLM.
	ConvertToLLM ConvertFunc
}

// OnTools builds a trigger firing only for the named tools.
func OnTools(names ...string) func(ctx context.Context, p AdvisorParams) (bool, error) {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(_ context.Context, p AdvisorParams) (bool, error) {
		return set[p.ToolName], nil
	}
}

// DefaultExtractResult concatenates the text blocks of the last assistant
// message with newlines. Thinking blocks are excluded.
func DefaultExtractResult(msgs []core.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if asst, ok := msgs[i].(*core.AssistantMessage); ok {
			return asst.Text()
		}
	}
	return ""
}

// DefaultConvertToLLM passes standard messages through, projects an advisor
// message as a user message tagged "[Advisor: <name>] <content>", and drops
// unknown variants.
func DefaultConvertToLLM(_ context.Context, msgs []core.Message) ([]core.Message, error) {
	out := make([]core.Message, 0, len(msgs))
	for _, m := range msgs {
		switch msg := m.(type) {
		case *core.UserMessage, *core.AssistantMessage, *core.ToolResultMessage:
			out = append(out, m)
		case *core.AdvisorMessage:
			out = append(out, core.NewUserMessage(fmt.Sprintf("[Advisor: %s] %s", msg.AdvisorName, msg.Content)))
		}
	}
	return out, nil
}

// runAdvisors fires the configured advisors for one tool result, sequentially
// in declaration order. Each advisor sees the log with prior advisor messages
// already appended.
func (r *run) runAdvisors(ctx context.Context, tc core.ToolCallBlock, res *core.ToolResultMessage) {
	for i := range r.cfg.Advisors {
		r.runAdvisor(ctx, &r.cfg.Advisors[i], tc, res)
	}
}

func (r *run) runAdvisor(ctx context.Context, adv *Advisor, tc core.ToolCallBlock, res *core.ToolResultMessage) {
	params := AdvisorParams{
		Messages:   r.actx.Messages,
		ToolName:   tc.Name,
		ToolArgs:   tc.Arguments,
		ToolResult: res,
	}

	fired, err := r.advisorTriggered(ctx, adv, params)
	if err != nil {
		r.advisorFailed(adv, fmt.Errorf("trigger: %w", err))
		return
	}
	if !fired {
		return
	}

	r.stream.Push(core.AdvisorStartEvent{AdvisorName: adv.Name, ToolName: tc.Name})
	r.logger.Debug("agent.advisor.start", "advisor", adv.Name, "tool", tc.Name)

	childCtx, err := r.createAdvisorContext(ctx, adv, params)
	if err != nil {
		r.advisorFailed(adv, fmt.Errorf("create context: %w", err))
		return
	}

	childMsgs, err := r.runAdvisorChild(ctx, adv, childCtx)
	if err != nil {
		r.advisorFailed(adv, err)
		return
	}

	extract := adv.ExtractResult
	if extract == nil {
		extract = DefaultExtractResult
	}

	content, err := safeExtract(extract, childMsgs)
	if err != nil {
		r.advisorFailed(adv, err)
		return
	}

	if content != "" {
		r.appendMessage(&core.AdvisorMessage{
			AdvisorName: adv.Name,
			Content:     content,
			Model:       r.advisorModelName(adv),
			Timestamp:   time.Now().UTC(),
		})
	}

	r.stream.Push(core.AdvisorEndEvent{AdvisorName: adv.Name, Content: content})
}

// runAdvisorChild starts the nested run and forwards every child event,
// wrapped, to the parent stream. It returns the child's new messages.
func (r *run) runAdvisorChild(ctx context.Context, adv *Advisor, childCtx *AdvisorContext) ([]core.Message, error) {
	childModel := adv.Model
	if childModel == nil {
		childModel = r.cfg.Model
	}

	convert := adv.ConvertToLLM
	if convert == nil {
		convert = DefaultConvertToLLM
	}

	getKey := adv.GetAPIKey
	if getKey == nil {
		getKey = r.cfg.GetAPIKey
	}

	apiKey := adv.APIKey
	if apiKey == "" {
		apiKey = r.cfg.APIKey
	}

	cfg := Config{
		Model:        childModel,
		ConvertToLLM: convert,
		GetAPIKey:    getKey,
		APIKey:       apiKey,
		Advisors:     adv.Advisors,
		Reasoning:    adv.Reasoning,
		Logger:       r.logger,
	}

	child := &Context{SystemPrompt: childCtx.SystemPrompt, Tools: adv.Tools}

	stream, err := Start(ctx, childCtx.Messages, child, cfg, WithStreamFunc(r.streamFn))
	if err != nil {
		return nil, fmt.Errorf("nested run: %w", err)
	}

	for ev := range stream.Events() {
		r.stream.Push(core.AdvisorChildEvent{AdvisorName: adv.Name, Event: ev})
	}

	return stream.Result(), nil
}

func (r *run) advisorTriggered(ctx context.Context, adv *Advisor, p AdvisorParams) (fired bool, err error) {
	if adv.Trigger == nil {
		return true, nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("trigger panicked: %v", rec)
		}
	}()
	return adv.Trigger(ctx, p)
}

func (r *run) createAdvisorContext(ctx context.Context, adv *Advisor, p AdvisorParams) (out *AdvisorContext, err error) {
	if adv.CreateContext == nil {
		return nil, fmt.Errorf("advisor %s: CreateContext is required", adv.Name)
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("create context panicked: %v", rec)
		}
	}()
	out, err = adv.CreateContext(ctx, p)
	if err == nil && out == nil {
		err = fmt.Errorf("advisor %s: CreateContext returned nil context", adv.Name)
	}
	return out, err
}

func safeExtract(extract func([]core.Message) string, msgs []core.Message) (out string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("extract result panicked: %v", rec)
		}
	}()
	return extract(msgs), nil
}

// advisorFailed reports a failure without disturbing the parent run.
func (r *run) advisorFailed(adv *Advisor, err error) {
	r.logger.Warn("agent.advisor.failed", "advisor", adv.Name, "error", err.Error())
	r.stream.Push(core.AdvisorErrorEvent{AdvisorName: adv.Name, Err: err})
}

func (r *run) advisorModelName(adv *Advisor) string {
	if adv.Model != nil {
		return adv.Model.Info().Name
	}
	return r.modelName()
}
