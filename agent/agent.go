package agent

import (
	"context"
	"fmt"

	"github.com/Kochanac/pi-mono/core"
	"github.com/Kochanac/pi-mono/logging"
	"github.com/Kochanac/pi-mono/model"
	"github.com/Kochanac/pi-mono/tool"
)

// ConvertFunc projects the full message log into the subset the model
// understands. It is the single point of interpretation for extension message
// kinds. Projection may be asynchronous (ctx-aware).
type ConvertFunc func(ctx context.Context, msgs []core.Message) ([]core.Message, error)

// TransformFunc is an optional log-level projection (e.g. pruning) applied
// before ConvertFunc. It only affects model input; the persistent log is
// untouched.
type TransformFunc func(ctx context.Context, msgs []core.Message) ([]core.Message, error)

// Context is the caller-owned conversation state a run operates on. The loop
// appends to Messages in place for the duration of the run; callers must not
// mutate it concurrently.
type Context struct {
	SystemPrompt string
	Messages     []core.Message
	Tools        []tool.Tool
}

// Config carries the per-run options recognized by the loop.
type Config struct {
	// Model is the handle passed to the streaming adapter.
	Model model.Model

	// ConvertToLLM is required; it projects the log into model-compatible
	// messages.
	ConvertToLLM ConvertFunc

	// TransformContext optionally rewrites the log before projection.
	TransformContext TransformFunc

	// GetAPIKey resolves a possibly-rotating API key. It is awaited fresh on
	// every model call to tolerate expiring tokens during long tool phases.
	GetAPIKey func(ctx context.Context, provider string) (string, error)

	// APIKey is the static fallback when GetAPIKey is absent or returns the
	// empty string.
	APIKey string

	// GetSteeringMessages is polled before each model call and after each
	// tool result to inject mid-run user messages. A non-empty return skips
	// the remaining tool calls of the current assistant message. Callers must
	// discharge returned messages: a second poll at the same position returns
	// nothing.
	GetSteeringMessages func(ctx context.Context) ([]core.Message, error)

	// GetFollowUpMessages is polled when the run would otherwise stop; a
	// non-empty return continues the run.
	GetFollowUpMessages func(ctx context.Context) ([]core.Message, error)

	// Advisors are fired after tool results; see Advisor.
	Advisors []Advisor

	// Reasoning is forwarded to the adapter.
	Reasoning model.ReasoningLevel

	// Logger defaults to a no-op.
	Logger logging.Logger
}

// RunOptions are per-run overrides applied via functional options.
type RunOptions struct {
	// StreamFunc overrides how the loop calls the model. Tests use this to
	// script adapter behavior.
	StreamFunc model.StreamFunc
}

// WithStreamFunc overrides the streaming indirection for one run.
func WithStreamFunc(fn model.StreamFunc) func(o *RunOptions) {
	return func(o *RunOptions) { o.StreamFunc = fn }
}

// Start begins a fresh run: each prompt message is pushed verbatim onto the
// log, steering is pre-polled once, and the loop proceeds to stream the first
// assistant response. An empty prompt list is legal.
//
// The returned stream delivers the run's events; its Result yields the
// messages appended during the run. ctx is the run's abort signal, threaded
// unchanged into the adapter and every tool.
func Start(
	ctx context.Context,
	prompts []core.Message,
	actx *Context,
	cfg Config,
	optFns ...func(o *RunOptions),
) (*core.EventStream, error) {
	r, err := newRun(actx, cfg, optFns)
	if err != nil {
		return nil, err
	}
	go r.execute(ctx, prompts, true)
	return r.stream, nil
}

// Continue resumes a run from the existing log without new prompts. The log
// must be non-empty and must not end with an assistant message; violations are
// programming errors reported synchronously before any event is emitted.
// Unlike Start, Continue does not pre-poll steering.
func Continue(
	ctx context.Context,
	actx *Context,
	cfg Config,
	optFns ...func(o *RunOptions),
) (*core.EventStream, error) {
	if len(actx.Messages) == 0 {
		return nil, fmt.Errorf("Cannot continue: no messages in context")
	}
	if last := actx.Messages[len(actx.Messages)-1]; last.Kind() == core.KindAssistant {
		return nil, fmt.Errorf("Cannot continue from message role: %s", last.Kind())
	}

	r, err := newRun(actx, cfg, optFns)
	if err != nil {
		return nil, err
	}
	go r.execute(ctx, nil, false)
	return r.stream, nil
}

func newRun(actx *Context, cfg Config, optFns []func(o *RunOptions)) (*run, error) {
	if cfg.ConvertToLLM == nil {
		return nil, fmt.Errorf("config: ConvertToLLM is required")
	}

	opts := RunOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	// A custom StreamFunc may ignore the model entirely; only the default
	// delegation requires one.
	if opts.StreamFunc == nil {
		if cfg.Model == nil {
			return nil, fmt.Errorf("config: Model is required")
		}
		opts.StreamFunc = model.DefaultStreamFunc
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &run{
		cfg:      cfg,
		actx:     actx,
		stream:   core.NewEventStream(),
		streamFn: opts.StreamFunc,
		logger:   logger,
	}, nil
}
