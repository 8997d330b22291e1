// Package pimono provides a high-level façade over the agent execution core.
// Most applications interact with this package by:
//  1. Building an agent.Context (system prompt, message log, tools)
//  2. Configuring a run via agent.Config (model, projection, steering hooks)
//  3. Starting a run with Run or RunSync and consuming the event stream
//
// The façade delegates everything to the agent package while keeping the
// common prompt-in / messages-out path concise.
package pimono

import (
	"context"

	"github.com/Kochanac/pi-mono/agent"
	"github.com/Kochanac/pi-mono/core"
)

// Run starts an agent run for a single user prompt and returns its event
// stream. It is shorthand for agent.Start with one user message.
func Run(
	ctx context.Context,
	prompt string,
	actx *agent.Context,
	cfg agent.Config,
) (*core.EventStream, error) {
	return agent.Start(ctx, []core.Message{core.NewUserMessage(prompt)}, actx, cfg)
}

// RunSync starts a run for a single user prompt, drains the event stream and
// returns the messages appended during the run.
func RunSync(
	ctx context.Context,
	prompt string,
	actx *agent.Context,
	cfg agent.Config,
) ([]core.Message, error) {
	stream, err := Run(ctx, prompt, actx, cfg)
	if err != nil {
		return nil, err
	}

	for range stream.Events() {
		// Drain; callers wanting per-event handling use Run directly.
	}

	return stream.Result(), nil
}
