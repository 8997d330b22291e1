// Package agent implements the turn-based execution loop that interleaves
// model responses with tool executions and recursive advisor sub-agents.
//
// A run is started with Start (fresh prompts) or Continue (resume an existing
// log) and observed through the returned core.EventStream. Per turn the loop
// projects the message log for the model, streams the assistant response while
// maintaining a single authoritative in-progress message, dispatches any tool
// calls sequentially, fires advisors after each tool result, and polls the
// caller for steering and follow-up messages before deciding whether to loop
// again.
//
// Failures are recorded, not thrown: tool errors become error tool results the
// model can observe, advisor failures become advisor_error events, and only a
// model-level stream error (or abort) terminates the run.
package agent
