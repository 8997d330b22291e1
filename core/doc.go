// Package core defines the message model and event plumbing shared by the
// agent loop and its collaborators.
//
// A conversation is an append-only log of Message values. The built-in
// variants (user, assistant, tool result, advisor) cover everything the loop
// itself produces; callers may introduce additional variants by implementing
// Message with a new Kind, in which case their ConvertToLLM projection is the
// single point of interpretation.
//
// Events emitted during a run travel through an EventStream: an ordered
// single-producer/single-consumer pipe sealed by exactly one terminal
// AgentEndEvent, after which Result returns the messages appended during the
// run.
package core
