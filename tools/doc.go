// Package tools provides the concrete tool implementations the agent loop
// consumes through the uniform tool.Tool interface: filesystem access, shell
// execution, web fetching, task storage, attachment upload, and chat-platform
// adapters for Slack and Telegram.
//
// Tools report failures as returned errors; the dispatcher records them as
// error tool results the model can observe and recover from.
package tools
