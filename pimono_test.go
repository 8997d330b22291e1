package pimono

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kochanac/pi-mono/agent"
	"github.com/Kochanac/pi-mono/core"
	"github.com/Kochanac/pi-mono/model"
)

func TestRunSync(t *testing.T) {
	m := model.NewMockModel().EnqueueText("hello")

	result, err := RunSync(context.Background(), "hi", &agent.Context{}, agent.Config{
		Model:        m,
		ConvertToLLM: agent.DefaultConvertToLLM,
	})
	require.NoError(t, err)

	require.Len(t, result, 2)
	assert.Equal(t, core.KindUser, result[0].Kind())
	assert.Equal(t, "hello", result[1].(*core.AssistantMessage).Text())
}

func TestRun_PropagatesConfigErrors(t *testing.T) {
	_, err := Run(context.Background(), "hi", &agent.Context{}, agent.Config{})
	assert.Error(t, err)
}
