package tools

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/Kochanac/pi-mono/artifact"
	"github.com/Kochanac/pi-mono/internal/util"
	"github.com/Kochanac/pi-mono/tool"
)

// SaveArtifactTool persists a file attachment into the configured artifact
// store and returns its id for later retrieval.
type SaveArtifactTool struct {
	store          artifact.Store
	conversationID string
}

// NewSaveArtifactTool creates the attachment tool bound to a conversation.
func NewSaveArtifactTool(store artifact.Store, conversationID string) *SaveArtifactTool {
	return &SaveArtifactTool{store: store, conversationID: conversationID}
}

// Name implements tool.Tool.
func (t *SaveArtifactTool) Name() string { return "save_artifact" }

// Label implements tool.Tool.
func (t *SaveArtifactTool) Label() string { return "Save attachment" }

// Description implements tool.Tool.
func (t *SaveArtifactTool) Description() string {
	return "Persist a file attachment. Content is base64 encoded; returns the artifact id."
}

// Parameters implements tool.Tool.
func (t *SaveArtifactTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{
				"type":        "string",
				"description": "Attachment name, used as a suffix of the artifact id.",
			},
			"data": map[string]any{
				"type":        "string",
				"description": "Base64 encoded file content.",
			},
		},
		"required": []string{"name", "data"},
	}
}

// Execute implements tool.Tool.
func (t *SaveArtifactTool) Execute(ctx context.Context, _ string, args map[string]any, _ tool.UpdateFunc) (*tool.Result, error) {
	name, _ := args["name"].(string)
	encoded, _ := args["data"].(string)

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode attachment data: %w", err)
	}

	artifactID := util.NewID()[:8] + "-" + name
	if err := t.store.Save(ctx, t.conversationID, artifactID, data); err != nil {
		return nil, err
	}

	res := tool.TextResult(fmt.Sprintf("Saved attachment %s (%d bytes)", artifactID, len(data)))
	res.Details = map[string]any{"artifact_id": artifactID, "size": len(data)}
	return res, nil
}
