package catalog

// activitiesSchema defines the JSON schema for the lesson activities
// response. The loader rejects malformed server payloads before any of
// them reach the progression engine.
var activitiesSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"activities": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "string",
						"minLength":   1,
						"description": "Opaque activity id, unique within the lesson",
					},
					"kind": map[string]any{
						"type":        "string",
						"minLength":   1,
						"description": "Renderer dispatch tag (mcq, asr, emotion, ...)",
					},
					"render_payload": map[string]any{
						"description": "Renderer-specific content, opaque to the engine",
					},
				},
				"required": []any{"id", "kind"},
			},
		},
		"meta": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"chapter_id": map[string]any{
					"type": "integer",
				},
			},
		},
	},
	"required": []any{"activities"},
}
