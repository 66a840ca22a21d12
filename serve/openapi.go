package serve

import (
	"strings"

	"github.com/skosovsky/funcall"
)

// BuildOpenAPI assembles an OpenAPI 3 document from function schemas: one
// POST path per callable, its parameter schema as the request body, and its
// responses section when present.
func BuildOpenAPI(docs []*funcall.Document, title, description string) map[string]any {
	paths := make(map[string]any, len(docs))
	names := make([]string, 0, len(docs))

	for _, doc := range docs {
		names = append(names, doc.Name)

		summary := doc.Description
		if summary == "" {
			summary = doc.Name + " function"
		}
		responses := doc.Responses
		if responses == nil {
			responses = map[string]any{"200": map[string]any{"description": "OK"}}
		}

		paths["/"+doc.Name] = map[string]any{
			"post": map[string]any{
				"operationId": doc.Name,
				"summary":     summary,
				"requestBody": map[string]any{
					"required": true,
					"content": map[string]any{
						"application/json": map[string]any{"schema": doc.Parameters},
					},
				},
				"responses": responses,
			},
		}
	}

	if description == "" {
		description = "Plugin exposing these functions: " + strings.Join(names, ", ")
	}

	return map[string]any{
		"openapi": "3.0.1",
		"info": map[string]any{
			"title":       title,
			"description": description,
			"version":     "v1",
		},
		"paths": paths,
	}
}
