package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// snippetFields are the writable snippet properties shared by create and
// update
func snippetFields() map[string]interface{} {
	return map[string]interface{}{
		"title": map[string]interface{}{
			"type":        "string",
			"description": "Short title (1-200 characters)",
			"maxLength":   200,
		},
		"description": map[string]interface{}{
			"type":        "string",
			"description": "What the snippet does (up to 1000 characters)",
			"maxLength":   1000,
		},
		"code": map[string]interface{}{
			"type":        "string",
			"description": "The code itself. Snippets with code are embedded for semantic search",
			"maxLength":   50000,
		},
		"language": map[string]interface{}{
			"type":        "string",
			"description": "Programming language (1-50 characters)",
			"maxLength":   50,
		},
		"tags": map[string]interface{}{
			"type":        "array",
			"description": "Up to 20 tags of letters, digits, underscores and hyphens",
			"maxItems":    20,
			"items": map[string]interface{}{
				"type":      "string",
				"pattern":   `^[\w-]+$`,
				"maxLength": 32,
			},
		},
		"framework": map[string]interface{}{
			"type":        "string",
			"description": "Framework or library the code targets",
		},
		"complexity": map[string]interface{}{
			"type":        "string",
			"description": "Complexity level",
			"enum":        []string{"simple", "moderate", "complex"},
		},
		"is_favorite": map[string]interface{}{
			"type":        "boolean",
			"description": "Mark the snippet as a favorite",
		},
		"is_public": map[string]interface{}{
			"type":        "boolean",
			"description": "Share the snippet publicly",
		},
	}
}

func idProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Snippet id",
	}
}

func codeProperties() map[string]interface{} {
	return map[string]interface{}{
		"code": map[string]interface{}{
			"type":        "string",
			"description": "Code to inspect (up to 10000 characters for analysis)",
		},
		"language": map[string]interface{}{
			"type":        "string",
			"description": "Programming language of the code",
		},
	}
}

// searchSnippetsTool returns the tool definition for search_snippets
func searchSnippetsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_snippets",
		Description: "Search your snippets by keyword substring or by semantic similarity",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search text. Keyword mode matches title, description, code and language",
				},
				"semantic": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, rank by embedding similarity (top 50 above 0.7) instead of substring match",
					"default":     false,
				},
			},
			Required: []string{"query"},
		},
	}
}

// createSnippetTool returns the tool definition for create_snippet
func createSnippetTool() mcp.Tool {
	return mcp.Tool{
		Name:        "create_snippet",
		Description: "Save a new code snippet",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: snippetFields(),
			Required:   []string{"title", "language"},
		},
	}
}

// updateSnippetTool returns the tool definition for update_snippet
func updateSnippetTool() mcp.Tool {
	props := snippetFields()
	props["id"] = idProperty()
	return mcp.Tool{
		Name:        "update_snippet",
		Description: "Change fields of an existing snippet. Omitted fields are left unchanged",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   []string{"id"},
		},
	}
}

// getSnippetTool returns the tool definition for get_snippet
func getSnippetTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_snippet",
		Description: "Fetch one snippet by id",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"id": idProperty()},
			Required:   []string{"id"},
		},
	}
}

// deleteSnippetTool returns the tool definition for delete_snippet
func deleteSnippetTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_snippet",
		Description: "Delete one snippet by id",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"id": idProperty()},
			Required:   []string{"id"},
		},
	}
}

// listSnippetsTool returns the tool definition for list_snippets
func listSnippetsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_snippets",
		Description: "List your snippets, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of snippets to return (1-100)",
					"default":     20,
					"minimum":     1,
					"maximum":     100,
				},
				"offset": map[string]interface{}{
					"type":        "integer",
					"description": "Number of snippets to skip",
					"default":     0,
					"minimum":     0,
				},
				"language": map[string]interface{}{
					"type":        "string",
					"description": "Only return snippets in this language",
				},
				"favorites_only": map[string]interface{}{
					"type":        "boolean",
					"description": "Only return favorites",
					"default":     false,
				},
			},
		},
	}
}

// analyzeCodeTool returns the tool definition for analyze_code
func analyzeCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "analyze_code",
		Description: "Suggest tags, a description, a framework and a complexity level for code",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: codeProperties(),
			Required:   []string{"code", "language"},
		},
	}
}

// explainCodeTool returns the tool definition for explain_code
func explainCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "explain_code",
		Description: "Explain what code does in two or three sentences",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: codeProperties(),
			Required:   []string{"code", "language"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report snippet statistics and provider health for the current user",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
