// Package mcp implements the Model Context Protocol (MCP) server for snipvault.
//
// The server exposes the snippet library to AI coding assistants over stdio.
// All tools act as one configured user (mcp.user_id, default "local"):
//   - search_snippets: keyword or semantic search
//   - create_snippet, update_snippet, get_snippet, delete_snippet, list_snippets
//   - analyze_code: suggest tags, description, framework and complexity
//   - explain_code: short explanation of a piece of code
//   - get_status: statistics and provider health
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// stdout carries the protocol, so all logging goes to stderr.
//
// # Tool: search_snippets
//
//	Request:
//	{
//	  "name": "search_snippets",
//	  "arguments": {"query": "retry with backoff", "semantic": true}
//	}
//
//	Response:
//	{
//	  "search_mode": "semantic",
//	  "count": 1,
//	  "duration_ms": 184,
//	  "results": [{"id": "…", "title": "Retry", "hasEmbedding": true, …}]
//	}
//
// Semantic results are the 50 most similar snippets scoring above 0.7.
// Scores are not returned. A provider failure fails the search; there is
// no fallback to keyword mode.
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "snipvault": {
//	      "command": "/usr/local/bin/snipvault",
//	      "args": ["mcp"],
//	      "env": {"OPENAI_API_KEY": "your-api-key"}
//	    }
//	  }
//	}
//
// # Error Handling
//
// Error codes:
//   - -32602: Invalid params (missing or invalid arguments, validation)
//   - -32603: Internal error (database)
//   - -32001: Snippet not found
//   - -32002: Embedding backfill in progress
//   - -32004: Empty query
//   - -32005: Embedding or completion provider failed
package mcp
