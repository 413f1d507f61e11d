package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// runTool calls an MCP tool handler directly and prints its text result,
// so the CLI and the MCP server render the same output.
func runTool(ctx context.Context, out io.Writer, name string, fn server.ToolHandlerFunc, args map[string]any) error {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := fn(ctx, req)
	if err != nil {
		return err
	}

	var text []string
	for _, c := range res.Content {
		if tc, ok := mcp.AsTextContent(c); ok {
			text = append(text, tc.Text)
		}
	}
	body := strings.Join(text, "\n")
	if res.IsError {
		return errors.New(body)
	}
	_, err = fmt.Fprintln(out, body)
	return err
}
