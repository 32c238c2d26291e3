package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

// captureCache keeps loaded inputs for the lifetime of the server. Captures
// are read-only once loaded, so they are shared between tool calls.
type captureCache struct {
	mu    sync.Mutex
	ro    *rootOptions
	byKey map[string]*capture
}

func (cc *captureCache) get(path string) (*capture, error) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if c, ok := cc.byKey[path]; ok {
		return c, nil
	}
	c, err := cc.ro.load(path)
	if err != nil {
		return nil, err
	}
	cc.byKey[path] = c
	return c, nil
}

func newMCPServer(ro *rootOptions) *server.MCPServer {
	cache := &captureCache{ro: ro, byKey: make(map[string]*capture)}
	s := server.NewMCPServer(
		"scope-query",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)

	infoTool := mcp.NewTool("capture_info",
		mcp.WithDescription("Summarize a scope capture: threads, hottest scopes by self and total time, and totals."),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Path to a .scq capture, .jfr recording or collapsed-stack file"),
		),
	)
	s.AddTool(infoTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := request.RequireString("file_path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		c, err := cache.get(path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to load capture: %v", err)), nil
		}
		var sb strings.Builder
		cmdInfo(&sb, path, c, 10, 20, ro.logger)
		return mcp.NewToolResultText(sb.String()), nil
	})

	statsTool := mcp.NewTool("scope_stats",
		mcp.WithDescription("Per-scope statistics table: count, size, self time and total time per (scope, thread). Use tree=true to group by call hierarchy."),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Path to a .scq capture, .jfr recording or collapsed-stack file"),
		),
		mcp.WithString("sort",
			mcp.Description("Sort column: thread, location, name, id, count, size, self, mean-self, max-self, total, mean-total (default: self)"),
		),
		mcp.WithBoolean("asc",
			mcp.Description("Sort ascending (default: descending)"),
		),
		mcp.WithBoolean("tree",
			mcp.Description("Group scopes by call hierarchy"),
		),
		mcp.WithString("filter",
			mcp.Description("Show rows whose thread, location or name contains any of these words"),
		),
		mcp.WithString("where",
			mcp.Description("Starlark predicate over count, bytes, self_ns, total_ns, max_ns, mean_self_ns, mean_ns, name, thread, location, id, depth"),
		),
	)
	s.AddTool(statsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := request.RequireString("file_path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		opts := defaultDisplayOptions()
		if s := request.GetString("sort", ""); s != "" {
			col, err := parseColumn(s)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			opts.SortBy = col
		}
		opts.SortAsc = request.GetBool("asc", false)
		opts.TreeView = request.GetBool("tree", false)
		opts.Filter = request.GetString("filter", "")
		opts.Where = request.GetString("where", "")

		c, err := cache.get(path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to load capture: %v", err)), nil
		}
		var sb strings.Builder
		if err := cmdStats(&sb, c, opts, ro.logger); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(sb.String()), nil
	})

	return s
}

func newServeCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve capture_info and scope_stats as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ro.logger.Info().Msg("Serving MCP over stdio")
			return server.ServeStdio(newMCPServer(ro))
		},
	}
}
