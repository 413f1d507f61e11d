package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/emojistudio/slack-emoji-bridge/pkg/handler"
	"github.com/emojistudio/slack-emoji-bridge/pkg/server/auth"
	"github.com/emojistudio/slack-emoji-bridge/pkg/version"
)

// Handlers are the tool implementations the server exposes.
type Handlers struct {
	Emoji  *handler.EmojiHandler
	Auth   *handler.AuthHandler
	Cart   *handler.CartHandler
	Upload *handler.UploadHandler
	Studio *handler.StudioHandler
}

type Options struct {
	// Transport is "stdio" or "sse".
	Transport string
	APIKey    string
}

type MCPServer struct {
	server *server.MCPServer
	logger *zap.Logger
}

func NewMCPServer(h Handlers, opts Options, logger *zap.Logger) *MCPServer {
	s := server.NewMCPServer(
		"Slack Emoji Bridge",
		version.Version,
		server.WithLogging(),
		server.WithRecovery(),
		server.WithToolHandlerMiddleware(buildLoggerMiddleware(logger)),
		server.WithToolHandlerMiddleware(auth.BuildMiddleware(opts.Transport, opts.APIKey, logger)),
	)

	s.AddTool(mcp.NewTool("get_current_user",
		mcp.WithDescription("Get information about the user whose captured session is resident (Slack API: auth.test)"),
	), h.Auth.GetCurrentUserHandler)

	s.AddTool(mcp.NewTool("credential_status",
		mcp.WithDescription("Show which Slack workspace is connected and when its session was captured. The token is never returned in full."),
	), h.Auth.CredentialStatusHandler)

	s.AddTool(mcp.NewTool("disconnect",
		mcp.WithDescription("Forget the captured Slack session, the last sync and anything staged for Emoji Studio"),
	), h.Auth.DisconnectHandler)

	s.AddTool(mcp.NewTool("list_emojis",
		mcp.WithDescription("List the emoji of the connected workspace from the last sync (Slack API: emoji.list, emoji.adminList)"),
		mcp.WithString("query",
			mcp.Description("Search for emojis by name or alias (case-insensitive)"),
		),
		mcp.WithString("type",
			mcp.DefaultString("all"),
			mcp.Description("Filter by emoji type: 'all', 'custom', 'unicode'. Default: 'all'"),
		),
		mcp.WithNumber("limit",
			mcp.DefaultNumber(1000),
			mcp.Description("The maximum number of items to return. Must be an integer between 1 and 1000. Default: 1000"),
		),
		mcp.WithString("cursor",
			mcp.Description("Cursor for pagination. Use the cursor value returned from the previous request."),
		),
	), h.Emoji.EmojiListHandler)

	s.AddTool(mcp.NewTool("cart_list",
		mcp.WithDescription("List the emoji waiting in the upload cart"),
	), h.Cart.ListHandler)

	s.AddTool(mcp.NewTool("cart_add",
		mcp.WithDescription("Add an image or video URL to the upload cart"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Address of the media, or a data: URL"),
		),
		mcp.WithString("name",
			mcp.Description("Emoji name. Lowercase letters, numbers, '-' and '_'. Derived from the URL when omitted."),
		),
		mcp.WithString("workspace",
			mcp.Description("Target workspace subdomain. Defaults to the connected workspace."),
		),
		mcp.WithString("source",
			mcp.DefaultString("context-menu"),
			mcp.Description("Where the media came from: 'context-menu', 'slackmojis' or 'local-upload'"),
		),
	), h.Cart.AddHandler)

	s.AddTool(mcp.NewTool("cart_add_file",
		mcp.WithDescription("Add a local image or video file (up to 10 MB) to the upload cart"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path of the file on the machine running the bridge"),
		),
		mcp.WithString("workspace",
			mcp.Description("Target workspace subdomain. Defaults to the connected workspace."),
		),
	), h.Cart.AddFileHandler)

	s.AddTool(mcp.NewTool("cart_remove",
		mcp.WithDescription("Remove an emoji from the upload cart"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Emoji name")),
		mcp.WithString("workspace", mcp.Description("Workspace of the item. Defaults to the connected workspace.")),
	), h.Cart.RemoveHandler)

	s.AddTool(mcp.NewTool("cart_rename",
		mcp.WithDescription("Rename an emoji in the upload cart before it is uploaded"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Current emoji name")),
		mcp.WithString("new_name", mcp.Required(), mcp.Description("New emoji name")),
		mcp.WithString("workspace", mcp.Description("Workspace of the item. Defaults to the connected workspace.")),
	), h.Cart.RenameHandler)

	s.AddTool(mcp.NewTool("cart_clear",
		mcp.WithDescription("Empty the upload cart"),
	), h.Cart.ClearHandler)

	s.AddTool(mcp.NewTool("upload_emoji",
		mcp.WithDescription("Upload one image or video as a custom emoji to the connected workspace (Slack API: emoji.add). Disabled unless EMOJI_BRIDGE_UPLOAD_TOOL allows the workspace."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Address of the media, or a data: URL"),
		),
		mcp.WithString("name",
			mcp.Description("Emoji name. Derived from the URL when omitted."),
		),
	), h.Upload.UploadEmojiHandler)

	s.AddTool(mcp.NewTool("upload_cart",
		mcp.WithDescription("Upload every emoji in the cart, paced to Slack's limits, and remove the ones that succeeded. Stops when the session expires."),
	), h.Upload.UploadCartHandler)

	s.AddTool(mcp.NewTool("sync_emoji_studio",
		mcp.WithDescription("Refresh the workspace emoji and hand them, with the session, to Emoji Studio"),
	), h.Studio.SyncHandler)

	s.AddTool(mcp.NewTool("sync_settings",
		mcp.WithDescription("Show or change automatic Emoji Studio sync"),
		mcp.WithBoolean("auto_sync", mcp.Description("Enable or disable automatic sync")),
		mcp.WithNumber("interval_minutes", mcp.Description("Minutes between automatic syncs")),
	), h.Studio.SettingsHandler)

	return &MCPServer{
		server: s,
		logger: logger,
	}
}

// HandleMessage processes one JSON-RPC message.
func (s *MCPServer) HandleMessage(ctx context.Context, raw []byte) mcp.JSONRPCMessage {
	return s.server.HandleMessage(ctx, raw)
}

func (s *MCPServer) ServeSSE(addr string) *server.SSEServer {
	s.logger.Info("Creating SSE server",
		zap.String("context", "console"),
		zap.String("version", version.Version),
		zap.String("build_time", version.BuildTime),
		zap.String("commit_hash", version.CommitHash),
		zap.String("address", addr),
	)
	return server.NewSSEServer(s.server,
		server.WithBaseURL(fmt.Sprintf("http://%s", addr)),
		server.WithSSEContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return auth.AuthFromRequest(s.logger)(ctx, r)
		}),
	)
}

func (s *MCPServer) ServeStdio() error {
	s.logger.Info("Starting STDIO server",
		zap.String("version", version.Version),
		zap.String("build_time", version.BuildTime),
		zap.String("commit_hash", version.CommitHash),
	)
	err := server.ServeStdio(s.server)
	if err != nil {
		s.logger.Error("STDIO server error", zap.Error(err))
	}
	return err
}

func buildLoggerMiddleware(logger *zap.Logger) server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			logger.Info("Request received",
				zap.String("tool", req.Params.Name),
				zap.Any("params", req.Params),
			)

			startTime := time.Now()

			res, err := next(ctx, req)

			logger.Info("Request finished",
				zap.String("tool", req.Params.Name),
				zap.Duration("duration", time.Since(startTime)),
			)

			return res, err
		}
	}
}
