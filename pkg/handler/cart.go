package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/emojistudio/slack-emoji-bridge/pkg/cart"
	"github.com/emojistudio/slack-emoji-bridge/pkg/text"
)

type CartItemCSV struct {
	Name         string `csv:"name"`
	Workspace    string `csv:"workspace"`
	Source       string `csv:"source"`
	MIMEType     string `csv:"mime_type"`
	Size         string `csv:"size"`
	OriginalName string `csv:"original_name"`
	AddedAt      string `csv:"added_at"`
	URL          string `csv:"url"`
}

type Cart interface {
	List(ctx context.Context) ([]cart.Item, error)
	Add(ctx context.Context, item cart.Item) (int, error)
	AddFile(ctx context.Context, path, workspace string) (cart.Item, int, error)
	Remove(ctx context.Context, name, workspace string) error
	Rename(ctx context.Context, workspace, from, to string) error
	Clear(ctx context.Context) error
}

type CartHandler struct {
	cart   Cart
	creds  CredentialSource
	logger *zap.Logger
}

func NewCartHandler(c Cart, creds CredentialSource, logger *zap.Logger) *CartHandler {
	return &CartHandler{cart: c, creds: creds, logger: logger}
}

// workspace picks the request's workspace argument or the resident one.
func (ch *CartHandler) workspace(request mcp.CallToolRequest) string {
	if ws := request.GetString("workspace", ""); ws != "" {
		return ws
	}
	if rec, err := ch.creds.Load(); err == nil && rec != nil {
		return rec.Workspace
	}
	return ""
}

func (ch *CartHandler) ListHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := ch.cart.List(ctx)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to read cart", err), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("Cart is empty."), nil
	}
	rows := make([]CartItemCSV, 0, len(items))
	for _, it := range items {
		rows = append(rows, cartRow(it))
	}
	return marshalCSV(rows, "cart")
}

func cartRow(it cart.Item) CartItemCSV {
	row := CartItemCSV{
		Name:         it.Name,
		Workspace:    it.Workspace,
		Source:       string(it.Source),
		MIMEType:     it.MIMEType,
		OriginalName: text.ProcessText(it.OriginalName),
		AddedAt:      it.AddedAt.UTC().Format(time.RFC3339),
		URL:          it.URL,
	}
	if it.FileSize > 0 {
		row.Size = humanize.IBytes(uint64(it.FileSize))
	}
	// Data URLs can run to megabytes.
	if len(row.URL) > 80 {
		row.URL = row.URL[:77] + "..."
	}
	return row
}

func (ch *CartHandler) AddHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mediaURL, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name := request.GetString("name", "")
	if name == "" {
		name = text.EmojiNameFromURL(mediaURL)
	}
	item := cart.Item{
		Name:      text.NormalizeEmojiName(name),
		Workspace: ch.workspace(request),
		URL:       mediaURL,
		Source:    cart.Source(request.GetString("source", string(cart.SourceContextMenu))),
	}
	if item.Name != name {
		item.OriginalName = name
	}

	size, err := ch.cart.Add(ctx, item)
	if err != nil {
		return addError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Added :%s: to the cart (%d/%d).", item.Name, size, cart.MaxItems)), nil
}

func (ch *CartHandler) AddFileHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	item, size, err := ch.cart.AddFile(ctx, path, ch.workspace(request))
	if err != nil {
		return addError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Added :%s: (%s, %s) to the cart (%d/%d).",
		item.Name, item.MIMEType, humanize.IBytes(uint64(item.FileSize)), size, cart.MaxItems)), nil
}

func addError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, cart.ErrCartFull):
		return mcp.NewToolResultError(fmt.Sprintf("Cart is full (%d items). Upload or remove items first.", cart.MaxItems))
	case errors.Is(err, cart.ErrDuplicate):
		return mcp.NewToolResultErrorFromErr("Already in the cart", err)
	}
	return mcp.NewToolResultErrorFromErr("Failed to add to cart", err)
}

func (ch *CartHandler) RemoveHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := ch.cart.Remove(ctx, name, ch.workspace(request)); err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to remove from cart", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Removed :%s: from the cart.", name)), nil
}

func (ch *CartHandler) RenameHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := request.RequireString("new_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := ch.cart.Rename(ctx, ch.workspace(request), from, to); err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to rename", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Renamed :%s: to :%s:.", from, to)), nil
}

func (ch *CartHandler) ClearHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := ch.cart.Clear(ctx); err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to clear cart", err), nil
	}
	return mcp.NewToolResultText("Cart cleared."), nil
}
