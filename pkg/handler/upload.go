package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/emojistudio/slack-emoji-bridge/pkg/cart"
	"github.com/emojistudio/slack-emoji-bridge/pkg/credential"
	"github.com/emojistudio/slack-emoji-bridge/pkg/text"
	"github.com/emojistudio/slack-emoji-bridge/pkg/uploader"
)

type UploadResultCSV struct {
	Name    string `csv:"name"`
	Outcome string `csv:"outcome"`
	Code    string `csv:"code"`
	Message string `csv:"message"`
}

type Uploader interface {
	Upload(ctx context.Context, rec credential.Record, item cart.Item) (uploader.Outcome, error)
	DrainCart(ctx context.Context, rec credential.Record, c uploader.Cart, report func(i int, r uploader.Result)) ([]uploader.Result, error)
}

type UploadHandler struct {
	uploader Uploader
	cart     uploader.Cart
	creds    CredentialSource
	policy   string
	logger   *zap.Logger
}

// NewUploadHandler builds the upload tools. policy is the value of
// EMOJI_BRIDGE_UPLOAD_TOOL, see isUploadAllowed.
func NewUploadHandler(u Uploader, c uploader.Cart, creds CredentialSource, policy string, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{uploader: u, cart: c, creds: creds, policy: policy, logger: logger}
}

func (uh *UploadHandler) UploadEmojiHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mediaURL, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := residentRecord(uh.creds)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("No usable Slack credential", err), nil
	}
	if !uh.isUploadAllowed(rec.Workspace) {
		return mcp.NewToolResultError(fmt.Sprintf("Uploading to %q is disabled. Set EMOJI_BRIDGE_UPLOAD_TOOL to enable it.", rec.Workspace)), nil
	}

	name := request.GetString("name", "")
	if name == "" {
		name = text.EmojiNameFromURL(mediaURL)
	}
	o, err := uh.uploader.Upload(ctx, rec, cart.Item{
		Name:      name,
		Workspace: rec.Workspace,
		URL:       mediaURL,
	})
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Upload not attempted", err), nil
	}
	if !o.Success() {
		return mcp.NewToolResultError(fmt.Sprintf(":%s: %s: %s", o.Name, o.Kind, o.Message)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Uploaded :%s: to %s.", o.Name, rec.Workspace)), nil
}

func (uh *UploadHandler) UploadCartHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rec, err := residentRecord(uh.creds)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("No usable Slack credential", err), nil
	}
	if !uh.isUploadAllowed(rec.Workspace) {
		return mcp.NewToolResultError(fmt.Sprintf("Uploading to %q is disabled. Set EMOJI_BRIDGE_UPLOAD_TOOL to enable it.", rec.Workspace)), nil
	}

	results, err := uh.uploader.DrainCart(ctx, rec, uh.cart, nil)
	if len(results) == 0 && err != nil {
		return mcp.NewToolResultErrorFromErr("Upload failed", err), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("Cart is empty."), nil
	}

	rows := make([]UploadResultCSV, 0, len(results))
	for _, r := range results {
		row := UploadResultCSV{
			Name:    r.Item.Name,
			Outcome: r.Outcome.Kind.String(),
			Code:    r.Outcome.Code,
			Message: r.Outcome.Message,
		}
		if r.Err != nil {
			row.Message = r.Err.Error()
		}
		rows = append(rows, row)
	}
	res, _ := marshalCSV(rows, "upload results")
	if err != nil {
		uh.logger.Warn("Cart upload stopped early", zap.Error(err))
		res.Content = append(res.Content, mcp.NewTextContent("# Stopped: "+err.Error()))
	}
	return res, nil
}

// isUploadAllowed applies the upload policy: empty disables uploads, "true"
// or "1" allows every workspace, "a,b" allows only those and "!a,!b" allows
// all but those.
func (uh *UploadHandler) isUploadAllowed(workspace string) bool {
	config := strings.TrimSpace(uh.policy)
	if config == "" {
		return false
	}
	if config == "true" || config == "1" {
		return true
	}

	items := strings.Split(config, ",")
	isNegated := strings.HasPrefix(strings.TrimSpace(items[0]), "!")

	for _, item := range items {
		item = strings.TrimSpace(item)
		if isNegated {
			if strings.TrimPrefix(item, "!") == workspace {
				return false
			}
		} else if item == workspace {
			return true
		}
	}
	return isNegated
}
