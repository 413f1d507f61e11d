package handler

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/emojistudio/slack-emoji-bridge/pkg/provider"
	"github.com/emojistudio/slack-emoji-bridge/pkg/text"
)

const maxEmojiPage = 1000

type EmojiCSV struct {
	Name      string `csv:"name"`
	URL       string `csv:"url"`
	IsCustom  bool   `csv:"is_custom"`
	Aliases   string `csv:"aliases"`
	AliasFor  string `csv:"alias_for"`
	TeamID    string `csv:"team_id"`
	UserID    string `csv:"user_id"`
	CreatedBy string `csv:"created_by"`
	Created   string `csv:"created"`
}

// EmojiSource is the cached emoji inventory.
type EmojiSource interface {
	IsEmojisReady() (bool, error)
	ProvideEmojiMap() *provider.EmojiCache
}

type EmojiHandler struct {
	inventory EmojiSource
	logger    *zap.Logger
}

func NewEmojiHandler(inventory EmojiSource, logger *zap.Logger) *EmojiHandler {
	return &EmojiHandler{
		inventory: inventory,
		logger:    logger,
	}
}

func (eh *EmojiHandler) EmojiListHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	eh.logger.Debug("EmojiListHandler called")

	if ready, err := eh.inventory.IsEmojisReady(); !ready {
		eh.logger.Error("Emojis cache not ready", zap.Error(err))
		return mcp.NewToolResultErrorFromErr("Emojis cache not ready", err), nil
	}

	emojiType := request.GetString("type", "all")
	cursor := request.GetString("cursor", "")
	limit := request.GetInt("limit", maxEmojiPage)
	query := strings.ToLower(strings.TrimSpace(request.GetString("query", "")))

	if limit <= 0 {
		limit = maxEmojiPage
	} else if limit > maxEmojiPage {
		eh.logger.Warn("Limit exceeds maximum, capping", zap.Int("requested", limit), zap.Int("max", maxEmojiPage))
		limit = maxEmojiPage
	}

	cache := eh.inventory.ProvideEmojiMap()
	filtered := filterEmojis(cache.Emojis, emojiType, query)
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Name < filtered[j].Name })

	page, nextCursor := paginateEmojis(filtered, cursor, limit)
	eh.logger.Debug("Pagination results",
		zap.Int("total", len(filtered)),
		zap.Int("returned_count", len(page)),
		zap.Bool("has_next_page", nextCursor != ""),
	)

	rows := make([]EmojiCSV, 0, len(page))
	for _, e := range page {
		row := EmojiCSV{
			Name:      e.Name,
			URL:       e.URL,
			IsCustom:  e.IsCustom,
			Aliases:   text.ProcessText(strings.Join(e.Aliases, "|")),
			AliasFor:  e.AliasFor,
			TeamID:    e.TeamID,
			UserID:    e.UserID,
			CreatedBy: text.ProcessText(e.UserDisplayName),
		}
		if e.Created > 0 {
			row.Created = text.UnixToIsoRFC3339(e.Created)
		}
		rows = append(rows, row)
	}

	csvBytes, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		eh.logger.Error("Failed to marshal emojis to CSV", zap.Error(err))
		return mcp.NewToolResultErrorFromErr("Failed to format emojis as CSV", err), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Workspace: %s\n", cache.Workspace)
	fmt.Fprintf(&sb, "# Total emojis: %d\n", len(filtered))
	fmt.Fprintf(&sb, "# Returned in this page: %d\n", len(page))
	if nextCursor != "" {
		fmt.Fprintf(&sb, "# Next cursor: %s\n", nextCursor)
	} else {
		sb.WriteString("# Next cursor: (none - last page)\n")
	}
	sb.Write(csvBytes)

	return mcp.NewToolResultText(sb.String()), nil
}

func filterEmojis(all map[string]provider.Emoji, emojiType, query string) []provider.Emoji {
	out := make([]provider.Emoji, 0, len(all))
	for name, e := range all {
		if query != "" && !matchesQuery(name, e.Aliases, query) {
			continue
		}
		switch emojiType {
		case "custom":
			if !e.IsCustom {
				continue
			}
		case "unicode":
			if e.IsCustom {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

func matchesQuery(name string, aliases []string, query string) bool {
	if strings.Contains(strings.ToLower(name), query) {
		return true
	}
	for _, a := range aliases {
		if strings.Contains(strings.ToLower(a), query) {
			return true
		}
	}
	return false
}

func paginateEmojis(emojis []provider.Emoji, cursor string, limit int) ([]provider.Emoji, string) {
	start := 0
	if cursor != "" {
		if decoded, err := base64.StdEncoding.DecodeString(cursor); err == nil {
			if idx, err := strconv.Atoi(string(decoded)); err == nil && idx >= 0 {
				start = idx
			}
		}
	}
	if start > len(emojis) {
		start = len(emojis)
	}

	end := min(start+limit, len(emojis))

	var next string
	if end < len(emojis) {
		next = base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(end)))
	}
	return emojis[start:end], next
}
