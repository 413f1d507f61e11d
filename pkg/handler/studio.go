package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/emojistudio/slack-emoji-bridge/pkg/studio"
)

type Syncer interface {
	Sync(ctx context.Context) (*studio.Envelope, error)
	Settings() (studio.Settings, error)
	Configure(enabled bool, intervalMinutes int) (studio.Settings, error)
}

type SyncSettingsCSV struct {
	AutoSync        bool   `csv:"auto_sync"`
	IntervalMinutes int    `csv:"interval_minutes"`
	State           string `csv:"state"`
	LastAttempt     string `csv:"last_attempt"`
	LastSuccess     string `csv:"last_success"`
	LastError       string `csv:"last_error"`
}

type StudioHandler struct {
	syncer Syncer
	logger *zap.Logger
}

func NewStudioHandler(s Syncer, logger *zap.Logger) *StudioHandler {
	return &StudioHandler{syncer: s, logger: logger}
}

func (sh *StudioHandler) SyncHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	env, err := sh.syncer.Sync(ctx)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Sync failed", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Synced %d custom emoji from %s to Emoji Studio.", env.EmojiCount, env.Workspace)), nil
}

func (sh *StudioHandler) SettingsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := sh.syncer.Settings()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to read sync settings", err), nil
	}
	args := request.GetArguments()
	_, hasEnabled := args["auto_sync"]
	_, hasInterval := args["interval_minutes"]
	if hasEnabled || hasInterval {
		interval := request.GetInt("interval_minutes", 0)
		if interval < 0 {
			return mcp.NewToolResultError("interval_minutes must not be negative"), nil
		}
		if st, err = sh.syncer.Configure(request.GetBool("auto_sync", st.AutoSyncEnabled), interval); err != nil {
			return mcp.NewToolResultErrorFromErr("Failed to save sync settings", err), nil
		}
	}
	return marshalCSV([]SyncSettingsCSV{settingsRow(st)}, "sync settings")
}

func settingsRow(st studio.Settings) SyncSettingsCSV {
	row := SyncSettingsCSV{
		AutoSync:        st.AutoSyncEnabled,
		IntervalMinutes: st.IntervalMinutes,
		State:           string(st.State),
		LastError:       st.LastError,
	}
	if !st.LastAttempt.IsZero() {
		row.LastAttempt = st.LastAttempt.UTC().Format(time.RFC3339)
	}
	if !st.LastSuccess.IsZero() {
		row.LastSuccess = st.LastSuccess.UTC().Format(time.RFC3339)
	}
	return row
}
