package handler

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/emojistudio/slack-emoji-bridge/pkg/credential"
	"github.com/emojistudio/slack-emoji-bridge/pkg/text"
)

type CurrentUser struct {
	UserID       string `csv:"user_id"`
	UserName     string `csv:"user_name"`
	TeamID       string `csv:"team_id"`
	TeamName     string `csv:"team_name"`
	WorkspaceURL string `csv:"workspace_url"`
	EnterpriseID string `csv:"enterprise_id,omitempty"`
}

type CredentialStatus struct {
	Workspace   string `csv:"workspace"`
	TokenPrefix string `csv:"token_prefix"`
	TeamID      string `csv:"team_id"`
	CapturedAt  string `csv:"captured_at"`
	Valid       bool   `csv:"valid"`
}

// AuthChecker opens a session with a credential and calls auth.test.
type AuthChecker interface {
	AuthTest(ctx context.Context, rec credential.Record) (*slack.AuthTestResponse, error)
}

// Disconnector forgets the resident credential and everything derived
// from it.
type Disconnector interface {
	ClearData(ctx context.Context) error
}

type AuthHandler struct {
	creds   CredentialSource
	checker AuthChecker
	clear   Disconnector
	logger  *zap.Logger
}

func NewAuthHandler(creds CredentialSource, checker AuthChecker, clear Disconnector, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		creds:   creds,
		checker: checker,
		clear:   clear,
		logger:  logger,
	}
}

// GetCurrentUserHandler returns information about the authenticated user
func (ah *AuthHandler) GetCurrentUserHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ah.logger.Debug("GetCurrentUserHandler called")

	rec, err := residentRecord(ah.creds)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("No usable Slack credential", err), nil
	}

	authResponse, err := ah.checker.AuthTest(ctx, rec)
	if err != nil {
		ah.logger.Error("AuthTestContext failed", zap.String("workspace", rec.Workspace), zap.Error(err))
		return mcp.NewToolResultErrorFromErr("Failed to get current user information", err), nil
	}

	ah.logger.Debug("Auth test successful",
		zap.String("user_id", authResponse.UserID),
		zap.String("team_id", authResponse.TeamID),
	)

	currentUser := CurrentUser{
		UserID:       authResponse.UserID,
		UserName:     authResponse.User,
		TeamID:       authResponse.TeamID,
		TeamName:     authResponse.Team,
		WorkspaceURL: authResponse.URL,
		EnterpriseID: authResponse.EnterpriseID,
	}
	return marshalCSV([]CurrentUser{currentUser}, "user information")
}

// CredentialStatusHandler describes the resident credential without
// revealing it.
func (ah *AuthHandler) CredentialStatusHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rec, err := ah.creds.Load()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to read credential", err), nil
	}
	if rec == nil {
		return mcp.NewToolResultText("No Slack workspace connected."), nil
	}
	status := CredentialStatus{
		Workspace:   rec.Workspace,
		TokenPrefix: text.TokenPrefix(rec.Token, 10),
		TeamID:      rec.TeamID,
		Valid:       rec.Valid(),
	}
	if !rec.CapturedAt.IsZero() {
		status.CapturedAt = rec.CapturedAt.UTC().Format(time.RFC3339)
	}
	return marshalCSV([]CredentialStatus{status}, "credential status")
}

func (ah *AuthHandler) DisconnectHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := ah.clear.ClearData(ctx); err != nil {
		ah.logger.Error("Failed to clear data", zap.Error(err))
		return mcp.NewToolResultErrorFromErr("Failed to disconnect", err), nil
	}
	return mcp.NewToolResultText("Disconnected. Stored credential and sync data were removed."), nil
}
