package handler

import (
	"errors"

	"github.com/gocarina/gocsv"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/emojistudio/slack-emoji-bridge/pkg/credential"
)

var errNotConnected = errors.New("no Slack workspace connected, open Slack in the browser or run import-curl")

// CredentialSource reports the resident credential, if any.
type CredentialSource interface {
	Load() (*credential.Record, error)
}

func residentRecord(creds CredentialSource) (credential.Record, error) {
	rec, err := creds.Load()
	if err != nil {
		return credential.Record{}, err
	}
	if rec == nil || !rec.Valid() {
		return credential.Record{}, errNotConnected
	}
	return *rec, nil
}

func marshalCSV[T any](rows []T, what string) (*mcp.CallToolResult, error) {
	csvBytes, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to format "+what+" as CSV", err), nil
	}
	return mcp.NewToolResultText(string(csvBytes)), nil
}
