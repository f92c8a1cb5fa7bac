package audit

import (
	"context"

	"github.com/nerrad567/gray-logic-eufy/internal/bridges/eufy"
)

// CommandRecorder adapts a Repository to the bridge's AuditRecorder.
type CommandRecorder struct {
	repo Repository
}

// NewCommandRecorder returns a recorder writing to repo.
func NewCommandRecorder(repo Repository) *CommandRecorder {
	return &CommandRecorder{repo: repo}
}

// RecordCommand stores one executed command.
func (c *CommandRecorder) RecordCommand(ctx context.Context, rec eufy.CommandRecord) error {
	result := ResultSuccess
	if !rec.Success {
		result = ResultFailure
	}
	return c.repo.Create(ctx, &AuditLog{
		Action:   ActionCommand,
		DeviceID: rec.DeviceID,
		Command:  rec.Command,
		Source:   rec.Source,
		Result:   result,
		Error:    rec.Error,
	})
}

var _ eufy.AuditRecorder = (*CommandRecorder)(nil)
