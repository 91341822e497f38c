package latex

import (
	"context"
	"os/exec"
)

// Executor abstracts command execution for testability.
type Executor interface {
	// Run executes binary with args inside dir and returns combined output.
	Run(ctx context.Context, dir, binary string, args []string) ([]byte, error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, dir, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.Dir = dir
	return cmd.CombinedOutput()
}
