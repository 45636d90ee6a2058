package mcpserver

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"infradesk/internal/logging"
)

// Approver decides whether a destructive tool call may proceed.
type Approver interface {
	Request(ctx context.Context, tool, description string) (bool, error)
}

// policyApprover answers every request with a fixed policy.
type policyApprover struct {
	allow bool
	log   *logrus.Entry
}

// NewApprover returns an Approver that allows destructive calls only when
// allow is set. Refusals are logged.
func NewApprover(allow bool, log *logrus.Entry) Approver {
	return &policyApprover{allow: allow, log: logging.OrDiscard(log)}
}

func (a *policyApprover) Request(ctx context.Context, tool, description string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !a.allow {
		a.log.WithFields(logrus.Fields{"tool": tool, "action": description}).Warn("destructive action refused")
		return false, fmt.Errorf("%s refused: destructive tools are disabled (set mcp.allow_destructive)", tool)
	}
	a.log.WithFields(logrus.Fields{"tool": tool, "action": description}).Info("destructive action allowed")
	return true, nil
}
