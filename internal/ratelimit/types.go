package ratelimit

import (
	"context"
	"time"
)

// Class identifies an action class with an independent budget.
type Class string

// Action classes known to the orchestrator.
const (
	ClassMessage    Class = "message"
	ClassCommand    Class = "command"
	ClassSubmission Class = "submission"
	ClassVoice      Class = "voice"
	ClassApproval   Class = "approval"
	ClassWallet     Class = "wallet"
)

// Limit describes a per-class budget: at most Max requests per Window.
type Limit struct {
	Max    int
	Window time.Duration
}

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Limit     int
	ResetIn   time.Duration
}

// Limiter provides consuming rate limit checks.
type Limiter interface {
	Check(ctx context.Context, userID string, class Class, limit Limit, now time.Time) (Result, error)
}

// DefaultLimits returns the built-in per-class budgets. Approval is
// deliberately wider than submission: one operator disposes of many
// gardeners' work.
func DefaultLimits() map[Class]Limit {
	return map[Class]Limit{
		ClassMessage:    {Max: 20, Window: time.Minute},
		ClassCommand:    {Max: 15, Window: time.Minute},
		ClassSubmission: {Max: 10, Window: time.Hour},
		ClassVoice:      {Max: 15, Window: 10 * time.Minute},
		ClassApproval:   {Max: 120, Window: time.Hour},
		ClassWallet:     {Max: 5, Window: 24 * time.Hour},
	}
}
