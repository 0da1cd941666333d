// Package ports declares the collaborator interfaces the orchestration core
// depends on. Implementations live outside this core: a ledger client, an
// NLP/transcription service, and per-platform notifiers.
package ports

import (
	"context"
	"errors"
)

// ErrApprovalNotSupported lets a Ledger decline the separate approval
// attestation; the approve flow treats it as a no-op, not a failure.
var ErrApprovalNotSupported = errors.New("ports: approval attestation not supported")

// WorkItem is one recognized unit of garden work.
type WorkItem struct {
	Species string `json:"species"`
	Count   int    `json:"count"`
}

// ParsedWork is the structured result of parsing a free-text report.
type ParsedWork struct {
	Title    string     `json:"title"`
	Items    []WorkItem `json:"items"`
	Feedback string     `json:"feedback,omitempty"`
}

// WorkSubmission is the payload attested on the ledger when work is approved.
type WorkSubmission struct {
	WorkID          string     `json:"work_id"`
	ActionID        int64      `json:"action_id"`
	GardenerAddress string     `json:"gardener_address"`
	GardenAddress   string     `json:"garden_address"`
	Title           string     `json:"title"`
	Items           []WorkItem `json:"items"`
	Feedback        string     `json:"feedback,omitempty"`
	MediaRefs       []string   `json:"media_refs,omitempty"`
}

// GardenInfo describes an on-ledger garden.
type GardenInfo struct {
	Address      string `json:"address"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	WorkActionID int64  `json:"work_action_id"`
}

// Ledger submits attestations and answers role-membership queries.
type Ledger interface {
	SubmitWork(ctx context.Context, submission WorkSubmission) (txHash string, err error)
	SubmitApproval(ctx context.Context, gardenAddress, workID string, approved bool) (txHash string, err error)
	IsOperator(ctx context.Context, gardenAddress, address string) (bool, error)
	IsGardener(ctx context.Context, gardenAddress, address string) (bool, error)
	GetGardenInfo(ctx context.Context, gardenAddress string) (*GardenInfo, error)
	ChainID(ctx context.Context) (int64, error)
	ClearCache()
}

// AI transcribes audio and extracts structured work from free text.
type AI interface {
	Transcribe(ctx context.Context, audioRef, mimeType string) (string, error)
	ParseWork(ctx context.Context, text string) (*ParsedWork, error)
	ModelLoaded(ctx context.Context) bool
}

// Notifier delivers a best-effort text message to a platform identity.
type Notifier interface {
	Send(ctx context.Context, platform, platformID, text string) error
}
