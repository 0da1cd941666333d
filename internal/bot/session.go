package bot

import (
	"encoding/json"
	"fmt"

	"github.com/greenledger/gardenbot/internal/models"
	"github.com/greenledger/gardenbot/internal/ports"
	"gorm.io/datatypes"
)

// WorkDraft is the session payload for the confirming_work step: the parsed
// report held while the gardener decides to confirm or cancel.
type WorkDraft struct {
	Title     string           `json:"title"`
	ActionID  int64            `json:"action_id"`
	Items     []ports.WorkItem `json:"items"`
	Feedback  string           `json:"feedback,omitempty"`
	MediaRefs []string         `json:"media_refs,omitempty"`
}

// sessionState is a handler's requested session row.
type sessionState struct {
	step  string
	draft any
}

// mutation is a handler's requested session change. clear wins over set.
type mutation struct {
	set   *sessionState
	clear bool
}

func setConfirmingWork(draft WorkDraft) mutation {
	return mutation{set: &sessionState{step: models.StepConfirmingWork, draft: draft}}
}

func clearSession() mutation {
	return mutation{clear: true}
}

func encodeDraft(draft any) (datatypes.JSON, error) {
	if draft == nil {
		return nil, nil
	}
	raw, errMarshal := json.Marshal(draft)
	if errMarshal != nil {
		return nil, fmt.Errorf("bot: encode draft: %w", errMarshal)
	}
	return datatypes.JSON(raw), nil
}

// decodeWorkDraft extracts a WorkDraft from a session row. It only succeeds
// when the step discriminator matches, so no other step's draft shape can be
// misread as work items.
func decodeWorkDraft(session *models.Session) (WorkDraft, bool) {
	var draft WorkDraft
	if session == nil || session.Step != models.StepConfirmingWork {
		return draft, false
	}
	if len(session.Draft) == 0 {
		return draft, false
	}
	if errUnmarshal := json.Unmarshal(session.Draft, &draft); errUnmarshal != nil {
		return draft, false
	}
	if len(draft.Items) == 0 {
		return draft, false
	}
	return draft, true
}
