package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/greenledger/gardenbot/internal/message"
	"github.com/greenledger/gardenbot/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// handleWorkReport parses a free-text report into work items and, when at
// least one item is recognized, parks them in the session for confirmation.
func (o *Orchestrator) handleWorkReport(ctx context.Context, user *models.User, text string) handlerResult {
	if strings.TrimSpace(text) == "" {
		return reply("I couldn't identify any garden tasks in your report. Please describe the work you did.")
	}
	if o.ai == nil {
		return reply("Report parsing is not available right now. Please try again later.")
	}

	parsed, errParse := o.ai.ParseWork(ctx, text)
	if errParse != nil {
		log.WithError(errParse).Warn("bot: work parsing failed")
		return reply(collaboratorFailure(errParse).Text)
	}
	if parsed == nil || len(parsed.Items) == 0 {
		return reply("I couldn't identify any garden tasks in your report. Please describe the work you did.")
	}

	draft := WorkDraft{
		Title:    parsed.Title,
		Items:    parsed.Items,
		Feedback: parsed.Feedback,
	}
	if draft.Title == "" {
		draft.Title = "Garden work report"
	}

	// The ledger action id is resolved now, while the garden is known, so
	// confirmation needs no further ledger round-trip.
	if o.ledger != nil && user.CurrentGarden != nil {
		if info, errInfo := o.ledger.GetGardenInfo(ctx, *user.CurrentGarden); errInfo == nil && info != nil {
			draft.ActionID = info.WorkActionID
		}
	}

	var b strings.Builder
	b.WriteString("Here's what I understood:\n\n")
	fmt.Fprintf(&b, "%s\n", draft.Title)
	for _, item := range draft.Items {
		fmt.Fprintf(&b, "• %s × %d\n", item.Species, item.Count)
	}
	if draft.Feedback != "" {
		fmt.Fprintf(&b, "\nNotes: %s\n", draft.Feedback)
	}
	b.WriteString("\nSubmit this for approval?")

	return handlerResult{
		response: message.Response{
			Text: b.String(),
			Buttons: []message.Button{
				{Label: "✅ Submit", CallbackData: CallbackConfirmSubmission},
				{Label: "❌ Cancel", CallbackData: CallbackCancelSubmission},
			},
		},
		mutation: setConfirmingWork(draft),
	}
}

// handleConfirmSubmission turns the session draft into a durable pending work
// row and clears the session. An empty or mismatched draft is an expired
// session: the row is cleared and nothing is created.
func (o *Orchestrator) handleConfirmSubmission(ctx context.Context, user *models.User, session *models.Session) handlerResult {
	draft, ok := decodeWorkDraft(session)
	if !ok {
		return handlerResult{
			response: message.Response{Text: "Session expired. Please send your report again."},
			mutation: clearSession(),
		}
	}
	if user.CurrentGarden == nil {
		return handlerResult{
			response: message.Response{Text: "You haven't joined a garden yet. Use /join <garden address> first."},
			mutation: clearSession(),
		}
	}

	data, errMarshal := json.Marshal(draft)
	if errMarshal != nil {
		return reply(collaboratorFailure(errMarshal).Text)
	}

	work := &models.PendingWork{
		ID:                 uuid.NewString(),
		ActionID:           draft.ActionID,
		GardenerAddress:    user.Address,
		GardenerPlatform:   user.Platform,
		GardenerPlatformID: user.PlatformID,
		GardenAddress:      *user.CurrentGarden,
		Data:               datatypes.JSON(data),
	}
	if errAdd := o.store.AddPendingWork(ctx, work); errAdd != nil {
		log.WithError(errAdd).Error("bot: add pending work failed")
		return reply(collaboratorFailure(errAdd).Text)
	}

	log.WithFields(log.Fields{
		"work":   work.ID,
		"garden": work.GardenAddress,
	}).Info("bot: work submitted for approval")

	return handlerResult{
		response: message.Response{Text: fmt.Sprintf(
			"Your report has been submitted for approval. 🌿\n\nWork id: %s\nAn operator will review it shortly.", work.ID)},
		mutation: clearSession(),
	}
}
