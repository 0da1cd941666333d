package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/greenledger/gardenbot/internal/models"
	"github.com/greenledger/gardenbot/internal/ports"
	"github.com/greenledger/gardenbot/internal/store"
	log "github.com/sirupsen/logrus"
)

// pendingPageSize bounds how many items /pending renders in detail.
const pendingPageSize = 5

const workNotFoundText = "Work not found or already processed."

// handlePending lists work awaiting disposition for the operator's garden,
// newest first, capped at pendingPageSize with an accurate overflow count.
func (o *Orchestrator) handlePending(ctx context.Context, user *models.User) handlerResult {
	if user.CurrentGarden == nil {
		return reply("You haven't joined a garden yet. Use /join <garden address> first.")
	}
	garden := *user.CurrentGarden

	if denied, result := o.requireOperator(ctx, user, garden); denied {
		return result
	}

	works, errList := o.store.ListPendingWorksByGarden(ctx, garden)
	if errList != nil {
		log.WithError(errList).Error("bot: list pending works failed")
		return reply(collaboratorFailure(errList).Text)
	}
	if len(works) == 0 {
		return reply("No work is awaiting approval. 🎉")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Pending work (%d):\n\n", len(works))
	shown := works
	if len(shown) > pendingPageSize {
		shown = shown[:pendingPageSize]
	}
	for _, work := range shown {
		var draft WorkDraft
		title := "Garden work report"
		if errUnmarshal := json.Unmarshal(work.Data, &draft); errUnmarshal == nil && draft.Title != "" {
			title = draft.Title
		}
		fmt.Fprintf(&b, "• %s — %s\n  submitted %s by %s\n  /approve %s  /reject %s\n",
			title, work.ID, work.CreatedAt.Format("2006-01-02 15:04"), work.GardenerAddress, work.ID, work.ID)
	}
	if extra := len(works) - len(shown); extra > 0 {
		fmt.Fprintf(&b, "\n... and %d more", extra)
	}
	return reply(b.String())
}

// handleApprove attests the work on the ledger and removes the pending row.
// The row is removed only after every ledger call has succeeded, so a failed
// attestation leaves the work available for retry.
func (o *Orchestrator) handleApprove(ctx context.Context, user *models.User, args []string) handlerResult {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return reply("Usage: /approve <work id>")
	}
	workID := strings.TrimSpace(args[0])

	work, errGet := o.store.GetPendingWork(ctx, workID)
	if errGet != nil {
		if errors.Is(errGet, store.ErrNotFound) {
			return reply(workNotFoundText)
		}
		log.WithError(errGet).Error("bot: load pending work failed")
		return reply(collaboratorFailure(errGet).Text)
	}

	garden := work.GardenAddress
	if garden == "" && user.CurrentGarden != nil {
		garden = *user.CurrentGarden
	}
	if garden == "" {
		return reply("This work has no garden and you haven't joined one. Use /join <garden address> first.")
	}

	if denied, result := o.requireOperator(ctx, user, garden); denied {
		return result
	}

	var draft WorkDraft
	if errUnmarshal := json.Unmarshal(work.Data, &draft); errUnmarshal != nil {
		log.WithError(errUnmarshal).WithField("work", work.ID).Error("bot: corrupt pending work data")
		return reply(collaboratorFailure(errUnmarshal).Text)
	}

	submission := ports.WorkSubmission{
		WorkID:          work.ID,
		ActionID:        work.ActionID,
		GardenerAddress: work.GardenerAddress,
		GardenAddress:   garden,
		Title:           draft.Title,
		Items:           draft.Items,
		Feedback:        draft.Feedback,
		MediaRefs:       draft.MediaRefs,
	}

	txHash, errSubmit := o.ledger.SubmitWork(ctx, submission)
	if errSubmit != nil {
		log.WithError(errSubmit).WithField("work", work.ID).Error("bot: work attestation failed")
		return reply(fmt.Sprintf(
			"The ledger rejected the work attestation: %v\n\nThe work is still pending; please retry. If this repeats, check the ledger for a duplicate attestation.", errSubmit))
	}

	if _, errApprove := o.ledger.SubmitApproval(ctx, garden, work.ID, true); errApprove != nil {
		if !errors.Is(errApprove, ports.ErrApprovalNotSupported) {
			log.WithError(errApprove).WithField("work", work.ID).Error("bot: approval attestation failed")
			return reply(fmt.Sprintf(
				"The approval attestation failed: %v\n\nThe work is still pending; please retry. If this repeats, check the ledger for a duplicate attestation.", errApprove))
		}
	}

	removed, errRemove := o.store.RemovePendingWork(ctx, work.ID)
	if errRemove != nil {
		log.WithError(errRemove).WithField("work", work.ID).Error("bot: remove pending work failed")
		return reply(collaboratorFailure(errRemove).Text)
	}
	if !removed {
		return reply(workNotFoundText)
	}

	o.notifySubmitter(ctx, work, fmt.Sprintf("Your work report %q was approved. ✅", draft.Title))

	return reply(fmt.Sprintf("Approved. Attestation recorded (tx %s).", txHash))
}

// handleReject removes the pending row without attesting the work and tells
// the submitter why.
func (o *Orchestrator) handleReject(ctx context.Context, user *models.User, args []string) handlerResult {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return reply("Usage: /reject <work id> [reason]")
	}
	workID := strings.TrimSpace(args[0])
	reason := strings.TrimSpace(strings.Join(args[1:], " "))
	if reason == "" {
		reason = "No reason provided"
	}

	work, errGet := o.store.GetPendingWork(ctx, workID)
	if errGet != nil {
		if errors.Is(errGet, store.ErrNotFound) {
			return reply(workNotFoundText)
		}
		log.WithError(errGet).Error("bot: load pending work failed")
		return reply(collaboratorFailure(errGet).Text)
	}

	garden := work.GardenAddress
	if garden == "" && user.CurrentGarden != nil {
		garden = *user.CurrentGarden
	}
	if garden == "" {
		return reply("This work has no garden and you haven't joined one. Use /join <garden address> first.")
	}

	if denied, result := o.requireOperator(ctx, user, garden); denied {
		return result
	}

	removed, errRemove := o.store.RemovePendingWork(ctx, work.ID)
	if errRemove != nil {
		log.WithError(errRemove).WithField("work", work.ID).Error("bot: remove pending work failed")
		return reply(collaboratorFailure(errRemove).Text)
	}
	if !removed {
		return reply(workNotFoundText)
	}

	var draft WorkDraft
	title := "your work report"
	if errUnmarshal := json.Unmarshal(work.Data, &draft); errUnmarshal == nil && draft.Title != "" {
		title = fmt.Sprintf("%q", draft.Title)
	}
	o.notifySubmitter(ctx, work, fmt.Sprintf("Your work report %s was rejected: %s", title, reason))

	return reply(fmt.Sprintf("Rejected with reason: %s", reason))
}

// requireOperator verifies operator membership fail-closed: any verification
// error or a negative answer denies the action.
func (o *Orchestrator) requireOperator(ctx context.Context, user *models.User, garden string) (bool, handlerResult) {
	if o.ledger == nil {
		return true, reply("The ledger is unavailable, so operator permissions can't be verified right now.")
	}
	isOperator, errRole := o.ledger.IsOperator(ctx, garden, user.Address)
	if errRole != nil {
		log.WithError(errRole).Warn("bot: operator check failed")
		return true, reply(fmt.Sprintf("Couldn't verify your operator role: %v", errRole))
	}
	if !isOperator {
		return true, reply("Only the garden's operators can do that.")
	}
	return false, handlerResult{}
}

// notifySubmitter is strictly best-effort: a failed notification never rolls
// back the disposition it follows.
func (o *Orchestrator) notifySubmitter(ctx context.Context, work *models.PendingWork, text string) {
	if o.notifier == nil {
		return
	}
	if errSend := o.notifier.Send(ctx, work.GardenerPlatform, work.GardenerPlatformID, text); errSend != nil {
		log.WithError(errSend).WithField("work", work.ID).Warn("bot: submitter notification failed")
	}
}
