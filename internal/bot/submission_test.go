package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/greenledger/gardenbot/internal/message"
	"github.com/greenledger/gardenbot/internal/models"
	"github.com/greenledger/gardenbot/internal/ports"
	"github.com/greenledger/gardenbot/internal/ratelimit"
)

func TestTextRequiresAccountAndGarden(t *testing.T) {
	bot := newTestBot(t, nil)

	resp := bot.orch.Handle(context.Background(), inboundMsg("u1", message.NewText("planted roses")))
	if !strings.Contains(resp.Text, "run /start first") {
		t.Fatalf("text without account: %q", resp.Text)
	}

	bot.createUser(t, "u1", nil, models.RoleGardener)
	resp = bot.orch.Handle(context.Background(), inboundMsg("u1", message.NewText("planted roses")))
	if !strings.Contains(resp.Text, "haven't joined a garden") {
		t.Fatalf("text without garden: %q", resp.Text)
	}
}

func TestTextWithNoRecognizedTasks(t *testing.T) {
	bot := newTestBot(t, nil)
	garden := testGarden
	bot.createUser(t, "u1", &garden, models.RoleGardener)
	bot.ai.parsed = &ports.ParsedWork{Items: nil}

	resp := bot.orch.Handle(context.Background(), inboundMsg("u1", message.NewText("hello there")))
	if !strings.Contains(resp.Text, "couldn't identify any garden tasks") {
		t.Fatalf("no-task text: %q", resp.Text)
	}

	session, errGet := bot.store.GetSession(context.Background(), "telegram", "u1")
	if errGet != nil {
		t.Fatalf("get session: %v", errGet)
	}
	if session != nil {
		t.Fatalf("session created for unrecognized report")
	}
}

func TestTextWithTasksStartsConfirmation(t *testing.T) {
	bot := newTestBot(t, nil)
	garden := testGarden
	bot.createUser(t, "u1", &garden, models.RoleGardener)
	bot.ai.parsed = &ports.ParsedWork{
		Title: "Planted roses",
		Items: []ports.WorkItem{{Species: "rose", Count: 12}},
	}

	resp := bot.orch.Handle(context.Background(), inboundMsg("u1", message.NewText("planted 12 roses")))
	if !strings.Contains(resp.Text, "rose") {
		t.Fatalf("confirmation text: %q", resp.Text)
	}
	if len(resp.Buttons) != 2 {
		t.Fatalf("buttons = %d, want 2", len(resp.Buttons))
	}
	if resp.Buttons[0].CallbackData != CallbackConfirmSubmission || resp.Buttons[1].CallbackData != CallbackCancelSubmission {
		t.Fatalf("unexpected callback payloads: %+v", resp.Buttons)
	}

	session, _ := bot.store.GetSession(context.Background(), "telegram", "u1")
	if session == nil || session.Step != models.StepConfirmingWork {
		t.Fatalf("session step = %+v, want confirming_work", session)
	}
	draft, ok := decodeWorkDraft(session)
	if !ok {
		t.Fatalf("draft not decodable")
	}
	if draft.ActionID != 7 {
		t.Fatalf("actionID = %d, want 7 from garden info", draft.ActionID)
	}
}

func TestConfirmCreatesPendingWorkAndClearsSession(t *testing.T) {
	bot := newTestBot(t, nil)
	garden := testGarden
	user := bot.createUser(t, "u1", &garden, models.RoleGardener)
	bot.ai.parsed = &ports.ParsedWork{
		Title: "Planted roses",
		Items: []ports.WorkItem{{Species: "rose", Count: 12}},
	}

	bot.orch.Handle(context.Background(), inboundMsg("u1", message.NewText("planted 12 roses")))
	resp := bot.orch.Handle(context.Background(), inboundMsg("u1", message.NewCallback(CallbackConfirmSubmission)))
	if !strings.Contains(resp.Text, "submitted for approval") {
		t.Fatalf("confirm: %q", resp.Text)
	}

	works, errList := bot.store.ListPendingWorksByGarden(context.Background(), testGarden)
	if errList != nil {
		t.Fatalf("list works: %v", errList)
	}
	if len(works) != 1 {
		t.Fatalf("pending works = %d, want 1", len(works))
	}
	if works[0].GardenerAddress != user.Address {
		t.Fatalf("gardener address = %q, want %q", works[0].GardenerAddress, user.Address)
	}
	if works[0].ActionID != 7 {
		t.Fatalf("actionID = %d, want 7", works[0].ActionID)
	}

	session, _ := bot.store.GetSession(context.Background(), "telegram", "u1")
	if session != nil {
		t.Fatalf("session not cleared after confirm")
	}
}

func TestConfirmWithoutSessionIsExpired(t *testing.T) {
	bot := newTestBot(t, nil)
	garden := testGarden
	bot.createUser(t, "u1", &garden, models.RoleGardener)

	resp := bot.orch.Handle(context.Background(), inboundMsg("u1", message.NewCallback(CallbackConfirmSubmission)))
	if !strings.Contains(resp.Text, "Session expired") {
		t.Fatalf("confirm without session: %q", resp.Text)
	}

	works, _ := bot.store.ListPendingWorksByGarden(context.Background(), testGarden)
	if len(works) != 0 {
		t.Fatalf("pending works = %d, want 0", len(works))
	}
}

func TestConfirmWithEmptyDraftIsExpired(t *testing.T) {
	bot := newTestBot(t, nil)
	garden := testGarden
	bot.createUser(t, "u1", &garden, models.RoleGardener)

	// A session row exists but carries no usable draft.
	if errSet := bot.store.SetSession(context.Background(), &models.Session{
		Platform:   "telegram",
		PlatformID: "u1",
		Step:       models.StepConfirmingWork,
		UpdatedAt:  time.Now(),
	}); errSet != nil {
		t.Fatalf("set session: %v", errSet)
	}

	resp := bot.orch.Handle(context.Background(), inboundMsg("u1", message.NewCallback(CallbackConfirmSubmission)))
	if !strings.Contains(resp.Text, "Session expired") {
		t.Fatalf("confirm with empty draft: %q", resp.Text)
	}

	works, _ := bot.store.ListPendingWorksByGarden(context.Background(), testGarden)
	if len(works) != 0 {
		t.Fatalf("pending work created from empty draft")
	}
	session, _ := bot.store.GetSession(context.Background(), "telegram", "u1")
	if session != nil {
		t.Fatalf("expired session not cleared")
	}
}

func TestCancelClearsSessionFromAnyStep(t *testing.T) {
	bot := newTestBot(t, nil)
	garden := testGarden
	bot.createUser(t, "u1", &garden, models.RoleGardener)
	bot.ai.parsed = &ports.ParsedWork{Items: []ports.WorkItem{{Species: "fern", Count: 1}}}

	bot.orch.Handle(context.Background(), inboundMsg("u1", message.NewText("planted a fern")))
	resp := bot.orch.Handle(context.Background(), inboundMsg("u1", message.NewCallback(CallbackCancelSubmission)))
	if !strings.Contains(resp.Text, "cancelled") {
		t.Fatalf("cancel: %q", resp.Text)
	}

	session, _ := bot.store.GetSession(context.Background(), "telegram", "u1")
	if session != nil {
		t.Fatalf("session not cleared on cancel")
	}
}

func TestCallbackWithoutAccountIsExpired(t *testing.T) {
	bot := newTestBot(t, nil)

	resp := bot.orch.Handle(context.Background(), inboundMsg("ghost", message.NewCallback(CallbackConfirmSubmission)))
	if !strings.Contains(resp.Text, "Session expired") {
		t.Fatalf("callback without account: %q", resp.Text)
	}
}

func TestUnrecognizedCallback(t *testing.T) {
	bot := newTestBot(t, nil)
	bot.createUser(t, "u1", nil, models.RoleGardener)

	resp := bot.orch.Handle(context.Background(), inboundMsg("u1", message.NewCallback("launch_rockets")))
	if !strings.Contains(resp.Text, "Unrecognized action") {
		t.Fatalf("unknown callback: %q", resp.Text)
	}
}

func TestVoiceWithoutTranscriberIsReported(t *testing.T) {
	bot := newTestBot(t, nil)
	garden := testGarden
	bot.createUser(t, "u1", &garden, models.RoleGardener)
	bot.ai.loaded = false

	resp := bot.orch.Handle(context.Background(), inboundMsg("u1", message.NewVoice("audio-1", "audio/ogg")))
	if !strings.Contains(resp.Text, "transcription is not available") {
		t.Fatalf("voice without transcriber: %q", resp.Text)
	}
}

func TestVoiceFlowsThroughTranscription(t *testing.T) {
	bot := newTestBot(t, nil)
	garden := testGarden
	bot.createUser(t, "u1", &garden, models.RoleGardener)
	bot.ai.transcript = "planted 3 oaks"
	bot.ai.parsed = &ports.ParsedWork{Items: []ports.WorkItem{{Species: "oak", Count: 3}}}

	resp := bot.orch.Handle(context.Background(), inboundMsg("u1", message.NewVoice("audio-1", "audio/ogg")))
	if !strings.Contains(resp.Text, "oak") {
		t.Fatalf("voice confirmation: %q", resp.Text)
	}

	session, _ := bot.store.GetSession(context.Background(), "telegram", "u1")
	if session == nil || session.Step != models.StepConfirmingWork {
		t.Fatalf("voice report did not reach confirmation step")
	}
}

func TestSubmissionRateLimitOnConfirm(t *testing.T) {
	bot := newTestBot(t, map[ratelimit.Class]ratelimit.Limit{
		ratelimit.ClassSubmission: {Max: 1, Window: time.Hour},
	})
	garden := testGarden
	bot.createUser(t, "u1", &garden, models.RoleGardener)
	bot.ai.parsed = &ports.ParsedWork{Items: []ports.WorkItem{{Species: "rose", Count: 1}}}

	bot.orch.Handle(context.Background(), inboundMsg("u1", message.NewText("planted a rose")))
	bot.orch.Handle(context.Background(), inboundMsg("u1", message.NewCallback(CallbackConfirmSubmission)))

	bot.orch.Handle(context.Background(), inboundMsg("u1", message.NewText("planted another rose")))
	resp := bot.orch.Handle(context.Background(), inboundMsg("u1", message.NewCallback(CallbackConfirmSubmission)))
	if !strings.Contains(resp.Text, "Too many requests") {
		t.Fatalf("second confirm not rate limited: %q", resp.Text)
	}

	works, _ := bot.store.ListPendingWorksByGarden(context.Background(), testGarden)
	if len(works) != 1 {
		t.Fatalf("pending works = %d, want 1", len(works))
	}
}
