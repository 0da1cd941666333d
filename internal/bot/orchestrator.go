// Package bot contains the message orchestration core: a single Handle entry
// point that resolves the acting user, enforces rate limits, dispatches to
// command handlers, and applies their session mutations.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/greenledger/gardenbot/internal/message"
	"github.com/greenledger/gardenbot/internal/models"
	"github.com/greenledger/gardenbot/internal/ports"
	"github.com/greenledger/gardenbot/internal/ratelimit"
	"github.com/greenledger/gardenbot/internal/store"
	"github.com/greenledger/gardenbot/internal/vault"
	log "github.com/sirupsen/logrus"
)

// Callback payloads understood by the orchestrator.
const (
	CallbackConfirmSubmission = "confirm_submission"
	CallbackCancelSubmission  = "cancel_submission"
)

// Orchestrator routes normalized inbound messages to command handlers. It is
// the only public entry point of the core and never returns an error to its
// caller: every failure becomes a user-facing response.
type Orchestrator struct {
	store    *store.Store
	limiter  *ratelimit.Manager
	vault    *vault.Vault
	ledger   ports.Ledger
	ai       ports.AI
	notifier ports.Notifier
	nowFn    func() time.Time
}

// New constructs an Orchestrator. The ledger, ai, and notifier collaborators
// may be nil; handlers that need an absent collaborator report it to the user
// instead of failing.
func New(st *store.Store, limiter *ratelimit.Manager, v *vault.Vault, ledger ports.Ledger, ai ports.AI, notifier ports.Notifier) *Orchestrator {
	return &Orchestrator{
		store:    st,
		limiter:  limiter,
		vault:    v,
		ledger:   ledger,
		ai:       ai,
		notifier: notifier,
		nowFn:    time.Now,
	}
}

// handlerResult couples a response with an optional session mutation.
type handlerResult struct {
	response message.Response
	mutation mutation
}

func reply(text string) handlerResult {
	return handlerResult{response: message.Response{Text: text}}
}

// Handle processes one inbound message and returns the response to deliver.
func (o *Orchestrator) Handle(ctx context.Context, msg message.Inbound) message.Response {
	if o == nil || o.store == nil {
		return message.Response{Text: "Something went wrong. Please try again later."}
	}

	user, errUser := o.loadUser(ctx, msg.Platform, msg.Sender.PlatformID)
	if errUser != nil {
		log.WithError(errUser).WithFields(log.Fields{
			"platform": msg.Platform,
			"user":     msg.Sender.PlatformID,
		}).Error("bot: load user failed")
		return collaboratorFailure(errUser)
	}

	result := o.dispatch(ctx, msg, user)

	if errApply := o.applyMutation(ctx, msg.Platform, msg.Sender.PlatformID, result.mutation); errApply != nil {
		log.WithError(errApply).WithFields(log.Fields{
			"platform": msg.Platform,
			"user":     msg.Sender.PlatformID,
		}).Error("bot: apply session mutation failed")
		return collaboratorFailure(errApply)
	}

	return result.response
}

func (o *Orchestrator) dispatch(ctx context.Context, msg message.Inbound, user *models.User) handlerResult {
	switch msg.Content.Kind {
	case message.KindCommand:
		if msg.Content.Command == nil {
			return reply("Unsupported message type.")
		}
		return o.handleCommand(ctx, msg, user, *msg.Content.Command)
	case message.KindText:
		if msg.Content.Text == nil {
			return reply("Unsupported message type.")
		}
		return o.handleText(ctx, msg, user, msg.Content.Text.Text)
	case message.KindVoice:
		if msg.Content.Voice == nil {
			return reply("Unsupported message type.")
		}
		return o.handleVoice(ctx, msg, user, *msg.Content.Voice)
	case message.KindCallback:
		if msg.Content.Callback == nil {
			return reply("Unsupported message type.")
		}
		return o.handleCallback(ctx, msg, user, *msg.Content.Callback)
	default:
		return reply("Unsupported message type.")
	}
}

func (o *Orchestrator) handleCommand(ctx context.Context, msg message.Inbound, user *models.User, cmd message.Command) handlerResult {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(cmd.Name), "/"))

	// /start and /help are the only commands valid without an account.
	switch name {
	case "start":
		return o.handleStart(ctx, msg, user)
	case "help":
		return o.handleHelp()
	}

	if user == nil {
		return reply("You don't have an account yet. Please run /start first.")
	}

	if denied, result := o.consume(ctx, user, ratelimit.ClassCommand); denied {
		return result
	}
	if name == "approve" || name == "reject" {
		if denied, result := o.consume(ctx, user, ratelimit.ClassApproval); denied {
			return result
		}
	}

	switch name {
	case "join":
		return o.handleJoin(ctx, user, cmd.Args)
	case "status":
		return o.handleStatus(ctx, user)
	case "pending":
		return o.handlePending(ctx, user)
	case "approve":
		return o.handleApprove(ctx, user, cmd.Args)
	case "reject":
		return o.handleReject(ctx, user, cmd.Args)
	default:
		return reply(fmt.Sprintf("Unknown command /%s. Send /help for the list of commands.", name))
	}
}

func (o *Orchestrator) handleText(ctx context.Context, msg message.Inbound, user *models.User, text string) handlerResult {
	if user == nil {
		return reply("You don't have an account yet. Please run /start first.")
	}
	if user.CurrentGarden == nil {
		return reply("You haven't joined a garden yet. Use /join <garden address> first.")
	}
	if denied, result := o.consume(ctx, user, ratelimit.ClassMessage); denied {
		return result
	}
	return o.handleWorkReport(ctx, user, text)
}

func (o *Orchestrator) handleVoice(ctx context.Context, msg message.Inbound, user *models.User, voice message.Voice) handlerResult {
	if user == nil {
		return reply("You don't have an account yet. Please run /start first.")
	}
	if user.CurrentGarden == nil {
		return reply("You haven't joined a garden yet. Use /join <garden address> first.")
	}
	if denied, result := o.consume(ctx, user, ratelimit.ClassVoice); denied {
		return result
	}
	if o.ai == nil || !o.ai.ModelLoaded(ctx) {
		return reply("Voice transcription is not available right now. Please type your report instead.")
	}
	text, errTranscribe := o.ai.Transcribe(ctx, voice.AudioRef, voice.MimeType)
	if errTranscribe != nil {
		log.WithError(errTranscribe).Warn("bot: transcription failed")
		return reply(collaboratorFailure(errTranscribe).Text)
	}
	return o.handleWorkReport(ctx, user, text)
}

func (o *Orchestrator) handleCallback(ctx context.Context, msg message.Inbound, user *models.User, callback message.Callback) handlerResult {
	if user == nil {
		return reply("Session expired. Please run /start first.")
	}

	session, errSession := o.store.GetSession(ctx, user.Platform, user.PlatformID)
	if errSession != nil {
		return reply(collaboratorFailure(errSession).Text)
	}

	switch callback.Data {
	case CallbackConfirmSubmission:
		if session == nil {
			return reply("Session expired. Please send your report again.")
		}
		if denied, result := o.consume(ctx, user, ratelimit.ClassSubmission); denied {
			return result
		}
		return o.handleConfirmSubmission(ctx, user, session)
	case CallbackCancelSubmission:
		return handlerResult{
			response: message.Response{Text: "Submission cancelled."},
			mutation: clearSession(),
		}
	default:
		return reply("Unrecognized action.")
	}
}

// consume takes one token from the class bucket. The boolean is true when
// the request must stop with the returned rate-limit response.
func (o *Orchestrator) consume(ctx context.Context, user *models.User, class ratelimit.Class) (bool, handlerResult) {
	if o.limiter == nil {
		return false, handlerResult{}
	}
	result := o.limiter.Check(ctx, rateKey(user), class, nil)
	if result.Allowed {
		return false, handlerResult{}
	}
	wait := result.ResetIn.Round(time.Second)
	if wait <= 0 {
		wait = time.Second
	}
	return true, reply(fmt.Sprintf("Too many requests. Please try again in %s.", wait))
}

func rateKey(user *models.User) string {
	return user.Platform + ":" + user.PlatformID
}

// loadUser resolves the acting user and transparently migrates legacy
// plaintext keys to vault envelopes. Absence is a valid state, not an error.
func (o *Orchestrator) loadUser(ctx context.Context, platform, platformID string) (*models.User, error) {
	user, errGet := o.store.GetUser(ctx, platform, platformID)
	if errGet != nil {
		if errors.Is(errGet, store.ErrNotFound) {
			return nil, nil
		}
		return nil, errGet
	}

	if o.vault != nil && !vault.IsEncryptedEnvelope(user.EncryptedPrivateKey) {
		envelope, errEncrypt := o.vault.Encrypt(user.EncryptedPrivateKey)
		if errEncrypt == nil {
			user.EncryptedPrivateKey = envelope
			if errUpdate := o.store.UpdateUser(ctx, user); errUpdate != nil {
				log.WithError(errUpdate).Warn("bot: persist key migration failed")
			}
		} else {
			log.WithError(errEncrypt).Warn("bot: legacy key migration failed")
		}
	}

	return user, nil
}

// applyMutation persists the handler's session change. Clear wins over set.
func (o *Orchestrator) applyMutation(ctx context.Context, platform, platformID string, m mutation) error {
	if m.clear {
		return o.store.ClearSession(ctx, platform, platformID)
	}
	if m.set == nil {
		return nil
	}
	draft, errEncode := encodeDraft(m.set.draft)
	if errEncode != nil {
		return errEncode
	}
	return o.store.SetSession(ctx, &models.Session{
		Platform:   platform,
		PlatformID: platformID,
		Step:       m.set.step,
		Draft:      draft,
		UpdatedAt:  o.nowFn(),
	})
}

// collaboratorFailure converts an internal error into a retryable user
// response that keeps the underlying reason visible.
func collaboratorFailure(err error) message.Response {
	return message.Response{Text: fmt.Sprintf("Something went wrong, please try again. (%v)", err)}
}
