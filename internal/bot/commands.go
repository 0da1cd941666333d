package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/greenledger/gardenbot/internal/message"
	"github.com/greenledger/gardenbot/internal/models"
	"github.com/greenledger/gardenbot/internal/ports"
	"github.com/greenledger/gardenbot/internal/ratelimit"
	"github.com/greenledger/gardenbot/internal/wallet"
	log "github.com/sirupsen/logrus"
)

const helpText = `Here's what I can do:

/start - create your account and custodial wallet
/join <garden address> - join a garden as a gardener
/status - show your account and garden
/pending - list work awaiting approval (operators)
/approve <work id> - approve a pending work report (operators)
/reject <work id> [reason] - reject a pending work report (operators)
/help - show this message

You can also just describe the work you did (text or voice) and I'll turn it
into a report for your garden's operator to approve.`

func (o *Orchestrator) handleHelp() handlerResult {
	return reply(helpText)
}

// handleStart creates the user and their custodial key on first contact.
// Repeat starts are a read-only welcome.
func (o *Orchestrator) handleStart(ctx context.Context, msg message.Inbound, user *models.User) handlerResult {
	if user != nil {
		return reply(fmt.Sprintf("Welcome back! Your address is %s. Send /help to see what I can do.", user.Address))
	}

	// Key generation is the expensive custodial operation; it draws from the
	// wallet class rather than the general command budget.
	probe := &models.User{Platform: msg.Platform, PlatformID: msg.Sender.PlatformID}
	if denied, result := o.consume(ctx, probe, ratelimit.ClassWallet); denied {
		return result
	}

	if o.vault == nil {
		return reply("Account creation is unavailable right now. Please try again later.")
	}

	privateKey, address, errGen := wallet.Generate()
	if errGen != nil {
		log.WithError(errGen).Error("bot: key generation failed")
		return reply(collaboratorFailure(errGen).Text)
	}
	envelope, errEncrypt := o.vault.Encrypt(privateKey)
	if errEncrypt != nil {
		log.WithError(errEncrypt).Error("bot: key encryption failed")
		return reply(collaboratorFailure(errEncrypt).Text)
	}

	newUser := &models.User{
		Platform:            msg.Platform,
		PlatformID:          msg.Sender.PlatformID,
		EncryptedPrivateKey: envelope,
		Address:             address,
		Role:                models.RoleGardener,
	}
	if errCreate := o.store.CreateUser(ctx, newUser); errCreate != nil {
		log.WithError(errCreate).Error("bot: create user failed")
		return reply(collaboratorFailure(errCreate).Text)
	}

	log.WithFields(log.Fields{
		"platform": msg.Platform,
		"user":     msg.Sender.PlatformID,
		"address":  address,
	}).Info("bot: user created")

	return reply(fmt.Sprintf(
		"Welcome to GardenBot! 🌱\n\nI've created your account. Your address is %s.\n\nNext, join a garden with /join <garden address>.",
		address))
}

// handleJoin validates the garden address, verifies it exists on the ledger,
// checks gardener membership fail-closed, and records the join.
func (o *Orchestrator) handleJoin(ctx context.Context, user *models.User, args []string) handlerResult {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return reply("Usage: /join <garden address>")
	}
	gardenAddress := strings.TrimSpace(args[0])
	if !wallet.IsHexAddress(gardenAddress) {
		return reply("That doesn't look like a garden address. Expected a 0x-prefixed 40-character hex address.")
	}

	if o.ledger == nil {
		return reply("The ledger is unavailable right now. Please try again later.")
	}

	info, errInfo := o.ledger.GetGardenInfo(ctx, gardenAddress)
	if errInfo != nil {
		log.WithError(errInfo).Warn("bot: garden lookup failed")
		return reply(collaboratorFailure(errInfo).Text)
	}
	if info == nil {
		return reply("Garden not found. Double-check the address and try again.")
	}

	isGardener, errRole := o.ledger.IsGardener(ctx, gardenAddress, user.Address)
	if errRole != nil {
		log.WithError(errRole).Warn("bot: gardener check failed")
		return reply(fmt.Sprintf("Couldn't verify your gardener membership: %v", errRole))
	}
	if !isGardener {
		return reply(fmt.Sprintf("You are not registered as a gardener for %s. Ask the garden's operator to add you.", gardenName(info)))
	}

	user.CurrentGarden = &gardenAddress
	if errUpdate := o.store.UpdateUser(ctx, user); errUpdate != nil {
		log.WithError(errUpdate).Error("bot: persist join failed")
		return reply(collaboratorFailure(errUpdate).Text)
	}

	return reply(fmt.Sprintf("You've joined %s. Describe the work you did (text or voice) to submit a report.", gardenName(info)))
}

// handleStatus reports the user's account, garden, and remaining submission
// budget. Ledger enrichments are best-effort.
func (o *Orchestrator) handleStatus(ctx context.Context, user *models.User) handlerResult {
	var b strings.Builder
	fmt.Fprintf(&b, "Address: %s\nRole: %s\n", user.Address, user.Role)

	if user.CurrentGarden == nil {
		b.WriteString("Garden: none (use /join <garden address>)\n")
	} else {
		garden := *user.CurrentGarden
		if o.ledger != nil {
			if info, errInfo := o.ledger.GetGardenInfo(ctx, garden); errInfo == nil && info != nil {
				garden = fmt.Sprintf("%s (%s)", info.Name, info.Address)
			}
		}
		fmt.Fprintf(&b, "Garden: %s\n", garden)
	}

	if o.ledger != nil {
		if chainID, errChain := o.ledger.ChainID(ctx); errChain == nil {
			fmt.Fprintf(&b, "Chain: %d\n", chainID)
		}
	}

	if o.limiter != nil {
		peek := o.limiter.Peek(ctx, rateKey(user), ratelimit.ClassSubmission)
		fmt.Fprintf(&b, "Submissions left this window: %d of %d", peek.Remaining, peek.Limit)
	}

	return reply(b.String())
}

func gardenName(info *ports.GardenInfo) string {
	if info == nil || strings.TrimSpace(info.Name) == "" {
		return "the garden"
	}
	return info.Name
}
