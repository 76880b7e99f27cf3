package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/alem-hub/academy-finance/internal/application/validation"
	"github.com/alem-hub/academy-finance/internal/domain/partner"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
	"github.com/alem-hub/academy-finance/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC PARTNER COMMAND
// Keeps the local partner row in step with the external identity service.
// Balances are never touched here.
// ══════════════════════════════════════════════════════════════════════════════

// SyncPartnerCommand carries a user from the identity service.
type SyncPartnerCommand struct {
	UserID string `json:"userId" validate:"notblank"`
	Name   string `json:"name" validate:"notblank,max=200"`
	Role   string `json:"role" validate:"role"`

	Caller shared.Caller `json:"-"`
}

// Validate validates the command.
func (c SyncPartnerCommand) Validate() error {
	return validation.Struct(c)
}

// SyncPartnerResult contains the stored partner.
type SyncPartnerResult struct {
	Partner *partner.Partner
	Created bool
}

// SyncPartnerHandler handles the SyncPartnerCommand.
type SyncPartnerHandler struct {
	deps Deps
}

// NewSyncPartnerHandler creates a new handler.
func NewSyncPartnerHandler(deps Deps) *SyncPartnerHandler {
	return &SyncPartnerHandler{deps: deps}
}

// Handle creates the partner or refreshes its name and role.
// Users that are not OWNER or PARTNER are rejected with ErrPartnerNotEnabled.
func (h *SyncPartnerHandler) Handle(ctx context.Context, cmd SyncPartnerCommand) (*SyncPartnerResult, error) {
	if err := cmd.Caller.Authorize("sync_partner", shared.OwnerOnly...); err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	role, _ := shared.ParseRole(cmd.Role)
	name := strings.TrimSpace(cmd.Name)

	var result *SyncPartnerResult
	err := h.deps.atomically(ctx, []string{partnerLockKey(cmd.UserID)}, func(ctx context.Context) error {
		now := h.deps.now()

		p, err := h.deps.Partners.GetForUpdate(ctx, cmd.UserID)
		switch {
		case shared.IsNotFound(err):
			p, err = partner.NewPartner(cmd.UserID, name, role, now)
			if err != nil {
				return err
			}
			result = &SyncPartnerResult{Partner: p, Created: true}
		case err != nil:
			return fmt.Errorf("sync_partner: load partner: %w", err)
		default:
			if role != shared.RoleOwner && role != shared.RolePartner {
				return shared.ErrPartnerNotEnabled
			}
			p.Name = name
			p.Role = role
			p.UpdatedAt = now
			result = &SyncPartnerResult{Partner: p}
		}

		if err := h.deps.Partners.Save(ctx, p); err != nil {
			return fmt.Errorf("sync_partner: save partner: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.log().Info("partner synced",
		logger.PartnerID(result.Partner.ID),
		logger.Bool("created", result.Created),
	)
	return result, nil
}
