package command

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alem-hub/academy-finance/internal/application/validation"
	"github.com/alem-hub/academy-finance/internal/domain/settings"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
	"github.com/alem-hub/academy-finance/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE SETTINGS COMMANDS
// The admin write path of the configuration store.
// ══════════════════════════════════════════════════════════════════════════════

// ShareInput is one row of a submitted split table.
type ShareInput struct {
	PartnerID  string          `json:"partnerId" validate:"notblank"`
	Percentage decimal.Decimal `json:"percentage" validate:"gt=0,lte=100"`
}

// UpdateSplitConfigCommand replaces the split configuration.
// A non-empty ExpenseShares installs the dynamic table; otherwise Legacy is installed.
type UpdateSplitConfigCommand struct {
	ExpenseShares []ShareInput `json:"expenseShares" validate:"dive"`

	ExpenseSplit map[string]decimal.Decimal `json:"expenseSplit"`
	PartnerIDs   map[string]string          `json:"partnerIds"`

	Caller shared.Caller `json:"-"`
}

// Validate validates the command.
func (c UpdateSplitConfigCommand) Validate() error {
	return validation.Struct(c)
}

// UpdateSettingsHandler handles split and salary configuration updates.
type UpdateSettingsHandler struct {
	deps Deps
}

// NewUpdateSettingsHandler creates a new handler.
func NewUpdateSettingsHandler(deps Deps) *UpdateSettingsHandler {
	return &UpdateSettingsHandler{deps: deps}
}

// UpdateSplit validates partner references and installs the new split.
func (h *UpdateSettingsHandler) UpdateSplit(ctx context.Context, cmd UpdateSplitConfigCommand) (*settings.Configuration, error) {
	if err := cmd.Caller.Authorize("update_split_config", shared.OwnerOnly...); err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var cfg *settings.Configuration
	err := h.deps.atomically(ctx, []string{settingsLockKey}, func(ctx context.Context) error {
		var err error
		if len(cmd.ExpenseShares) > 0 {
			entries, verr := h.resolveEntries(ctx, cmd.ExpenseShares)
			if verr != nil {
				return verr
			}
			cfg, err = h.deps.Settings.ReplaceShares(ctx, entries, cmd.Caller.UserID)
			return err
		}

		legacy := settings.LegacySplit{Percentages: cmd.ExpenseSplit, PartnerIDs: cmd.PartnerIDs}
		if legacy.Percentages == nil {
			legacy.Percentages = map[string]decimal.Decimal{}
		}
		if legacy.PartnerIDs == nil {
			legacy.PartnerIDs = map[string]string{}
		}
		if verr := h.checkLegacyPartners(ctx, legacy.PartnerIDs); verr != nil {
			return verr
		}
		cfg, err = h.deps.Settings.ReplaceLegacy(ctx, legacy, cmd.Caller.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	kind := cfg.SplitMode().Kind()
	h.deps.publish("update_split_config", shared.NewSplitConfigUpdatedEvent(string(kind), cmd.Caller.UserID))
	h.deps.log().Info("split configuration updated",
		logger.String("mode", string(kind)),
		logger.UserID(cmd.Caller.UserID),
	)
	return cfg, nil
}

func (h *UpdateSettingsHandler) resolveEntries(ctx context.Context, in []ShareInput) ([]settings.ShareEntry, error) {
	verr := &shared.ValidationError{}
	entries := make([]settings.ShareEntry, 0, len(in))
	for i, s := range in {
		p, err := h.deps.Partners.GetByID(ctx, s.PartnerID)
		switch {
		case shared.IsNotFound(err):
			verr.Add(fmt.Sprintf("expenseShares[%d].partnerId", i), "unknown partner")
			continue
		case err != nil:
			return nil, fmt.Errorf("update_split_config: load partner: %w", err)
		}
		entries = append(entries, settings.ShareEntry{
			PartnerID:   p.ID,
			PartnerName: p.Name,
			Percentage:  s.Percentage,
		})
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}
	return entries, nil
}

func (h *UpdateSettingsHandler) checkLegacyPartners(ctx context.Context, ids map[string]string) error {
	verr := &shared.ValidationError{}
	for key, id := range ids {
		if id == "" {
			continue
		}
		_, err := h.deps.Partners.GetByID(ctx, id)
		switch {
		case shared.IsNotFound(err):
			verr.Add("partnerIds."+key, "unknown partner")
		case err != nil:
			return fmt.Errorf("update_split_config: load partner: %w", err)
		}
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// UpdateSalaryConfigCommand replaces the default teacher/academy shares.
type UpdateSalaryConfigCommand struct {
	TeacherSharePct decimal.Decimal `json:"teacherSharePct" validate:"gte=0,lte=100"`
	AcademySharePct decimal.Decimal `json:"academySharePct" validate:"gte=0,lte=100"`

	Caller shared.Caller `json:"-"`
}

// UpdateSalary installs new salary defaults.
func (h *UpdateSettingsHandler) UpdateSalary(ctx context.Context, cmd UpdateSalaryConfigCommand) (*settings.Configuration, error) {
	if err := cmd.Caller.Authorize("update_salary_config", shared.OwnerOnly...); err != nil {
		return nil, err
	}
	if err := validation.Struct(cmd); err != nil {
		return nil, err
	}

	var cfg *settings.Configuration
	err := h.deps.atomically(ctx, []string{settingsLockKey}, func(ctx context.Context) error {
		var err error
		cfg, err = h.deps.Settings.UpdateSalary(ctx, settings.SalaryConfig{
			TeacherSharePct: cmd.TeacherSharePct,
			AcademySharePct: cmd.AcademySharePct,
		}, cmd.Caller.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	h.deps.log().Info("salary defaults updated",
		logger.Money("teacher_share_pct", cfg.Salary.TeacherSharePct),
		logger.UserID(cmd.Caller.UserID),
	)
	return cfg, nil
}
