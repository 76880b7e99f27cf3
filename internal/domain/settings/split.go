// Package settings holds the academy-wide finance configuration: the partner
// expense-split table and the default teacher salary shares.
package settings

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SPLIT MODE
// ══════════════════════════════════════════════════════════════════════════════

// ModeKind tags which variant of SplitMode is active.
type ModeKind string

const (
	// ModeDynamic splits by an explicit list of partner percentages.
	ModeDynamic ModeKind = "dynamic"
	// ModeLegacy splits by the fixed three-partner map.
	ModeLegacy ModeKind = "legacy"
)

// Legacy partner keys, in split order.
const (
	KeyWaqar = "waqar"
	KeyZahid = "zahid"
	KeySaud  = "saud"
)

// LegacyKeys lists the fixed partner keys in the order shares are produced.
var LegacyKeys = []string{KeyWaqar, KeyZahid, KeySaud}

// DefaultLegacySplit is used for any legacy key without a configured percentage.
var DefaultLegacySplit = map[string]decimal.Decimal{
	KeyWaqar: decimal.NewFromInt(40),
	KeyZahid: decimal.NewFromInt(30),
	KeySaud:  decimal.NewFromInt(30),
}

// ShareEntry is one row of the dynamic split table.
type ShareEntry struct {
	PartnerID   string          `json:"partnerId"`
	PartnerName string          `json:"partnerName"`
	Percentage  decimal.Decimal `json:"percentage"`
}

// LegacySplit is the fixed-key split map with its key→partner resolution.
type LegacySplit struct {
	Percentages map[string]decimal.Decimal `json:"expenseSplit"`
	PartnerIDs  map[string]string          `json:"partnerIds"`
}

// Allocation is one partner's slice of an expense, before amounts are computed.
// PartnerID is empty when the configuration could not resolve a partner.
type Allocation struct {
	Key         string
	PartnerID   string
	PartnerName string
	Percentage  decimal.Decimal
}

// Resolved reports whether the allocation names a partner.
func (a Allocation) Resolved() bool {
	return a.PartnerID != ""
}

// SplitMode is the tagged variant Dynamic(entries) | Legacy(map).
// The zero value is an empty dynamic split.
type SplitMode struct {
	kind    ModeKind
	entries []ShareEntry
	legacy  LegacySplit
}

// Dynamic builds a dynamic split mode.
func Dynamic(entries []ShareEntry) SplitMode {
	cp := make([]ShareEntry, len(entries))
	copy(cp, entries)
	return SplitMode{kind: ModeDynamic, entries: cp}
}

// Legacy builds a legacy split mode.
func Legacy(l LegacySplit) SplitMode {
	return SplitMode{kind: ModeLegacy, legacy: l}
}

// Kind returns the active variant.
func (m SplitMode) Kind() ModeKind {
	if m.kind == "" {
		return ModeDynamic
	}
	return m.kind
}

// Allocations returns the active (percentage > 0) slices in split order.
func (m SplitMode) Allocations() []Allocation {
	switch m.Kind() {
	case ModeLegacy:
		out := make([]Allocation, 0, len(LegacyKeys))
		for _, key := range LegacyKeys {
			pct, ok := m.legacy.Percentages[key]
			if !ok {
				pct = DefaultLegacySplit[key]
			}
			if !pct.IsPositive() {
				continue
			}
			out = append(out, Allocation{
				Key:         key,
				PartnerID:   m.legacy.PartnerIDs[key],
				PartnerName: key,
				Percentage:  pct,
			})
		}
		return out
	default:
		out := make([]Allocation, 0, len(m.entries))
		for _, e := range m.entries {
			if !e.Percentage.IsPositive() {
				continue
			}
			out = append(out, Allocation{
				Key:         e.PartnerID,
				PartnerID:   e.PartnerID,
				PartnerName: e.PartnerName,
				Percentage:  e.Percentage,
			})
		}
		return out
	}
}

// TotalPercentage sums the active allocations.
func (m SplitMode) TotalPercentage() decimal.Decimal {
	total := decimal.Zero
	for _, a := range m.Allocations() {
		total = total.Add(a.Percentage)
	}
	return total
}

// ValidateEntries checks a dynamic table before it is written: every entry names
// a distinct partner, percentages lie in (0, 100] and sum to exactly 100.
func ValidateEntries(entries []ShareEntry) error {
	verr := &shared.ValidationError{}
	if len(entries) == 0 {
		return verr.Add("expenseShares", "at least one partner share is required")
	}

	seen := make(map[string]bool, len(entries))
	total := decimal.Zero
	for i, e := range entries {
		field := fmt.Sprintf("expenseShares[%d]", i)
		switch {
		case e.PartnerID == "":
			verr.Add(field+".partnerId", "partner is required")
		case seen[e.PartnerID]:
			verr.Add(field+".partnerId", "partner appears more than once")
		}
		seen[e.PartnerID] = true

		if !e.Percentage.IsPositive() || e.Percentage.GreaterThan(shared.Hundred) {
			verr.Add(field+".percentage", "must be greater than 0 and at most 100")
		}
		total = total.Add(e.Percentage)
	}

	if len(verr.Fields) == 0 && !total.Equal(shared.Hundred) {
		verr.Add("expenseShares", "percentages must sum to 100, got "+total.String())
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// ValidateLegacy checks a legacy map against the same rules as ValidateEntries.
func ValidateLegacy(l LegacySplit) error {
	verr := &shared.ValidationError{}
	known := make(map[string]bool, len(LegacyKeys))
	for _, k := range LegacyKeys {
		known[k] = true
	}
	for k, pct := range l.Percentages {
		if !known[k] {
			verr.Add("expenseSplit."+k, "unknown partner key")
			continue
		}
		if pct.IsNegative() || pct.GreaterThan(shared.Hundred) {
			verr.Add("expenseSplit."+k, "must be between 0 and 100")
		}
	}
	for k := range l.PartnerIDs {
		if !known[k] {
			verr.Add("partnerIds."+k, "unknown partner key")
		}
	}
	if len(verr.Fields) > 0 {
		return verr
	}

	if total := Legacy(l).TotalPercentage(); !total.Equal(shared.Hundred) {
		return verr.Add("expenseSplit", "percentages must sum to 100, got "+total.String())
	}
	return nil
}
