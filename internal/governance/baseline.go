package governance

import (
	"contracttracker/internal/model"
	"contracttracker/pkg/rbac"
)

// BaselineState is derived from a milestone's signature fields and never stored.
type BaselineState string

const (
	BaselineNotCommitted     BaselineState = "NotCommitted"
	BaselineAwaitingCustomer BaselineState = "AwaitingCustomer"
	BaselineAwaitingSupplier BaselineState = "AwaitingSupplier"
	BaselineLocked           BaselineState = "Locked"
)

// BaselineStateOf computes the baseline commitment status of m.
func BaselineStateOf(m model.Milestone) BaselineState {
	supplier := m.BaselineSupplierSignature != nil
	customer := m.BaselineCustomerSignature != nil
	switch {
	case m.BaselineLocked || (supplier && customer):
		return BaselineLocked
	case supplier:
		return BaselineAwaitingCustomer
	case customer:
		return BaselineAwaitingSupplier
	default:
		return BaselineNotCommitted
	}
}

// IsLocked reports whether protected fields of m are frozen.
func IsLocked(m model.Milestone) bool {
	return BaselineStateOf(m) == BaselineLocked
}

// NextBaselineSigners lists the parties whose signature is still missing in state s.
func NextBaselineSigners(s BaselineState) []model.Party {
	switch s {
	case BaselineNotCommitted:
		return []model.Party{model.PartySupplier, model.PartyCustomer}
	case BaselineAwaitingCustomer:
		return []model.Party{model.PartyCustomer}
	case BaselineAwaitingSupplier:
		return []model.Party{model.PartySupplier}
	default:
		return nil
	}
}

// PendingBaselineSigners lists the parties that have not yet signed m's baseline.
func PendingBaselineSigners(m model.Milestone) []model.Party {
	return NextBaselineSigners(BaselineStateOf(m))
}

// BaselineSignAction is the capability needed to sign a baseline for party p.
func BaselineSignAction(p model.Party) rbac.Action {
	if p == model.PartyCustomer {
		return rbac.ActionBaselineSignCustomer
	}
	return rbac.ActionBaselineSignSupplier
}

// CertificateSignAction is the capability needed to sign a certificate for party p.
func CertificateSignAction(p model.Party) rbac.Action {
	if p == model.PartyCustomer {
		return rbac.ActionCertificateSignCustomer
	}
	return rbac.ActionCertificateSignSupplier
}

// CanSignBaseline reports whether actor may sign m's baseline for party now. A locked
// baseline takes no further signatures until it is reset.
func CanSignBaseline(actor model.Actor, m model.Milestone, party model.Party) bool {
	if !party.Valid() || !rbac.Can(actor.Role, BaselineSignAction(party)) {
		return false
	}
	return !IsLocked(m)
}
