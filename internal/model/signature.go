package model

import "time"

// Party is one side of the contract.
type Party string

const (
	PartySupplier Party = "supplier"
	PartyCustomer Party = "customer"
)

func (p Party) Valid() bool {
	return p == PartySupplier || p == PartyCustomer
}

// Signature records who signed and when. A nil *Signature means unsigned.
type Signature struct {
	SignerID   string    `json:"signer_id"`
	SignerName string    `json:"signer_name"`
	SignedAt   time.Time `json:"signed_at"`
}

// Actor is the authenticated caller as provided by the identity provider.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// SignatureBy builds a signature for the actor at the given instant.
func SignatureBy(actor Actor, at time.Time) Signature {
	return Signature{SignerID: actor.ID, SignerName: actor.Name, SignedAt: at.UTC()}
}
