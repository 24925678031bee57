// Package mining implements spec.md §6's miner contract: a registered
// Miner receives UpdateTemplate and MinedBlockAdded(chainIndex), mirroring
// the teacher's mining/manager.go registration with blockdag, generalized
// from one global DAG to notifications that name the chain index they
// concern; each registered Miner is notified for every chain.
//
// github.com/google/uuid (a teacher dependency) is wired in here as the
// registration handle returned by Register, so a miner can later
// UnRegister the exact registration it was given without the Flow Handler
// needing to compare interface values.
package mining

import (
	"github.com/google/uuid"

	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
)

// Miner is the interface the Flow Handler drives a registered miner
// through (spec.md §4.5's "emits ... to miners").
type Miner interface {
	// UpdateTemplate is called whenever the tip or mempool content a
	// mining template would draw from has changed, so the miner can
	// re-derive its template via BlockFlow.PrepareBlockFlow.
	UpdateTemplate(chainIndex externalapi.ChainIndex)
	// MinedBlockAdded is called when a block this node itself mined
	// (origin = Local) has been accepted, so the miner can move on to
	// the next chain index without waiting for a peer round-trip.
	MinedBlockAdded(chainIndex externalapi.ChainIndex)
}

// RegistrationId identifies one Register call, returned so the caller can
// later UnRegister the exact registration.
type RegistrationId uuid.UUID

// String renders the id the way the teacher's own uuid-keyed registrations
// log themselves.
func (id RegistrationId) String() string {
	return uuid.UUID(id).String()
}

// NewRegistrationId returns a fresh, random RegistrationId.
func NewRegistrationId() RegistrationId {
	return RegistrationId(uuid.New())
}
