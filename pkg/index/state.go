package index

import (
	"github.com/cuemby/estore/pkg/entity"
	"github.com/cuemby/estore/pkg/estoreerr"
	"github.com/cuemby/estore/pkg/kv"
)

const stateRegion = "metadata"

func stateKey(indexName string) []byte {
	return []byte("index-state/" + indexName)
}

// StateManager implements C5: the index lifecycle state machine, backed
// by metadata/index-state/<indexName> in the entity type's own subspace.
type StateManager struct {
	sub kv.Subspace
}

// NewStateManager returns a state manager scoped to an entity type's
// metadata subspace.
func NewStateManager(sub kv.Subspace) *StateManager {
	return &StateManager{sub: sub}
}

// State returns the persisted state for indexName, defaulting to
// disabled if no state has ever been recorded.
func (m *StateManager) State(tx *kv.Transaction, indexName string) (entity.IndexState, error) {
	raw, err := tx.Get(m.sub, stateRegion, stateKey(indexName))
	if err != nil {
		return entity.StateDisabled, err
	}
	if raw == nil {
		return entity.StateDisabled, nil
	}
	return entity.IndexState(raw[0]), nil
}

func (m *StateManager) setState(tx *kv.Transaction, indexName string, s entity.IndexState) error {
	return tx.Set(m.sub, stateRegion, stateKey(indexName), []byte{byte(s)})
}

func (m *StateManager) transition(tx *kv.Transaction, indexName string, from, to entity.IndexState) error {
	cur, err := m.State(tx, indexName)
	if err != nil {
		return err
	}
	if cur != from {
		return &estoreerr.InvalidTransition{IndexName: indexName, From: cur.String(), To: to.String()}
	}
	return m.setState(tx, indexName, to)
}

// Enable transitions disabled -> writeOnly.
func (m *StateManager) Enable(tx *kv.Transaction, indexName string) error {
	return m.transition(tx, indexName, entity.StateDisabled, entity.StateWriteOnly)
}

// MakeReadable transitions writeOnly -> readable.
func (m *StateManager) MakeReadable(tx *kv.Transaction, indexName string) error {
	return m.transition(tx, indexName, entity.StateWriteOnly, entity.StateReadable)
}

// Disable transitions writeOnly or readable back to disabled.
func (m *StateManager) Disable(tx *kv.Transaction, indexName string) error {
	cur, err := m.State(tx, indexName)
	if err != nil {
		return err
	}
	if cur != entity.StateWriteOnly && cur != entity.StateReadable {
		return &estoreerr.InvalidTransition{IndexName: indexName, From: cur.String(), To: entity.StateDisabled.String()}
	}
	return m.setState(tx, indexName, entity.StateDisabled)
}

// Rebuild transitions readable -> writeOnly, the entry point for an
// online rebuild.
func (m *StateManager) Rebuild(tx *kv.Transaction, indexName string) error {
	return m.transition(tx, indexName, entity.StateReadable, entity.StateWriteOnly)
}
