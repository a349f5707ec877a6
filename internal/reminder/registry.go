package reminder

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Registry records which trigger keys are live for each medication. It
// is the source of truth for cancellation: when a medication's time list
// shrinks, the keys registered under the old shape are still here, so
// CancelAll can remove them instead of leaking stale registrations.
type Registry struct {
	db *badger.DB
}

func NewRegistry(db *badger.DB) *Registry {
	return &Registry{db: db}
}

func registryKey(medicationID int64) []byte {
	return []byte(fmt.Sprintf("trigger:%d", medicationID))
}

// Put records the keys registered for a medication, replacing any prior set
func (r *Registry) Put(medicationID int64, keys []int64) error {
	data, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(registryKey(medicationID), data)
	})
}

// Get returns the keys recorded for a medication; nil when none are recorded
func (r *Registry) Get(medicationID int64) ([]int64, error) {
	var keys []int64
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(registryKey(medicationID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &keys)
		})
	})
	return keys, err
}

// Delete removes the record for a medication
func (r *Registry) Delete(medicationID int64) error {
	return r.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(registryKey(medicationID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}
