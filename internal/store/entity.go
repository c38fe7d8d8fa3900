package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Entity provides generic CRUD operations for any domain type.
type Entity[T any] struct {
	store   *Store
	prefix  string
	indexes []Index[T]
}

// Index defines a secondary index on an entity. Index keys live under
// "<prefix>idx:<name>:<key>" and point at the entity ID. Unique indexes
// reject a second entity producing the same key; non-unique indexes embed
// the entity ID in the key and are queried with ScanIndex.
type Index[T any] struct {
	name   string
	keyGen func(*T) []string
	unique bool
}

// NewEntity creates a new Entity instance for type T.
func NewEntity[T any](s *Store, prefix string) *Entity[T] {
	return &Entity[T]{
		store:   s,
		prefix:  prefix,
		indexes: make([]Index[T], 0),
	}
}

// WithIndex adds a non-unique secondary index. keyGen must make keys
// distinct per entity (conventionally by appending the entity ID).
func (e *Entity[T]) WithIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{name: name, keyGen: keyGen})
	return e
}

// WithUniqueIndex adds an index that admits at most one entity per key.
// Create and Update return ErrAlreadyExists on a collision.
func (e *Entity[T]) WithUniqueIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{name: name, keyGen: keyGen, unique: true})
	return e
}

// Prefix returns the key prefix for this entity.
func (e *Entity[T]) Prefix() string { return e.prefix }

func (e *Entity[T]) key(id string) []byte {
	return []byte(e.prefix + id)
}

func (e *Entity[T]) indexKey(name, value string) []byte {
	return []byte(e.prefix + "idx:" + name + ":" + value)
}

// Create stores a new entity under the given ID.
// Returns ErrAlreadyExists if the ID or a unique index key is taken.
func (e *Entity[T]) Create(ctx context.Context, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshal entity: %w", err)
	}

	return e.store.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(e.key(id))
		if err == nil {
			return ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check existing key: %w", err)
		}

		if err := e.checkUniqueIndexes(txn, entity, nil); err != nil {
			return err
		}

		if err := txn.Set(e.key(id), data); err != nil {
			return fmt.Errorf("set key: %w", err)
		}
		return e.writeIndexes(txn, id, entity)
	})
}

// Get retrieves an entity by ID.
// Returns ErrNotFound if the entity does not exist.
func (e *Entity[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entity T
	err := e.store.db.View(func(txn *badger.Txn) error {
		return e.getInTxn(txn, id, &entity)
	})
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// getInTxn loads the entity inside an open transaction.
func (e *Entity[T]) getInTxn(txn *badger.Txn, id string, dest *T) error {
	item, err := txn.Get(e.key(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get key: %w", err)
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, dest); err != nil {
			return fmt.Errorf("unmarshal entity: %w", err)
		}
		return nil
	})
}

// GetByIndex retrieves the single entity behind a unique index key.
func (e *Entity[T]) GetByIndex(ctx context.Context, indexName, value string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var id string
	err := e.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(e.indexKey(indexName, value))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return e.Get(ctx, id)
}

// ExistsByIndex reports whether any entity occupies the given index key.
func (e *Entity[T]) ExistsByIndex(ctx context.Context, indexName, value string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	err := e.store.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(e.indexKey(indexName, value))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Update replaces an existing entity and rewrites its index keys.
// Returns ErrNotFound if the entity does not exist.
func (e *Entity[T]) Update(ctx context.Context, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshal entity: %w", err)
	}

	return e.store.db.Update(func(txn *badger.Txn) error {
		var old T
		if err := e.getInTxn(txn, id, &old); err != nil {
			return err
		}

		if err := e.deleteIndexes(txn, &old); err != nil {
			return err
		}
		if err := e.checkUniqueIndexes(txn, entity, &old); err != nil {
			return err
		}
		if err := txn.Set(e.key(id), data); err != nil {
			return fmt.Errorf("set key: %w", err)
		}
		return e.writeIndexes(txn, id, entity)
	})
}

// UpdateIf applies mutate to the stored entity inside one transaction,
// but only when check accepts what is currently on disk. A failed check
// returns ErrConflict and writes nothing. This is the compare-and-swap
// primitive behind optimistic status transitions.
func (e *Entity[T]) UpdateIf(ctx context.Context, id string, check func(*T) bool, mutate func(*T)) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var updated T
	err := e.store.db.Update(func(txn *badger.Txn) error {
		var stored T
		if err := e.getInTxn(txn, id, &stored); err != nil {
			return err
		}
		if check != nil && !check(&stored) {
			return ErrConflict
		}

		if err := e.deleteIndexes(txn, &stored); err != nil {
			return err
		}
		mutate(&stored)
		updated = stored

		data, err := json.Marshal(&stored)
		if err != nil {
			return fmt.Errorf("marshal entity: %w", err)
		}
		if err := txn.Set(e.key(id), data); err != nil {
			return fmt.Errorf("set key: %w", err)
		}
		return e.writeIndexes(txn, id, &stored)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes an entity and its index keys. Idempotent.
func (e *Entity[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return e.store.db.Update(func(txn *badger.Txn) error {
		var entity T
		err := e.getInTxn(txn, id, &entity)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := e.deleteIndexes(txn, &entity); err != nil {
			return err
		}
		if err := txn.Delete(e.key(id)); err != nil {
			return fmt.Errorf("delete key: %w", err)
		}
		return nil
	})
}

// List returns an iterator over all entities under this prefix.
func (e *Entity[T]) List(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		e.store.db.View(func(txn *badger.Txn) error {
			prefix := []byte(e.prefix)
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if ctx.Err() != nil {
					yield(nil, ctx.Err())
					return ctx.Err()
				}

				// Skip index keys sharing the prefix.
				key := string(it.Item().Key())
				if strings.HasPrefix(key[len(e.prefix):], "idx:") {
					continue
				}

				var entity T
				err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &entity)
				})
				if err != nil {
					yield(nil, err)
					return err
				}
				if !yield(&entity, nil) {
					return nil
				}
			}
			return nil
		})
	}
}

// ScanIndex loads every entity whose key under the named index starts with
// keyPrefix. Used with non-unique indexes whose keys end in the entity ID.
func (e *Entity[T]) ScanIndex(ctx context.Context, indexName, keyPrefix string) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []*T
	err := e.store.db.View(func(txn *badger.Txn) error {
		prefix := e.indexKey(indexName, keyPrefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var id string
			err := it.Item().Value(func(val []byte) error {
				id = string(val)
				return nil
			})
			if err != nil {
				return err
			}

			var entity T
			err = e.getInTxn(txn, id, &entity)
			if errors.Is(err, ErrNotFound) {
				// Stale index entry, skip.
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, &entity)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// checkUniqueIndexes rejects the write when a unique key is already held.
// old, when non-nil, is the previous version whose keys do not count.
func (e *Entity[T]) checkUniqueIndexes(txn *badger.Txn, entity, old *T) error {
	for _, idx := range e.indexes {
		if !idx.unique {
			continue
		}

		oldKeys := make(map[string]bool)
		if old != nil {
			for _, k := range idx.keyGen(old) {
				oldKeys[k] = true
			}
		}

		for _, indexKey := range idx.keyGen(entity) {
			if oldKeys[indexKey] {
				continue
			}
			_, err := txn.Get(e.indexKey(idx.name, indexKey))
			if err == nil {
				return fmt.Errorf("index %s conflict on key %s: %w", idx.name, indexKey, ErrAlreadyExists)
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("check index key: %w", err)
			}
		}
	}
	return nil
}

func (e *Entity[T]) writeIndexes(txn *badger.Txn, id string, entity *T) error {
	for _, idx := range e.indexes {
		for _, indexKey := range idx.keyGen(entity) {
			if err := txn.Set(e.indexKey(idx.name, indexKey), []byte(id)); err != nil {
				return fmt.Errorf("set index key: %w", err)
			}
		}
	}
	return nil
}

func (e *Entity[T]) deleteIndexes(txn *badger.Txn, entity *T) error {
	for _, idx := range e.indexes {
		for _, indexKey := range idx.keyGen(entity) {
			if err := txn.Delete(e.indexKey(idx.name, indexKey)); err != nil {
				return fmt.Errorf("delete index key: %w", err)
			}
		}
	}
	return nil
}
