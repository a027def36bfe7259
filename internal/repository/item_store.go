package repository

import (
	"errors"
	"fmt"

	"auction-server/internal/auctionerrors"
	model "auction-server/internal/models"
	"auction-server/internal/recordlock"
	"auction-server/internal/storage"
)

// ItemMutation edits an item under its exclusive record lock. It persists
// the item by calling save, at most once, and may undo side effects under
// the same lock if save fails.
type ItemMutation func(item *model.Item, save func() error) error

// ItemStore keeps auction items in a fixed-length record file. The record
// size depends on the bid history capacity, which must stay fixed for a data
// directory.
type ItemStore struct {
	file     *storage.RecordFile
	capacity int
}

// OpenItemStore opens the item file at path.
func OpenItemStore(path string, historyCapacity int) (*ItemStore, error) {
	if historyCapacity < 1 {
		return nil, fmt.Errorf("open item store: history capacity %d: %w", historyCapacity, auctionerrors.ErrInvalidInput)
	}
	file, err := storage.OpenRecordFile(path, ItemRecordSize(historyCapacity))
	if err != nil {
		return nil, fmt.Errorf("open item store: %w", err)
	}
	return &ItemStore{file: file, capacity: historyCapacity}, nil
}

func (s *ItemStore) Close() error {
	return s.file.Close()
}

// HistoryCapacity returns the number of bid history slots per item.
func (s *ItemStore) HistoryCapacity() int {
	return s.capacity
}

// Create appends item and returns the id it was assigned.
func (s *ItemStore) Create(item model.Item) (int64, error) {
	lock := s.file.LockAll(recordlock.Exclusive)
	defer lock.Release()

	count, err := s.file.Count()
	if err != nil {
		return 0, fmt.Errorf("create item: %w", err)
	}
	item.ID = count + 1

	buf := make([]byte, s.file.RecordSize())
	if err := encodeItem(item, s.capacity, buf); err != nil {
		return 0, fmt.Errorf("create item: %w", err)
	}
	id, err := s.file.Append(buf)
	if err != nil {
		return 0, fmt.Errorf("create item: %w", err)
	}
	return id, nil
}

// Get reads one item under a shared record lock.
func (s *ItemStore) Get(id int64) (model.Item, error) {
	lock := s.file.LockRecord(recordlock.Shared, id)
	defer lock.Release()

	item, err := s.read(id)
	if err != nil {
		return model.Item{}, fmt.Errorf("get item %d: %w", id, err)
	}
	return item, nil
}

// List returns up to limit items in id order.
func (s *ItemStore) List(limit int) ([]model.Item, error) {
	var items []model.Item
	err := s.Scan(func(item model.Item) bool {
		items = append(items, item)
		return limit <= 0 || len(items) < limit
	})
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// Scan hands every item to fn in id order under a shared whole-file lock,
// stopping when fn returns false. fn must not call back into the store.
func (s *ItemStore) Scan(fn func(item model.Item) bool) error {
	lock := s.file.LockAll(recordlock.Shared)
	defer lock.Release()

	return s.file.Scan(func(_ int64, rec []byte) (bool, error) {
		item, err := decodeItem(rec, s.capacity)
		if err != nil {
			return false, err
		}
		return fn(item), nil
	})
}

// Update runs fn with the item's exclusive record lock held.
func (s *ItemStore) Update(id int64, fn ItemMutation) error {
	lock := s.file.LockRecord(recordlock.Exclusive, id)
	defer lock.Release()

	item, err := s.read(id)
	if err != nil {
		return fmt.Errorf("update item %d: %w", id, err)
	}

	saved := false
	save := func() error {
		if saved {
			return fmt.Errorf("update item %d: saved twice", id)
		}
		saved = true
		if item.ID != id {
			return fmt.Errorf("update item %d: id changed to %d: %w", id, item.ID, auctionerrors.ErrInvalidInput)
		}
		return s.write(item)
	}
	return fn(&item, save)
}

// Count returns the number of items ever created.
func (s *ItemStore) Count() (int64, error) {
	lock := s.file.LockAll(recordlock.Shared)
	defer lock.Release()
	return s.file.Count()
}

func (s *ItemStore) read(id int64) (model.Item, error) {
	buf := make([]byte, s.file.RecordSize())
	if err := s.file.ReadRecord(id, buf); err != nil {
		if errors.Is(err, storage.ErrNoRecord) {
			return model.Item{}, auctionerrors.ErrItemNotFound
		}
		return model.Item{}, err
	}
	item, err := decodeItem(buf, s.capacity)
	if err != nil {
		return model.Item{}, err
	}
	if item.ID != id {
		return model.Item{}, fmt.Errorf("item slot %d holds id %d: %w", id, item.ID, auctionerrors.ErrCorruptRecord)
	}
	return item, nil
}

func (s *ItemStore) write(item model.Item) error {
	buf := make([]byte, s.file.RecordSize())
	if err := encodeItem(item, s.capacity, buf); err != nil {
		return err
	}
	return s.file.WriteRecord(item.ID, buf)
}
