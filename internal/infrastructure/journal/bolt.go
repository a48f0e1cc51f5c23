// Package journal помнит уже обработанные события вебхуков провайдера.
// Это первый фильтр повторов; окончательную защиту дают условные записи в БД.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "github.com/boltdb/bolt"
)

const bucketName = "webhook_events"

type entry struct {
	ProcessedAt time.Time `json:"processed_at"`
}

type BoltJournal struct {
	db  *bolt.DB
	now func() time.Time
}

// Open открывает (или создаёт) файл журнала и бакет событий.
func Open(path string) (*BoltJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal: не удалось создать каталог: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("journal: не удалось открыть %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: не удалось создать бакет: %w", err)
	}
	return &BoltJournal{db: db, now: time.Now}, nil
}

func (j *BoltJournal) Close() error {
	return j.db.Close()
}

func (j *BoltJournal) Seen(key string) (bool, error) {
	var seen bool
	err := j.db.View(func(tx *bolt.Tx) error {
		seen = tx.Bucket([]byte(bucketName)).Get([]byte(key)) != nil
		return nil
	})
	return seen, err
}

// Record идемпотентен: повторная запись ключа не меняет исходное время.
func (j *BoltJournal) Record(key string) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b.Get([]byte(key)) != nil {
			return nil
		}
		raw, err := json.Marshal(entry{ProcessedAt: j.now().UTC()})
		if err != nil {
			return err
		}
		return b.Put([]byte(key), raw)
	})
}

// Prune удаляет записи старше ttl и возвращает их число.
func (j *BoltJournal) Prune(ttl time.Duration) (int, error) {
	cutoff := j.now().Add(-ttl)
	removed := 0
	err := j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var e entry
			if err := json.Unmarshal(v, &e); err != nil || e.ProcessedAt.Before(cutoff) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}
