// Copyright 2020-2021 The OS-NVR Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package log

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

const dbAPIversion = "1"

const defaultMaxKeys = 100000

// NewDB new log database.
func NewDB(dbPath string, wg *sync.WaitGroup) *DB {
	return &DB{
		dbPath:  dbPath,
		maxKeys: defaultMaxKeys,

		wg:     wg,
		saveWG: &sync.WaitGroup{},
	}
}

// DB log database.
//
// Keys are the big endian log time followed by the
// bucket sequence so that logs with equal time are kept.
type DB struct {
	dbPath  string
	maxKeys int

	db *bolt.DB
	wg *sync.WaitGroup

	// Wait for last log to be saved before losing db.
	saveWG *sync.WaitGroup
}

// Init initialize database.
func (logDB *DB) Init(ctx context.Context) error {
	dbOpts := &bolt.Options{
		Timeout: 1 * time.Second,
	}

	db, err := bolt.Open(logDB.dbPath, 0o600, dbOpts)
	if err != nil {
		return fmt.Errorf("could not open database: %w: %v", err, logDB.dbPath)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(dbAPIversion))
		return err
	})
	if err != nil {
		db.Close()
		return fmt.Errorf("could not create bucket: %v, %w", dbAPIversion, err)
	}

	logDB.db = db

	logDB.wg.Add(1)
	go func() {
		<-ctx.Done()
		logDB.saveWG.Wait()
		db.Close()
		logDB.wg.Done()
	}()

	return nil
}

// SaveLogs saves logs from the logger into the database.
func (logDB *DB) SaveLogs(ctx context.Context, l *Logger) {
	feed, cancel := l.Subscribe()
	defer cancel()

	logDB.saveWG.Add(1)
	defer logDB.saveWG.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case log, ok := <-feed:
			if !ok {
				return
			}
			if err := logDB.saveLog(log); err != nil {
				fmt.Fprintf(os.Stderr, "could not save log: %v %v\n", log.Msg, err)
			}
		}
	}
}

func (logDB *DB) saveLog(log Log) error {
	value, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("could not marshal log: %w", err)
	}

	return logDB.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(dbAPIversion))

		if b.Stats().KeyN >= logDB.maxKeys {
			if err := deleteFirstKey(b); err != nil {
				return fmt.Errorf("could not delete first key: %w", err)
			}
		}

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("could not get sequence: %w", err)
		}
		return b.Put(encodeKey(uint64(log.Time), seq), value)
	})
}

func deleteFirstKey(b *bolt.Bucket) error {
	k, _ := b.Cursor().First()
	if k == nil {
		return nil
	}
	return b.Delete(k)
}

// Query database query.
// Nil filters match everything.
type Query struct {
	Levels  []Level
	Time    UnixMicro // Only return logs before Time, zero for latest.
	Sources []string
	Tracks  []string
	Limit   int
}

// Query logs in database, newest first.
func (logDB *DB) Query(q Query) ([]Log, error) {
	var logs []Log

	limit := q.Limit
	if limit == 0 {
		limit = defaultMaxKeys
	}

	err := logDB.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(dbAPIversion)).Cursor()

		var key, value []byte
		if q.Time == 0 {
			key, value = c.Last()
		} else if k, _ := c.Seek(encodeKey(uint64(q.Time), 0)); k == nil {
			key, value = c.Last()
		} else {
			key, value = c.Prev()
		}

		for ; key != nil && len(logs) < limit; key, value = c.Prev() {
			var log Log
			if err := json.Unmarshal(value, &log); err != nil {
				return fmt.Errorf("could not unmarshal log: %w", err)
			}
			if q.match(log) {
				logs = append(logs, log)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return logs, nil
}

func (q Query) match(log Log) bool {
	return levelInLevels(log.Level, q.Levels) &&
		stringInStrings(log.Src, q.Sources) &&
		stringInStrings(log.Track, q.Tracks)
}

func levelInLevels(level Level, levels []Level) bool {
	if levels == nil {
		return true
	}
	for _, l := range levels {
		if l == level {
			return true
		}
	}
	return false
}

func stringInStrings(source string, sources []string) bool {
	if sources == nil {
		return true
	}
	for _, src := range sources {
		if src == source {
			return true
		}
	}
	return false
}

func encodeKey(time uint64, seq uint64) []byte {
	output := make([]byte, 16)
	binary.BigEndian.PutUint64(output, time)
	binary.BigEndian.PutUint64(output[8:], seq)
	return output
}
