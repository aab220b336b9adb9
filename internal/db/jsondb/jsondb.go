// Package jsondb keeps users in memory and persists the whole set as a JSON
// snapshot file, read on New and written on Close.
package jsondb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/journalapp/internal/models"
	"github.com/patric-chuzhbe/journalapp/internal/user"
)

type JSONDB struct {
	fileName string
	mu       sync.RWMutex
	Cache    CacheStruct
}

// CacheStruct is the snapshot layout written to disk.
type CacheStruct struct {
	Users          map[string]*user.User
	UsernamesToIDs map[string]string `json:"-"`
}

// NewCache returns an empty, ready to use snapshot.
func NewCache() CacheStruct {
	return CacheStruct{
		Users:          map[string]*user.User{},
		UsernamesToIDs: map[string]string{},
	}
}

func writeToJSONFile(fileName string, cache interface{}) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}

	if err := os.WriteFile(fileName, jsonData, 0600); err != nil {
		return fmt.Errorf("error writing to file: %w", err)
	}

	return nil
}

func parseJSONFile(fileName string, cache *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(cache)
}

// New loads the snapshot from fileName, creating an empty one if the file does not exist.
func New(fileName string) (*JSONDB, error) {
	db := &JSONDB{
		fileName: fileName,
		Cache:    NewCache(),
	}

	err := parseJSONFile(fileName, &db.Cache)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("in internal/db/jsondb/jsondb.go/New(): error while `parseJSONFile()` calling: %w", err)
		}
		if err := writeToJSONFile(fileName, db.Cache); err != nil {
			return nil, err
		}
	}

	if db.Cache.Users == nil {
		db.Cache.Users = map[string]*user.User{}
	}
	db.rebuildIndex()

	return db, nil
}

func (db *JSONDB) rebuildIndex() {
	db.Cache.UsernamesToIDs = make(map[string]string, len(db.Cache.Users))
	for id, usr := range db.Cache.Users {
		db.Cache.UsernamesToIDs[usr.Username] = id
	}
}

func (db *JSONDB) GetAllUsers(ctx context.Context) ([]*user.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	stored := funk.Values(db.Cache.Users).([]*user.User)
	result := make([]*user.User, 0, len(stored))
	for _, usr := range stored {
		result = append(result, usr.Clone())
	}

	return result, nil
}

func (db *JSONDB) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	id, found := db.Cache.UsernamesToIDs[username]
	if !found {
		return nil, nil
	}

	return db.Cache.Users[id].Clone(), nil
}

func (db *JSONDB) SaveUser(ctx context.Context, usr *user.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if ownerID, taken := db.Cache.UsernamesToIDs[usr.Username]; taken && ownerID != usr.ID {
		return fmt.Errorf("save user %q: %w", usr.Username, models.ErrUsernameTaken)
	}

	now := time.Now().UTC()
	if usr.ID == "" {
		usr.ID = uuid.New().String()
		usr.CreatedAt = now
	} else if previous, found := db.Cache.Users[usr.ID]; found {
		delete(db.Cache.UsernamesToIDs, previous.Username)
		if usr.CreatedAt.IsZero() {
			usr.CreatedAt = previous.CreatedAt
		}
	}
	if usr.CreatedAt.IsZero() {
		usr.CreatedAt = now
	}
	usr.UpdatedAt = now

	db.Cache.Users[usr.ID] = usr.Clone()
	db.Cache.UsernamesToIDs[usr.Username] = usr.ID

	return nil
}

func (db *JSONDB) DeleteUserByUsername(ctx context.Context, username string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	id, found := db.Cache.UsernamesToIDs[username]
	if !found {
		return nil
	}
	delete(db.Cache.UsernamesToIDs, username)
	delete(db.Cache.Users, id)

	return nil
}

func (db *JSONDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return int64(len(db.Cache.Users)), nil
}

func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

// Close writes the snapshot back to the file.
func (db *JSONDB) Close() error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return writeToJSONFile(db.fileName, db.Cache)
}
