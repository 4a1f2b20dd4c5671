// Package authstore implements the server's user and token store. User
// records are persisted in a bbolt database at the configured dbpath so
// they survive a restart; live tokens are kept only in memory, in an
// LRU cache of the kind upspin's rpc package uses for its session
// cache, since a restart must invalidate every outstanding session.
package authstore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/xatophi/remote-backup-pds-project/cache"
	"github.com/xatophi/remote-backup-pds-project/errors"
)

var usersBucket = []byte("users")

// tokenAlphabet is the character set createToken draws from.
const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// defaultTokenCacheSize bounds the number of concurrently authenticated
// sessions the in-memory token cache remembers at once.
const defaultTokenCacheSize = 10000

// Store is the server's user and token store.
type Store struct {
	db *bolt.DB

	mu         sync.Mutex
	tokens     *cache.LRU        // token -> username
	userTokens map[string]string // username -> current token, so a fresh login overwrites a stale one
}

// Open opens (creating if necessary) the user database at path and
// returns a Store with an empty token cache.
func Open(path string) (*Store, error) {
	const op = "authstore.Open"

	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.E(op, errors.Storage, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(usersBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.E(op, errors.Storage, err)
	}
	return &Store{
		db:         db,
		tokens:     cache.NewLRU(defaultTokenCacheSize),
		userTokens: make(map[string]string),
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// hashPassword returns the hex SHA-256 of password, the form persisted
// in the user record.
func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// CreateUser adds or replaces the persistent record for username with
// the given password. It is a provisioning operation, not part of the
// request path.
func (s *Store) CreateUser(username, password string) error {
	const op = "authstore.CreateUser"
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(usersBucket).Put([]byte(username), []byte(hashPassword(password)))
	})
	if err != nil {
		return errors.E(op, errors.Storage, err)
	}
	return nil
}

// VerifyUserPassword reports whether password matches the persisted
// record for username.
func (s *Store) VerifyUserPassword(username, password string) (bool, error) {
	const op = "authstore.VerifyUserPassword"

	var stored []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(usersBucket).Get([]byte(username))
		if v != nil {
			stored = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return false, errors.E(op, errors.Storage, err)
	}
	if stored == nil {
		return false, nil
	}
	return string(stored) == hashPassword(password), nil
}

// CreateToken returns a fresh random ASCII string of length n.
func CreateToken(n int) (string, error) {
	const op = "authstore.CreateToken"

	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", errors.E(op, errors.Other, err)
	}
	out := make([]byte, n)
	for i, b := range raw {
		out[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(out), nil
}

// SaveTokenToUser associates token with username, overwriting and
// invalidating any token username previously held.
func (s *Store) SaveTokenToUser(username, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.userTokens[username]; ok {
		s.tokens.Remove(prev)
	}
	s.userTokens[username] = token
	s.tokens.Add(token, username)
}

// VerifyToken returns the username owning token, and whether it is
// currently live.
func (s *Store) VerifyToken(token string) (string, bool) {
	v, ok := s.tokens.Get(token)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// LogoutUser invalidates username's current token, if any, reporting
// whether one was present.
func (s *Store) LogoutUser(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.userTokens[username]
	if !ok {
		return false
	}
	delete(s.userTokens, username)
	s.tokens.Remove(token)
	return true
}

// DeleteAllTokens invalidates every live token. It is called once at
// server startup so that tokens issued before a restart cannot be
// replayed against the new process.
func (s *Store) DeleteAllTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for username, token := range s.userTokens {
		s.tokens.Remove(token)
		delete(s.userTokens, username)
	}
}
