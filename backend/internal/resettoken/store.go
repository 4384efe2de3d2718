// Package resettoken keeps short-lived password reset codes in an embedded
// badger database. By default the database lives in memory and the codes are
// lost on restart.
package resettoken

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// ErrInvalidToken is returned when a code is unknown, wrong or expired.
var ErrInvalidToken = errors.New("token inválido o expirado")

const (
	// codeBytes gives an 8 hex character code.
	codeBytes = 4
	keyPrefix = "reset:"
)

// Store issues and checks reset codes keyed by email.
type Store struct {
	db     *badger.DB
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// Open opens the store. An empty dir keeps everything in memory.
func Open(dir string, ttl time.Duration, logger *zap.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open reset token store: %w", err)
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Store{db: db, ttl: ttl, logger: logger, now: time.Now}, nil
}

// TTL is how long an issued code stays valid.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Issue creates a fresh code for email, replacing any earlier one.
func (s *Store) Issue(email string) (string, error) {
	buf := make([]byte, codeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate reset code: %w", err)
	}
	code := hex.EncodeToString(buf)
	expires := s.now().Add(s.ttl)

	err := s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key(email), encode(code, expires)).WithTTL(s.ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		return "", fmt.Errorf("store reset code: %w", err)
	}

	s.logger.Debug("reset code issued", zap.String("email", email), zap.Time("expires_at", expires))
	return code, nil
}

// Verify reports whether code is the live code for email.
func (s *Store) Verify(email, code string) (bool, error) {
	var ok bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		ok, err = s.match(txn, email, code)
		return err
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Consume checks code and removes it in one transaction, so of two
// concurrent calls with the same code at most one succeeds.
func (s *Store) Consume(email, code string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		ok, err := s.match(txn, email, code)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidToken
		}
		return txn.Delete(key(email))
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidToken), errors.Is(err, badger.ErrConflict):
		return ErrInvalidToken
	default:
		return fmt.Errorf("consume reset code: %w", err)
	}
}

func (s *Store) match(txn *badger.Txn, email, code string) (bool, error) {
	item, err := txn.Get(key(email))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read reset code: %w", err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return false, fmt.Errorf("read reset code: %w", err)
	}
	stored, expires, err := decode(val)
	if err != nil {
		return false, err
	}
	if !s.now().Before(expires) {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(code)) == 1, nil
}

func key(email string) []byte {
	return []byte(keyPrefix + strings.ToLower(strings.TrimSpace(email)))
}

func encode(code string, expires time.Time) []byte {
	return []byte(code + "|" + strconv.FormatInt(expires.UnixNano(), 10))
}

func decode(val []byte) (string, time.Time, error) {
	code, ts, ok := strings.Cut(string(val), "|")
	if !ok {
		return "", time.Time{}, fmt.Errorf("malformed reset code entry")
	}
	nanos, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("malformed reset code expiry: %w", err)
	}
	return code, time.Unix(0, nanos), nil
}
