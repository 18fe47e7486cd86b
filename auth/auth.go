// Package auth implements the credential registry behind registration
// and login. Credentials persist in BadgerDB as bcrypt hashes; the
// package never stores or logs a plaintext password.
//
// Results are codes, not errors: rejecting bad credentials is a normal
// outcome and travels back to the client as a result code in the
// response payload.
package auth

import (
	"errors"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Result codes returned by Register and Login.
const (
	Success = iota
	// ErrUserExists: registration of a name that is already taken.
	ErrUserExists
	// ErrInvalidCredentials: unknown user or wrong password on login.
	ErrInvalidCredentials
	// ErrInvalidInput: empty or malformed username/password.
	ErrInvalidInput
	// ErrInternal: storage or hashing failure.
	ErrInternal
)

const userKeyPrefix = "auth:user:"

// Authentication validates and registers account credentials.
type Authentication struct {
	db  *badger.DB
	log *logrus.Entry
}

// New creates an authentication manager over an open database.
func New(db *badger.DB) *Authentication {
	return &Authentication{
		db:  db,
		log: logrus.WithField("component", "auth"),
	}
}

func validCredentials(username, password string) bool {
	if username == "" || password == "" {
		return false
	}
	// Usernames become storage keys; keep the separator out of them.
	return !strings.ContainsRune(username, ':')
}

// Register creates a new account. Duplicate names are rejected with
// ErrUserExists.
func (a *Authentication) Register(username, password string) int {
	if !validCredentials(username, password) {
		return ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		a.log.WithError(err).Error("Failed to hash password")
		return ErrInternal
	}

	key := []byte(userKeyPrefix + username)
	err = a.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return badger.ErrConflict
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, hash)
	})

	switch {
	case err == nil:
		a.log.WithField("username", username).Info("User registered")
		return Success
	case errors.Is(err, badger.ErrConflict):
		return ErrUserExists
	default:
		a.log.WithError(err).Error("Failed to store credentials")
		return ErrInternal
	}
}

// Login checks a username/password pair against the stored hash.
func (a *Authentication) Login(username, password string) int {
	if !validCredentials(username, password) {
		return ErrInvalidInput
	}

	var hash []byte
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userKeyPrefix + username))
		if err != nil {
			return err
		}
		hash, err = item.ValueCopy(nil)
		return err
	})

	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return ErrInvalidCredentials
	case err != nil:
		a.log.WithError(err).Error("Failed to load credentials")
		return ErrInternal
	}

	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	return Success
}
