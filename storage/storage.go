// Package storage persists conversation and message history per
// account, so a later login can replay it. It is a collaborator of the
// server controller, not part of the in-memory model: records here are
// keyed by username and record id, never by the per-session Uuids the
// model allocates.
//
// Message bodies are deflate-compressed at rest.
package storage

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ezhuang13/codeu-project-2017/codec"
)

const (
	conversationPrefix = "store:conversation:"
	messagePrefix      = "store:message:"
)

// ConversationData is one stored conversation with its messages, both
// sorted by creation time.
type ConversationData struct {
	ID       string
	Title    string
	Creation time.Time
	Messages []MessageData
}

// MessageData is one stored message body.
type MessageData struct {
	Content  string
	Creation time.Time
}

// Storage manages persistent conversation and message history.
type Storage struct {
	db  *badger.DB
	log *logrus.Entry
}

// New creates the storage manager over an open database.
func New(db *badger.DB) *Storage {
	return &Storage{
		db:  db,
		log: logrus.WithField("component", "storage"),
	}
}

// AddConversation records a conversation owned by the given account and
// returns its record id, used as the key for AddMessage.
func (s *Storage) AddConversation(username string, creation time.Time, title string) (string, error) {
	record := uuid.New().String()

	var value bytes.Buffer
	if err := codec.String.Write(&value, title); err != nil {
		return "", err
	}
	if err := codec.Time.Write(&value, creation); err != nil {
		return "", err
	}

	key := []byte(conversationPrefix + username + ":" + record)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value.Bytes())
	})
	if err != nil {
		s.log.WithError(err).Error("Failed to add conversation")
		return "", fmt.Errorf("add conversation: %w", err)
	}
	return record, nil
}

// AddMessage records a message under a conversation record id. The body
// is deflate-compressed at rest.
func (s *Storage) AddMessage(conversationID string, creation time.Time, content string) error {
	var value bytes.Buffer
	if err := codec.Time.Write(&value, creation); err != nil {
		return err
	}
	if err := codec.Compressed.Write(&value, []byte(content)); err != nil {
		return err
	}

	key := []byte(messagePrefix + conversationID + ":" + uuid.New().String())
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value.Bytes())
	})
	if err != nil {
		s.log.WithError(err).Error("Failed to add message")
		return fmt.Errorf("add message: %w", err)
	}
	return nil
}

// LoadConversations returns every stored conversation for an account,
// oldest first, each with its messages oldest first.
func (s *Storage) LoadConversations(username string) ([]ConversationData, error) {
	var conversations []ConversationData

	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(conversationPrefix + username + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			record := strings.TrimPrefix(string(item.Key()), string(prefix))

			var data ConversationData
			data.ID = record
			err := item.Value(func(val []byte) error {
				r := bytes.NewReader(val)
				var err error
				if data.Title, err = codec.String.Read(r); err != nil {
					return err
				}
				data.Creation, err = codec.Time.Read(r)
				return err
			})
			if err != nil {
				return err
			}

			if data.Messages, err = s.loadMessages(txn, record); err != nil {
				return err
			}
			conversations = append(conversations, data)
		}
		return nil
	})
	if err != nil {
		s.log.WithError(err).Error("Failed to load conversations")
		return nil, fmt.Errorf("load conversations: %w", err)
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].Creation.Before(conversations[j].Creation)
	})
	return conversations, nil
}

func (s *Storage) loadMessages(txn *badger.Txn, conversationID string) ([]MessageData, error) {
	var messages []MessageData

	prefix := []byte(messagePrefix + conversationID + ":")
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		var data MessageData
		err := it.Item().Value(func(val []byte) error {
			r := bytes.NewReader(val)
			var err error
			if data.Creation, err = codec.Time.Read(r); err != nil {
				return err
			}
			content, err := codec.Compressed.Read(r)
			if err != nil {
				return err
			}
			data.Content = string(content)
			return nil
		})
		if err != nil {
			return nil, err
		}
		messages = append(messages, data)
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].Creation.Before(messages[j].Creation)
	})
	return messages, nil
}
