package server

import (
	"strings"
	"time"

	"github.com/ezhuang13/codeu-project-2017/chat"
	"github.com/ezhuang13/codeu-project-2017/ident"
)

// View implements the read-only queries over the model. Every method is
// a pure projection of model state at call time and returns copies, so
// callers can serialize results without touching live objects. Like the
// controller, it must only run inside queue tasks.
type View struct {
	model *Model
}

// NewView creates a view over the model.
func NewView(model *Model) *View {
	return &View{model: model}
}

// UsersByID returns the users matching the given ids, in model
// insertion order. Unknown ids are silently dropped.
func (v *View) UsersByID(ids []ident.Uuid) []chat.User {
	wanted := toSet(ids)
	var out []chat.User
	for _, user := range v.model.Users() {
		if _, ok := wanted[user.ID]; ok {
			out = append(out, *user)
		}
	}
	return out
}

// UsersExcluding returns every user whose id is not in the given set.
// Used for presence/roster diffing.
func (v *View) UsersExcluding(ids []ident.Uuid) []chat.User {
	excluded := toSet(ids)
	var out []chat.User
	for _, user := range v.model.Users() {
		if _, ok := excluded[user.ID]; !ok {
			out = append(out, *user)
		}
	}
	return out
}

// AllConversations returns the summary listing of every conversation.
func (v *View) AllConversations() []chat.ConversationSummary {
	var out []chat.ConversationSummary
	for _, conversation := range v.model.Conversations() {
		out = append(out, conversation.Summary())
	}
	return out
}

// ConversationsByID returns the conversations matching the given ids.
func (v *View) ConversationsByID(ids []ident.Uuid) []chat.Conversation {
	wanted := toSet(ids)
	var out []chat.Conversation
	for _, conversation := range v.model.Conversations() {
		if _, ok := wanted[conversation.ID]; ok {
			out = append(out, *conversation)
		}
	}
	return out
}

// ConversationsInRange returns conversations created inside the
// inclusive time window.
func (v *View) ConversationsInRange(start, end time.Time) []chat.Conversation {
	var out []chat.Conversation
	for _, conversation := range v.model.Conversations() {
		if inRange(conversation.Creation, start, end) {
			out = append(out, *conversation)
		}
	}
	return out
}

// ConversationsByTitle returns conversations whose title contains the
// filter as a substring.
func (v *View) ConversationsByTitle(filter string) []chat.Conversation {
	var out []chat.Conversation
	for _, conversation := range v.model.Conversations() {
		if strings.Contains(conversation.Title, filter) {
			out = append(out, *conversation)
		}
	}
	return out
}

// MessagesByID returns the messages matching the given ids.
func (v *View) MessagesByID(ids []ident.Uuid) []chat.Message {
	wanted := toSet(ids)
	var out []chat.Message
	for _, message := range v.model.Messages() {
		if _, ok := wanted[message.ID]; ok {
			out = append(out, *message)
		}
	}
	return out
}

// MessagesInRange returns messages created inside the inclusive time
// window.
func (v *View) MessagesInRange(start, end time.Time) []chat.Message {
	var out []chat.Message
	for _, message := range v.model.Messages() {
		if inRange(message.Creation, start, end) {
			out = append(out, *message)
		}
	}
	return out
}

// MessagesFromRoot walks the chain from the root message. A positive
// count follows Next pointers and returns up to count messages starting
// with the root; a negative count follows Previous pointers and returns
// the result in chain order. A zero count or unknown root yields
// nothing.
func (v *View) MessagesFromRoot(root ident.Uuid, count int32) []chat.Message {
	if count == 0 {
		return nil
	}

	forward := count > 0
	if !forward {
		count = -count
	}

	var out []chat.Message
	current := v.model.MessageByID(root)
	for i := int32(0); i < count && current != nil; i++ {
		out = append(out, *current)
		if forward {
			current = v.model.MessageByID(current.Next)
		} else {
			current = v.model.MessageByID(current.Previous)
		}
	}

	if !forward {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

func toSet(ids []ident.Uuid) map[ident.Uuid]struct{} {
	set := make(map[ident.Uuid]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func inRange(at, start, end time.Time) bool {
	return !at.Before(start) && !at.After(end)
}
