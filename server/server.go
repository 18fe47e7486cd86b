package server

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ezhuang13/codeu-project-2017/auth"
	"github.com/ezhuang13/codeu-project-2017/chat"
	"github.com/ezhuang13/codeu-project-2017/codec"
	"github.com/ezhuang13/codeu-project-2017/crypto"
	"github.com/ezhuang13/codeu-project-2017/ident"
	"github.com/ezhuang13/codeu-project-2017/metrics"
	"github.com/ezhuang13/codeu-project-2017/queue"
	"github.com/ezhuang13/codeu-project-2017/relay"
	"github.com/ezhuang13/codeu-project-2017/storage"
	"github.com/ezhuang13/codeu-project-2017/transport"
)

const (
	// defaultPullInterval is the period of the self-rescheduling relay
	// pull task.
	defaultPullInterval = 5 * time.Second

	// maxPullBundles bounds one pull batch.
	maxPullBundles = 32
)

// Server is the frame-dispatching chat core. One serial queue owns the
// model; connection handling, relay pulls and relay pushes are all
// tasks on it.
type Server struct {
	id     ident.Uuid
	secret []byte
	keys   *crypto.KeyPair

	queue      *queue.Queue
	model      *Model
	controller *Controller
	view       *View

	relay        relay.Relay
	lastSeen     ident.Uuid
	pullInterval time.Duration

	metrics *metrics.Metrics
	log     *logrus.Entry
}

// New assembles a server. The id names this instance to the relay; the
// secret authenticates it there. authn and store may be nil for a
// server without persistence. A nil rel leaves the server standalone.
func New(id ident.Uuid, secret []byte, keys *crypto.KeyPair, authn *auth.Authentication, store *storage.Storage, rel relay.Relay) *Server {
	if rel == nil {
		rel = relay.NoOp{}
	}

	model := NewModel()
	m := metrics.New()
	q := queue.New()
	q.OnDepth(func(depth int) {
		m.QueueDepth.Set(float64(depth))
	})

	s := &Server{
		id:           id,
		secret:       secret,
		keys:         keys,
		queue:        q,
		model:        model,
		controller:   NewController(model, authn, store, ident.NewRandomGenerator(id)),
		view:         NewView(model),
		relay:        rel,
		pullInterval: defaultPullInterval,
		metrics:      m,
		log:          logrus.WithField("component", "server"),
	}

	s.schedulePull()
	return s
}

// Metrics returns the server's instruments, for the exposition handler.
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// Serve accepts connections from the source until it closes, handing
// each one to the queue.
func (s *Server) Serve(source transport.ConnectionSource) {
	for {
		conn, err := source.Connect()
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"function": "Serve",
				"error":    err,
			}).Info("Connection source closed, stopping")
			return
		}
		s.HandleConnection(conn)
	}
}

// HandleConnection schedules the full request lifecycle, decode through
// respond, as one task. The connection is always closed on task exit.
func (s *Server) HandleConnection(conn transport.Connection) {
	s.queue.Schedule(func() {
		defer conn.Close()
		if err := s.handleFrame(conn); err != nil {
			s.log.WithFields(logrus.Fields{
				"function": "HandleConnection",
				"error":    err,
			}).Warn("Request failed")
		}
	})
}

// Close drains the queue and stops the server.
func (s *Server) Close() {
	s.queue.Close()
}

// handleFrame reads one request frame and writes one response frame.
// Decode and crypto faults are answered with the NO_MESSAGE sentinel
// rather than taking the server down.
func (s *Server) handleFrame(conn transport.Connection) error {
	op, err := chat.ReadOpcode(conn)
	if err != nil {
		return err
	}

	s.metrics.Requests.WithLabelValues(op.String()).Inc()
	s.log.WithFields(logrus.Fields{
		"function": "handleFrame",
		"opcode":   op.String(),
	}).Debug("Handling request")

	var handleErr error
	switch op {
	case chat.OpNewUserRequest:
		handleErr = s.handleNewUser(conn)
	case chat.OpLoginRequest:
		handleErr = s.handleLogin(conn)
	case chat.OpNewConversationRequest:
		handleErr = s.handleNewConversation(conn)
	case chat.OpNewMessageRequest:
		handleErr = s.handleNewMessage(conn)
	case chat.OpGetUsersByIDRequest:
		handleErr = s.handleGetUsersByID(conn)
	case chat.OpGetUsersExcludingRequest:
		handleErr = s.handleGetUsersExcluding(conn)
	case chat.OpGetAllConversationsRequest:
		handleErr = s.handleGetAllConversations(conn)
	case chat.OpGetConversationsByIDRequest:
		handleErr = s.handleGetConversationsByID(conn)
	case chat.OpGetConversationsByTimeRequest:
		handleErr = s.handleGetConversationsByTime(conn)
	case chat.OpGetConversationsByTitleRequest:
		handleErr = s.handleGetConversationsByTitle(conn)
	case chat.OpGetMessagesByIDRequest:
		handleErr = s.handleGetMessagesByID(conn)
	case chat.OpGetMessagesByTimeRequest:
		handleErr = s.handleGetMessagesByTime(conn)
	case chat.OpGetMessagesByRangeRequest:
		handleErr = s.handleGetMessagesByRange(conn)
	case chat.OpServerPublicKeyRequest:
		handleErr = s.handleServerPublicKey(conn)
	default:
		s.log.WithFields(logrus.Fields{
			"function": "handleFrame",
			"opcode":   op.String(),
		}).Warn("Unrecognized opcode")
		return chat.WriteOpcode(conn, chat.OpNoMessage)
	}

	if handleErr != nil {
		s.log.WithFields(logrus.Fields{
			"function": "handleFrame",
			"opcode":   op.String(),
			"error":    handleErr,
		}).Warn("Request handling failed, answering with sentinel")
		return chat.WriteOpcode(conn, chat.OpNoMessage)
	}
	return nil
}

func (s *Server) handleNewUser(conn transport.Connection) error {
	username, err := codec.EncryptedString.Read(conn, s.keys)
	if err != nil {
		return err
	}
	password, err := codec.EncryptedString.Read(conn, s.keys)
	if err != nil {
		return err
	}

	result := s.controller.NewUser(username, password)

	if err := chat.WriteOpcode(conn, chat.OpNewUserResponse); err != nil {
		return err
	}
	return codec.Int32.Write(conn, int32(result))
}

func (s *Server) handleLogin(conn transport.Connection) error {
	clientKey, err := codec.PublicKey.Read(conn)
	if err != nil {
		return err
	}
	username, err := codec.EncryptedString.Read(conn, s.keys)
	if err != nil {
		return err
	}
	password, err := codec.EncryptedString.Read(conn, s.keys)
	if err != nil {
		return err
	}

	user := s.controller.Login(username, password)

	if err := chat.WriteOpcode(conn, chat.OpLoginResponse); err != nil {
		return err
	}
	if user == nil {
		if err := codec.NullableEncrypted(chat.EncryptedUser).Write(conn, nil, clientKey); err != nil {
			return err
		}
		return codec.Nullable(codec.Uuid).Write(conn, nil)
	}

	value := *user
	if err := codec.NullableEncrypted(chat.EncryptedUser).Write(conn, &value, clientKey); err != nil {
		return err
	}
	token := user.Token
	return codec.Nullable(codec.Uuid).Write(conn, &token)
}

func (s *Server) handleNewConversation(conn transport.Connection) error {
	clientKey, err := codec.PublicKey.Read(conn)
	if err != nil {
		return err
	}
	title, err := codec.EncryptedString.Read(conn, s.keys)
	if err != nil {
		return err
	}
	owner, err := codec.Uuid.Read(conn)
	if err != nil {
		return err
	}
	token, err := codec.Uuid.Read(conn)
	if err != nil {
		return err
	}

	conversation := s.controller.NewConversation(title, owner, token)

	if err := chat.WriteOpcode(conn, chat.OpNewConversationResponse); err != nil {
		return err
	}
	if conversation == nil {
		return codec.NullableEncrypted(chat.EncryptedConversation).Write(conn, nil, clientKey)
	}
	value := *conversation
	return codec.NullableEncrypted(chat.EncryptedConversation).Write(conn, &value, clientKey)
}

func (s *Server) handleNewMessage(conn transport.Connection) error {
	clientKey, err := codec.PublicKey.Read(conn)
	if err != nil {
		return err
	}
	author, err := codec.Uuid.Read(conn)
	if err != nil {
		return err
	}
	token, err := codec.Uuid.Read(conn)
	if err != nil {
		return err
	}
	conversationID, err := codec.Uuid.Read(conn)
	if err != nil {
		return err
	}
	body, err := codec.EncryptedString.Read(conn, s.keys)
	if err != nil {
		return err
	}

	message := s.controller.NewMessage(author, token, conversationID, body)
	if message != nil {
		s.schedulePush(conversationID, message)
	}

	if err := chat.WriteOpcode(conn, chat.OpNewMessageResponse); err != nil {
		return err
	}
	if message == nil {
		return codec.NullableEncrypted(chat.EncryptedMessage).Write(conn, nil, clientKey)
	}
	value := *message
	return codec.NullableEncrypted(chat.EncryptedMessage).Write(conn, &value, clientKey)
}

func (s *Server) handleGetUsersByID(conn transport.Connection) error {
	clientKey, err := codec.PublicKey.Read(conn)
	if err != nil {
		return err
	}
	ids, err := codec.Sequence(codec.Uuid).Read(conn)
	if err != nil {
		return err
	}

	users := s.view.UsersByID(ids)
	if err := chat.WriteOpcode(conn, chat.OpGetUsersByIDResponse); err != nil {
		return err
	}
	return codec.SequenceEncrypted(chat.EncryptedUser).Write(conn, users, clientKey)
}

func (s *Server) handleGetUsersExcluding(conn transport.Connection) error {
	clientKey, err := codec.PublicKey.Read(conn)
	if err != nil {
		return err
	}
	ids, err := codec.Sequence(codec.Uuid).Read(conn)
	if err != nil {
		return err
	}

	users := s.view.UsersExcluding(ids)
	if err := chat.WriteOpcode(conn, chat.OpGetUsersExcludingResponse); err != nil {
		return err
	}
	return codec.SequenceEncrypted(chat.EncryptedUser).Write(conn, users, clientKey)
}

func (s *Server) handleGetAllConversations(conn transport.Connection) error {
	clientKey, err := codec.PublicKey.Read(conn)
	if err != nil {
		return err
	}

	summaries := s.view.AllConversations()
	if err := chat.WriteOpcode(conn, chat.OpGetAllConversationsResponse); err != nil {
		return err
	}
	return codec.SequenceEncrypted(chat.EncryptedSummary).Write(conn, summaries, clientKey)
}

func (s *Server) handleGetConversationsByID(conn transport.Connection) error {
	clientKey, err := codec.PublicKey.Read(conn)
	if err != nil {
		return err
	}
	ids, err := codec.Sequence(codec.Uuid).Read(conn)
	if err != nil {
		return err
	}

	conversations := s.view.ConversationsByID(ids)
	if err := chat.WriteOpcode(conn, chat.OpGetConversationsByIDResponse); err != nil {
		return err
	}
	return codec.SequenceEncrypted(chat.EncryptedConversation).Write(conn, conversations, clientKey)
}

func (s *Server) handleGetConversationsByTime(conn transport.Connection) error {
	clientKey, err := codec.PublicKey.Read(conn)
	if err != nil {
		return err
	}
	start, err := codec.Time.Read(conn)
	if err != nil {
		return err
	}
	end, err := codec.Time.Read(conn)
	if err != nil {
		return err
	}

	conversations := s.view.ConversationsInRange(start, end)
	if err := chat.WriteOpcode(conn, chat.OpGetConversationsByTimeResponse); err != nil {
		return err
	}
	return codec.SequenceEncrypted(chat.EncryptedConversation).Write(conn, conversations, clientKey)
}

func (s *Server) handleGetConversationsByTitle(conn transport.Connection) error {
	clientKey, err := codec.PublicKey.Read(conn)
	if err != nil {
		return err
	}
	filter, err := codec.EncryptedString.Read(conn, s.keys)
	if err != nil {
		return err
	}

	conversations := s.view.ConversationsByTitle(filter)
	if err := chat.WriteOpcode(conn, chat.OpGetConversationsByTitleResponse); err != nil {
		return err
	}
	return codec.SequenceEncrypted(chat.EncryptedConversation).Write(conn, conversations, clientKey)
}

func (s *Server) handleGetMessagesByID(conn transport.Connection) error {
	clientKey, err := codec.PublicKey.Read(conn)
	if err != nil {
		return err
	}
	ids, err := codec.Sequence(codec.Uuid).Read(conn)
	if err != nil {
		return err
	}

	messages := s.view.MessagesByID(ids)
	if err := chat.WriteOpcode(conn, chat.OpGetMessagesByIDResponse); err != nil {
		return err
	}
	return codec.SequenceEncrypted(chat.EncryptedMessage).Write(conn, messages, clientKey)
}

func (s *Server) handleGetMessagesByTime(conn transport.Connection) error {
	clientKey, err := codec.PublicKey.Read(conn)
	if err != nil {
		return err
	}
	start, err := codec.Time.Read(conn)
	if err != nil {
		return err
	}
	end, err := codec.Time.Read(conn)
	if err != nil {
		return err
	}

	messages := s.view.MessagesInRange(start, end)
	if err := chat.WriteOpcode(conn, chat.OpGetMessagesByTimeResponse); err != nil {
		return err
	}
	return codec.SequenceEncrypted(chat.EncryptedMessage).Write(conn, messages, clientKey)
}

func (s *Server) handleGetMessagesByRange(conn transport.Connection) error {
	clientKey, err := codec.PublicKey.Read(conn)
	if err != nil {
		return err
	}
	root, err := codec.Uuid.Read(conn)
	if err != nil {
		return err
	}
	count, err := codec.Int32.Read(conn)
	if err != nil {
		return err
	}

	messages := s.view.MessagesFromRoot(root, count)
	if err := chat.WriteOpcode(conn, chat.OpGetMessagesByRangeResponse); err != nil {
		return err
	}
	return codec.SequenceEncrypted(chat.EncryptedMessage).Write(conn, messages, clientKey)
}

func (s *Server) handleServerPublicKey(conn transport.Connection) error {
	if err := chat.WriteOpcode(conn, chat.OpServerPublicKeyResponse); err != nil {
		return err
	}
	if err := codec.String.Write(conn, crypto.Algorithm); err != nil {
		return err
	}
	return codec.Bytes.Write(conn, s.keys.Public[:])
}

// schedulePush packs the accepted message's replication triple and
// schedules the relay write as its own task, so the responding request
// does not wait on the relay round-trip.
func (s *Server) schedulePush(conversationID ident.Uuid, message *chat.Message) {
	author := s.model.UserByID(message.Author)
	conversation := s.model.ConversationByID(conversationID)
	if author == nil || conversation == nil {
		return
	}

	user := relay.Pack(author.ID, author.Name, author.Creation)
	conv := relay.Pack(conversation.ID, conversation.Title, conversation.Creation)
	msg := relay.Pack(message.ID, message.Content, message.Creation)

	s.queue.Schedule(func() {
		accepted, err := s.relay.Write(s.id, s.secret, user, conv, msg)
		if err != nil || !accepted {
			s.metrics.RelayPushFailures.Inc()
			s.log.WithFields(logrus.Fields{
				"function": "schedulePush",
				"accepted": accepted,
				"error":    err,
			}).Warn("Relay push failed, not retrying")
		}
	})
}

// schedulePull arms the recurring relay pull. The task reschedules
// itself after each run, so pulls never overlap.
func (s *Server) schedulePull() {
	s.queue.ScheduleIn(s.pullInterval, func() {
		s.pullRelay()
		s.schedulePull()
	})
}

// pullRelay fetches one batch of bundles past the lastSeen watermark
// and merges them in order. Relay failures are logged and retried on
// the next cycle.
func (s *Server) pullRelay() {
	bundles, err := s.relay.Read(s.id, s.secret, s.lastSeen, maxPullBundles)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"function": "pullRelay",
			"error":    err,
		}).Warn("Relay pull failed")
		return
	}
	if len(bundles) == 0 {
		return
	}

	for _, bundle := range bundles {
		s.mergeBundle(bundle)
	}
	s.lastSeen = bundles[len(bundles)-1].ID

	s.log.WithFields(logrus.Fields{
		"function": "pullRelay",
		"bundles":  len(bundles),
		"lastSeen": s.lastSeen.String(),
	}).Debug("Merged relay batch")
}

// mergeBundle folds one bundle into the model. The merge is idempotent:
// components already present are left alone, so replaying a bundle is a
// no-op. A bundle whose user is unknown locally is skipped entirely,
// with no partial merge.
func (s *Server) mergeBundle(bundle relay.Bundle) {
	if s.model.UserByID(bundle.User.ID) == nil {
		s.metrics.RelaySkips.Inc()
		s.log.WithFields(logrus.Fields{
			"function": "mergeBundle",
			"bundle":   bundle.ID.String(),
			"user":     bundle.User.ID.String(),
		}).Warn("Skipping bundle for unknown user")
		return
	}

	conversation := s.model.ConversationByID(bundle.Conversation.ID)
	if conversation == nil {
		// First local observer becomes the local owner record. Under
		// concurrent multi-server merges this owner may differ from the
		// conversation's original owner elsewhere; arrival order is the
		// tie-break.
		conversation = s.controller.AddConversationRaw(
			bundle.Conversation.ID, bundle.User.ID, bundle.Conversation.Time, bundle.Conversation.Text)
		if conversation == nil {
			s.metrics.RelaySkips.Inc()
			s.log.WithFields(logrus.Fields{
				"function": "mergeBundle",
				"bundle":   bundle.ID.String(),
			}).Warn("Skipping bundle with unusable conversation id")
			return
		}
	}

	if s.model.MessageByID(bundle.Message.ID) == nil {
		if s.controller.AddMessageRaw(
			bundle.Message.ID, bundle.User.ID, conversation.ID, bundle.Message.Time, bundle.Message.Text) == nil {
			s.metrics.RelaySkips.Inc()
			return
		}
	}
	s.metrics.RelayMerges.Inc()
}
