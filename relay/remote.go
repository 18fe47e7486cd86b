package relay

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ezhuang13/codeu-project-2017/chat"
	"github.com/ezhuang13/codeu-project-2017/codec"
	"github.com/ezhuang13/codeu-project-2017/ident"
	"github.com/ezhuang13/codeu-project-2017/transport"
)

// Remote speaks the relay wire protocol over a ConnectionSource. Each
// Read or Write opens one connection, exchanges one request/response
// pair, and closes it.
type Remote struct {
	source transport.ConnectionSource
	log    *logrus.Entry
}

// NewRemote creates a relay client over the given source. Wrap the
// source with transport.SecureSource to encrypt the link.
func NewRemote(source transport.ConnectionSource) *Remote {
	return &Remote{
		source: source,
		log:    logrus.WithField("component", "relay-client"),
	}
}

// Read pulls bundles retained after lastSeen from the remote relay.
func (c *Remote) Read(serverID ident.Uuid, secret []byte, lastSeen ident.Uuid, max int) ([]Bundle, error) {
	conn, err := c.source.Connect()
	if err != nil {
		return nil, fmt.Errorf("relay read: %w", err)
	}
	defer conn.Close()

	if err := chat.WriteOpcode(conn, chat.OpRelayReadRequest); err != nil {
		return nil, err
	}
	if err := codec.Uuid.Write(conn, serverID); err != nil {
		return nil, err
	}
	if err := codec.Bytes.Write(conn, secret); err != nil {
		return nil, err
	}
	if err := codec.Uuid.Write(conn, lastSeen); err != nil {
		return nil, err
	}
	if err := codec.Int32.Write(conn, int32(max)); err != nil {
		return nil, err
	}

	op, err := chat.ReadOpcode(conn)
	if err != nil {
		return nil, err
	}
	if op != chat.OpRelayReadResponse {
		return nil, fmt.Errorf("relay read: unexpected response %v", op)
	}
	return codec.Sequence(BundleSerializer).Read(conn)
}

// Write pushes one bundle to the remote relay.
func (c *Remote) Write(serverID ident.Uuid, secret []byte, user, conversation, message Component) (bool, error) {
	conn, err := c.source.Connect()
	if err != nil {
		return false, fmt.Errorf("relay write: %w", err)
	}
	defer conn.Close()

	if err := chat.WriteOpcode(conn, chat.OpRelayWriteRequest); err != nil {
		return false, err
	}
	if err := codec.Uuid.Write(conn, serverID); err != nil {
		return false, err
	}
	if err := codec.Bytes.Write(conn, secret); err != nil {
		return false, err
	}
	for _, component := range []Component{user, conversation, message} {
		if err := ComponentSerializer.Write(conn, component); err != nil {
			return false, err
		}
	}

	op, err := chat.ReadOpcode(conn)
	if err != nil {
		return false, err
	}
	if op != chat.OpRelayWriteResponse {
		return false, fmt.Errorf("relay write: unexpected response %v", op)
	}
	accepted, err := codec.Int32.Read(conn)
	if err != nil {
		return false, err
	}
	return accepted != 0, nil
}

// Serve accepts connections from the source and answers relay frames
// against the given backing relay until the source closes. Each
// connection carries exactly one exchange.
func Serve(source transport.ConnectionSource, backing Relay) {
	log := logrus.WithField("component", "relay-server")
	for {
		conn, err := source.Connect()
		if err != nil {
			log.WithFields(logrus.Fields{
				"function": "Serve",
				"error":    err,
			}).Info("Source closed, stopping")
			return
		}
		go func() {
			defer conn.Close()
			if err := handle(conn, backing, log); err != nil {
				log.WithFields(logrus.Fields{
					"function": "handle",
					"error":    err,
				}).Warn("Relay exchange failed")
			}
		}()
	}
}

func handle(conn transport.Connection, backing Relay, log *logrus.Entry) error {
	op, err := chat.ReadOpcode(conn)
	if err != nil {
		return err
	}

	switch op {
	case chat.OpRelayReadRequest:
		serverID, err := codec.Uuid.Read(conn)
		if err != nil {
			return err
		}
		secret, err := codec.Bytes.Read(conn)
		if err != nil {
			return err
		}
		lastSeen, err := codec.Uuid.Read(conn)
		if err != nil {
			return err
		}
		max, err := codec.Int32.Read(conn)
		if err != nil {
			return err
		}

		bundles, err := backing.Read(serverID, secret, lastSeen, int(max))
		if err != nil {
			return err
		}
		if err := chat.WriteOpcode(conn, chat.OpRelayReadResponse); err != nil {
			return err
		}
		return codec.Sequence(BundleSerializer).Write(conn, bundles)

	case chat.OpRelayWriteRequest:
		serverID, err := codec.Uuid.Read(conn)
		if err != nil {
			return err
		}
		secret, err := codec.Bytes.Read(conn)
		if err != nil {
			return err
		}
		var components [3]Component
		for i := range components {
			if components[i], err = ComponentSerializer.Read(conn); err != nil {
				return err
			}
		}

		accepted, err := backing.Write(serverID, secret, components[0], components[1], components[2])
		if err != nil {
			return err
		}
		if err := chat.WriteOpcode(conn, chat.OpRelayWriteResponse); err != nil {
			return err
		}
		value := int32(0)
		if accepted {
			value = 1
		}
		return codec.Int32.Write(conn, value)

	default:
		log.WithFields(logrus.Fields{
			"function": "handle",
			"opcode":   op.String(),
		}).Warn("Unrecognized relay frame")
		return chat.WriteOpcode(conn, chat.OpNoMessage)
	}
}
