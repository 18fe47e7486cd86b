package transport

import (
	"io"
	"net"

	"github.com/sirupsen/logrus"
)

// Connection is an opaque bidirectional byte stream. The core reads a
// request frame, writes a response frame, and closes it.
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// ConnectionSource hands out connections. For a listening source each
// Connect blocks until a peer arrives; for a dialing source each
// Connect opens a fresh outbound stream.
type ConnectionSource interface {
	Connect() (Connection, error)
	Close() error
}

// ServerSource accepts inbound TCP connections.
type ServerSource struct {
	listener net.Listener
}

// NewServerSource starts listening on the given address
// (e.g. ":2017").
func NewServerSource(addr string) (*ServerSource, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewServerSource",
		"addr":     listener.Addr().String(),
	}).Info("Listening for connections")

	return &ServerSource{listener: listener}, nil
}

// Addr returns the bound listen address.
func (s *ServerSource) Addr() net.Addr {
	return s.listener.Addr()
}

// Connect blocks until the next inbound connection arrives.
func (s *ServerSource) Connect() (Connection, error) {
	conn, err := s.listener.Accept()
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Close stops accepting; a blocked Connect returns an error.
func (s *ServerSource) Close() error {
	return s.listener.Close()
}

// ClientSource dials a remote address on every Connect.
type ClientSource struct {
	addr string
}

// NewClientSource creates a dialing source for the given host:port.
func NewClientSource(addr string) *ClientSource {
	return &ClientSource{addr: addr}
}

// Connect opens a fresh TCP connection to the remote address.
func (c *ClientSource) Connect() (Connection, error) {
	conn, err := net.Dial("tcp", c.addr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Close is a no-op for a dialing source; individual connections are
// closed by their users.
func (c *ClientSource) Close() error {
	return nil
}
