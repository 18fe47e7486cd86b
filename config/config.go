// Package config loads process configuration from the environment.
// The core never parses configuration itself; everything it needs is
// passed in at construction by the cmd layer.
package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// Server holds the chat server process configuration, read from
// CHAT_-prefixed environment variables.
type Server struct {
	// ServerID names this instance to the relay, in dotted-hex Uuid
	// form.
	ServerID string `envconfig:"SERVER_ID" default:"1"`
	// Secret authenticates this instance to the relay.
	Secret string `envconfig:"SECRET" default:""`
	// SecretKey is the server's long-lived private key in hex. Empty
	// means generate a fresh key pair at startup.
	SecretKey string `envconfig:"SECRET_KEY" default:""`

	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":2017"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	DataDir     string `envconfig:"DATA_DIR" default:"chat-data"`
	// RelayAddr is the relay's host:port. Empty means standalone.
	RelayAddr string `envconfig:"RELAY_ADDR" default:""`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadServer reads the server configuration from the environment.
func LoadServer() (*Server, error) {
	var c Server
	if err := envconfig.Process("chat", &c); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &c, nil
}

// Relay holds the relay process configuration, read from RELAY_-
// prefixed environment variables.
type Relay struct {
	// RelayID roots the ids the relay allocates for bundles.
	RelayID    string `envconfig:"RELAY_ID" default:"63"`
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":2018"`
	// Servers lists admitted instances as comma-separated id=secret
	// pairs. Empty leaves the relay open.
	Servers  string `envconfig:"SERVERS" default:""`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadRelay reads the relay configuration from the environment.
func LoadRelay() (*Relay, error) {
	var c Relay
	if err := envconfig.Process("relay", &c); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &c, nil
}

// ServerEntries parses the Servers list into id/secret pairs.
func (c *Relay) ServerEntries() ([][2]string, error) {
	if c.Servers == "" {
		return nil, nil
	}
	var entries [][2]string
	for _, pair := range strings.Split(c.Servers, ",") {
		id, secret, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("malformed server entry %q, want id=secret", pair)
		}
		entries = append(entries, [2]string{id, secret})
	}
	return entries, nil
}

// ApplyLogLevel sets the global logrus level from its textual name.
func ApplyLogLevel(name string) error {
	level, err := logrus.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("log level %q: %w", name, err)
	}
	logrus.SetLevel(level)
	return nil
}
