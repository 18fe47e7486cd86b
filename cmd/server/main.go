// Command server runs one chat server instance.
package main

import (
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/ezhuang13/codeu-project-2017/auth"
	"github.com/ezhuang13/codeu-project-2017/config"
	"github.com/ezhuang13/codeu-project-2017/crypto"
	"github.com/ezhuang13/codeu-project-2017/ident"
	"github.com/ezhuang13/codeu-project-2017/relay"
	"github.com/ezhuang13/codeu-project-2017/server"
	"github.com/ezhuang13/codeu-project-2017/storage"
	"github.com/ezhuang13/codeu-project-2017/transport"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := config.ApplyLogLevel(cfg.LogLevel); err != nil {
		logrus.WithError(err).Fatal("Invalid log level")
	}

	id, err := ident.Parse(cfg.ServerID)
	if err != nil {
		logrus.WithError(err).Fatal("Invalid server id")
	}

	keys, err := loadKeys(cfg.SecretKey)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to set up server keys")
	}

	db, err := badger.Open(badger.DefaultOptions(cfg.DataDir).WithLogger(nil))
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open database")
	}
	defer db.Close()

	var rel relay.Relay = relay.NoOp{}
	if cfg.RelayAddr != "" {
		rel = relay.NewRemote(transport.SecureSource(
			transport.NewClientSource(cfg.RelayAddr), keys, true))
		logrus.WithField("relay", cfg.RelayAddr).Info("Relaying enabled")
	}

	srv := server.New(id, []byte(cfg.Secret), keys, auth.New(db), storage.New(db), rel)

	go func() {
		handler := promhttp.HandlerFor(srv.Metrics().Registry(), promhttp.HandlerOpts{})
		if err := http.ListenAndServe(cfg.MetricsAddr, handler); err != nil {
			logrus.WithError(err).Warn("Metrics endpoint stopped")
		}
	}()

	source, err := transport.NewServerSource(cfg.ListenAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen")
	}
	defer source.Close()

	logrus.WithFields(logrus.Fields{
		"id":     id.String(),
		"listen": cfg.ListenAddr,
	}).Info("Chat server started")
	srv.Serve(source)
}

// loadKeys derives the long-lived key pair from the configured hex
// private key, or generates a fresh pair when none is configured.
func loadKeys(secretKey string) (*crypto.KeyPair, error) {
	if secretKey == "" {
		return crypto.GenerateKeyPair()
	}

	raw, err := hex.DecodeString(secretKey)
	if err != nil {
		return nil, fmt.Errorf("secret key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("secret key has %d bytes, want 32", len(raw))
	}
	var key [32]byte
	copy(key[:], raw)
	return crypto.FromSecretKey(key)
}
