// Command relay runs the store-and-forward relay that chat servers
// replicate through.
package main

import (
	"github.com/sirupsen/logrus"

	"github.com/ezhuang13/codeu-project-2017/config"
	"github.com/ezhuang13/codeu-project-2017/crypto"
	"github.com/ezhuang13/codeu-project-2017/ident"
	"github.com/ezhuang13/codeu-project-2017/relay"
	"github.com/ezhuang13/codeu-project-2017/transport"
)

func main() {
	cfg, err := config.LoadRelay()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := config.ApplyLogLevel(cfg.LogLevel); err != nil {
		logrus.WithError(err).Fatal("Invalid log level")
	}

	id, err := ident.Parse(cfg.RelayID)
	if err != nil {
		logrus.WithError(err).Fatal("Invalid relay id")
	}

	keys, err := crypto.GenerateKeyPair()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to generate relay keys")
	}

	backing := relay.NewMemory(id)
	entries, err := cfg.ServerEntries()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid server list")
	}
	for _, entry := range entries {
		serverID, err := ident.Parse(entry[0])
		if err != nil {
			logrus.WithError(err).WithField("id", entry[0]).Fatal("Invalid server id")
		}
		backing.RegisterServer(serverID, []byte(entry[1]))
	}

	source, err := transport.NewServerSource(cfg.ListenAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen")
	}
	defer source.Close()

	logrus.WithFields(logrus.Fields{
		"id":      id.String(),
		"listen":  cfg.ListenAddr,
		"servers": len(entries),
	}).Info("Relay started")
	relay.Serve(transport.SecureSource(source, keys, false), backing)
}
