package main

import (
	"context"
	"os"
	"os/signal"
	"os/user"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"lanshare/discovery"
	"lanshare/storage"
)

func main() {
	app := &cli.App{
		Name:  "lanshare",
		Usage: "advertise this machine on the local network and watch for peers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "username",
				Aliases: []string{"u"},
				Usage:   "display name to advertise (defaults to the current user)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   9876,
				Usage:   "TCP port to advertise",
			},
			&cli.StringFlag{
				Name:  "service",
				Value: discovery.DefaultService,
				Usage: "DNS-SD service type to advertise and browse",
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "directory for the sighting journal (defaults to the OS data dir)",
			},
			&cli.DurationFlag{
				Name:  "refresh",
				Value: discovery.DefaultRefreshInterval,
				Usage: "interval between browse scans",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func run(c *cli.Context) error {
	if c.Bool("verbose") {
		logrus.SetLevel(logrus.DebugLevel)
	}

	username := c.String("username")
	if username == "" {
		username = defaultUsername()
	}

	dataDir := c.String("data-dir")
	if dataDir == "" {
		resolved, err := storage.ResolveDataDir()
		if err != nil {
			return err
		}
		dataDir = resolved
	}

	store, dbPath, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logrus.WithError(err).Warn("journal close failed")
		}
	}()

	identity := discovery.NewLocalIdentity(username, c.Int("port"))
	logrus.WithFields(logrus.Fields{
		"username": identity.RequestedUsername(),
		"suffix":   identity.Suffix(),
		"port":     identity.Port(),
		"journal":  dbPath,
	}).Info("starting discovery")

	service, err := discovery.Start(identity, discovery.Config{
		Service:         c.String("service"),
		RefreshInterval: c.Duration("refresh"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		consumeEvents(service.Events(), store)
	}()

	<-ctx.Done()
	logrus.Info("shutting down")

	// Stop closes the event stream; the journal must outlive the consumer.
	service.Stop()
	<-consumerDone
	return nil
}

func consumeEvents(events <-chan discovery.Event, store *storage.Store) {
	for event := range events {
		switch event.Type {
		case discovery.EventRegistered:
			logrus.WithField("name", event.Name).Info("advertisement registered")
			if err := store.RecordRegistered(event.Name); err != nil {
				logrus.WithError(err).Warn("journal write failed")
			}
		case discovery.EventUsernameChanged:
			logrus.WithField("username", event.Username).Warn("advertised username changed")
		case discovery.EventPeerAdded:
			peer := event.Peer
			logrus.WithFields(logrus.Fields{
				"username": peer.Username,
				"address":  peer.Address,
				"port":     peer.Port,
			}).Info("peer available")
			if err := store.RecordAdded(peer.ServiceName, peer.Username, peer.Hostname, peer.Address, peer.Port); err != nil {
				logrus.WithError(err).Warn("journal write failed")
			}
		case discovery.EventPeerRemoved:
			logrus.WithField("username", event.Username).Info("peer gone")
			if err := store.RecordRemoved(event.Peer.ServiceName, event.Username); err != nil {
				logrus.WithError(err).Warn("journal write failed")
			}
		case discovery.EventError:
			logrus.WithField("error", event.Message).Error("discovery failed")
		}
	}
}

func defaultUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "anonymous"
}
