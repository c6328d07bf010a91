// Command peernotes runs a notes and board node with a line oriented
// control surface on stdin.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/opd-ai/peernotes"
	"github.com/opd-ai/peernotes/config"
	"github.com/opd-ai/peernotes/peer"
	"github.com/opd-ai/peernotes/router"
	"github.com/opd-ai/peernotes/store"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (optional)")
	listen := flag.Bool("listen", true, "Accept inbound links")
	flag.Parse()

	opts, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}
	if err := config.ApplyLogLevel(opts); err != nil {
		logrus.WithError(err).Fatal("Invalid log level")
	}

	node, err := peernotes.New(opts, nil)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create node")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	node.OnFactReceived(func(f store.Fact) {
		fmt.Fprintln(os.Stdout, "<", formatFact(f))
	})
	node.OnPeerCountChanged(func(count int) {
		logrus.WithField("peers", count).Info("Peer count changed")
	})
	node.OnContactsUpdated(func(contacts []peer.Contact) {
		logrus.WithField("contacts", len(contacts)).Debug("Contacts updated")
	})
	node.OnSendResult(func(r router.SendResult) {
		if r.Err != nil {
			logrus.WithFields(logrus.Fields{
				"kind":   r.Kind,
				"target": r.Target,
				"error":  r.Err.Error(),
			}).Warn("Send failed")
		}
	})

	done := make(chan error, 1)
	go func() { done <- node.Run(ctx) }()

	if *listen {
		if err := node.Listen(); err != nil {
			logrus.WithError(err).Fatal("Failed to listen")
		}
		logrus.WithField("addr", node.ListenAddr()).Info("Listening")
	}
	node.Bootstrap(ctx)

	fmt.Printf("public key:     %s\nencryption key: %s\n", node.PublicKeyHex(), node.EncryptionPublicKeyHex())

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			quit, err := execute(ctx, node, scanner.Text(), os.Stdout)
			if err != nil {
				fmt.Fprintln(os.Stdout, "error:", err)
			}
			if quit {
				break
			}
		}
		stop()
	}()

	if err := <-done; err != nil && err != context.Canceled {
		logrus.WithError(err).Error("Node stopped")
	}
	if err := node.Close(); err != nil {
		logrus.WithError(err).Error("Failed to close node")
		os.Exit(1)
	}
}
