// Command overlaycore-gatewayd runs a standalone overlay gateway: it binds
// a UDP listener, loads the local OpenPGP certificate and verification
// policy, and serves the Sessions that inbound datagrams create until
// interrupted. It opens no outbound Sessions of its own.
package main

import (
	"context"
	"flag"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"overlaycore/application"
	"overlaycore/application/logging"
	"overlaycore/internal/config"
	"overlaycore/internal/gateway"
	"overlaycore/internal/keyring"
	"overlaycore/internal/keyserver"
)

func main() {
	configPath := flag.String("config", "/etc/overlaycore/gatewayd.json", "path to the gateway configuration file")
	flag.Parse()

	logger := logging.NewLogLogger()

	if err := run(*configPath, logger); err != nil {
		logger.Printf("overlaycore-gatewayd: %v", err)
		os.Exit(1)
	}
}

func run(configPath string, logger logging.Logger) error {
	file, err := config.Load(configPath)
	if err != nil {
		return err
	}

	listenAddr, err := netip.ParseAddrPort(file.ListenAddress)
	if err != nil {
		return err
	}

	localCert, err := os.ReadFile(file.CertificatePath)
	if err != nil {
		return err
	}

	keyringStore := keyring.New(file.KeyringSnapshotPath)
	ksClient := newKeyserverClient(file.Keyserver)

	gw, err := gateway.New(
		listenAddr,
		application.Credentials{Certificate: localCert, Priority: "NOISE_XX_CHACHAPOLY_SHA256"},
		file.Policy(),
		keyringStore,
		ksClient,
		logger,
	)
	if err != nil {
		return err
	}
	defer func() { _ = gw.Close() }()

	gw.SetUpstream(func(plaintext []byte) {
		logger.Printf("overlaycore-gatewayd: delivered %d bytes upstream", len(plaintext))
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Printf("overlaycore-gatewayd: listening on %s", listenAddr)
	err = gw.Serve(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func newKeyserverClient(baseURL string) *keyserver.Client {
	if baseURL == "" {
		return nil
	}
	return keyserver.New(baseURL)
}
