package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/nats-io/nats.go"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/luxfi/signer/pkg/backup"
	"github.com/luxfi/signer/pkg/config"
	"github.com/luxfi/signer/pkg/encoding"
	"github.com/luxfi/signer/pkg/event"
	"github.com/luxfi/signer/pkg/kms"
	"github.com/luxfi/signer/pkg/kvstore"
	"github.com/luxfi/signer/pkg/logger"
	"github.com/luxfi/signer/pkg/messaging"
	"github.com/luxfi/signer/pkg/runloop"
	"github.com/luxfi/signer/pkg/signer"
	"github.com/luxfi/signer/pkg/stackerdb"
	"github.com/luxfi/signer/pkg/stacks"
	"github.com/luxfi/signer/pkg/threshold"
	_ "github.com/luxfi/signer/pkg/threshold/frost"
)

const eventBuffer = 64

// node holds everything a running signer owns.
type node struct {
	cfg      *config.Config
	nc       *nats.Conn
	local    *messaging.LocalPubSub
	bus      messaging.PubSub
	receiver *stackerdb.EventReceiver
	loop     *runloop.RunLoop
	signer   *signer.Signer
	store    *kvstore.BadgerKVStore
	sink     *event.Sink
	cmdSub   messaging.Subscription
	backups  *backup.Manager
}

func newNode(c *cli.Command) (_ *node, err error) {
	if err := config.InitViperConfig(c.String("config")); err != nil {
		return nil, err
	}
	logger.Init(viper.GetString("environment"), c.Bool("debug"))

	switch {
	case c.Bool("prompt-key"):
		if err := promptForPrivateKey(); err != nil {
			return nil, err
		}
	case c.Bool("decrypt-private-key"):
		if err := decryptPrivateKey(viper.GetString("message_private_key_file")); err != nil {
			return nil, err
		}
	}
	if addr := viper.GetString("consul.address"); addr != "" {
		if err := loadSignersFromConsul(addr, viper.GetString("consul.prefix")); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	n := &node{cfg: cfg}
	defer func() {
		if err != nil {
			n.Close()
		}
	}()

	log := logger.Logger()
	if cfg.NATS.URL != "" {
		n.nc, err = GetNATSConnection(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to nats: %w", err)
		}
		n.bus = messaging.NewNATSPubSub(n.nc)
		logger.Info("Connected to NATS", "url", n.nc.ConnectedUrl())
	} else {
		logger.Warn("No NATS url configured, using the in-process bus")
		n.local = messaging.NewLocalPubSub()
		n.bus = n.local
	}

	store := stackerdb.New(n.bus, stackerdb.Config{
		MinersContract:  cfg.StackerDB.MinersContract,
		SignersContract: cfg.StackerDB.SignersContract,
		SendPolicy:      cfg.SendRetry,
		FlushTimeout:    cfg.StackerDB.FlushTimeout,
	}, log)
	n.receiver = stackerdb.NewEventReceiver(n.bus,
		[]string{cfg.StackerDB.MinersContract, cfg.StackerDB.SignersContract}, eventBuffer, log)
	if err = n.receiver.Start(); err != nil {
		return nil, fmt.Errorf("subscribe to stackerdb: %w", err)
	}

	// The archive also holds this signer's key shares.
	var archive kvstore.KVStore
	if cfg.Archive.Enabled {
		n.store, err = newArchive(cfg)
		if err != nil {
			return nil, err
		}
		archive = n.store
	}

	keys, err := cfg.PublicKeySet()
	if err != nil {
		return nil, err
	}
	priv, err := cfg.PrivateKey()
	if err != nil {
		return nil, err
	}
	engineCfg := threshold.EngineConfig{
		SignerID:         cfg.SignerID,
		KeyIDs:           keys.SignerKeyIDs[cfg.SignerID],
		Threshold:        keys.ThresholdConfig(),
		Keys:             keys,
		PrivateKey:       priv,
		DkgPublicTimeout: cfg.DkgPublicTimeout,
		DkgEndTimeout:    cfg.DkgEndTimeout,
		NonceTimeout:     cfg.NonceTimeout,
		SignTimeout:      cfg.SignTimeout,
		Shares:           archive,
		Logger:           log,
	}
	coordinator, participant, err := threshold.Default().Build(cfg.Engine, engineCfg)
	if err != nil {
		return nil, fmt.Errorf("threshold engine %q (available: %s): %w",
			cfg.Engine, strings.Join(threshold.Default().List(), ", "), err)
	}

	n.loop = runloop.New(runloop.Config{
		SignerID:      cfg.SignerID,
		Keys:          keys,
		EventTimeout:  cfg.EventTimeout,
		InitPolicy:    cfg.InitRetry,
		CommandPolicy: cfg.CommandRetry,
	}, stacks.NewClient(cfg.NodeHost, log), store, coordinator, participant, log)
	n.signer = signer.New(n.loop, n.receiver.Events(), log)

	n.sink = event.NewSink(cfg.SignerID, archive, n.bus, log)
	return n, nil
}

// serveCommands feeds operator commands from the bus into the signer.
func (n *node) serveCommands(ctx context.Context) error {
	topic := event.CommandTopic(n.cfg.SignerID)
	sub, err := n.bus.Subscribe(topic, func(msg *nats.Msg) {
		var req event.CommandEvent
		if err := encoding.JsonBytesToStruct(msg.Data, &req); err != nil {
			logger.Warn("Dropping malformed command", "topic", msg.Subject, "error", err.Error())
			return
		}
		cmd, err := req.ToCommand()
		if err != nil {
			logger.Warn("Dropping invalid command", "topic", msg.Subject, "error", err.Error())
			return
		}
		if err := n.signer.Submit(ctx, cmd); err != nil {
			logger.Error("Failed to submit command", err, "command", cmd.CommandName())
			return
		}
		logger.Info("Command submitted", "command", cmd.CommandName())
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	n.cmdSub = sub
	logger.Info("Listening for commands", "topic", topic)
	return nil
}

func (n *node) Close() {
	var result *multierror.Error
	if n.backups != nil {
		n.backups.Stop()
	}
	if n.cmdSub != nil {
		if err := n.cmdSub.Unsubscribe(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if n.receiver != nil {
		if err := n.receiver.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if n.store != nil {
		if err := n.store.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if n.nc != nil {
		if err := n.nc.Drain(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if n.local != nil {
		n.local.Close()
	}
	threshold.Default().Close()
	if err := result.ErrorOrNil(); err != nil {
		logger.Error("Errors while shutting down", err)
	}
}

func newArchive(cfg *config.Config) (*kvstore.BadgerKVStore, error) {
	store, err := kvstore.NewBadgerKVStore(kvstore.BadgerConfig{
		NodeID:              fmt.Sprintf("signer-%d", cfg.SignerID),
		DBPath:              cfg.Archive.Path,
		EncryptionKey:       cfg.Archive.EncryptionKey,
		BackupEncryptionKey: cfg.Archive.EncryptionKey,
		BackupDir:           backupDir(cfg),
	})
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return store, nil
}

// startBackups runs periodic encrypted archive backups, shipping them to
// S3 when configured.
func (n *node) startBackups(ctx context.Context) error {
	if n.store == nil || n.store.BackupExecutor == nil {
		return nil
	}
	var uploader backup.Uploader
	if s3 := n.cfg.Archive.S3; s3.Enabled() {
		if s3.Prefix == "" {
			s3.Prefix = fmt.Sprintf("signer/%d/", n.cfg.SignerID)
		}
		u, err := backup.NewS3Uploader(ctx, s3, logger.Logger())
		if err != nil {
			return err
		}
		uploader = u
	}
	n.backups = backup.NewManager(n.store.BackupExecutor, uploader, n.cfg.Archive.BackupPeriod, logger.Logger())
	n.backups.Start(ctx)
	return nil
}

func GetNATSConnection(cfg *config.Config) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1), // retry forever
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectHandler(func(nc *nats.Conn) {
			logger.Warn("Disconnected from NATS")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed!")
		}),
	}

	if cfg.Environment == logger.EnvProduction {
		clientCert := filepath.Join(".", "certs", "client-cert.pem")
		clientKey := filepath.Join(".", "certs", "client-key.pem")
		caCert := filepath.Join(".", "certs", "rootCA.pem")

		opts = append(opts,
			nats.ClientCert(clientCert, clientKey),
			nats.RootCAs(caCert),
			nats.UserInfo(cfg.NATS.Username, cfg.NATS.Password),
		)
	}

	return nats.Connect(cfg.NATS.URL, opts...)
}

func loadSignersFromConsul(addr, prefix string) error {
	client, err := config.NewConsulClient(addr)
	if err != nil {
		return fmt.Errorf("consul client: %w", err)
	}
	signers, err := config.LoadSignersFromConsul(client.KV(), prefix)
	if err != nil {
		return err
	}
	entries := make([]map[string]interface{}, 0, len(signers))
	for _, s := range signers {
		entries = append(entries, map[string]interface{}{
			"public_key": s.PublicKey,
			"key_ids":    s.KeyIDs,
		})
	}
	viper.Set("signers", entries)
	logger.Info("Loaded committee from consul", "signers", len(signers), "prefix", prefix)
	return nil
}

func promptForPrivateKey() error {
	fmt.Print("Enter message private key (hex): ")
	raw, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read private key: %w", err)
	}
	key := strings.TrimSpace(string(raw))
	if _, err := encoding.DecodeS256PrivKeyHex(key); err != nil {
		return fmt.Errorf("invalid private key: %w", err)
	}
	fmt.Printf("Private key set: %s\n", maskString(key))
	viper.Set("message_private_key", key)
	return nil
}

// decryptPrivateKey opens the sealed key file with a prompted passphrase.
func decryptPrivateKey(path string) error {
	if path == "" {
		return fmt.Errorf("message_private_key_file is not configured")
	}
	fmt.Print("Enter key file passphrase: ")
	passphrase, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read passphrase: %w", err)
	}
	priv, err := kms.ReadKeyFile(path, string(passphrase))
	if err != nil {
		return err
	}
	viper.Set("message_private_key", hex.EncodeToString(priv.Serialize()))
	logger.Info("Decrypted message private key", "file", path)
	return nil
}

// maskString shows the first and last character of a string, replacing the middle with asterisks
func maskString(s string) string {
	if len(s) <= 2 {
		return s
	}
	return s[:1] + strings.Repeat("*", len(s)-2) + s[len(s)-1:]
}
