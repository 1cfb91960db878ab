package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/luxfi/signer/pkg/event"
	"github.com/luxfi/signer/pkg/logger"
	"github.com/luxfi/signer/pkg/types"
)

const (
	Version = "0.1.0"

	defaultRoundTimeout = 5 * time.Minute
)

func main() {
	globalFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the signer config file",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging",
		},
		&cli.BoolFlag{
			Name:    "prompt-key",
			Aliases: []string{"p"},
			Usage:   "Prompt for the message private key instead of reading it from config",
		},
		&cli.BoolFlag{
			Name:    "decrypt-private-key",
			Aliases: []string{"k"},
			Usage:   "Decrypt message_private_key_file with a prompted passphrase",
		},
	}
	app := &cli.Command{
		Name:    "signerd",
		Usage:   "Threshold signer node",
		Version: Version,
		Flags:   globalFlags,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Start the signer and serve commands from the bus",
				Action: runNode,
			},
			{
				Name:  "dkg",
				Usage: "Run one DKG round and print the aggregate key",
				Flags: []cli.Flag{timeoutFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					return runOnce(ctx, c, types.DkgCommand{})
				},
			},
			{
				Name:  "sign",
				Usage: "Run one signing round",
				Flags: signFlags(),
				Action: func(ctx context.Context, c *cli.Command) error {
					cmd, err := signCommand(c)
					if err != nil {
						return err
					}
					return runOnce(ctx, c, cmd)
				},
			},
			{
				Name:  "dkg-sign",
				Usage: "Run a DKG round followed by a signing round",
				Flags: signFlags(),
				Action: func(ctx context.Context, c *cli.Command) error {
					cmd, err := signCommand(c)
					if err != nil {
						return err
					}
					return runOnce(ctx, c, types.DkgCommand{}, cmd)
				},
			},
			{
				Name:  "keygen",
				Usage: "Generate a message private key sealed under a passphrase",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "out",
						Aliases:  []string{"o"},
						Usage:    "Where to write the sealed key",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "age",
						Usage: "Write an age scrypt file instead of the native format",
					},
				},
				Action: generateKey,
			},
			{
				Name:   "history",
				Usage:  "Print the round results held in the archive",
				Action: showHistory,
			},
			{
				Name:  "restore",
				Usage: "Rebuild an archive from its encrypted backups",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "from",
						Usage: "Backup directory (defaults to archive.backup_dir)",
					},
					&cli.StringFlag{
						Name:     "to",
						Usage:    "Path of the restored archive",
						Required: true,
					},
				},
				Action: restoreArchive,
			},
			{
				Name:  "version",
				Usage: "Display detailed version information",
				Action: func(ctx context.Context, c *cli.Command) error {
					fmt.Printf("signerd version %s\n", Version)
					return nil
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func timeoutFlag() cli.Flag {
	return &cli.DurationFlag{
		Name:  "timeout",
		Usage: "How long to wait for the round to finish",
		Value: defaultRoundTimeout,
	}
}

func signFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "data",
			Aliases:  []string{"d"},
			Usage:    "Hex encoded message to sign",
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "taproot",
			Usage: "Produce a taproot proof instead of a plain signature",
		},
		timeoutFlag(),
	}
}

func signCommand(c *cli.Command) (types.Command, error) {
	ev := event.CommandEvent{
		Type:      types.SignCommand{}.CommandName(),
		Message:   c.String("data"),
		IsTaproot: c.Bool("taproot"),
	}
	return ev.ToCommand()
}

// runNode serves operator commands until interrupted.
func runNode(ctx context.Context, c *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := newNode(c)
	if err != nil {
		return err
	}
	defer n.Close()

	running := n.signer.Spawn(ctx)
	if err := n.serveCommands(ctx); err != nil {
		running.Stop() //nolint:errcheck
		return err
	}
	if err := n.startBackups(ctx); err != nil {
		running.Stop() //nolint:errcheck
		return err
	}

	logger.Info("Signer node is running",
		"signer_id", n.cfg.SignerID,
		"network", n.cfg.Network,
		"chain_id", fmt.Sprintf("0x%08x", types.NetworkCode(n.cfg.Network).ChainID()),
	)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down")
			return running.Stop()
		case <-running.Done():
			if err := running.Wait(); err != nil {
				logger.Fatal("Signer stopped", err)
			}
			return nil
		case outcomes := <-n.signer.Results():
			if _, err := n.sink.Handle(outcomes); err != nil {
				logger.Error("Failed to record round results", err)
			}
		}
	}
}

// runOnce submits cmds and waits until each has produced a result.
func runOnce(ctx context.Context, c *cli.Command, cmds ...types.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, c.Duration("timeout"))
	defer cancel()

	n, err := newNode(c)
	if err != nil {
		return err
	}
	defer n.Close()

	running := n.signer.Spawn(ctx)
	defer running.Stop() //nolint:errcheck

	for _, cmd := range cmds {
		if err := n.signer.Submit(ctx, cmd); err != nil {
			return err
		}
	}

	pending := make(map[bool]int)
	for _, cmd := range cmds {
		pending[types.IsDkg(cmd)]++
	}
	for pending[true]+pending[false] > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for round results: %w", ctx.Err())
		case <-running.Done():
			if err := running.Wait(); err != nil {
				return err
			}
			return fmt.Errorf("signer stopped before the round finished")
		case outcomes := <-n.signer.Results():
			events, err := n.sink.Handle(outcomes)
			if err != nil {
				logger.Error("Failed to record round results", err)
			}
			for _, ev := range events {
				printEvent(ev)
			}
			// A DKG the node started on its own still counts for a
			// requested one; extra results are only printed.
			for _, o := range outcomes {
				dkg := isDkgOutcome(o)
				if pending[dkg] > 0 {
					pending[dkg]--
				}
			}
		}
	}
	return nil
}

func isDkgOutcome(o types.Outcome) bool {
	switch o.(type) {
	case types.DkgKey, types.DkgFailed:
		return true
	}
	return false
}

func printEvent(ev event.RoundResultEvent) {
	switch {
	case ev.ResultType == event.ResultTypeError:
		fmt.Printf("%s: %s\n", ev.OutcomeKind, ev.ErrorReason)
	case ev.AggregatePublicKey != "":
		fmt.Printf("aggregate public key: %s\n", ev.AggregatePublicKey)
	case len(ev.S) > 0:
		fmt.Printf("taproot proof: R=%x s=%x\n", ev.R, ev.S)
	default:
		fmt.Printf("signature: R=%x z=%x\n", ev.R, ev.Z)
	}
}
