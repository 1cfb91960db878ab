package main

import (
	"context"
	"fmt"
	"syscall"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/luxfi/signer/pkg/encoding"
	"github.com/luxfi/signer/pkg/kms"
)

func generateKey(ctx context.Context, c *cli.Command) error {
	fmt.Println("WARNING: Please back up your passphrase in a secure location.")
	fmt.Println("If you lose it, the key file cannot be opened!")

	passphrase, err := promptPassphrase()
	if err != nil {
		return err
	}

	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return err
	}
	var sealed []byte
	if c.Bool("age") {
		sealed, err = kms.SealAge(priv, passphrase, 0)
	} else {
		sealed, err = kms.Seal(priv, passphrase)
	}
	if err != nil {
		return err
	}

	out := c.String("out")
	if err := kms.WriteKeyFile(out, sealed); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	fmt.Printf("Key written to %s\n", out)
	fmt.Printf("Public key: %s\n", encoding.EncodeS256PubKeyHex(priv.PubKey()))
	return nil
}

func promptPassphrase() (string, error) {
	for {
		fmt.Print("Enter passphrase: ")
		pass, err := term.ReadPassword(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("read passphrase: %w", err)
		}
		if len(pass) == 0 {
			fmt.Println("Passphrase cannot be empty. Please try again.")
			continue
		}

		fmt.Print("Confirm passphrase: ")
		confirm, err := term.ReadPassword(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("read confirmation: %w", err)
		}
		if string(pass) != string(confirm) {
			fmt.Println("Passphrases do not match. Please try again.")
			continue
		}
		return string(pass), nil
	}
}
