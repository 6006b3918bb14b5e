// Package joingrant generates join grant key pairs and signs grants for local
// development.
package joingrant

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/selight/designo/internal/scene/grant"
)

// Run generates a join grant key pair and writes shell exports.
func Run(out io.Writer, reader io.Reader) error {
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}
	publicKey, privateKey, err := ed25519.GenerateKey(reader)
	if err != nil {
		return fmt.Errorf("generate join grant key: %w", err)
	}
	if _, err := fmt.Fprintf(out, "export DESIGNO_JOIN_GRANT_PRIVATE_KEY=%s\n", grant.EncodeKey(privateKey)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(out, "export DESIGNO_JOIN_GRANT_PUBLIC_KEY=%s\n", grant.EncodeKey(publicKey)); err != nil {
		return err
	}
	return nil
}

// Sign writes one grant for subject using the private key from cfg.
func Sign(out io.Writer, subject grant.Subject, cfg grant.IssuerConfig) error {
	if out == nil {
		return errors.New("output is required")
	}
	token, err := grant.Issue(subject, cfg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
