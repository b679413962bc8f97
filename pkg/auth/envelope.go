// Package auth binds a caller identity to a fund operation through an
// ed25519-signed envelope. The identity of a request is the public key that
// produced a valid signature over the canonical encoding of the action.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"navfund/pkg/errors"
)

const messageDomain = "navfund/v1"

var (
	// ErrInvalidSignature is returned when the signature does not verify against the signer key
	ErrInvalidSignature = errors.Newf("invalid signature: %w", errors.ErrUnauthorized)
	// ErrExpiredEnvelope is returned when IssuedAt is outside the accepted skew window
	ErrExpiredEnvelope = errors.Newf("envelope outside accepted time window: %w", errors.ErrUnauthorized)
	// ErrMissingSigner is returned for a zero signer key
	ErrMissingSigner = errors.Newf("missing signer: %w", errors.ErrUnauthorized)
)

// Action is what a caller asks the engine to do. Op names the operation,
// Amount carries its primary quantity and Ref any secondary argument
// (request id, new oracle key, pause flag).
type Action struct {
	Op     string
	FundID uuid.UUID
	Amount uint64
	Ref    string
}

// Envelope is the caller-supplied proof of identity for one Action.
type Envelope struct {
	Signer    solana.PublicKey `json:"signer"`
	Signature solana.Signature `json:"signature"`
	IssuedAt  time.Time        `json:"issued_at"`
}

// Message returns the canonical bytes signed for action at issuedAt.
func Message(action Action, issuedAt time.Time) []byte {
	return []byte(strings.Join([]string{
		messageDomain,
		action.Op,
		action.FundID.String(),
		fmt.Sprintf("%d", action.Amount),
		action.Ref,
		fmt.Sprintf("%d", issuedAt.UTC().UnixMilli()),
	}, "|"))
}

// Sign produces an envelope for action signed by key.
func Sign(key solana.PrivateKey, action Action, issuedAt time.Time) (Envelope, error) {
	sig, err := key.Sign(Message(action, issuedAt))
	if err != nil {
		return Envelope{}, errors.Wrap(err, "sign action")
	}
	return Envelope{
		Signer:    key.PublicKey(),
		Signature: sig,
		IssuedAt:  issuedAt.UTC(),
	}, nil
}

// Verifier resolves envelopes to identities.
type Verifier struct {
	maxSkew time.Duration
	now     func() time.Time
}

// NewVerifier creates a verifier accepting envelopes issued within maxSkew of now.
// A zero maxSkew disables the time window check.
func NewVerifier(maxSkew time.Duration) *Verifier {
	return &Verifier{maxSkew: maxSkew, now: time.Now}
}

// WithClock overrides the time source.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// IdentityOf verifies env against action and returns the signer key.
func (v *Verifier) IdentityOf(_ context.Context, action Action, env Envelope) (solana.PublicKey, error) {
	if env.Signer.IsZero() {
		return solana.PublicKey{}, ErrMissingSigner
	}
	if v.maxSkew > 0 {
		drift := v.now().Sub(env.IssuedAt)
		if drift < 0 {
			drift = -drift
		}
		if drift > v.maxSkew {
			return solana.PublicKey{}, ErrExpiredEnvelope
		}
	}
	if !env.Signature.Verify(env.Signer, Message(action, env.IssuedAt)) {
		return solana.PublicKey{}, ErrInvalidSignature
	}
	return env.Signer, nil
}
