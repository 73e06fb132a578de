// Package forwarder implements the replay-protected call forwarder: a
// signer authorizes one operation with a typed, nonce-bound signature, and
// the forwarder dispatches it to the target on the signer's behalf exactly
// once. The forwarder knows nothing about targets beyond the Handler
// interface; authorization ends at signature and nonce verification.
package forwarder

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

var (
	// ErrInvalidSignature is returned when the signature does not recover to
	// the request's signer over the request digest.
	ErrInvalidSignature = errors.New("forwarder: invalid signature")
	// ErrInvalidNonce is returned when the request nonce is not the signer's
	// next expected nonce.
	ErrInvalidNonce = errors.New("forwarder: invalid nonce")
	// ErrUnknownTarget is returned when no handler is registered for the
	// request's target.
	ErrUnknownTarget = errors.New("forwarder: unknown target")
	// ErrExecutionFailed is returned when the dispatched call fails. The
	// signer's nonce is still consumed.
	ErrExecutionFailed = errors.New("forwarder: execution failed")
)

// requestTypeHash domain-separates request digests from any other signed
// content.
var requestTypeHash = crypto.Keccak256Hash(
	[]byte("ForwardRequest(address from,address to,uint256 value,uint256 gas,uint256 nonce,bytes data)"),
)

// Request is a signed instruction to call To with Data on behalf of From.
// Value and Gas ride along for targets that meter them; the forwarder only
// binds them into the digest.
type Request struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Value *uint256.Int   `json:"value"`
	Gas   uint64         `json:"gas"`
	Nonce uint64         `json:"nonce"`
	Data  []byte         `json:"data"`
}

// Digest returns the canonical 32-byte digest the signer commits to. Every
// field is encoded at fixed width, and Data is hashed, so no two distinct
// requests share a digest.
func (r Request) Digest() common.Hash {
	value := uint256.NewInt(0)
	if r.Value != nil {
		value = r.Value
	}
	valueBytes := value.Bytes32()
	gasBytes := uint256.NewInt(r.Gas).Bytes32()
	nonceBytes := uint256.NewInt(r.Nonce).Bytes32()
	return crypto.Keccak256Hash(
		requestTypeHash.Bytes(),
		common.LeftPadBytes(r.From.Bytes(), 32),
		common.LeftPadBytes(r.To.Bytes(), 32),
		valueBytes[:],
		gasBytes[:],
		nonceBytes[:],
		crypto.Keccak256(r.Data),
	)
}

// SignRequest produces a 65-byte recoverable signature over the request
// digest.
func SignRequest(r Request, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(r.Digest().Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("forwarder: sign request: %w", err)
	}
	return sig, nil
}

// Handler executes a dispatched call. The sender has already been
// authenticated by the forwarder, so the handler must treat it as the
// direct caller.
type Handler interface {
	HandleCall(ctx context.Context, sender common.Address, data []byte) ([]byte, error)
}

// ExecutionError wraps a target failure so callers can both match
// ErrExecutionFailed and inspect the target's own reason.
type ExecutionError struct {
	Target common.Address
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("forwarder: execution failed for target %s: %v", e.Target, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Is matches ErrExecutionFailed.
func (e *ExecutionError) Is(target error) bool { return target == ErrExecutionFailed }

// Forwarder verifies signed requests and dispatches them, tracking one
// strictly increasing nonce per signer.
type Forwarder struct {
	log *zap.Logger

	mu      sync.Mutex
	nonces  map[common.Address]uint64
	targets map[common.Address]Handler
}

// New returns an empty forwarder. A nil logger is replaced by a no-op one.
func New(log *zap.Logger) *Forwarder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Forwarder{
		log:     log,
		nonces:  make(map[common.Address]uint64),
		targets: make(map[common.Address]Handler),
	}
}

// Register binds a handler to a target address.
func (f *Forwarder) Register(target common.Address, h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets[target] = h
}

// Nonce returns the signer's next expected nonce.
func (f *Forwarder) Nonce(signer common.Address) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonces[signer]
}

// Verify checks the signature and nonce without executing or consuming
// anything.
func (f *Forwarder) Verify(req Request, sig []byte) error {
	if err := verifySignature(req, sig); err != nil {
		return err
	}
	if req.Nonce != f.Nonce(req.From) {
		return fmt.Errorf("%w: got %d, expected %d", ErrInvalidNonce, req.Nonce, f.Nonce(req.From))
	}
	return nil
}

// Execute verifies the request and dispatches it to the registered target
// with the signer as sender. The nonce is consumed before dispatch and is
// never rolled back: a request whose execution failed cannot be replayed.
func (f *Forwarder) Execute(ctx context.Context, req Request, sig []byte) ([]byte, error) {
	if err := verifySignature(req, sig); err != nil {
		return nil, err
	}

	f.mu.Lock()
	expected := f.nonces[req.From]
	if req.Nonce != expected {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrInvalidNonce, req.Nonce, expected)
	}
	f.nonces[req.From] = expected + 1
	handler, ok := f.targets[req.To]
	f.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, req.To)
	}

	// The lock is not held across dispatch: the call may legitimately
	// re-enter the forwarder with a different nonce.
	result, err := handler.HandleCall(ctx, req.From, req.Data)
	if err != nil {
		f.log.Debug("forwarded call failed",
			zap.String("from", req.From.Hex()),
			zap.String("to", req.To.Hex()),
			zap.Uint64("nonce", req.Nonce),
			zap.Error(err),
		)
		return nil, &ExecutionError{Target: req.To, Err: err}
	}

	f.log.Debug("forwarded call executed",
		zap.String("from", req.From.Hex()),
		zap.String("to", req.To.Hex()),
		zap.Uint64("nonce", req.Nonce),
	)
	return result, nil
}

// verifySignature recovers the signing key from the digest and requires it
// to match the request's signer.
func verifySignature(req Request, sig []byte) error {
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("%w: signature is %d bytes", ErrInvalidSignature, len(sig))
	}
	pub, err := crypto.SigToPub(req.Digest().Bytes(), sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if crypto.PubkeyToAddress(*pub) != req.From {
		return fmt.Errorf("%w: recovered %s, want %s",
			ErrInvalidSignature, crypto.PubkeyToAddress(*pub), req.From)
	}
	return nil
}
