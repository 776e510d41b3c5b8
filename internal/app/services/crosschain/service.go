// Package crosschain implements the message-relay ledger: dispatching
// payloads to mirrored contracts on other chains, authenticating inbound
// messages and tracking each operation's delivery state.
package crosschain

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	core "github.com/lancechain/ledger/internal/app/core/service"
	"github.com/lancechain/ledger/internal/app/domain/crosschain"
	"github.com/lancechain/ledger/internal/app/events"
	"github.com/lancechain/ledger/internal/app/metrics"
	"github.com/lancechain/ledger/internal/app/storage"
	"github.com/lancechain/ledger/pkg/logger"
)

// Envelope wraps every relayed payload so the receiving side can route it to
// the handler registered for its operation type.
type Envelope struct {
	Type crosschain.OperationType `json:"type"`
	Body json.RawMessage          `json:"body"`
}

// Handler materializes one inbound operation type. A handler error leaves
// the operation at Received for operator follow-up.
type Handler func(ctx context.Context, op crosschain.Operation, body json.RawMessage) error

// Service tracks cross-chain operations. Dispatch goes through the primary
// transport; if and only if the primary dispatch call fails, the same
// payload is re-sent through the fallback with a zero fee quote and no
// relayer allow-list. A primary outage must not block initiation.
type Service struct {
	store    storage.CrossChainStore
	primary  Transport
	fallback Transport
	log      *logger.Logger
	emitter  events.Emitter
	now      func() time.Time

	localChain uint64

	// strictIDs reproduces the upstream id derivation, which folds the
	// receive timestamp into the hash and therefore yields a different id
	// on every replay of the same message.
	strictIDs bool

	mu       sync.RWMutex
	admin    string
	handlers map[crosschain.OperationType]Handler
}

// New constructs the relay service. localChain is this deployment's chain
// id, stamped as the source chain on every outbound operation.
func New(store storage.CrossChainStore, primary, fallback Transport, localChain uint64, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("crosschain")
	}
	return &Service{
		store:      store,
		primary:    primary,
		fallback:   fallback,
		log:        log,
		emitter:    events.NopEmitter{},
		now:        func() time.Time { return time.Now().UTC() },
		localChain: localChain,
		handlers:   make(map[crosschain.OperationType]Handler),
	}
}

// WithAdmin sets the administrator address gating contract registration and
// terminal transitions.
func (s *Service) WithAdmin(address string) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admin = address
	return s
}

// WithStrictMessageIDs switches the inbound id derivation to the
// timestamp-including mode.
func (s *Service) WithStrictMessageIDs(strict bool) *Service {
	s.strictIDs = strict
	return s
}

// WithEmitter overrides the event emitter.
func (s *Service) WithEmitter(e events.Emitter) *Service {
	if e != nil {
		s.emitter = e
	}
	return s
}

// WithClock overrides the time source, primarily for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// RegisterHandler routes inbound operations of the given type to h.
// Registration is wiring-time only and not synchronized against receives.
func (s *Service) RegisterHandler(t crosschain.OperationType, h Handler) {
	s.handlers[t] = h
}

// RegisterChainContract maps a remote chain to its mirrored contract
// address. Administrator only. Registration is required before the chain can
// be targeted and is the trust anchor for inbound authentication.
func (s *Service) RegisterChainContract(ctx context.Context, caller string, chainID uint64, address string) (crosschain.ChainContract, error) {
	if !s.isAdmin(caller) {
		return crosschain.ChainContract{}, core.NewAccessDeniedError("chain contract", formatChain(chainID), caller)
	}
	if chainID == 0 {
		return crosschain.ChainContract{}, core.NewValidationError("chain_id", "must be nonzero")
	}
	if address == "" {
		return crosschain.ChainContract{}, core.RequiredError("address")
	}
	return s.store.PutChainContract(ctx, crosschain.ChainContract{
		ChainID:      chainID,
		Address:      address,
		RegisteredAt: s.now(),
	})
}

// InitiateOperation dispatches an operation toward a registered destination
// chain and records it as Sent under the transport-returned message id. The
// destination check runs before any transport is touched. Only a primary
// dispatch failure triggers the fallback; a fallback failure surfaces to the
// caller with nothing recorded.
func (s *Service) InitiateOperation(ctx context.Context, caller string, opType crosschain.OperationType, destChain uint64, body json.RawMessage, gasLimit uint64, fee FeeInfo, allowedRelayers []string) (crosschain.Operation, error) {
	contract, err := s.store.GetChainContract(ctx, destChain)
	if err != nil {
		return crosschain.Operation{}, err
	}

	payload, err := json.Marshal(Envelope{Type: opType, Body: body})
	if err != nil {
		return crosschain.Operation{}, err
	}

	messageID, err := s.dispatch(ctx, contract, payload, gasLimit, fee, allowedRelayers)
	if err != nil {
		return crosschain.Operation{}, err
	}

	now := s.now()
	op, err := s.store.CreateOperation(ctx, crosschain.Operation{
		MessageID:     messageID,
		Type:          opType,
		SourceChain:   s.localChain,
		DestChain:     destChain,
		SourceAddress: caller,
		DestAddress:   contract.Address,
		Payload:       payload,
		Status:        crosschain.OpStatusSent,
		CreatedAt:     now,
	})
	if err != nil {
		return crosschain.Operation{}, err
	}

	s.emit(ctx, events.Event{Type: "crosschain.sent", Entity: "operation", EntityID: messageID,
		Actor: caller, Fields: map[string]string{"op_type": string(opType), "dest_chain": formatChain(destChain)}, At: now})
	s.log.WithField("message_id", messageID).
		WithField("op_type", opType).
		WithField("dest_chain", destChain).
		Info("operation dispatched")
	return op, nil
}

func (s *Service) dispatch(ctx context.Context, contract crosschain.ChainContract, payload []byte, gasLimit uint64, fee FeeInfo, allowedRelayers []string) (string, error) {
	messageID, primaryErr := s.send(ctx, s.primary, contract, payload, gasLimit, fee, allowedRelayers)
	if primaryErr == nil {
		metrics.ObserveDispatch("primary", "ok")
		return messageID, nil
	}
	metrics.ObserveDispatch("primary", "error")
	s.log.WithError(primaryErr).WithField("dest_chain", contract.ChainID).Warn("primary transport failed, using fallback")

	if s.fallback == nil {
		return "", primaryErr
	}
	messageID, err := s.send(ctx, s.fallback, contract, payload, gasLimit, FeeInfo{}, nil)
	if err != nil {
		metrics.ObserveDispatch("fallback", "error")
		return "", err
	}
	metrics.ObserveDispatch("fallback", "ok")
	return messageID, nil
}

func (s *Service) send(ctx context.Context, t Transport, contract crosschain.ChainContract, payload []byte, gasLimit uint64, fee FeeInfo, allowedRelayers []string) (string, error) {
	if t == nil {
		return "", core.NewTransportError(formatChain(contract.ChainID), errors.New("no transport configured"))
	}
	if rt, ok := t.(RelayTransport); ok {
		return rt.SendWithPolicy(ctx, contract.ChainID, contract.Address, payload, gasLimit, fee, allowedRelayers)
	}
	return t.Send(ctx, contract.ChainID, contract.Address, payload, gasLimit)
}

// ReceiveOperation records an inbound message. The sender is authenticated
// by registry lookup: the source address must equal the contract registered
// for the source chain. The message id is derived deterministically from the
// message; an operation we dispatched ourselves is matched by that id and
// must still be Sent or Pending. The payload is then routed to the handler
// for its type; handler success completes the operation, handler failure
// leaves it Received and returns the error.
func (s *Service) ReceiveOperation(ctx context.Context, sourceChain uint64, sourceAddress string, payload []byte) (crosschain.Operation, error) {
	contract, err := s.store.GetChainContract(ctx, sourceChain)
	if err != nil {
		return crosschain.Operation{}, err
	}
	if contract.Address != sourceAddress {
		return crosschain.Operation{}, core.NewAccessDeniedError("operation", formatChain(sourceChain), sourceAddress)
	}

	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return crosschain.Operation{}, core.NewValidationError("payload", "not a valid operation envelope")
	}

	now := s.now()
	messageID := s.deriveMessageID(sourceChain, sourceAddress, payload, now)

	op, err := s.store.GetOperation(ctx, messageID)
	switch {
	case err == nil:
		if op.Status != crosschain.OpStatusSent && op.Status != crosschain.OpStatusPending {
			return crosschain.Operation{}, core.NewStateError("operation", messageID, string(op.Status),
				"only a sent or pending operation can be received")
		}
		op.Status = crosschain.OpStatusReceived
		if op, err = s.store.UpdateOperation(ctx, op); err != nil {
			return crosschain.Operation{}, err
		}
	case core.IsNotFound(err):
		op, err = s.store.CreateOperation(ctx, crosschain.Operation{
			MessageID:     messageID,
			Type:          env.Type,
			SourceChain:   sourceChain,
			DestChain:     s.localChain,
			SourceAddress: sourceAddress,
			Payload:       payload,
			Status:        crosschain.OpStatusReceived,
			CreatedAt:     now,
		})
		if err != nil {
			return crosschain.Operation{}, err
		}
	default:
		return crosschain.Operation{}, err
	}

	s.emit(ctx, events.Event{Type: "crosschain.received", Entity: "operation", EntityID: messageID,
		Actor: sourceAddress, Fields: map[string]string{"op_type": string(env.Type), "source_chain": formatChain(sourceChain)}, At: now})

	handler := s.handlerFor(env.Type)
	if handler == nil {
		return op, nil
	}
	if err := handler(ctx, op, env.Body); err != nil {
		s.log.WithError(err).WithField("message_id", messageID).Warn("inbound handler failed")
		return op, err
	}

	op.Status = crosschain.OpStatusCompleted
	op.CompletedAt = s.now()
	if op, err = s.store.UpdateOperation(ctx, op); err != nil {
		return crosschain.Operation{}, err
	}
	s.log.WithField("message_id", messageID).WithField("op_type", env.Type).Info("operation completed")
	return op, nil
}

// CompleteOperation marks a Received operation Completed. Administrator
// only; in-process handlers complete their operations directly.
func (s *Service) CompleteOperation(ctx context.Context, caller, messageID string) (crosschain.Operation, error) {
	if !s.isAdmin(caller) {
		return crosschain.Operation{}, core.NewAccessDeniedError("operation", messageID, caller)
	}
	op, err := s.store.GetOperation(ctx, messageID)
	if err != nil {
		return crosschain.Operation{}, err
	}
	if op.Status != crosschain.OpStatusReceived {
		return crosschain.Operation{}, core.NewStateError("operation", messageID, string(op.Status),
			"completion requires the received status")
	}
	op.Status = crosschain.OpStatusCompleted
	op.CompletedAt = s.now()
	return s.store.UpdateOperation(ctx, op)
}

// FailOperation marks an operation Failed regardless of its current status.
// Administrator override for messages known to be lost or poisoned.
func (s *Service) FailOperation(ctx context.Context, caller, messageID string) (crosschain.Operation, error) {
	if !s.isAdmin(caller) {
		return crosschain.Operation{}, core.NewAccessDeniedError("operation", messageID, caller)
	}
	op, err := s.store.GetOperation(ctx, messageID)
	if err != nil {
		return crosschain.Operation{}, err
	}
	op.Status = crosschain.OpStatusFailed
	op.CompletedAt = s.now()
	return s.store.UpdateOperation(ctx, op)
}

// GetOperation returns one operation by message id.
func (s *Service) GetOperation(ctx context.Context, messageID string) (crosschain.Operation, error) {
	if messageID == "" {
		return crosschain.Operation{}, core.NewNotFoundError("operation", messageID)
	}
	return s.store.GetOperation(ctx, messageID)
}

// ListOperations returns operations, optionally filtered by status.
func (s *Service) ListOperations(ctx context.Context, status crosschain.OperationStatus) ([]crosschain.Operation, error) {
	return s.store.ListOperations(ctx, status)
}

// GetChainContract returns a registered chain mapping.
func (s *Service) GetChainContract(ctx context.Context, chainID uint64) (crosschain.ChainContract, error) {
	return s.store.GetChainContract(ctx, chainID)
}

// deriveMessageID hashes the message identity. Strict mode folds the receive
// time in, matching the upstream derivation exactly at the cost of replay
// reproducibility; the corrected mode hashes only the message itself.
func (s *Service) deriveMessageID(sourceChain uint64, sourceAddress string, payload []byte, now time.Time) string {
	h := sha256.New()
	var chainBuf [8]byte
	binary.BigEndian.PutUint64(chainBuf[:], sourceChain)
	h.Write(chainBuf[:])
	h.Write([]byte(sourceAddress))
	h.Write(payload)
	if s.strictIDs {
		var tsBuf [8]byte
		binary.BigEndian.PutUint64(tsBuf[:], uint64(now.UnixNano()))
		h.Write(tsBuf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Service) handlerFor(t crosschain.OperationType) Handler {
	return s.handlers[t]
}

func (s *Service) isAdmin(address string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.admin != "" && address == s.admin
}

func (s *Service) emit(ctx context.Context, ev events.Event) {
	if err := s.emitter.Emit(ctx, ev); err != nil {
		s.log.WithError(err).WithField("event", ev.Type).Warn("event emission failed")
	}
}

func formatChain(chainID uint64) string {
	return strconv.FormatUint(chainID, 10)
}
