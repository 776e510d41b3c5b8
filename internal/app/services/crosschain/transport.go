package crosschain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/tidwall/gjson"

	core "github.com/lancechain/ledger/internal/app/core/service"
	"github.com/lancechain/ledger/pkg/logger"
)

// FeeInfo is the relayer fee quote attached to a dispatch. The zero value
// means "no fee negotiated", which is what the fallback path sends.
type FeeInfo struct {
	Token  string `json:"token,omitempty"`
	Amount int64  `json:"amount,omitempty"`
}

// Transport dispatches a payload toward a destination chain and returns the
// transport-assigned message id.
type Transport interface {
	Send(ctx context.Context, destChain uint64, destAddress string, payload []byte, gasLimit uint64) (string, error)
}

// RelayTransport is a transport that additionally accepts a fee quote and a
// relayer allow-list. The primary dispatch path uses it; on primary failure
// the same payload is re-sent with a zero FeeInfo and a nil allow-list.
type RelayTransport interface {
	Transport
	SendWithPolicy(ctx context.Context, destChain uint64, destAddress string, payload []byte, gasLimit uint64, fee FeeInfo, allowedRelayers []string) (string, error)
}

// HTTPTransport dispatches through a relayer's HTTP endpoint. The relayer
// responds with a JSON body carrying the assigned message id.
type HTTPTransport struct {
	endpoint string
	apiKey   string
	client   *http.Client
	log      *logger.Logger
}

// NewHTTPTransport creates a relayer-backed transport. endpoint is the
// relayer's dispatch URL; apiKey, when set, is sent as a bearer token.
func NewHTTPTransport(endpoint, apiKey string, log *logger.Logger) *HTTPTransport {
	if log == nil {
		log = logger.NewDefault("transport.http")
	}
	return &HTTPTransport{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}
}

type relayRequest struct {
	DestChain       uint64   `json:"dest_chain"`
	DestAddress     string   `json:"dest_address"`
	Payload         []byte   `json:"payload"`
	GasLimit        uint64   `json:"gas_limit"`
	Fee             *FeeInfo `json:"fee,omitempty"`
	AllowedRelayers []string `json:"allowed_relayers,omitempty"`
}

func (t *HTTPTransport) Send(ctx context.Context, destChain uint64, destAddress string, payload []byte, gasLimit uint64) (string, error) {
	return t.dispatch(ctx, relayRequest{
		DestChain:   destChain,
		DestAddress: destAddress,
		Payload:     payload,
		GasLimit:    gasLimit,
	})
}

func (t *HTTPTransport) SendWithPolicy(ctx context.Context, destChain uint64, destAddress string, payload []byte, gasLimit uint64, fee FeeInfo, allowedRelayers []string) (string, error) {
	req := relayRequest{
		DestChain:       destChain,
		DestAddress:     destAddress,
		Payload:         payload,
		GasLimit:        gasLimit,
		AllowedRelayers: allowedRelayers,
	}
	if fee != (FeeInfo{}) {
		req.Fee = &fee
	}
	return t.dispatch(ctx, req)
}

func (t *HTTPTransport) dispatch(ctx context.Context, body relayRequest) (string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", core.NewTransportError(t.endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", core.NewTransportError(t.endpoint, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", core.NewTransportError(t.endpoint,
			fmt.Errorf("relayer returned status %d: %s", resp.StatusCode, data))
	}

	id := gjson.GetBytes(data, "message_id").String()
	if id == "" {
		return "", core.NewTransportError(t.endpoint,
			fmt.Errorf("relayer response missing message_id"))
	}
	t.log.WithField("message_id", id).WithField("dest_chain", body.DestChain).Debug("payload dispatched")
	return id, nil
}

// NATSTransport publishes payloads to a per-destination-chain subject and
// assigns message ids locally. It is the usual fallback: it accepts the
// message even when no relayer is reachable.
type NATSTransport struct {
	conn   *nats.Conn
	prefix string
	log    *logger.Logger
}

// NewNATSTransport connects to the broker. prefix defaults to "lancechain.relay".
func NewNATSTransport(url, prefix string, log *logger.Logger) (*NATSTransport, error) {
	if prefix == "" {
		prefix = "lancechain.relay"
	}
	if log == nil {
		log = logger.NewDefault("transport.nats")
	}
	conn, err := nats.Connect(url, nats.Name("lancechain-transport"))
	if err != nil {
		return nil, core.NewTransportError(url, err)
	}
	return &NATSTransport{conn: conn, prefix: prefix, log: log}, nil
}

type natsEnvelope struct {
	MessageID   string `json:"message_id"`
	DestChain   uint64 `json:"dest_chain"`
	DestAddress string `json:"dest_address"`
	Payload     []byte `json:"payload"`
	GasLimit    uint64 `json:"gas_limit"`
}

func (t *NATSTransport) Send(_ context.Context, destChain uint64, destAddress string, payload []byte, gasLimit uint64) (string, error) {
	id := uuid.NewString()
	raw, err := json.Marshal(natsEnvelope{
		MessageID:   id,
		DestChain:   destChain,
		DestAddress: destAddress,
		Payload:     payload,
		GasLimit:    gasLimit,
	})
	if err != nil {
		return "", err
	}
	subject := t.prefix + "." + strconv.FormatUint(destChain, 10)
	if err := t.conn.Publish(subject, raw); err != nil {
		return "", core.NewTransportError(subject, err)
	}
	t.log.WithField("message_id", id).WithField("subject", subject).Debug("payload queued")
	return id, nil
}

// Close drains the broker connection.
func (t *NATSTransport) Close() {
	t.conn.Close()
}
