package messaging

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"rentalhub/internal/app/policies"
)

// NotifyMethod is the messaging service RPC that stores a user notification.
const NotifyMethod = "/messaging.v1.NotificationService/Notify"

// Config defines gRPC client settings.
type Config struct {
	Addr        string
	DialTimeout time.Duration
	CallTimeout time.Duration
}

// GRPCNotifier sends notifications to the messaging service. Requests are
// well-known Struct messages so no generated stubs are needed.
type GRPCNotifier struct {
	conn        grpc.ClientConnInterface
	closer      func() error
	callTimeout time.Duration
}

// NewGRPCNotifier dials the messaging service.
func NewGRPCNotifier(ctx context.Context, cfg Config, logger *slog.Logger) (*GRPCNotifier, error) {
	if cfg.Addr == "" {
		return nil, errors.New("messaging: address required")
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, err := grpc.DialContext(dialCtx, cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("messaging grpc connected", "addr", cfg.Addr)
	}
	n := NewGRPCNotifierWith(conn, cfg.CallTimeout)
	n.closer = conn.Close
	return n, nil
}

// NewGRPCNotifierWith uses an existing connection.
func NewGRPCNotifierWith(conn grpc.ClientConnInterface, callTimeout time.Duration) *GRPCNotifier {
	if callTimeout <= 0 {
		callTimeout = 5 * time.Second
	}
	return &GRPCNotifier{conn: conn, callTimeout: callTimeout}
}

func (n *GRPCNotifier) Notify(ctx context.Context, recipientID, bookingID, text string) error {
	req, err := structpb.NewStruct(map[string]any{
		"recipient_id": recipientID,
		"booking_id":   bookingID,
		"text":         text,
	})
	if err != nil {
		return err
	}
	callCtx, cancel := context.WithTimeout(ctx, n.callTimeout)
	defer cancel()
	return n.conn.Invoke(callCtx, NotifyMethod, req, &emptypb.Empty{})
}

// Close releases the gRPC connection.
func (n *GRPCNotifier) Close() error {
	if n == nil || n.closer == nil {
		return nil
	}
	return n.closer()
}

var _ policies.Notifier = (*GRPCNotifier)(nil)
