package ringer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/service/session"
)

// DefaultCallTimeout bounds unary calls.
const DefaultCallTimeout = 5 * time.Second

// Client wraps a connection to RingerService.
type Client struct {
	// conn is the underlying gRPC connection to the ring host.
	conn *grpc.ClientConn

	// callTimeout is the default timeout for individual unary calls.
	callTimeout time.Duration
	dialOptions []grpc.DialOption
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for unary calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithDialOptions appends gRPC dial options, e.g. a custom dialer in tests.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *Client) {
		c.dialOptions = append(c.dialOptions, opts...)
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial creates a client for the ring host at address.
// Note: this uses insecure transport credentials; run the host on loopback
// or a trusted network.
func Dial(address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	client := &Client{
		callTimeout: DefaultCallTimeout,
		dialOptions: []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
	}

	for _, opt := range opts {
		opt(client)
	}

	conn, err := grpc.NewClient(address, client.dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("dial ring host: %w", err)
	}

	client.conn = conn

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// StartSession asks the host to start ringing and returns the session ID.
func (c *Client) StartSession(ctx context.Context, params session.Params, opts StartOptions) (string, error) {
	req, err := startRequestToStruct(params, opts)
	if err != nil {
		return "", fmt.Errorf("encode start request: %w", err)
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp := new(wrapperspb.StringValue)
	if err = c.conn.Invoke(callCtx, startSessionMethod, req, resp); err != nil {
		return "", fmt.Errorf("start session: %w", err)
	}

	return resp.GetValue(), nil
}

// Signal sends sig to a session and reports whether it resolved the session.
func (c *Client) Signal(ctx context.Context, sessionID string, sig alarm.Signal) (bool, error) {
	req, err := signalToStruct(sessionID, sig)
	if err != nil {
		return false, fmt.Errorf("encode signal: %w", err)
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp := new(wrapperspb.BoolValue)
	if err = c.conn.Invoke(callCtx, signalMethod, req, resp); err != nil {
		return false, fmt.Errorf("signal session: %w", err)
	}

	return resp.GetValue(), nil
}

// ToggleAudioSource switches a session between voice and tone.
func (c *Client) ToggleAudioSource(ctx context.Context, sessionID string) (alarm.AudioSource, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(callCtx, toggleAudioSourceMethod, wrapperspb.String(sessionID), resp); err != nil {
		return alarm.AudioSourceNone, fmt.Errorf("toggle audio source: %w", err)
	}

	return alarm.AudioSource(resp.GetValue()), nil
}

// Watch streams raw session events to fn until the session terminates,
// ctx is done or fn returns an error. It has no call timeout.
func (c *Client) Watch(ctx context.Context, sessionID string, fn func(*structpb.Struct) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], watchSessionMethod)
	if err != nil {
		return fmt.Errorf("watch session: %w", err)
	}

	events := &grpc.GenericClientStream[wrapperspb.StringValue, structpb.Struct]{ClientStream: stream}

	if err = events.SendMsg(wrapperspb.String(sessionID)); err != nil {
		return fmt.Errorf("watch session: %w", err)
	}

	if err = events.CloseSend(); err != nil {
		return fmt.Errorf("watch session: %w", err)
	}

	for {
		msg, err := events.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("watch session: %w", err)
		}

		if err = fn(msg); err != nil {
			return err
		}
	}
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
