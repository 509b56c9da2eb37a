package agent

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/gophvault/internal/models"
	"github.com/dmitrijs2005/gophvault/internal/totp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Status is the agent's view of its vault.
type Status struct {
	State            string
	BiometricEnabled bool
	AutoLockSeconds  int
}

// Client talks to a running agent. After Unlock it attaches the session
// token to every call.
type Client struct {
	conn *grpc.ClientConn

	mu    sync.Mutex
	token string
}

// DialSocket connects to an agent on a unix socket.
func DialSocket(path string) (*Client, error) {
	return Dial("unix://" + path)
}

// Dial connects to target. opts are appended to the defaults, which is how
// tests plug in an in-memory listener.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	c := &Client{}
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.tokenInterceptor),
	}
	conn, err := grpc.NewClient(target, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// SetToken replaces the session token, e.g. one handed over by another
// process.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func withToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(AuthorizationHeader, "Bearer "+token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (c *Client) tokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if token := c.Token(); token != "" {
		ctx = withToken(ctx, token)
	}
	return fromStatus(invoker(ctx, method, req, reply, cc, opts...))
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, MethodStatus, &emptypb.Empty{}, out); err != nil {
		return Status{}, err
	}
	f := out.GetFields()
	return Status{
		State:            f["state"].GetStringValue(),
		BiometricEnabled: f["biometric_enabled"].GetBoolValue(),
		AutoLockSeconds:  int(f["autolock_seconds"].GetNumberValue()),
	}, nil
}

// Unlock unlocks the agent's vault and keeps the returned session token.
func (c *Client) Unlock(ctx context.Context, password []byte) error {
	out := &wrapperspb.StringValue{}
	if err := c.conn.Invoke(ctx, MethodUnlock, wrapperspb.Bytes(password), out); err != nil {
		return err
	}
	c.SetToken(out.GetValue())
	return nil
}

// Lock locks the vault; the current token stops working.
func (c *Client) Lock(ctx context.Context) error {
	if err := c.conn.Invoke(ctx, MethodLock, &emptypb.Empty{}, &emptypb.Empty{}); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

// Search returns matching entries with passwords and secret fields blanked.
func (c *Client) Search(ctx context.Context, query string) ([]models.VaultEntry, error) {
	out := &structpb.ListValue{}
	if err := c.conn.Invoke(ctx, MethodSearch, wrapperspb.String(query), out); err != nil {
		return nil, err
	}

	entries := make([]models.VaultEntry, 0, len(out.GetValues()))
	for _, v := range out.GetValues() {
		e, err := structToEntry(v.GetStructValue())
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// GetEntry returns one entry in full.
func (c *Client) GetEntry(ctx context.Context, id string) (models.VaultEntry, error) {
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, MethodGetEntry, wrapperspb.String(id), out); err != nil {
		return models.VaultEntry{}, err
	}
	return structToEntry(out)
}

func (c *Client) TOTP(ctx context.Context, id string) (totp.Code, error) {
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, MethodTOTP, wrapperspb.String(id), out); err != nil {
		return totp.Code{}, err
	}
	return structToCode(out), nil
}

// Touch counts as user activity for the agent's auto-lock.
func (c *Client) Touch(ctx context.Context) error {
	return c.conn.Invoke(ctx, MethodTouch, &emptypb.Empty{}, &emptypb.Empty{})
}
