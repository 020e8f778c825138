package ipc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client talks to a running daemon over its socket.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the daemon socket. The connection is established lazily.
func Dial(socketPath string) (*Client, error) {
	if socketPath == "" {
		return nil, errors.New("socket path not configured")
	}
	conn, err := grpc.NewClient("unix://"+socketPath, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Ping returns the daemon version.
func (c *Client) Ping(ctx context.Context) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, methodPing, &emptypb.Empty{}, out); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// Status returns the daemon status.
func (c *Client) Status(ctx context.Context) (*StatusReply, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodGetStatus, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	var reply StatusReply
	if err := fromStruct(out, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// Refresh asks the daemon to sync now and waits for the outcome.
func (c *Client) Refresh(ctx context.Context, force bool) (*RefreshReply, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodRefresh, wrapperspb.Bool(force), out); err != nil {
		return nil, err
	}
	var reply RefreshReply
	if err := fromStruct(out, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// Channels lists up to limit cached channels; zero uses the daemon default.
func (c *Client) Channels(ctx context.Context, limit int) (*ChannelsReply, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodChannels, wrapperspb.Int32(int32(limit)), out); err != nil {
		return nil, err
	}
	var reply ChannelsReply
	if err := fromStruct(out, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}
