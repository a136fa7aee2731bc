package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/types/known/structpb"
)

// PlayerClient calls the player service. Admin procedures carry the token header.
type PlayerClient struct {
	httpClient connect.HTTPClient
	baseURL    string
	token      string
	opts       []connect.ClientOption
}

// NewPlayerClient creates a client for the service at baseURL.
func NewPlayerClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *PlayerClient {
	return &PlayerClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		opts:       opts,
	}
}

// Call invokes a unary procedure with the given arguments and returns the decoded response.
func (c *PlayerClient) Call(ctx context.Context, procedure string, args map[string]any) (map[string]any, error) {
	msg, err := structpb.NewStruct(args)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode request")
	}

	client := connect.NewClient[structpb.Struct, structpb.Struct](c.httpClient, c.baseURL+procedure, c.opts...)
	req := connect.NewRequest(msg)
	req.Header().Set(AdminTokenHeader, c.token)

	resp, err := client.CallUnary(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Msg.AsMap(), nil
}

// Subscribe streams playback events to fn until ctx is done, the server closes
// the stream or fn returns an error. The first message is the initial state.
func (c *PlayerClient) Subscribe(ctx context.Context, fn func(map[string]any) error) error {
	client := connect.NewClient[structpb.Struct, structpb.Struct](c.httpClient, c.baseURL+SubscribeProcedure, c.opts...)
	stream, err := client.CallServerStream(ctx, connect.NewRequest(&structpb.Struct{}))
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		if err := fn(stream.Msg().AsMap()); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
