package connect

import (
	"context"
	"crypto/subtle"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
)

const (
	// AdminTokenHeader is the header name for admin authentication token.
	AdminTokenHeader = "X-Admin-Token"
)

var errInvalidToken = errors.New("invalid admin token")

// NewAdminAuthInterceptor creates an interceptor that validates the admin
// token on unary procedures. The event stream is left open to any client.
func NewAdminAuthInterceptor(adminToken string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			token := req.Header().Get(AdminTokenHeader)
			if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(adminToken)) != 1 {
				return nil, connect.NewError(connect.CodeUnauthenticated, errInvalidToken)
			}
			return next(ctx, req)
		}
	}
}
