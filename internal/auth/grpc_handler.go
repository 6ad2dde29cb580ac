package auth

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/supreset/identity/internal/api"
)

// IdentityServer lets internal collaborators resolve bearer tokens into
// identities.
type IdentityServer interface {
	Introspect(ctx context.Context, token *wrapperspb.StringValue) (*structpb.Struct, error)
	WhoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error)
}

// GRPCHandler serves the auth.Identity service.
type GRPCHandler struct {
	guard *Guard
	log   *zap.Logger
}

func NewGRPCHandler(guard *Guard, log *zap.Logger) *GRPCHandler {
	return &GRPCHandler{guard: guard, log: log}
}

// Introspect never fails on a bad token; it reports {"active": false}.
func (h *GRPCHandler) Introspect(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "token is required")
	}

	claims, err := h.guard.Authenticate(ctx, req.GetValue())
	if err != nil {
		if e := AsError(err); e.Kind != KindAuthentication {
			h.log.Error("introspection failed", zap.Error(err))
			return nil, status.Error(e.Kind.GRPCCode(), e.Message)
		}
		return structpb.NewStruct(map[string]any{"active": false})
	}

	return claimsStruct(claims)
}

func (h *GRPCHandler) WhoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, MsgAuthRequired)
	}
	return claimsStruct(claims)
}

func claimsStruct(claims *Claims) (*structpb.Struct, error) {
	fields := map[string]any{
		"active":             true,
		"id":                 claims.ID,
		"email":              claims.Email,
		"name":               claims.Name,
		"role":               string(claims.Role),
		"mustChangePassword": claims.MustChangePassword,
	}
	if claims.ExpiresAt != nil {
		fields["exp"] = claims.ExpiresAt.Unix()
	}

	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode claims: %v", err)
	}
	return s, nil
}

// UnaryInterceptor authenticates calls to protected auth.Identity methods
// from the "authorization" metadata entry.
func (h *GRPCHandler) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !isProtectedMethod(info.FullMethod) {
			return handler(ctx, req)
		}

		var header string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get("authorization"); len(values) > 0 {
				header = values[0]
			}
		}

		claims, err := h.guard.Authenticate(ctx, header)
		if err != nil {
			h.log.Warn("authentication failed",
				zap.String("method", info.FullMethod),
				zap.Error(err))
			e := AsError(err)
			msg := e.Message
			if e.Kind == KindInternal {
				msg = MsgInternalServerError
			}
			return nil, status.Error(e.Kind.GRPCCode(), msg)
		}

		return handler(WithClaims(ctx, claims), req)
	}
}

func isProtectedMethod(method string) bool {
	return strings.HasPrefix(method, "/"+api.IdentityService+"/") && !api.PublicMethods[method]
}

// RegisterIdentityServer attaches srv to s.
func RegisterIdentityServer(s grpc.ServiceRegistrar, srv IdentityServer) {
	s.RegisterService(&identityServiceDesc, srv)
}

var identityServiceDesc = grpc.ServiceDesc{
	ServiceName: api.IdentityService,
	HandlerType: (*IdentityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Introspect", Handler: introspectHandler},
		{MethodName: "WhoAmI", Handler: whoAmIHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func introspectHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IdentityServer).Introspect(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: api.IdentityIntrospect}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IdentityServer).Introspect(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func whoAmIHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IdentityServer).WhoAmI(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: api.IdentityWhoAmI}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IdentityServer).WhoAmI(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// IdentityClient calls auth.Identity on a remote server.
type IdentityClient struct {
	cc grpc.ClientConnInterface
}

func NewIdentityClient(cc grpc.ClientConnInterface) *IdentityClient {
	return &IdentityClient{cc: cc}
}

func (c *IdentityClient) Introspect(ctx context.Context, token string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, api.IdentityIntrospect, wrapperspb.String(token), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// WhoAmI sends token as the authorization metadata entry. An empty token
// sends none.
func (c *IdentityClient) WhoAmI(ctx context.Context, token string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", bearerPrefix+token)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, api.IdentityWhoAmI, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
