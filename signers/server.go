package signers

import (
	"context"
	"encoding/hex"

	logger "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const signMethod = "/signer.v1.Signer/Sign"

// signerService is the server side of signer.v1.Signer.
type signerService interface {
	Sign(ctx context.Context, req *structpb.Struct) (*wrapperspb.BytesValue, error)
}

var signerServiceDesc = grpc.ServiceDesc{
	ServiceName: "signer.v1.Signer",
	HandlerType: (*signerService)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Sign",
			Handler:    signHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "signer/v1/signer.proto",
}

func signHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(signerService).Sign(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: signMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(signerService).Sign(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// SignerServer serves signing requests from a fixed set of keys.
type SignerServer struct {
	keys map[string]Signer
}

func NewSignerServer(keys map[string]Signer) *SignerServer {
	return &SignerServer{keys: keys}
}

// Register attaches the service to a grpc server.
func (s *SignerServer) Register(srv grpc.ServiceRegistrar) {
	srv.RegisterService(&signerServiceDesc, s)
}

func (s *SignerServer) Sign(ctx context.Context, req *structpb.Struct) (*wrapperspb.BytesValue, error) {
	fields := req.GetFields()
	keyID := fields["key_id"].GetStringValue()
	signer, ok := s.keys[keyID]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "key %q", keyID)
	}

	raw, err := hex.DecodeString(fields["hash"].GetStringValue())
	if err != nil || len(raw) != 32 {
		return nil, status.Error(codes.InvalidArgument, "hash must be 32 bytes hex")
	}
	var hash [32]byte
	copy(hash[:], raw)

	sig, err := signer.Sign(ctx, hash)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	logger.WithFields(logger.Fields{
		"keyID": keyID,
		"hash":  "0x" + hex.EncodeToString(raw),
	}).Debug("signed hash")

	return wrapperspb.Bytes(sig), nil
}
