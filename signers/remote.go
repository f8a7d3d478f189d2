package signers

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	logger "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type RemoteConfig struct {
	// host:port of the signing service
	ServerAddress string

	// key the service signs with
	KeyID string

	// address the key is expected to recover to
	Address ethcommon.Address

	// TLS client certificate and key, and the CA that authenticates the
	// server. Plaintext is used when Cert is empty.
	Cert         string
	Key          string
	ServerCACert string
}

// RemoteSigner asks a signing service over gRPC. The service may be backed
// by a threshold scheme, the client only sees sign(hash) -> signature.
type RemoteSigner struct {
	conn  grpc.ClientConnInterface
	keyID string
	addr  ethcommon.Address
}

func NewRemoteSigner(conn grpc.ClientConnInterface, keyID string, addr ethcommon.Address) *RemoteSigner {
	return &RemoteSigner{conn: conn, keyID: keyID, addr: addr}
}

// DialRemoteSigner connects to cfg.ServerAddress. Extra options are appended
// after the transport credentials.
func DialRemoteSigner(cfg RemoteConfig, opts ...grpc.DialOption) (*RemoteSigner, *grpc.ClientConn, error) {
	creds := insecure.NewCredentials()
	if cfg.Cert != "" {
		tlsConfig, err := createTLSConfig(cfg.Cert, cfg.Key, cfg.ServerCACert)
		if err != nil {
			return nil, nil, err
		}
		creds = credentials.NewTLS(tlsConfig)
	}

	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, opts...)
	conn, err := grpc.NewClient(cfg.ServerAddress, opts...)
	if err != nil {
		return nil, nil, err
	}
	return NewRemoteSigner(conn, cfg.KeyID, cfg.Address), conn, nil
}

func (s *RemoteSigner) Sign(ctx context.Context, hash [32]byte) ([]byte, error) {
	req, err := newSignRequest(s.keyID, hash)
	if err != nil {
		return nil, err
	}

	resp := new(wrapperspb.BytesValue)
	if err := s.conn.Invoke(ctx, signMethod, req, resp); err != nil {
		logger.WithFields(logger.Fields{
			"keyID": s.keyID,
			"hash":  fmt.Sprintf("0x%x", hash),
		}).Warnf("remote sign failed: err=%v", err)
		return nil, classify(err)
	}

	sig, err := normalize(resp.GetValue())
	if err != nil {
		return nil, err
	}

	pub, err := crypto.SigToPub(hash[:], append(sig[:64:64], sig[64]-27))
	if err != nil {
		return nil, err
	}
	if crypto.PubkeyToAddress(*pub) != s.addr {
		return nil, ErrSignerMismatch
	}
	return sig, nil
}

func (s *RemoteSigner) Address() ethcommon.Address {
	return s.addr
}

// classify maps transport failures to ErrRemoteSignerUnavailable so that
// callers can retry them.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrRemoteSignerUnavailable, err)
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return fmt.Errorf("%w: %v", ErrRemoteSignerUnavailable, err)
	case codes.NotFound:
		return fmt.Errorf("%w: %v", ErrUnknownKey, status.Convert(err).Message())
	}
	return err
}

func createTLSConfig(certFilePath, keyFilePath, serverCaCertFilePath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFilePath, keyFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate and key: %w", err)
	}

	caCertPool := x509.NewCertPool()
	caCert, err := os.ReadFile(serverCaCertFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caCertPool,
	}, nil
}

func newSignRequest(keyID string, hash [32]byte) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"key_id": keyID,
		"hash":   fmt.Sprintf("%x", hash),
	})
}
