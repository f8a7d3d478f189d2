package signers

import (
	"context"
	"encoding/hex"
	"net"
	"testing"
	"time"

	"github.com/TEENet-io/mintburn-bridge/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

func recoverAddr(t *testing.T, hash [32]byte, sig []byte) string {
	require.Len(t, sig, 65)
	require.Contains(t, []byte{27, 28}, sig[64])
	raw := append([]byte{}, sig...)
	raw[64] -= 27
	pub, err := crypto.SigToPub(hash[:], raw)
	require.NoError(t, err)
	return crypto.PubkeyToAddress(*pub).Hex()
}

func TestLocalSigner(t *testing.T) {
	signer, err := NewRandomLocalSigner()
	require.NoError(t, err)

	hash := common.RandBytes32()
	sig, err := signer.Sign(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, signer.Address().Hex(), recoverAddr(t, hash, sig))

	_, err = NewLocalSignerFromHex("")
	assert.ErrorIs(t, err, ErrMissingPrivateKey)

	sk, err := crypto.GenerateKey()
	require.NoError(t, err)
	fromHex, err := NewLocalSignerFromHex("0x" + hex.EncodeToString(crypto.FromECDSA(sk)))
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(sk.PublicKey), fromHex.Address())
}

func startServer(t *testing.T, keys map[string]Signer) *grpc.ClientConn {
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	NewSignerServer(keys).Register(srv)
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRemoteSigner(t *testing.T) {
	local, err := NewRandomLocalSigner()
	require.NoError(t, err)
	conn := startServer(t, map[string]Signer{"minter": local})

	remote := NewRemoteSigner(conn, "minter", local.Address())
	hash := common.RandBytes32()
	sig, err := remote.Sign(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, local.Address().Hex(), recoverAddr(t, hash, sig))
	assert.Equal(t, local.Address(), remote.Address())

	unknown := NewRemoteSigner(conn, "nobody", local.Address())
	_, err = unknown.Sign(context.Background(), hash)
	assert.ErrorIs(t, err, ErrUnknownKey)

	mismatch := NewRemoteSigner(conn, "minter", common.RandEthAddress())
	_, err = mismatch.Sign(context.Background(), hash)
	assert.ErrorIs(t, err, ErrSignerMismatch)
}

func TestRemoteSignerUnavailable(t *testing.T) {
	lis := bufconn.Listen(1 << 10)
	require.NoError(t, lis.Close())

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	remote := NewRemoteSigner(conn, "minter", common.RandEthAddress())
	_, err = remote.Sign(ctx, common.RandBytes32())
	assert.ErrorIs(t, err, ErrRemoteSignerUnavailable)
}

func TestNewSigner(t *testing.T) {
	_, _, err := NewSigner(context.Background(), Strategy{Kind: StrategyLocal})
	assert.ErrorIs(t, err, ErrMissingPrivateKey)

	_, _, err = NewSigner(context.Background(), Strategy{Kind: StrategyKind(9)})
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	signer, closer, err := NewSigner(context.Background(), Strategy{
		Kind:       StrategyLocal,
		PrivateKey: "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318",
	})
	require.NoError(t, err)
	assert.NoError(t, closer())
	assert.Equal(t, "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23", signer.Address().Hex())

	kind, err := ParseStrategyKind("Remote")
	require.NoError(t, err)
	assert.Equal(t, StrategyRemote, kind)
	_, err = ParseStrategyKind("threshold")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}
