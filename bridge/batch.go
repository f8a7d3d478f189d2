package bridge

import (
	"math/big"

	"github.com/TEENet-io/mintburn-bridge/order"
	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"
)

// BatchMintErrorCode is the outcome of one order inside a batch.
type BatchMintErrorCode uint8

const (
	BatchMintOk BatchMintErrorCode = iota
	BatchMintInsufficientFeeDeposit
	BatchMintZeroAmount
	BatchMintUsedNonce
	BatchMintZeroRecipient
	BatchMintUnexpectedRecipientChainID
	BatchMintTokensNotBridged
	BatchMintProcessingNotRequested
)

func (c BatchMintErrorCode) String() string {
	switch c {
	case BatchMintOk:
		return "OK"
	case BatchMintInsufficientFeeDeposit:
		return "INSUFFICIENT_FEE_DEPOSIT"
	case BatchMintZeroAmount:
		return "ZERO_AMOUNT"
	case BatchMintUsedNonce:
		return "USED_NONCE"
	case BatchMintZeroRecipient:
		return "ZERO_RECIPIENT"
	case BatchMintUnexpectedRecipientChainID:
		return "UNEXPECTED_RECIPIENT_CHAIN_ID"
	case BatchMintTokensNotBridged:
		return "TOKENS_NOT_BRIDGED"
	case BatchMintProcessingNotRequested:
		return "PROCESSING_NOT_REQUESTED"
	default:
		return "UNKNOWN"
	}
}

// batchScope tracks what earlier orders of the same batch already claimed.
type batchScope struct {
	nonces map[order.Id256]map[uint32]struct{}
	escrow map[ethcommon.Address]*big.Int
}

func newBatchScope() *batchScope {
	return &batchScope{
		nonces: make(map[order.Id256]map[uint32]struct{}),
		escrow: make(map[ethcommon.Address]*big.Int),
	}
}

func (s *batchScope) claim(o *order.MintOrder) {
	m, ok := s.nonces[o.SenderID]
	if !ok {
		m = make(map[uint32]struct{})
		s.nonces[o.SenderID] = m
	}
	m[o.Nonce] = struct{}{}

	r, ok := s.escrow[o.ToToken]
	if !ok {
		r = new(big.Int)
	}
	s.escrow[o.ToToken] = r.Add(r, o.Amount)
}

func (s *batchScope) nonceClaimed(o *order.MintOrder) bool {
	_, ok := s.nonces[o.SenderID][o.Nonce]
	return ok
}

// isOrderValid is the soft check used by BatchMint. It never reverts.
func (b *Bridge) isOrderValid(o *order.MintOrder, scope *batchScope) BatchMintErrorCode {
	if o.Recipient == (ethcommon.Address{}) {
		return BatchMintZeroRecipient
	}
	if o.Amount == nil || o.Amount.Sign() == 0 {
		return BatchMintZeroAmount
	}
	if b.nonces.IsUsed(o.SenderID, o.Nonce) || scope.nonceClaimed(o) {
		return BatchMintUsedNonce
	}
	if o.RecipientChainID != b.cfg.ChainID {
		return BatchMintUnexpectedRecipientChainID
	}
	if b.pairs.IsWrapped(o.ToToken) && b.pairs.GetBaseToken(o.ToToken) != o.FromTokenID {
		return BatchMintTokensNotBridged
	}
	if !b.canDeliver(o.ToToken, o.Amount, scope.escrow) {
		return BatchMintTokensNotBridged
	}
	return BatchMintOk
}

// SplitBatchFee returns the fee of each of k successful orders:
// (commonGas/k + perOrderGas) * gasPrice. The division remainder goes to the
// first order so the total is exactly (commonGas + k*perOrderGas) * gasPrice.
func SplitBatchFee(commonGas, perOrderGas uint64, k int, gasPrice *big.Int) []*big.Int {
	if k <= 0 {
		return nil
	}
	if gasPrice == nil {
		gasPrice = new(big.Int)
	}

	share := commonGas/uint64(k) + perOrderGas
	rem := commonGas % uint64(k)

	fees := make([]*big.Int, k)
	for i := range fees {
		gas := share
		if i == 0 {
			gas += rem
		}
		fees[i] = new(big.Int).Mul(new(big.Int).SetUint64(gas), gasPrice)
	}
	return fees
}

// BatchMint processes the orders selected by ordersToProcess (all of them when
// empty). A bad order only affects its own result code. The length of the
// buffer, the indices and the aggregate signature are checked up front and
// revert the whole call.
func (b *Bridge) BatchMint(opts CallOpts, encodedOrders, signature []byte, ordersToProcess []uint32) ([]BatchMintErrorCode, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(encodedOrders) == 0 || len(encodedOrders)%order.OrderSize != 0 {
		return nil, revert(ErrInvalidOrdersEncoding)
	}

	signer, err := order.RecoverSigner(encodedOrders, signature)
	if err != nil || signer != b.cfg.Minter {
		return nil, revert(ErrInvalidSignature)
	}

	n := len(encodedOrders) / order.OrderSize
	orders := make([]*order.MintOrder, n)
	for i := 0; i < n; i++ {
		o, err := order.Decode(encodedOrders[i*order.OrderSize : (i+1)*order.OrderSize])
		if err != nil {
			return nil, revert(ErrInvalidOrdersEncoding)
		}
		orders[i] = o
	}

	requested := make([]int, 0, n)
	if len(ordersToProcess) == 0 {
		for i := 0; i < n; i++ {
			requested = append(requested, i)
		}
	} else {
		seen := make(map[uint32]struct{}, len(ordersToProcess))
		for _, idx := range ordersToProcess {
			if int(idx) >= n {
				return nil, revert(ErrOrderIndexOutOfRange)
			}
			if _, ok := seen[idx]; ok {
				continue
			}
			seen[idx] = struct{}{}
			requested = append(requested, int(idx))
		}
	}

	codes := make([]BatchMintErrorCode, n)
	for i := range codes {
		codes[i] = BatchMintProcessingNotRequested
	}

	scope := newBatchScope()
	candidates := make([]int, 0, len(requested))
	for _, i := range requested {
		codes[i] = b.isOrderValid(orders[i], scope)
		if codes[i] == BatchMintOk {
			scope.claim(orders[i])
			candidates = append(candidates, i)
		}
	}

	fees := make(map[int]*big.Int, len(candidates))
	if b.chargesFee(opts) {
		candidates, fees = b.settleBatchFees(orders, candidates, codes, opts.GasPrice)
	}

	if len(candidates) > 0 {
		b.beginTx(opts.Sender)
	}
	for _, i := range candidates {
		fee, ok := fees[i]
		if !ok {
			fee = new(big.Int)
		}
		if err := b.applyMint(orders[i], fee); err != nil {
			// validated orders cannot fail here, the state would be inconsistent
			logger.WithField("index", i).Errorf("failed to apply validated order: err=%v", err)
			return nil, revert(err)
		}
	}

	logger.WithFields(logger.Fields{
		"orders":    n,
		"requested": len(requested),
		"minted":    len(candidates),
	}).Debug("batch minted")

	return codes, nil
}

// settleBatchFees drops orders whose fee payer cannot cover the share and
// recomputes the split until every remaining order is covered.
func (b *Bridge) settleBatchFees(orders []*order.MintOrder, candidates []int, codes []BatchMintErrorCode, gasPrice *big.Int) ([]int, map[int]*big.Int) {
	for {
		fees := make(map[int]*big.Int, len(candidates))
		if len(candidates) == 0 {
			return candidates, fees
		}

		shares := SplitBatchFee(b.cfg.CommonBatchGasFee, b.cfg.PerOrderGasFee, len(candidates), gasPrice)
		remaining := make(map[ethcommon.Address]*big.Int)
		kept := make([]int, 0, len(candidates))
		dropped := false

		for j, i := range candidates {
			payer := orders[i].FeePayer
			bal, ok := remaining[payer]
			if !ok {
				bal = b.feeCharge.Balance(payer)
				remaining[payer] = bal
			}
			if bal.Cmp(shares[j]) < 0 {
				codes[i] = BatchMintInsufficientFeeDeposit
				dropped = true
				continue
			}
			bal.Sub(bal, shares[j])
			fees[i] = shares[j]
			kept = append(kept, i)
		}

		if !dropped {
			return kept, fees
		}
		candidates = kept
	}
}
