package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	apperrors "github.com/medichain/medichain-api/pkg/errors"
	"github.com/medichain/medichain-api/pkg/logger"
	"github.com/medichain/medichain-api/pkg/metrics"
)

// TxSubmitter is the write side of the chain as seen by the services.
type TxSubmitter interface {
	Submit(ctx context.Context, call Call) (*Confirmation, error)
}

// contractTransactor is satisfied by bind.BoundContract.
type contractTransactor interface {
	Transact(opts *bind.TransactOpts, method string, args ...interface{}) (*types.Transaction, error)
}

// ReceiptReader is satisfied by ethclient.Client.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// RelayerConfig configures the custodial signing account and confirmation
// behavior.
type RelayerConfig struct {
	PrivateKey     string
	ChainID        int64
	GasLimit       uint64
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	MaxRetries     uint64
}

// Relayer owns the single custodial account that signs every transaction.
// Nonce allocation goes through the sequencer; everything after allocation
// runs concurrently with other submissions.
type Relayer struct {
	contract  contractTransactor
	receipts  ReceiptReader
	sequencer *NonceSequencer

	from   common.Address
	signer bind.SignerFn

	gasLimit       uint64
	confirmTimeout time.Duration
	pollInterval   time.Duration
	maxRetries     uint64

	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewRelayer(client *Client, cfg RelayerConfig, log *logger.Logger, m *metrics.Metrics) (*Relayer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid relayer private key: %w", err)
	}

	auth, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(cfg.ChainID))
	if err != nil {
		return nil, fmt.Errorf("failed to build relayer transactor: %w", err)
	}

	r := newRelayer(client.Contract(), client.Eth(), NewNonceSequencer(client.Eth(), auth.From), auth, cfg, log, m)
	log.Info("relayer initialized", "address", auth.From.Hex())
	return r, nil
}

func newRelayer(
	contract contractTransactor,
	receipts ReceiptReader,
	sequencer *NonceSequencer,
	auth *bind.TransactOpts,
	cfg RelayerConfig,
	log *logger.Logger,
	m *metrics.Metrics,
) *Relayer {
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 45 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	return &Relayer{
		contract:       contract,
		receipts:       receipts,
		sequencer:      sequencer,
		from:           auth.From,
		signer:         auth.Signer,
		gasLimit:       cfg.GasLimit,
		confirmTimeout: cfg.ConfirmTimeout,
		pollInterval:   cfg.PollInterval,
		maxRetries:     cfg.MaxRetries,
		logger:         log,
		metrics:        m,
	}
}

// Submit broadcasts the call under the next relayer nonce and blocks until it
// is mined. Error classes:
//
//   - ChainTransient: broadcast never succeeded; the nonce was returned to
//     the sequencer and the call may be retried.
//   - ChainRevert: the transaction was mined but reverted; the nonce is
//     consumed and local writes made before the call are now inconsistent.
//   - NonceDrift: the counter desynced twice in a row even after a resync.
func (r *Relayer) Submit(ctx context.Context, call Call) (*Confirmation, error) {
	nonce, err := r.sequencer.Allocate(ctx)
	if err != nil {
		return nil, apperrors.ChainTransient("failed to allocate nonce", err)
	}

	if r.metrics != nil {
		r.metrics.RelayerTxSubmitted.Inc()
		r.metrics.RelayerTxInflight.Inc()
		defer r.metrics.RelayerTxInflight.Dec()
	}
	start := time.Now()

	tx, err := r.broadcast(ctx, call, nonce)
	if err != nil {
		if !isNonceError(err) {
			// Never broadcast, nonce not consumed. Hand the counter back to
			// the chain's truth so the gap does not wedge later submissions.
			if resyncErr := r.sequencer.Resync(ctx); resyncErr != nil {
				r.logger.Error(resyncErr, "nonce resync after failed broadcast")
			}
			return nil, apperrors.ChainTransient(fmt.Sprintf("failed to broadcast %s", call.Method), err)
		}

		// Counter drift: resync once and retry under a fresh nonce.
		r.logger.Warn("relayer nonce drift detected, resyncing", "method", call.Method, "nonce", nonce)
		if r.metrics != nil {
			r.metrics.RelayerNonceResyncs.Inc()
		}
		if resyncErr := r.sequencer.Resync(ctx); resyncErr != nil {
			return nil, apperrors.NonceDrift(resyncErr)
		}
		nonce, err = r.sequencer.Allocate(ctx)
		if err != nil {
			return nil, apperrors.NonceDrift(err)
		}
		tx, err = r.broadcast(ctx, call, nonce)
		if err != nil {
			if isNonceError(err) {
				return nil, apperrors.NonceDrift(err)
			}
			return nil, apperrors.ChainTransient(fmt.Sprintf("failed to broadcast %s", call.Method), err)
		}
	}

	receipt, err := r.waitMined(ctx, tx.Hash())
	if err != nil {
		// Broadcast succeeded, so the nonce is spent whatever happens next.
		// Resubmitting here would be rejected (same nonce) or double-spend
		// the intent (new nonce), so the failure is terminal.
		return nil, apperrors.Internal(fmt.Errorf("confirmation of %s (%s) failed: %w", call.Method, tx.Hash().Hex(), err))
	}

	if receipt.Status == types.ReceiptStatusFailed {
		if r.metrics != nil {
			r.metrics.RelayerTxReverted.Inc()
		}
		return nil, apperrors.ChainRevert(fmt.Sprintf("%s reverted on-chain", call.Method), fmt.Errorf("tx %s reverted in block %d", tx.Hash().Hex(), receipt.BlockNumber.Uint64()))
	}

	if r.metrics != nil {
		r.metrics.RelayerTxConfirmed.Inc()
		r.metrics.RelayerConfirmLatency.Observe(time.Since(start).Seconds())
	}

	r.logger.Debug("transaction confirmed",
		"method", call.Method, "tx", tx.Hash().Hex(), "block", receipt.BlockNumber.Uint64(), "nonce", nonce)

	return &Confirmation{
		TxHash:      tx.Hash().Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
	}, nil
}

// broadcast sends the transaction with bounded exponential backoff on
// transient RPC failures. Nonce rejections are surfaced immediately so Submit
// can resync.
func (r *Relayer) broadcast(ctx context.Context, call Call, nonce uint64) (*types.Transaction, error) {
	operation := func() (*types.Transaction, error) {
		opts := &bind.TransactOpts{
			From:     r.from,
			Signer:   r.signer,
			Nonce:    new(big.Int).SetUint64(nonce),
			GasLimit: r.gasLimit,
			Context:  ctx,
		}

		tx, err := r.contract.Transact(opts, call.Method, call.Args...)
		if err != nil {
			if isNonceError(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return tx, nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), r.maxRetries), ctx)
	return backoff.RetryWithData(operation, policy)
}

// waitMined polls for the receipt until the confirmation timeout. RPC errors
// during polling are ignored; the next tick retries.
func (r *Relayer) waitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	deadline := time.NewTimer(r.confirmTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := r.receipts.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			r.logger.Debug("receipt poll failed", "tx", txHash.Hex(), "error", err.Error())
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("no receipt after %s", r.confirmTimeout)
		case <-ticker.C:
		}
	}
}

func isNonceError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "nonce too low") || strings.Contains(msg, "invalid nonce")
}
