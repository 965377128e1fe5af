package publish

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/lmittmann/w3"
	"github.com/lmittmann/w3/module/eth"
	"github.com/lmittmann/w3/w3types"
)

// ErrDeployReverted is returned for a mined creation tx with a failed status.
var ErrDeployReverted = errors.New("deployment reverted")

var receiptPollInterval = 2 * time.Second

// w3 renders block number -1 as "pending".
var pendingBlock = big.NewInt(-1)

type (
	DeployResult struct {
		TxHash          common.Hash
		ContractAddress common.Address
	}

	Deployer struct {
		client    *w3.Client
		signer    types.Signer
		key       *ecdsa.PrivateKey
		address   common.Address
		gasFeeCap *big.Int
		gasTipCap *big.Int
	}
)

func NewDeployer(rpcURL string, chainID int64, privateKey *ecdsa.PrivateKey, gasFeeCap, gasTipCap *big.Int) (*Deployer, error) {
	client, err := w3.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return &Deployer{
		client:    client,
		signer:    types.NewLondonSigner(big.NewInt(chainID)),
		key:       privateKey,
		address:   crypto.PubkeyToAddress(privateKey.PublicKey),
		gasFeeCap: gasFeeCap,
		gasTipCap: gasTipCap,
	}, nil
}

func (d *Deployer) Address() common.Address {
	return d.address
}

func (d *Deployer) Close() error {
	return d.client.Close()
}

func (d *Deployer) ChainID(ctx context.Context) (uint64, error) {
	var chainID uint64
	if err := d.client.CallCtx(ctx, eth.ChainID().Returns(&chainID)); err != nil {
		return 0, fmt.Errorf("get chain id: %w", err)
	}
	return chainID, nil
}

func (d *Deployer) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	var code []byte
	if err := d.client.CallCtx(ctx, eth.Code(addr, nil).Returns(&code)); err != nil {
		return nil, fmt.Errorf("get code %s: %w", addr.Hex(), err)
	}
	return code, nil
}

// getNonce counts pending txs so a deploy never replaces one in the mempool.
func (d *Deployer) getNonce(ctx context.Context) (uint64, error) {
	var nonce uint64
	if err := d.client.CallCtx(ctx, eth.Nonce(d.address, pendingBlock).Returns(&nonce)); err != nil {
		return 0, fmt.Errorf("get nonce: %w", err)
	}
	return nonce, nil
}

func (d *Deployer) EstimateDeployGas(ctx context.Context, bytecode, ctorArgs []byte) (uint64, error) {
	var gas uint64
	msg := &w3types.Message{
		From:  d.address,
		Input: creationData(bytecode, ctorArgs),
	}
	if err := d.client.CallCtx(ctx, eth.EstimateGas(msg, nil).Returns(&gas)); err != nil {
		return 0, fmt.Errorf("estimate gas: %w", err)
	}
	return gas, nil
}

// GasLimit pads an estimate by 20% and caps it at ceiling. An estimate above
// the ceiling is an error.
func GasLimit(estimate, ceiling uint64) (uint64, error) {
	if estimate > ceiling {
		return 0, fmt.Errorf("estimated gas %d exceeds limit %d", estimate, ceiling)
	}
	return min(estimate+estimate/5, ceiling), nil
}

func creationData(bytecode, ctorArgs []byte) []byte {
	data := make([]byte, 0, len(bytecode)+len(ctorArgs))
	data = append(data, bytecode...)
	return append(data, ctorArgs...)
}

func (d *Deployer) sendTx(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	signedTx, err := types.SignTx(tx, d.signer, d.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}
	if err := d.client.CallCtx(ctx, eth.SendTx(signedTx).Returns(nil)); err != nil {
		return common.Hash{}, fmt.Errorf("send tx: %w", err)
	}
	return signedTx.Hash(), nil
}

// PredictAddress returns the CREATE address of the deployer's contract
// creation offset transactions after the next one.
func (d *Deployer) PredictAddress(ctx context.Context, offset uint64) (common.Address, error) {
	nonce, err := d.getNonce(ctx)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.CreateAddress(d.address, nonce+offset), nil
}

// DeployContract sends a creation tx carrying bytecode followed by the
// ABI-encoded constructor arguments.
func (d *Deployer) DeployContract(ctx context.Context, bytecode, ctorArgs []byte, gasLimit uint64) (DeployResult, error) {
	if len(bytecode) == 0 {
		return DeployResult{}, errors.New("empty bytecode")
	}

	nonce, err := d.getNonce(ctx)
	if err != nil {
		return DeployResult{}, err
	}

	contractAddr := crypto.CreateAddress(d.address, nonce)

	data := creationData(bytecode, ctorArgs)

	//  EIP-1559 only
	tx := types.NewTx(&types.DynamicFeeTx{
		Nonce:     nonce,
		GasFeeCap: d.gasFeeCap,
		GasTipCap: d.gasTipCap,
		Gas:       gasLimit,
		Data:      data,
	})

	txHash, err := d.sendTx(ctx, tx)
	if err != nil {
		return DeployResult{}, err
	}

	return DeployResult{
		TxHash:          txHash,
		ContractAddress: contractAddr,
	}, nil
}

func (d *Deployer) WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		var receipt *types.Receipt
		err := d.client.CallCtx(ctx, eth.TxReceipt(txHash).Returns(&receipt))
		if err == nil && receipt != nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func RequireSuccess(receipt *types.Receipt) error {
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: %s", ErrDeployReverted, receipt.TxHash.Hex())
	}
	return nil
}
