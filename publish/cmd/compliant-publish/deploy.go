package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/altxresearch/compliant-erc20/publish"
	"github.com/altxresearch/compliant-erc20/publish/contracts/accessmanager"
	"github.com/altxresearch/compliant-erc20/publish/contracts/complianterc20"
)

type chainDeployer interface {
	Address() common.Address
	ChainID(ctx context.Context) (uint64, error)
	CodeAt(ctx context.Context, addr common.Address) ([]byte, error)
	EstimateDeployGas(ctx context.Context, bytecode, ctorArgs []byte) (uint64, error)
	DeployContract(ctx context.Context, bytecode, ctorArgs []byte, gasLimit uint64) (publish.DeployResult, error)
	WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// contractSet holds the creation bytecode of both contracts.
type contractSet struct {
	AccessManager  []byte
	CompliantERC20 []byte
}

type report struct {
	Network        string `json:"network"`
	ChainID        uint64 `json:"chain_id"`
	Deployer       string `json:"deployer"`
	SBT            string `json:"sbt"`
	AccessManager  string `json:"access_manager"`
	CompliantERC20 string `json:"compliant_erc20"`
	InitialSupply  string `json:"initial_supply"`
	Transactions   struct {
		AccessManager  string `json:"access_manager"`
		CompliantERC20 string `json:"compliant_erc20"`
	} `json:"transactions"`
}

// loadContracts reads both artifacts and checks their constructors against
// the bindings.
func loadContracts(dir string) (contractSet, error) {
	am, err := publish.FindArtifact(dir, accessmanager.Name())
	if err != nil {
		return contractSet{}, err
	}
	if err := am.CheckConstructor(accessmanager.Constructor()); err != nil {
		return contractSet{}, err
	}

	token, err := publish.FindArtifact(dir, complianterc20.Name())
	if err != nil {
		return contractSet{}, err
	}
	if err := token.CheckConstructor(complianterc20.Constructor()); err != nil {
		return contractSet{}, err
	}

	return contractSet{
		AccessManager:  am.Bytecode(),
		CompliantERC20: token.Bytecode(),
	}, nil
}

// deployAll deploys AccessManager, waits for it, then deploys CompliantERC20
// against it. Result lines are written to out.
func deployAll(ctx context.Context, log *logrus.Entry, d chainDeployer, cfg config, p params, set contractSet, out io.Writer) (report, error) {
	var res report

	chainID, err := d.ChainID(ctx)
	if err != nil {
		return res, err
	}
	if chainID != uint64(cfg.ChainID) {
		return res, fmt.Errorf("chain-id %d does not match rpc chain id %d", cfg.ChainID, chainID)
	}
	res.ChainID = chainID
	res.Network = networkLabel(cfg.NetworkName, chainID)
	res.Deployer = d.Address().Hex()
	res.SBT = p.sbt.Hex()
	res.InitialSupply = p.initialSupply.String()

	fmt.Fprintln(out, "Network:", res.Network)

	if !cfg.SkipSBTCodeCheck {
		code, err := d.CodeAt(ctx, p.sbt)
		if err != nil {
			return res, err
		}
		if len(code) == 0 {
			return res, fmt.Errorf("sbt address %s has no code", p.sbt.Hex())
		}
	}

	amArgs, err := accessmanager.EncodeConstructor(accessmanager.ConstructorArgs{InitialAdmin: p.admin})
	if err != nil {
		return res, fmt.Errorf("encode %s constructor: %w", accessmanager.Name(), err)
	}
	amResult, err := deployPlain(ctx, log, d, accessmanager.Name(), set.AccessManager, amArgs, accessmanager.MaxGasLimit())
	if err != nil {
		return res, err
	}
	res.AccessManager = amResult.ContractAddress.Hex()
	res.Transactions.AccessManager = amResult.TxHash.Hex()
	fmt.Fprintln(out, "Access Manager deployed at:", res.AccessManager)

	log.WithFields(logrus.Fields{
		"name":   cfg.TokenName,
		"symbol": cfg.TokenSymbol,
		"supply": publish.FormatUnits(p.initialSupply, complianterc20.Decimals),
	}).Debug("token parameters")

	tokenArgs, err := complianterc20.EncodeConstructor(complianterc20.ConstructorArgs{
		AccessManager: amResult.ContractAddress,
		SBT:           p.sbt,
		Name:          cfg.TokenName,
		Symbol:        cfg.TokenSymbol,
		InitialSupply: p.initialSupply,
	})
	if err != nil {
		return res, fmt.Errorf("encode %s constructor: %w", complianterc20.Name(), err)
	}
	tokenResult, err := deployPlain(ctx, log, d, complianterc20.Name(), set.CompliantERC20, tokenArgs, complianterc20.MaxGasLimit())
	if err != nil {
		return res, err
	}
	res.CompliantERC20 = tokenResult.ContractAddress.Hex()
	res.Transactions.CompliantERC20 = tokenResult.TxHash.Hex()

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Compliant ERC20 Contract deployed at:", res.CompliantERC20)
	fmt.Fprintln(out, "Please add this address to your .env file as ERC20_CONTRACT_ADDRESS")

	if cfg.JSON {
		blob, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return res, err
		}
		fmt.Fprintln(out, string(blob))
	}
	return res, nil
}

// networkLabel prefers an explicit name over the one derived from chainID.
func networkLabel(override string, chainID uint64) string {
	if name := strings.TrimSpace(override); name != "" {
		return name
	}
	return publish.NetworkName(chainID)
}

// deployPlain estimates gas for the creation, capped at maxGas, then sends it
// and waits for a successful receipt.
func deployPlain(ctx context.Context, log *logrus.Entry, d chainDeployer, name string, bytecode, ctorArgs []byte, maxGas uint64) (publish.DeployResult, error) {
	log = log.WithField("contract", name)

	estimate, err := d.EstimateDeployGas(ctx, bytecode, ctorArgs)
	if err != nil {
		return publish.DeployResult{}, fmt.Errorf("deploy %s: %w", name, err)
	}
	gasLimit, err := publish.GasLimit(estimate, maxGas)
	if err != nil {
		return publish.DeployResult{}, fmt.Errorf("deploy %s: %w", name, err)
	}
	log.WithFields(logrus.Fields{
		"estimate": estimate,
		"gas":      gasLimit,
	}).Info("deploying")

	result, err := d.DeployContract(ctx, bytecode, ctorArgs, gasLimit)
	if err != nil {
		return publish.DeployResult{}, fmt.Errorf("deploy %s: %w", name, err)
	}
	log.WithField("tx", result.TxHash.Hex()).Info("tx sent")

	receipt, err := d.WaitForReceipt(ctx, result.TxHash)
	if err != nil {
		return publish.DeployResult{}, fmt.Errorf("wait %s: %w", name, err)
	}
	if err := publish.RequireSuccess(receipt); err != nil {
		return publish.DeployResult{}, fmt.Errorf("%s: %w", name, err)
	}
	if receipt.ContractAddress != (common.Address{}) && receipt.ContractAddress != result.ContractAddress {
		return publish.DeployResult{}, fmt.Errorf("%s deployed at %s, expected %s", name, receipt.ContractAddress.Hex(), result.ContractAddress.Hex())
	}

	log.WithFields(logrus.Fields{
		"address": result.ContractAddress.Hex(),
		"block":   receipt.BlockNumber,
	}).Info("confirmed")
	return result, nil
}
