package main

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/altxresearch/compliant-erc20/publish"
	"github.com/altxresearch/compliant-erc20/publish/contracts/accessmanager"
	"github.com/altxresearch/compliant-erc20/publish/contracts/complianterc20"
)

func main() {
	log := logrus.NewEntry(logrus.New())
	log.Logger.SetOutput(os.Stderr)

	if err := loadDotEnv(envFilePath()); err != nil {
		logFailure(log, err)
		os.Exit(1)
	}

	app := newApp(log)
	if err := app.Run(os.Args); err != nil {
		logFailure(log, err)
		os.Exit(1)
	}
}

// logFailure reports err even when --log-level is above error.
func logFailure(log *logrus.Entry, err error) {
	if !log.Logger.IsLevelEnabled(logrus.ErrorLevel) {
		log.Logger.SetLevel(logrus.ErrorLevel)
	}
	log.WithError(err).Error("Application failed")
}

func newApp(log *logrus.Entry) *cli.App {
	app := cli.NewApp()
	app.Name = "compliant-publish"
	app.Usage = "Deploys the AccessManager and CompliantERC20 contracts."
	app.Flags = []cli.Flag{flagLogLevel}
	app.Before = func(c *cli.Context) error {
		lvl, err := logrus.ParseLevel(c.String(flagLogLevel.Name))
		if err != nil {
			return fmt.Errorf("invalid log-level: %w", err)
		}
		log.Logger.SetLevel(lvl)
		return nil
	}
	app.Commands = []*cli.Command{
		{
			Name:   "deploy",
			Usage:  "deploys AccessManager, then CompliantERC20 bound to it and the SBT",
			Flags:  deployFlags,
			Action: deployAction(log),
		},
		{
			Name:   "predict",
			Usage:  "prints the addresses the next deploy would produce",
			Flags:  connectionFlags,
			Action: predictAction(log),
		},
	}
	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr
	return app
}

func deployAction(log *logrus.Entry) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg := readConfig(c)
		p, err := cfg.deployParams()
		if err != nil {
			return err
		}

		set, err := loadContracts(cfg.ArtifactsDir)
		if err != nil {
			return err
		}

		d, err := publish.NewDeployer(cfg.RPCURL, cfg.ChainID, p.key, big.NewInt(cfg.GasFeeCap), big.NewInt(cfg.GasTipCap))
		if err != nil {
			return err
		}
		defer d.Close()

		ctx, cancel := context.WithTimeout(c.Context, time.Duration(cfg.TimeoutSeconds)*time.Second)
		defer cancel()

		log.WithField("deployer", d.Address().Hex()).Debug("signer resolved")
		_, err = deployAll(ctx, log, d, cfg, p, set, c.App.Writer)
		return err
	}
}

func predictAction(log *logrus.Entry) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg := readConfig(c)
		if err := cfg.validateConnection(); err != nil {
			return err
		}
		key, _, err := cfg.resolveSigner()
		if err != nil {
			return err
		}

		d, err := publish.NewDeployer(cfg.RPCURL, cfg.ChainID, key, big.NewInt(cfg.GasFeeCap), big.NewInt(cfg.GasTipCap))
		if err != nil {
			return err
		}
		defer d.Close()

		ctx, cancel := context.WithTimeout(c.Context, time.Duration(cfg.TimeoutSeconds)*time.Second)
		defer cancel()

		return predict(ctx, log, d, uint64(cfg.ChainID), cfg.NetworkName, c.App.Writer)
	}
}

type addressPredictor interface {
	ChainID(ctx context.Context) (uint64, error)
	PredictAddress(ctx context.Context, offset uint64) (common.Address, error)
}

// predict assumes deploy sends no other tx from the deployer in between.
func predict(ctx context.Context, log *logrus.Entry, d addressPredictor, wantChainID uint64, networkName string, out io.Writer) error {
	chainID, err := d.ChainID(ctx)
	if err != nil {
		return err
	}
	if chainID != wantChainID {
		return fmt.Errorf("chain-id %d does not match rpc chain id %d", wantChainID, chainID)
	}
	am, err := d.PredictAddress(ctx, 0)
	if err != nil {
		return err
	}
	token, err := d.PredictAddress(ctx, 1)
	if err != nil {
		return err
	}
	log.WithField("chain_id", chainID).Debug("predicted addresses")

	fmt.Fprintln(out, "Network:", networkLabel(networkName, chainID))
	fmt.Fprintf(out, "%s would deploy at: %s\n", accessmanager.Name(), am.Hex())
	fmt.Fprintf(out, "%s would deploy at: %s\n", complianterc20.Name(), token.Hex())
	return nil
}
