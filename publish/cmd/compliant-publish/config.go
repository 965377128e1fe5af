package main

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"

	"github.com/altxresearch/compliant-erc20/publish"
	"github.com/altxresearch/compliant-erc20/publish/contracts/complianterc20"
)

const sbtAddressEnv = "SBT_CONTRACT_ADDRESS"

const maxTimeoutSeconds = 24 * 60 * 60

var errSBTAddressUnset = errors.New(sbtAddressEnv + " environment variable is not set")

type config struct {
	SBTAddress       string
	RPCURL           string
	ChainID          int64
	NetworkName      string
	PrivateKey       string
	PublicAddress    string
	Admin            string
	TokenName        string
	TokenSymbol      string
	InitialSupply    string
	ArtifactsDir     string
	GasFeeCap        int64
	GasTipCap        int64
	TimeoutSeconds   int
	SkipSBTCodeCheck bool
	JSON             bool
}

// params are the validated, typed form of config.
type params struct {
	key           *ecdsa.PrivateKey
	deployer      common.Address
	admin         common.Address
	sbt           common.Address
	initialSupply *big.Int
}

var (
	flagSBTAddress = &cli.StringFlag{
		Name:    "sbt-address",
		Usage:   "verified SBT contract the token checks holders against",
		EnvVars: []string{sbtAddressEnv},
	}
	flagRPCURL = &cli.StringFlag{
		Name:    "rpc-url",
		Usage:   "RPC URL",
		EnvVars: []string{"RPC_URL"},
	}
	flagChainID = &cli.Int64Flag{
		Name:    "chain-id",
		Usage:   "chain id, must match the RPC",
		EnvVars: []string{"CHAIN_ID"},
	}
	flagNetworkName = &cli.StringFlag{
		Name:    "network-name",
		Usage:   "network name to print (default derived from chain id)",
		EnvVars: []string{"NETWORK_NAME"},
	}
	flagPrivateKey = &cli.StringFlag{
		Name:    "private-key",
		Usage:   "deployer private key hex",
		EnvVars: []string{"PRIVATE_KEY"},
	}
	flagPublicAddress = &cli.StringFlag{
		Name:    "public-address",
		Usage:   "public address for validation",
		EnvVars: []string{"PUBLIC_ADDRESS"},
	}
	flagAdmin = &cli.StringFlag{
		Name:    "admin",
		Usage:   "AccessManager initial admin (default deployer)",
		EnvVars: []string{"ACCESS_MANAGER_ADMIN"},
	}
	flagTokenName = &cli.StringFlag{
		Name:    "token-name",
		Usage:   "token name",
		Value:   complianterc20.DefaultName,
		EnvVars: []string{"TOKEN_NAME"},
	}
	flagTokenSymbol = &cli.StringFlag{
		Name:    "token-symbol",
		Usage:   "token symbol",
		Value:   complianterc20.DefaultSymbol,
		EnvVars: []string{"TOKEN_SYMBOL"},
	}
	flagInitialSupply = &cli.StringFlag{
		Name:    "initial-supply",
		Usage:   "initial supply in whole tokens",
		Value:   complianterc20.DefaultInitialSupply,
		EnvVars: []string{"INITIAL_SUPPLY"},
	}
	flagArtifactsDir = &cli.StringFlag{
		Name:    "artifacts-dir",
		Usage:   "hardhat artifacts directory",
		Value:   "artifacts",
		EnvVars: []string{"ARTIFACTS_DIR"},
	}
	flagGasFeeCap = &cli.Int64Flag{
		Name:    "gas-fee-cap",
		Usage:   "EIP-1559 fee cap",
		Value:   2_000_000_000,
		EnvVars: []string{"GAS_FEE_CAP"},
	}
	flagGasTipCap = &cli.Int64Flag{
		Name:    "gas-tip-cap",
		Usage:   "EIP-1559 tip cap",
		Value:   1_000_000_000,
		EnvVars: []string{"GAS_TIP_CAP"},
	}
	flagTimeoutSeconds = &cli.IntFlag{
		Name:    "timeout-seconds",
		Usage:   "timeout in seconds",
		Value:   600,
		EnvVars: []string{"TIMEOUT_SECONDS"},
	}
	flagSkipSBTCodeCheck = &cli.BoolFlag{
		Name:    "skip-sbt-code-check",
		Usage:   "do not require code at the SBT address",
		EnvVars: []string{"SKIP_SBT_CODE_CHECK"},
	}
	flagJSON = &cli.BoolFlag{
		Name:  "json",
		Usage: "also print a JSON report",
	}
	flagLogLevel = &cli.StringFlag{
		Name:    "log-level",
		Usage:   "panic|fatal|error|warn|info|debug|trace",
		Value:   "info",
		EnvVars: []string{"LOG_LEVEL"},
	}
)

var connectionFlags = []cli.Flag{
	flagRPCURL,
	flagChainID,
	flagNetworkName,
	flagPrivateKey,
	flagPublicAddress,
	flagTimeoutSeconds,
}

var deployFlags = append([]cli.Flag{
	flagSBTAddress,
	flagAdmin,
	flagTokenName,
	flagTokenSymbol,
	flagInitialSupply,
	flagArtifactsDir,
	flagGasFeeCap,
	flagGasTipCap,
	flagSkipSBTCodeCheck,
	flagJSON,
}, connectionFlags...)

func readConfig(c *cli.Context) config {
	return config{
		SBTAddress:       strings.TrimSpace(c.String(flagSBTAddress.Name)),
		RPCURL:           strings.TrimSpace(c.String(flagRPCURL.Name)),
		ChainID:          c.Int64(flagChainID.Name),
		NetworkName:      strings.TrimSpace(c.String(flagNetworkName.Name)),
		PrivateKey:       strings.TrimSpace(c.String(flagPrivateKey.Name)),
		PublicAddress:    strings.TrimSpace(c.String(flagPublicAddress.Name)),
		Admin:            strings.TrimSpace(c.String(flagAdmin.Name)),
		TokenName:        c.String(flagTokenName.Name),
		TokenSymbol:      c.String(flagTokenSymbol.Name),
		InitialSupply:    c.String(flagInitialSupply.Name),
		ArtifactsDir:     c.String(flagArtifactsDir.Name),
		GasFeeCap:        c.Int64(flagGasFeeCap.Name),
		GasTipCap:        c.Int64(flagGasTipCap.Name),
		TimeoutSeconds:   c.Int(flagTimeoutSeconds.Name),
		SkipSBTCodeCheck: c.Bool(flagSkipSBTCodeCheck.Name),
		JSON:             c.Bool(flagJSON.Name),
	}
}

func (cfg config) validateConnection() error {
	if cfg.RPCURL == "" || cfg.ChainID == 0 || cfg.PrivateKey == "" {
		return errors.New("rpc-url, chain-id and private-key are required")
	}
	if cfg.ChainID < 0 {
		return fmt.Errorf("chain-id must be positive, got %d", cfg.ChainID)
	}
	if cfg.TimeoutSeconds <= 0 || cfg.TimeoutSeconds > maxTimeoutSeconds {
		return fmt.Errorf("timeout-seconds must be between 1 and %d", maxTimeoutSeconds)
	}
	return nil
}

// resolveSigner parses the private key and checks it against the optional
// public address.
func (cfg config) resolveSigner() (*ecdsa.PrivateKey, common.Address, error) {
	key, addr, err := parsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, common.Address{}, err
	}
	if cfg.PublicAddress != "" {
		pub, err := parseAddress(cfg.PublicAddress)
		if err != nil {
			return nil, common.Address{}, err
		}
		if pub != addr {
			return nil, common.Address{}, fmt.Errorf("public-address %s does not match private key address %s", pub.Hex(), addr.Hex())
		}
	}
	return key, addr, nil
}

// deployParams validates everything deploy needs before any network call.
// The SBT address is checked first.
func (cfg config) deployParams() (params, error) {
	if cfg.SBTAddress == "" {
		return params{}, errSBTAddressUnset
	}
	sbt, err := parseAddress(cfg.SBTAddress)
	if err != nil {
		return params{}, fmt.Errorf("%s: %w", sbtAddressEnv, err)
	}

	if err := cfg.validateConnection(); err != nil {
		return params{}, err
	}
	if strings.TrimSpace(cfg.TokenName) == "" || strings.TrimSpace(cfg.TokenSymbol) == "" {
		return params{}, errors.New("token-name and token-symbol must not be empty")
	}
	if cfg.GasFeeCap <= 0 || cfg.GasTipCap <= 0 || cfg.GasTipCap > cfg.GasFeeCap {
		return params{}, fmt.Errorf("invalid gas caps: fee cap %d, tip cap %d", cfg.GasFeeCap, cfg.GasTipCap)
	}

	supply, err := publish.ParseUnits(cfg.InitialSupply, complianterc20.Decimals)
	if err != nil {
		return params{}, fmt.Errorf("initial-supply: %w", err)
	}

	key, deployer, err := cfg.resolveSigner()
	if err != nil {
		return params{}, err
	}

	admin := deployer
	if cfg.Admin != "" {
		admin, err = parseAddress(cfg.Admin)
		if err != nil {
			return params{}, fmt.Errorf("admin: %w", err)
		}
	}

	return params{
		key:           key,
		deployer:      deployer,
		admin:         admin,
		sbt:           sbt,
		initialSupply: supply,
	}, nil
}

func parsePrivateKey(v string) (*ecdsa.PrivateKey, common.Address, error) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "0x")
	key, err := crypto.HexToECDSA(v)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("parse private key: %w", err)
	}
	return key, crypto.PubkeyToAddress(key.PublicKey), nil
}

func parseAddress(v string) (common.Address, error) {
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("invalid address: %s", v)
	}
	return common.HexToAddress(v), nil
}

func envFilePath() string {
	if v := strings.TrimSpace(os.Getenv("ENV_FILE")); v != "" {
		return v
	}
	return ".env"
}

// loadDotEnv exports the variables of a dotenv file into the process
// environment. Variables that are already set keep their value. A missing
// file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, ok := os.LookupEnv(name); ok {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}
	return nil
}
