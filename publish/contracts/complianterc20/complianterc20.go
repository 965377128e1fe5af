package complianterc20

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"
)

const (
	name     = "CompliantERC20"
	GasLimit = 6_000_000

	// Decimals is the ERC20 default precision the token is compiled with.
	Decimals uint8 = 18

	DefaultName          = "My Token"
	DefaultSymbol        = "MTK"
	DefaultInitialSupply = "1000000"
)

// constructor(IAccessManager accessManager, ISBT sbt, string name, string symbol, uint256 initialSupply)
var funcConstructor = w3.MustNewFunc(
	"constructor(address,address,string,string,uint256)", "",
)

type ConstructorArgs struct {
	AccessManager common.Address
	SBT           common.Address
	Name          string
	Symbol        string
	InitialSupply *big.Int
}

func Name() string        { return name }
func MaxGasLimit() uint64 { return GasLimit }

func Constructor() abi.Arguments {
	return funcConstructor.Args
}

func EncodeConstructor(args ConstructorArgs) ([]byte, error) {
	if args.AccessManager == (common.Address{}) {
		return nil, errors.New("access manager address is required")
	}
	if args.SBT == (common.Address{}) {
		return nil, errors.New("sbt address is required")
	}
	if args.InitialSupply == nil {
		return nil, errors.New("initial supply is required")
	}
	// abi packing reduces big.Int modulo 2^256 without complaint
	if args.InitialSupply.Sign() < 0 || args.InitialSupply.BitLen() > 256 {
		return nil, fmt.Errorf("initial supply %s out of uint256 range", args.InitialSupply)
	}
	return funcConstructor.Args.Pack(args.AccessManager, args.SBT, args.Name, args.Symbol, args.InitialSupply)
}
