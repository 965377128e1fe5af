package accessmanager

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"
)

const (
	name     = "AccessManager"
	GasLimit = 6_000_000
)

var funcConstructor = w3.MustNewFunc(
	"constructor(address)", "",
)

type ConstructorArgs struct {
	InitialAdmin common.Address
}

func Name() string        { return name }
func MaxGasLimit() uint64 { return GasLimit }

func Constructor() abi.Arguments {
	return funcConstructor.Args
}

func EncodeConstructor(args ConstructorArgs) ([]byte, error) {
	return funcConstructor.Args.Pack(args.InitialAdmin)
}
