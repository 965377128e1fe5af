package publish

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/stretchr/testify/require"
)

const addressCtorABI = `[{"type":"constructor","stateMutability":"nonpayable","inputs":[{"name":"initialAdmin","type":"address","internalType":"address"}]}]`

func writeArtifact(t *testing.T, path, name, abiJSON, bytecode string) {
	t.Helper()
	blob, err := json.Marshal(map[string]any{
		"_format":        "hh-sol-artifact-1",
		"contractName":   name,
		"sourceName":     "contracts/" + name + ".sol",
		"abi":            json.RawMessage(abiJSON),
		"bytecode":       bytecode,
		"linkReferences": map[string]any{},
	})
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, blob, 0o644))
}

func mustArguments(t *testing.T, types ...string) abi.Arguments {
	t.Helper()
	args := make(abi.Arguments, len(types))
	for i, typ := range types {
		at, err := abi.NewType(typ, "", nil)
		require.NoError(t, err)
		args[i] = abi.Argument{Type: at}
	}
	return args
}

func TestFindArtifact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contracts", "AccessManager.sol", "AccessManager.json")
	writeArtifact(t, path, "AccessManager", addressCtorABI, "0x6080604052")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "contracts", "AccessManager.sol", "AccessManager.dbg.json"), []byte(`{"buildInfo":"x"}`), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "build-info"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "build-info", "AccessManager.json"), []byte(`{}`), 0o644))

	a, err := FindArtifact(dir, "AccessManager")
	require.NoError(t, err)
	require.Equal(t, path, a.Path)
	require.Equal(t, "AccessManager", a.ContractName)
	require.Equal(t, "contracts/AccessManager.sol", a.SourceName)
	require.Equal(t, []byte{0x60, 0x80, 0x60, 0x40, 0x52}, a.Bytecode())
	require.NoError(t, a.CheckConstructor(mustArguments(t, "address")))

	// Bytecode hands out a copy.
	a.Bytecode()[0] = 0xff
	require.Equal(t, byte(0x60), a.Bytecode()[0])
}

func TestFindArtifactErrors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := FindArtifact(t.TempDir(), "CompliantERC20")
		require.ErrorIs(t, err, ErrArtifactNotFound)
	})

	t.Run("ambiguous", func(t *testing.T) {
		dir := t.TempDir()
		writeArtifact(t, filepath.Join(dir, "contracts", "a", "Token.sol", "Token.json"), "Token", `[]`, "0x00")
		writeArtifact(t, filepath.Join(dir, "contracts", "b", "Token.sol", "Token.json"), "Token", `[]`, "0x00")
		_, err := FindArtifact(dir, "Token")
		require.ErrorContains(t, err, "ambiguous artifact Token")
	})
}

func TestDecodeArtifact(t *testing.T) {
	t.Run("interface has no bytecode", func(t *testing.T) {
		_, err := DecodeArtifact([]byte(`{"contractName":"ISBT","abi":[],"bytecode":"0x","linkReferences":{}}`))
		require.ErrorContains(t, err, "no creation bytecode")
	})

	t.Run("unlinked libraries", func(t *testing.T) {
		_, err := DecodeArtifact([]byte(`{"contractName":"Lib","abi":[],"bytecode":"0x00","linkReferences":{"contracts/L.sol":{}}}`))
		require.ErrorContains(t, err, "library linking")
	})

	t.Run("bad bytecode", func(t *testing.T) {
		_, err := DecodeArtifact([]byte(`{"contractName":"X","abi":[],"bytecode":"6080"}`))
		require.Error(t, err)
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := DecodeArtifact([]byte(`{"abi":[],"bytecode":"0x00"}`))
		require.Error(t, err)
	})
}

func TestCheckConstructor(t *testing.T) {
	a, err := DecodeArtifact([]byte(`{"contractName":"AccessManager","abi":` + addressCtorABI + `,"bytecode":"0x00"}`))
	require.NoError(t, err)

	require.ErrorContains(t, a.CheckConstructor(mustArguments(t, "address", "address")), "takes 1 arguments")
	require.ErrorContains(t, a.CheckConstructor(mustArguments(t, "uint256")), "argument 0 is address")

	noCtor, err := DecodeArtifact([]byte(`{"contractName":"Plain","abi":[],"bytecode":"0x00"}`))
	require.NoError(t, err)
	require.NoError(t, noCtor.CheckConstructor(nil))
}
