package publish

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var ErrArtifactNotFound = errors.New("artifact not found")

// Artifact is a Hardhat compilation artifact (hh-sol-artifact-1).
type Artifact struct {
	Path         string
	ContractName string
	SourceName   string
	ABI          abi.ABI
	bytecode     []byte
}

type artifactJSON struct {
	ContractName   string                     `json:"contractName"`
	SourceName     string                     `json:"sourceName"`
	ABI            json.RawMessage            `json:"abi"`
	Bytecode       string                     `json:"bytecode"`
	LinkReferences map[string]json.RawMessage `json:"linkReferences"`
}

func DecodeArtifact(data []byte) (*Artifact, error) {
	var raw artifactJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if raw.ContractName == "" {
		return nil, errors.New("decode artifact: missing contractName")
	}

	parsed, err := abi.JSON(bytes.NewReader(raw.ABI))
	if err != nil {
		return nil, fmt.Errorf("decode %s abi: %w", raw.ContractName, err)
	}

	if len(raw.LinkReferences) > 0 {
		return nil, fmt.Errorf("%s bytecode needs library linking", raw.ContractName)
	}
	code, err := hexutil.Decode(raw.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("decode %s bytecode: %w", raw.ContractName, err)
	}
	if len(code) == 0 {
		// interfaces and abstract contracts compile to "0x"
		return nil, fmt.Errorf("%s has no creation bytecode", raw.ContractName)
	}

	return &Artifact{
		ContractName: raw.ContractName,
		SourceName:   raw.SourceName,
		ABI:          parsed,
		bytecode:     code,
	}, nil
}

func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	a, err := DecodeArtifact(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	a.Path = path
	return a, nil
}

// FindArtifact walks a Hardhat artifacts directory for <name>.json. Debug
// files and build-info are skipped. More than one match is an error since
// the contract name alone would be ambiguous.
func FindArtifact(dir, name string) (*Artifact, error) {
	want := name + ".json"
	var matches []string

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if entry.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.Name() == want && !strings.HasSuffix(entry.Name(), ".dbg.json") {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan artifacts %s: %w", dir, err)
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s in %s", ErrArtifactNotFound, name, dir)
	case 1:
		return LoadArtifact(matches[0])
	default:
		return nil, fmt.Errorf("ambiguous artifact %s: %s", name, strings.Join(matches, ", "))
	}
}

func (a *Artifact) Bytecode() []byte {
	return bytes.Clone(a.bytecode)
}

// CheckConstructor fails when the artifact's constructor inputs do not have
// the given types, in order.
func (a *Artifact) CheckConstructor(want abi.Arguments) error {
	got := a.ABI.Constructor.Inputs
	if len(got) != len(want) {
		return fmt.Errorf("%s constructor takes %d arguments, binding has %d", a.ContractName, len(got), len(want))
	}
	for i := range got {
		if got[i].Type.String() != want[i].Type.String() {
			return fmt.Errorf("%s constructor argument %d is %s, binding has %s", a.ContractName, i, got[i].Type, want[i].Type)
		}
	}
	return nil
}
