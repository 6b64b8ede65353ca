package contract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// BuiltinKind describes a contract ABI embedded in the binary. New built-ins
// register themselves via init() in their own <name>_abi.go file.
type BuiltinKind struct {
	ID          string // machine key referenced by network.Config.ABI
	Name        string // human label
	Description string
	ABI         abi.ABI
}

var builtinRegistry = map[string]BuiltinKind{}

// RegisterBuiltin parses abiJSON and adds it to the registry. It panics on a
// malformed ABI since built-ins are compiled in.
func RegisterBuiltin(id, name, description, abiJSON string) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		panic(fmt.Sprintf("contract: builtin %q has invalid ABI: %v", id, err))
	}
	builtinRegistry[id] = BuiltinKind{
		ID:          id,
		Name:        name,
		Description: description,
		ABI:         parsed,
	}
}

// GetBuiltin returns a built-in by ID. ok is false if not found.
func GetBuiltin(id string) (BuiltinKind, bool) {
	b, ok := builtinRegistry[id]
	return b, ok
}

// AllBuiltins returns all registered built-ins sorted by ID.
func AllBuiltins() []BuiltinKind {
	out := make([]BuiltinKind, 0, len(builtinRegistry))
	for _, b := range builtinRegistry {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
