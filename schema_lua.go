package dialogsdk

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// ──────────────────────────────────────────────
// Lua predicates — slot dependency rules from business configuration
// ──────────────────────────────────────────────
//
// Slot applicability rules often live in business configuration rather than
// code (which slots a cash-advance intent collects differs per deployment).
// LuaPredicate compiles a Lua expression over a read-only `filled` table:
//
//	pred, err := dialogsdk.LuaPredicate(`filled.payment_method == "upi"`)
//
// Syntax errors surface at registration time; runtime errors evaluate false.

// LuaPredicate compiles expr into a Predicate. The expression sees a global
// table `filled` mapping slot IDs to their normalized string values.
func LuaPredicate(expr string) (Predicate, error) {
	chunk := "return (" + expr + ")"
	proto, err := compileLuaChunk(chunk)
	if err != nil {
		return nil, fmt.Errorf("compile predicate %q: %w", expr, err)
	}

	return func(filled map[string]string) bool {
		L := lua.NewState()
		defer L.Close()

		tbl := L.NewTable()
		for k, v := range filled {
			L.SetField(tbl, k, lua.LString(v))
		}
		L.SetGlobal("filled", tbl)

		L.Push(L.NewFunctionFromProto(proto))
		if err := L.PCall(0, 1, nil); err != nil {
			componentLogger("schema").Warn().Str("expr", expr).Err(err).Msg("predicate evaluation failed")
			return false
		}
		return lua.LVAsBool(L.Get(-1))
	}, nil
}

// MustLuaPredicate is LuaPredicate that panics on compile error. Intended for
// statically known expressions in schema declarations.
func MustLuaPredicate(expr string) Predicate {
	pred, err := LuaPredicate(expr)
	if err != nil {
		panic(err)
	}
	return pred
}

func compileLuaChunk(chunk string) (*lua.FunctionProto, error) {
	parsed, err := parse.Parse(strings.NewReader(chunk), "predicate")
	if err != nil {
		return nil, err
	}
	return lua.Compile(parsed, "predicate")
}
