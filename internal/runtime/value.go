package runtime

import "github.com/queryscript/qs/internal/program"

// FnValue is the closure value produced for an ExprFn node (spec §4.I
// "Fn → construct a closure value capturing the current folder as
// ctx_folder"). Def.InnerSchema *is* the captured folder: it already
// carries a ParentScope link back to the schema the function was
// defined in, so no separate folder handle needs to be stored here.
type FnValue struct {
	Def *program.FnExpr
}
