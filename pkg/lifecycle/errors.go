package lifecycle

import "github.com/samber/oops"

// Error codes attached to rejected outcomes and returned errors.
const (
	// CodeUnknownModule marks a WaitFor against a name that was never
	// registered, or that has been disconnected.
	CodeUnknownModule = "unknown_module"

	// CodeStageUnavailable marks a WaitFor against a stage with no recorded
	// outcome. Never executed and never defined surface identically.
	CodeStageUnavailable = "stage_unavailable"

	// CodeStageFailed marks an outcome rejected because the stage thunk failed.
	CodeStageFailed = "stage_failed"

	// CodeStageOrder marks an attempt to invoke a later stage while an earlier
	// stage of the same module is still unsettled.
	CodeStageOrder = "stage_order"

	// CodeResolution marks a module that could not be resolved at all.
	CodeResolution = "resolution_failed"
)

// ErrorCode extracts the oops error code from err, or "" if none is attached.
func ErrorCode(err error) string {
	if o, ok := oops.AsOops(err); ok {
		code, _ := o.Code().(string)
		return code
	}
	return ""
}
