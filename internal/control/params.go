package control

import "github.com/ocs-tools/ocsdeck/internal/ocs"

// NestParams assembles a composite parameter set: the scalar fields
// edited independently in the UI are wrapped into a single nested
// object under wrap, alongside any top-level extras. Scan operations
// use this to build their coordinate block immediately before
// dispatch.
//
// The result is a fresh map; nothing persisted is touched until the
// dispatch succeeds and the controller commits it.
func NestParams(wrap string, fields map[string]any, extra ocs.Params) ocs.Params {
	nested := make(map[string]any, len(fields))
	for k, v := range fields {
		nested[k] = v
	}
	out := make(ocs.Params, len(extra)+1)
	for k, v := range extra {
		out[k] = v
	}
	out[wrap] = nested
	return out
}
