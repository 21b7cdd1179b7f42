package streamsvc

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
)

// celFilter wraps a compiled CEL program shared by all deliveries of one
// subscription. When disabled, Eval always returns true.
type celFilter struct {
	prog    cel.Program
	enabled bool
}

func newCELFilter(expr string) (celFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return celFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("event_id", cel.StringType),
		cel.Variable("event_type", cel.StringType),
		cel.Variable("token", cel.IntType),
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("size", cel.IntType),
		cel.Variable("text", cel.StringType),
		// Parsed JSON payload (map/list/values) for field filtering
		cel.Variable("json", cel.DynType),
		cel.Variable("metadata", cel.MapType(cel.StringType, cel.StringType)),
		// Current time in ms for windowed filters
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return celFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return celFilter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return celFilter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return celFilter{}, err
	}
	return celFilter{prog: prog, enabled: true}, nil
}

// Eval evaluates the compiled expression against one delivered item. When
// disabled, returns true. Evaluation errors drop the item.
func (f celFilter) Eval(it SubscribeItem) bool {
	if !f.enabled {
		return true
	}
	var jsonObj any
	_ = json.Unmarshal(it.Payload, &jsonObj)
	metadata := it.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	out, _, err := f.prog.Eval(map[string]any{
		"event_id":   it.ID,
		"event_type": it.Type,
		"token":      int64(it.Token),
		"ts_ms":      it.TsMs,
		"size":       int64(len(it.Payload)),
		"text":       string(it.Payload),
		"json":       jsonObj,
		"metadata":   metadata,
		"now_ms":     time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
