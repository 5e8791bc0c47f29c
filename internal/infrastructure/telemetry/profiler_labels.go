package telemetry

import (
	"context"
	"slices"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys
const (
	ProfilingLabelOperation = "operation"
	ProfilingLabelValidator = "validator"
	ProfilingLabelRoute     = "route"
	ProfilingLabelMethod    = "method"
	ProfilingLabelOrg       = "organization"
)

// MaxLabelValueLength caps label values
const MaxLabelValueLength = 128

// perRequestLabels would give every profile its own series and are dropped
var perRequestLabels = []string{
	"owner_id", "user_id", "request_id", "trace_id", "span_id", "account_id", "transaction_id",
}

// WithProfilingLabels runs fn under pprof labels that Pyroscope attaches to
// the samples taken while fn runs.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// ProfileValidator runs one integrity validator under a validator label.
// It has the shape of ledger.ValidatorRunner.
func ProfileValidator(ctx context.Context, name string, run func(context.Context)) {
	WithProfilingLabels(ctx, map[string]string{
		ProfilingLabelOperation: "integrity_check",
		ProfilingLabelValidator: name,
	}, run)
}

// sanitizeLabels returns key, value pairs ordered by key. Keys become
// snake_case; empty values and per-request keys are dropped; long values are cut.
func sanitizeLabels(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	clean := make(map[string]string, len(labels))
	for k, v := range labels {
		key := labelKey(k)
		if key == "" || v == "" || slices.Contains(perRequestLabels, key) {
			continue
		}
		if len(v) > MaxLabelValueLength {
			v = v[:MaxLabelValueLength]
		}
		keys = append(keys, key)
		clean[key] = v
	}
	slices.Sort(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, clean[k])
	}
	return pairs
}

func labelKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r == ' ' || r == '-':
			return '_'
		}
		return -1
	}, key)
}
