package resilience

import (
	"sync"

	"github.com/nova-labs/jarviscore/tool"
)

// Strategy is the closed set of degradation strategies for a tool.
type Strategy string

const (
	StrategyFailFast Strategy = "FAIL_FAST"
	StrategyRetry    Strategy = "RETRY"
	StrategyFallback Strategy = "FALLBACK"
	StrategySkip     Strategy = "SKIP"
	StrategyPartial  Strategy = "PARTIAL"
)

// DegradationPolicy governs how a single tool's failures are handled
// (spec.md §4.9).
type DegradationPolicy struct {
	Strategy          Strategy
	FallbackTool      string
	MaxRetries        int
	RetryDelaySeconds int
	IsCritical        bool
}

// DefaultPolicyFor returns spec.md §4.9's default strategy by permission
// level: READ and NETWORK retry; WRITE/EXECUTE/ADMIN fail fast and are
// marked critical, so they can never be downgraded to SKIP.
func DefaultPolicyFor(level tool.PermissionLevel) DegradationPolicy {
	switch level {
	case tool.PermissionRead, tool.PermissionNetwork:
		return DegradationPolicy{Strategy: StrategyRetry, MaxRetries: 2, RetryDelaySeconds: 1}
	default:
		return DegradationPolicy{Strategy: StrategyFailFast, IsCritical: true}
	}
}

// PolicyRegistry holds a DegradationPolicy per tool name, falling back to
// DefaultPolicyFor(level) when none was explicitly set.
type PolicyRegistry struct {
	mu       sync.Mutex
	policies map[string]DegradationPolicy
}

// NewPolicyRegistry returns an empty PolicyRegistry.
func NewPolicyRegistry() *PolicyRegistry {
	return &PolicyRegistry{policies: make(map[string]DegradationPolicy)}
}

// Set overrides the policy for a specific tool name. A policy with
// Strategy SKIP is stored as FAIL_FAST for a critical level — spec.md §4.9:
// "Critical levels (WRITE/EXECUTE/ADMIN) may never be SKIPped."
func (r *PolicyRegistry) Set(toolName string, level tool.PermissionLevel, p DegradationPolicy) {
	if p.Strategy == StrategySkip && isCriticalLevel(level) {
		p.Strategy = StrategyFailFast
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[toolName] = p
}

// Get returns the policy for toolName, defaulting by level if unset.
func (r *PolicyRegistry) Get(toolName string, level tool.PermissionLevel) DegradationPolicy {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.policies[toolName]; ok {
		return p
	}
	return DefaultPolicyFor(level)
}

func isCriticalLevel(level tool.PermissionLevel) bool {
	switch level {
	case tool.PermissionWrite, tool.PermissionExecute, tool.PermissionAdmin:
		return true
	default:
		return false
	}
}

// FailureBudget tracks per-turn failure counts for the dependency-aware
// abort rule (spec.md §4.9).
type FailureBudget struct {
	mu                     sync.Mutex
	maxFailuresPerTurn     int
	maxConsecutiveFailures int
	failures               int
	consecutive            int
	skipped                map[string]bool
}

const (
	defaultMaxFailuresPerTurn     = 3
	defaultMaxConsecutiveFailures = 2
)

// NewFailureBudget returns a FailureBudget using spec.md §4.9's defaults.
func NewFailureBudget() *FailureBudget {
	return &FailureBudget{
		maxFailuresPerTurn:     defaultMaxFailuresPerTurn,
		maxConsecutiveFailures: defaultMaxConsecutiveFailures,
		skipped:                make(map[string]bool),
	}
}

// RecordFailure increments both the per-turn and consecutive failure
// counts.
func (b *FailureBudget) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.consecutive++
}

// RecordSuccess resets the consecutive-failure count; the per-turn total
// is never reset mid-turn.
func (b *FailureBudget) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutive = 0
}

// RecordSkip marks toolName as having been skipped this turn, for
// IsDependencySkipped to consult.
func (b *FailureBudget) RecordSkip(toolName string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.skipped[toolName] = true
}

// ShouldAbort reports whether either budget has been exceeded.
func (b *FailureBudget) ShouldAbort() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures >= b.maxFailuresPerTurn || b.consecutive >= b.maxConsecutiveFailures
}

// IsDependencySkipped reports whether any of deps was skipped this turn.
// The orchestrator must treat a true result as a mandatory abort of the
// dependent step rather than continuing with missing input (spec.md
// §4.9's dependency-aware abort rule).
func (b *FailureBudget) IsDependencySkipped(deps []string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range deps {
		if b.skipped[d] {
			return true
		}
	}
	return false
}
