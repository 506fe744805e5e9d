package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/nova-labs/jarviscore/authority"
	"github.com/nova-labs/jarviscore/confirmation"
	"github.com/nova-labs/jarviscore/logging"
	"github.com/nova-labs/jarviscore/resilience"
	"github.com/nova-labs/jarviscore/tool"
)

// Status is the closed set of execution outcomes (spec.md §4.7).
type Status string

const (
	StatusSuccess              Status = "SUCCESS"
	StatusUnknownTool          Status = "UNKNOWN_TOOL"
	StatusValidationError      Status = "VALIDATION_ERROR"
	StatusPermissionDenied     Status = "PERMISSION_DENIED"
	StatusConfirmationRequired Status = "CONFIRMATION_REQUIRED"
	StatusConfirmationDenied   Status = "CONFIRMATION_DENIED"
	StatusConfirmationTimeout  Status = "CONFIRMATION_TIMEOUT"
	StatusTimeout              Status = "TIMEOUT"
	StatusExecutionError       Status = "EXECUTION_ERROR"
)

// ExecutionResult is Execute's return value.
type ExecutionResult struct {
	Status               Status
	Result               interface{}
	Error                string
	PendingConfirmation  *confirmation.PendingConfirmation
	RemainingOpenSeconds float64
}

// AuditFunc records an audit entry keyed by turn id.
type AuditFunc func(ctx context.Context, turnID, eventType, action, target string, details map[string]interface{})

// Executor is the single entry point for tool effects (spec.md §4.7).
type Executor struct {
	registry      *tool.Registry
	authority     *authority.Authority
	confirmations *confirmation.Store
	breakers      *resilience.Registry
	health        *resilience.HealthMonitor
	sandbox       *Sandbox
	audit         AuditFunc
	logger        logging.Logger
}

// New builds an Executor wiring every collaborator spec.md §4.7's sequence
// touches. sandbox may be nil, in which case no filesystem/app gate runs.
func New(
	registry *tool.Registry,
	auth *authority.Authority,
	confirmations *confirmation.Store,
	breakers *resilience.Registry,
	health *resilience.HealthMonitor,
	sandbox *Sandbox,
	audit AuditFunc,
	logger logging.Logger,
) *Executor {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if audit == nil {
		audit = func(context.Context, string, string, string, string, map[string]interface{}) {}
	}
	return &Executor{
		registry:      registry,
		authority:     auth,
		confirmations: confirmations,
		breakers:      breakers,
		health:        health,
		sandbox:       sandbox,
		audit:         audit,
		logger:        logger,
	}
}

// Execute runs spec.md §4.7's mandatory 8-step sequence for one tool call.
// approveFn, if non-nil, is used for synchronous confirmation resolution;
// nil means the caller wants CONFIRMATION_REQUIRED returned for
// asynchronous resolution via a confirmation.Store.ConfirmPending call.
func (e *Executor) Execute(ctx context.Context, toolName string, args map[string]interface{}, turnID string, approveFn confirmation.ApproveFunc) ExecutionResult {
	// 1. Resolve tool.
	t, ok := e.registry.Get(toolName)
	if !ok {
		return ExecutionResult{Status: StatusUnknownTool, Error: fmt.Sprintf("unknown tool %q", toolName)}
	}

	// 2. Validate args via tool's schema.
	withDefaults := t.ApplyDefaults(args)
	if ok, err := e.registry.ValidateCall(toolName, withDefaults); !ok {
		return ExecutionResult{Status: StatusValidationError, Error: err.Error()}
	}

	// 2a. Sandbox gate, enforced here so no tool implementation can opt out
	// (spec.md §4.7).
	if e.sandbox != nil {
		if err := e.checkSandbox(withDefaults); err != nil {
			return ExecutionResult{Status: StatusPermissionDenied, Error: err.Error()}
		}
	}

	// 3. Authority check with the tool's permission level.
	decision := e.authority.Check(ctx, toolName, t.PermissionLevel, turnID)
	switch decision.Status {
	case authority.DeniedNoGrant, authority.DeniedExpired, authority.DeniedRevoked, authority.DeniedLevelMismatch:
		return ExecutionResult{Status: StatusPermissionDenied, Error: string(decision.Status)}
	case authority.RequiresConfirm:
		// 4. Confirmation workflow.
		result, handled := e.confirm(ctx, t, withDefaults, turnID, approveFn)
		if handled {
			return result
		}
		// approved synchronously: fall through to execution.
	}

	return e.runWithBreaker(ctx, t, withDefaults, turnID)
}

// confirm runs spec.md §4.6's confirmation workflow. handled is true when
// the caller should return result immediately (denied, timeout, or
// asynchronous pending); false means approval succeeded synchronously and
// the caller should proceed to execution.
func (e *Executor) confirm(ctx context.Context, t *tool.Tool, args map[string]interface{}, turnID string, approveFn confirmation.ApproveFunc) (ExecutionResult, bool) {
	pending, outcome := e.confirmations.Request(ctx, turnID, t.Name, args, approveFn)

	switch outcome {
	case confirmation.OutcomePending:
		return ExecutionResult{Status: StatusConfirmationRequired, PendingConfirmation: pending}, true
	case confirmation.OutcomeDenied:
		return ExecutionResult{Status: StatusConfirmationDenied}, true
	case confirmation.OutcomeTimeout:
		return ExecutionResult{Status: StatusConfirmationTimeout}, true
	case confirmation.OutcomeApproved:
		// Approval grants a session-scoped permission for this specific
		// tool+level, then execution proceeds (spec.md §4.6).
		e.authority.Grant(ctx, turnID, t.Name, t.PermissionLevel, nil, false, authority.SourceSession)
		return ExecutionResult{}, false
	default:
		return ExecutionResult{Status: StatusExecutionError, Error: "confirmation: unrecognized outcome"}, true
	}
}

// checkSandbox applies the shared filesystem/app rules to whichever
// conventionally-named arguments a call carries, regardless of what the
// tool's own Exec does with them.
func (e *Executor) checkSandbox(args map[string]interface{}) error {
	if name, ok := args["app_name"].(string); ok && name != "" {
		if err := e.sandbox.CheckApp(name); err != nil {
			return err
		}
	}
	for _, key := range []string{"path", "file_path"} {
		if p, ok := args[key].(string); ok && p != "" {
			if err := e.sandbox.CheckPath(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// runWithBreaker implements steps 5-8: circuit breaker gate, timeout-bound
// execution, error classification, and the TOOL_EXECUTE audit entry.
func (e *Executor) runWithBreaker(ctx context.Context, t *tool.Tool, args map[string]interface{}, turnID string) ExecutionResult {
	breaker := e.breakers.Get(t.Name)

	// 5. Circuit-breaker call-gate.
	allowed, remaining := breaker.Allow()
	if !allowed {
		e.audit(ctx, turnID, "TOOL_EXECUTE", "error", t.Name, map[string]interface{}{
			"reason": "circuit_open",
		})
		return ExecutionResult{Status: StatusExecutionError, Error: "circuit breaker open", RemainingOpenSeconds: remaining.Seconds()}
	}

	// 6. Run on a worker with a hard wall-clock timeout.
	result, err := e.runWithTimeout(ctx, t, args)

	if err != nil {
		breaker.RecordFailure()
		e.health.RecordFailure(t.Name)

		if err == context.DeadlineExceeded {
			e.audit(ctx, turnID, "TOOL_EXECUTE", "timeout", t.Name, nil)
			return ExecutionResult{Status: StatusTimeout, Error: "tool execution timed out"}
		}

		// 7. Classify the error.
		classified := resilience.Classify("executor.Execute", t.Name, err)
		e.audit(ctx, turnID, "TOOL_EXECUTE", "error", t.Name, map[string]interface{}{
			"category": string(classified.Category),
			"message":  classified.Message,
		})
		return ExecutionResult{Status: StatusExecutionError, Error: classified.Error()}
	}

	breaker.RecordSuccess()
	e.health.RecordSuccess(t.Name)

	// 8. Emit TOOL_EXECUTE audit entry.
	e.audit(ctx, turnID, "TOOL_EXECUTE", "success", t.Name, nil)

	return ExecutionResult{Status: StatusSuccess, Result: result}
}

// runWithTimeout runs t.Exec on its own goroutine, enforcing
// t.TimeoutSeconds as a hard wall-clock bound (spec.md §4.7 step 6). A
// timed-out executor goroutine is abandoned, not killed — Go has no
// mechanism to forcibly stop a running goroutine, and t.Exec receives no
// context, so a timed-out call keeps running until it returns on its own.
func (e *Executor) runWithTimeout(ctx context.Context, t *tool.Tool, args map[string]interface{}) (interface{}, error) {
	timeout := time.Duration(t.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	type outcome struct {
		result interface{}
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := t.Exec(args)
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-time.After(timeout):
		return nil, context.DeadlineExceeded
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
