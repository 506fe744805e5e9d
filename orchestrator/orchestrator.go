// Package orchestrator wires every Core layer together and exposes the
// front-end contract (spec.md §6): process_text_directly, start_listening,
// stop_listening, get_status, shutdown, and the on_transcription/
// on_command/on_result callbacks. It owns every shared registry
// (spec.md §3 "Ownership") for the process lifetime.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nova-labs/jarviscore/audit"
	"github.com/nova-labs/jarviscore/authority"
	"github.com/nova-labs/jarviscore/confirmation"
	"github.com/nova-labs/jarviscore/errs"
	"github.com/nova-labs/jarviscore/executor"
	"github.com/nova-labs/jarviscore/logging"
	"github.com/nova-labs/jarviscore/memory"
	"github.com/nova-labs/jarviscore/planner"
	"github.com/nova-labs/jarviscore/resilience"
	"github.com/nova-labs/jarviscore/scheduler"
	"github.com/nova-labs/jarviscore/statemachine"
	"github.com/nova-labs/jarviscore/storage"
	"github.com/nova-labs/jarviscore/tool"
	"github.com/nova-labs/jarviscore/turnctx"
)

// Planner is the narrow interface the orchestrator needs from an external
// planner collaborator (satisfied by *llm.Client, or a stub in tests).
type Planner interface {
	Plan(ctx context.Context, userText, contextText string) ([]byte, error)
}

// Callbacks are the front-end's event hooks (spec.md §6).
type Callbacks struct {
	OnTranscription func(text string)
	OnCommand       func(plan *planner.Plan)
	OnResult        func(result string)
}

// Status is get_status()'s return shape.
type Status struct {
	State           statemachine.State
	ConversationID  string
	Listening       bool
}

// Orchestrator owns every shared collaborator and sequences one turn at a
// time through them (spec.md §2's control flow).
type Orchestrator struct {
	mu sync.Mutex

	machine       *statemachine.Machine
	gate          *planner.Gate
	registry      *tool.Registry
	authority     *authority.Authority
	confirmations *confirmation.Store
	breakers      *resilience.Registry
	policies      *resilience.PolicyRegistry
	health        *resilience.HealthMonitor
	sandbox       *executor.Sandbox
	auditLog      *audit.Log
	governor      *memory.Governor
	db            *storage.DB
	planner       Planner
	logger        logging.Logger

	conversationID string
	listening      bool
	callbacks      Callbacks
}

// Deps bundles every collaborator New needs, so construction order lives
// in cmd/jarvisd/main.go rather than being re-derived here.
type Deps struct {
	Registry      *tool.Registry
	Authority     *authority.Authority
	Confirmations *confirmation.Store
	Breakers      *resilience.Registry
	Policies      *resilience.PolicyRegistry
	Health        *resilience.HealthMonitor
	Sandbox       *executor.Sandbox
	AuditLog      *audit.Log
	Governor      *memory.Governor
	DB            *storage.DB
	Planner       Planner
	Logger        logging.Logger
}

// New builds an Orchestrator from deps, starting a fresh conversation.
func New(deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	o := &Orchestrator{
		machine:       statemachine.New(logger),
		gate:          planner.NewGate(func(name string) bool { _, ok := deps.Registry.Get(name); return ok }, logger),
		registry:      deps.Registry,
		authority:     deps.Authority,
		confirmations: deps.Confirmations,
		breakers:      deps.Breakers,
		policies:      deps.Policies,
		health:        deps.Health,
		sandbox:       deps.Sandbox,
		auditLog:      deps.AuditLog,
		governor:      deps.Governor,
		db:            deps.DB,
		planner:       deps.Planner,
		logger:        logger,
	}

	o.conversationID = turnctx.New()
	if deps.DB != nil {
		if err := deps.DB.CreateConversation(context.Background(), o.conversationID, nil); err != nil {
			logger.Error("orchestrator: create conversation failed", map[string]interface{}{"error": err.Error()})
		}
	}

	return o
}

// OnCallbacks wires the front-end's event hooks.
func (o *Orchestrator) OnCallbacks(cb Callbacks) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.callbacks = cb
}

// auditEvent adapts audit.Log.Append to the narrower AuditFunc signatures
// authority/executor/memory depend on.
func (o *Orchestrator) auditEvent(ctx context.Context, turnID, eventType, action, target string, details map[string]interface{}) {
	if o.auditLog == nil {
		return
	}
	if _, err := o.auditLog.Append(ctx, audit.Entry{
		TurnID:    turnID,
		EventType: eventType,
		Actor:     "core",
		Action:    action,
		Target:    target,
		Details:   details,
	}); err != nil {
		o.logger.ErrorWithContext(ctx, "orchestrator: audit append failed", map[string]interface{}{"error": err.Error()})
	}
}

// ProcessTextDirectly runs one full turn for typed input (spec.md §6
// process_text_directly). Returns nil if the plan produced no direct
// response text, whatever the outcome of its tool calls.
func (o *Orchestrator) ProcessTextDirectly(ctx context.Context, text string) (*string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	turnID := turnctx.New()
	ctx = turnctx.With(ctx, turnID)

	o.auditEvent(ctx, turnID, "TURN_START", "start", "", map[string]interface{}{"text": text})
	o.persistTurn(ctx, turnID, storage.RoleUser, text)

	response, err := o.runTurn(ctx, turnID, text)

	if response != nil {
		o.persistTurn(ctx, turnID, storage.RoleAssistant, *response)
	}
	o.auditEvent(ctx, turnID, "TURN_END", "end", "", nil)

	return response, err
}

// persistTurn appends a turn row, redacting sensitive content first
// (spec.md §4.11). Best-effort: a persistence failure is logged, not
// propagated, since it must never block the response the user is waiting
// on.
func (o *Orchestrator) persistTurn(ctx context.Context, turnID string, role storage.TurnRole, content string) {
	if o.db == nil {
		return
	}
	if o.governor != nil {
		content, _ = o.governor.Redact(ctx, content, turnID)
	}
	err := o.db.AppendTurn(ctx, storage.Turn{
		ConversationID: o.conversationID,
		TurnID:         turnID,
		Role:           role,
		Content:        content,
		Timestamp:      time.Now(),
	})
	if err != nil {
		o.logger.ErrorWithContext(ctx, "orchestrator: persist turn failed", map[string]interface{}{"error": err.Error()})
	}
}

// runTurn drives one turn through State Machine -> Planner Gate -> per-call
// Authority/Confirmation/Breaker/Executor/Audit -> Degradation, exactly as
// spec.md §2 describes.
func (o *Orchestrator) runTurn(ctx context.Context, turnID, text string) (*string, error) {
	if _, err := o.machine.Transition(statemachine.StatePlanning, "user text received"); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	raw, err := o.planner.Plan(ctx, text, "")
	if err != nil {
		o.machine.Transition(statemachine.StateError, "planner call failed")
		o.machine.Reset("recover after planner failure")
		return nil, errs.New("orchestrator.runTurn", errs.CategoryLLMFailure, "planner call failed", err)
	}

	plan := o.gate.ParseAndValidate(raw)
	o.auditEvent(ctx, turnID, "PLAN_CREATED", string(plan.Status), "", map[string]interface{}{
		"tool_count": len(plan.ToolCalls),
	})
	if o.callbacks.OnCommand != nil {
		o.callbacks.OnCommand(plan)
	}

	if !plan.IsValid() {
		o.machine.Transition(statemachine.StateError, "invalid plan: "+string(plan.Status))
		o.machine.Reset("recover after invalid plan")
		return nil, fmt.Errorf("orchestrator: plan invalid: %s", plan.Status)
	}

	if len(plan.ToolCalls) == 0 {
		return o.finishWithResponse(turnID, plan.ResponseText)
	}

	if _, err := o.machine.Transition(statemachine.StateExecuting, "dispatching tool calls"); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	budget := resilience.NewFailureBudget()
	exec := o.newExecutor()

	for _, call := range plan.ToolCalls {
		if budget.ShouldAbort() {
			o.machine.Transition(statemachine.StateError, "failure budget exhausted")
			o.machine.Reset("recover after abort")
			return nil, fmt.Errorf("orchestrator: aborted turn %s: failure budget exhausted", turnID)
		}

		level := tool.PermissionRead
		if t, ok := o.registry.Get(call.Tool); ok {
			level = t.PermissionLevel
		}
		policy := o.policies.Get(call.Tool, level)

		if policy.Strategy != resilience.StrategySkip && budget.IsDependencySkipped([]string{call.Tool}) {
			// An earlier call to the same tool name was skipped; that skip
			// is treated as a skipped dependency of this call, so the whole
			// turn aborts (spec.md §4.9's dependency-aware abort rule).
			o.machine.Transition(statemachine.StateError, "dependency skipped")
			o.machine.Reset("recover after dependency skip")
			return nil, fmt.Errorf("orchestrator: aborted turn %s: dependency %s was skipped", turnID, call.Tool)
		}

		result := o.dispatchCall(ctx, exec, call, turnID, policy)

		switch {
		case result.Status == executor.StatusSuccess:
			budget.RecordSuccess()
		case policy.Strategy == resilience.StrategySkip:
			budget.RecordSkip(call.Tool)
		default:
			budget.RecordFailure()
		}

		if result.Status != executor.StatusSuccess {
			o.logger.WarnWithContext(ctx, "orchestrator: tool call did not succeed", map[string]interface{}{
				"tool":   call.Tool,
				"status": string(result.Status),
			})
		}
	}

	return o.finishWithResponse(turnID, plan.ResponseText)
}

// dispatchCall runs one tool call under its DegradationPolicy's strategy.
// RETRY re-invokes Execute up to MaxRetries times; FALLBACK substitutes
// FallbackTool on failure; SKIP and PARTIAL return the failing result
// as-is and let the caller's budget bookkeeping decide what happens next;
// FAIL_FAST (the default for WRITE/EXECUTE/ADMIN) also just returns the
// result, since the abort itself is driven by FailureBudget.ShouldAbort
// on the next loop iteration.
func (o *Orchestrator) dispatchCall(ctx context.Context, exec *executor.Executor, call planner.ToolCallRequest, turnID string, policy resilience.DegradationPolicy) executor.ExecutionResult {
	result := exec.Execute(ctx, call.Tool, call.Arguments, turnID, nil)
	if result.Status == executor.StatusSuccess {
		return result
	}

	switch policy.Strategy {
	case resilience.StrategyRetry:
		delay := time.Duration(policy.RetryDelaySeconds) * time.Second
		for attempt := 0; attempt < policy.MaxRetries && result.Status != executor.StatusSuccess; attempt++ {
			select {
			case <-ctx.Done():
				return result
			case <-time.After(delay):
			}
			result = exec.Execute(ctx, call.Tool, call.Arguments, turnID, nil)
		}
		return result
	case resilience.StrategyFallback:
		if policy.FallbackTool == "" {
			return result
		}
		return exec.Execute(ctx, policy.FallbackTool, call.Arguments, turnID, nil)
	default: // FAIL_FAST, SKIP, PARTIAL
		return result
	}
}

func (o *Orchestrator) finishWithResponse(turnID, responseText string) (*string, error) {
	if _, err := o.machine.Transition(statemachine.StateResponding, "turn complete"); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	if o.callbacks.OnResult != nil && responseText != "" {
		o.callbacks.OnResult(responseText)
	}
	if _, err := o.machine.Transition(statemachine.StateIdle, "response delivered"); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	if responseText == "" {
		return nil, nil
	}
	return &responseText, nil
}

func (o *Orchestrator) newExecutor() *executor.Executor {
	return executor.New(o.registry, o.authority, o.confirmations, o.breakers, o.health, o.sandbox, o.auditEvent, o.logger)
}

// StartListening transitions into LISTENING — actual audio capture is an
// external collaborator (spec.md §1 Out of scope); this only sequences
// the state machine and flags listening for GetStatus.
func (o *Orchestrator) StartListening() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, err := o.machine.Transition(statemachine.StateListening, "start_listening called"); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	o.listening = true
	return nil
}

// StopListening transitions back to IDLE and returns nil — a real
// transcription result arrives via OnTranscription from the external STT
// collaborator, not as this call's return value.
func (o *Orchestrator) StopListening() (*string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, err := o.machine.Transition(statemachine.StateIdle, "stop_listening called"); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	o.listening = false
	return nil, nil
}

// GetStatus reports the orchestrator's current state.
func (o *Orchestrator) GetStatus() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{
		State:          o.machine.Current(),
		ConversationID: o.conversationID,
		Listening:      o.listening,
	}
}

// Shutdown releases the persistence handle. The orchestrator does not own
// the scheduler's background loop — callers that started one with
// scheduler.Run must Stop it themselves before calling Shutdown.
func (o *Orchestrator) Shutdown() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.db == nil {
		return nil
	}
	return o.db.Close()
}

// DispatchScheduled is the scheduler.Dispatch function wiring a
// ScheduledTask's action text back through ProcessTextDirectly exactly
// like user-typed input (spec.md §4.13).
func (o *Orchestrator) DispatchScheduled(ctx context.Context, actionText string) error {
	_, err := o.ProcessTextDirectly(ctx, actionText)
	return err
}

var _ scheduler.Dispatch = (*Orchestrator)(nil).DispatchScheduled
