// Command jarvisd is the orchestration core's process entrypoint: it loads
// configuration, wires every Core layer, and runs a simple stdin/stdout
// text front-end over Orchestrator.ProcessTextDirectly. Voice capture,
// STT/TTS, and richer front-ends are external collaborators (spec.md §1)
// and are not implemented here.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nova-labs/jarviscore/audit"
	"github.com/nova-labs/jarviscore/authority"
	"github.com/nova-labs/jarviscore/builtintools"
	"github.com/nova-labs/jarviscore/config"
	"github.com/nova-labs/jarviscore/confirmation"
	"github.com/nova-labs/jarviscore/executor"
	"github.com/nova-labs/jarviscore/llm"
	"github.com/nova-labs/jarviscore/logging"
	"github.com/nova-labs/jarviscore/memory"
	"github.com/nova-labs/jarviscore/orchestrator"
	"github.com/nova-labs/jarviscore/resilience"
	"github.com/nova-labs/jarviscore/scheduler"
	"github.com/nova-labs/jarviscore/storage"
	"github.com/nova-labs/jarviscore/tool"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "jarvisd:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := logging.NewJSONLogger()

	cfg, err := config.Load(os.Getenv("JARVIS_CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	permCfg, err := config.LoadPermissionConfig(os.Getenv("JARVIS_PERMISSIONS_PATH"))
	if err != nil {
		return fmt.Errorf("load permission config: %w", err)
	}

	// Startup invariant: a legacy JSON task file is fatal (spec.md §6, §7).
	if err := scheduler.RefuseLegacyJSONLoader("tasks.json"); err != nil {
		return err
	}

	db, err := storage.Open(ctx, storage.Config{
		Path:             cfg.Storage.Path,
		MaxTurnsPerConv:  cfg.Storage.MaxTurnsPerConv,
		MaxConversations: cfg.Storage.MaxConversations,
	}, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	auditLog := audit.New(db, audit.LoadKey(), logger)

	registry := tool.NewRegistry()
	sandbox := executor.NewSandbox(cfg.Security.AllowedApps, nil, 10*1024*1024)
	if err := builtintools.Register(registry); err != nil {
		return fmt.Errorf("register built-in tools: %w", err)
	}

	defaultGrants := make([]*authority.Grant, 0, len(permCfg.DefaultGrants))
	for _, g := range permCfg.DefaultGrants {
		defaultGrants = append(defaultGrants, &authority.Grant{
			Target: g.Target,
			Level:  tool.PermissionLevel(g.Level),
			Source: authority.SourceDefault,
		})
	}
	confirmRequired := make([]tool.PermissionLevel, 0, len(permCfg.RequiresConfirmation))
	for _, l := range permCfg.RequiresConfirmation {
		confirmRequired = append(confirmRequired, tool.PermissionLevel(l))
	}

	// authority's AuditFunc passes its event type (AUTHORITY_CHECK,
	// GRANT_CREATED, GRANT_REVOKED) in the action slot; use it directly as
	// the audit entry's event type and action.
	auth := authority.New(defaultGrants, confirmRequired, func(ctx context.Context, turnID, action, target string, details map[string]interface{}) {
		logAudit(ctx, auditLog, logger, turnID, action, action, target, details)
	})

	// confirmation's AuditFunc likewise passes CONFIRM_REQUEST/CONFIRM_RESPONSE
	// in the action slot; the real outcome (APPROVED/DENIED/TIMEOUT) lives in
	// details["outcome"] for CONFIRM_RESPONSE entries.
	confirmations := confirmation.NewStore(func(ctx context.Context, turnID, action, target string, details map[string]interface{}) {
		auditAction := action
		if outcome, ok := details["outcome"].(string); ok {
			auditAction = outcome
		}
		logAudit(ctx, auditLog, logger, turnID, action, auditAction, target, details)
	})

	breakers := resilience.NewRegistry(resilience.DefaultBreakerConfig())
	policies := resilience.NewPolicyRegistry()
	health := resilience.NewHealthMonitor()

	// governor's AuditFunc passes REDACT/MEMORY_DELETE in the action slot;
	// REDACT maps to the dedicated MEMORY_REDACT event type, everything
	// else is already a valid event type on its own.
	governor := memory.New(db, memory.DefaultPolicy(), func(ctx context.Context, turnID, action, target string, details map[string]interface{}) {
		eventType := action
		if action == "REDACT" {
			eventType = "MEMORY_REDACT"
		}
		logAudit(ctx, auditLog, logger, turnID, eventType, action, target, details)
	})

	planClient, err := llm.New(ctx, llm.DefaultConfig(), logger)
	if err != nil {
		return fmt.Errorf("build planner client: %w", err)
	}

	orch := orchestrator.New(orchestrator.Deps{
		Registry:      registry,
		Authority:     auth,
		Confirmations: confirmations,
		Breakers:      breakers,
		Policies:      policies,
		Health:        health,
		Sandbox:       sandbox,
		AuditLog:      auditLog,
		Governor:      governor,
		DB:            db,
		Planner:       planClient,
		Logger:        logger,
	})

	sched := scheduler.New(cfg.Scheduler.TickInterval, orch.DispatchScheduled, db, logger)
	if err := sched.Load(ctx); err != nil {
		return fmt.Errorf("load scheduled tasks: %w", err)
	}
	go sched.Run(ctx)

	defer func() {
		sched.Stop()
		if err := orch.Shutdown(); err != nil {
			logger.Error("shutdown error", map[string]interface{}{"error": err.Error()})
		}
	}()

	return runREPL(ctx, orch)
}

func logAudit(ctx context.Context, log *audit.Log, logger logging.Logger, turnID, eventType, action, target string, details map[string]interface{}) {
	if _, err := log.Append(ctx, audit.Entry{
		TurnID:    turnID,
		EventType: eventType,
		Actor:     "core",
		Action:    action,
		Target:    target,
		Details:   details,
	}); err != nil {
		logger.ErrorWithContext(ctx, "audit append failed", map[string]interface{}{"error": err.Error()})
	}
}

func runREPL(ctx context.Context, orch *orchestrator.Orchestrator) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("jarvisd ready. Type a command and press enter.")
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		text := scanner.Text()
		if text == "" {
			continue
		}
		response, err := orch.ProcessTextDirectly(ctx, text)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		if response != nil {
			fmt.Println(*response)
		}
	}
	return scanner.Err()
}
