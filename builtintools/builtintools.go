// Package builtintools registers the small set of tools the core ships
// with out of the box, including get_current_time — the tool spec.md §8
// scenario 1 exercises end to end.
//
// None of these tools gate themselves against the filesystem/app sandbox:
// that enforcement lives centrally in executor.Executor so no tool
// implementation can opt out (spec.md §4.7).
package builtintools

import (
	"fmt"
	"os/exec"
	"time"

	"github.com/nova-labs/jarviscore/tool"
)

// Register adds every built-in tool to reg.
func Register(reg *tool.Registry) error {
	tools := []*tool.Tool{
		getCurrentTimeTool(),
		openApplicationTool(),
	}
	for _, t := range tools {
		if err := reg.Register(t); err != nil {
			return fmt.Errorf("builtintools: register %s: %w", t.Name, err)
		}
	}
	return nil
}

func getCurrentTimeTool() *tool.Tool {
	return &tool.Tool{
		Name:                 "get_current_time",
		Description:          "Returns the current local time as a 12-hour clock string.",
		ParameterSchema:      nil,
		PermissionLevel:      tool.PermissionRead,
		TimeoutSeconds:       5,
		RequiresConfirmation: false,
		Category:             "system",
		Exec: func(args map[string]interface{}) (interface{}, error) {
			return time.Now().Format("3:04 PM"), nil
		},
	}
}

func openApplicationTool() *tool.Tool {
	return &tool.Tool{
		Name:        "open_application",
		Description: "Launches an application by name from the configured allowlist.",
		ParameterSchema: []tool.ParameterSpec{
			{Name: "app_name", Type: tool.TypeString, Required: true},
		},
		PermissionLevel:      tool.PermissionExecute,
		TimeoutSeconds:       10,
		RequiresConfirmation: true,
		Category:             "system",
		Exec: func(args map[string]interface{}) (interface{}, error) {
			name, _ := args["app_name"].(string)
			cmd := exec.Command("open", "-a", name)
			if err := cmd.Run(); err != nil {
				return nil, fmt.Errorf("open_application: launch %q: %w", name, err)
			}
			return fmt.Sprintf("opened %s", name), nil
		},
	}
}
