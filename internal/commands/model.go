package commands

import (
	"context"
	"fmt"
	"strings"
)

// ModelCommand shows or switches the generation model.
type ModelCommand struct{}

func (c *ModelCommand) Name() string        { return "model" }
func (c *ModelCommand) Description() string { return "Show or switch the model" }
func (c *ModelCommand) Usage() string {
	return `/model         - Show the current model and the installed ones
/model <name>  - Switch to another model`
}

func (c *ModelCommand) Execute(ctx context.Context, args []string, app AppInterface) (string, error) {
	cl := app.GetClient()
	current := cl.GetModel()
	available, listErr := cl.ListModels(ctx)

	if len(args) == 0 {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Provider: %s\n", app.GetConfig().Model.Provider)
		fmt.Fprintf(&sb, "Model:    %s\n", current)
		if listErr != nil {
			fmt.Fprintf(&sb, "\nCannot list models: %v", listErr)
			return sb.String(), nil
		}
		sb.WriteString("\nAvailable models:\n")
		for _, m := range available {
			marker := "  "
			if sameModel(m, current) {
				marker = "* "
			}
			sb.WriteString(marker + m + "\n")
		}
		return strings.TrimRight(sb.String(), "\n"), nil
	}

	name := args[0]
	if listErr == nil && len(available) > 0 {
		found := false
		for _, m := range available {
			if sameModel(m, name) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Sprintf("Model %q is not available. Installed: %s", name, strings.Join(available, ", ")), nil
		}
	}

	cl.SetModel(name)
	app.GetConfig().Model.Name = name
	msg := fmt.Sprintf("Switched model: %s → %s", current, name)
	if listErr != nil {
		msg += fmt.Sprintf("\n(could not verify availability: %v)", listErr)
	}
	return msg, nil
}

// sameModel compares names ignoring an implicit ":latest" tag.
func sameModel(a, b string) bool {
	return strings.TrimSuffix(a, ":latest") == strings.TrimSuffix(b, ":latest")
}
