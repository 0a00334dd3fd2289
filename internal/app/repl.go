package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"azul/internal/agent"
	"azul/internal/commands"
	"azul/internal/logging"
)

const healthcheckTimeout = 5 * time.Second

// Run starts the REPL and blocks until the user exits or input ends.
func (a *App) Run() error {
	a.signalCleanup = a.setupSignalHandler()
	defer a.shutdown()

	a.welcome()

	for {
		line, err := a.input.ReadLine(a.ctx, a.prompt())
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				a.renderer.EndStream()
				return nil
			}
			return err
		}

		if a.handleInput(line) {
			return nil
		}
	}
}

func (a *App) prompt() string {
	return a.renderer.Styles().Prompt.Render("azul›") + " "
}

func (a *App) welcome() {
	p := a.currentProject()
	a.renderer.Banner(fmt.Sprintf("azul %s · %s (%s)", a.version, a.client.GetModel(), a.cfg.Model.Provider))
	a.renderer.Info("Project: " + p.root)
	if p.session.Len() > 0 {
		a.renderer.Info(fmt.Sprintf("Resumed conversation with %d messages. /reset starts over.", p.session.Len()))
	}
	a.renderer.Info("Type a task, or /help for commands.")

	ctx, cancel := context.WithTimeout(a.ctx, healthcheckTimeout)
	defer cancel()
	if err := a.client.Healthcheck(ctx); err != nil {
		logging.Warn("model healthcheck failed", "error", err)
		a.renderer.Warning(fmt.Sprintf("Model backend unavailable: %v", err))
	}
}

// handleInput dispatches one line. It reports true when the REPL should end.
func (a *App) handleInput(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if name, args, ok := a.handler.Parse(line); ok {
		return a.runCommand(name, args)
	}
	if isUnknownCommand(line) {
		a.renderer.Error(fmt.Sprintf("Unknown command: %s. Type /help for the list.", strings.Fields(line)[0]))
		return false
	}

	a.runTask(line)
	return false
}

// isUnknownCommand tells a mistyped command from a task starting with a path.
func isUnknownCommand(line string) bool {
	if !strings.HasPrefix(line, "/") {
		return false
	}
	first := strings.Fields(line)[0]
	return !strings.Contains(first[1:], "/")
}

func (a *App) runCommand(name string, args []string) bool {
	ctx, cancel := context.WithCancel(a.ctx)
	a.setTaskCancel(cancel)
	defer func() {
		a.setTaskCancel(nil)
		cancel()
	}()

	out, err := a.handler.Execute(ctx, name, args, a)
	if errors.Is(err, commands.ErrExit) {
		if out != "" {
			a.renderer.Print(out)
		}
		return true
	}
	if err != nil {
		a.renderer.Error(err.Error())
		return false
	}
	if out == "" {
		return false
	}
	if name == "edit" || name == "help" {
		a.renderer.Markdown(out)
	} else {
		a.renderer.Print(out)
	}
	return false
}

// runTask runs the agent loop on one request while rendering its events.
func (a *App) runTask(input string) {
	p := a.currentProject()

	ctx, cancel := context.WithCancel(a.ctx)
	a.setTaskCancel(cancel)
	defer func() {
		a.setTaskCancel(nil)
		cancel()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range p.loop.Events() {
			a.renderEvent(e)
			if e.Type == agent.EventDone {
				return
			}
		}
	}()

	p.loop.Run(ctx, input)
	<-done
}

func (a *App) renderEvent(e agent.Event) {
	r := a.renderer
	switch e.Type {
	case agent.EventToken:
		r.Token(e.Text)
	case agent.EventStatus:
		r.Status(e.Text)
	case agent.EventToolCall:
		r.ToolCall(e.Tool, e.Args)
	case agent.EventObservation:
		r.Observation(e.Text, e.Success)
	case agent.EventPlan:
		if e.Plan != nil {
			r.Plan(e.Plan.Steps, e.Plan.Current, e.Plan.Completed)
		}
	case agent.EventNudge:
		r.Nudge(e.Text)
	case agent.EventWarning:
		r.Warning(e.Text)
	case agent.EventOutput:
		r.Output(e.Text)
	case agent.EventDone:
		r.EndStream()
		if e.Result != nil {
			a.renderResult(*e.Result)
		}
	}
}

func (a *App) renderResult(res agent.Result) {
	r := a.renderer
	switch res.Outcome {
	case agent.OutcomeCompleted:
		r.Success(fmt.Sprintf("Done (%d iterations, %d tool calls)", res.Iterations, res.ToolCalls))
	case agent.OutcomeCancelled:
		r.Warning(res.Outcome.Describe())
	case agent.OutcomeError:
		r.Error(res.Outcome.Describe() + " " + res.Message)
	default:
		r.Warning(res.Outcome.Describe())
	}
}
