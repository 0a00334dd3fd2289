package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"azul/internal/chat"
	"azul/internal/client"
	"azul/internal/config"
	"azul/internal/logging"
	"azul/internal/semantic"
	"azul/internal/tools"
)

// ObservationPrefix starts every tool message stored in the history.
const ObservationPrefix = "Tool Output:\n"

// Retriever finds code relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) []semantic.SearchResult
}

// Augmenter packs retrieved code into the prompt.
type Augmenter interface {
	Augment(query string, results []semantic.SearchResult, history []string) string
}

// SessionSaver persists the session at the end of a task.
type SessionSaver interface {
	Save(s *chat.Session) error
}

// Deps are the collaborators of a Loop. Retriever, Augmenter, Store and
// Metrics are optional.
type Deps struct {
	Client    client.Client
	Session   *chat.Session
	Store     SessionSaver
	Registry  *tools.Registry
	Retriever Retriever
	Augmenter Augmenter
	Metrics   *semantic.Metrics
	Config    config.AgentConfig
	Options   client.Options
	Root      string
}

// Loop drives the think, act and observe cycle for one task at a time.
type Loop struct {
	deps   Deps
	cfg    config.AgentConfig
	events chan Event

	// system prompt, rebuilt when the model changes
	system      string
	systemModel string
}

// NewLoop creates a loop. Events must be drained by the caller.
func NewLoop(deps Deps) *Loop {
	l := &Loop{
		deps:   deps,
		cfg:    withDefaults(deps.Config),
		events: make(chan Event, 256),
	}

	for _, t := range deps.Registry.List() {
		if s, ok := t.(tools.OutputStreamer); ok {
			// lines arriving while nobody drains events are dropped
			s.SetOutputHandler(func(line string) {
				select {
				case l.events <- Event{Type: EventOutput, Text: line}:
				default:
				}
			})
		}
	}
	return l
}

func withDefaults(c config.AgentConfig) config.AgentConfig {
	d := config.DefaultConfig().Agent
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.MaxNudges <= 0 {
		c.MaxNudges = d.MaxNudges
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = d.HistoryWindow
	}
	if c.RepeatThreshold <= 0 {
		c.RepeatThreshold = d.RepeatThreshold
	}
	if c.RepeatLookback <= 0 {
		c.RepeatLookback = d.RepeatLookback
	}
	if c.MaxRepeats <= 0 {
		c.MaxRepeats = d.MaxRepeats
	}
	if c.TreeDepth <= 0 {
		c.TreeDepth = d.TreeDepth
	}
	if c.StalledPhrases == nil {
		c.StalledPhrases = d.StalledPhrases
	}
	if len(c.CompletionMarkers) == 0 {
		c.CompletionMarkers = d.CompletionMarkers
	}
	return c
}

// Events returns the channel the loop publishes progress on.
func (l *Loop) Events() <-chan Event {
	return l.events
}

func (l *Loop) emit(ctx context.Context, e Event) {
	select {
	case l.events <- e:
	case <-ctx.Done():
	}
}

// taskState is the per-task bookkeeping of Run.
type taskState struct {
	input      string
	iteration  int
	nudges     int
	repeats    int
	toolCalls  int
	plan       *Plan
	recent     []string
	lastAnswer string
}

// Run executes one user task and returns how it ended. The session is
// saved whatever the outcome.
func (l *Loop) Run(ctx context.Context, input string) Result {
	st := &taskState{input: input}
	result := l.run(ctx, st)
	result.Iterations = st.iteration
	result.ToolCalls = st.toolCalls

	l.persist()
	logging.Info("task finished", "outcome", result.Outcome, "iterations", result.Iterations, "tool_calls", result.ToolCalls)

	// the done event must reach the consumer even after cancellation
	l.events <- Event{Type: EventDone, Result: &result, Text: result.Message}
	return result
}

func (l *Loop) persist() {
	if l.deps.Store == nil {
		return
	}
	if err := l.deps.Store.Save(l.deps.Session); err != nil {
		logging.Warn("failed to save session", "error", err)
	}
}

func (l *Loop) run(ctx context.Context, st *taskState) Result {
	session := l.deps.Session

	if session.Len() <= l.cfg.SeedHistoryThreshold {
		l.seed(ctx)
	}
	session.AddMessage(chat.RoleUser, st.input)

	for st.iteration < l.cfg.MaxIterations && st.nudges < l.cfg.MaxNudges {
		if ctx.Err() != nil {
			return Result{Outcome: OutcomeCancelled, Message: st.lastAnswer}
		}
		st.iteration++

		response, err := l.generate(ctx, st)
		if err != nil {
			if ctx.Err() != nil {
				return Result{Outcome: OutcomeCancelled, Message: st.lastAnswer}
			}
			logging.Error("generation failed", "iteration", st.iteration, "error", err)
			return Result{Outcome: OutcomeError, Message: err.Error()}
		}

		if st.iteration == 1 && st.plan == nil {
			if st.plan = DetectPlan(response); st.plan != nil {
				l.emit(ctx, Event{Type: EventPlan, Plan: st.plan.Snapshot()})
			}
		}

		if call, ok := client.ExtractToolCall(response); ok {
			l.dispatch(ctx, st, response, call)
			continue
		}

		if outcome, done := l.noAction(ctx, st, response); done {
			return Result{Outcome: outcome, Message: st.lastAnswer}
		}
	}

	if st.nudges >= l.cfg.MaxNudges {
		return Result{Outcome: OutcomeNudgesExhausted, Message: st.lastAnswer}
	}
	return Result{Outcome: OutcomeMaxIterations, Message: st.lastAnswer}
}

// seed stores a directory snapshot as the first observation of a new
// conversation.
func (l *Loop) seed(ctx context.Context) {
	tree, err := tools.GenerateTree(ctx, l.deps.Root, l.cfg.TreeDepth)
	if err != nil {
		logging.Warn("failed to generate seed tree", "root", l.deps.Root, "error", err)
		return
	}
	l.deps.Session.AddMessage(chat.RoleTool, ObservationPrefix+tree)
}

func (l *Loop) systemPrompt() string {
	model := l.deps.Client.GetModel()
	if l.system == "" || model != l.systemModel {
		l.system = SystemPrompt(l.deps.Root, l.deps.Registry, model)
		l.systemModel = model
	}
	return l.system
}

// messages builds the request: system prompt, then the history window.
// On the first iteration the just-stored user input is replaced by its
// retrieval-augmented form; the history itself keeps the raw input.
func (l *Loop) messages(ctx context.Context, st *taskState) []client.Message {
	history := l.deps.Session.Messages(l.cfg.HistoryWindow)

	msgs := make([]client.Message, 0, len(history)+1)
	msgs = append(msgs, client.Message{Role: client.RoleSystem, Content: l.systemPrompt()})
	for _, m := range history {
		msgs = append(msgs, client.Message{Role: m.Role, Content: m.Content})
	}

	if st.iteration == 1 && len(msgs) > 1 {
		last := &msgs[len(msgs)-1]
		if last.Role == client.RoleUser && last.Content == st.input {
			last.Content = l.augment(ctx, st.input, history)
		}
	}
	return msgs
}

func (l *Loop) augment(ctx context.Context, input string, history []chat.Message) string {
	if l.deps.Retriever == nil || l.deps.Augmenter == nil {
		return input
	}
	results := l.deps.Retriever.Retrieve(ctx, input)
	if len(results) == 0 {
		return input
	}

	contents := make([]string, len(history))
	for i, m := range history {
		contents[i] = m.Content
	}
	l.emit(ctx, Event{Type: EventStatus, Text: fmt.Sprintf("retrieved %d code chunks", len(results))})
	return l.deps.Augmenter.Augment(input, results, contents)
}

// generate streams one completion. Tokens are forwarded until the opening
// tool marker shows up; from then on the stream is only buffered, and it
// is abandoned as soon as a complete call parses.
func (l *Loop) generate(ctx context.Context, st *taskState) (string, error) {
	msgs := l.messages(ctx, st)
	l.emit(ctx, Event{Type: EventStatus, Text: "thinking"})

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	stream, err := l.deps.Client.Stream(streamCtx, msgs, l.deps.Options)
	if err != nil {
		return "", err
	}

	var (
		buffer   strings.Builder
		shown    int
		guarded  bool
		ttft     time.Duration
		complete bool
		cut      int
	)

	resp, err := client.ProcessStream(streamCtx, stream, &client.StreamHandler{
		OnText: func(text string) bool {
			if ttft == 0 {
				ttft = time.Since(start)
			}
			buffer.WriteString(text)
			current := buffer.String()

			if !guarded {
				n := client.DisplayableLength(current)
				if n > shown {
					l.emit(ctx, Event{Type: EventToken, Text: current[shown:n]})
					shown = n
				}
				guarded = client.HasOpenMarker(current)
			}
			if guarded {
				if call, ok := client.ExtractToolCall(current); ok {
					complete = true
					cut = strings.Index(current, call.Raw) + len(call.Raw)
					return false
				}
			}
			return true
		},
	})
	if err != nil && !(complete && errors.Is(err, context.Canceled)) {
		return "", err
	}

	// anything streamed after a complete call is discarded
	text := buffer.String()
	if complete && cut > 0 {
		text = text[:cut]
	}
	if !guarded && shown < len(text) {
		l.emit(ctx, Event{Type: EventToken, Text: text[shown:]})
	}

	if l.deps.Metrics != nil {
		outputTokens := 0
		if resp != nil {
			outputTokens = resp.OutputTokens
		}
		if outputTokens == 0 {
			outputTokens = semantic.EstimateTokens(text)
		}
		l.deps.Metrics.RecordGeneration(ttft, time.Since(start), outputTokens)
	}
	return text, nil
}

// dispatch runs a tool call and stores the observation.
func (l *Loop) dispatch(ctx context.Context, st *taskState, response string, call *client.ToolCall) {
	session := l.deps.Session
	st.nudges = 0
	st.repeats = 0
	st.toolCalls++

	if prose := client.RemoveToolCall(response, call); prose != "" {
		session.AddMessage(chat.RoleAssistant, prose)
		st.lastAnswer = prose
	}

	l.emit(ctx, Event{Type: EventToolCall, Tool: call.Name, Args: call.Args})
	result := l.deps.Registry.Execute(ctx, call)
	observation := result.Observation()
	logging.Debug("tool dispatched", "tool", call.Name, "success", result.Success)

	session.AddMessage(chat.RoleTool, ObservationPrefix+observation)
	l.emit(ctx, Event{Type: EventObservation, Tool: call.Name, Text: observation, Success: result.Success})

	if st.plan != nil && result.Success {
		st.plan.Advance()
		l.emit(ctx, Event{Type: EventPlan, Plan: st.plan.Snapshot()})
	}
}

// noAction handles a turn without a tool call. It reports whether the task
// ended and how.
func (l *Loop) noAction(ctx context.Context, st *taskState, response string) (Outcome, bool) {
	session := l.deps.Session
	trimmed := strings.TrimSpace(response)
	if trimmed != "" {
		session.AddMessage(chat.RoleAssistant, response)
		st.lastAnswer = stripMarkers(trimmed, l.cfg.CompletionMarkers)
	}

	if isRepeat(trimmed, st.recent, l.cfg.RepeatThreshold) {
		st.nudges++
		st.repeats++
		st.remember(trimmed, l.cfg.RepeatLookback)
		l.emit(ctx, Event{Type: EventWarning, Text: fmt.Sprintf("Agent is repeating itself (attempt %d/%d)", st.nudges, l.cfg.MaxNudges)})

		if st.repeats >= l.cfg.MaxRepeats {
			logging.Warn("persistent repetition, aborting task", "repeats", st.repeats)
			return OutcomeStuck, true
		}
		l.nudge(ctx, st, repeatFeedback)
		return "", false
	}
	st.repeats = 0
	st.remember(trimmed, l.cfg.RepeatLookback)

	if hasCompletion(response, l.cfg.CompletionMarkers) {
		return OutcomeCompleted, true
	}

	st.nudges++
	if phrase := stalledIntent(response, l.cfg.StalledPhrases); phrase != "" {
		l.nudge(ctx, st, fmt.Sprintf(stalledFeedback, phrase))
	} else {
		l.nudge(ctx, st, genericFeedback)
	}
	return "", false
}

func (st *taskState) remember(response string, lookback int) {
	if response == "" {
		return
	}
	st.recent = append(st.recent, response)
	if over := len(st.recent) - lookback; over > 0 {
		st.recent = st.recent[over:]
	}
}

func (l *Loop) nudge(ctx context.Context, st *taskState, message string) {
	if st.plan != nil {
		message += st.plan.Reminder()
	}
	l.deps.Session.AddMessage(chat.RoleUser, message)
	l.emit(ctx, Event{Type: EventNudge, Text: message})
}
