package agent

// Outcome is how a task ended.
type Outcome string

const (
	OutcomeCompleted       Outcome = "completed"
	OutcomeStuck           Outcome = "stuck"
	OutcomeMaxIterations   Outcome = "max_iterations"
	OutcomeNudgesExhausted Outcome = "nudges_exhausted"
	OutcomeCancelled       Outcome = "cancelled"
	OutcomeError           Outcome = "error"
)

// Describe returns the user-facing explanation of the outcome.
func (o Outcome) Describe() string {
	switch o {
	case OutcomeCompleted:
		return "Task complete."
	case OutcomeStuck:
		return "The agent is stuck in a loop. Please try rephrasing your request."
	case OutcomeMaxIterations:
		return "Max iterations reached before the task was completed."
	case OutcomeNudgesExhausted:
		return "The agent stopped making progress after repeated nudges."
	case OutcomeCancelled:
		return "Task cancelled."
	case OutcomeError:
		return "Task failed."
	default:
		return string(o)
	}
}

// Result is returned by Loop.Run.
type Result struct {
	Outcome    Outcome
	Message    string // final assistant text, or the error for OutcomeError
	Iterations int
	ToolCalls  int
}

// EventType identifies an Event.
type EventType int

const (
	// EventToken carries displayable response text.
	EventToken EventType = iota
	// EventStatus is a short progress note such as "thinking".
	EventStatus
	// EventToolCall is published before a tool runs.
	EventToolCall
	// EventObservation carries the observation string after a tool ran.
	EventObservation
	// EventPlan carries the plan whenever it is detected or advances.
	EventPlan
	// EventNudge carries the feedback message sent to the model.
	EventNudge
	// EventWarning reports a detected repetition or a non-fatal failure.
	EventWarning
	// EventOutput is one line of live output from a background command.
	EventOutput
	// EventDone ends a task and carries its Result.
	EventDone
)

// Event is published on the loop's event channel for the presentation layer.
type Event struct {
	Type    EventType
	Text    string
	Tool    string
	Args    map[string]any
	Success bool
	Plan    *PlanSnapshot
	Result  *Result
}
