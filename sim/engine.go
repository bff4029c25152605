package sim

// HookPosStepStart marks the beginning of a simulation step.
var HookPosStepStart = &HookPos{Name: "Step Start"}

// HookPosStepEnd marks the end of a simulation step.
var HookPosStepEnd = &HookPos{Name: "Step End"}

// An Engine drives a set of tickers in synchronous lock-step. Time advances
// in discrete steps; on each step every registered ticker is ticked exactly
// once, in registration order.
type Engine struct {
	HookableBase

	name    string
	step    uint64
	tickers []Ticker
}

// NewEngine creates a lock-step engine.
func NewEngine(name string) *Engine {
	NameMustBeValid(name)

	return &Engine{name: name}
}

// Name returns the name of the engine.
func (e *Engine) Name() string {
	return e.name
}

// Register adds a ticker to be driven by the engine.
func (e *Engine) Register(t Ticker) {
	e.tickers = append(e.tickers, t)
}

// CurrentStep returns the number of completed steps.
func (e *Engine) CurrentStep() uint64 {
	return e.step
}

// Step advances the simulation by one step. It returns true if any ticker
// made progress.
func (e *Engine) Step() bool {
	if e.NumHooks() > 0 {
		e.InvokeHook(HookCtx{
			Domain: e,
			Pos:    HookPosStepStart,
			Item:   e.step,
		})
	}

	progress := false
	for _, t := range e.tickers {
		if t.Tick() {
			progress = true
		}
	}

	e.step++

	if e.NumHooks() > 0 {
		e.InvokeHook(HookCtx{
			Domain: e,
			Pos:    HookPosStepEnd,
			Item:   e.step,
		})
	}

	return progress
}

// Run steps the simulation until no ticker makes progress or until maxSteps
// steps have elapsed. It returns the number of steps executed.
func (e *Engine) Run(maxSteps uint64) uint64 {
	var executed uint64

	for executed < maxSteps {
		madeProgress := e.Step()
		executed++

		if !madeProgress {
			break
		}
	}

	return executed
}
