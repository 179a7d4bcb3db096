package uipilot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/uipilot/skill"
)

// RunStatus is the terminal state of a run.
type RunStatus string

const (
	StatusDone      RunStatus = "done"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"

	// StatusDelegated means the skill gate resolved the instruction into
	// a deep link and the step loop never ran.
	StatusDelegated RunStatus = "delegated"
)

// RunResult is the terminal result of a run. Intermediate failures surface
// only as progress sink events.
type RunResult struct {
	Status  RunStatus
	Message string
	Steps   int
}

// StageSet selects which model stages the driver runs per step.
type StageSet int

const (
	// StagesPlanExecuteReflect runs the full three stage loop with
	// optional notetaking.
	StagesPlanExecuteReflect StageSet = iota

	// StagesSingleShot runs execution only: one model call per step, no
	// separate planning or reflection calls.
	StagesSingleShot
)

const (
	DefaultStepLimit        = 25
	DefaultEscalationWindow = 2
	DefaultSettleDelay      = 1500 * time.Millisecond
	// DefaultFirstSettleDelay is longer to allow app cold start after the
	// first action.
	DefaultFirstSettleDelay = 3 * time.Second

	maxSensitiveCaptureRetries = 3
)

// Agent is the control loop driver. It owns retry, escalation, suspension
// and cancellation, and consumes a DeviceController and a ModelClient.
type Agent struct {
	device DeviceController
	model  ModelClient

	agentConfig
}

type agentConfig struct {
	stepLimit        int
	escalationWindow int
	settleDelay      time.Duration
	firstSettleDelay time.Duration
	confirmTimeout   time.Duration
	memoryBudget     int
	stageSet         StageSet
	notetaking       bool
	streaming        bool

	registry *skill.Registry
	recorder *Script

	sink   ProgressSink
	logger *slog.Logger
}

func (c *agentConfig) clone() agentConfig {
	return *c
}

// Option configures an Agent.
type Option func(*agentConfig)

// WithStepLimit caps the number of loop iterations per run.
func WithStepLimit(limit int) Option {
	return func(c *agentConfig) { c.stepLimit = limit }
}

// WithEscalationWindow sets how many consecutive non-Success outcomes
// trigger the escalation hint to planning.
func WithEscalationWindow(window int) Option {
	return func(c *agentConfig) { c.escalationWindow = window }
}

// WithSettleDelay sets the pause between dispatching an action and taking
// the after screenshot.
func WithSettleDelay(delay time.Duration) Option {
	return func(c *agentConfig) { c.settleDelay = delay }
}

// WithFirstSettleDelay sets the pause after the first step only.
func WithFirstSettleDelay(delay time.Duration) Option {
	return func(c *agentConfig) { c.firstSettleDelay = delay }
}

// WithConfirmTimeout bounds human confirmation and takeover waits. On
// expiry a confirmation resolves to decline and a takeover cancels the run.
// Zero means wait forever.
func WithConfirmTimeout(timeout time.Duration) Option {
	return func(c *agentConfig) { c.confirmTimeout = timeout }
}

// WithMemoryBudget enables hard cap eviction on the conversation memory.
func WithMemoryBudget(tokens int) Option {
	return func(c *agentConfig) { c.memoryBudget = tokens }
}

// WithStages selects the stage configuration.
func WithStages(set StageSet) Option {
	return func(c *agentConfig) { c.stageSet = set }
}

// WithNotetaking enables the notetaking stage on Success outcomes.
func WithNotetaking() Option {
	return func(c *agentConfig) { c.notetaking = true }
}

// WithStreaming makes the execution stage use the streaming model call,
// forwarding think tokens to the progress sink.
func WithStreaming() Option {
	return func(c *agentConfig) { c.streaming = true }
}

// WithSkillRegistry enables the skill gate before the generic loop.
func WithSkillRegistry(registry *skill.Registry) Option {
	return func(c *agentConfig) { c.registry = registry }
}

// WithScriptRecorder records every dispatched step into the given script
// for later replay.
func WithScriptRecorder(script *Script) Option {
	return func(c *agentConfig) { c.recorder = script }
}

// WithProgressSink sets the sink for run progress events.
func WithProgressSink(sink ProgressSink) Option {
	return func(c *agentConfig) { c.sink = sink }
}

// WithLogger sets the logger. Default is a discard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *agentConfig) { c.logger = logger }
}

// New creates an agent bound to a device and a model.
func New(device DeviceController, model ModelClient, options ...Option) *Agent {
	agent := &Agent{
		device: device,
		model:  model,
		agentConfig: agentConfig{
			stepLimit:        DefaultStepLimit,
			escalationWindow: DefaultEscalationWindow,
			settleDelay:      DefaultSettleDelay,
			firstSettleDelay: DefaultFirstSettleDelay,
			sink:             NopProgressSink{},
			logger:           slog.New(slog.DiscardHandler),
		},
	}
	for _, opt := range options {
		opt(&agent.agentConfig)
	}
	return agent
}

// Run drives the device toward the instruction until the run terminates.
// The returned RunResult always carries status, message and step count.
// The error is non-nil only for Failed runs; Cancelled is a status, not an
// error.
func (a *Agent) Run(ctx context.Context, instruction string, options ...Option) (*RunResult, error) {
	cfg := a.agentConfig.clone()
	for _, opt := range options {
		opt(&cfg)
	}

	logger := cfg.logger.With("uipilot.run_id", uuid.New().String())
	ctx = ctxWithLogger(ctx, logger)
	logger.Info("run started", "instruction", instruction, "stages", cfg.stageSet, "strategy", a.device.Strategy())

	run := &runState{agent: a, cfg: cfg, instruction: instruction}
	result, err := run.execute(ctx)
	logger.Info("run finished", "status", result.Status, "steps", result.Steps, "message", result.Message)
	return result, err
}

// runState holds everything scoped to one run: the state pool, the
// conversation memory and the escalation bookkeeping. It is never shared.
type runState struct {
	agent       *Agent
	cfg         agentConfig
	instruction string

	state *StatePool
	convo *Conversation

	// skipPlanning is set after an Invalid action so the next iteration
	// does not waste a planning call on an unchanged screen.
	skipPlanning bool
}

func (r *runState) execute(ctx context.Context) (*RunResult, error) {
	// Skill gate runs once, before the generic loop.
	hints := ""
	if r.cfg.registry != nil {
		gate := r.cfg.registry.Evaluate(r.instruction, func(pkg string) bool {
			return r.agent.isInstalled(ctx, pkg)
		})
		switch gate.Decision {
		case skill.Delegated:
			return r.delegate(ctx, gate)
		case skill.NeedAutomation:
			hints = gate.Plan.StepHintsText()
		}
	}

	width, height, err := r.agent.device.ScreenSize(ctx)
	if err != nil {
		return r.failed(0, goerr.Wrap(err, "failed to get screen size"))
	}
	r.state = NewStatePool(r.instruction, width, height)
	r.convo = NewConversation()
	r.convo.SetBudget(r.cfg.memoryBudget)
	r.convo.AddSystemMessage(executeSystemPrompt)

	for step := 0; step < r.cfg.stepLimit; step++ {
		if err := ctx.Err(); err != nil {
			return r.cancelled("cancelled before step")
		}

		done, result, err := r.runStep(ctx, step, hints)
		if done {
			return result, err
		}
	}

	return r.failed(r.state.StepCount(),
		goerr.Wrap(ErrStepLimitExceeded, "step limit exceeded", goerr.V("limit", r.cfg.stepLimit)))
}

// runStep executes one loop iteration. done=true means the run terminated.
func (r *runState) runStep(ctx context.Context, step int, hints string) (bool, *RunResult, error) {
	logger := LoggerFromContext(ctx)

	shot, suspended, err := r.captureScreen(ctx)
	if err != nil {
		res, rerr := r.failedOrCancelled(ctx, err)
		return true, res, rerr
	}
	if suspended {
		res, rerr := r.cancelled("screenshot blocked and capture declined")
		return true, res, rerr
	}

	// Refresh geometry each step to tolerate rotation.
	if w, h, err := r.agent.device.ScreenSize(ctx); err == nil {
		r.state.Width, r.state.Height = w, h
	}

	escalation := r.state.EscalationActive(r.cfg.escalationWindow)
	if escalation {
		logger.Info("escalation active", "window", r.cfg.escalationWindow)
	}

	if r.cfg.stageSet == StagesPlanExecuteReflect && !r.skipPlanning {
		done, consumed, result, err := r.runPlanning(ctx, step, hints, escalation)
		if done {
			return true, result, err
		}
		if consumed {
			// The iteration was spent on planning (declined sensitive
			// plan, rejected premature finish, failed call); do not run
			// execution against a stale decision.
			return false, nil, nil
		}
	}
	r.skipPlanning = false

	return r.runExecution(ctx, step, shot)
}

// runPlanning performs one planning call. done=true carries a terminal
// result; consumed=true means the iteration is spent but the run continues.
func (r *runState) runPlanning(ctx context.Context, step int, hints string, escalation bool) (done, consumed bool, result *RunResult, err error) {
	prompt := buildPlanningPrompt(planningPromptInput{
		state:      r.state,
		hints:      hints,
		escalation: escalation,
		window:     r.cfg.escalationWindow,
	})

	text, perr := r.agent.model.Predict(ctx, planningSystemPrompt+"\n\n"+prompt, nil)
	if perr != nil {
		if ctx.Err() != nil {
			res, rerr := r.cancelled("cancelled during planning call")
			return true, false, res, rerr
		}
		// The very first planning call is fatal: no prior state exists to
		// fall back on. Later planning failures degrade to a skipped step.
		if step == 0 {
			res, rerr := r.failed(0, goerr.Wrap(ErrModelCall, "first planning call failed", goerr.V("cause", perr.Error())))
			return true, false, res, rerr
		}
		r.recordStep(Action{Kind: ActionInvalid, Raw: "planning call failed"},
			"planning call failed", OutcomeUnknown, perr.Error())
		return false, true, nil, nil
	}

	plan := ParsePlanResponse(text)
	r.cfg.sink.OnPlanReady(plan.Plan, plan.CompletedSubgoals)

	if plan.IsSensitive() {
		approved, cerr := r.confirm(ctx, "the plan requires a sensitive operation: "+r.instruction)
		if cerr != nil {
			res, rerr := r.cancelled("cancelled during sensitive plan confirmation")
			return true, false, res, rerr
		}
		if !approved {
			r.recordStep(Action{Kind: ActionInvalid, Raw: text},
				"sensitive plan declined", OutcomePartialFailure, "user declined sensitive operation")
			return false, true, nil, nil
		}
	}

	if plan.IsFinished() {
		// Code level guard on the prompt convention: a Finished plan is
		// only honored when the last recorded outcome was Success.
		if r.state.LastOutcome() == OutcomeSuccess {
			res, rerr := r.done("task finished: " + r.instruction)
			return true, false, res, rerr
		}
		r.recordStep(Action{Kind: ActionInvalid, Raw: text},
			"premature finish rejected", OutcomeNoChange,
			"model declared finished without a successful last action")
		return false, true, nil, nil
	}

	r.state.Plan = plan.Plan
	r.state.CompletedPlan = plan.CompletedSubgoals
	return false, false, nil, nil
}

func (r *runState) runExecution(ctx context.Context, step int, shot Screenshot) (bool, *RunResult, error) {
	r.cfg.sink.OnStepStart(step + 1)

	r.convo.AddUserMessage(buildExecutePrompt(r.state), &shot.Image)

	text, err := r.predictExecution(ctx)
	// The image is stripped as soon as the model has answered for this
	// turn; only the newest user turn ever holds one.
	r.convo.StripLastImage()
	if err != nil {
		if ctx.Err() != nil {
			res, rerr := r.cancelled("cancelled during execution call")
			return true, res, rerr
		}
		r.convo.AddAssistantMessage("(model call failed)")
		r.recordStep(Action{Kind: ActionInvalid, Raw: "execution call failed"},
			"execution call failed", OutcomeUnknown, err.Error())
		return false, nil, nil
	}
	r.convo.AddAssistantMessage(text)

	result, parseErr := ParseExecuteResponse(text)
	if parseErr != nil {
		// A malformed action is never guessed at.
		r.recordStep(result.Action, "unparseable model output", OutcomePartialFailure, parseErr.Error())
		res, rerr := r.failed(r.state.StepCount(), parseErr)
		return true, res, rerr
	}

	r.cfg.sink.OnThinkComplete(result.Thought)
	r.cfg.sink.OnActionDetected(result.Action, result.Description)

	switch result.Action.Kind {
	case ActionInvalid:
		r.recordStep(result.Action, result.Description, OutcomePartialFailure, "model requested an unknown action")
		r.skipPlanning = true
		return false, nil, nil

	case ActionFinish:
		res, rerr := r.done(result.Action.Text)
		return true, res, rerr

	case ActionAnswer:
		r.cfg.sink.OnVerification(true, result.Action.Text)
		res, rerr := r.done(result.Action.Text)
		return true, res, rerr

	case ActionTakeOver:
		if err := r.takeOver(ctx, result.Action.Text); err != nil {
			res, rerr := r.cancelled("takeover not completed: " + err.Error())
			return true, res, rerr
		}
		r.recordStep(result.Action, result.Description, OutcomeSuccess, "")
		return false, nil, nil
	}

	if isSensitiveAction(result) {
		approved, err := r.confirm(ctx, "about to execute a sensitive action: "+result.Description)
		if err != nil {
			res, rerr := r.cancelled("cancelled during sensitive action confirmation")
			return true, res, rerr
		}
		if !approved {
			// A decline skips only this action; the run continues.
			r.recordStep(result.Action, result.Description, OutcomePartialFailure, "sensitive action declined by user")
			return false, nil, nil
		}
	}

	if err := ctx.Err(); err != nil {
		res, rerr := r.cancelled("cancelled before dispatch")
		return true, res, rerr
	}

	if err := r.agent.dispatch(ctx, result.Action, r.state.Width, r.state.Height); err != nil {
		r.recordStep(result.Action, result.Description, OutcomePartialFailure,
			goerr.Wrap(ErrDeviceDispatch, "dispatch failed", goerr.V("action", result.Action.String())).Error())
		return false, nil, nil
	}
	if r.cfg.recorder != nil {
		r.cfg.recorder.Append(result.Action, result.Description, r.settleFor(step))
	}

	if err := r.settle(ctx, step); err != nil {
		res, rerr := r.cancelled("cancelled during settle delay")
		return true, res, rerr
	}

	outcome, errDesc := r.reflect(ctx, shot, result)

	if result.Action.Kind == ActionLaunch {
		r.verifyForeground(ctx, result.Action.App)
	}

	r.recordStep(result.Action, result.Description, outcome, errDesc)

	if r.cfg.notetaking && outcome == OutcomeSuccess && r.cfg.stageSet == StagesPlanExecuteReflect {
		r.takeNotes(ctx, result.Description)
	}

	return false, nil, nil
}

func (r *runState) predictExecution(ctx context.Context) (string, error) {
	messages := r.convo.ToWireFormat()
	if r.cfg.streaming {
		return r.agent.model.PredictWithContextStream(ctx, messages, sinkAdapter{r.cfg.sink})
	}
	return r.agent.model.PredictWithContext(ctx, messages)
}

// reflect captures the after screenshot and runs the reflection stage. It
// degrades to Unknown instead of failing the run. In single shot mode the
// dispatch result already succeeded, so the outcome is Success.
func (r *runState) reflect(ctx context.Context, before Screenshot, exec ExecuteResult) (StepOutcome, string) {
	if r.cfg.stageSet == StagesSingleShot {
		return OutcomeSuccess, ""
	}

	after, err := r.agent.device.Screenshot(ctx)
	if err != nil || after.Sensitive {
		return OutcomeUnknown, "after screenshot unavailable"
	}

	prompt := buildReflectionPrompt(exec.Action, exec.Description)
	text, err := r.agent.model.Predict(ctx, reflectionSystemPrompt+"\n\n"+prompt, []Image{before.Image, after.Image})
	if err != nil {
		return OutcomeUnknown, "reflection call failed: " + err.Error()
	}

	parsed := ParseReflectionResponse(text)
	return parsed.Outcome, parsed.ErrorDescription
}

func (r *runState) takeNotes(ctx context.Context, summary string) {
	shot, err := r.agent.device.Screenshot(ctx)
	if err != nil || shot.Sensitive {
		return
	}
	text, err := r.agent.model.Predict(ctx, noteSystemPrompt+"\n\n"+buildNotePrompt(r.state, summary), []Image{shot.Image})
	if err != nil {
		return
	}
	for _, note := range ParseNoteResponse(text) {
		r.state.AddNote(note)
	}
}

// captureScreen takes a screenshot, suspending for human confirmation when
// the OS reports a sensitive content block. suspended=true means the user
// declined to continue.
func (r *runState) captureScreen(ctx context.Context) (Screenshot, bool, error) {
	for attempt := 0; attempt < maxSensitiveCaptureRetries; attempt++ {
		shot, err := r.agent.device.Screenshot(ctx)
		if err != nil {
			return Screenshot{}, false, goerr.Wrap(err, "screenshot failed")
		}
		if !shot.Sensitive {
			return shot, false, nil
		}

		approved, cerr := r.confirm(ctx, "the screen shows protected content; continue anyway?")
		if cerr != nil || !approved {
			return Screenshot{}, true, nil
		}
	}
	return Screenshot{}, false, goerr.New("screen capture kept reporting sensitive content",
		goerr.V("attempts", maxSensitiveCaptureRetries))
}

// confirm is a suspension point. With a configured timeout, expiry resolves
// to decline. Cancellation is observable here.
func (r *runState) confirm(ctx context.Context, message string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if r.cfg.confirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.confirmTimeout)
		defer cancel()
	}
	approved, err := r.cfg.sink.ConfirmSensitive(ctx, message)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return false, nil
		}
		return false, err
	}
	return approved, nil
}

func (r *runState) takeOver(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.cfg.confirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.confirmTimeout)
		defer cancel()
	}
	return r.cfg.sink.RequestTakeOver(ctx, message)
}

func (r *runState) settleFor(step int) time.Duration {
	if step == 0 {
		return r.cfg.firstSettleDelay
	}
	return r.cfg.settleDelay
}

func (r *runState) settle(ctx context.Context, step int) error {
	delay := r.settleFor(step)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *runState) verifyForeground(ctx context.Context, app string) {
	out, err := r.agent.device.ExecShell(ctx, "dumpsys activity activities | grep mResumedActivity")
	if err != nil {
		return
	}
	passed := strings.Contains(strings.ToLower(out), strings.ToLower(app))
	r.cfg.sink.OnVerification(passed, "foreground check for "+app)
}

func (r *runState) recordStep(action Action, summary string, outcome StepOutcome, errDesc string) {
	r.state.AppendStep(action, summary, outcome, errDesc)
	r.cfg.sink.OnStepComplete(r.state.StepCount(), outcome, errDesc)
}

func (r *runState) delegate(ctx context.Context, gate skill.Result) (*RunResult, error) {
	logger := LoggerFromContext(ctx)
	logger.Info("delegating via deep link", "link", gate.DeepLink, "score", gate.Score)

	cmd := fmt.Sprintf("am start -a android.intent.action.VIEW -d '%s'", gate.DeepLink)
	if _, err := r.agent.device.ExecShell(ctx, cmd); err != nil {
		// Deep link dispatch failed; fall back to just opening the app so
		// the user is at least one tap away from the goal.
		if gate.Plan != nil && gate.Plan.App != nil {
			if oerr := r.agent.device.OpenApp(ctx, gate.Plan.App.PackageName); oerr != nil {
				return r.failed(0, goerr.Wrap(ErrDeviceDispatch, "delegation dispatch failed", goerr.V("link", gate.DeepLink)))
			}
		}
	}
	return &RunResult{Status: StatusDelegated, Message: gate.DeepLink, Steps: 0}, nil
}

func (a *Agent) isInstalled(ctx context.Context, pkg string) bool {
	out, err := a.device.ExecShell(ctx, "pm list packages "+pkg)
	if err != nil {
		return false
	}
	return strings.Contains(out, pkg)
}

// dispatch maps an action onto the device control interface, resolving
// coordinates to pixels at this boundary.
func (a *Agent) dispatch(ctx context.Context, action Action, width, height int) error {
	x := ToPixels(action.X, width)
	y := ToPixels(action.Y, height)

	switch action.Kind {
	case ActionTap:
		return a.device.Tap(ctx, x, y)
	case ActionDoubleTap:
		return a.device.DoubleTap(ctx, x, y)
	case ActionLongPress:
		return a.device.LongPress(ctx, x, y)
	case ActionSwipe:
		return a.device.Swipe(ctx, x, y, ToPixels(action.X2, width), ToPixels(action.Y2, height))
	case ActionTypeText:
		return a.device.Type(ctx, action.Text)
	case ActionLaunch:
		return a.device.OpenApp(ctx, action.App)
	case ActionBack:
		return a.device.Back(ctx)
	case ActionHome:
		return a.device.Home(ctx)
	case ActionWait:
		timer := time.NewTimer(time.Duration(action.Seconds * float64(time.Second)))
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	default:
		return goerr.Wrap(ErrDeviceDispatch, "action is not dispatchable", goerr.V("kind", string(action.Kind)))
	}
}

// sensitiveMarkers flag actions that touch payment or authentication.
var sensitiveMarkers = []string{
	"pay", "payment", "purchase", "buy now", "checkout", "transfer",
	"password", "passcode", "login", "log in", "sign in", "verification code", "otp",
}

func isSensitiveAction(result ExecuteResult) bool {
	haystack := strings.ToLower(result.Description + " " + result.Thought)
	for _, marker := range sensitiveMarkers {
		if strings.Contains(haystack, marker) {
			return true
		}
	}
	return false
}

func (r *runState) stepCount() int {
	if r.state == nil {
		return 0
	}
	return r.state.StepCount()
}

func (r *runState) done(message string) (*RunResult, error) {
	return &RunResult{Status: StatusDone, Message: message, Steps: r.stepCount()}, nil
}

func (r *runState) cancelled(message string) (*RunResult, error) {
	return &RunResult{Status: StatusCancelled, Message: message, Steps: r.stepCount()}, nil
}

func (r *runState) failed(steps int, err error) (*RunResult, error) {
	return &RunResult{Status: StatusFailed, Message: err.Error(), Steps: steps}, err
}

func (r *runState) failedOrCancelled(ctx context.Context, err error) (*RunResult, error) {
	if ctx.Err() != nil {
		return r.cancelled("cancelled: " + err.Error())
	}
	return r.failed(r.stepCount(), err)
}

// sinkAdapter forwards streaming model events to the progress sink.
type sinkAdapter struct {
	sink ProgressSink
}

var _ StreamSink = sinkAdapter{}

func (s sinkAdapter) OnThinkChunk(chunk string)             { s.sink.OnThinkChunk(chunk) }
func (s sinkAdapter) OnActionDetected()                     {}
func (s sinkAdapter) OnStreamMetrics(metrics StreamMetrics) { s.sink.OnStreamMetrics(metrics) }
