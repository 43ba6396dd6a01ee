// Package night drives a participant's view through the night phase.
//
// The controller is a three-state machine: activity, role-action and toast.
// Each timer belongs to exactly one state and is cancelled by that state's
// exit hook, so a superseded lock or toast can never fire a transition.
package night

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/roscoeevans/Skulking/go/internal/midnight/roles"
	"github.com/roscoeevans/Skulking/go/internal/midnight/timerslot"
	"github.com/roscoeevans/Skulking/go/internal/models"
)

// View is the controller state.
type View string

const (
	ViewActivity   View = "activity"
	ViewRoleAction View = "role-action"
	ViewToast      View = "toast"
)

const (
	DefaultLock          = 1500 * time.Millisecond
	DefaultToastDuration = 3 * time.Second
)

var (
	ErrNotActing     = errors.New("not in role action")
	ErrNotSelectable = errors.New("position not selectable")
	ErrCannotSubmit  = errors.New("submission not allowed")
	ErrNoToast       = errors.New("no result to dismiss")
	ErrNoSeerChoice  = errors.New("acting role has no seer mode")
)

// Submitter sends a night action to the engine.
type Submitter func(ctx context.Context, kind models.ActionKind, targets []models.Position) (models.ActionResult, error)

// Config holds the controller's fixed intervals.
type Config struct {
	// Lock is how long submission stays disabled after a turn starts.
	Lock time.Duration
	// ToastDuration is how long a non-reveal result stays up.
	ToastDuration time.Duration
}

// Snapshot is what the night view renders.
type Snapshot struct {
	View       View
	Spec       ActionSpec
	SeerMode   SeerMode
	Selection  []models.Position
	Locked     bool
	Submitting bool
	CanSubmit  bool
	Result     *models.ActionResult
	Err        error

	Acted        bool
	StartingRole models.RoleID
	Allies       []uuid.UUID
	Step         int
	Total        int
}

// Controller is the per-participant night view machine.
type Controller struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	cfg    Config
	self   uuid.UUID
	submit Submitter

	participants []models.Participant
	last         models.PrivateViewState
	inNight      bool
	epoch        uint64

	view       View
	prevTurn   bool
	acted      bool
	nightRole  models.RoleID
	seerMode   SeerMode
	spec       ActionSpec
	selection  []models.Position
	locked     bool
	submitting bool
	result     *models.ActionResult
	err        error

	lock  *timerslot.Slot
	toast *timerslot.Slot

	listeners []func(Snapshot)
}

// NewController creates a controller in the activity view.
func NewController(clock clockwork.Clock, self uuid.UUID, submit Submitter, cfg Config) *Controller {
	if cfg.Lock <= 0 {
		cfg.Lock = DefaultLock
	}
	if cfg.ToastDuration <= 0 {
		cfg.ToastDuration = DefaultToastDuration
	}
	return &Controller{
		clock:  clock,
		cfg:    cfg,
		self:   self,
		submit: submit,
		view:   ViewActivity,
		lock:   timerslot.New(clock, "night-lock"),
		toast:  timerslot.New(clock, "night-toast"),
	}
}

// OnChange registers fn to receive a snapshot after every change.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// SetParticipants updates who can be targeted.
func (c *Controller) SetParticipants(participants []models.Participant) {
	c.mu.Lock()
	c.participants = append([]models.Participant(nil), participants...)
	if c.view == ViewRoleAction {
		c.spec, _ = SpecFor(c.nightRole, c.self, c.participants, c.seerMode)
	}
	snap, ls := c.snapshotLocked(), c.listenersLocked()
	c.mu.Unlock()
	emit(ls, snap)
}

// Apply feeds a freshly fetched private view. Only a false to true change of
// "is my turn" opens the action surface, and never once this participant has
// acted this night.
func (c *Controller) Apply(state models.PrivateViewState) {
	c.mu.Lock()
	c.last = state

	if state.Phase != models.PhaseNight {
		if c.inNight {
			log.Debug().Str("phase", string(state.Phase)).Msg("night over, resetting controller")
			c.resetLocked()
		}
		snap, ls := c.snapshotLocked(), c.listenersLocked()
		c.mu.Unlock()
		emit(ls, snap)
		return
	}
	c.inNight = true
	if len(state.PrivateResults) > 0 {
		c.acted = true
	}

	turn := state.IsMyTurn
	rising := turn && !c.prevTurn
	c.prevTurn = turn

	switch {
	case rising && !c.acted && c.view == ViewActivity:
		if spec, ok := SpecFor(state.NightRole, c.self, c.participants, SeerOnePlayer); ok {
			c.enterRoleAction(state.NightRole, spec)
			log.Info().Str("role", string(state.NightRole)).Int("step", state.NightStep).Msg("turn started")
		} else {
			log.Warn().Str("role", string(state.NightRole)).Msg("turn started for role without night action")
		}
	case rising && c.acted:
		log.Debug().Msg("ignoring turn signal, already acted")
	case !turn && c.view == ViewRoleAction && !c.submitting:
		c.exitRoleAction()
		c.view = ViewActivity
	}

	snap, ls := c.snapshotLocked(), c.listenersLocked()
	c.mu.Unlock()
	emit(ls, snap)
}

func (c *Controller) enterRoleAction(role models.RoleID, spec ActionSpec) {
	c.view = ViewRoleAction
	c.nightRole = role
	c.seerMode = SeerOnePlayer
	c.spec = spec
	c.selection = nil
	c.result = nil
	c.err = nil
	c.locked = true
	c.lock.Schedule(c.cfg.Lock, c.onUnlock)
}

func (c *Controller) exitRoleAction() {
	c.lock.Cancel()
	c.locked = false
	c.selection = nil
}

func (c *Controller) enterToast(res models.ActionResult) {
	c.view = ViewToast
	c.result = &res
	if !res.IsReveal() {
		c.toast.Schedule(c.cfg.ToastDuration, c.onToastExpire)
	}
}

func (c *Controller) exitToast() {
	c.toast.Cancel()
	c.view = ViewActivity
}

func (c *Controller) onUnlock(gen uint64) {
	c.mu.Lock()
	if !c.lock.Claim(gen) {
		c.mu.Unlock()
		return
	}
	c.locked = false
	snap, ls := c.snapshotLocked(), c.listenersLocked()
	c.mu.Unlock()
	emit(ls, snap)
}

func (c *Controller) onToastExpire(gen uint64) {
	c.mu.Lock()
	if !c.toast.Claim(gen) || c.view != ViewToast {
		c.mu.Unlock()
		return
	}
	c.exitToast()
	snap, ls := c.snapshotLocked(), c.listenersLocked()
	c.mu.Unlock()
	emit(ls, snap)
}

// Select toggles a target. Once the required count is reached further new
// targets are ignored.
func (c *Controller) Select(pos models.Position) error {
	c.mu.Lock()
	if c.view != ViewRoleAction || c.submitting {
		c.mu.Unlock()
		return ErrNotActing
	}
	if !c.spec.Allows(pos) {
		c.mu.Unlock()
		return ErrNotSelectable
	}
	idx := -1
	for i, p := range c.selection {
		if p == pos {
			idx = i
			break
		}
	}
	switch {
	case idx >= 0:
		c.selection = append(c.selection[:idx:idx], c.selection[idx+1:]...)
	case len(c.selection) < c.spec.Required:
		c.selection = append(c.selection, pos)
	default:
		c.mu.Unlock()
		return nil
	}
	snap, ls := c.snapshotLocked(), c.listenersLocked()
	c.mu.Unlock()
	emit(ls, snap)
	return nil
}

// SetSeerMode switches the seer between one player and two center cards,
// clearing the selection.
func (c *Controller) SetSeerMode(mode SeerMode) error {
	c.mu.Lock()
	if c.view != ViewRoleAction || c.submitting {
		c.mu.Unlock()
		return ErrNotActing
	}
	if c.nightRole != roles.Seer {
		c.mu.Unlock()
		return ErrNoSeerChoice
	}
	c.seerMode = mode
	c.spec, _ = SpecFor(c.nightRole, c.self, c.participants, mode)
	c.selection = nil
	snap, ls := c.snapshotLocked(), c.listenersLocked()
	c.mu.Unlock()
	emit(ls, snap)
	return nil
}

// CanSubmit reports whether Submit would be accepted now.
func (c *Controller) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canSubmitLocked()
}

func (c *Controller) canSubmitLocked() bool {
	return c.view == ViewRoleAction &&
		!c.locked &&
		!c.submitting &&
		len(c.selection) == c.spec.Required
}

// Submit sends the selected action. On failure the controller stays in
// role-action with the selection intact and the error recorded.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if !c.canSubmitLocked() {
		c.mu.Unlock()
		return ErrCannotSubmit
	}
	c.submitting = true
	c.err = nil
	kind := c.spec.Kind
	targets := append([]models.Position(nil), c.selection...)
	epoch := c.epoch
	snap, ls := c.snapshotLocked(), c.listenersLocked()
	c.mu.Unlock()
	emit(ls, snap)

	res, err := c.submit(ctx, kind, targets)

	c.mu.Lock()
	c.submitting = false
	if epoch != c.epoch {
		c.mu.Unlock()
		log.Debug().Msg("discarding night action response from a previous night")
		return err
	}
	if err != nil {
		c.err = err
		snap, ls := c.snapshotLocked(), c.listenersLocked()
		c.mu.Unlock()
		log.Warn().Err(err).Str("kind", string(kind)).Msg("night action failed")
		emit(ls, snap)
		return err
	}
	c.acted = true
	c.exitRoleAction()
	c.enterToast(res)
	snap, ls = c.snapshotLocked(), c.listenersLocked()
	c.mu.Unlock()
	log.Info().Str("kind", string(kind)).Str("result", string(res.Kind)).Msg("night action accepted")
	emit(ls, snap)
	return nil
}

// Dismiss acknowledges the result and returns to the activity view.
func (c *Controller) Dismiss() error {
	c.mu.Lock()
	if c.view != ViewToast {
		c.mu.Unlock()
		return ErrNoToast
	}
	c.exitToast()
	snap, ls := c.snapshotLocked(), c.listenersLocked()
	c.mu.Unlock()
	emit(ls, snap)
	return nil
}

// Reset returns to the activity view and forgets this night.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.resetLocked()
	snap, ls := c.snapshotLocked(), c.listenersLocked()
	c.mu.Unlock()
	emit(ls, snap)
}

func (c *Controller) resetLocked() {
	c.lock.Cancel()
	c.toast.Cancel()
	c.epoch++
	c.inNight = false
	c.view = ViewActivity
	c.prevTurn = false
	c.acted = false
	c.nightRole = ""
	c.spec = ActionSpec{}
	c.selection = nil
	c.locked = false
	c.result = nil
	c.err = nil
}

// View returns the current state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Snapshot returns the full render state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		View:         c.view,
		Spec:         c.spec,
		SeerMode:     c.seerMode,
		Selection:    append([]models.Position(nil), c.selection...),
		Locked:       c.locked,
		Submitting:   c.submitting,
		CanSubmit:    c.canSubmitLocked(),
		Result:       c.result,
		Err:          c.err,
		Acted:        c.acted,
		StartingRole: c.last.StartingRole,
		Step:         c.last.NightStep,
		Total:        c.last.NightTotal,
	}
	if c.last.StartingRole == roles.Werewolf && len(c.last.WerewolfAllies) > 1 {
		s.Allies = append([]uuid.UUID(nil), c.last.WerewolfAllies...)
	}
	return s
}

func (c *Controller) listenersLocked() []func(Snapshot) {
	return append([]func(Snapshot){}, c.listeners...)
}

func emit(listeners []func(Snapshot), s Snapshot) {
	for _, fn := range listeners {
		fn(s)
	}
}
