package action

import (
	"context"

	"go.uber.org/zap"

	"github.com/gridforge/skirmish/internal/errors"
	"github.com/gridforge/skirmish/internal/game/encounter"
)

// Pipeline executes action requests. It holds no per-encounter state of its
// own: every execution locks the target encounter once, validates the whole
// request against that frozen state, and only then mutates, so a rejected
// action leaves the encounter exactly as it was.
type Pipeline struct {
	registry *encounter.Registry
	logger   *zap.Logger
}

// NewPipeline creates a Pipeline over the given registry.
// Precondition: registry and logger are non-nil.
func NewPipeline(registry *encounter.Registry, logger *zap.Logger) *Pipeline {
	return &Pipeline{registry: registry, logger: logger.Named("action")}
}

// Execute resolves one action request.
//
// Validation order: encounter exists and is active; the actor exists, is
// alive, is the current participant, and has the required action-economy
// slot unspent; action-specific parameters are structurally complete. Any
// failure aborts before mutation.
//
// Postcondition: On success the result carries every event the action
// produced, including reaction attacks it provoked. In-fiction negative
// outcomes are results, not errors.
func (pl *Pipeline) Execute(_ context.Context, req Request) (*Result, error) {
	if _, err := ParseType(string(req.Type)); err != nil {
		return nil, err
	}
	enc, err := pl.registry.Get(req.EncounterID)
	if err != nil {
		return nil, err
	}

	enc.Lock()
	defer enc.Unlock()

	if enc.State() == encounter.StateEnded {
		return nil, errors.Conflictf("encounter %q has ended", req.EncounterID)
	}
	actor, err := enc.Find(req.Actor)
	if err != nil {
		return nil, err
	}
	if actor.IsDead() {
		return nil, errors.RuleViolationf("participant %q is dead", actor.ID)
	}
	if enc.Current().ID != actor.ID {
		return nil, errors.RuleViolationf("it is not %q's turn", actor.ID).
			WithMeta("current", enc.Current().ID)
	}

	if enc.SettleLethalConditions(actor) {
		return nil, errors.RuleViolationf("participant %q has died of its conditions", actor.ID)
	}
	eff := enc.EffectiveStats(actor)
	if req.Type.ConsumesAction() {
		if eff.ActionsPrevented {
			return nil, errors.RuleViolationf("participant %q cannot take actions", actor.ID)
		}
		if actor.ActionUsed {
			return nil, errors.Conflictf("participant %q has already used its action this turn", actor.ID)
		}
	}

	res := &Result{
		EncounterID: req.EncounterID,
		Actor:       actor.ID,
		Type:        req.Type,
		Round:       enc.Round(),
	}

	switch req.Type {
	case TypeAttack:
		err = pl.executeAttack(enc, actor, req, res)
	case TypeMove:
		err = pl.executeMove(enc, actor, req, res)
	case TypeCastSpell:
		err = pl.executeSpell(enc, actor, req, res)
	case TypeGrapple, TypeShove:
		err = pl.executeContest(enc, actor, req, res)
	case TypeDash, TypeDisengage, TypeDodge:
		err = pl.executeStance(enc, actor, req, res)
	case TypeHelp, TypeHide, TypeReady, TypeUseObject, TypeImprovise, TypeCustom:
		err = pl.executeSimple(enc, actor, req, res)
	}
	if err != nil {
		return nil, err
	}

	if req.Type.ConsumesAction() {
		actor.ActionUsed = true
	}
	pl.logger.Info("action executed",
		zap.String("encounter_id", req.EncounterID),
		zap.String("actor", actor.ID),
		zap.String("type", string(req.Type)),
		zap.Int("events", len(res.Events)))
	return res, nil
}
