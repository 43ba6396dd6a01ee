package statesync

import (
	"context"

	"github.com/google/uuid"

	"github.com/roscoeevans/Skulking/go/internal/midnight/engine"
	"github.com/roscoeevans/Skulking/go/internal/models"
)

// The calls below go straight to the engine. Errors come back unchanged so
// the initiating surface can show them inline.

func (c *Client) ListParticipants(ctx context.Context) ([]models.Participant, error) {
	return c.eng.ListParticipants(ctx)
}

func (c *Client) ConfigureSession(ctx context.Context, cfg engine.SessionConfig) error {
	return c.mutate(c.eng.ConfigureSession(ctx, cfg))
}

// MarkReady marks the bound participant ready.
func (c *Client) MarkReady(ctx context.Context) error {
	return c.mutate(c.eng.MarkReady(ctx, c.Participant()))
}

// SubmitNightAction submits for the bound participant.
func (c *Client) SubmitNightAction(ctx context.Context, kind models.ActionKind, targets []models.Position) (models.ActionResult, error) {
	res, err := c.eng.SubmitNightAction(ctx, engine.NightAction{
		ParticipantID: c.Participant(),
		Kind:          kind,
		Targets:       targets,
	})
	return res, c.mutate(err)
}

func (c *Client) SkipCurrentStep(ctx context.Context) error {
	return c.mutate(c.eng.SkipCurrentStep(ctx))
}

func (c *Client) BeginVoting(ctx context.Context) error {
	return c.mutate(c.eng.BeginVoting(ctx))
}

// SubmitVote votes for target on behalf of the bound participant.
func (c *Client) SubmitVote(ctx context.Context, target uuid.UUID) error {
	return c.mutate(c.eng.SubmitVote(ctx, c.Participant(), target))
}

func (c *Client) EndVoting(ctx context.Context) error {
	return c.mutate(c.eng.EndVoting(ctx))
}

func (c *Client) Rematch(ctx context.Context) error {
	return c.mutate(c.eng.Rematch(ctx))
}

func (c *Client) mutate(err error) error {
	if err == nil {
		c.afterMutation()
	}
	return err
}
