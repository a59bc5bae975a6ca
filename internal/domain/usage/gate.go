package usage

import (
	"context"
	"errors"
	"time"

	"buildadvisor/internal/domain/billing"
	"buildadvisor/internal/domain/profile"

	"golang.org/x/sync/errgroup"
)

// ProfileReader is the part of the Profile Mirror the gate needs.
type ProfileReader interface {
	Get(ctx context.Context, userID string) (*profile.UserProfile, error)
}

// CounterReader is the part of the Usage Ledger the gate needs.
type CounterReader interface {
	Read(ctx context.Context, userID string) (Counters, error)
}

// Decision is the gate's answer for one request, with the snapshot it was based on.
type Decision struct {
	Allow           bool
	Plan            billing.Plan
	Status          billing.Status
	HasActivePlan   bool
	TotalAnswers    int64
	FreeAnswersUsed int64
	RemainingFree   int64
	Limit           int64
	LastAnswerAt    *time.Time
}

// Gate admits or rejects a metered request.
//
// The decision is not serialized across requests: two concurrent requests
// from one free-tier user can both be admitted before either increments.
// The counters themselves stay exact because increments are relative.
type Gate struct {
	profiles ProfileReader
	counters CounterReader
}

func NewGate(profiles ProfileReader, counters CounterReader) *Gate {
	return &Gate{profiles: profiles, counters: counters}
}

func (g *Gate) Check(ctx context.Context, userID string) (Decision, error) {
	var (
		p *profile.UserProfile
		c Counters
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		got, err := g.profiles.Get(egCtx, userID)
		if err != nil {
			if errors.Is(err, profile.ErrNotFound) {
				return nil
			}
			return err
		}
		p = got
		return nil
	})
	eg.Go(func() error {
		got, err := g.counters.Read(egCtx, userID)
		if err != nil {
			return err
		}
		c = got
		return nil
	})
	if err := eg.Wait(); err != nil {
		return Decision{}, err
	}

	return decide(p, c), nil
}

func decide(p *profile.UserProfile, c Counters) Decision {
	d := Decision{
		HasActivePlan:   p.HasActivePlan(),
		TotalAnswers:    c.TotalAnswers,
		FreeAnswersUsed: c.FreeAnswersUsed,
		RemainingFree:   billing.RemainingFree(c.FreeAnswersUsed),
		Limit:           billing.FreeAnswerLimit,
		LastAnswerAt:    c.LastAnswer(),
	}
	d.Plan, _ = p.PlanValue()
	d.Status, _ = p.StatusValue()

	if d.HasActivePlan {
		d.Allow = true
	} else {
		d.Allow = c.FreeAnswersUsed < billing.FreeAnswerLimit
	}
	return d
}
