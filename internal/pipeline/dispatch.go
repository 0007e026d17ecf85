package pipeline

import (
	"context"

	"github.com/tphakala/screamguard/internal/errors"
	"github.com/tphakala/screamguard/internal/location"
	"github.com/tphakala/screamguard/internal/logger"
	"github.com/tphakala/screamguard/internal/notification"
)

// Escalation outcome labels.
const (
	escalationDelivered = "delivered"
	escalationPartial   = "partial"
	escalationFailed    = "failed"
)

// Dispatch confirms a pending candidate and sends it through every enabled
// channel. The candidate is consumed: a second call with the same id, or a
// call after the candidate expired, returns a not-found error.
func (p *Pipeline) Dispatch(ctx context.Context, candidateID string) (*EscalationEvent, error) {
	if err := p.requireDispatcher(); err != nil {
		return nil, err
	}

	c, ok := p.candidates.take(candidateID)
	p.metrics.SetPendingCandidates(p.candidates.Len())
	if !ok {
		return nil, errors.Newf("escalation candidate %q not found or expired", candidateID).
			Component("pipeline").
			Category(errors.CategoryNotFound).
			Context("candidate_id", candidateID).
			Build()
	}

	alert := &notification.Alert{
		CandidateID:     c.ID,
		Location:        c.Location,
		EmergencyNumber: c.EmergencyNumber,
		TriggeredAt:     c.TriggeredAt,
		Count:           c.Count,
	}
	report := p.dispatcher.Dispatch(ctx, alert)

	status := escalationStatus(report)
	p.metrics.RecordEscalation(status)
	p.log.WithContext(ctx).Info("escalation dispatched",
		logger.String("candidate_id", c.ID),
		logger.String("status", status),
		logger.Any("succeeded", report.Succeeded()))

	return &EscalationEvent{
		CandidateID:  c.ID,
		Location:     c.Location,
		Results:      report,
		DispatchedAt: p.now(),
	}, nil
}

// DispatchLocation sends an operator supplied location through a single
// channel without a pending candidate.
func (p *Pipeline) DispatchLocation(ctx context.Context, channel string, loc location.Location) (notification.Result, error) {
	if err := p.requireDispatcher(); err != nil {
		return notification.Result{}, err
	}
	alert := &notification.Alert{
		Location:        loc,
		EmergencyNumber: p.emergencyNumber,
		TriggeredAt:     p.now(),
	}
	return p.dispatcher.DispatchChannel(ctx, channel, alert)
}

func (p *Pipeline) requireDispatcher() error {
	if p.dispatcher == nil {
		return errors.Newf("no notification dispatcher configured").
			Component("pipeline").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

func escalationStatus(report notification.Report) string {
	switch {
	case report.AllSucceeded():
		return escalationDelivered
	case len(report.Succeeded()) > 0:
		return escalationPartial
	default:
		return escalationFailed
	}
}
