// Package metrics counts session lifecycle outcomes with OpenTelemetry
// instruments and exposes the cumulative totals for the HTTP surface.
package metrics

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/storefront/internal/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/dmitrijs2005/storefront/session"

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeInvalid  = "invalid"
	OutcomeRejected = "rejected"
	OutcomeRevoked  = "revoked"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Outcome classifies the error returned by a session operation.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, common.ErrTokenRevoked):
		return OutcomeRevoked
	case errors.Is(err, common.ErrValidation):
		return OutcomeInvalid
	case errors.Is(err, common.ErrorAlreadyExists), errors.Is(err, common.ErrVersionConflict):
		return OutcomeConflict
	case errors.Is(err, common.ErrInvalidCredentials), errors.Is(err, common.ErrorUnauthorized):
		return OutcomeRejected
	}
	return OutcomeError
}

type SessionMetrics struct {
	signups   metric.Int64Counter
	logins    metric.Int64Counter
	refreshes metric.Int64Counter
}

func NewSessionMetrics(meter metric.Meter) (*SessionMetrics, error) {
	var m SessionMetrics
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		help string
	}{
		{&m.signups, "session.signups", "Signup attempts by outcome."},
		{&m.logins, "session.logins", "Login attempts by outcome."},
		{&m.refreshes, "session.refreshes", "Refresh attempts by outcome."},
	}
	for _, c := range counters {
		ins, err := meter.Int64Counter(c.name, metric.WithDescription(c.help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", c.name, err)
		}
		*c.dst = ins
	}
	return &m, nil
}

// Nop returns metrics that discard every measurement.
func Nop() *SessionMetrics {
	m, _ := NewSessionMetrics(noop.NewMeterProvider().Meter(meterName))
	return m
}

func outcomeAttr(err error) metric.AddOption {
	return metric.WithAttributes(attribute.String("outcome", Outcome(err)))
}

func (m *SessionMetrics) Signup(ctx context.Context, err error) {
	m.signups.Add(ctx, 1, outcomeAttr(err))
}

func (m *SessionMetrics) Login(ctx context.Context, err error) {
	m.logins.Add(ctx, 1, outcomeAttr(err))
}

func (m *SessionMetrics) Refresh(ctx context.Context, err error) {
	m.refreshes.Add(ctx, 1, outcomeAttr(err))
}
