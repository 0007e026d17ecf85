package notification

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/screamguard/internal/errors"
	"github.com/tphakala/screamguard/internal/observability/metrics"
)

func TestDispatch_ChannelsAreIndependent(t *testing.T) {
	sms := &fakeSMSSender{fail: map[string]bool{"+1001": true}}
	mailer := &fakeMailer{}

	d := NewDispatcher(DispatcherConfig{},
		NewSMSChannel(validSMSConfig("+1001"), sms, nil, nil),
		NewEmailChannel(validEmailConfig(), mailer, nil, nil),
		NewCallChannel(CallConfig{Simulate: true, Number: "100"}, nil, nil, nil),
	)

	report := d.Dispatch(t.Context(), testAlert())

	require.Len(t, report, 3)
	assert.False(t, report[ChannelSMS].Success)
	assert.NotEmpty(t, report[ChannelSMS].Reason)
	assert.True(t, report[ChannelEmail].Success)
	assert.True(t, report[ChannelCall].Success)
	assert.Equal(t, 1, mailer.calls)
	assert.False(t, report.AllSucceeded())
	assert.ElementsMatch(t, []string{ChannelEmail, ChannelCall}, report.Succeeded())
}

func TestDispatch_AllSucceed(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{},
		NewSMSChannel(validSMSConfig("+1001", "+1002", "+1003"), &fakeSMSSender{fail: map[string]bool{"+1001": true, "+1003": true}}, nil, nil),
		NewEmailChannel(validEmailConfig(), &fakeMailer{}, nil, nil),
		NewCallChannel(CallConfig{Simulate: true, Number: "100"}, nil, nil, nil),
	)

	report := d.Dispatch(t.Context(), testAlert())
	assert.True(t, report.AllSucceeded(), "%+v", report)
}

func TestDispatch_MisconfiguredChannelDoesNotBlockSiblings(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{},
		NewSMSChannel(SMSConfig{}, nil, nil, nil),
		NewEmailChannel(EmailConfig{}, nil, nil, nil),
		NewCallChannel(CallConfig{Simulate: true}, nil, nil, nil),
	)

	report := d.Dispatch(t.Context(), testAlert())
	assert.Equal(t, "Twilio credentials not configured properly", report[ChannelSMS].Reason)
	assert.Equal(t, "Email not configured properly", report[ChannelEmail].Reason)
	assert.True(t, report[ChannelCall].Success)
}

func TestDispatch_PerChannelTimeout(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.NewNotificationMetrics(reg)
	require.NoError(t, err)

	slow := funcChannel{name: "slow", send: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	fast := funcChannel{name: "fast", send: func(context.Context) error { return nil }}

	d := NewDispatcher(DispatcherConfig{Timeout: 50 * time.Millisecond, Metrics: m}, slow, fast)

	start := time.Now()
	report := d.Dispatch(t.Context(), testAlert())

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, report["slow"].Success)
	assert.Contains(t, report["slow"].Reason, "deadline exceeded")
	assert.True(t, report["fast"].Success)

	assert.InDelta(t, 1, testutil.ToFloat64(m.DeliveriesTotal.WithLabelValues("slow", metrics.StatusTimeout)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DeliveriesTotal.WithLabelValues("fast", metrics.StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DispatchTotal), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.DispatchActive), 0)
}

func TestDispatch_FailureDoesNotCancelSiblings(t *testing.T) {
	started := make(chan struct{})
	failing := funcChannel{name: "failing", send: func(context.Context) error {
		<-started
		return errors.NewStd("boom")
	}}
	waiting := funcChannel{name: "waiting", send: func(ctx context.Context) error {
		close(started)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
			return nil
		}
	}}

	report := NewDispatcher(DispatcherConfig{Timeout: 5 * time.Second}, failing, waiting).
		Dispatch(t.Context(), testAlert())

	assert.False(t, report["failing"].Success)
	assert.True(t, report["waiting"].Success)
}

func TestDispatch_PanickingChannel(t *testing.T) {
	bad := funcChannel{name: "bad", send: func(context.Context) error { panic("nil map") }}
	good := funcChannel{name: "good", send: func(context.Context) error { return nil }}

	report := NewDispatcher(DispatcherConfig{}, bad, good).Dispatch(t.Context(), testAlert())
	assert.False(t, report["bad"].Success)
	assert.Contains(t, report["bad"].Reason, "panicked")
	assert.True(t, report["good"].Success)
}

func TestDispatchChannel(t *testing.T) {
	mailer := &fakeMailer{}
	d := NewDispatcher(DispatcherConfig{},
		NewEmailChannel(validEmailConfig(), mailer, nil, nil),
		NewCallChannel(CallConfig{Simulate: true}, nil, nil, nil),
	)

	res, err := d.DispatchChannel(t.Context(), ChannelEmail, testAlert())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, mailer.calls)

	_, err = d.DispatchChannel(t.Context(), ChannelSMS, testAlert())
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestNewDispatcher_DuplicateNameReplaces(t *testing.T) {
	first := funcChannel{name: "x", send: func(context.Context) error { return errors.NewStd("first") }}
	second := funcChannel{name: "x", send: func(context.Context) error { return nil }}

	d := NewDispatcher(DispatcherConfig{}, first, nil, second)
	assert.Equal(t, []string{"x"}, d.Channels())
	assert.True(t, d.Dispatch(t.Context(), testAlert())["x"].Success)
}

func TestReport(t *testing.T) {
	assert.False(t, Report{}.AllSucceeded())

	data, err := json.Marshal(Report{"sms": {Success: false, Reason: "r", Duration: 1500 * time.Millisecond}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"sms":{"success":false,"reason":"r","duration_ms":1500}}`, string(data))
}
