package notification

import (
	"context"
	"time"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/tphakala/screamguard/internal/privacy"
)

// SMSSender sends one text message and returns the provider's message id.
type SMSSender interface {
	SendSMS(ctx context.Context, from, to, body string) (string, error)
}

// CallPlacer places one voice call reading twiml and returns the call id.
type CallPlacer interface {
	PlaceCall(ctx context.Context, from, to, twiml string) (string, error)
}

// TwilioClient sends SMS and places calls through the Twilio REST API.
type TwilioClient struct {
	rest *twilio.RestClient
}

// NewTwilioClient creates a client authenticated with the account SID and
// auth token. Every request is bounded by timeout.
func NewTwilioClient(accountSID, authToken string, timeout time.Duration) *TwilioClient {
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	if timeout > 0 {
		rest.SetTimeout(timeout)
	}
	return &TwilioClient{rest: rest}
}

// SendSMS implements SMSSender.
func (c *TwilioClient) SendSMS(ctx context.Context, from, to, body string) (string, error) {
	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(body)

	resp, err := callWithContext(ctx, func() (*openapi.ApiV2010Message, error) {
		return c.rest.Api.CreateMessage(params)
	})
	if err != nil {
		return "", privacy.WrapError(err)
	}
	return deref(resp.Sid), nil
}

// PlaceCall implements CallPlacer.
func (c *TwilioClient) PlaceCall(ctx context.Context, from, to, twiml string) (string, error) {
	params := &openapi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetTwiml(twiml)

	resp, err := callWithContext(ctx, func() (*openapi.ApiV2010Call, error) {
		return c.rest.Api.CreateCall(params)
	})
	if err != nil {
		return "", privacy.WrapError(err)
	}
	return deref(resp.Sid), nil
}

// callWithContext runs fn, which cannot be cancelled itself, and returns
// early when ctx is done. fn keeps running until its own client timeout.
func callWithContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
