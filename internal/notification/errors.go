package notification

import (
	"github.com/tphakala/screamguard/internal/errors"
)

func misconfigured(channel, reason string) error {
	return errors.Newf("%s", reason).
		Component("notification").
		Category(errors.CategoryChannelMisconfigured).
		Context("channel", channel).
		Build()
}

func sendFailed(channel string, err error) error {
	return errors.New(err).
		Component("notification").
		Category(errors.CategoryChannelSend).
		Context("channel", channel).
		Build()
}
