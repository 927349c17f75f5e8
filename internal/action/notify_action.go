package action

import (
	"context"
	"strings"

	"github.com/haatos/conveyor/internal/notify"
	"github.com/haatos/conveyor/internal/pipeline"
)

// NotifyAction sends a message through the notification sink. It never
// fails the stage or hook that invoked it.
type NotifyAction struct {
	notifier *notify.Notifier
	Channel  string
	Message  string
	Severity notify.Severity
}

func NewNotifyFactory(notifier *notify.Notifier) Factory {
	return func(params map[string]string) (pipeline.Action, error) {
		channel, err := requireParam(params, "channel")
		if err != nil {
			return nil, err
		}
		message, err := requireParam(params, "message")
		if err != nil {
			return nil, err
		}
		severity := notify.Severity(params["severity"])
		if severity == "" {
			severity = notify.SeverityInfo
		}
		return &NotifyAction{
			notifier: notifier,
			Channel:  channel,
			Message:  message,
			Severity: severity,
		}, nil
	}
}

func (a *NotifyAction) Invoke(
	ctx context.Context,
	rc *pipeline.RunContext,
) (*pipeline.ActionResult, error) {
	text := a.Message
	text = strings.ReplaceAll(text, "{branch}", rc.Branch)
	text = strings.ReplaceAll(text, "{build_id}", rc.BuildID)
	a.notifier.Notify(ctx, a.Channel, text, a.Severity)
	return &pipeline.ActionResult{Status: pipeline.ActionSuccess}, nil
}
