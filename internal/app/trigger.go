package app

import (
	"context"
	"strings"
)

// Trigger asks the store backend to start a build run.
func (s Service) Trigger(ctx context.Context, req TriggerRequest) error {
	event := strings.TrimSpace(req.Event)
	if event == "" {
		event = DefaultEvent
	}
	return s.Store.Trigger(ctx, event)
}
