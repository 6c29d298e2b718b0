// Package services – BotService
//
// This file implements BotService, the control surface of the bot ingestion
// loop. The loop itself lives in the ingest package; this service only
// starts, stops and reports on its supervisor.
package services

import (
	"context"

	"github.com/tbourn/go-recorder-backend/internal/ingest"
)

// BotSupervisor is the lifecycle contract of the bot loop supervisor.
type BotSupervisor interface {
	Start(ctx context.Context) bool
	Stop()
	Status() ingest.BotStatus
}

// BotService starts and stops the bot loop. A nil Supervisor means no bot
// token was configured.
type BotService struct {
	Supervisor BotSupervisor
}

// Start launches the loop under ctx, which must outlive the caller's
// request. started is false when the loop was already running.
func (s *BotService) Start(ctx context.Context) (started bool, err error) {
	if s.Supervisor == nil {
		return false, ErrBotDisabled
	}
	return s.Supervisor.Start(ctx), nil
}

// Stop cancels the loop and waits for it to exit.
func (s *BotService) Stop() error {
	if s.Supervisor == nil {
		return ErrBotDisabled
	}
	s.Supervisor.Stop()
	return nil
}

// Status reports the loop state. A disabled bot reports as stopped.
func (s *BotService) Status() ingest.BotStatus {
	if s.Supervisor == nil {
		return ingest.BotStatus{State: ingest.StateStopped.String()}
	}
	return s.Supervisor.Status()
}
