package rpc

import (
	"context"
	"errors"
	"time"

	"github.com/stashapp/stash/pkg/plugin/common"

	"github.com/smegmarip/stash-emojify-plugin/internal/log"
)

// errCancelled is returned when a task is stopped part way
var errCancelled = errors.New("operation cancelled")

// NewService creates a new RPC service instance
func NewService() *Service {
	return &Service{}
}

// Stop handles graceful shutdown of the plugin
func (s *Service) Stop(input struct{}, output *bool) error {
	log.Info("Stopping Emojify plugin...")
	s.mu.Lock()
	s.stopping = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	*output = true
	return nil
}

// begin returns the context for a task run; Stop cancels it
func (s *Service) begin() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.stopping = false
	s.cancel = cancel
	s.mu.Unlock()
	return ctx
}

// end releases the task context
func (s *Service) end() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
}

func (s *Service) isStopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping
}

// applyCooldown pauses between batches; returns early when ctx is cancelled
func (s *Service) applyCooldown(ctx context.Context) error {
	if s.config.CooldownSeconds <= 0 {
		return nil
	}

	log.Infof("Cooling down for %d seconds to prevent hardware stress...", s.config.CooldownSeconds)
	select {
	case <-time.After(time.Duration(s.config.CooldownSeconds) * time.Second):
		return nil
	case <-ctx.Done():
		return errCancelled
	}
}

// errorOutput creates an error output for RPC response
func (s *Service) errorOutput(output *common.PluginOutput, err error) error {
	errStr := err.Error()
	*output = common.PluginOutput{
		Error: &errStr,
	}
	return nil
}
