package main

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type recordingServer struct {
	reaperStopped func() bool
	stoppedEarly  bool
}

func (s *recordingServer) Shutdown(context.Context) error {
	s.stoppedEarly = s.reaperStopped()
	return nil
}

func TestDrain_StopsReaperAfterServerShutdown(t *testing.T) {
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	workers.Add(1)
	reaped := false
	go func() {
		defer workers.Done()
		<-reaperCtx.Done()
		reaped = true
	}()

	srv := &recordingServer{reaperStopped: func() bool { return reaperCtx.Err() != nil }}
	drain(context.Background(), srv, stopReaper, &workers, zap.NewNop())

	assert.False(t, srv.stoppedEarly)
	assert.True(t, reaped)
}
