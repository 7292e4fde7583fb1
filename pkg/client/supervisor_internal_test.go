package client

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestSupervisor_Heartbeat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HeartbeatTimeoutCount = 3
	s := newSupervisor(clock.NewMock(), cfg)

	assert.Nil(t, s.heartbeatC())
	s.connected()
	assert.NotNil(t, s.heartbeatC())

	assert.False(t, s.beat())
	assert.False(t, s.beat())
	s.ack()
	assert.False(t, s.beat())
	assert.False(t, s.beat())
	assert.True(t, s.beat())

	s.stop()
	assert.Nil(t, s.heartbeatC())
}

func TestSupervisor_Attempts(t *testing.T) {
	tests := []struct {
		name    string
		max     int
		failing int
		want    bool
	}{
		{"below limit", 3, 2, false},
		{"at limit", 3, 3, true},
		{"unlimited", 0, 50, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.MaxReconnectCount = tt.max
			s := newSupervisor(clock.NewMock(), cfg)

			var exhausted bool
			for i := 0; i < tt.failing; i++ {
				exhausted = s.attemptFailed()
			}
			assert.Equal(t, tt.want, exhausted)

			s.connected()
			assert.Zero(t, s.attempts)
		})
	}
}

func TestSupervisor_ReconnectDelay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReconnectInterval = 2 * time.Second
	cfg.MaxReconnectInterval = 2 * time.Second
	mock := clock.NewMock()
	s := newSupervisor(mock, cfg)

	assert.Nil(t, s.reconnectC())
	assert.Equal(t, 2*time.Second, s.scheduleReconnect())
	assert.Equal(t, 2*time.Second, s.scheduleReconnect())

	c := s.reconnectC()
	mock.Add(2 * time.Second)
	select {
	case <-c:
	default:
		t.Fatal("reconnect timer did not fire")
	}
	s.reconnectFired()
	assert.Nil(t, s.reconnectC())
}

func TestRequestCommand_ResetOnRelease(t *testing.T) {
	cmd := newHeartbeatCommand()
	cmd.msgID = 7
	cmd.payload = []byte("x")
	cmd.reset()
	assert.Equal(t, requestCommand{}, *cmd)
	cmd.release()
}
