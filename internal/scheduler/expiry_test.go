package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockExpirer struct {
	mock.Mock
}

func (m *mockExpirer) ExpireDue(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestRunOnceReportsSweep(t *testing.T) {
	log, hook := test.NewNullLogger()
	expirer := new(mockExpirer)
	expirer.On("ExpireDue", mock.Anything).Return(3, nil).Once()

	s := NewExpirySweeper(expirer, "@every 1m", time.Second, log)
	assert.Equal(t, 3, s.RunOnce(context.Background()))

	expirer.AssertExpectations(t)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, 3, hook.LastEntry().Data["failed_campaigns"])
}

func TestRunOnceLogsErrors(t *testing.T) {
	log, hook := test.NewNullLogger()
	expirer := new(mockExpirer)
	expirer.On("ExpireDue", mock.Anything).Return(1, errors.New("store unavailable")).Once()

	s := NewExpirySweeper(expirer, "@every 1m", 0, log)
	assert.Equal(t, 1, s.RunOnce(context.Background()))

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestRunOnceAppliesTimeout(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	expirer := new(mockExpirer)
	expirer.On("ExpireDue", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	})).Return(0, nil).Once()

	s := NewExpirySweeper(expirer, "@every 1m", time.Minute, log)
	s.RunOnce(context.Background())
	expirer.AssertExpectations(t)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	log, _ := test.NewNullLogger()
	s := NewExpirySweeper(new(mockExpirer), "not a schedule", 0, log)
	assert.Error(t, s.Start(context.Background()))
}

func TestStartStop(t *testing.T) {
	log, _ := test.NewNullLogger()
	s := NewExpirySweeper(new(mockExpirer), "0 0 * * * *", 0, log)

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))
	s.Stop()
	s.Stop()
}
