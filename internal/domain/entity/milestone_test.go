package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
)

func TestMilestone_WrongSourceStateLeavesDataUntouched(t *testing.T) {
	m := &Milestone{Status: valueobject.MilestoneStatusPending}

	err := m.Submit("работа", []string{"a.pdf"}, testNow, time.Hour)
	assert.ErrorIs(t, err, apperror.ErrInvalidMilestoneState)
	assert.Equal(t, valueobject.MilestoneStatusPending, m.Status)
	assert.Nil(t, m.Submission)
	assert.Nil(t, m.Countdown)
}

func TestMilestone_RevisionLoop(t *testing.T) {
	m := &Milestone{Status: valueobject.MilestoneStatusFunded}

	require.NoError(t, m.Submit("v1", nil, testNow, time.Hour))
	require.NoError(t, m.RequestRevision("поправьте цвета", testNow))
	assert.False(t, m.Countdown.Active)
	assert.NotNil(t, m.Countdown.CancelledAt)

	later := testNow.Add(time.Minute)
	require.NoError(t, m.Submit("v2", nil, later, time.Hour))
	assert.True(t, m.Countdown.Active)
	assert.Nil(t, m.Countdown.CancelledAt, "fresh submit re-arms the timer")
	assert.Equal(t, later.Add(time.Hour), m.Countdown.ExpiresAt)
}

func TestCountdown_CancelIsIdempotent(t *testing.T) {
	c := &Countdown{Active: true, StartedAt: testNow, ExpiresAt: testNow.Add(time.Hour)}

	assert.True(t, c.Cancel(testNow.Add(time.Minute)))
	assert.True(t, c.OnHold())
	first := *c.CancelledAt

	assert.False(t, c.Cancel(testNow.Add(2*time.Minute)))
	assert.Equal(t, first, *c.CancelledAt)

	expired := &Countdown{Active: true, StartedAt: testNow, ExpiresAt: testNow.Add(time.Hour)}
	assert.False(t, expired.Cancel(testNow.Add(2*time.Hour)))
	assert.False(t, expired.OnHold())
}

func TestMilestone_CountdownDue(t *testing.T) {
	m := &Milestone{Status: valueobject.MilestoneStatusFunded}
	require.NoError(t, m.Submit("готово", nil, testNow, time.Hour))

	assert.False(t, m.CountdownDue(testNow.Add(59*time.Minute)))
	assert.True(t, m.CountdownDue(testNow.Add(time.Hour)))

	require.NoError(t, m.Complete(SystemAutoApprove, testNow.Add(time.Hour)))
	assert.False(t, m.CountdownDue(testNow.Add(2*time.Hour)))
	assert.Equal(t, SystemAutoApprove, m.ApprovedBy)
}
