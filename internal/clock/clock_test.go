package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/traveler/internal/clock"
)

var testEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFake_AdvanceFiresInOrder(t *testing.T) {
	t.Parallel()

	c := clock.NewFake(testEpoch)

	var fired []string

	c.AfterFunc(2*time.Second, func() { fired = append(fired, "late") })
	c.AfterFunc(time.Second, func() { fired = append(fired, "early") })

	c.Advance(500 * time.Millisecond)
	assert.Empty(t, fired)

	c.Advance(2 * time.Second)
	assert.Equal(t, []string{"early", "late"}, fired)
	assert.Equal(t, testEpoch.Add(2500*time.Millisecond), c.Now())
	assert.Zero(t, c.Pending())
}

func TestFake_Stop(t *testing.T) {
	t.Parallel()

	c := clock.NewFake(testEpoch)
	called := false

	timer := c.AfterFunc(time.Second, func() { called = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	c.Advance(time.Minute)
	assert.False(t, called)
}

func TestFake_CallbackCanRearm(t *testing.T) {
	t.Parallel()

	c := clock.NewFake(testEpoch)
	count := 0

	var tick func()
	tick = func() {
		count++
		if count < 3 {
			c.AfterFunc(time.Second, tick)
		}
	}

	c.AfterFunc(time.Second, tick)
	c.Advance(10 * time.Second)

	assert.Equal(t, 3, count)
}

func TestReal_AfterFunc(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})

	clock.Real{}.AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("real timer did not fire")
	}
}
