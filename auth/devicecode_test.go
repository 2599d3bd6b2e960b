package auth

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

const (
	pathDeviceCode = "/consumers/oauth2/v2.0/devicecode"
	pathToken      = "/consumers/oauth2/v2.0/token"
)

func TestFlow_PollInterval(t *testing.T) {
	// the fake issues codes with interval 5 and a lifetime of 12 seconds
	fake := &fakeMicrosoft{pending: 100}
	flow := NewFlow(newTestEngine(t, fake, nil))
	var issued []string
	flow.OnCode = func(c *DeviceCode) { issued = append(issued, c.DeviceCode) }
	ctx := context.Background()

	assert.Equal(t, FlowIdle, flow.State())
	assert.Nil(t, flow.Tick(ctx))
	assert.Equal(t, FlowCodeIssued, flow.State())
	assert.Equal(t, 1, fake.count(pathDeviceCode))

	for i := 0; i < 4; i++ {
		flow.Tick(ctx)
	}
	assert.Zero(t, fake.count(pathToken))

	flow.Tick(ctx)
	assert.Equal(t, 1, fake.count(pathToken))
	assert.Equal(t, FlowCodeIssued, flow.State())

	for i := 0; i < 5; i++ {
		flow.Tick(ctx)
	}
	assert.Equal(t, 2, fake.count(pathToken))
	assert.Equal(t, 1, fake.count(pathDeviceCode))

	// lifetime runs out two ticks later
	flow.Tick(ctx)
	assert.Equal(t, 1, fake.count(pathDeviceCode))
	flow.Tick(ctx)
	assert.Equal(t, 2, fake.count(pathDeviceCode))
	assert.Equal(t, 2, fake.count(pathToken))
	assert.Equal(t, []string{"device-1", "device-2"}, issued)
}

func TestFlow_Linked(t *testing.T) {
	fake := &fakeMicrosoft{pending: 1}
	flow := NewFlow(newTestEngine(t, fake, nil))
	ctx := context.Background()

	acc := flow.Tick(ctx)
	for i := 0; i < 20 && acc == nil; i++ {
		acc = flow.Tick(ctx)
	}
	require.NotNil(t, acc)
	assert.Equal(t, FlowLinked, flow.State())
	assert.Equal(t, "Notch", acc.Name)
	assert.Equal(t, "refresh", acc.Microsoft.RefreshToken)
	assert.Equal(t, "mc-token", acc.AccessToken())
	// one pending poll, one approved; the fresh oauth token is reused by Authenticate
	assert.Equal(t, 2, fake.count(pathToken))

	// a linked flow does nothing more
	assert.Nil(t, flow.Tick(ctx))
	assert.Equal(t, 1, fake.count(pathDeviceCode))
}

func TestFlow_RejectedCode(t *testing.T) {
	fake := &fakeMicrosoft{}
	flow := NewFlow(newTestEngine(t, fake, nil))
	ctx := context.Background()

	flow.Tick(ctx)
	flow.code.DeviceCode = "device-expired"
	for i := 0; i < 5; i++ {
		flow.Tick(ctx)
	}
	assert.Equal(t, 1, fake.count(pathToken))
	assert.Equal(t, FlowExpired, flow.State())

	flow.Tick(ctx)
	assert.Equal(t, 2, fake.count(pathDeviceCode))
	assert.Equal(t, FlowCodeIssued, flow.State())
}

func TestFlow_RunCancelled(t *testing.T) {
	fake := &fakeMicrosoft{pending: 100}
	flow := NewFlow(newTestEngine(t, fake, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	acc, err := flow.Run(ctx)
	assert.Nil(t, acc)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, fake.count(pathDeviceCode))
}
