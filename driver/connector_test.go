package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectorSayUnacknowledgedSucceedsWithoutRunningCommand(t *testing.T) {
	var dialedPort *fakePort
	c, err := NewConnector([]ServerAddress{{Host: "a", Port: 1}}, fakeFactory(func(p *fakePort) { dialedPort = p }), nil, Options{}, nil)
	require.NoError(t, err)
	tp := c.NewThreadPort()

	msg := newFakeMessage(0)
	result, err := c.Say(tp, "db", msg, &fakeWriteConcern{ack: false})
	require.NoError(t, err)
	assert.False(t, result.Confirmed)
	assert.Equal(t, int32(1), msg.doneCnt)
	assert.Equal(t, 1, dialedPort.sendCalls)
}

func TestConnectorSayAcknowledgedSuccess(t *testing.T) {
	c, err := NewConnector([]ServerAddress{{Host: "a", Port: 1}}, fakeFactory(nil), nil, Options{}, nil)
	require.NoError(t, err)
	tp := c.NewThreadPort()

	result, err := c.Say(tp, "db", newFakeMessage(0), &fakeWriteConcern{ack: true})
	require.NoError(t, err)
	assert.True(t, result.Confirmed)
}

func TestConnectorSayClassifiesDuplicateKey(t *testing.T) {
	c, err := NewConnector([]ServerAddress{{Host: "a", Port: 1}}, fakeFactory(func(p *fakePort) {
		p.cmdResult = &fakeCommandResult{err: &CommandError{Code: 11000, Message: "E11000 duplicate key"}}
	}), nil, Options{}, nil)
	require.NoError(t, err)
	tp := c.NewThreadPort()

	_, err = c.Say(tp, "db", newFakeMessage(0), &fakeWriteConcern{ack: true})
	require.Error(t, err)
	var dupErr *DuplicateKeyError
	assert.ErrorAs(t, err, &dupErr)
}

func TestConnectorSayNetworkFailureFencesPort(t *testing.T) {
	var dialedPort *fakePort
	c, err := NewConnector([]ServerAddress{{Host: "a", Port: 1}}, fakeFactory(func(p *fakePort) {
		dialedPort = p
		p.sendErr = assertErrSentinel
	}), nil, Options{}, nil)
	require.NoError(t, err)
	tp := c.NewThreadPort()

	_, err = c.Say(tp, "db", newFakeMessage(0), &fakeWriteConcern{ack: true, raiseNetErrors: true})
	require.Error(t, err)
	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
	assert.True(t, dialedPort.wasClosed())
}

func TestConnectorSaySendFailureReturnsSyntheticResultWhenNotRaised(t *testing.T) {
	var dialedPort *fakePort
	c, err := NewConnector([]ServerAddress{{Host: "a", Port: 1}}, fakeFactory(func(p *fakePort) {
		dialedPort = p
		p.sendErr = assertErrSentinel
	}), nil, Options{}, nil)
	require.NoError(t, err)
	tp := c.NewThreadPort()

	result, err := c.Say(tp, "db", newFakeMessage(0), &fakeWriteConcern{ack: true, raiseNetErrors: false})
	require.NoError(t, err)
	assert.False(t, result.Ok)
	assert.Equal(t, "NETWORK ERROR", result.Err)
	assert.True(t, dialedPort.wasClosed())
}

func TestConnectorSayAckFailureReturnsSyntheticResultWhenNotRaised(t *testing.T) {
	var dialedPort *fakePort
	c, err := NewConnector([]ServerAddress{{Host: "a", Port: 1}}, fakeFactory(func(p *fakePort) {
		dialedPort = p
		p.cmdErr = assertErrSentinel
	}), nil, Options{}, nil)
	require.NoError(t, err)
	tp := c.NewThreadPort()

	result, err := c.Say(tp, "db", newFakeMessage(0), &fakeWriteConcern{ack: true, raiseNetErrors: false})
	require.NoError(t, err)
	assert.False(t, result.Ok)
	assert.Equal(t, "NETWORK ERROR", result.Err)
	assert.True(t, dialedPort.wasClosed())
}

func TestConnectorCallRetriesOnNetworkErrorThenSucceeds(t *testing.T) {
	attempt := 0
	factory := func(a ServerAddress) (Port, error) {
		attempt++
		p := newFakePort(a)
		if attempt == 1 {
			p.callErr = assertErrSentinel
		}
		return p, nil
	}
	c, err := NewConnector([]ServerAddress{{Host: "a", Port: 1}}, factory, nil, Options{Retries: 2}, nil)
	require.NoError(t, err)
	tp := c.NewThreadPort()

	resp, err := c.Call(tp, "db", "things", newFakeMessage(0))
	require.NoError(t, err)
	assert.NotNil(t, resp)
	assert.Equal(t, 2, attempt)
}

func TestConnectorCallNeverRetriesCommandCollection(t *testing.T) {
	attempt := 0
	factory := func(a ServerAddress) (Port, error) {
		attempt++
		p := newFakePort(a)
		p.callErr = assertErrSentinel
		return p, nil
	}
	c, err := NewConnector([]ServerAddress{{Host: "a", Port: 1}}, factory, nil, Options{Retries: 2}, nil)
	require.NoError(t, err)
	tp := c.NewThreadPort()

	_, err = c.Call(tp, "db", "$cmd", newFakeMessage(0))
	require.Error(t, err)
	assert.Equal(t, 1, attempt)
}

func TestConnectorCallExhaustsRetriesOnNotMaster(t *testing.T) {
	factory := func(a ServerAddress) (Port, error) {
		p := newFakePort(a)
		p.callResp = &fakeResponse{err: &fakeServerError{notMaster: true, msg: "not master"}}
		return p, nil
	}
	c, err := NewConnector([]ServerAddress{{Host: "a", Port: 1}}, factory, nil, Options{Retries: 1}, nil)
	require.NoError(t, err)
	tp := c.NewThreadPort()

	_, err = c.Call(tp, "db", "things", newFakeMessage(0))
	require.Error(t, err)
	var nmErr *NotMasterExhaustedError
	assert.ErrorAs(t, err, &nmErr)
}

func TestConnectorMultiAddressUsesProbedPrimary(t *testing.T) {
	primaryAddr := ServerAddress{Host: "p", Port: 1}
	secondaryAddr := ServerAddress{Host: "s", Port: 2}
	prober := newFakeProber()
	prober.set(primaryAddr, ProbeResult{IsPrimary: true})
	prober.set(secondaryAddr, ProbeResult{IsPrimary: false})

	c, err := NewConnector([]ServerAddress{primaryAddr, secondaryAddr}, fakeFactory(nil), prober, Options{}, nil)
	require.NoError(t, err)
	defer c.Close()

	addr, ok := c.Address()
	require.True(t, ok)
	assert.Equal(t, primaryAddr, addr)
}

func TestConnectorCloseRejectsFurtherCalls(t *testing.T) {
	c, err := NewConnector([]ServerAddress{{Host: "a", Port: 1}}, fakeFactory(nil), nil, Options{}, nil)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	tp := c.NewThreadPort()
	_, err = c.Call(tp, "db", "things", newFakeMessage(0))
	assert.Equal(t, ErrClosed, err)
}

func TestConnectorNotMasterFailoverFlipsPrimaryAndSucceedsOnNewPrimary(t *testing.T) {
	hostA := ServerAddress{Host: "hostA", Port: 1}
	hostB := ServerAddress{Host: "hostB", Port: 2}
	prober := newFakeProber()
	prober.set(hostA, ProbeResult{IsPrimary: true})
	prober.set(hostB, ProbeResult{IsPrimary: false})

	factory := func(a ServerAddress) (Port, error) {
		p := newFakePort(a)
		if a == hostA {
			p.callResp = &fakeResponse{err: &fakeServerError{notMaster: true, msg: "not master"}}
		}
		return p, nil
	}

	c, err := NewConnector([]ServerAddress{hostA, hostB}, factory, prober, Options{Retries: 2}, nil)
	require.NoError(t, err)
	defer c.Close()
	addr, ok := c.Address()
	require.True(t, ok)
	require.Equal(t, hostA, addr)

	// hostB now reports primary, the way it would once the real cluster
	// elects a new one; the connector discovers this on re-probe after
	// hostA's "not master" response.
	prober.set(hostA, ProbeResult{IsPrimary: false})
	prober.set(hostB, ProbeResult{IsPrimary: true})

	tp := c.NewThreadPort()
	resp, err := c.Call(tp, "db", "things", newFakeMessage(0))
	require.NoError(t, err)
	assert.NotNil(t, resp)

	newAddr, ok := c.Address()
	require.True(t, ok)
	assert.Equal(t, hostB, newAddr)
}

func TestConnectorConnectPointReportsPrimaryAddress(t *testing.T) {
	c, err := NewConnector([]ServerAddress{{Host: "a", Port: 1}}, fakeFactory(nil), nil, Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "a:1", c.ConnectPoint())
}

func TestNewConnectorRejectsEmptyAddressList(t *testing.T) {
	_, err := NewConnector(nil, fakeFactory(nil), nil, Options{}, nil)
	require.Error(t, err)
	var invalid *InvalidArgumentError
	assert.ErrorAs(t, err, &invalid)
}
