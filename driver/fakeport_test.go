package driver

import (
	"sync"
	"sync/atomic"
)

// fakeMessage is a minimal Message: no encoding, just an options bitset
// and a counter so tests can assert DoneWithMessage fired exactly once.
type fakeMessage struct {
	opts    MessageOption
	doneCnt int32
}

func newFakeMessage(opts MessageOption) *fakeMessage { return &fakeMessage{opts: opts} }

func (m *fakeMessage) HasOption(o MessageOption) bool { return m.opts&o != 0 }
func (m *fakeMessage) DoneWithMessage()                { atomic.AddInt32(&m.doneCnt, 1) }

// fakeServerError is a ServerError a fakePort's Call can return inside
// a fakeResponse to simulate a "not master" or arbitrary server-side failure.
type fakeServerError struct {
	notMaster bool
	msg       string
}

func (e *fakeServerError) Error() string    { return e.msg }
func (e *fakeServerError) IsNotMaster() bool { return e.notMaster }

type fakeResponse struct {
	err ServerError
}

func (r *fakeResponse) GetError() ServerError { return r.err }

type fakeCommandResult struct {
	err *CommandError
}

func (r *fakeCommandResult) Err() *CommandError { return r.err }

// fakePort is a Port test double with scripted behavior: it can be
// told to fail Send/Call/RunCommand/CheckAuth on every call while the
// corresponding error field is set, and it records whether Close was ever invoked (fenced ports must
// never be reused after Close).
type fakePort struct {
	addr ServerAddress

	mu         sync.Mutex
	closed     bool
	sendErr    error
	callResp   Response
	callErr    error
	authErr    error
	cmdResult  CommandResult
	cmdErr     error
	sendCalls  int
	callCalls  int
	closeCalls int
}

func newFakePort(addr ServerAddress) *fakePort { return &fakePort{addr: addr} }

func (p *fakePort) Send(msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sendCalls++
	return p.sendErr
}

func (p *fakePort) Call(msg Message, collection string) (Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callCalls++
	if p.callErr != nil {
		return nil, p.callErr
	}
	if p.callResp != nil {
		return p.callResp, nil
	}
	return &fakeResponse{}, nil
}

func (p *fakePort) RunCommand(db string, command any) (CommandResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmdErr != nil {
		return nil, p.cmdErr
	}
	if p.cmdResult != nil {
		return p.cmdResult, nil
	}
	return &fakeCommandResult{}, nil
}

func (p *fakePort) CheckAuth(db string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.authErr
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.closeCalls++
	return nil
}

func (p *fakePort) wasClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// fakeFactory builds a PortFactory that hands out fresh *fakePort
// values, optionally letting the test script each one before it's
// returned from the pool's Get.
func fakeFactory(configure func(*fakePort)) PortFactory {
	return func(addr ServerAddress) (Port, error) {
		p := newFakePort(addr)
		if configure != nil {
			configure(p)
		}
		return p, nil
	}
}

// fakeWriteConcern is a WriteConcern test double.
type fakeWriteConcern struct {
	ack            bool
	raiseNetErrors bool
	cmd            any
}

func (w *fakeWriteConcern) CallGetLastError() bool   { return w.ack }
func (w *fakeWriteConcern) RaiseNetworkErrors() bool { return w.raiseNetErrors }
func (w *fakeWriteConcern) Command() any             { return w.cmd }

// fakeProber is a Prober test double backed by a map the test mutates
// directly between refresh rounds.
type fakeProber struct {
	mu      sync.Mutex
	results map[ServerAddress]ProbeResult
	errs    map[ServerAddress]error
}

func newFakeProber() *fakeProber {
	return &fakeProber{results: make(map[ServerAddress]ProbeResult), errs: make(map[ServerAddress]error)}
}

func (p *fakeProber) set(addr ServerAddress, r ProbeResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results[addr] = r
	delete(p.errs, addr)
}

func (p *fakeProber) setErr(addr ServerAddress, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[addr] = err
}

func (p *fakeProber) Probe(addr ServerAddress) (ProbeResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.errs[addr]; ok {
		return ProbeResult{}, err
	}
	return p.results[addr], nil
}
