package si

import "testing"

// fakePHY is a software SI PHY double: ReadCommand is satisfied
// synchronously from a canned queue of commands (and stays outstanding,
// like a read on a quiet bus, once the queue is empty), and WriteBytes
// records the bytes written.
type fakePHY struct {
	commands  [][]byte
	responses [][]byte
	idleCalls int
	failNext  bool
}

func (p *fakePHY) ReadCommand(buf []byte, done Callback) {
	if p.failNext {
		p.failNext = false
		done(ErrTransferFailed)
		return
	}
	if len(p.commands) == 0 {
		return
	}
	cmd := p.commands[0]
	p.commands = p.commands[1:]
	n := copy(buf, cmd)
	_ = n
	done(nil)
}

func (p *fakePHY) WriteBytes(data []byte, done Callback) {
	p.responses = append(p.responses, append([]byte(nil), data...))
	done(nil)
}

func (p *fakePHY) AwaitBusIdle() {
	p.idleCalls++
}

func TestEngineRegisterAndLookup(t *testing.T) {
	e := NewEngine(&fakePHY{})
	handler := func(command []byte, reply func([]byte)) { reply([]byte{1, 2, 3}) }
	e.Register(CmdInfo, 1, handler)

	if got := e.Length(CmdInfo); got != 1 {
		t.Fatalf("Length = %d, want 1", got)
	}
	if e.Handler(CmdInfo) == nil {
		t.Fatalf("Handler = nil, want non-nil")
	}
	if got := e.Length(0x7F); got != 0 {
		t.Fatalf("Length(unknown) = %d, want 0", got)
	}
	if e.Handler(0x7F) != nil {
		t.Fatalf("Handler(unknown) = non-nil, want nil")
	}
}

func TestEngineDispatchesToHandler(t *testing.T) {
	phy := &fakePHY{commands: [][]byte{{CmdInfo}}}
	e := NewEngine(phy)
	e.Register(CmdInfo, 1, func(command []byte, reply func([]byte)) {
		reply([]byte{0x09, 0x00, 0x20})
	})

	e.Process() // IDLE -> RX, synchronously completes via fakePHY

	if len(phy.responses) != 1 {
		t.Fatalf("responses = %d, want 1", len(phy.responses))
	}
	if got := phy.responses[0]; string(got) != string([]byte{0x09, 0x00, 0x20}) {
		t.Fatalf("response = %v, want {9 0 20}", got)
	}
	if e.State() != StateRX {
		t.Fatalf("state = %v, want rx (auto re-armed)", e.State())
	}
}

func TestEngineUnknownCommandEntersErrorThenRecovers(t *testing.T) {
	phy := &fakePHY{commands: [][]byte{{0x7F}}}
	e := NewEngine(phy)

	e.Process()
	if e.State() != StateError {
		t.Fatalf("state = %v, want error", e.State())
	}

	e.Process()
	if phy.idleCalls != 1 {
		t.Fatalf("idleCalls = %d, want 1", phy.idleCalls)
	}
}
