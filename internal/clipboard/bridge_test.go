package clipboard

import "testing"

type fakeLocal struct {
	set    []string
	closed bool
}

func (f *fakeLocal) SetFromClient(text string) { f.set = append(f.set, text) }
func (f *fakeLocal) Run(stop <-chan struct{})  {}
func (f *fakeLocal) Close()                    { f.closed = true }

func TestOnLocalTextChangedSendsOnce(t *testing.T) {
	var sent [][]byte
	b := NewBridge(&fakeLocal{}, Sender{SendText: func(text []byte) { sent = append(sent, text) }})

	b.OnLocalTextChanged("hello")
	if len(sent) != 1 || string(sent[0]) != "hello" {
		t.Fatalf("expected one send of %q, got %v", "hello", sent)
	}
}

func TestOnLocalTextChangedSuppressesIdenticalRepeat(t *testing.T) {
	var sent [][]byte
	b := NewBridge(&fakeLocal{}, Sender{SendText: func(text []byte) { sent = append(sent, text) }})

	b.OnLocalTextChanged("hello")
	b.OnLocalTextChanged("hello")
	if len(sent) != 1 {
		t.Fatalf("expected identical repeat to be suppressed, got %d sends", len(sent))
	}
}

func TestOnLocalTextChangedOversizeDropped(t *testing.T) {
	var sent [][]byte
	b := NewBridge(&fakeLocal{}, Sender{SendText: func(text []byte) { sent = append(sent, text) }})

	b.OnLocalTextChanged(string(make([]byte, MaxText+1)))
	if len(sent) != 0 {
		t.Fatal("expected oversize text to be dropped, not sent")
	}
}

func TestReceiveTextSuppressesTheEchoItCauses(t *testing.T) {
	var sent [][]byte
	local := &fakeLocal{}
	b := NewBridge(local, Sender{SendText: func(text []byte) { sent = append(sent, text) }})

	b.ReceiveText([]byte("from remote"))
	if len(local.set) != 1 || local.set[0] != "from remote" {
		t.Fatalf("expected local clipboard to be written, got %v", local.set)
	}

	// The write above is what the local watcher would now observe.
	b.OnLocalTextChanged("from remote")
	if len(sent) != 0 {
		t.Fatal("expected the echo of our own write to be suppressed")
	}

	// A genuinely new local change after the echo still goes out.
	b.OnLocalTextChanged("something else")
	if len(sent) != 1 || string(sent[0]) != "something else" {
		t.Fatalf("expected the next distinct change to send, got %v", sent)
	}
}

func TestResetEchoSuppressionAllowsResendingSameContent(t *testing.T) {
	var sent [][]byte
	b := NewBridge(&fakeLocal{}, Sender{SendText: func(text []byte) { sent = append(sent, text) }})

	b.OnLocalTextChanged("hello")
	b.ResetEchoSuppression()
	b.OnLocalTextChanged("hello")

	if len(sent) != 2 {
		t.Fatalf("expected reset to allow a second identical send, got %d", len(sent))
	}
}

func TestCloseClosesLocal(t *testing.T) {
	local := &fakeLocal{}
	b := NewBridge(local, Sender{})
	b.Close()
	if !local.closed {
		t.Fatal("expected Close to close the local backend")
	}
}
