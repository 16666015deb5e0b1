package wsutil

import "testing"

func TestSafeSend_Delivers(t *testing.T) {
	ch := make(chan []byte, 1)
	if !SafeSend(ch, []byte("hi")) {
		t.Fatal("expected send to succeed on buffered channel")
	}
	if got := string(<-ch); got != "hi" {
		t.Errorf("expected 'hi', got %q", got)
	}
}

func TestSafeSend_FullChannelSkips(t *testing.T) {
	ch := make(chan []byte, 1)
	ch <- []byte("first")
	if SafeSend(ch, []byte("second")) {
		t.Error("expected send to be skipped on full channel")
	}
}

func TestSafeSend_ClosedChannelDoesNotPanic(t *testing.T) {
	ch := make(chan []byte, 1)
	close(ch)
	if SafeSend(ch, []byte("x")) {
		t.Error("expected send on closed channel to report false")
	}
}

func TestSafeSend_NilChannel(t *testing.T) {
	if SafeSend(nil, []byte("x")) {
		t.Error("expected send on nil channel to report false")
	}
}

func TestSendJSON(t *testing.T) {
	ch := make(chan []byte, 1)
	if !SendJSON(ch, map[string]string{"type": "ping"}) {
		t.Fatal("expected SendJSON to succeed")
	}
	if got := string(<-ch); got != `{"type":"ping"}` {
		t.Errorf("unexpected payload %s", got)
	}
}
