package corerpc

import (
	"testing"
	"time"

	"github.com/flowgate/corerpc/internal/wireserver"
	"github.com/flowgate/corerpc/payload"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newLoopbackServer(t *testing.T) (*wireserver.Server, string) {
	srv := wireserver.NewServer(payload.GobCodec{})
	addr, err := srv.Listen("127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve() }()
	return srv, addr
}

func dialedClient(t *testing.T, addr string) *Client {
	c := NewClient(1)
	require.Equal(t, ErrOk, c.ConnectEndpoint(addr, time.Second))
	return c
}

func TestCallHappyPath(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv, addr := newLoopbackServer(t)
	defer srv.Close()
	srv.RegisterName("echo", func(body, _ []byte) (any, []byte, uint8) {
		var s string
		_ = (payload.GobCodec{}).Decode(body, &s)
		return s, nil, 0
	})

	c := dialedClient(t, addr)
	defer c.Close()

	got, rerr := Call[string](c, "echo", "hello there")
	require.Equal(t, ErrOk, rerr.Code)
	require.Equal(t, "hello there", got)
}

func TestCallPipelinedOutOfOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv, addr := newLoopbackServer(t)
	defer srv.Close()

	slow := make(chan struct{})
	srv.RegisterName("slow", func(body, _ []byte) (any, []byte, uint8) {
		<-slow
		var s string
		_ = (payload.GobCodec{}).Decode(body, &s)
		return s, nil, 0
	})
	srv.RegisterName("fast", func(body, _ []byte) (any, []byte, uint8) {
		var s string
		_ = (payload.GobCodec{}).Decode(body, &s)
		return s, nil, 0
	})

	c := dialedClient(t, addr)
	defer c.Close()

	pendingSlow, rerr := SendRequest[string](c, "slow", "first-but-slow")
	require.Equal(t, ErrOk, rerr.Code)

	pendingFast, rerr := SendRequest[string](c, "fast", "second-but-fast")
	require.Equal(t, ErrOk, rerr.Code)

	fastResult, rerr := pendingFast.Await()
	require.Equal(t, ErrOk, rerr.Code)
	require.Equal(t, "second-but-fast", fastResult)

	close(slow)

	slowResult, rerr := pendingSlow.Await()
	require.Equal(t, ErrOk, rerr.Code)
	require.Equal(t, "first-but-slow", slowResult)
}

func TestCallServerErrorClosesConnection(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv, addr := newLoopbackServer(t)
	defer srv.Close()
	srv.RegisterName("boom", func(body, _ []byte) (any, []byte, uint8) {
		return "server blew up", nil, 7
	})

	c := dialedClient(t, addr)
	defer c.Close()

	_, rerr := Call[string](c, "boom", struct{}{})
	require.Equal(t, ErrRpcThrowException, rerr.Code)
	require.Equal(t, "server blew up", rerr.Msg)

	require.Eventually(t, c.HasClosed, time.Second, time.Millisecond)
}

func TestCallTimeoutFansOutAllPending(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv, addr := newLoopbackServer(t)
	defer srv.Close()
	block := make(chan struct{})
	defer close(block)
	srv.RegisterName("never-replies", func(body, _ []byte) (any, []byte, uint8) {
		<-block
		return "too late", nil, 0
	})

	c := dialedClient(t, addr)
	defer c.Close()

	p1, rerr := SendRequestFor[string](c, 20*time.Millisecond, "never-replies", "a")
	require.Equal(t, ErrOk, rerr.Code)
	p2, rerr := SendRequestFor[string](c, 20*time.Millisecond, "never-replies", "b")
	require.Equal(t, ErrOk, rerr.Code)

	_, rerr1 := p1.Await()
	_, rerr2 := p2.Await()
	require.Equal(t, ErrTimedOut, rerr1.Code)
	require.Equal(t, ErrTimedOut, rerr2.Code)
}

func TestCallSequenceNumberConflict(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv, addr := newLoopbackServer(t)
	defer srv.Close()
	block := make(chan struct{})
	defer close(block)
	srv.RegisterName("never-replies", func(body, _ []byte) (any, []byte, uint8) {
		<-block
		return "too late", nil, 0
	})

	c := dialedClient(t, addr)
	defer c.Close()

	pending, rerr := SendRequest[string](c, "never-replies", "first")
	require.Equal(t, ErrOk, rerr.Code)

	c.requestID.Store(0) // force the next assigned seq_num to collide

	_, rerr = SendRequest[string](c, "never-replies", "second")
	require.Equal(t, ErrSerialNumberConflict, rerr.Code)
	require.True(t, c.HasClosed())

	_, rerr = pending.Await()
	require.Equal(t, ErrIoError, rerr.Code)
}

func TestCallAttachmentRoundTrip(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv, addr := newLoopbackServer(t)
	defer srv.Close()
	srv.RegisterName("echo-attachment", func(body, attachment []byte) (any, []byte, uint8) {
		var s string
		_ = (payload.GobCodec{}).Decode(body, &s)
		return s, attachment, 0
	})

	c := dialedClient(t, addr)
	defer c.Close()

	attachment := []byte("raw sidecar bytes")
	require.True(t, c.SetRequestAttachment(attachment))

	got, rerr := Call[string](c, "echo-attachment", "with attachment")
	require.Equal(t, ErrOk, rerr.Code)
	require.Equal(t, "with attachment", got)
	require.Equal(t, attachment, c.ReleaseResponseAttachment())
	require.Nil(t, c.ReleaseResponseAttachment())
}

func TestCallWithConnContextNeverCrossesWire(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv, addr := newLoopbackServer(t)
	defer srv.Close()
	srv.RegisterName("echo", func(body, _ []byte) (any, []byte, uint8) {
		var s string
		require.NoError(t, (payload.GobCodec{}).Decode(body, &s))
		return s, nil, 0
	})

	c := dialedClient(t, addr)
	defer c.Close()

	type traceID string
	pending, rerr := SendRequest[string](c, "echo", "hi", WithConnContext(traceID("abc123")))
	require.Equal(t, ErrOk, rerr.Code)
	require.Equal(t, traceID("abc123"), pending.ConnContext())

	got, rerr := pending.Await()
	require.Equal(t, ErrOk, rerr.Code)
	require.Equal(t, "hi", got)
}
