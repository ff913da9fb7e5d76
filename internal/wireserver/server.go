// Package wireserver is a minimal server for the corerpc wire protocol. It
// exists to drive corerpc's own tests against a real socket
// instead of a mock — the same role Lubby-ch-rpc's server.go/serverCodec.go
// play for that package's client, rewired to speak fixed binary frames
// (package wire) instead of protobuf ServiceMethod strings, and extended
// with fault injection so the test scenarios in corerpc's own test suite
// (server error codes, mis-sequenced replies, stalled responses) don't need
// a second, separate fake.
package wireserver

import (
	"io"
	"log"
	"net"
	"sync"

	"github.com/flowgate/corerpc/funcid"
	"github.com/flowgate/corerpc/payload"
	"github.com/flowgate/corerpc/wire"
	reuseport "github.com/kavu/go_reuseport"
)

// HandlerFunc handles one decoded request body (plus its raw attachment) and
// returns the value to encode as the response body, the response
// attachment, and an application error code (0 means success).
type HandlerFunc func(body, attachment []byte) (resp any, respAttachment []byte, appErrc uint8)

// Fault lets a test stall, corrupt, or misdirect the response to a specific
// function, independent of what its HandlerFunc computes.
type Fault struct {
	// Delay, if set, is applied before the response frame (header included)
	// is written.
	Delay func()
	// SeqNumOverride, if non-nil, replaces the outgoing seq_num, e.g. to
	// exercise corerpc's "unknown sequence number" protocol-error path.
	SeqNumOverride *uint32
	// ForceErrCode, if non-nil, replaces whatever appErrc the handler
	// returned.
	ForceErrCode *uint8
}

// Server is a single-process, single-binding wire-protocol server: one
// goroutine per accepted connection, dispatch by the 64-bit function
// identifier in the request header (see package funcid). Requests are read
// off a connection in order, but each one is handled on its own goroutine,
// so a slow or delayed handler does not hold back replies to later requests;
// response frames are written one at a time per connection.
type Server struct {
	mu       sync.Mutex
	handlers map[uint64]HandlerFunc
	faults   map[uint64]*Fault

	codec payload.Codec

	ln net.Listener

	Logger *log.Logger
}

// NewServer builds a Server that encodes/decodes bodies with codec.
func NewServer(codec payload.Codec) *Server {
	return &Server{
		handlers: make(map[uint64]HandlerFunc),
		faults:   make(map[uint64]*Fault),
		codec:    codec,
		Logger:   log.Default(),
	}
}

// RegisterFunc binds fn's runtime identity (see funcid.Of) to h.
func (s *Server) RegisterFunc(fn any, h HandlerFunc) {
	s.register(funcid.Of(fn), h)
}

// RegisterName binds an explicit name (see funcid.OfName) to h, for tests
// that want a stable identifier without a real function value.
func (s *Server) RegisterName(name string, h HandlerFunc) {
	s.register(funcid.OfName(name), h)
}

func (s *Server) register(id uint64, h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[id] = h
}

// InjectFault arms a one-shot-or-sticky fault for the given function;
// callers needing one-shot behavior should remove it from inside the
// handler via ClearFault.
func (s *Server) InjectFault(fn any, f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[funcid.Of(fn)] = &f
}

// ClearFault removes any fault armed for fn.
func (s *Server) ClearFault(fn any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.faults, funcid.Of(fn))
}

// Listen binds addr with SO_REUSEADDR/SO_REUSEPORT (go_reuseport), so a
// test suite that restarts a server on the same port in quick succession
// doesn't race the kernel's TIME_WAIT teardown. Returns the bound address
// (useful when addr ends in ":0").
func (s *Server) Listen(addr string) (string, error) {
	ln, err := reuseport.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	s.ln = ln
	return ln.Addr().String(), nil
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return err
		}
		go s.serveConn(conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	var sending sync.Mutex

	var headerBuf [wire.ReqHeaderLen]byte
	for {
		if _, err := io.ReadFull(conn, headerBuf[:]); err != nil {
			return
		}
		h := wire.GetRequestHeader(headerBuf[:])
		if h.Magic != wire.MagicNumber {
			return
		}

		body := make([]byte, h.Length)
		if _, err := io.ReadFull(conn, body); err != nil {
			return
		}
		var attachment []byte
		if h.AttachLength > 0 {
			attachment = make([]byte, h.AttachLength)
			if _, err := io.ReadFull(conn, attachment); err != nil {
				return
			}
		}

		go s.handleAndReply(conn, &sending, h, body, attachment)
	}
}

func (s *Server) handleAndReply(conn net.Conn, sending *sync.Mutex, h wire.RequestHeader, body, attachment []byte) {
	s.mu.Lock()
	handler := s.handlers[h.FunctionID]
	fault := s.faults[h.FunctionID]
	s.mu.Unlock()

	if handler == nil {
		s.writeResponse(conn, sending, h.SeqNum, nil, nil, 0xFE)
		return
	}

	resp, respAttachment, appErrc := handler(body, attachment)

	if fault != nil {
		if fault.Delay != nil {
			fault.Delay()
		}
		if fault.ForceErrCode != nil {
			appErrc = *fault.ForceErrCode
		}
	}

	var respBody []byte
	if appErrc == 0 {
		var err error
		respBody, err = s.codec.Encode(resp)
		if err != nil {
			s.Logger.Printf("wireserver: encode response: %s", err)
			appErrc = 1
		}
	} else if msg, ok := resp.(string); ok {
		respBody, _ = s.codec.Encode(msg)
	}

	seqNum := h.SeqNum
	if fault != nil && fault.SeqNumOverride != nil {
		seqNum = *fault.SeqNumOverride
	}

	s.writeResponse(conn, sending, seqNum, respBody, respAttachment, appErrc)
}

func (s *Server) writeResponse(conn net.Conn, sending *sync.Mutex, seqNum uint32, body, attachment []byte, errCode uint8) {
	sending.Lock()
	defer sending.Unlock()

	var headerBuf [wire.RespHeaderLen]byte
	wire.PutResponseHeader(headerBuf[:], wire.ResponseHeader{
		Length:       uint32(len(body)),
		AttachLength: uint32(len(attachment)),
		SeqNum:       seqNum,
		ErrCode:      errCode,
	})

	buffers := net.Buffers{headerBuf[:], body}
	if len(attachment) > 0 {
		buffers = append(buffers, attachment)
	}
	if _, err := buffers.WriteTo(conn); err != nil {
		s.Logger.Printf("wireserver: write response: %s", err)
	}
}
