package rpc

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/lnaie/sfAuction/pkg/logger"
)

// Transport B: whole requests and responses framed as length-delimited
// messages over a bidirectional byte channel (a unix socket in practice).

const maxFrameBytes = 1 << 20

// WriteFrame writes one length-delimited message.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > maxFrameBytes {
		return fmt.Errorf("frame too large: %d bytes", len(payload))
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-delimited message.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxFrameBytes {
		return nil, fmt.Errorf("frame too large: %d bytes", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// ServePipe accepts connections and answers framed requests until ctx is
// canceled or the listener fails. Each connection is served concurrently;
// one connection carries a sequence of request/response exchanges.
func ServePipe(ctx context.Context, ln net.Listener, reg *Registry) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go servePipeConn(ctx, conn, reg)
	}
}

func servePipeConn(ctx context.Context, conn net.Conn, reg *Registry) {
	defer conn.Close()
	for {
		payload, err := ReadFrame(conn)
		if err != nil {
			if err != io.EOF {
				logger.Debug("pipe_read_failed", "error", err)
			}
			return
		}
		req, perr := ParseRequest(payload)
		var resp *Response
		if perr != nil {
			resp = NewErrorResponse(ID{}, asError(perr))
		} else {
			resp = reg.Dispatch(ctx, req)
			if req.ID.IsAbsent() {
				continue
			}
		}
		out, eerr := resp.Encode()
		if eerr != nil {
			logger.Error("pipe_encode_response_failed", "error", eerr)
			return
		}
		if err := WriteFrame(conn, out); err != nil {
			logger.Debug("pipe_write_failed", "error", err)
			return
		}
	}
}

// PipeClient issues framed calls over a dialed byte channel.
type PipeClient struct {
	Network string
	Address string
}

// Call dials, sends one request and reads one response.
func (c *PipeClient) Call(ctx context.Context, req *Request) (*Response, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, c.Network, c.Address)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	payload, err := req.Encode()
	if err != nil {
		return nil, err
	}
	if err := WriteFrame(conn, payload); err != nil {
		return nil, err
	}
	if req.ID.IsAbsent() {
		return nil, nil
	}
	out, err := ReadFrame(conn)
	if err != nil {
		return nil, err
	}
	return ParseResponse(out)
}
