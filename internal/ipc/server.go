package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

// Handler answers one validated command request.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Serve accepts unix-socket clients until context cancellation or listener
// close. Each connection is served line by line until the client hangs up;
// cancellation closes open connections so shutdown never waits on an idle one.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		conns = make(map[net.Conn]struct{})
	)

	go func() {
		<-ctx.Done()
		_ = listener.Close()
		mu.Lock()
		for conn := range conns {
			_ = conn.Close()
		}
		mu.Unlock()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			return fmt.Errorf("accept IPC connection: %w", err)
		}

		mu.Lock()
		conns[conn] = struct{}{}
		mu.Unlock()

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			defer func() {
				mu.Lock()
				delete(conns, c)
				mu.Unlock()
				_ = c.Close()
			}()
			serveConn(ctx, c, handler)
		}(conn)
	}
}

// serveConn answers one connection's requests in order until EOF or error.
// Unknown commands never reach the handler.
func serveConn(ctx context.Context, conn net.Conn, handler Handler) {
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for ctx.Err() == nil {
		var req Request
		if err := dec.Decode(&req); err != nil {
			if err != io.EOF && ctx.Err() == nil {
				_ = enc.Encode(Rejected("", fmt.Sprintf("decode request: %v", err)))
			}
			return
		}

		resp := Rejected("", fmt.Sprintf("unknown command: %s", req.Command))
		if req.Command.Known() {
			resp = handler.Handle(ctx, req)
		}
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}
