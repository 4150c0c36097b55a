package binder

import (
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"sync"
	"time"
)

// watchedConn closes lost on the first read error. The rpc client reads
// continuously, so a peer hang-up is observed as soon as it happens.
type watchedConn struct {
	net.Conn
	once sync.Once
	lost chan struct{}
}

func (c *watchedConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if err != nil {
		c.markLost()
	}
	return n, err
}

func (c *watchedConn) Close() error {
	c.markLost()
	return c.Conn.Close()
}

func (c *watchedConn) markLost() {
	c.once.Do(func() { close(c.lost) })
}

// rpcHandle is the Handle implementation backed by a JSON-RPC client.
type rpcHandle struct {
	conn        *watchedConn
	client      *rpc.Client
	pingTimeout time.Duration
	callTimeout time.Duration
}

func newHandle(conn net.Conn, pingTimeout, callTimeout time.Duration) *rpcHandle {
	wc := &watchedConn{Conn: conn, lost: make(chan struct{})}
	return &rpcHandle{
		conn:        wc,
		client:      rpc.NewClientWithCodec(jsonrpc.NewClientCodec(wc)),
		pingTimeout: pingTimeout,
		callTimeout: callTimeout,
	}
}

func (h *rpcHandle) IsAlive() bool {
	select {
	case <-h.conn.lost:
		return false
	default:
		return true
	}
}

func (h *rpcHandle) Ping() bool {
	var resp PingResponse
	if err := h.call(MethodPing, PingRequest{}, &resp, h.pingTimeout); err != nil {
		return false
	}
	return resp.OK
}

func (h *rpcHandle) Call(method string, args any, reply any) error {
	return h.call(method, args, reply, h.callTimeout)
}

// Lost is closed once the connection is gone.
func (h *rpcHandle) Lost() <-chan struct{} {
	return h.conn.lost
}

func (h *rpcHandle) Close() error {
	err := h.client.Close()
	if errors.Is(err, rpc.ErrShutdown) {
		return nil
	}
	return err
}

func (h *rpcHandle) call(method string, args any, reply any, timeout time.Duration) error {
	if !h.IsAlive() {
		return fmt.Errorf("%s: %w", method, ErrClosed)
	}
	call := h.client.Go(method, args, reply, make(chan *rpc.Call, 1))

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case done := <-call.Done:
		if done.Error == nil {
			return nil
		}
		if !h.IsAlive() || errors.Is(done.Error, rpc.ErrShutdown) {
			return fmt.Errorf("%s: %w", method, ErrClosed)
		}
		return fmt.Errorf("%s: %w", method, done.Error)
	case <-h.conn.lost:
		return fmt.Errorf("%s: %w", method, ErrClosed)
	case <-expired:
		return fmt.Errorf("%s after %s: %w", method, timeout, ErrTimeout)
	}
}
