package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/san-kum/cartpole/internal/cartpole"
)

// Client is a remote controller's handle on one bridge session. Calls
// are serialized; a Client may be shared between goroutines but the
// session still sees them one at a time.
type Client struct {
	conn net.Conn
	sc   *bufio.Scanner
	enc  *json.Encoder

	mu     sync.Mutex
	nextID uint64
	// broken is set once a call failed mid-exchange; the stream can no
	// longer be matched to requests.
	broken bool
}

// ErrClientClosed is returned by calls on a closed or broken Client.
var ErrClientClosed = errors.New("bridge: client closed")

func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bridge: dial %s: %w", addr, err)
	}
	return &Client{
		conn: conn,
		sc:   bufio.NewScanner(conn),
		enc:  json.NewEncoder(conn),
	}, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return nil
	}
	c.broken = true
	return c.conn.Close()
}

func (c *Client) ActionSpace(ctx context.Context) (int, error) {
	resp, err := c.call(ctx, Request{Op: OpActionSpace})
	return resp.Value, err
}

func (c *Client) ObservationSpace(ctx context.Context) (int, error) {
	resp, err := c.call(ctx, Request{Op: OpObservationSpace})
	return resp.Value, err
}

func (c *Client) Reset(ctx context.Context) (cartpole.EpisodeState, error) {
	return c.state(c.call(ctx, Request{Op: OpReset}))
}

// Step forwards the action unvalidated; the session decides whether it
// is legal.
func (c *Client) Step(ctx context.Context, action cartpole.Action) (cartpole.EpisodeState, error) {
	a := int(action)
	return c.state(c.call(ctx, Request{Op: OpStep, Action: &a}))
}

func (c *Client) state(resp Response, err error) (cartpole.EpisodeState, error) {
	if err != nil {
		return cartpole.EpisodeState{}, err
	}
	if resp.State == nil {
		return cartpole.EpisodeState{}, fmt.Errorf("bridge: response %d carries no state", resp.ID)
	}
	return *resp.State, nil
}

func (c *Client) call(ctx context.Context, req Request) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken {
		return Response{}, fmt.Errorf("%w: %s", ErrClientClosed, req.Op)
	}
	c.nextID++
	req.ID = c.nextID

	deadline, _ := ctx.Deadline()
	c.conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if err := c.enc.Encode(req); err != nil {
		return Response{}, c.wrap(ctx, "send "+req.Op, err)
	}
	if !c.sc.Scan() {
		err := c.sc.Err()
		if err == nil {
			err = io.EOF
		}
		return Response{}, c.wrap(ctx, "receive "+req.Op, err)
	}

	var resp Response
	if err := json.Unmarshal(c.sc.Bytes(), &resp); err != nil {
		c.breakConn()
		return Response{}, fmt.Errorf("bridge: decode %s: %w", req.Op, err)
	}
	if resp.ID != req.ID {
		c.breakConn()
		return Response{}, fmt.Errorf("bridge: response id %d does not match request %d", resp.ID, req.ID)
	}
	if resp.Error != nil {
		return resp, &RemoteError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	return resp, nil
}

// breakConn closes the connection after a failed exchange. Callers hold
// c.mu.
func (c *Client) breakConn() {
	c.broken = true
	c.conn.Close()
}

func (c *Client) wrap(ctx context.Context, what string, err error) error {
	c.breakConn()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("bridge: %s: %w", what, ctxErr)
	}
	if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
		return fmt.Errorf("bridge: %s: %w", what, context.DeadlineExceeded)
	}
	return fmt.Errorf("bridge: %s: %w", what, err)
}
