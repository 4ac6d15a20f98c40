package bridge_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/cartpole/internal/bridge"
	"github.com/san-kum/cartpole/internal/cartpole"
	"github.com/san-kum/cartpole/internal/controllers"
	"github.com/san-kum/cartpole/internal/episode"
)

type harness struct {
	server *bridge.Server
	addr   string
	cancel context.CancelFunc
	done   chan error
}

func startServer(cfg bridge.Config, opts ...cartpole.Option) *harness {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{
		server: bridge.NewServer(cfg, nil, opts...),
		addr:   ln.Addr().String(),
		cancel: cancel,
		done:   make(chan error, 1),
	}
	go func() {
		h.done <- h.server.Serve(ctx, ln)
	}()
	return h
}

func (h *harness) stop() {
	h.cancel()
	Eventually(h.done, 5*time.Second).Should(Receive(BeNil()))
}

func dial(addr string) *bridge.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := bridge.Dial(ctx, addr)
	Expect(err).NotTo(HaveOccurred())
	return c
}

var _ = Describe("Server", func() {
	var (
		h      *harness
		client *bridge.Client
		ctx    context.Context
	)

	BeforeEach(func() {
		h = startServer(bridge.Config{})
		client = dial(h.addr)
		ctx = context.Background()
	})

	AfterEach(func() {
		client.Close()
		h.stop()
	})

	Describe("space queries", func() {
		It("reports fixed sizes before and after reset", func() {
			n, err := client.ActionSpace(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))

			n, err = client.ObservationSpace(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(4))

			_, err = client.Reset(ctx)
			Expect(err).NotTo(HaveOccurred())

			n, err = client.ObservationSpace(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(4))
		})
	})

	Describe("reset and step", func() {
		It("returns the canonical snapshot on reset", func() {
			st, err := client.Reset(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(st).To(Equal(cartpole.EpisodeState{X: 1, XDot: 1, Theta: 1, ThetaDot: 1, Reward: 1}))
		})

		It("matches a local simulator step for step", func() {
			local := cartpole.New()
			local.Reset()
			_, err := client.Reset(ctx)
			Expect(err).NotTo(HaveOccurred())

			for _, a := range []cartpole.Action{cartpole.PushRight, cartpole.PushLeft, cartpole.PushLeft} {
				want, err := local.Step(a)
				Expect(err).NotTo(HaveOccurred())
				got, err := client.Step(ctx, a)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(want))
			}
		})

		It("keeps stepping after the episode is done", func() {
			_, err := client.Reset(ctx)
			Expect(err).NotTo(HaveOccurred())

			first, err := client.Step(ctx, cartpole.PushRight)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Done).To(BeTrue())
			Expect(first.Reward).To(Equal(0))

			second, err := client.Step(ctx, cartpole.PushRight)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).NotTo(Equal(first))
		})
	})

	Describe("errors", func() {
		It("rejects step before reset", func() {
			_, err := client.Step(ctx, cartpole.PushLeft)
			Expect(err).To(MatchError(cartpole.ErrUninitialized))

			var remote *bridge.RemoteError
			Expect(errors.As(err, &remote)).To(BeTrue())
			Expect(remote.Code).To(Equal(bridge.CodeUninitialized))
		})

		It("rejects actions outside {0, 1} and keeps the session usable", func() {
			_, err := client.Reset(ctx)
			Expect(err).NotTo(HaveOccurred())

			_, err = client.Step(ctx, cartpole.Action(2))
			Expect(err).To(MatchError(cartpole.ErrInvalidAction))

			st, err := client.Step(ctx, cartpole.PushLeft)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.X).To(BeNumerically("~", 1.02, 1e-12))
		})

		It("answers malformed lines and unknown ops without closing", func() {
			conn, err := net.Dial("tcp", h.addr)
			Expect(err).NotTo(HaveOccurred())
			defer conn.Close()
			sc := bufio.NewScanner(conn)

			read := func() bridge.Response {
				Expect(sc.Scan()).To(BeTrue())
				var resp bridge.Response
				Expect(json.Unmarshal(sc.Bytes(), &resp)).To(Succeed())
				return resp
			}

			_, err = conn.Write([]byte("{not json\n"))
			Expect(err).NotTo(HaveOccurred())
			Expect(read().Error.Code).To(Equal(bridge.CodeBadRequest))

			_, err = conn.Write([]byte(`{"id":7,"op":"render"}` + "\n"))
			Expect(err).NotTo(HaveOccurred())
			resp := read()
			Expect(resp.ID).To(Equal(uint64(7)))
			Expect(resp.Error.Code).To(Equal(bridge.CodeUnknownOp))

			_, err = conn.Write([]byte(`{"id":8,"op":"step"}` + "\n"))
			Expect(err).NotTo(HaveOccurred())
			Expect(read().Error.Code).To(Equal(bridge.CodeBadRequest))

			_, err = conn.Write([]byte(`{"id":9,"op":"action_space"}` + "\n"))
			Expect(err).NotTo(HaveOccurred())
			Expect(read().Value).To(Equal(2))
		})
	})

	Describe("sessions", func() {
		It("gives every connection its own simulator", func() {
			other := dial(h.addr)
			defer other.Close()

			_, err := client.Reset(ctx)
			Expect(err).NotTo(HaveOccurred())
			_, err = client.Step(ctx, cartpole.PushRight)
			Expect(err).NotTo(HaveOccurred())

			_, err = other.Step(ctx, cartpole.PushRight)
			Expect(err).To(MatchError(cartpole.ErrUninitialized))

			Eventually(h.server.Sessions).Should(Equal(2))
		})

		It("drives a full episode run through the client", func() {
			runner := episode.New(client, controllers.NewConstant(cartpole.PushLeft), nil)
			result, err := runner.Run(ctx, episode.Config{Episodes: 3})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Episodes).To(HaveLen(3))
			for _, ep := range result.Episodes {
				Expect(ep.Steps).To(Equal(1))
				Expect(ep.Terminated).To(BeTrue())
			}
		})
	})
})

var _ = Describe("Server configuration", func() {
	It("applies simulator options to every session", func() {
		h := startServer(bridge.Config{}, cartpole.WithInitialState(0, 0, 0, 0))
		defer h.stop()
		client := dial(h.addr)
		defer client.Close()

		st, err := client.Reset(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(st).To(Equal(cartpole.EpisodeState{Reward: 1}))
	})

	It("reports the bound address", func() {
		h := startServer(bridge.Config{})
		defer h.stop()
		Eventually(h.server.Addr).Should(Equal(h.addr))
	})

	It("rejects connections beyond the session limit", func() {
		h := startServer(bridge.Config{MaxSessions: 1})
		defer h.stop()

		first := dial(h.addr)
		defer first.Close()
		Eventually(h.server.Sessions).Should(Equal(1))

		second := dial(h.addr)
		defer second.Close()
		_, err := second.ActionSpace(context.Background())
		Expect(err).To(HaveOccurred())

		n, err := first.ActionSpace(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(2))
	})

	It("closes idle sessions", func() {
		h := startServer(bridge.Config{IdleTimeout: 100 * time.Millisecond})
		defer h.stop()
		client := dial(h.addr)
		defer client.Close()

		_, err := client.ActionSpace(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Eventually(h.server.Sessions, 2*time.Second).Should(Equal(0))
	})

	It("honours client context cancellation", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		defer ln.Close()
		go func() {
			conn, err := ln.Accept()
			if err == nil {
				defer conn.Close()
				time.Sleep(2 * time.Second)
			}
		}()

		client := dial(ln.Addr().String())
		defer client.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_, err = client.Reset(ctx)
		Expect(err).To(MatchError(context.DeadlineExceeded))
	})

	It("refuses further calls after a timed out exchange", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		defer ln.Close()
		go func() {
			conn, err := ln.Accept()
			if err == nil {
				defer conn.Close()
				time.Sleep(2 * time.Second)
			}
		}()

		client := dial(ln.Addr().String())
		defer client.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_, err = client.Reset(ctx)
		Expect(err).To(MatchError(context.DeadlineExceeded))

		start := time.Now()
		_, err = client.ObservationSpace(context.Background())
		Expect(err).To(MatchError(bridge.ErrClientClosed))
		Expect(time.Since(start)).To(BeNumerically("<", time.Second))
		Expect(client.Close()).To(Succeed())
	})

	It("closes open sessions when the listener fails", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		server := bridge.NewServer(bridge.Config{}, nil)
		done := make(chan error, 1)
		go func() {
			done <- server.Serve(context.Background(), ln)
		}()

		client := dial(ln.Addr().String())
		defer client.Close()
		_, err = client.ActionSpace(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(server.Sessions()).To(Equal(1))

		Expect(ln.Close()).To(Succeed())
		Eventually(done, 5*time.Second).Should(Receive(HaveOccurred()))
		Expect(server.Sessions()).To(Equal(0))

		_, err = client.ActionSpace(context.Background())
		Expect(err).To(HaveOccurred())
	})

	It("answers over-long lines with bad_request and keeps the session", func() {
		h := startServer(bridge.Config{MaxLineBytes: 64})
		defer h.stop()

		conn, err := net.Dial("tcp", h.addr)
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()
		sc := bufio.NewScanner(conn)

		read := func() bridge.Response {
			Expect(sc.Scan()).To(BeTrue())
			var resp bridge.Response
			Expect(json.Unmarshal(sc.Bytes(), &resp)).To(Succeed())
			return resp
		}

		long := `{"id":1,"op":"action_space","pad":"` + strings.Repeat("x", 8192) + `"}` + "\n"
		_, err = conn.Write([]byte(long))
		Expect(err).NotTo(HaveOccurred())
		resp := read()
		Expect(resp.Error).NotTo(BeNil())
		Expect(resp.Error.Code).To(Equal(bridge.CodeBadRequest))

		_, err = conn.Write([]byte(`{"id":2,"op":"action_space"}` + "\n"))
		Expect(err).NotTo(HaveOccurred())
		resp = read()
		Expect(resp.ID).To(Equal(uint64(2)))
		Expect(resp.Value).To(Equal(2))
	})
})
