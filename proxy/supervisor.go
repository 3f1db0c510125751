package proxy

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/jerryr7/quantum-safe-proxy/bufpool"
	"go.uber.org/zap"
)

// State is the supervisor's lifecycle stage (§4.7).
type State int

const (
	StateInit State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// DefaultDrainDeadline bounds how long Shutdown waits for in-flight
// connections before giving up and logging the stragglers.
const DefaultDrainDeadline = 30 * time.Second

// Message is the supervisor's only mutation surface: admin API handlers and
// signal handlers communicate exclusively through a Message sent on the
// control channel, never by reaching into supervisor state directly.
type Message interface {
	isMessage()
}

// UpdateConfig atomically replaces the acceptor's TLS config, the upstream
// target address, and the buffer pool used by new connections. In-flight
// connections are unaffected; only subsequent accepts observe the change.
type UpdateConfig struct {
	TargetAddr  string
	TLSConfig   *tls.Config
	DialTimeout time.Duration
	Pool        *bufpool.Pool
}

func (UpdateConfig) isMessage() {}

// Shutdown begins draining: the supervisor stops accepting and waits for
// in-flight tasks up to deadline (DefaultDrainDeadline if zero).
type Shutdown struct {
	Deadline time.Duration
	// Done, if non-nil, is closed once the supervisor reaches StateStopped.
	Done chan struct{}
}

func (Shutdown) isMessage() {}

type acceptResult struct {
	conn net.Conn
	err  error
}

// Supervisor owns the listening socket and the set of in-flight
// per-connection tasks (C7). All mutable state it holds is reached only
// through the control-message channel; the accept loop and the task-done
// channel are its only other sources of work.
type Supervisor struct {
	listener net.Listener
	log      *zap.Logger

	targetAddr  string
	tlsConfig   *tls.Config
	dialTimeout time.Duration
	pool        *bufpool.Pool

	control chan Message
	done    chan *connTask

	state      State
	tasks      map[*connTask]struct{}
	errorCount int
}

type connTask struct {
	conn net.Conn
	err  error
}

// New constructs a Supervisor in StateInit, not yet bound to a socket.
func New(targetAddr string, tlsConfig *tls.Config, dialTimeout time.Duration, pool *bufpool.Pool, log *zap.Logger) *Supervisor {
	return &Supervisor{
		log:         log,
		targetAddr:  targetAddr,
		tlsConfig:   tlsConfig,
		dialTimeout: dialTimeout,
		pool:        pool,
		control:     make(chan Message, 8),
		done:        make(chan *connTask, 64),
		state:       StateInit,
		tasks:       make(map[*connTask]struct{}),
	}
}

// Control returns the channel callers send Messages on. It is the only
// externally visible mutation surface.
func (s *Supervisor) Control() chan<- Message {
	return s.control
}

// State, ActiveCount, and ErrorCount read Supervisor fields the Run loop
// owns exclusively; like the teacher's own admin introspection endpoints,
// callers use these only once Run has returned, or accept eventually
// consistent reads while it is active (there is no lock on the hot path).

// State reports the supervisor's current lifecycle stage.
func (s *Supervisor) State() State {
	return s.state
}

// ActiveCount reports the number of in-flight connection tasks.
func (s *Supervisor) ActiveCount() int {
	return len(s.tasks)
}

// ErrorCount reports how many completed tasks ended in a non-nil error.
func (s *Supervisor) ErrorCount() int {
	return s.errorCount
}

// Run binds listenAddr and executes the main loop until a Shutdown message
// drains to completion. It returns when the supervisor reaches StateStopped.
func (s *Supervisor) Run(ctx context.Context, listenAddr string) error {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.state = StateRunning

	accepted := make(chan acceptResult)
	acceptCtx, cancelAccept := context.WithCancel(ctx)
	defer cancelAccept()
	go s.acceptLoop(acceptCtx, accepted)

	var drainDeadline time.Time
	var drainDone chan struct{}

	for s.state != StateStopped {
		var deadlineC <-chan time.Time
		if s.state == StateDraining {
			remaining := time.Until(drainDeadline)
			if remaining <= 0 {
				s.finishDraining(drainDone)
				continue
			}
			timer := time.NewTimer(remaining)
			deadlineC = timer.C
			defer timer.Stop()
		}

		select {
		case res := <-accepted:
			if s.state == StateDraining {
				if res.conn != nil {
					res.conn.Close()
				}
				continue
			}
			if res.err != nil {
				if s.log != nil {
					s.log.Warn("accept error", zap.Error(res.err))
				}
				continue
			}
			s.spawn(ctx, res.conn)

		case msg := <-s.control:
			switch m := msg.(type) {
			case UpdateConfig:
				s.targetAddr = m.TargetAddr
				s.tlsConfig = m.TLSConfig
				s.dialTimeout = m.DialTimeout
				s.pool = m.Pool
				if s.log != nil {
					s.log.Info("configuration updated", zap.String("target_addr", m.TargetAddr))
				}
			case Shutdown:
				deadline := m.Deadline
				if deadline == 0 {
					deadline = DefaultDrainDeadline
				}
				drainDeadline = time.Now().Add(deadline)
				drainDone = m.Done
				s.state = StateDraining
				cancelAccept()
				if s.log != nil {
					s.log.Info("draining", zap.Int("active", len(s.tasks)))
				}
				if len(s.tasks) == 0 {
					s.finishDraining(drainDone)
				}
			}

		case task := <-s.done:
			delete(s.tasks, task)
			if task.err != nil {
				s.errorCount++
			}
			if s.state == StateDraining && len(s.tasks) == 0 {
				s.finishDraining(drainDone)
			}

		case <-deadlineC:
			if s.log != nil {
				s.log.Warn("drain deadline elapsed", zap.Int("stragglers", len(s.tasks)))
			}
			s.finishDraining(drainDone)
		}
	}

	return nil
}

func (s *Supervisor) finishDraining(done chan struct{}) {
	s.state = StateStopped
	s.listener.Close()
	if done != nil {
		close(done)
	}
}

func (s *Supervisor) acceptLoop(ctx context.Context, accepted chan<- acceptResult) {
	for {
		conn, err := s.listener.Accept()
		select {
		case <-ctx.Done():
			if conn != nil {
				conn.Close()
			}
			return
		default:
		}
		accepted <- acceptResult{conn: conn, err: err}
		if err != nil {
			return
		}
	}
}

func (s *Supervisor) spawn(ctx context.Context, conn net.Conn) {
	task := &connTask{conn: conn}
	s.tasks[task] = struct{}{}

	targetAddr, tlsConfig, dialTimeout, pool := s.targetAddr, s.tlsConfig, s.dialTimeout, s.pool

	go func() {
		_, err := Handle(ctx, conn, targetAddr, tlsConfig, dialTimeout, pool, s.log)
		if err != nil && s.log != nil {
			s.log.Debug("connection handler error", zap.Error(err))
		}
		task.err = err
		s.done <- task
	}()
}
