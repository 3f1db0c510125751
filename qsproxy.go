// Package qsproxy is the top-level entry point tying the configuration
// substrate, TLS strategy, and proxy supervisor together into one running
// process, mirroring caddy.Config/caddy.Run: a small struct describing what
// to run plus a Run function that wires the pieces and blocks until
// shutdown.
package qsproxy

import (
	"context"
	"fmt"
	"time"

	"github.com/jerryr7/quantum-safe-proxy/admin"
	"github.com/jerryr7/quantum-safe-proxy/audit"
	"github.com/jerryr7/quantum-safe-proxy/bufpool"
	"github.com/jerryr7/quantum-safe-proxy/config"
	"github.com/jerryr7/quantum-safe-proxy/configmgr"
	"github.com/jerryr7/quantum-safe-proxy/proxy"
	"github.com/jerryr7/quantum-safe-proxy/qserrors"
	"github.com/jerryr7/quantum-safe-proxy/tlsstrategy"
	"go.uber.org/zap"
)

// Config is the top-level description of one running proxy process: the
// validated startup CV plus the DOMAIN collaborators (admin API, audit log)
// that are optional.
type Config struct {
	CV        *config.ProxyConfig
	Admin     *admin.Config // nil disables the admin API
	AuditPath string        // empty disables the audit log
	Log       *zap.Logger
}

// Instance is a running proxy process: its configuration manager, admin
// server, audit logger, and supervisor, all wired together. Run builds one
// internally and closes it before returning; the core reaches these through
// the control-message channel and configmgr, never direct field access.
type Instance struct {
	Manager    *configmgr.Manager
	Supervisor *proxy.Supervisor
	admin      *admin.Server
	auditLog   *audit.Logger
	log        *zap.Logger
}

// Run validates and installs cfg.CV, builds the TLS acceptor and buffer
// pool, starts the supervisor and (if configured) the admin server, and
// blocks until ctx is cancelled, at which point it drains gracefully and
// returns. It mirrors caddy.Run's "build it, run it, block" shape.
func Run(ctx context.Context, cfg Config) error {
	inst, err := newInstance(cfg)
	if err != nil {
		return err
	}
	defer inst.close()

	if inst.admin != nil {
		go func() {
			if err := inst.admin.ListenAndServe(); err != nil && cfg.Log != nil {
				cfg.Log.Warn("admin server stopped", zap.Error(err))
			}
		}()
	}

	runErr := make(chan error, 1)
	go func() { runErr <- inst.Supervisor.Run(ctx, cfg.CV.ListenAddr()) }()

	<-ctx.Done()
	if cfg.Log != nil {
		cfg.Log.Info("shutdown signal received, draining")
	}
	done := make(chan struct{})
	inst.Supervisor.Control() <- proxy.Shutdown{Deadline: proxy.DefaultDrainDeadline, Done: done}
	<-done

	if inst.auditLog != nil {
		inst.auditLog.Append(audit.KindShutdown, "graceful shutdown complete")
	}

	return <-runErr
}

func newInstance(cfg Config) (*Instance, error) {
	mgr := configmgr.New()
	if err := mgr.Install(cfg.CV); err != nil {
		return nil, qserrors.Configuration("install startup configuration", err)
	}

	var auditLogger *audit.Logger
	if cfg.AuditPath != "" {
		logger, err := audit.Open(cfg.AuditPath)
		if err != nil {
			return nil, qserrors.IO("open audit log", err)
		}
		auditLogger = logger
	}

	caps := tlsstrategy.ProbeCapabilities()
	acceptor, err := tlsstrategy.New(cfg.CV, caps, cfg.Log)
	if err != nil {
		return nil, qserrors.Certificate("build TLS acceptor", err)
	}

	pool := bufpool.New(cfg.CV.BufferSize(), bufpool.DefaultMaxBuffers)
	dialTimeout := time.Duration(cfg.CV.ConnectionTimeoutSeconds()) * time.Second
	sup := proxy.New(cfg.CV.TargetAddr(), acceptor.Config(), dialTimeout, pool, cfg.Log)

	mgr.Subscribe(func(event configmgr.Event, newCV *config.ProxyConfig) {
		newCaps := tlsstrategy.ProbeCapabilities()
		newAcceptor, err := tlsstrategy.New(newCV, newCaps, cfg.Log)
		if err != nil {
			if cfg.Log != nil {
				cfg.Log.Error("rebuilding acceptor after config change failed; keeping previous acceptor", zap.Error(err))
			}
			if auditLogger != nil {
				auditLogger.Append(audit.KindConfigRejected, err.Error())
			}
			return
		}
		sup.Control() <- proxy.UpdateConfig{
			TargetAddr:  newCV.TargetAddr(),
			TLSConfig:   newAcceptor.Config(),
			DialTimeout: time.Duration(newCV.ConnectionTimeoutSeconds()) * time.Second,
			Pool:        bufpool.New(newCV.BufferSize(), bufpool.DefaultMaxBuffers),
		}
		if auditLogger != nil {
			auditLogger.Append(audit.KindConfigReload, fmt.Sprintf("event=%v listen=%s target=%s", event, newCV.ListenAddr(), newCV.TargetAddr()))
		}
	})

	var adminServer *admin.Server
	if cfg.Admin != nil {
		adminServer = admin.New(*cfg.Admin, mgr, cfg.Log)
	}

	return &Instance{
		Manager:    mgr,
		Supervisor: sup,
		admin:      adminServer,
		auditLog:   auditLogger,
		log:        cfg.Log,
	}, nil
}

func (inst *Instance) close() {
	if inst.admin != nil {
		inst.admin.Close()
	}
	if inst.auditLog != nil {
		inst.auditLog.Close()
	}
}
