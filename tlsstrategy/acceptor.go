package tlsstrategy

import (
	"crypto/tls"
	"crypto/x509"

	"github.com/jerryr7/quantum-safe-proxy/certinfo"
	"github.com/jerryr7/quantum-safe-proxy/config"
	"go.uber.org/zap"
)

// Acceptor owns the *tls.Config a listener hands to tls.NewListener (or
// tls.Server, for already-accepted connections). It is rebuilt wholesale on
// every configuration reload and its Config is handed to the proxy
// supervisor in an UpdateConfig message; nothing inside an
// Acceptor mutates after construction.
type Acceptor struct {
	strategy     Strategy
	caps         Capabilities
	clientAuth   tls.ClientAuthType
	clientCAs    *x509.CertPool
	single       *tls.Certificate
	classical    *tls.Certificate
	classicalInf certinfo.Info
	hybrid       *tls.Certificate
	hybridInf    certinfo.Info
	log          *zap.Logger
}

// New loads the certificate material named by strategy, builds the client
// auth policy from pc, and returns an Acceptor ready for Config. Cert/key
// files are read once, here; a reload builds an entirely new Acceptor rather
// than mutating this one.
func New(pc *config.ProxyConfig, caps Capabilities, log *zap.Logger) (*Acceptor, error) {
	strategy := Derive(pc)

	clientCAs, err := loadClientCAs(pc.ClientCACert())
	if err != nil {
		return nil, err
	}

	a := &Acceptor{
		strategy:   strategy,
		caps:       caps,
		clientAuth: clientAuthMode(pc.ClientCertMode()),
		clientCAs:  clientCAs,
		log:        log,
	}

	switch strategy.Kind {
	case KindSingle:
		cert, info, err := loadPair(strategy.Single)
		if err != nil {
			return nil, err
		}
		a.single = &cert
		a.classicalInf = info
	case KindDynamic, KindSigAlgs:
		ccert, cinfo, err := loadPair(strategy.Classical)
		if err != nil {
			return nil, err
		}
		hcert, hinfo, err := loadPair(strategy.Hybrid)
		if err != nil {
			return nil, err
		}
		a.classical, a.classicalInf = &ccert, cinfo
		a.hybrid, a.hybridInf = &hcert, hinfo
	}

	return a, nil
}

// Config builds the *tls.Config this Acceptor presents to incoming
// connections. MinVersion is pinned to TLS 1.2; curve preferences and TLS
// 1.2 cipher suites are installed from the capability probe so hybrid
// groups are always offered ahead of classical ones when available.
func (a *Acceptor) Config() *tls.Config {
	return &tls.Config{
		MinVersion:       tls.VersionTLS12,
		CurvePreferences: a.caps.CurvePreferences(),
		CipherSuites:     a.caps.CipherSuites,
		ClientAuth:       a.clientAuth,
		ClientCAs:        a.clientCAs,
		GetCertificate:   a.getCertificate,
	}
}

// getCertificate is the crypto/tls server hook. For KindSingle it always
// returns the one loaded pair. For KindDynamic and KindSigAlgs it prefers
// the hybrid pair whenever the client's ClientHello offers a hybrid
// key-share group (see clientSupportsHybrid), falling back to the classical
// pair otherwise -- so a classical-only client still completes a handshake
// against the same listener. KindSigAlgs does not currently add any
// signature-algorithm-based inspection beyond what KindDynamic already
// does; see KindSigAlgs's doc comment.
func (a *Acceptor) getCertificate(chi *tls.ClientHelloInfo) (*tls.Certificate, error) {
	if a.strategy.Kind == KindSingle {
		return a.single, nil
	}

	if clientSupportsHybrid(chi, a.caps) {
		if a.log != nil {
			a.log.Debug("selecting hybrid certificate",
				zap.String("server_name", chi.ServerName),
				zap.String("algorithm", a.hybridInf.AlgorithmName))
		}
		return a.hybrid, nil
	}

	if a.log != nil {
		a.log.Debug("selecting classical certificate",
			zap.String("server_name", chi.ServerName),
			zap.String("algorithm", a.classicalInf.AlgorithmName))
	}
	return a.classical, nil
}

// clientSupportsHybrid reports whether chi advertises at least one of the
// capability probe's hybrid key-exchange groups among its supported curves.
// crypto/tls does not expose the raw signature_algorithms extension on
// ClientHelloInfo beyond SignatureSchemes, so group support is the signal
// used here; it is sufficient because every hybrid group name encodes a
// post-quantum KEM that only PQC-aware clients advertise.
func clientSupportsHybrid(chi *tls.ClientHelloInfo, caps Capabilities) bool {
	if !caps.PQCAvailable {
		return false
	}
	for _, offered := range chi.SupportedCurves {
		for _, hybrid := range caps.HybridGroups {
			if offered == hybrid {
				return true
			}
		}
	}
	return false
}

// ClassicalInfo and HybridInfo expose the loaded certificates' classification
// for diagnostics and the admin status endpoint. HybridInfo's zero value is
// meaningful (certinfo.Classical, empty fields) when strategy.Kind is
// KindSingle.
func (a *Acceptor) ClassicalInfo() certinfo.Info {
	return a.classicalInf
}

func (a *Acceptor) HybridInfo() certinfo.Info {
	return a.hybridInf
}

// StrategyKind reports which certificate-selection policy this Acceptor
// implements, for diagnostics and logging.
func (a *Acceptor) StrategyKind() Kind {
	return a.strategy.Kind
}
