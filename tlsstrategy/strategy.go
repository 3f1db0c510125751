package tlsstrategy

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/jerryr7/quantum-safe-proxy/certinfo"
	"github.com/jerryr7/quantum-safe-proxy/config"
	"github.com/jerryr7/quantum-safe-proxy/qserrors"
)

// Kind names the certificate-selection policy a Strategy implements.
type Kind string

const (
	// KindSingle installs exactly one cert/key pair; every handshake
	// presents it.
	KindSingle Kind = "single"
	// KindDynamic installs both a classical and a hybrid pair; the
	// certificate callback selects per-handshake based on the key-exchange
	// groups the client advertises (see getCertificate).
	KindDynamic Kind = "dynamic"
	// KindSigAlgs is currently equivalent to KindDynamic: the certificate
	// callback selects on ClientHelloInfo.SupportedCurves exactly as it does
	// for KindDynamic (see getCertificate). crypto/tls's stdlib
	// SignatureScheme enum has no hybrid/PQC-aware values to distinguish on,
	// so true signature-algorithm-based selection isn't implementable
	// without inventing non-standard scheme IDs; this variant is kept,
	// rather than dropped, as the named hook for that inspection once such
	// values exist (see DESIGN.md's Open Question decision).
	KindSigAlgs Kind = "sigalgs"
)

// CertKeyPair names a certificate/key file pair on disk.
type CertKeyPair struct {
	CertPath string
	KeyPath  string
}

// Strategy is the tagged policy describing which server certificate(s) a
// TLS acceptor should present.
type Strategy struct {
	Kind      Kind
	Single    *CertKeyPair // set iff Kind == KindSingle
	Classical *CertKeyPair // set iff Kind != KindSingle
	Hybrid    *CertKeyPair // set iff Kind != KindSingle
}

// Derive implements the CV -> Strategy derivation rule: Dynamic when both
// fallback_cert and fallback_key are set, Single otherwise. The explicit
// SigAlgs variant is never derived automatically -- it is only reachable by
// constructing a Strategy directly, since the config model has no knob to
// request it (see DESIGN.md's Open Question decision).
func Derive(pc *config.ProxyConfig) Strategy {
	if pc.HasFallback() {
		return Strategy{
			Kind:      KindDynamic,
			Classical: &CertKeyPair{CertPath: pc.FallbackCert(), KeyPath: pc.FallbackKey()},
			Hybrid:    &CertKeyPair{CertPath: pc.Cert(), KeyPath: pc.Key()},
		}
	}
	return Strategy{
		Kind:   KindSingle,
		Single: &CertKeyPair{CertPath: pc.Cert(), KeyPath: pc.Key()},
	}
}

// AsSigAlgs returns a copy of s with Kind forced to KindSigAlgs, keeping the
// same Classical/Hybrid material. It is a no-op (returns s unchanged) when s
// is KindSingle, since SigAlgs selection requires two candidate pairs.
func (s Strategy) AsSigAlgs() Strategy {
	if s.Kind != KindDynamic && s.Kind != KindSigAlgs {
		return s
	}
	s.Kind = KindSigAlgs
	return s
}

func loadPair(p *CertKeyPair) (tls.Certificate, certinfo.Info, error) {
	cert, err := tls.LoadX509KeyPair(p.CertPath, p.KeyPath)
	if err != nil {
		return tls.Certificate{}, certinfo.Info{}, qserrors.Certificate(
			fmt.Sprintf("load key pair %s/%s", p.CertPath, p.KeyPath), err)
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return tls.Certificate{}, certinfo.Info{}, qserrors.Certificate("parse leaf certificate", err)
	}
	info := certinfo.New(nil).InspectParsed(leaf)
	return cert, info, nil
}

// clientAuthMode maps config.ClientCertMode to crypto/tls's ClientAuthType.
func clientAuthMode(mode config.ClientCertMode) tls.ClientAuthType {
	switch mode {
	case config.ClientCertRequired:
		return tls.RequireAndVerifyClientCert
	case config.ClientCertOptional:
		return tls.VerifyClientCertIfGiven
	default:
		return tls.NoClientCert
	}
}

func loadClientCAs(path string) (*x509.CertPool, error) {
	if path == "" {
		return nil, nil
	}
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, qserrors.Certificate(fmt.Sprintf("read client CA bundle %s", path), err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemBytes) {
		return nil, qserrors.Certificate("parse client CA bundle", fmt.Errorf("no certificates found in %s", path))
	}
	return pool, nil
}
