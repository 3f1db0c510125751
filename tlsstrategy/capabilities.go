// Package tlsstrategy implements the certificate-selection strategy (C4):
// deriving a Strategy from validated configuration and applying it to a
// fresh *tls.Config, including the hybrid/classical group and ciphersuite
// policy driven by a one-time startup capability probe.
package tlsstrategy

import (
	"crypto/tls"

	"github.com/klauspost/cpuid/v2"
)

// Capabilities is the result of probing the linked TLS stack and host CPU
// once at startup. It drives group/ciphersuite ordering in Acceptor.Config.
type Capabilities struct {
	// PQCAvailable is true when the linked crypto/tls supports at least one
	// hybrid post-quantum key-exchange group.
	PQCAvailable bool
	// HybridGroups are offered first, PQC-capable-client-first, when
	// PQCAvailable.
	HybridGroups []tls.CurveID
	// ClassicalGroups are always offered, after HybridGroups if present.
	ClassicalGroups []tls.CurveID
	// CipherSuites is the fixed, modern TLS 1.2 ciphersuite list; TLS 1.3
	// suites are not configurable in crypto/tls and are always available.
	CipherSuites []uint16
	// AESHardwareAccelerated reports whether the host CPU has AES-NI (or
	// equivalent), informing which TLS 1.2 cipher Go's runtime will prefer;
	// surfaced in diagnostics, not used to change the offered suite list.
	AESHardwareAccelerated bool
}

// classicalGroups is always offered, in RFC-recommended preference order.
var classicalGroups = []tls.CurveID{tls.X25519, tls.CurveP256, tls.CurveP384, tls.CurveP521}

// requiredCipherSuites are the ECDHE AES-GCM AEAD suites the strategy always
// installs for TLS 1.2 connections (TLS 1.3's suites, TLS_AES_256_GCM_SHA384
// and TLS_AES_128_GCM_SHA256 among them, are always enabled and not
// user-configurable in crypto/tls).
var requiredCipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
}

// hybridGroupProbe is overridable in tests; by default it reports the
// hybrid post-quantum groups the linked crypto/tls build actually supports.
// The standard library has offered X25519MLKEM768 since Go 1.24; the
// additional groups named in the wider PQC literature (P256MLKEM768,
// P384MLKEM1024) require a PQC-capable TLS library beyond crypto/tls and so
// are not enumerated here (see DESIGN.md).
var hybridGroupProbe = func() []tls.CurveID {
	return []tls.CurveID{tls.X25519MLKEM768}
}

// ProbeCapabilities inspects the linked crypto/tls and host CPU once at
// startup.
func ProbeCapabilities() Capabilities {
	hybrid := hybridGroupProbe()
	return Capabilities{
		PQCAvailable:           len(hybrid) > 0,
		HybridGroups:           hybrid,
		ClassicalGroups:        append([]tls.CurveID{}, classicalGroups...),
		CipherSuites:           append([]uint16{}, requiredCipherSuites...),
		AESHardwareAccelerated: cpuid.CPU.Supports(cpuid.AESNI),
	}
}

// CurvePreferences returns the full, ordered group list Acceptor.Config installs:
// hybrid groups first when PQC is available, then classical groups.
func (c Capabilities) CurvePreferences() []tls.CurveID {
	prefs := make([]tls.CurveID, 0, len(c.HybridGroups)+len(c.ClassicalGroups))
	if c.PQCAvailable {
		prefs = append(prefs, c.HybridGroups...)
	}
	return append(prefs, c.ClassicalGroups...)
}
