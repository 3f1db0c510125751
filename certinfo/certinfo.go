// Package certinfo implements the certificate inspector (C3): classifying a
// PEM-encoded X.509 certificate as Classical, Hybrid, or PurePQC from its
// signature-algorithm identifier, plus read-only subject/fingerprint
// rendering.
package certinfo

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"github.com/jerryr7/quantum-safe-proxy/qserrors"
)

// Type is the derived classification of a certificate's signature
// algorithm.
type Type int

const (
	// Classical is any certificate whose signature algorithm carries no PQC
	// marker (e.g. RSA, ECDSA).
	Classical Type = iota
	// Hybrid is a composite classical+PQC signature algorithm (e.g.
	// P256_ML-DSA).
	Hybrid
	// PurePQC is a pure post-quantum signature algorithm with no classical
	// partner (e.g. ML-DSA, Falcon).
	PurePQC
)

func (t Type) String() string {
	switch t {
	case Hybrid:
		return "hybrid"
	case PurePQC:
		return "pure-pqc"
	default:
		return "classical"
	}
}

// hybridMarkers, checked first, identify composite classical+PQC signature
// schemes. Order within each list doesn't matter; order between the two
// lists does (hybrid must be checked before pure-PQC since some hybrid
// names also contain a pure-PQC substring, e.g. "ML-DSA").
var hybridMarkers = []string{
	"P256_ML-DSA", "P384_ML-DSA", "P521_ML-DSA", "RSA_ML-DSA",
	"P256_SLH-DSA", "P384_SLH-DSA", "P521_SLH-DSA", "RSA_SLH-DSA",
}

var purePQCMarkers = []string{
	"ML-DSA", "SLH-DSA", "Dilithium", "Falcon", "Kyber",
}

// Classify derives a Type from a raw signature-algorithm name string,
// applying the hybrid-then-pure-PQC-then-classical ordering. It is a pure
// function of its input: unrelated surrounding characters never change the
// outcome, since matching is substring-based.
func Classify(algorithmName string) Type {
	for _, marker := range hybridMarkers {
		if strings.Contains(algorithmName, marker) {
			return Hybrid
		}
	}
	for _, marker := range purePQCMarkers {
		if strings.Contains(algorithmName, marker) {
			return PurePQC
		}
	}
	return Classical
}

// AlgorithmNamer extracts the human-readable signature-algorithm identifier
// from a parsed certificate. The default, DefaultAlgorithmName, reports the
// stdlib crypto/x509 name, which has no PQC members; a PQC-capable TLS
// library can supply a richer implementation here without certinfo needing
// to change.
type AlgorithmNamer func(*x509.Certificate) string

// DefaultAlgorithmName returns crypto/x509's own stringification of the
// certificate's signature algorithm.
func DefaultAlgorithmName(cert *x509.Certificate) string {
	return cert.SignatureAlgorithm.String()
}

// Info is the read-only result of inspecting a certificate.
type Info struct {
	Type            Type
	AlgorithmName   string
	Subject         string
	FingerprintSHA2 string // colon-separated hex SHA-256 of the DER encoding
}

// Inspector loads and classifies certificates. The zero value uses
// DefaultAlgorithmName.
type Inspector struct {
	AlgorithmName AlgorithmNamer
}

// New returns an Inspector using namer to extract signature-algorithm names,
// or DefaultAlgorithmName if namer is nil.
func New(namer AlgorithmNamer) *Inspector {
	if namer == nil {
		namer = DefaultAlgorithmName
	}
	return &Inspector{AlgorithmName: namer}
}

// InspectPEM parses a single PEM-encoded certificate (the leaf, i.e. the
// first CERTIFICATE block) and classifies it.
func (ins *Inspector) InspectPEM(pemBytes []byte) (Info, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil || block.Type != "CERTIFICATE" {
		return Info{}, qserrors.Certificate("decode PEM", fmt.Errorf("no CERTIFICATE block found"))
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return Info{}, qserrors.Certificate("parse certificate", err)
	}

	return ins.InspectParsed(cert), nil
}

// InspectFile reads and classifies the PEM certificate at path.
func (ins *Inspector) InspectFile(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, qserrors.Certificate(fmt.Sprintf("read %s", path), err)
	}
	return ins.InspectPEM(data)
}

// InspectParsed classifies an already-parsed certificate.
func (ins *Inspector) InspectParsed(cert *x509.Certificate) Info {
	algName := ins.AlgorithmName(cert)
	sum := sha256.Sum256(cert.Raw)
	return Info{
		Type:            Classify(algName),
		AlgorithmName:   algName,
		Subject:         cert.Subject.String(),
		FingerprintSHA2: hexColon(sum[:]),
	}
}

func hexColon(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 0, len(b)*3-1)
	for i, c := range b {
		if i > 0 {
			out = append(out, ':')
		}
		out = append(out, hexDigits[c>>4], hexDigits[c&0x0f])
	}
	return string(out)
}
