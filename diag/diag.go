// Package diag produces the environment-diagnostic report (§3 DOMAIN
// additions) consumed by cmd/qs-diag: a read-only summary of the linked TLS
// stack's post-quantum capabilities, computed entirely from
// tlsstrategy.ProbeCapabilities().
package diag

import (
	"crypto/tls"
	"fmt"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/jerryr7/quantum-safe-proxy/tlsstrategy"
)

// Report is the structured diagnostic output: provider identity, PQC
// availability, the groups and signature algorithms in play, and any
// warnings worth surfacing to an operator.
type Report struct {
	ProviderName      string   `json:"provider_name"`
	GoVersion         string   `json:"go_version"`
	PQCAvailable      bool     `json:"pqc_available"`
	SupportedGroups   []string `json:"supported_groups"`
	SupportedSigAlgs  []string `json:"supported_sigalgs"`
	AESAccelerated    bool     `json:"aes_hardware_accelerated"`
	Warnings          []string `json:"warnings"`
}

// groupNames maps the tls.CurveID values the capability probe can report to
// their human-readable names; crypto/tls does not expose a String() method
// for every group it defines.
var groupNames = map[tls.CurveID]string{
	tls.X25519:          "X25519",
	tls.CurveP256:       "P256",
	tls.CurveP384:       "P384",
	tls.CurveP521:       "P521",
	tls.X25519MLKEM768:  "X25519MLKEM768",
}

// Generate runs the capability probe and assembles a Report. Warnings are
// non-fatal operator-facing notes, e.g. when PQC groups are unavailable.
func Generate() Report {
	caps := tlsstrategy.ProbeCapabilities()

	groups := make([]string, 0, len(caps.HybridGroups)+len(caps.ClassicalGroups))
	for _, g := range caps.HybridGroups {
		groups = append(groups, groupName(g))
	}
	for _, g := range caps.ClassicalGroups {
		groups = append(groups, groupName(g))
	}

	var warnings []string
	if !caps.PQCAvailable {
		warnings = append(warnings, "no hybrid post-quantum key-exchange group is available in the linked crypto/tls build")
	}
	if !caps.AESHardwareAccelerated {
		warnings = append(warnings, "host CPU lacks AES-NI; AES-GCM cipher suites will run in software")
	}

	return Report{
		ProviderName:     "crypto/tls (Go standard library)",
		GoVersion:        runtime.Version(),
		PQCAvailable:     caps.PQCAvailable,
		SupportedGroups:  groups,
		SupportedSigAlgs: sigAlgNames(),
		AESAccelerated:   caps.AESHardwareAccelerated,
		Warnings:         warnings,
	}
}

// sigAlgNames lists the TLS 1.2 signature schemes crypto/tls negotiates;
// there is no runtime probe for these in the standard library, so the list
// mirrors the set documented for crypto/tls.Config.CipherSuites' peers.
func sigAlgNames() []string {
	return []string{
		"ecdsa_secp256r1_sha256",
		"ecdsa_secp384r1_sha384",
		"rsa_pss_rsae_sha256",
		"rsa_pkcs1_sha256",
		"ed25519",
	}
}

func groupName(id tls.CurveID) string {
	if name, ok := groupNames[id]; ok {
		return name
	}
	return fmt.Sprintf("0x%04x", uint16(id))
}

// Summary renders a short, human-friendly one-line description of r,
// suitable for qs-diag's default (non-JSON) output.
func Summary(r Report) string {
	status := "unavailable"
	if r.PQCAvailable {
		status = "available"
	}
	return fmt.Sprintf("%s: PQC %s, %s groups, %s", r.ProviderName, status,
		humanize.Comma(int64(len(r.SupportedGroups))), r.GoVersion)
}
