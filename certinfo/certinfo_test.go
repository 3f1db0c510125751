package certinfo

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyHybrid(t *testing.T) {
	assert.Equal(t, Hybrid, Classify("P256_ML-DSA-65"))
	assert.Equal(t, Hybrid, Classify("RSA_SLH-DSA-128s"))
}

func TestClassifyPurePQC(t *testing.T) {
	assert.Equal(t, PurePQC, Classify("ML-DSA-65"))
	assert.Equal(t, PurePQC, Classify("Falcon-512"))
	assert.Equal(t, PurePQC, Classify("Kyber768"))
}

func TestClassifyClassical(t *testing.T) {
	assert.Equal(t, Classical, Classify("sha256WithRSAEncryption"))
	assert.Equal(t, Classical, Classify("ecdsa-with-SHA384"))
}

func TestClassifyStableUnderUnrelatedSurroundingCharacters(t *testing.T) {
	base := Classify("P256_ML-DSA")
	assert.Equal(t, base, Classify("xxxP256_ML-DSAyyy"))
	assert.Equal(t, base, Classify("  P256_ML-DSA-44  "))
}

// generateSelfSignedPEM builds a throwaway self-signed ECDSA certificate in
// memory, purely to exercise certinfo's PEM/X.509 parsing path.
func generateSelfSignedPEM(t *testing.T) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{"Acme Co"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		DNSNames:     []string{"example.com"},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func TestInspectPEM(t *testing.T) {
	ins := New(nil)
	info, err := ins.InspectPEM(generateSelfSignedPEM(t))
	require.NoError(t, err)
	assert.NotEmpty(t, info.Subject)
	assert.Len(t, []byte(info.FingerprintSHA2), sha256HexColonLen)
	assert.Equal(t, Classical, info.Type)
}

func TestInspectPEMRejectsMalformed(t *testing.T) {
	ins := New(nil)
	_, err := ins.InspectPEM([]byte("not a certificate"))
	assert.Error(t, err)
}

// sha256HexColonLen is 32 bytes * 2 hex chars + 31 separating colons.
const sha256HexColonLen = 32*2 + 31
