package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"time"
)

// Default certificate locations when no environment override is present.
const (
	defaultCertPath = "./certs/server.crt"
	defaultKeyPath  = "./certs/server.key"
)

// loadTLSConfig builds the server TLS configuration. The certificate pair is
// taken, in order, from inline PEM environment variables
// (SINGLECERTS_CERT_PEM / SINGLECERTS_KEY_PEM), env-named file paths
// (SINGLECERTS_CERT_PATH / SINGLECERTS_KEY_PATH), or the filesystem defaults.
func loadTLSConfig() (*tls.Config, error) {
	var cert tls.Certificate
	var err error

	switch {
	case os.Getenv("SINGLECERTS_CERT_PEM") != "":
		cert, err = tls.X509KeyPair(
			[]byte(os.Getenv("SINGLECERTS_CERT_PEM")),
			[]byte(os.Getenv("SINGLECERTS_KEY_PEM")),
		)
		if err != nil {
			return nil, fmt.Errorf("inline PEM pair: %w", err)
		}
	case os.Getenv("SINGLECERTS_CERT_PATH") != "":
		cert, err = tls.LoadX509KeyPair(
			os.Getenv("SINGLECERTS_CERT_PATH"),
			os.Getenv("SINGLECERTS_KEY_PATH"),
		)
		if err != nil {
			return nil, fmt.Errorf("env cert paths: %w", err)
		}
	default:
		cert, err = tls.LoadX509KeyPair(defaultCertPath, defaultKeyPath)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", defaultCertPath, err)
		}
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// devTLSConfig creates a self-signed certificate for development runs where
// no real certificate pair is configured. Returns the config and the SHA-256
// fingerprint so operators can pin it on the client side.
func devTLSConfig(validity time.Duration, hostname string) (*tls.Config, string, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, "", fmt.Errorf("generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, "", fmt.Errorf("generate serial: %w", err)
	}

	cn := "suteravr-clocking"
	if hostname != "" {
		cn = hostname
	}
	sans := []string{"localhost"}
	if hostname != "" && hostname != "localhost" {
		sans = append(sans, hostname)
	}

	tmpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              sans,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, "", fmt.Errorf("create certificate: %w", err)
	}

	fp := sha256.Sum256(certDER)
	fingerprint := hex.EncodeToString(fp[:])

	cfg := &tls.Config{
		Certificates: []tls.Certificate{{
			Certificate: [][]byte{certDER},
			PrivateKey:  key,
		}},
		MinVersion: tls.VersionTLS13,
	}
	return cfg, fingerprint, nil
}

// generatePEMPair creates a self-signed certificate and returns it PEM
// encoded. The tests use it to feed the inline-PEM and env-path loading paths.
func generatePEMPair(hostname string, validity time.Duration) (certPEM, keyPEM []byte, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, err
	}
	tmpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: hostname},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{hostname},
	}
	certDER, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, err
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, nil, err
	}
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}
