package quic

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/meshforge/conduit/internal/logging"
	cerrors "github.com/meshforge/conduit/pkg/errors"
)

// alpnProtocol identifies the conduit wire protocol during the TLS
// handshake. Dialer and listener must agree on it.
const alpnProtocol = "conduit"

// ServerTLSConfig loads the given cert/key pair, or generates and caches
// a self-signed pair under ~/.conduit/certs when autoGen is set and no
// files are given.
func ServerTLSConfig(certFile, keyFile string, autoGen bool) (*tls.Config, error) {
	if certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, cerrors.ErrTLSConfig("load cert/key pair", err)
		}
		logging.Info("Loaded TLS certificate",
			logging.Field{Key: "cert", Value: certFile},
			logging.Field{Key: "key", Value: keyFile})
		return serverConfig(cert), nil
	}

	if autoGen {
		return generateSelfSignedCert()
	}

	return nil, cerrors.ErrTLSConfig("no certificate configured and auto-generation disabled", nil)
}

// TLSClientConfig builds the client-side TLS config for dialing. Set
// insecure to accept self-signed server certificates.
func TLSClientConfig(insecure bool) *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: insecure,
		NextProtos:         []string{alpnProtocol},
		MinVersion:         tls.VersionTLS13,
	}
}

func serverConfig(cert tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{alpnProtocol},
		MinVersion:   tls.VersionTLS13,
	}
}

func generateSelfSignedCert() (*tls.Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "/tmp"
	}
	certDir := filepath.Join(homeDir, ".conduit", "certs")
	certFile := filepath.Join(certDir, "server.crt")
	keyFile := filepath.Join(certDir, "server.key")

	// Reuse a previously generated pair when one exists.
	if _, err := os.Stat(certFile); err == nil {
		if _, err := os.Stat(keyFile); err == nil {
			cert, err := tls.LoadX509KeyPair(certFile, keyFile)
			if err == nil {
				logging.Info("Using existing self-signed certificate",
					logging.Field{Key: "path", Value: certDir})
				return serverConfig(cert), nil
			}
		}
	}

	if err := os.MkdirAll(certDir, 0700); err != nil {
		return nil, cerrors.ErrTLSConfig("create cert directory", err)
	}

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, cerrors.ErrTLSConfig("generate private key", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, cerrors.ErrTLSConfig("generate serial number", err)
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"Conduit"},
			CommonName:   "localhost",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
		DNSNames:              []string{"localhost"},
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, cerrors.ErrTLSConfig("create certificate", err)
	}

	certOut, err := os.Create(certFile)
	if err != nil {
		return nil, cerrors.ErrTLSConfig("create cert file", err)
	}
	pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: derBytes})
	certOut.Close()

	keyOut, err := os.OpenFile(keyFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, cerrors.ErrTLSConfig("create key file", err)
	}
	keyBytes, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		keyOut.Close()
		return nil, cerrors.ErrTLSConfig("marshal private key", err)
	}
	pem.Encode(keyOut, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes})
	keyOut.Close()

	logging.Info("Generated self-signed certificate",
		logging.Field{Key: "path", Value: certDir})

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, cerrors.ErrTLSConfig("load generated cert", err)
	}
	return serverConfig(cert), nil
}
