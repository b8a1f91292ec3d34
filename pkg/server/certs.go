package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/acme/autocert"
)

// TLSResult holds the TLS config and optional autocert manager.
type TLSResult struct {
	Config      *tls.Config
	AutocertMgr *autocert.Manager // Non-nil when using Let's Encrypt
}

const (
	selfSignedCert = "self-signed.crt"
	selfSignedKey  = "self-signed.key"
	selfSignedLife = 365 * 24 * time.Hour
)

// SetupTLS picks the web server's certificate source from the config:
// Let's Encrypt when tls_domain is set, else the tls_cert/tls_key pair,
// else a self-signed certificate kept in cert_dir.
func SetupTLS(gc *GameConf) (*TLSResult, error) {
	switch {
	case gc.TLSDomain != "":
		return autocertTLS(gc.TLSDomain, filepath.Join(gc.CertDir, "autocert-cache"))
	case gc.TLSCert != "" && gc.TLSKey != "":
		log.Printf("tls: loading cert %s, key %s", gc.TLSCert, gc.TLSKey)
		cfg, err := loadPair(gc.TLSCert, gc.TLSKey)
		if err != nil {
			return nil, fmt.Errorf("tls: load cert: %w", err)
		}
		return &TLSResult{Config: cfg}, nil
	default:
		cfg, err := selfSignedTLS(gc.CertDir, gc.WebHost)
		if err != nil {
			return nil, err
		}
		return &TLSResult{Config: cfg}, nil
	}
}

func autocertTLS(domain, cacheDir string) (*TLSResult, error) {
	if err := os.MkdirAll(cacheDir, 0700); err != nil {
		return nil, fmt.Errorf("tls: autocert cache: %w", err)
	}
	log.Printf("tls: using Let's Encrypt for %q", domain)
	m := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domain),
		Cache:      autocert.DirCache(cacheDir),
	}
	return &TLSResult{Config: m.TLSConfig(), AutocertMgr: m}, nil
}

// selfSignedTLS loads the pair in dir, generating it on first use.
// The certificate covers localhost plus host when host is a name or a
// specific address.
func selfSignedTLS(dir, host string) (*tls.Config, error) {
	certPath := filepath.Join(dir, selfSignedCert)
	keyPath := filepath.Join(dir, selfSignedKey)
	if fileExists(certPath) && fileExists(keyPath) {
		log.Printf("tls: using self-signed cert in %s", dir)
		cfg, err := loadPair(certPath, keyPath)
		if err != nil {
			return nil, fmt.Errorf("tls: load self-signed cert: %w", err)
		}
		return cfg, nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("tls: cert dir: %w", err)
	}
	certPEM, keyPEM, err := newSelfSigned(host)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(certPath, certPEM, 0644); err != nil {
		return nil, fmt.Errorf("tls: write cert: %w", err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0600); err != nil {
		return nil, fmt.Errorf("tls: write key: %w", err)
	}
	log.Printf("tls: generated self-signed cert in %s", dir)

	cfg, err := loadPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("tls: load generated cert: %w", err)
	}
	return cfg, nil
}

// newSelfSigned returns a PEM-encoded P-256 certificate and key.
func newSelfSigned(host string) (certPEM, keyPEM []byte, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("tls: generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("tls: serial: %w", err)
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"hubportal"}, CommonName: "localhost"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(selfSignedLife),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
	}
	if ip := net.ParseIP(host); ip != nil {
		if !ip.IsUnspecified() && !ip.IsLoopback() {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		}
	} else if host != "" && host != "localhost" {
		tmpl.DNSNames = append(tmpl.DNSNames, host)
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("tls: create cert: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("tls: marshal key: %w", err)
	}
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}

func loadPair(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
