package main

import (
	"crypto/tls"
	"fmt"
	"path/filepath"
)

// loadTLSConfig builds a *tls.Config from the PKCS8 privkey.pem and
// fullchain.pem under certDir. Missing or malformed cert files are fatal
// at startup; the caller logs and exits.
func loadTLSConfig(certDir string) (*tls.Config, error) {
	certPath := filepath.Join(certDir, "fullchain.pem")
	keyPath := filepath.Join(certDir, "privkey.pem")
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("tls: load keypair (%s, %s): %w", certPath, keyPath, err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
