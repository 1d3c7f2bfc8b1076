package download

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRefusesOldTLS(t *testing.T) {
	client := NewClient(time.Minute)
	transport := client.Transport.(*http.Transport)
	require.NotNil(t, transport.TLSClientConfig)
	assert.EqualValues(t, tls.VersionTLS12, transport.TLSClientConfig.MinVersion)

	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.TLS = &tls.Config{MaxVersion: tls.VersionTLS11}
	server.StartTLS()
	defer server.Close()

	pool := x509.NewCertPool()
	pool.AddCert(server.Certificate())
	transport.TLSClientConfig.RootCAs = pool

	_, err := Fetch(context.Background(), client, server.URL, filepath.Join(t.TempDir(), "out"), "")
	require.Error(t, err)
}

func TestFetchReturnsDigest(t *testing.T) {
	payload := []byte("#!/bin/sh\necho installer\n")
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "install.sh")
	digest, err := Fetch(context.Background(), server.Client(), server.URL, dest, "")
	require.NoError(t, err)

	expected := sha256.Sum256(payload)
	assert.Equal(t, hex.EncodeToString(expected[:]), digest)

	written, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, written)
}

func TestFetchVerifiesChecksum(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tampered"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "out")
	_, err := Fetch(context.Background(), server.Client(), server.URL, dest, "0000000000000000000000000000000000000000000000000000000000000000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Checksum mismatch")
}

func TestFetchRejectsBadStatus(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "out")
	_, err := Fetch(context.Background(), server.Client(), server.URL, dest, "")
	require.Error(t, err)
}
