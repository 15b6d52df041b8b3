package main

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecembed/internal/config"
	"github.com/kailas-cloud/vecembed/internal/domain"
)

// countingListener accepts and immediately drops connections, counting them.
func countingListener(t *testing.T) (string, *atomic.Int32) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	var conns atomic.Int32
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			conns.Add(1)
			_ = c.Close()
		}
	}()
	return ln.Addr().String(), &conns
}

func appWithCache(t *testing.T, addr string) *app {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "cache:\n  addrs: [\"" + addr + "\"]\n  readiness_timeout_sec: 1\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return &app{cfg: cfg, logger: zap.NewNop()}
}

func TestNewPipeline_MissingCredentialBeforeCacheDial(t *testing.T) {
	addr, conns := countingListener(t)
	a := appWithCache(t, addr)

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	_, _, err := a.newPipeline(cmd, runFlags{})
	if !errors.Is(err, domain.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if n := conns.Load(); n != 0 {
		t.Errorf("cache dialled %d times before the credential check", n)
	}
}

func TestServe_MissingCredentialBeforeCacheDial(t *testing.T) {
	addr, conns := countingListener(t)
	a := appWithCache(t, addr)

	err := a.serve(context.Background())
	if !errors.Is(err, domain.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if n := conns.Load(); n != 0 {
		t.Errorf("cache dialled %d times before the credential check", n)
	}
}
