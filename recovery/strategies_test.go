package recovery

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/healthmon/health"
	"github.com/jonwraymond/healthmon/secret"
)

func downResult(name string) health.Result {
	r := health.Down("unreachable", errors.New("connection refused"))
	r.Name = name
	return r
}

func TestCredentials_Recover(t *testing.T) {
	t.Setenv("HEALTHMON_TEST_DB_PASSWORD", "s3cr3t")

	tests := []struct {
		name    string
		refs    []string
		wantErr bool
	}{
		{name: "all present", refs: []string{"HEALTHMON_TEST_DB_PASSWORD"}},
		{name: "missing", refs: []string{"HEALTHMON_TEST_DB_PASSWORD", "HEALTHMON_TEST_UNSET"}, wantErr: true},
		{name: "none required", refs: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCredentials(secret.NewResolver(), tt.refs)
			err := c.Recover(context.Background(), downResult("db"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Recover() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrMissingCredentials) {
				t.Errorf("Recover() error = %v, want ErrMissingCredentials", err)
			}
		})
	}
}

func TestReconnect_SucceedsAfterRetry(t *testing.T) {
	var calls atomic.Int32
	connect := func(context.Context) error {
		if calls.Add(1) < 2 {
			return errors.New("refused")
		}
		return nil
	}

	r := NewReconnect("db", connect, ReconnectConfig{
		MaxTries:        3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	})

	if err := r.Recover(context.Background(), downResult("db")); err != nil {
		t.Fatalf("Recover() error = %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("connect calls = %d, want 2", got)
	}
	if r.State() != "closed" {
		t.Errorf("State() = %q, want closed", r.State())
	}
}

func TestReconnect_OpensCircuit(t *testing.T) {
	var calls atomic.Int32
	connect := func(context.Context) error {
		calls.Add(1)
		return errors.New("refused")
	}

	r := NewReconnect("db", connect, ReconnectConfig{
		MaxTries:         2,
		InitialInterval:  time.Millisecond,
		MaxInterval:      time.Millisecond,
		FailureThreshold: 2,
		OpenTimeout:      time.Hour,
	})

	for i := 0; i < 2; i++ {
		err := r.Recover(context.Background(), downResult("db"))
		if err == nil || errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("Recover() #%d error = %v, want connect failure", i+1, err)
		}
	}

	before := calls.Load()
	err := r.Recover(context.Background(), downResult("db"))
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Recover() error = %v, want ErrCircuitOpen", err)
	}
	if calls.Load() != before {
		t.Errorf("connect called while circuit open")
	}
	if r.State() != "open" {
		t.Errorf("State() = %q, want open", r.State())
	}
}

func TestReconnect_StopsOnCancel(t *testing.T) {
	r := NewReconnect("db", func(ctx context.Context) error {
		return errors.New("refused")
	}, ReconnectConfig{MaxTries: 100, InitialInterval: 50 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := r.Recover(ctx, downResult("db")); err == nil {
		t.Fatal("Recover() error = nil, want error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Recover() took %v after cancellation", elapsed)
	}
}

func TestDialTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := ln.Addr().String()

	if err := DialTCP(addr)(context.Background()); err != nil {
		t.Errorf("DialTCP(open) error = %v", err)
	}

	_ = ln.Close()
	if err := DialTCP(addr)(context.Background()); err == nil {
		t.Error("DialTCP(closed) error = nil, want error")
	}
}

func TestBackoff_Recover(t *testing.T) {
	b := NewBackoff(10 * time.Millisecond)
	if err := b.Recover(context.Background(), downResult("api")); err != nil {
		t.Errorf("Recover() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewBackoff(time.Hour).Recover(ctx, downResult("api")); !errors.Is(err, context.Canceled) {
		t.Errorf("Recover() error = %v, want context.Canceled", err)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		kind     string
		params   Params
		wantName string
		wantErr  error
	}{
		{kind: KindCredentials, wantName: KindCredentials},
		{kind: KindReconnect, params: Params{Dependency: "db", Connect: DialTCP("127.0.0.1:1")}, wantName: KindReconnect},
		{kind: KindBackoff, wantName: KindBackoff},
		{kind: KindNone, wantName: KindNone},
		{kind: "restart", wantErr: ErrUnknownStrategy},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			s, err := New(tt.kind, tt.params)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if s.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", s.Name(), tt.wantName)
			}
		})
	}

	if _, err := New(KindReconnect, Params{Dependency: "db"}); err == nil {
		t.Error("New(reconnect) without connect error = nil, want error")
	}
}
