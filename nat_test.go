package main

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"
)

// fakeGateway records mapping calls
type fakeGateway struct {
	mu       sync.Mutex
	mapped   int
	addErr   error
	added    []int
	deleted  []int
	external net.IP
}

func (g *fakeGateway) Type() string { return "UPnP" }

func (g *fakeGateway) GetExternalAddress() (net.IP, error) {
	return g.external, nil
}

func (g *fakeGateway) AddPortMapping(ctx context.Context, protocol string, internalPort int, description string, timeout time.Duration) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.addErr != nil {
		return 0, g.addErr
	}
	g.added = append(g.added, internalPort)
	return g.mapped, nil
}

func (g *fakeGateway) DeletePortMapping(ctx context.Context, protocol string, internalPort int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, internalPort)
	return nil
}

func (g *fakeGateway) addCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.added)
}

func TestPortOf(t *testing.T) {
	tests := []struct {
		address string
		want    int
		wantErr bool
	}{
		{"0.0.0.0:8090", 8090, false},
		{":80", 80, false},
		{"[::1]:9000", 9000, false},
		{"localhost", 0, true},
		{"host:http", 0, true},
		{"host:0", 0, true},
		{"host:70000", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			got, err := portOf(tt.address)
			if (err != nil) != tt.wantErr {
				t.Fatalf("portOf() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("portOf() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExposeWebUI(t *testing.T) {
	tests := []struct {
		name     string
		mapped   int
		external string
	}{
		{"same port", 0, "203.0.113.7:8090"},
		{"gateway picks port", 41000, "203.0.113.7:41000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{mapped: tt.mapped, external: net.ParseIP("203.0.113.7")}
			e, err := exposeWebUI(context.Background(), gw, "0.0.0.0:8090", time.Hour)
			if err != nil {
				t.Fatalf("exposeWebUI() error = %v", err)
			}
			defer e.Close()

			if e.External() != tt.external {
				t.Errorf("External() = %q, want %q", e.External(), tt.external)
			}
			if e.Protocol() != "UPnP" {
				t.Errorf("Protocol() = %q", e.Protocol())
			}
			if len(gw.added) != 1 || gw.added[0] != 8090 {
				t.Errorf("mapped internal ports = %v, want [8090]", gw.added)
			}
		})
	}
}

func TestExposeWebUI_Errors(t *testing.T) {
	gw := &fakeGateway{external: net.ParseIP("203.0.113.7"), addErr: errors.New("refused")}
	if _, err := exposeWebUI(context.Background(), gw, "0.0.0.0:8090", time.Hour); err == nil {
		t.Error("expected error when the gateway refuses the mapping")
	}
	if _, err := exposeWebUI(context.Background(), &fakeGateway{}, "no-port", time.Hour); err == nil {
		t.Error("expected error for an address without a port")
	}
}

func TestWebExposure_RenewAndClose(t *testing.T) {
	gw := &fakeGateway{external: net.ParseIP("203.0.113.7")}
	e, err := exposeWebUI(context.Background(), gw, ":8090", 20*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for gw.addCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if gw.addCount() < 3 {
		t.Fatalf("lease renewed %d times, want at least 2", gw.addCount()-1)
	}

	e.Close()
	e.Close()
	after := gw.addCount()
	time.Sleep(50 * time.Millisecond)
	if gw.addCount() != after {
		t.Error("renewal continued after Close")
	}

	gw.mu.Lock()
	defer gw.mu.Unlock()
	if len(gw.deleted) != 1 || gw.deleted[0] != 8090 {
		t.Errorf("deleted = %v, want [8090] once", gw.deleted)
	}
}
