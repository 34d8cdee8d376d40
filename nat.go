package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/libp2p/go-nat"
	"github.com/sirupsen/logrus"

	"botmap/pkg/logger"
)

const (
	webMappingDescription = "botmap viewer"
	webMappingLease       = 2 * time.Hour
)

// portGateway is the slice of a UPnP/NAT-PMP gateway the web UI mapping uses
type portGateway interface {
	Type() string
	GetExternalAddress() (net.IP, error)
	AddPortMapping(ctx context.Context, protocol string, internalPort int, description string, timeout time.Duration) (int, error)
	DeletePortMapping(ctx context.Context, protocol string, internalPort int) error
}

func discoverGateway(ctx context.Context) (portGateway, error) {
	gw, err := nat.DiscoverGateway(ctx)
	if err != nil {
		return nil, fmt.Errorf("no NAT gateway found: %w", err)
	}
	return gw, nil
}

// WebExposure keeps the web UI port mapped on the gateway until Close.
type WebExposure struct {
	gw       portGateway
	port     int
	lease    time.Duration
	external string

	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// exposeWebUI maps the port of a host:port listen address and starts
// renewing the lease at half its duration.
func exposeWebUI(ctx context.Context, gw portGateway, address string, lease time.Duration) (*WebExposure, error) {
	port, err := portOf(address)
	if err != nil {
		return nil, err
	}

	ip, err := gw.GetExternalAddress()
	if err != nil {
		return nil, fmt.Errorf("failed to get external address: %w", err)
	}
	mapped, err := gw.AddPortMapping(ctx, "tcp", port, webMappingDescription, lease)
	if err != nil {
		return nil, fmt.Errorf("failed to add port mapping: %w", err)
	}
	if mapped == 0 {
		mapped = port
	}

	e := &WebExposure{
		gw:       gw,
		port:     port,
		lease:    lease,
		external: net.JoinHostPort(ip.String(), strconv.Itoa(mapped)),
		stop:     make(chan struct{}),
	}
	e.wg.Add(1)
	go e.renewLoop()
	return e, nil
}

// External is the ip:port the map is reachable on from outside.
func (e *WebExposure) External() string {
	return e.external
}

// Protocol is "UPnP" or "NAT-PMP" as reported by the gateway.
func (e *WebExposure) Protocol() string {
	return e.gw.Type()
}

func (e *WebExposure) renewLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.lease / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			_, err := e.gw.AddPortMapping(ctx, "tcp", e.port, webMappingDescription, e.lease)
			cancel()
			if err != nil {
				logger.Log.WithError(err).WithField("port", e.port).Warn("NAT: failed to renew web UI mapping")
			}
		case <-e.stop:
			return
		}
	}
}

// Close stops renewing and removes the mapping. Safe to call twice.
func (e *WebExposure) Close() {
	e.closeOnce.Do(func() {
		close(e.stop)
		e.wg.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.gw.DeletePortMapping(ctx, "tcp", e.port); err != nil {
			logger.Log.WithError(err).WithField("port", e.port).Warn("NAT: failed to remove web UI mapping")
		}
	})
}

// setupNAT maps the web UI port; failures only disable external access
func setupNAT(address string) *WebExposure {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	gw, err := discoverGateway(ctx)
	if err != nil {
		logger.Log.WithError(err).Warn("NAT: port mapping unavailable, map reachable on LAN only")
		return nil
	}
	exposure, err := exposeWebUI(ctx, gw, address, webMappingLease)
	if err != nil {
		logger.Log.WithError(err).Warn("NAT: port mapping unavailable, map reachable on LAN only")
		return nil
	}

	logger.Log.WithFields(logrus.Fields{
		"protocol": exposure.Protocol(),
		"external": exposure.External(),
	}).Info("NAT: web UI exposed")
	return exposure
}

// portOf extracts the numeric port from a host:port listen address.
func portOf(address string) (int, error) {
	_, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port in %q", address)
	}
	return port, nil
}
