// Package preflight collects a read-only snapshot of a remote host: operating
// system, listening ports, container runtime, reverse proxy and resources.
package preflight

import (
	"context"
	"fmt"
	"time"

	"github.com/homeport/stackpilot/internal/domain/host"
	"github.com/homeport/stackpilot/internal/infrastructure/remote"
	"github.com/homeport/stackpilot/internal/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the number of probes in flight on one session.
// OpenSSH allows ten channels per connection by default.
const DefaultConcurrency = 6

// Collector runs the preflight probes over a remote session.
type Collector struct {
	concurrency int
	now         func() time.Time
}

// Option configures a Collector.
type Option func(*Collector)

// WithConcurrency sets the maximum number of concurrent probes.
func WithConcurrency(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithClock overrides the clock used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		c.now = now
	}
}

// NewCollector creates a collector.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect gathers a fresh snapshot. Probe commands never fail on their own:
// an error is returned only when the channel itself fails, in which case no
// partial snapshot is produced.
func (c *Collector) Collect(ctx context.Context, session remote.Session) (*host.Facts, error) {
	log := logger.With("op", "scan", "host", session.Host())
	log.Info("Starting preflight scan")

	var (
		distribution, kernel, hostname string
		portsOut                       string
		runtime                        host.Runtime
		disk, memory                   string
	)
	native := make(map[host.ProxyKind]string, len(proxyCommands))
	nativeOut := make([]string, len(host.ProxyDetectionOrder))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	run := func(command string, dst *string) {
		g.Go(func() error {
			out, err := session.Execute(gctx, command)
			if err != nil {
				return err
			}
			*dst = out
			return nil
		})
	}

	run(cmdDistribution, &distribution)
	run(cmdKernel, &kernel)
	run(cmdHostname, &hostname)
	run(cmdListeningPorts, &portsOut)
	run(cmdDisk, &disk)
	run(cmdMemory, &memory)
	for i, kind := range host.ProxyDetectionOrder {
		run(proxyCommands[kind], &nativeOut[i])
	}

	// The runtime chain holds one slot while its dependent commands run in a
	// group of their own; gctx is only cancelled when a command fails.
	g.Go(func() error {
		rt, err := c.collectRuntime(gctx, session)
		if err != nil {
			return err
		}
		runtime = rt
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("Preflight scan failed", "error", err)
		return nil, fmt.Errorf("preflight scan of %s: %w", session.Host(), err)
	}

	for i, kind := range host.ProxyDetectionOrder {
		native[kind] = nativeOut[i]
	}

	facts := &host.Facts{
		OS: host.OSInfo{
			Distribution: orUnknown(distribution),
			Kernel:       orUnknown(kernel),
			Hostname:     orUnknown(hostname),
		},
		Ports:            ParseListeningPorts(portsOut),
		Runtime:          runtime,
		Proxy:            DetectProxy(native, runtime.Containers),
		ExistingServices: DetectExistingServices(runtime.Containers),
		Resources: host.ResourceSnapshot{
			Disk:   orUnknown(disk),
			Memory: orUnknown(memory),
		},
		ScannedAt: c.now().UTC(),
	}
	if facts.Ports == nil {
		facts.Ports = []host.ListeningPort{}
	}

	log.Info("Preflight scan complete",
		"ports", len(facts.Ports),
		"runtime", facts.Runtime.Installed,
		"containers", len(facts.Runtime.Containers),
		"proxy", facts.Proxy.Kind,
	)
	return facts, nil
}

// collectRuntime probes the runtime version first and skips the inventory
// probes when no runtime is installed.
func (c *Collector) collectRuntime(ctx context.Context, session remote.Session) (host.Runtime, error) {
	var versionOut, composeOut string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := session.Execute(gctx, cmdRuntimeVersion)
		versionOut = out
		return err
	})
	g.Go(func() error {
		out, err := session.Execute(gctx, cmdComposeVersion)
		composeOut = out
		return err
	})
	if err := g.Wait(); err != nil {
		return host.Runtime{}, err
	}

	rt := ParseRuntime(versionOut, composeOut)
	if !rt.Installed {
		logger.Debug("Container runtime not installed; skipping inventory probes", "host", session.Host())
		return rt, nil
	}

	var containersOut, networksOut, volumesOut string
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := session.Execute(gctx, cmdContainers)
		containersOut = out
		return err
	})
	g.Go(func() error {
		out, err := session.Execute(gctx, cmdNetworks)
		networksOut = out
		return err
	})
	g.Go(func() error {
		out, err := session.Execute(gctx, cmdVolumes)
		volumesOut = out
		return err
	})
	if err := g.Wait(); err != nil {
		return host.Runtime{}, err
	}

	if containers := ParseContainers(containersOut); containers != nil {
		rt.Containers = containers
	}
	if networks := ParseLines(networksOut); networks != nil {
		rt.Networks = networks
	}
	if volumes := ParseLines(volumesOut); volumes != nil {
		rt.Volumes = volumes
	}
	return rt, nil
}
