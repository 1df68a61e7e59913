package collector

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	netio "github.com/shirou/gopsutil/v4/net"

	"executor-metrics-backend/internal/model"
)

// Reporter accepts one named gauge at a time.
type Reporter interface {
	Report(ctx context.Context, name string, value model.MetricValue, timestampSeconds int64) error
}

// Reading is one raw snapshot of host counters.
type Reading struct {
	At             time.Time
	CPUPercent     float64
	MemUsed        uint64
	MemTotal       uint64
	MemUsedPercent float64
	NetRxBytes     uint64
	NetTxBytes     uint64
	DiskReadBytes  uint64
	DiskWriteBytes uint64
}

// ReadFunc reads host counters.
type ReadFunc func(ctx context.Context) (Reading, error)

// ReadHost samples the local machine with gopsutil.
func ReadHost(ctx context.Context) (Reading, error) {
	r := Reading{At: time.Now()}

	percent, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return Reading{}, fmt.Errorf("read total CPU percent: %w", err)
	}
	if len(percent) > 0 {
		r.CPUPercent = percent[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Reading{}, fmt.Errorf("read virtual memory: %w", err)
	}
	r.MemUsed, r.MemTotal, r.MemUsedPercent = vm.Used, vm.Total, vm.UsedPercent

	nics, err := netio.IOCountersWithContext(ctx, false)
	if err != nil {
		return Reading{}, fmt.Errorf("read network counters: %w", err)
	}
	for _, nic := range nics {
		r.NetRxBytes += nic.BytesRecv
		r.NetTxBytes += nic.BytesSent
	}

	disks, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return Reading{}, fmt.Errorf("read disk counters: %w", err)
	}
	for _, d := range disks {
		r.DiskReadBytes += d.ReadBytes
		r.DiskWriteBytes += d.WriteBytes
	}
	return r, nil
}

type gauge struct {
	name  string
	value float64
}

// HostCollector turns host readings into system-namespace gauges named
// `<appId>.<executorId>.host.sigar.<group>.<name>`.
type HostCollector struct {
	mu       sync.Mutex
	reporter Reporter
	read     ReadFunc
	prefix   string
	previous *Reading
}

func NewHostCollector(reporter Reporter, read ReadFunc, appID string, executorID int) *HostCollector {
	if read == nil {
		read = ReadHost
	}
	return &HostCollector{
		reporter: reporter,
		read:     read,
		prefix:   appID + "." + strconv.Itoa(executorID) + ".host.sigar.",
	}
}

// Collect takes one reading and reports it. Rates need two readings, so the
// first call reports only gauges and cumulative counters.
func (c *HostCollector) Collect(ctx context.Context) error {
	r, err := c.read(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	prev := c.previous
	c.previous = &r
	c.mu.Unlock()

	gauges := []gauge{
		{"cpu.combined", r.CPUPercent / 100},
		{"memory.usedPercent", r.MemUsedPercent},
		{"memory.actualUsed", float64(r.MemUsed)},
		{"memory.total", float64(r.MemTotal)},
		{"network.rxBytes", float64(r.NetRxBytes)},
		{"network.txBytes", float64(r.NetTxBytes)},
		{"disk.readBytes", float64(r.DiskReadBytes)},
		{"disk.writtenBytes", float64(r.DiskWriteBytes)},
	}
	if prev != nil {
		if elapsed := r.At.Sub(prev.At).Seconds(); elapsed > 0 {
			gauges = append(gauges,
				gauge{"network.rxKBytesPerSecond", kbPerSecond(prev.NetRxBytes, r.NetRxBytes, elapsed)},
				gauge{"network.txKBytesPerSecond", kbPerSecond(prev.NetTxBytes, r.NetTxBytes, elapsed)},
				gauge{"disk.readKBytesPerSecond", kbPerSecond(prev.DiskReadBytes, r.DiskReadBytes, elapsed)},
				gauge{"disk.writtenKBytesPerSecond", kbPerSecond(prev.DiskWriteBytes, r.DiskWriteBytes, elapsed)},
			)
		}
	}

	ts := r.At.Unix()
	for _, g := range gauges {
		if err := c.reporter.Report(ctx, c.prefix+g.name, model.NumberValue(g.value), ts); err != nil {
			return fmt.Errorf("report %s: %w", g.name, err)
		}
	}
	log.Debug().Int("gauges", len(gauges)).Int64("timestamp", ts).Msg("Host metrics collected")
	return nil
}

// kbPerSecond treats a counter reset as zero traffic.
func kbPerSecond(before, after uint64, elapsed float64) float64 {
	if after < before {
		return 0
	}
	return float64(after-before) / 1024 / elapsed
}
