// Package hostinfo gathers host metrics (CPU, memory, disks, uptime,
// TCP connections and processes) and renders them as plain text.
package hostinfo

import (
	"context"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

// cpuSampleInterval is how long CPU usage is measured for.
const cpuSampleInterval = 500 * time.Millisecond

type CPUStats struct {
	Percent       float64
	FrequencyMHz  float64 // zero when unknown
	PhysicalCores int
	LogicalCores  int
}

type MemoryStats struct {
	Total       uint64
	Used        uint64
	Available   uint64
	UsedPercent float64
}

type DiskStats struct {
	Device      string
	Mountpoint  string
	Fstype      string
	Total       uint64
	Used        uint64
	Free        uint64
	UsedPercent float64
	// Err is set when the usage of this mount could not be read.
	Err error
}

type Connection struct {
	Status     string
	LocalIP    string
	LocalPort  uint32
	RemoteIP   string
	RemotePort uint32
	PID        int32
	Process    string
}

type Process struct {
	PID           int32
	Name          string
	User          string
	Status        string
	CPUPercent    float64
	MemoryPercent float64
}

// Source supplies host metrics. Host is the real implementation; tests use stubs.
type Source interface {
	CPU(ctx context.Context) (*CPUStats, error)
	Memory(ctx context.Context) (*MemoryStats, error)
	Disks(ctx context.Context) ([]DiskStats, error)
	BootTime(ctx context.Context) (time.Time, error)
	Connections(ctx context.Context) ([]Connection, error)
	Processes(ctx context.Context) ([]Process, error)
}

// Host reads metrics of the machine the server runs on.
type Host struct{}

func (Host) CPU(ctx context.Context) (*CPUStats, error) {
	pct, err := cpu.PercentWithContext(ctx, cpuSampleInterval, false)
	if err != nil {
		return nil, err
	}
	st := &CPUStats{}
	if len(pct) > 0 {
		st.Percent = pct[0]
	}
	if infos, err := cpu.InfoWithContext(ctx); err != nil {
		slog.Debug("cpu frequency unavailable", "error", err)
	} else if len(infos) > 0 {
		st.FrequencyMHz = infos[0].Mhz
	}
	st.PhysicalCores, _ = cpu.CountsWithContext(ctx, false)
	st.LogicalCores, _ = cpu.CountsWithContext(ctx, true)
	return st, nil
}

func (Host) Memory(ctx context.Context) (*MemoryStats, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return &MemoryStats{Total: vm.Total, Used: vm.Used, Available: vm.Available, UsedPercent: vm.UsedPercent}, nil
}

func (Host) Disks(ctx context.Context) ([]DiskStats, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make([]DiskStats, 0, len(parts))
	for _, p := range parts {
		ds := DiskStats{Device: p.Device, Mountpoint: p.Mountpoint, Fstype: p.Fstype}
		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			slog.Warn("could not read disk usage", "mountpoint", p.Mountpoint, "error", err)
			ds.Err = err
		} else {
			ds.Total, ds.Used, ds.Free, ds.UsedPercent = usage.Total, usage.Used, usage.Free, usage.UsedPercent
		}
		out = append(out, ds)
	}
	return out, nil
}

func (Host) BootTime(ctx context.Context) (time.Time, error) {
	secs, err := host.BootTimeWithContext(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(secs), 0), nil
}

func (Host) Connections(ctx context.Context) ([]Connection, error) {
	conns, err := net.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return nil, err
	}
	out := make([]Connection, 0, len(conns))
	for _, c := range conns {
		out = append(out, Connection{
			Status:     c.Status,
			LocalIP:    c.Laddr.IP,
			LocalPort:  c.Laddr.Port,
			RemoteIP:   c.Raddr.IP,
			RemotePort: c.Raddr.Port,
			PID:        c.Pid,
			Process:    processName(ctx, c.Pid),
		})
	}
	return out, nil
}

// Processes lists processes the server can inspect. Processes that vanish
// or deny access while being read are skipped.
func (Host) Processes(ctx context.Context) ([]Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Process, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		info := Process{PID: p.Pid, Name: name, User: "N/A", Status: "N/A"}
		if user, err := p.UsernameWithContext(ctx); err == nil {
			info.User = user
		}
		if st, err := p.StatusWithContext(ctx); err == nil && len(st) > 0 {
			info.Status = st[0]
		}
		if pct, err := p.CPUPercentWithContext(ctx); err == nil {
			info.CPUPercent = pct
		}
		if pct, err := p.MemoryPercentWithContext(ctx); err == nil {
			info.MemoryPercent = float64(pct)
		}
		out = append(out, info)
	}
	return out, nil
}

func processName(ctx context.Context, pid int32) string {
	if pid <= 0 {
		return ""
	}
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return ""
	}
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return ""
	}
	return name
}
