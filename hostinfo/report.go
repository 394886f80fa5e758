package hostinfo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// Category selects which sections Report renders.
type Category string

const (
	CPU         Category = "cpu"
	Memory      Category = "memory"
	Disk        Category = "disk"
	Uptime      Category = "uptime"
	Connections Category = "connections"
	Services    Category = "services"
	All         Category = "all"
)

const (
	maxConnections = 10
	topProcesses   = 5
	gib            = 1 << 30
)

// ParseCategory normalizes s and reports whether it names a category.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CPU, Memory, Disk, Uptime, Connections, Services, All:
		return c, true
	}
	return c, false
}

func (c Category) includes(section Category) bool {
	return c == All || c == section
}

// Report renders the sections selected by category. now is used for the uptime section.
// Sections that fail with a permission error render an "Access denied" line.
func Report(ctx context.Context, src Source, category Category, now time.Time) string {
	var lines []string

	if category.includes(CPU) {
		if st, err := src.CPU(ctx); err != nil {
			lines = append(lines, sectionError("CPU information", err))
		} else {
			lines = append(lines, fmt.Sprintf("CPU Usage: %.1f%%", st.Percent))
			if st.FrequencyMHz > 0 {
				lines = append(lines, fmt.Sprintf("CPU Frequency: %.2f MHz", st.FrequencyMHz))
			}
			lines = append(lines, fmt.Sprintf("CPU Cores: %d physical, %d logical", st.PhysicalCores, st.LogicalCores))
		}
	}

	if category.includes(Memory) {
		if m, err := src.Memory(ctx); err != nil {
			lines = append(lines, sectionError("memory information", err))
		} else {
			lines = append(lines,
				fmt.Sprintf("Total Memory: %.2f GB", gb(m.Total)),
				fmt.Sprintf("Used Memory: %.2f GB (%.1f%%)", gb(m.Used), m.UsedPercent),
				fmt.Sprintf("Available Memory: %.2f GB", gb(m.Available)),
			)
		}
	}

	if category.includes(Disk) {
		if disks, err := src.Disks(ctx); err != nil {
			lines = append(lines, sectionError("disk information", err))
		} else {
			for _, d := range disks {
				if d.Err != nil {
					lines = append(lines, fmt.Sprintf("Disk (%s): Error accessing info (%v).", d.Mountpoint, d.Err))
					continue
				}
				lines = append(lines, fmt.Sprintf("Disk (%s on %s [%s]): Total %.2f GB, Used %.2f GB (%.1f%%), Free %.2f GB",
					d.Device, d.Mountpoint, d.Fstype, gb(d.Total), gb(d.Used), d.UsedPercent, gb(d.Free)))
			}
		}
	}

	if category.includes(Uptime) {
		if boot, err := src.BootTime(ctx); err != nil {
			lines = append(lines, sectionError("uptime", err))
		} else {
			lines = append(lines, formatUptime(now.Sub(boot), boot))
		}
	}

	if category.includes(Connections) {
		lines = append(lines, "\nNetwork Connections (showing first 10 TCP):")
		lines = append(lines, connectionLines(ctx, src)...)
	}

	if category.includes(Services) {
		lines = append(lines, "\nRunning Processes (Top 5 by CPU, then Top 5 by Memory if different):")
		lines = append(lines, processLines(ctx, src)...)
	}

	if len(lines) == 0 {
		return fmt.Sprintf("Could not retrieve the specified system information for '%s'. "+
			"Try 'all' or a specific category like 'cpu', 'memory', etc.", category)
	}
	return "System Information:\n" + strings.Join(lines, "\n")
}

func gb(b uint64) float64 { return float64(b) / gib }

func formatUptime(d time.Duration, boot time.Time) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	days := secs / 86400
	hours := secs % 86400 / 3600
	minutes := secs % 3600 / 60
	seconds := secs % 60
	return fmt.Sprintf("System Uptime: %d days, %d hours, %d minutes, %d seconds (Booted on: %s)",
		days, hours, minutes, seconds, boot.Format(time.DateTime))
}

func sectionError(what string, err error) string {
	if errors.Is(err, fs.ErrPermission) {
		return "Access denied to " + what + "."
	}
	slog.Warn("could not read host metrics", "section", what, "error", err)
	return fmt.Sprintf("Error retrieving %s: %v", what, err)
}

func connectionLines(ctx context.Context, src Source) []string {
	conns, err := src.Connections(ctx)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return []string{"  Access denied to list all network connections."}
		}
		slog.Warn("could not list network connections", "error", err)
		return []string{fmt.Sprintf("  Error retrieving network connections: %v", err)}
	}
	if len(conns) == 0 {
		return []string{"  No active TCP network connections found."}
	}

	var lines []string
	for i, c := range conns {
		if i == maxConnections {
			lines = append(lines, fmt.Sprintf("  ... and %d more connections.", len(conns)-i))
			break
		}
		local, remote := endpoint(c.LocalIP, c.LocalPort), endpoint(c.RemoteIP, c.RemotePort)
		var owner string
		if c.PID > 0 {
			owner = fmt.Sprintf(" (PID: %d)", c.PID)
			if c.Process != "" {
				owner += " Process: " + c.Process
			}
		}
		lines = append(lines, fmt.Sprintf("  %-12s Local: %s  Remote: %s%s", c.Status, local, remote, owner))
	}
	return lines
}

func endpoint(ip string, port uint32) string {
	if ip == "" {
		return "N/A:"
	}
	return fmt.Sprintf("%s:%d", ip, port)
}

func processLines(ctx context.Context, src Source) []string {
	procs, err := src.Processes(ctx)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return []string{"  Access denied to list all processes."}
		}
		slog.Warn("could not list processes", "error", err)
		return []string{fmt.Sprintf("  Error retrieving process list: %v", err)}
	}
	if len(procs) == 0 {
		return []string{"  No running processes found or accessible."}
	}

	byCPU := slices.Clone(procs)
	slices.SortStableFunc(byCPU, func(a, b Process) int { return cmpDesc(a.CPUPercent, b.CPUPercent) })
	byMem := slices.Clone(procs)
	slices.SortStableFunc(byMem, func(a, b Process) int { return cmpDesc(a.MemoryPercent, b.MemoryPercent) })

	lines := []string{"  Top by CPU:"}
	shown := make(map[int32]bool)
	for _, p := range byCPU[:min(topProcesses, len(byCPU))] {
		lines = append(lines, processLine(p))
		shown[p.PID] = true
	}

	lines = append(lines, "  Top by Memory:")
	n := 0
	for _, p := range byMem {
		if n == topProcesses {
			break
		}
		if shown[p.PID] {
			continue
		}
		lines = append(lines, processLine(p))
		n++
	}
	if n == 0 {
		lines = append(lines, "    (Top memory users may overlap with top CPU users shown above)")
	}
	return lines
}

func processLine(p Process) string {
	return fmt.Sprintf("    PID: %-5d CPU: %.1f%% Mem: %.1f%% User: %-10s Status: %-10s Name: %s",
		p.PID, p.CPUPercent, p.MemoryPercent, p.User, p.Status, p.Name)
}

func cmpDesc(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}
