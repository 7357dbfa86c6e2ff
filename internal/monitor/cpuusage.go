// cpuusage.go implements the CPUSampler used by the monitoring engine's
// online-record cpu_user/cpu_kernel/cpu_idle fields. It is a direct
// translation of original_source/machsuite_app/src/application/cpu_usage.c:
// parse the aggregate "cpu" line of /proc/stat (user, sys, idle jiffies),
// diff against the previous sample, and report each as a percentage of the
// window's total jiffies.
package monitor

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

const procStatPath = "/proc/stat"

// ProcStatSampler is the concrete CPUSampler for a Linux host: it reads
// /proc/stat's aggregate "cpu" line on every Sample call and reports the
// percentage of user/kernel/idle jiffies since the previous call.
type ProcStatSampler struct {
	havePrev           bool
	prevUser, prevSys, prevIdle uint64
}

func NewProcStatSampler() *ProcStatSampler {
	return &ProcStatSampler{}
}

// Sample parses /proc/stat, computes the jiffy deltas against the previous
// sample, and returns the percentage breakdown. The first call after
// construction has no prior sample to diff against, so it returns zeros.
func (p *ProcStatSampler) Sample() (user, kernelPct, idle float32, err error) {
	u, s, i, err := readProcStatCPULine()
	if err != nil {
		return 0, 0, 0, err
	}

	if !p.havePrev {
		p.prevUser, p.prevSys, p.prevIdle = u, s, i
		p.havePrev = true
		return 0, 0, 0, nil
	}

	du := u - p.prevUser
	ds := s - p.prevSys
	di := i - p.prevIdle
	total := du + ds + di

	p.prevUser, p.prevSys, p.prevIdle = u, s, i

	if total == 0 {
		return 0, 0, 0, nil
	}
	return float32(du) * 100 / float32(total), float32(ds) * 100 / float32(total), float32(di) * 100 / float32(total), nil
}

func readProcStatCPULine() (user, sys, idle uint64, err error) {
	f, err := os.Open(procStatPath)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("monitor: open %s: %w", procStatPath, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return 0, 0, 0, fmt.Errorf("monitor: %s is empty", procStatPath)
	}
	fields := strings.Fields(scanner.Text())
	// "cpu  user nice system idle iowait irq softirq steal guest guest_nice"
	if len(fields) < 5 || fields[0] != "cpu" {
		return 0, 0, 0, fmt.Errorf("monitor: unexpected %s format: %q", procStatPath, scanner.Text())
	}

	var u, sy, idl uint64
	if _, err := fmt.Sscanf(fields[1], "%d", &u); err != nil {
		return 0, 0, 0, fmt.Errorf("monitor: parse user jiffies: %w", err)
	}
	if _, err := fmt.Sscanf(fields[3], "%d", &sy); err != nil {
		return 0, 0, 0, fmt.Errorf("monitor: parse sys jiffies: %w", err)
	}
	if _, err := fmt.Sscanf(fields[4], "%d", &idl); err != nil {
		return 0, 0, 0, fmt.Errorf("monitor: parse idle jiffies: %w", err)
	}
	return u, sy, idl, nil
}
