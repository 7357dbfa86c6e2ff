// Package producer implements the workload generator that paces kernel
// arrivals into C1 (spec §2 "the producer appends kernel descriptors to C1
// on a paced schedule"). It reads the three binary input files spec §6
// defines per workload, derives each kernel's compute-unit width the way
// original_source/machsuite_app/src/application/setup.c's main loop does
// (a uniform random pick from the board's valid CU widths — the model that
// should make this choice is explicitly out of scope, spec §1), and sleeps
// to each record's commanded_arrival before admitting it.
package producer

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"fpgasched/internal/dispatch"
	"fpgasched/internal/kernel"
)

// validCUWidths mirrors setup.c's tmp_cu table for the ZCU board, the
// richest of the three boards it supports.
var validCUWidths = []int{1, 2, 4, 8}

// Producer reads one workload's binary input triple and admits its
// kernels into a Store on a paced schedule.
type Producer struct {
	store     *kernel.Store
	sched     *dispatch.Scheduler
	numLabels int
	numSlots  int
	rng       *rand.Rand
}

// New constructs a Producer bound to the given store/scheduler pair.
func New(store *kernel.Store, sched *dispatch.Scheduler, numLabels, numSlots int, seed int64) *Producer {
	return &Producer{
		store:     store,
		sched:     sched,
		numLabels: numLabels,
		numSlots:  numSlots,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// readFloat32File reads a flat sequence of little-endian 32-bit floats.
func readFloat32File(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var out []float32
	for {
		var v float32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			break
		}
		out = append(out, v)
	}
	return out, nil
}

// readInt32File reads a flat sequence of little-endian 32-bit ints.
func readInt32File(path string) ([]int32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var out []int32
	for {
		var v int32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			break
		}
		out = append(out, v)
	}
	return out, nil
}

// pickCU returns a uniformly random valid CU width bounded by p.numSlots
// (spec §3: cu in {1, 2, 4, 8}, bounded by slot count).
func (p *Producer) pickCU() int {
	candidates := make([]int, 0, len(validCUWidths))
	for _, w := range validCUWidths {
		if w <= p.numSlots {
			candidates = append(candidates, w)
		}
	}
	return candidates[p.rng.Intn(len(candidates))]
}

// Run reads workload w's three input files from dir and admits every
// kernel they describe, pacing each admission to its commanded_arrival
// (spec §5: "Producer: blocks on clock... and briefly on the pending-queue
// lock"). It returns once every kernel in the workload has been admitted.
func (p *Producer) Run(dir string, w int) error {
	interArrival, err := readFloat32File(filepath.Join(dir, fmt.Sprintf("inter_arrival_%d.bin", w)))
	if err != nil {
		return fmt.Errorf("producer: read inter_arrival file: %w", err)
	}
	kernelID, err := readInt32File(filepath.Join(dir, fmt.Sprintf("kernel_id_%d.bin", w)))
	if err != nil {
		return fmt.Errorf("producer: read kernel_id file: %w", err)
	}
	numExecutions, err := readInt32File(filepath.Join(dir, fmt.Sprintf("num_executions_%d.bin", w)))
	if err != nil {
		return fmt.Errorf("producer: read num_executions file: %w", err)
	}

	n := len(interArrival)
	if len(kernelID) != n || len(numExecutions) != n {
		return fmt.Errorf("producer: workload %d input files have mismatched lengths (%d, %d, %d)", w, len(interArrival), len(kernelID), len(numExecutions))
	}

	initialTime := kernel.Now()
	start := time.Now()
	var cumulativeMs float64

	for i := 0; i < n; i++ {
		cumulativeMs += float64(interArrival[i])
		targetTime := start.Add(time.Duration(cumulativeMs * float64(time.Millisecond)))

		if d := time.Until(targetTime); d > 0 {
			time.Sleep(d)
		}

		label := kernel.Label(kernelID[i])
		commandedArrival := kernel.Timestamp{Sec: targetTime.Unix(), Nsec: int64(targetTime.Nanosecond())}

		rec, err := kernel.NewKernelRecord(0, label, p.numLabels, int(numExecutions[i]), p.pickCU(), int64(interArrival[i]), commandedArrival, initialTime)
		if err != nil {
			return fmt.Errorf("producer: workload %d kernel %d: %w", w, i, err)
		}

		p.store.Append(rec)
		p.sched.NotifyAppended()
	}

	return nil
}
