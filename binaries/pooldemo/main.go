package main

import (
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/rcrowley/go-metrics"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/taskfleet/nodesched/conn"
	"github.com/taskfleet/nodesched/pool"
	"github.com/taskfleet/nodesched/resource"
	"github.com/taskfleet/nodesched/tests/testhelpers"
	"github.com/taskfleet/nodesched/worker"
)

// Binary that simulates a node scheduler driving a pool of workers through
// register / assign / block / unblock / disconnect cycles.
func main() {
	var numWorkers, numCpus, numCycles int

	rootCmd := &cobra.Command{
		Use:   "pooldemo",
		Short: "pooldemo simulates a worker pool under blocking load",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(numWorkers, numCpus, numCycles)
		},
	}
	rootCmd.Flags().IntVar(&numWorkers, "workers", 4, "number of simulated workers")
	rootCmd.Flags().IntVar(&numCpus, "cpus", 8, "number of CPU slots on the node")
	rootCmd.Flags().IntVar(&numCycles, "cycles", 100, "block/unblock cycles per worker")

	if err := rootCmd.Execute(); err != nil {
		log.Fatal("error running pooldemo ", err)
	}
}

func run(numWorkers, numCpus, numCycles int) error {
	rng := testhelpers.NewRand()

	cpuIds := make([]int64, numCpus)
	for i := range cpuIds {
		cpuIds[i] = int64(i)
	}
	p := pool.NewPool(resource.NewResourceIdSetFromIds(map[string][]int64{
		resource.CPU: cpuIds,
	}))

	workers := make([]*worker.Worker, 0, numWorkers)
	for i := 0; i < numWorkers; i++ {
		c := conn.NewMemoryConnection(numCycles + 1)
		w := worker.NewWorker(1000+i, worker.PYTHON, c)
		if err := p.RegisterWorker(w); err != nil {
			return err
		}
		p.PushIdleWorker(w)
		workers = append(workers, w)
	}

	for cycle := 0; cycle < numCycles; cycle++ {
		w, ok := p.PopIdleWorker(worker.PYTHON)
		if !ok {
			break
		}
		taskId := worker.TaskId(testhelpers.GenTaskId(rng))
		w.AssignTaskId(taskId)
		if err := p.GrantTaskResources(w.Pid(), resource.ResourceSet{resource.CPU: 1}); err != nil {
			return err
		}
		if err := conn.SendWithRetry(w.Connection(), []byte(taskId), newSendBackOff()); err != nil {
			return err
		}

		// The task hits an unready dependency, waits it out, finishes.
		if err := p.MarkWorkerBlocked(w.Pid()); err != nil {
			return err
		}
		if err := p.MarkWorkerUnblocked(w.Pid()); err != nil {
			return err
		}
		if err := p.ReclaimTaskResources(w.Pid()); err != nil {
			return err
		}
		w.AssignTaskIds(nil)
		p.PushIdleWorker(w)
	}

	for _, w := range workers {
		if _, err := p.DisconnectWorker(w.Pid()); err != nil {
			return err
		}
	}

	fmt.Fprintln(os.Stdout, "final node availability:", p.Available())
	p.Registry().Each(func(name string, metric interface{}) {
		switch m := metric.(type) {
		case metrics.Counter:
			fmt.Fprintf(os.Stdout, "%s: %d\n", name, m.Count())
		case metrics.Gauge:
			fmt.Fprintf(os.Stdout, "%s: %d\n", name, m.Value())
		}
	})
	return nil
}

func newSendBackOff() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 10)
}
