// Package pool maintains the registry of worker records owned by a node
// scheduler, the per-language idle pools used for dispatch, and the
// node-local resource units handed back by blocked workers.
package pool

import (
	"fmt"
	"sync"

	"github.com/rcrowley/go-metrics"
	log "github.com/sirupsen/logrus"

	"github.com/taskfleet/nodesched/conn"
	"github.com/taskfleet/nodesched/resource"
	"github.com/taskfleet/nodesched/worker"
)

// Pool is the sole mutator of the worker records it tracks: every method
// runs under the pool mutex, giving the records the single-logical-loop
// discipline they assume.
type Pool struct {
	mu        sync.Mutex
	workers   map[int]*worker.Worker // all registered workers, keyed by pid
	byConn    map[conn.Id]int        // connection id -> pid
	idle      map[worker.Language][]*worker.Worker
	available resource.ResourceIdSet // node-local units not granted to any worker

	// CPU quantities handed back by each blocked worker, keyed by pid, so
	// the unblock path knows how much to re-acquire.
	handedBack map[int]resource.ResourceSet

	registry     metrics.Registry
	registered   metrics.Counter
	disconnected metrics.Counter
	numWorkers   metrics.Gauge
	numBlocked   metrics.Gauge
}

// NewPool returns a pool owning a copy of the given node-local units.
func NewPool(available resource.ResourceIdSet) *Pool {
	r := metrics.NewRegistry()
	return &Pool{
		workers:      map[int]*worker.Worker{},
		byConn:       map[conn.Id]int{},
		idle:         map[worker.Language][]*worker.Worker{},
		available:    available.Clone(),
		handedBack:   map[int]resource.ResourceSet{},
		registry:     r,
		registered:   metrics.NewRegisteredCounter("workers.registered", r),
		disconnected: metrics.NewRegisteredCounter("workers.disconnected", r),
		numWorkers:   metrics.NewRegisteredGauge("workers.current", r),
		numBlocked:   metrics.NewRegisteredGauge("workers.blocked", r),
	}
}

// Registry exposes the pool's metrics for reporting.
func (p *Pool) Registry() metrics.Registry {
	return p.registry
}

// RegisterWorker starts tracking a newly handshaked worker.
func (p *Pool) RegisterWorker(w *worker.Worker) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.workers[w.Pid()]; ok {
		return fmt.Errorf("worker with pid %d is already registered", w.Pid())
	}
	p.workers[w.Pid()] = w
	if c := w.Connection(); c != nil {
		p.byConn[c.Id()] = w.Pid()
	}
	p.registered.Inc(1)
	p.numWorkers.Update(int64(len(p.workers)))
	log.Infof("Registered worker %d (%v), now tracking %d workers", w.Pid(), w.GetLanguage(), len(p.workers))
	return nil
}

func (p *Pool) GetWorker(pid int) (*worker.Worker, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.workers[pid]
	return w, ok
}

// GetWorkerByConnection resolves the record for an I/O-layer callback that
// only knows which channel it fired on.
func (p *Pool) GetWorkerByConnection(id conn.Id) (*worker.Worker, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pid, ok := p.byConn[id]
	if !ok {
		return nil, false
	}
	w, ok := p.workers[pid]
	return w, ok
}

// NumWorkers returns the number of tracked workers.
func (p *Pool) NumWorkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Available returns a copy of the node-local units not granted to any worker.
func (p *Pool) Available() resource.ResourceIdSet {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available.Clone()
}

// PushIdleWorker returns a worker to its language's idle pool.
func (p *Pool) PushIdleWorker(w *worker.Worker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idle[w.GetLanguage()] = append(p.idle[w.GetLanguage()], w)
}

// PopIdleWorker takes the most recently idled worker of the given language,
// or reports false if none is idle.
func (p *Pool) PopIdleWorker(language worker.Language) (*worker.Worker, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idle := p.idle[language]
	if len(idle) == 0 {
		return nil, false
	}
	w := idle[len(idle)-1]
	p.idle[language] = idle[:len(idle)-1]
	return w, true
}

// GrantTaskResources acquires the requested quantities from the node-local
// units and places them in the worker's task slot.
func (p *Pool) GrantTaskResources(pid int, req resource.ResourceSet) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.workers[pid]
	if !ok {
		return fmt.Errorf("no worker with pid %d", pid)
	}
	granted, err := p.available.Acquire(req)
	if err != nil {
		return err
	}
	w.SetTaskResourceIds(granted)
	return nil
}

// GrantLifetimeResources is GrantTaskResources for the lifetime slot, used
// for reservations that outlive single tasks (e.g. an actor's footprint).
func (p *Pool) GrantLifetimeResources(pid int, req resource.ResourceSet) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.workers[pid]
	if !ok {
		return fmt.Errorf("no worker with pid %d", pid)
	}
	granted, err := p.available.Acquire(req)
	if err != nil {
		return err
	}
	w.SetLifetimeResourceIds(granted)
	return nil
}

// ReclaimTaskResources returns the worker's task slot to the node-local
// units when its task finishes, leaving the slot empty for the next grant.
func (p *Pool) ReclaimTaskResources(pid int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.workers[pid]
	if !ok {
		return fmt.Errorf("no worker with pid %d", pid)
	}
	p.available.Release(w.GetTaskResourceIds())
	w.ResetTaskResourceIds()
	return nil
}

// MarkWorkerBlocked records that the worker's current task is waiting on an
// unready dependency and hands its idle CPU reservation back to the node, so
// other tasks can use it in the meantime. Idempotent.
func (p *Pool) MarkWorkerBlocked(pid int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.workers[pid]
	if !ok {
		return fmt.Errorf("no worker with pid %d", pid)
	}
	if w.IsBlocked() {
		return nil
	}
	cpus := w.ReleaseTaskCpuResources()
	p.handedBack[pid] = cpus.ToResourceSet()
	p.available.Release(cpus)
	w.MarkBlocked()
	p.numBlocked.Update(int64(len(p.handedBack)))
	log.Debugf("Worker %d blocked, handed back %s", pid, p.handedBack[pid])
	return nil
}

// MarkWorkerUnblocked re-acquires the worker's CPU reservation from the
// node-local units and restores it to the worker's task slot. Fails, leaving
// the worker blocked, if the units are currently granted elsewhere.
func (p *Pool) MarkWorkerUnblocked(pid int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.workers[pid]
	if !ok {
		return fmt.Errorf("no worker with pid %d", pid)
	}
	if !w.IsBlocked() {
		return nil
	}
	req, ok := p.handedBack[pid]
	if ok && !req.IsEmpty() {
		cpus, err := p.available.Acquire(req)
		if err != nil {
			return fmt.Errorf("cannot restore CPU reservation of worker %d: %v", pid, err)
		}
		w.AcquireTaskCpuResources(cpus)
	}
	delete(p.handedBack, pid)
	w.MarkUnblocked()
	p.numBlocked.Update(int64(len(p.handedBack)))
	return nil
}

// DisconnectWorker marks the worker dead, stops tracking it, and reclaims
// both of its resource slots into the node-local units. Returns the record
// so the caller can inspect its final state.
func (p *Pool) DisconnectWorker(pid int) (*worker.Worker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.workers[pid]
	if !ok {
		return nil, fmt.Errorf("no worker with pid %d", pid)
	}
	w.MarkDead()

	p.available.Release(w.GetTaskResourceIds())
	p.available.Release(w.GetLifetimeResourceIds())
	w.ResetTaskResourceIds()
	w.ResetLifetimeResourceIds()

	delete(p.workers, pid)
	delete(p.handedBack, pid)
	if c := w.Connection(); c != nil {
		delete(p.byConn, c.Id())
	}
	idle := p.idle[w.GetLanguage()]
	for i, idleWorker := range idle {
		if idleWorker.Pid() == pid {
			p.idle[w.GetLanguage()] = append(idle[:i], idle[i+1:]...)
			break
		}
	}

	p.disconnected.Inc(1)
	p.numWorkers.Update(int64(len(p.workers)))
	p.numBlocked.Update(int64(len(p.handedBack)))
	log.Infof("Disconnected worker %d, now tracking %d workers", pid, len(p.workers))
	return w, nil
}
