// Package worker holds the scheduler-side state record for a single worker
// process: identity, liveness, blocking status, task/actor assignment, and
// the resource units the worker currently owns.
package worker

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"

	"github.com/taskfleet/nodesched/conn"
	"github.com/taskfleet/nodesched/resource"
)

type TaskId string
type DriverId string
type ActorId string

// NilActorId marks a worker that is not bound to an actor.
const NilActorId ActorId = ""

// Language identifies the execution runtime of a worker process, used to
// route tasks written in that runtime.
type Language int

const (
	// An unambiguous 0-value.
	UNKNOWN Language = iota
	PYTHON
	JAVA
	CPP
)

func (l Language) String() string {
	switch l {
	case UNKNOWN:
		return "UNKNOWN"
	case PYTHON:
		return "PYTHON"
	case JAVA:
		return "JAVA"
	case CPP:
		return "CPP"
	default:
		panic(fmt.Sprintf("Unexpected Language %v", int(l)))
	}
}

// ErrInvariantViolation is the cause of errors returned when a caller breaks
// a state invariant of the Worker record. These are programming errors, not
// recoverable runtime faults; callers discriminate with errors.Cause.
var ErrInvariantViolation = errors.New("worker state invariant violated")

// Worker is the per-process state record tracked by the node scheduler.
//
// It is a plain mutable record with no internal locking: the owning
// scheduler loop is the sole mutator. The connection is the one field also
// referenced by the I/O layer, which must only read it. Resource sets move
// in and out by copy, never aliased.
type Worker struct {
	pid      int
	language Language
	conn     conn.Connection

	dead    bool
	blocked bool

	assignedTaskIds  []TaskId
	assignedDriverId DriverId
	actorId          ActorId
	blockedTaskIds   map[TaskId]bool

	// Units reserved for the worker's whole life (e.g. an actor's footprint)
	// vs. units reserved only for the currently executing task.
	lifetimeResourceIds resource.ResourceIdSet
	taskResourceIds     resource.ResourceIdSet
}

// NewWorker returns the record for a newly handshaked worker process.
// All mutable state starts empty, alive and unblocked.
func NewWorker(pid int, language Language, connection conn.Connection) *Worker {
	return &Worker{
		pid:                 pid,
		language:            language,
		conn:                connection,
		blockedTaskIds:      map[TaskId]bool{},
		lifetimeResourceIds: resource.NewResourceIdSet(),
		taskResourceIds:     resource.NewResourceIdSet(),
	}
}

func (w *Worker) Pid() int {
	return w.pid
}

func (w *Worker) GetLanguage() Language {
	return w.language
}

func (w *Worker) Connection() conn.Connection {
	return w.conn
}

// MarkDead is idempotent and touches nothing else: the record keeps its
// resource sets so the resource accounting layer can read them back before
// the record is discarded.
func (w *Worker) MarkDead() {
	w.dead = true
}

func (w *Worker) IsDead() bool {
	return w.dead
}

func (w *Worker) MarkBlocked() {
	w.blocked = true
}

func (w *Worker) MarkUnblocked() {
	w.blocked = false
}

func (w *Worker) IsBlocked() bool {
	return w.blocked
}

// AddBlockedTaskId records a task blocked on this worker. Returns whether
// the id was newly inserted.
func (w *Worker) AddBlockedTaskId(id TaskId) bool {
	if w.blockedTaskIds[id] {
		return false
	}
	w.blockedTaskIds[id] = true
	return true
}

// RemoveBlockedTaskId returns whether the id was present and removed.
func (w *Worker) RemoveBlockedTaskId(id TaskId) bool {
	if !w.blockedTaskIds[id] {
		return false
	}
	delete(w.blockedTaskIds, id)
	return true
}

func (w *Worker) GetBlockedTaskIds() map[TaskId]bool {
	ids := make(map[TaskId]bool, len(w.blockedTaskIds))
	for id := range w.blockedTaskIds {
		ids[id] = true
	}
	return ids
}

// AssignTaskId replaces the assignment with the single given task.
//
// Deprecated: retained for callers that assign one task at a time; new
// callers should use AssignTaskIds.
func (w *Worker) AssignTaskId(id TaskId) {
	w.assignedTaskIds = []TaskId{id}
}

// AssignTaskIds replaces the assignment wholesale. An empty slice clears it.
func (w *Worker) AssignTaskIds(ids []TaskId) {
	w.assignedTaskIds = append([]TaskId(nil), ids...)
}

// GetAssignedTaskId returns the sole assigned task. It is an invariant
// violation to call this with anything but exactly one task assigned.
//
// Deprecated: callers mixing in multi-task assignment must use
// GetAssignedTaskIds.
func (w *Worker) GetAssignedTaskId() (TaskId, error) {
	if len(w.assignedTaskIds) != 1 {
		return "", errors.Wrapf(ErrInvariantViolation,
			"worker %d has %d assigned tasks, want exactly 1", w.pid, len(w.assignedTaskIds))
	}
	return w.assignedTaskIds[0], nil
}

func (w *Worker) GetAssignedTaskIds() []TaskId {
	return append([]TaskId(nil), w.assignedTaskIds...)
}

func (w *Worker) AssignDriverId(id DriverId) {
	w.assignedDriverId = id
}

func (w *Worker) GetAssignedDriverId() DriverId {
	return w.assignedDriverId
}

// AssignActorId binds the worker to an actor, exactly once for the worker's
// life. Rebinding, or binding to the nil actor id, is an invariant violation.
func (w *Worker) AssignActorId(id ActorId) error {
	if w.actorId != NilActorId {
		return errors.Wrapf(ErrInvariantViolation,
			"worker %d is already bound to actor %s", w.pid, w.actorId)
	}
	if id == NilActorId {
		return errors.Wrapf(ErrInvariantViolation,
			"worker %d cannot be bound to the nil actor id", w.pid)
	}
	w.actorId = id
	return nil
}

// GetActorId returns NilActorId for a non-actor worker.
func (w *Worker) GetActorId() ActorId {
	return w.actorId
}

func (w *Worker) GetLifetimeResourceIds() resource.ResourceIdSet {
	return w.lifetimeResourceIds
}

func (w *Worker) SetLifetimeResourceIds(ids resource.ResourceIdSet) {
	w.lifetimeResourceIds = ids.Clone()
}

func (w *Worker) ResetLifetimeResourceIds() {
	w.lifetimeResourceIds.Clear()
}

func (w *Worker) GetTaskResourceIds() resource.ResourceIdSet {
	return w.taskResourceIds
}

func (w *Worker) SetTaskResourceIds(ids resource.ResourceIdSet) {
	w.taskResourceIds = ids.Clone()
}

func (w *Worker) ResetTaskResourceIds() {
	w.taskResourceIds.Clear()
}

// ReleaseTaskCpuResources hands the CPU units of the current task back to
// the caller, e.g. while the worker sits blocked on an unready dependency.
// The caller owns the returned units until it gives them back through
// AcquireTaskCpuResources.
func (w *Worker) ReleaseTaskCpuResources() resource.ResourceIdSet {
	cpus := w.taskResourceIds.CpuResources()
	// The "acquire" terminology reads backwards here: the units are being
	// acquired out of the task slot, so the worker is the side losing them.
	if _, err := w.taskResourceIds.Acquire(cpus.ToResourceSet()); err != nil {
		panic(fmt.Sprintf("Unexpected failure acquiring a subset of the task slot: %v", err))
	}
	return cpus
}

// AcquireTaskCpuResources gives CPU units back to the worker's task slot,
// e.g. when the worker unblocks and regains its reservation.
func (w *Worker) AcquireTaskCpuResources(cpus resource.ResourceIdSet) {
	// And "release" here means the caller is the side losing the units.
	w.taskResourceIds.Release(cpus)
}

func (w *Worker) String() string {
	return fmt.Sprintf("{pid:%d, language:%s, dead:%t, blocked:%t, tasks:%v, driver:%s, actor:%s, taskResources:%s, lifetimeResources:%s, conn:%s}",
		w.pid, w.language, w.dead, w.blocked, w.assignedTaskIds, w.assignedDriverId, w.actorId,
		w.taskResourceIds, w.lifetimeResourceIds, spew.Sdump(w.conn))
}
