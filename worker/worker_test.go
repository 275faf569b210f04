package worker

import (
	"reflect"
	"testing"

	"github.com/luci/go-render/render"
	"github.com/pkg/errors"

	"github.com/taskfleet/nodesched/conn"
	"github.com/taskfleet/nodesched/resource"
)

func makeTestWorker() *Worker {
	return NewWorker(1234, PYTHON, conn.NewMemoryConnection(1))
}

func Test_Worker_Construction(t *testing.T) {
	c := conn.NewMemoryConnection(1)
	w := NewWorker(1234, JAVA, c)

	if w.Pid() != 1234 {
		t.Errorf("expected pid 1234, got %d", w.Pid())
	}
	if w.GetLanguage() != JAVA {
		t.Errorf("expected language JAVA, got %s", w.GetLanguage())
	}
	if w.Connection().Id() != c.Id() {
		t.Errorf("expected the connection given at construction")
	}
	if w.IsDead() || w.IsBlocked() {
		t.Errorf("expected a new worker to be alive and unblocked")
	}
	if len(w.GetAssignedTaskIds()) != 0 || len(w.GetBlockedTaskIds()) != 0 {
		t.Errorf("expected a new worker to have no task state")
	}
	if w.GetActorId() != NilActorId {
		t.Errorf("expected a new worker to have no actor, got %s", w.GetActorId())
	}
	if !w.GetLifetimeResourceIds().IsEmpty() || !w.GetTaskResourceIds().IsEmpty() {
		t.Errorf("expected a new worker to hold no resources")
	}
}

func Test_Worker_MarkDeadIsIdempotent(t *testing.T) {
	w := makeTestWorker()
	w.MarkDead()
	w.MarkDead()
	if !w.IsDead() {
		t.Errorf("expected worker to stay dead")
	}
}

func Test_Worker_BlockedFollowsLastMark(t *testing.T) {
	w := makeTestWorker()
	for _, blocked := range []bool{true, false, true, true, false} {
		if blocked {
			w.MarkBlocked()
		} else {
			w.MarkUnblocked()
		}
		if w.IsBlocked() != blocked {
			t.Errorf("expected IsBlocked to be %t after the last mark", blocked)
		}
	}
}

func Test_Worker_BlockedTaskIds(t *testing.T) {
	w := makeTestWorker()

	if w.RemoveBlockedTaskId("t1") {
		t.Errorf("expected removal from an empty set to report false")
	}
	if !w.AddBlockedTaskId("t1") {
		t.Errorf("expected first add of t1 to report true")
	}
	if w.AddBlockedTaskId("t1") {
		t.Errorf("expected second add of t1 to report false")
	}
	if ids := w.GetBlockedTaskIds(); len(ids) != 1 || !ids["t1"] {
		t.Errorf("expected blocked set to contain exactly t1, got %v", render.Render(ids))
	}
	if !w.RemoveBlockedTaskId("t1") {
		t.Errorf("expected removal of a present id to report true")
	}
	if w.RemoveBlockedTaskId("t1") {
		t.Errorf("expected removal of an absent id to report false")
	}
}

func Test_Worker_SingleTaskAssignment(t *testing.T) {
	w := makeTestWorker()

	if _, err := w.GetAssignedTaskId(); errors.Cause(err) != ErrInvariantViolation {
		t.Errorf("expected the single-task getter to fail with no tasks assigned, got %v", err)
	}

	w.AssignTaskId("t1")
	id, err := w.GetAssignedTaskId()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "t1" {
		t.Errorf("expected t1, got %s", id)
	}
}

func Test_Worker_MultiTaskAssignment(t *testing.T) {
	w := makeTestWorker()

	w.AssignTaskIds([]TaskId{"t1", "t2"})
	if ids := w.GetAssignedTaskIds(); !reflect.DeepEqual(ids, []TaskId{"t1", "t2"}) {
		t.Errorf("expected [t1 t2] in order, got %v", render.Render(ids))
	}
	if _, err := w.GetAssignedTaskId(); errors.Cause(err) != ErrInvariantViolation {
		t.Errorf("expected the single-task getter to fail with two tasks assigned, got %v", err)
	}

	// Assignment replaces wholesale, and an empty slice clears it.
	w.AssignTaskId("t3")
	if ids := w.GetAssignedTaskIds(); !reflect.DeepEqual(ids, []TaskId{"t3"}) {
		t.Errorf("expected [t3], got %v", render.Render(ids))
	}
	w.AssignTaskIds(nil)
	if ids := w.GetAssignedTaskIds(); len(ids) != 0 {
		t.Errorf("expected no assigned tasks, got %v", render.Render(ids))
	}
}

func Test_Worker_DriverAssignment(t *testing.T) {
	w := makeTestWorker()
	w.AssignDriverId("d1")
	if w.GetAssignedDriverId() != "d1" {
		t.Errorf("expected driver d1, got %s", w.GetAssignedDriverId())
	}
}

func Test_Worker_ActorAssignmentIsWriteOnce(t *testing.T) {
	w := makeTestWorker()

	if err := w.AssignActorId("a1"); err != nil {
		t.Fatalf("unexpected error binding a fresh worker: %v", err)
	}
	if w.GetActorId() != "a1" {
		t.Errorf("expected actor a1, got %s", w.GetActorId())
	}

	if err := w.AssignActorId("a2"); errors.Cause(err) != ErrInvariantViolation {
		t.Errorf("expected rebinding to a different actor to fail, got %v", err)
	}
	if err := w.AssignActorId("a1"); errors.Cause(err) != ErrInvariantViolation {
		t.Errorf("expected rebinding to the same actor to fail, got %v", err)
	}
	if w.GetActorId() != "a1" {
		t.Errorf("expected the original binding to survive, got %s", w.GetActorId())
	}
}

func Test_Worker_AssignNilActorId(t *testing.T) {
	w := makeTestWorker()
	if err := w.AssignActorId(NilActorId); errors.Cause(err) != ErrInvariantViolation {
		t.Errorf("expected binding the nil actor id to fail, got %v", err)
	}
}

func Test_Worker_ResourceSlotsAreIndependent(t *testing.T) {
	w := makeTestWorker()
	lifetime := resource.NewResourceIdSetFromIds(map[string][]int64{resource.CPU: {1}})
	task := resource.NewResourceIdSetFromIds(map[string][]int64{resource.CPU: {2}})

	w.SetLifetimeResourceIds(lifetime)
	w.SetTaskResourceIds(task)
	if !w.GetLifetimeResourceIds().Equal(lifetime) {
		t.Errorf("expected lifetime slot %s, got %s", lifetime, w.GetLifetimeResourceIds())
	}
	if !w.GetTaskResourceIds().Equal(task) {
		t.Errorf("expected task slot %s, got %s", task, w.GetTaskResourceIds())
	}

	w.ResetTaskResourceIds()
	if !w.GetTaskResourceIds().IsEmpty() {
		t.Errorf("expected reset task slot to be empty, got %s", w.GetTaskResourceIds())
	}
	if w.GetLifetimeResourceIds().IsEmpty() {
		t.Errorf("expected the lifetime slot to be untouched by a task slot reset")
	}
	w.ResetLifetimeResourceIds()
	if !w.GetLifetimeResourceIds().IsEmpty() {
		t.Errorf("expected reset lifetime slot to be empty, got %s", w.GetLifetimeResourceIds())
	}
}

func Test_Worker_SettersCopy(t *testing.T) {
	w := makeTestWorker()
	given := resource.NewResourceIdSetFromIds(map[string][]int64{resource.CPU: {1}})

	w.SetTaskResourceIds(given)
	given.Clear()
	if w.GetTaskResourceIds().IsEmpty() {
		t.Errorf("expected the worker's slot to be unaffected by mutating the caller's set")
	}
}

func Test_Worker_CpuHandBack(t *testing.T) {
	w := makeTestWorker()
	original := resource.NewResourceIdSetFromIds(map[string][]int64{
		resource.CPU: {1, 2},
		"GPU":        {7},
	})
	w.SetTaskResourceIds(original)

	cpus := w.ReleaseTaskCpuResources()
	if !cpus.Equal(resource.NewResourceIdSetFromIds(map[string][]int64{resource.CPU: {1, 2}})) {
		t.Errorf("expected both CPU units handed back, got %s", cpus)
	}
	if !w.GetTaskResourceIds().Equal(resource.NewResourceIdSetFromIds(map[string][]int64{"GPU": {7}})) {
		t.Errorf("expected only the GPU unit to remain, got %s", w.GetTaskResourceIds())
	}

	w.AcquireTaskCpuResources(cpus)
	if !w.GetTaskResourceIds().Equal(original) {
		t.Errorf("expected the original three units restored, got %s", w.GetTaskResourceIds())
	}
}

func Test_Worker_ReleaseCpuWithNoCpus(t *testing.T) {
	w := makeTestWorker()
	w.SetTaskResourceIds(resource.NewResourceIdSetFromIds(map[string][]int64{"GPU": {7}}))

	cpus := w.ReleaseTaskCpuResources()
	if !cpus.IsEmpty() {
		t.Errorf("expected nothing handed back, got %s", cpus)
	}
	if !w.GetTaskResourceIds().Equal(resource.NewResourceIdSetFromIds(map[string][]int64{"GPU": {7}})) {
		t.Errorf("expected the task slot to be untouched, got %s", w.GetTaskResourceIds())
	}
}

func Test_Language_String(t *testing.T) {
	for lang, expected := range map[Language]string{
		UNKNOWN: "UNKNOWN", PYTHON: "PYTHON", JAVA: "JAVA", CPP: "CPP",
	} {
		if lang.String() != expected {
			t.Errorf("expected %s, got %s", expected, lang.String())
		}
	}
}
