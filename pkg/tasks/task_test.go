package tasks

import (
	"testing"

	"github.com/roadmap-automation/lh-manager-sub000/pkg/status"
)

func TestAdvanceIsMonotonic(t *testing.T) {
	c := NewContainer(NewTask(TypeMeasure))
	if c.Status != status.Inactive {
		t.Fatalf("new container status = %s", c.Status)
	}
	for _, next := range []status.Status{status.Pending, status.Active, status.Completed} {
		if !c.Advance(next) {
			t.Fatalf("advance to %s rejected", next)
		}
	}
	if c.Advance(status.Active) {
		t.Fatal("regression out of a terminal state was accepted")
	}
	if c.Status != status.Completed {
		t.Fatalf("status after rejected regression = %s", c.Status)
	}
}

func TestAdvanceRejectsBackwards(t *testing.T) {
	c := NewContainer(NewTask(TypeTransfer))
	c.Advance(status.Active)
	if c.Advance(status.Pending) {
		t.Fatal("active -> pending accepted")
	}
	if !c.Advance(status.Cancelled) {
		t.Fatal("active -> cancelled rejected")
	}
}
