package instance_test

import (
	"context"
	"ringiflow/bizerror"
	"ringiflow/domain/instance"
	"ringiflow/domain/state"
	"ringiflow/event"
	"ringiflow/session"
	"ringiflow/testinfra"
	"testing"

	. "github.com/onsi/gomega"
)

// submits a fresh instance through a definition with the given approvers and
// returns its running detail.
func prepareRunningInstance(t *testing.T, sec *session.Context, approvers ...*session.Context) *instance.WorkflowInstanceDetail {
	names := []string{}
	for _, approver := range approvers {
		names = append(names, "approval "+approver.Identity.Name)
	}
	definition := preparePublishedDefinition(t, names, sec)
	record, err := instance.CreateInstance(context.Background(),
		&instance.InstanceCreation{DefinitionID: definition.ID, Title: "new laptop"}, sec)
	Expect(err).To(BeNil())
	detail, err := instance.SubmitInstance(context.Background(), record.ID,
		&instance.SubmitRequest{Approvers: assignments(definition, approvers...), Version: 1}, sec)
	Expect(err).To(BeNil())
	return detail
}

func TestApproveStep(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should walk a three step instance to approved", func(t *testing.T) {
		setup(t)
		defer teardown(t)

		sec := testinfra.BuildSecCtx(10, "alice")
		approverA, approverB, approverC := testinfra.BuildSecCtx(20, "bob"), testinfra.BuildSecCtx(30, "carol"), testinfra.BuildSecCtx(40, "dave")
		running := prepareRunningInstance(t, sec, approverA, approverB, approverC)

		// first approval activates the second step
		detail, err := instance.ApproveStep(context.Background(), running.Steps[0].ID,
			&instance.DecisionRequest{Comment: "fine by me", Version: 1}, approverA)
		Expect(err).To(BeNil())
		Expect(detail.StateName).To(Equal(state.StateInProgress))
		Expect(detail.CurrentStepID).To(Equal(running.Steps[1].ID))
		steps := reloadSteps(t, running.ID)
		Expect(steps[0].StateName).To(Equal(state.StepStateCompleted))
		Expect(steps[0].Decision).To(Equal(state.DecisionApproved))
		Expect(steps[0].Comment).To(Equal("fine by me"))
		Expect(steps[0].Version).To(Equal(2))
		Expect(steps[1].StateName).To(Equal(state.StepStateActive))
		Expect(steps[1].Version).To(Equal(2))
		Expect(steps[2].StateName).To(Equal(state.StepStatePending))
		Expect(steps[2].Version).To(Equal(1))

		ev := lastEvent(t)
		Expect(ev.EventCategory).To(Equal(event.EventCategory(event.EventCategoryStepApproved)))
		Expect(ev.SourceId).To(Equal(running.Steps[0].ID))
		Expect(ev.SourceType).To(Equal("WORKFLOW_STEP"))

		// second approval activates the third step
		detail, err = instance.ApproveStep(context.Background(), running.Steps[1].ID,
			&instance.DecisionRequest{Version: 2}, approverB)
		Expect(err).To(BeNil())
		Expect(detail.StateName).To(Equal(state.StateInProgress))
		Expect(detail.CurrentStepID).To(Equal(running.Steps[2].ID))
		steps = reloadSteps(t, running.ID)
		Expect(steps[1].StateName).To(Equal(state.StepStateCompleted))
		Expect(steps[2].StateName).To(Equal(state.StepStateActive))

		// last approval finalizes the instance
		detail, err = instance.ApproveStep(context.Background(), running.Steps[2].ID,
			&instance.DecisionRequest{Version: 2}, approverC)
		Expect(err).To(BeNil())
		Expect(detail.StateName).To(Equal(state.StateApproved))
		Expect(detail.CompletedAt.IsZero()).To(BeFalse())
		steps = reloadSteps(t, running.ID)
		for _, step := range steps {
			Expect(step.StateName).To(Equal(state.StepStateCompleted))
			Expect(step.Decision).To(Equal(state.DecisionApproved))
		}
		loaded := reloadInstance(t, running.ID)
		Expect(loaded.StateName).To(Equal(state.StateApproved))
		Expect(loaded.Version).To(Equal(5))
	})

	t.Run("should be forbidden for a caller who is not the assigned approver", func(t *testing.T) {
		setup(t)
		defer teardown(t)

		sec := testinfra.BuildSecCtx(10, "alice")
		approver := testinfra.BuildSecCtx(20, "bob")
		running := prepareRunningInstance(t, sec, approver)

		detail, err := instance.ApproveStep(context.Background(), running.Steps[0].ID,
			&instance.DecisionRequest{Version: 1}, testinfra.BuildSecCtx(99, "mallory"))
		Expect(detail).To(BeNil())
		Expect(err).To(Equal(bizerror.ErrForbidden))

		steps := reloadSteps(t, running.ID)
		Expect(steps[0].StateName).To(Equal(state.StepStateActive))
		Expect(steps[0].Version).To(Equal(1))
	})

	t.Run("should fail on a step that is not active and change nothing", func(t *testing.T) {
		setup(t)
		defer teardown(t)

		sec := testinfra.BuildSecCtx(10, "alice")
		approverA, approverB := testinfra.BuildSecCtx(20, "bob"), testinfra.BuildSecCtx(30, "carol")
		running := prepareRunningInstance(t, sec, approverA, approverB)

		detail, err := instance.ApproveStep(context.Background(), running.Steps[1].ID,
			&instance.DecisionRequest{Version: 1}, approverB)
		Expect(detail).To(BeNil())
		Expect(err).To(Equal(&bizerror.StateError{
			Subject: "step", Operation: "approved", Current: state.StepStatePending, Expected: state.StepStateActive}))

		loaded := reloadInstance(t, running.ID)
		Expect(loaded.StateName).To(Equal(state.StateInProgress))
		Expect(loaded.Version).To(Equal(2))
		steps := reloadSteps(t, running.ID)
		Expect(steps[0].StateName).To(Equal(state.StepStateActive))
		Expect(steps[1].StateName).To(Equal(state.StepStatePending))
		Expect(steps[1].Version).To(Equal(1))
	})

	t.Run("should fail conflict for the loser of a version race", func(t *testing.T) {
		setup(t)
		defer teardown(t)

		sec := testinfra.BuildSecCtx(10, "alice")
		approver := testinfra.BuildSecCtx(20, "bob")
		running := prepareRunningInstance(t, sec, approver)

		// both callers read step version 1; the first write wins
		detail, err := instance.ApproveStep(context.Background(), running.Steps[0].ID,
			&instance.DecisionRequest{Version: 1}, approver)
		Expect(err).To(BeNil())
		Expect(detail.StateName).To(Equal(state.StateApproved))

		detail, err = instance.ApproveStep(context.Background(), running.Steps[0].ID,
			&instance.DecisionRequest{Version: 1}, approver)
		Expect(detail).To(BeNil())
		Expect(err).To(Equal(bizerror.ErrConflict))
	})

	t.Run("should return not found for an unknown step", func(t *testing.T) {
		setup(t)
		defer teardown(t)

		detail, err := instance.ApproveStep(context.Background(), 404404,
			&instance.DecisionRequest{Version: 1}, testinfra.BuildSecCtx(20, "bob"))
		Expect(detail).To(BeNil())
		Expect(err).To(Equal(bizerror.ErrNotFound))
	})
}

func TestRejectStep(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should finalize the instance and leave later steps untouched", func(t *testing.T) {
		setup(t)
		defer teardown(t)

		sec := testinfra.BuildSecCtx(10, "alice")
		approverA, approverB, approverC := testinfra.BuildSecCtx(20, "bob"), testinfra.BuildSecCtx(30, "carol"), testinfra.BuildSecCtx(40, "dave")
		running := prepareRunningInstance(t, sec, approverA, approverB, approverC)

		_, err := instance.ApproveStep(context.Background(), running.Steps[0].ID,
			&instance.DecisionRequest{Version: 1}, approverA)
		Expect(err).To(BeNil())

		detail, err := instance.RejectStep(context.Background(), running.Steps[1].ID,
			&instance.DecisionRequest{Comment: "over budget", Version: 2}, approverB)
		Expect(err).To(BeNil())
		Expect(detail.StateName).To(Equal(state.StateRejected))
		Expect(detail.CompletedAt.IsZero()).To(BeFalse())

		steps := reloadSteps(t, running.ID)
		Expect(steps[1].StateName).To(Equal(state.StepStateCompleted))
		Expect(steps[1].Decision).To(Equal(state.DecisionRejected))
		Expect(steps[1].Comment).To(Equal("over budget"))
		Expect(steps[2].StateName).To(Equal(state.StepStatePending))
		Expect(steps[2].Version).To(Equal(1))

		ev := lastEvent(t)
		Expect(ev.EventCategory).To(Equal(event.EventCategory(event.EventCategoryStepRejected)))
	})
}

func TestRequestStepChanges(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should return the instance to the submitter, who can resubmit from step one", func(t *testing.T) {
		setup(t)
		defer teardown(t)

		sec := testinfra.BuildSecCtx(10, "alice")
		approverA, approverB := testinfra.BuildSecCtx(20, "bob"), testinfra.BuildSecCtx(30, "carol")
		running := prepareRunningInstance(t, sec, approverA, approverB)

		detail, err := instance.RequestStepChanges(context.Background(), running.Steps[0].ID,
			&instance.DecisionRequest{Comment: "attach a quote", Version: 1}, approverA)
		Expect(err).To(BeNil())
		Expect(detail.StateName).To(Equal(state.StateChangesRequested))
		Expect(lastEvent(t).EventCategory).To(Equal(event.EventCategory(event.EventCategoryStepChangesRequested)))

		// resubmit restarts at step one with fresh assignment, same instance id
		approverD := testinfra.BuildSecCtx(50, "erin")
		definitionDetail, err := reloadDefinitionDetail(running.DefinitionID)
		Expect(err).To(BeNil())

		resubmitted, err := instance.ResubmitInstance(context.Background(), running.ID,
			&instance.SubmitRequest{Approvers: assignments(definitionDetail, approverD, approverB), Version: detail.Version}, sec)
		Expect(err).To(BeNil())
		Expect(resubmitted.ID).To(Equal(running.ID))
		Expect(resubmitted.StateName).To(Equal(state.StateInProgress))

		steps := reloadSteps(t, running.ID)
		Expect(len(steps)).To(Equal(2))
		Expect(steps[0].StateName).To(Equal(state.StepStateActive))
		Expect(steps[0].ApproverID).To(Equal(approverD.Identity.ID))
		Expect(steps[1].StateName).To(Equal(state.StepStatePending))
		for _, step := range steps {
			Expect(step.ID).ToNot(Equal(running.Steps[0].ID))
			Expect(step.ID).ToNot(Equal(running.Steps[1].ID))
		}

		Expect(lastEvent(t).EventCategory).To(Equal(event.EventCategory(event.EventCategoryInstanceResubmitted)))
	})

	t.Run("should not allow resubmit of an instance that is not changes_requested", func(t *testing.T) {
		setup(t)
		defer teardown(t)

		sec := testinfra.BuildSecCtx(10, "alice")
		approver := testinfra.BuildSecCtx(20, "bob")
		running := prepareRunningInstance(t, sec, approver)

		definitionDetail, err := reloadDefinitionDetail(running.DefinitionID)
		Expect(err).To(BeNil())
		detail, err := instance.ResubmitInstance(context.Background(), running.ID,
			&instance.SubmitRequest{Approvers: assignments(definitionDetail, approver), Version: 2}, sec)
		Expect(detail).To(BeNil())
		Expect(err).To(Equal(&bizerror.StateError{
			Subject: "instance", Operation: "resubmit", Current: state.StateInProgress, Expected: state.StateChangesRequested}))
	})
}
