package state_test

import (
	"ringiflow/bizerror"
	"ringiflow/domain/state"
	"time"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("InstanceState", func() {
	var (
		submittedAt types.Timestamp
		completedAt types.Timestamp
	)

	BeforeEach(func() {
		submittedAt = types.TimestampOfDate(2021, 3, 1, 9, 0, 0, 0, time.Local)
		completedAt = types.TimestampOfDate(2021, 3, 2, 17, 30, 0, 0, time.Local)
	})

	Describe("Submit", func() {
		It("should move draft to pending", func() {
			s, err := state.Submit(state.Draft{}, submittedAt)
			Expect(err).To(BeNil())
			Expect(s).To(Equal(state.Pending{SubmittedAt: submittedAt}))
			Expect(s.Terminal()).To(BeFalse())
		})

		It("should fail from every other state", func() {
			for _, from := range []state.InstanceState{
				state.Pending{SubmittedAt: submittedAt},
				state.InProgress{CurrentStepID: 100, SubmittedAt: submittedAt},
				state.Approved{CurrentStepID: 100, SubmittedAt: submittedAt, CompletedAt: completedAt},
				state.Rejected{CurrentStepID: 100, SubmittedAt: submittedAt, CompletedAt: completedAt},
				state.ChangesRequested{CurrentStepID: 100, SubmittedAt: submittedAt},
				state.Cancelled{CompletedAt: completedAt},
			} {
				s, err := state.Submit(from, submittedAt)
				Expect(s).To(BeNil())
				Expect(err).To(Equal(&bizerror.StateError{
					Subject: "instance", Operation: "submit", Current: from.Name(), Expected: state.StateDraft}))
			}
		})
	})

	Describe("Resubmit", func() {
		It("should move changes_requested back to pending", func() {
			s, err := state.Resubmit(state.ChangesRequested{CurrentStepID: 100, SubmittedAt: submittedAt}, completedAt)
			Expect(err).To(BeNil())
			Expect(s).To(Equal(state.Pending{SubmittedAt: completedAt}))
		})

		It("should fail from draft", func() {
			s, err := state.Resubmit(state.Draft{}, submittedAt)
			Expect(s).To(BeNil())
			Expect(err).To(Equal(&bizerror.StateError{
				Subject: "instance", Operation: "resubmit", Current: state.StateDraft, Expected: state.StateChangesRequested}))
		})
	})

	Describe("WithCurrentStep", func() {
		It("should move pending to in_progress keeping submitted_at", func() {
			s, err := state.WithCurrentStep(state.Pending{SubmittedAt: submittedAt}, 100)
			Expect(err).To(BeNil())
			Expect(s).To(Equal(state.InProgress{CurrentStepID: 100, SubmittedAt: submittedAt}))
		})

		It("should fail from draft instead of falling back to a default", func() {
			s, err := state.WithCurrentStep(state.Draft{}, 100)
			Expect(s).To(BeNil())
			Expect(err).To(Equal(&bizerror.StateError{
				Subject: "instance", Operation: "with_current_step", Current: state.StateDraft, Expected: state.StatePending}))
		})
	})

	Describe("AdvanceToStep", func() {
		It("should move the cursor of a running instance", func() {
			s, err := state.AdvanceToStep(state.InProgress{CurrentStepID: 100, SubmittedAt: submittedAt}, 200)
			Expect(err).To(BeNil())
			Expect(s).To(Equal(state.InProgress{CurrentStepID: 200, SubmittedAt: submittedAt}))
		})

		It("should fail when the instance is not running", func() {
			s, err := state.AdvanceToStep(state.Pending{SubmittedAt: submittedAt}, 200)
			Expect(s).To(BeNil())
			Expect(err).To(Equal(&bizerror.StateError{
				Subject: "instance", Operation: "advance_to_step", Current: state.StatePending, Expected: state.StateInProgress}))
		})
	})

	Describe("complete transitions", func() {
		It("should finalize a running instance", func() {
			running := state.InProgress{CurrentStepID: 300, SubmittedAt: submittedAt}

			s, err := state.CompleteWithApproval(running, completedAt)
			Expect(err).To(BeNil())
			Expect(s).To(Equal(state.Approved{CurrentStepID: 300, SubmittedAt: submittedAt, CompletedAt: completedAt}))
			Expect(s.Terminal()).To(BeTrue())

			s, err = state.CompleteWithRejection(running, completedAt)
			Expect(err).To(BeNil())
			Expect(s).To(Equal(state.Rejected{CurrentStepID: 300, SubmittedAt: submittedAt, CompletedAt: completedAt}))
			Expect(s.Terminal()).To(BeTrue())

			s, err = state.CompleteWithRequestChanges(running, completedAt)
			Expect(err).To(BeNil())
			Expect(s).To(Equal(state.ChangesRequested{CurrentStepID: 300, SubmittedAt: submittedAt}))
			Expect(s.Terminal()).To(BeFalse())
		})

		It("should fail when the instance is not running", func() {
			_, err := state.CompleteWithApproval(state.Draft{}, completedAt)
			Expect(err).To(Equal(&bizerror.StateError{
				Subject: "instance", Operation: "complete_with_approval", Current: state.StateDraft, Expected: state.StateInProgress}))

			_, err = state.CompleteWithRejection(state.Pending{SubmittedAt: submittedAt}, completedAt)
			Expect(err).To(Equal(&bizerror.StateError{
				Subject: "instance", Operation: "complete_with_rejection", Current: state.StatePending, Expected: state.StateInProgress}))

			_, err = state.CompleteWithRequestChanges(state.Cancelled{CompletedAt: completedAt}, completedAt)
			Expect(err).To(Equal(&bizerror.StateError{
				Subject: "instance", Operation: "complete_with_request_changes", Current: state.StateCancelled, Expected: state.StateInProgress}))
		})
	})

	Describe("Cancel", func() {
		It("should carry forward whatever fields existed", func() {
			s, err := state.Cancel(state.Draft{}, completedAt)
			Expect(err).To(BeNil())
			Expect(s).To(Equal(state.Cancelled{CompletedAt: completedAt}))

			s, err = state.Cancel(state.Pending{SubmittedAt: submittedAt}, completedAt)
			Expect(err).To(BeNil())
			Expect(s).To(Equal(state.Cancelled{SubmittedAt: submittedAt, CompletedAt: completedAt}))

			s, err = state.Cancel(state.InProgress{CurrentStepID: 100, SubmittedAt: submittedAt}, completedAt)
			Expect(err).To(BeNil())
			Expect(s).To(Equal(state.Cancelled{CurrentStepID: 100, SubmittedAt: submittedAt, CompletedAt: completedAt}))

			s, err = state.Cancel(state.ChangesRequested{CurrentStepID: 100, SubmittedAt: submittedAt}, completedAt)
			Expect(err).To(BeNil())
			Expect(s).To(Equal(state.Cancelled{CurrentStepID: 100, SubmittedAt: submittedAt, CompletedAt: completedAt}))
		})

		It("should fail on terminal states", func() {
			for _, from := range []state.InstanceState{
				state.Approved{CurrentStepID: 100, SubmittedAt: submittedAt, CompletedAt: completedAt},
				state.Rejected{CurrentStepID: 100, SubmittedAt: submittedAt, CompletedAt: completedAt},
				state.Cancelled{CompletedAt: completedAt},
			} {
				s, err := state.Cancel(from, completedAt)
				Expect(s).To(BeNil())
				Expect(err).To(Equal(&bizerror.StateError{
					Subject: "instance", Operation: "cancel", Current: from.Name(), Expected: "non-terminal"}))
			}
		})
	})

	Describe("ReconstructInstanceState", func() {
		It("should rebuild every valid state", func() {
			s, err := state.ReconstructInstanceState(state.StateDraft, 0, types.Timestamp{}, types.Timestamp{})
			Expect(err).To(BeNil())
			Expect(s).To(Equal(state.Draft{}))

			s, err = state.ReconstructInstanceState(state.StatePending, 0, submittedAt, types.Timestamp{})
			Expect(err).To(BeNil())
			Expect(s).To(Equal(state.Pending{SubmittedAt: submittedAt}))

			s, err = state.ReconstructInstanceState(state.StateInProgress, 100, submittedAt, types.Timestamp{})
			Expect(err).To(BeNil())
			Expect(s).To(Equal(state.InProgress{CurrentStepID: 100, SubmittedAt: submittedAt}))

			s, err = state.ReconstructInstanceState(state.StateApproved, 100, submittedAt, completedAt)
			Expect(err).To(BeNil())
			Expect(s).To(Equal(state.Approved{CurrentStepID: 100, SubmittedAt: submittedAt, CompletedAt: completedAt}))

			s, err = state.ReconstructInstanceState(state.StateRejected, 100, submittedAt, completedAt)
			Expect(err).To(BeNil())
			Expect(s).To(Equal(state.Rejected{CurrentStepID: 100, SubmittedAt: submittedAt, CompletedAt: completedAt}))

			s, err = state.ReconstructInstanceState(state.StateChangesRequested, 100, submittedAt, types.Timestamp{})
			Expect(err).To(BeNil())
			Expect(s).To(Equal(state.ChangesRequested{CurrentStepID: 100, SubmittedAt: submittedAt}))

			s, err = state.ReconstructInstanceState(state.StateCancelled, 0, types.Timestamp{}, completedAt)
			Expect(err).To(BeNil())
			Expect(s).To(Equal(state.Cancelled{CompletedAt: completedAt}))
		})

		It("should fail on rows violating state completeness", func() {
			_, err := state.ReconstructInstanceState(state.StateDraft, 0, submittedAt, types.Timestamp{})
			Expect(err).To(Equal(&bizerror.InvalidStateRecordError{
				Subject: "instance", State: state.StateDraft, Reason: "submitted_at must be empty"}))

			_, err = state.ReconstructInstanceState(state.StateInProgress, 0, submittedAt, types.Timestamp{})
			Expect(err).To(Equal(&bizerror.InvalidStateRecordError{
				Subject: "instance", State: state.StateInProgress, Reason: "current_step_id is missing"}))

			_, err = state.ReconstructInstanceState(state.StateInProgress, 100, types.Timestamp{}, types.Timestamp{})
			Expect(err).To(Equal(&bizerror.InvalidStateRecordError{
				Subject: "instance", State: state.StateInProgress, Reason: "submitted_at is missing"}))

			_, err = state.ReconstructInstanceState(state.StateApproved, 100, submittedAt, types.Timestamp{})
			Expect(err).To(Equal(&bizerror.InvalidStateRecordError{
				Subject: "instance", State: state.StateApproved, Reason: "completed_at is missing"}))

			_, err = state.ReconstructInstanceState("unknown", 0, types.Timestamp{}, types.Timestamp{})
			Expect(err).To(Equal(&bizerror.InvalidStateRecordError{
				Subject: "instance", State: "unknown", Reason: "unknown state"}))
		})
	})
})
