package state_test

import (
	"ringiflow/bizerror"
	"ringiflow/domain/state"
	"time"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("StepState", func() {
	var (
		startedAt   types.Timestamp
		completedAt types.Timestamp
	)

	BeforeEach(func() {
		startedAt = types.TimestampOfDate(2021, 3, 1, 9, 0, 0, 0, time.Local)
		completedAt = types.TimestampOfDate(2021, 3, 1, 15, 0, 0, 0, time.Local)
	})

	Describe("Activate", func() {
		It("should move pending to active", func() {
			s, err := state.Activate(state.StepPending{}, startedAt)
			Expect(err).To(BeNil())
			Expect(s).To(Equal(state.StepActive{StartedAt: startedAt}))
		})

		It("should fail from every other state", func() {
			for _, from := range []state.StepState{
				state.StepActive{StartedAt: startedAt},
				state.StepCompleted{Decision: state.DecisionApproved, StartedAt: startedAt, CompletedAt: completedAt},
				state.StepSkipped{},
			} {
				s, err := state.Activate(from, startedAt)
				Expect(s).To(BeNil())
				Expect(err).To(Equal(&bizerror.StateError{
					Subject: "step", Operation: "activate", Current: from.Name(), Expected: state.StepStatePending}))
			}
		})
	})

	Describe("Decide", func() {
		It("should complete an active step with the given decision", func() {
			for _, decision := range []state.Decision{state.DecisionApproved, state.DecisionRejected, state.DecisionRequestChanges} {
				s, err := state.Decide(state.StepActive{StartedAt: startedAt}, decision, "looks good", completedAt)
				Expect(err).To(BeNil())
				Expect(s).To(Equal(state.StepCompleted{
					Decision: decision, Comment: "looks good", StartedAt: startedAt, CompletedAt: completedAt}))
			}
		})

		It("should fail on a step that is not active", func() {
			for _, from := range []state.StepState{
				state.StepPending{},
				state.StepCompleted{Decision: state.DecisionApproved, StartedAt: startedAt, CompletedAt: completedAt},
				state.StepSkipped{},
			} {
				s, err := state.Decide(from, state.DecisionApproved, "", completedAt)
				Expect(s).To(BeNil())
				Expect(err).To(Equal(&bizerror.StateError{
					Subject: "step", Operation: "approved", Current: from.Name(), Expected: state.StepStateActive}))
			}
		})
	})

	Describe("ReconstructStepState", func() {
		It("should rebuild every valid state", func() {
			s, err := state.ReconstructStepState(state.StepStatePending, "", "", types.Timestamp{}, types.Timestamp{})
			Expect(err).To(BeNil())
			Expect(s).To(Equal(state.StepPending{}))

			s, err = state.ReconstructStepState(state.StepStateActive, "", "", startedAt, types.Timestamp{})
			Expect(err).To(BeNil())
			Expect(s).To(Equal(state.StepActive{StartedAt: startedAt}))

			s, err = state.ReconstructStepState(state.StepStateCompleted, state.DecisionRequestChanges, "needs detail", startedAt, completedAt)
			Expect(err).To(BeNil())
			Expect(s).To(Equal(state.StepCompleted{
				Decision: state.DecisionRequestChanges, Comment: "needs detail", StartedAt: startedAt, CompletedAt: completedAt}))

			s, err = state.ReconstructStepState(state.StepStateSkipped, "", "", types.Timestamp{}, types.Timestamp{})
			Expect(err).To(BeNil())
			Expect(s).To(Equal(state.StepSkipped{}))
		})

		It("should fail on rows violating state completeness", func() {
			_, err := state.ReconstructStepState(state.StepStatePending, "", "", startedAt, types.Timestamp{})
			Expect(err).To(Equal(&bizerror.InvalidStateRecordError{
				Subject: "step", State: state.StepStatePending, Reason: "timestamps must be empty"}))

			_, err = state.ReconstructStepState(state.StepStateActive, "", "", types.Timestamp{}, types.Timestamp{})
			Expect(err).To(Equal(&bizerror.InvalidStateRecordError{
				Subject: "step", State: state.StepStateActive, Reason: "started_at is missing"}))

			_, err = state.ReconstructStepState(state.StepStateCompleted, state.DecisionApproved, "", startedAt, types.Timestamp{})
			Expect(err).To(Equal(&bizerror.InvalidStateRecordError{
				Subject: "step", State: state.StepStateCompleted, Reason: "completed_at is missing"}))

			_, err = state.ReconstructStepState(state.StepStateCompleted, "maybe", "", startedAt, completedAt)
			Expect(err).To(Equal(&bizerror.InvalidStateRecordError{
				Subject: "step", State: state.StepStateCompleted, Reason: "decision 'maybe' is invalid"}))

			_, err = state.ReconstructStepState("unknown", "", "", types.Timestamp{}, types.Timestamp{})
			Expect(err).To(Equal(&bizerror.InvalidStateRecordError{
				Subject: "step", State: "unknown", Reason: "unknown state"}))
		})
	})
})
