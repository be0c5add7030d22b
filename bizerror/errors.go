package bizerror

import (
	"errors"
	"net/http"
)

var ErrUnauthenticated = errors.New("unauthenticated")
var ErrForbidden = errors.New("forbidden")
var ErrConflict = errors.New("conflict")
var ErrNotFound = errors.New("not found")

var ErrUnknownStepType = errors.New("unknown step type")
var ErrDefinitionNotPublished = errors.New("definition is not published")
var ErrNoApprovalStep = errors.New("definition has no approval step")

type BizError interface {
	Respond() *BizErrorDetail
}

type BizErrorDetail struct {
	Status  int
	Code    string
	Message string

	Data  interface{}
	Cause error
}

type ErrBadParam struct {
	Cause error
}

func (e *ErrBadParam) Unwrap() error {
	return e.Cause
}
func (e *ErrBadParam) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "common.bad_param"
}
func (e *ErrBadParam) Respond() *BizErrorDetail {
	message := "common.bad_param"
	if e.Cause != nil {
		message = e.Cause.Error()
	}
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: "common.bad_param", Message: message, Data: nil}
}

// StateError reports an operation invoked on an aggregate whose current
// state does not permit it. It always names the operation, the observed
// state and the state the operation requires.
type StateError struct {
	Subject   string
	Operation string
	Current   string
	Expected  string
}

func (e *StateError) Error() string {
	return e.Subject + "." + e.Operation + " is not allowed in state '" + e.Current + "', expected '" + e.Expected + "'"
}

func (e *StateError) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: "workflow.state_invalid", Message: e.Error(), Data: nil}
}

// InvalidStateRecordError reports a stored row whose columns do not form a
// valid state, such as an in_progress instance without a current step.
type InvalidStateRecordError struct {
	Subject string
	State   string
	Reason  string
}

func (e *InvalidStateRecordError) Error() string {
	return "invalid " + e.Subject + " record in state '" + e.State + "': " + e.Reason
}

func (e *InvalidStateRecordError) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusInternalServerError, Code: "workflow.state_record_invalid", Message: e.Error(), Data: nil}
}
