package servehttp

import (
	"context"
	"net/http"
	"ringiflow/bizerror"
	"ringiflow/common"
	"ringiflow/domain/instance"
	"ringiflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func RegisterStepHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/steps", middleWares...)

	handler := &stepHandler{
		validator: validator.New(),
	}

	g.POST(":stepId/approve", handler.handleApproveStep)
	g.POST(":stepId/reject", handler.handleRejectStep)
	g.POST(":stepId/request-changes", handler.handleRequestStepChanges)
}

type stepHandler struct {
	validator *validator.Validate
}

func (h *stepHandler) handleApproveStep(c *gin.Context) {
	h.handleDecision(c, instance.ApproveStepFunc)
}

func (h *stepHandler) handleRejectStep(c *gin.Context) {
	h.handleDecision(c, instance.RejectStepFunc)
}

func (h *stepHandler) handleRequestStepChanges(c *gin.Context) {
	h.handleDecision(c, instance.RequestStepChangesFunc)
}

func (h *stepHandler) handleDecision(c *gin.Context,
	decide func(ctx context.Context, stepID types.ID, req *instance.DecisionRequest, sec *session.Context) (*instance.WorkflowInstanceDetail, error)) {
	id, err := types.ParseID(c.Param("stepId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("stepId") + "'"})
		return
	}

	request := instance.DecisionRequest{}
	if err := c.ShouldBindBodyWith(&request, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err := h.validator.Struct(request); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	detail, err := decide(c.Request.Context(), id, &request, session.FindSecurityContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, detail)
}
