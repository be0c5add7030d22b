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

func RegisterInstanceHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/instances", middleWares...)

	handler := &instanceHandler{
		validator: validator.New(),
	}

	g.POST("", handler.handleCreateInstance)
	g.GET("", handler.handleQueryInstances)
	g.GET(":instanceId", handler.handleDetailInstance)
	g.POST(":instanceId/submit", handler.handleSubmitInstance)
	g.POST(":instanceId/resubmit", handler.handleResubmitInstance)
	g.POST(":instanceId/cancel", handler.handleCancelInstance)
	g.POST(":instanceId/comments", handler.handleCreateComment)
	g.GET(":instanceId/comments", handler.handleListComments)
}

type instanceHandler struct {
	validator *validator.Validate
}

func (h *instanceHandler) handleCreateInstance(c *gin.Context) {
	creation := instance.InstanceCreation{}
	err := c.ShouldBindBodyWith(&creation, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(creation); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	record, err := instance.CreateInstanceFunc(c.Request.Context(), &creation, session.FindSecurityContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *instanceHandler) handleQueryInstances(c *gin.Context) {
	records, err := instance.QueryInstancesFunc(c.Request.Context(), session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, records)
}

func (h *instanceHandler) handleDetailInstance(c *gin.Context) {
	id, err := types.ParseID(c.Param("instanceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("instanceId") + "'"})
		return
	}

	detail, err := instance.DetailInstanceFunc(c.Request.Context(), id, session.FindSecurityContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *instanceHandler) handleSubmitInstance(c *gin.Context) {
	h.handleSubmission(c, instance.SubmitInstanceFunc)
}

func (h *instanceHandler) handleResubmitInstance(c *gin.Context) {
	h.handleSubmission(c, instance.ResubmitInstanceFunc)
}

func (h *instanceHandler) handleSubmission(c *gin.Context,
	submit func(ctx context.Context, id types.ID, req *instance.SubmitRequest, sec *session.Context) (*instance.WorkflowInstanceDetail, error)) {
	id, err := types.ParseID(c.Param("instanceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("instanceId") + "'"})
		return
	}

	request := instance.SubmitRequest{}
	if err := c.ShouldBindBodyWith(&request, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err := h.validator.Struct(request); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	detail, err := submit(c.Request.Context(), id, &request, session.FindSecurityContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *instanceHandler) handleCreateComment(c *gin.Context) {
	id, err := types.ParseID(c.Param("instanceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("instanceId") + "'"})
		return
	}

	creation := instance.CommentCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err := h.validator.Struct(creation); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	record, err := instance.CreateCommentFunc(c.Request.Context(), id, &creation, session.FindSecurityContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *instanceHandler) handleListComments(c *gin.Context) {
	id, err := types.ParseID(c.Param("instanceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("instanceId") + "'"})
		return
	}

	records, err := instance.ListCommentsFunc(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *instanceHandler) handleCancelInstance(c *gin.Context) {
	id, err := types.ParseID(c.Param("instanceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("instanceId") + "'"})
		return
	}

	request := instance.CancelRequest{}
	if err := c.ShouldBindBodyWith(&request, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err := h.validator.Struct(request); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	record, err := instance.CancelInstanceFunc(c.Request.Context(), id, &request, session.FindSecurityContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, record)
}
