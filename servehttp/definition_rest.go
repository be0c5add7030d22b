package servehttp

import (
	"net/http"
	"ringiflow/bizerror"
	"ringiflow/common"
	"ringiflow/domain/flow"
	"ringiflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func RegisterDefinitionHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/definitions", middleWares...)

	handler := &definitionHandler{
		validator: validator.New(),
	}

	g.POST("", handler.handleCreateDefinition)
	g.GET("", handler.handleQueryDefinitions)
	g.GET(":definitionId", handler.handleDetailDefinition)
	g.POST(":definitionId/publish", handler.handlePublishDefinition)
	g.POST(":definitionId/archive", handler.handleArchiveDefinition)
}

type definitionHandler struct {
	validator *validator.Validate
}

func (h *definitionHandler) handleCreateDefinition(c *gin.Context) {
	creation := flow.DefinitionCreation{}
	err := c.ShouldBindBodyWith(&creation, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(creation); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	definition, err := flow.CreateDefinitionFunc(c.Request.Context(), &creation, session.FindSecurityContext(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, definition)
}

func (h *definitionHandler) handleQueryDefinitions(c *gin.Context) {
	definitions, err := flow.QueryDefinitionsFunc(c.Request.Context())
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, definitions)
}

func (h *definitionHandler) handleDetailDefinition(c *gin.Context) {
	id, err := types.ParseID(c.Param("definitionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("definitionId") + "'"})
		return
	}

	definition, err := flow.DetailDefinitionFunc(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, definition)
}

func (h *definitionHandler) handlePublishDefinition(c *gin.Context) {
	id, err := types.ParseID(c.Param("definitionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("definitionId") + "'"})
		return
	}

	if err := flow.PublishDefinitionFunc(c.Request.Context(), id, session.FindSecurityContext(c)); err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.AbortWithStatus(http.StatusNoContent)
}

func (h *definitionHandler) handleArchiveDefinition(c *gin.Context) {
	id, err := types.ParseID(c.Param("definitionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("definitionId") + "'"})
		return
	}

	if err := flow.ArchiveDefinitionFunc(c.Request.Context(), id, session.FindSecurityContext(c)); err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.AbortWithStatus(http.StatusNoContent)
}
