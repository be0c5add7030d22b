package servehttp

import (
	"net/http"
	"ringiflow/domain/instance"
	"ringiflow/session"

	"github.com/gin-gonic/gin"
)

func RegisterTaskHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/tasks", middleWares...)

	g.GET("", handleQueryMyTasks)
}

func handleQueryMyTasks(c *gin.Context) {
	tasks, err := instance.QueryMyTasksFunc(c.Request.Context(), session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, tasks)
}
