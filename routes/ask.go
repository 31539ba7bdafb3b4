package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docqa-platform/models"
	"docqa-platform/services"
	"docqa-platform/utils"
)

// SetupAskRoutes registers grounded question answering over a single
// document.
func SetupAskRoutes(router *gin.Engine, engine *services.AnswerEngine) {
	router.POST("/api/documents/:id/ask", HandleAsk(engine))
}

func HandleAsk(engine *services.AnswerEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", err.Error())
			return
		}
		if req.MaxWords < 0 {
			utils.RespondWithBadRequest(c, "max_words must not be negative", nil)
			return
		}

		resp, err := engine.Answer(c.Request.Context(), c.Param("id"), req.Question, req.MaxWords)
		if err != nil {
			utils.RespondWithPipelineError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
