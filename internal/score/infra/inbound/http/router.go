package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterScoreRoutes registra las rutas de lectura de scores. Los
// middlewares (auth, rate limit) se aplican solo a este grupo.
func RegisterScoreRoutes(r gin.IRouter, handler *ScoreHandler, mws ...gin.HandlerFunc) {
	group := r.Group("/v2/score")
	group.Use(mws...)
	{
		group.GET("/:scorer_id", handler.ListScores)
		group.GET("/:scorer_id/history", handler.ListScoreHistory)
		group.GET("/:scorer_id/:address", handler.GetScore)
	}
}
