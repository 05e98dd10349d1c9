package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"focustimer/backend/internal/handler"
	"focustimer/backend/internal/middleware"
)

func New(
	timerHandler *handler.TimerHandler,
	taskHandler *handler.TaskHandler,
	notificationHandler *handler.NotificationHandler,
	eventHandler *handler.EventHandler,
	corsOrigins []string,
) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), middleware.CORS(corsOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")

	timer := api.Group("/timer")
	timer.GET("/state", timerHandler.GetState)
	timer.POST("/start", timerHandler.Start)
	timer.POST("/delay", timerHandler.Delay)
	timer.POST("/stop", timerHandler.Stop)
	timer.POST("/complete", timerHandler.Complete)
	timer.POST("/pause", timerHandler.Pause)
	timer.POST("/resume", timerHandler.Resume)
	timer.POST("/start-now", timerHandler.StartNow)
	timer.PUT("/config", timerHandler.UpdateConfig)
	timer.POST("/visibility", timerHandler.SetVisibility)

	tasks := api.Group("/tasks")
	tasks.GET("", taskHandler.List)
	tasks.POST("", taskHandler.Create)
	tasks.GET("/completed", taskHandler.ListCompleted)
	tasks.DELETE("/:id", taskHandler.Delete)

	api.GET("/notices", taskHandler.ListNotices)
	api.DELETE("/notices/:id", taskHandler.DismissNotice)

	api.GET("/notifications", notificationHandler.List)
	api.POST("/notifications/click", notificationHandler.Click)
	api.POST("/notifications/permission", notificationHandler.SetPermission)

	api.GET("/events", eventHandler.Stream)

	return engine
}
