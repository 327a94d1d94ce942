package handlers

import (
	"net/http"
	"time"

	"teamflow/backend/internal/logging"
	"teamflow/backend/internal/middleware"
	"teamflow/backend/internal/monitoring"
	"teamflow/backend/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Services is everything the HTTP surface calls into.
type Services struct {
	Auth          services.AuthService
	Teams         services.TeamService
	Projects      services.ProjectService
	Tasks         services.TaskService
	Links         services.LinkService
	Boards        services.BoardService
	Notifications services.NotificationService
	Comments      services.CommentService
	Subtasks      services.SubtaskService
	Tags          services.TagService
	Ideas         services.IdeaService
	Notes         services.NoteService
	Goals         services.GoalService
	Portfolios    services.PortfolioService
	Reports       services.ReportService
}

type RouterConfig struct {
	Logger      *logging.Logger
	CORSOrigins []string
	// RateLimiter is optional; nil disables rate limiting.
	RateLimiter *middleware.RateLimiter
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			cfg.AllowCredentials = false
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func NewRouter(cfg RouterConfig, svc Services) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithComponent("http")

	router := gin.New()
	router.Use(
		middleware.RecoveryWithLog(logger),
		middleware.RequestLogger(logger),
		monitoring.MetricsMiddleware(),
		cors.New(corsConfig(cfg.CORSOrigins)),
	)

	router.GET("/health", monitoring.HealthHandler())
	router.GET("/health/ready", monitoring.ReadinessHandler())
	router.GET("/health/live", monitoring.LivenessHandler())
	router.GET("/metrics", monitoring.MetricsHandler())

	limit := func(c *gin.Context) { c.Next() }
	if cfg.RateLimiter != nil {
		limit = cfg.RateLimiter.Middleware()
	}

	auth := NewAuthHandler(svc.Auth)
	teams := NewTeamHandler(svc.Teams)
	users := NewUserHandler(svc.Teams, svc.Notifications)
	projects := NewProjectHandler(svc.Projects, svc.Boards, svc.Reports)
	tasks := NewTaskHandler(svc.Tasks, svc.Links)
	notifications := NewNotificationHandler(svc.Notifications)
	comments := NewCommentHandler(svc.Comments)
	subtasks := NewSubtaskHandler(svc.Subtasks)
	tags := NewTagHandler(svc.Tags)
	ideas := NewIdeaHandler(svc.Ideas)
	notes := NewNoteHandler(svc.Notes)
	goals := NewGoalHandler(svc.Goals)
	portfolios := NewPortfolioHandler(svc.Portfolios)

	v1 := router.Group("/api/v1")

	public := v1.Group("/auth", limit)
	{
		public.POST("/register", auth.Register)
		public.POST("/login", auth.Login)
		public.POST("/refresh", auth.Refresh)
		public.POST("/logout", auth.Logout)
	}

	api := v1.Group("", middleware.Identity(svc.Auth), limit)
	{
		api.GET("/me", users.Me)
		api.GET("/me/tasks", tasks.ListMyTasks)

		api.GET("/teams", teams.ListTeams)
		api.POST("/teams", teams.CreateTeam)
		api.DELETE("/teams/:id", teams.DeleteTeam)
		api.POST("/teams/:id/members", teams.InviteMember)
		api.DELETE("/teams/:id/members/:user_id", teams.RemoveMember)
		api.POST("/teams/:id/projects", projects.CreateProject)
		api.GET("/teams/:id/ideas", ideas.List)
		api.POST("/teams/:id/ideas", ideas.Create)
		api.GET("/teams/:id/portfolios", portfolios.List)
		api.POST("/teams/:id/portfolios", portfolios.Create)

		api.GET("/projects", projects.ListProjects)
		api.GET("/projects/:id", projects.GetProject)
		api.PATCH("/projects/:id", projects.UpdateProject)
		api.DELETE("/projects/:id", projects.DeleteProject)
		api.GET("/projects/:id/board", projects.GetBoard)
		api.GET("/projects/:id/overview", projects.Overview)
		api.GET("/projects/:id/report", projects.Report)
		api.POST("/projects/:id/sections", projects.CreateSection)
		api.POST("/projects/:id/tasks", tasks.CreateTask)

		api.PATCH("/sections/:id", projects.RenameSection)
		api.DELETE("/sections/:id", projects.DeleteSection)

		api.GET("/tasks/:id", tasks.GetTask)
		api.PATCH("/tasks/:id", tasks.UpdateTask)
		api.DELETE("/tasks/:id", tasks.DeleteTask)
		api.GET("/tasks/:id/activity", tasks.ListActivity)
		api.GET("/tasks/:id/projects", tasks.ListProjectOptions)
		api.POST("/tasks/:id/links", tasks.LinkTask)
		api.DELETE("/tasks/:id/links/:project_id", tasks.UnlinkTask)
		api.GET("/tasks/:id/subtasks", subtasks.List)
		api.POST("/tasks/:id/subtasks", subtasks.Create)
		api.POST("/tasks/:id/comments", comments.AddComment)
		api.POST("/tasks/:id/attachments", comments.AddAttachment)
		api.POST("/tasks/:id/tags/:tag_id", tags.AddToTask)
		api.DELETE("/tasks/:id/tags/:tag_id", tags.RemoveFromTask)

		api.PATCH("/subtasks/:id", subtasks.Update)
		api.POST("/subtasks/:id/toggle", subtasks.Toggle)
		api.DELETE("/subtasks/:id", subtasks.Delete)
		api.DELETE("/comments/:id", comments.DeleteComment)
		api.DELETE("/attachments/:id", comments.DeleteAttachment)

		api.GET("/tags", tags.List)
		api.POST("/tags", tags.Create)
		api.DELETE("/tags/:id", tags.Delete)

		api.GET("/ideas/:id", ideas.Get)
		api.PATCH("/ideas/:id", ideas.Update)
		api.DELETE("/ideas/:id", ideas.Delete)
		api.POST("/ideas/:id/vote", ideas.ToggleVote)
		api.POST("/ideas/:id/comments", ideas.AddComment)
		api.DELETE("/idea-comments/:id", ideas.DeleteComment)

		api.GET("/notes", notes.List)
		api.POST("/notes", notes.Create)
		api.PATCH("/notes/:id", notes.Update)
		api.POST("/notes/:id/pin", notes.TogglePin)
		api.DELETE("/notes/:id", notes.Delete)

		api.GET("/goals", goals.List)
		api.POST("/goals", goals.Create)
		api.PATCH("/goals/:id", goals.Update)
		api.DELETE("/goals/:id", goals.Delete)

		api.PATCH("/portfolios/:id", portfolios.Update)
		api.DELETE("/portfolios/:id", portfolios.Delete)
		api.POST("/portfolios/:id/projects/:project_id", portfolios.AddProject)
		api.DELETE("/portfolios/:id/projects/:project_id", portfolios.RemoveProject)

		api.GET("/notifications", notifications.List)
		api.POST("/notifications/read-all", notifications.MarkAllRead)
		api.POST("/notifications/:id/read", notifications.MarkRead)
		api.DELETE("/notifications/:id", notifications.Delete)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "route not found"})
	})

	return router
}
