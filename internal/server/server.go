package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/doorbellhq/doorbell/internal/appointment"
	appointmentdomain "github.com/doorbellhq/doorbell/internal/appointment/domain"
	"github.com/doorbellhq/doorbell/internal/cache"
	"github.com/doorbellhq/doorbell/internal/calendar"
	calendardomain "github.com/doorbellhq/doorbell/internal/calendar/domain"
	"github.com/doorbellhq/doorbell/internal/config"
	"github.com/doorbellhq/doorbell/internal/observability"
	obsmiddleware "github.com/doorbellhq/doorbell/internal/observability/logger"
	obsmetrics "github.com/doorbellhq/doorbell/internal/observability/metrics"
	obstracing "github.com/doorbellhq/doorbell/internal/observability/tracing"
	"github.com/doorbellhq/doorbell/internal/person"
	persondomain "github.com/doorbellhq/doorbell/internal/person/domain"
	"github.com/doorbellhq/doorbell/internal/ratelimit"
	"github.com/doorbellhq/doorbell/internal/stage"
	stagedomain "github.com/doorbellhq/doorbell/internal/stage/domain"
	"github.com/doorbellhq/doorbell/internal/task"
	taskdomain "github.com/doorbellhq/doorbell/internal/task/domain"
	"github.com/doorbellhq/doorbell/internal/tracking"
	trackingdomain "github.com/doorbellhq/doorbell/internal/tracking/domain"
	"github.com/doorbellhq/doorbell/internal/trackingscript"
	trackingscriptdomain "github.com/doorbellhq/doorbell/internal/trackingscript/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	fx.Provide(registerGin),
	cache.Module,
	trackingscript.Module,
	tracking.Module,
	person.Module,
	stage.Module,
	calendar.Module,
	appointment.Module,
	task.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB
	genID  *snowflake.Node

	scriptSvc      trackingscriptdomain.Service
	trackingSvc    trackingdomain.Service
	personSvc      persondomain.Service
	stageSvc       stagedomain.Service
	calendarSvc    calendardomain.AccountService
	appointmentSvc appointmentdomain.Service
	taskSvc        taskdomain.Service

	obsMetrics   *obsmetrics.Metrics
	pixelLimiter *ratelimit.PixelLimiter
}

type ServerParams struct {
	fx.In

	Gin   *gin.Engine
	Cfg   config.Config
	DB    *gorm.DB
	GenID *snowflake.Node

	ScriptSvc      trackingscriptdomain.Service
	TrackingSvc    trackingdomain.Service
	PersonSvc      persondomain.Service
	StageSvc       stagedomain.Service
	CalendarSvc    calendardomain.AccountService
	AppointmentSvc appointmentdomain.Service
	TaskSvc        taskdomain.Service

	ObsMetrics   *obsmetrics.Metrics     `optional:"true"`
	PixelLimiter *ratelimit.PixelLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		db:             p.DB,
		genID:          p.GenID,
		scriptSvc:      p.ScriptSvc,
		trackingSvc:    p.TrackingSvc,
		personSvc:      p.PersonSvc,
		stageSvc:       p.StageSvc,
		calendarSvc:    p.CalendarSvc,
		appointmentSvc: p.AppointmentSvc,
		taskSvc:        p.TaskSvc,
		obsMetrics:     p.ObsMetrics,
		pixelLimiter:   p.PixelLimiter,
	}

	svc.registerPixelRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerPixelRoutes mounts the public tracking endpoints. They authenticate
// by script key only, so everything behind /t is rate limited.
func (s *Server) registerPixelRoutes() {
	t := s.engine.Group("/t", s.PixelRateLimit())

	t.POST("/page-view", s.TrackPageView)
	t.POST("/form", s.TrackForm)
	t.POST("/event", s.TrackEvent)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.TenantRequired())

	// -------- Tracking scripts --------
	admin.GET("/tracking-scripts", s.ListTrackingScripts)
	admin.POST("/tracking-scripts", s.CreateTrackingScript)
	admin.GET("/tracking-scripts/:id", s.GetTrackingScriptByID)
	admin.PATCH("/tracking-scripts/:id", s.UpdateTrackingScript)
	admin.POST("/tracking-scripts/:id/rotate", s.RotateTrackingScriptKey)

	// -------- Persons --------
	admin.GET("/persons", s.ListPersons)
	admin.GET("/persons/:id", s.GetPersonByID)
	admin.PATCH("/persons/:id", s.UpdatePerson)
	admin.GET("/persons/:id/emails", s.ListPersonEmails)
	admin.GET("/persons/:id/phones", s.ListPersonPhones)
	admin.GET("/persons/:id/events", s.ListPersonEvents)

	// -------- Stages --------
	admin.GET("/stages", s.ListStages)
	admin.POST("/stages", s.CreateStage)

	// -------- Appointments --------
	admin.GET("/appointments", s.ListAppointments)
	admin.POST("/appointments", s.CreateAppointment)
	admin.GET("/appointments/:id", s.GetAppointmentByID)
	admin.PATCH("/appointments/:id", s.UpdateAppointment)
	admin.DELETE("/appointments/:id", s.DeleteAppointment)

	// -------- Tasks --------
	admin.GET("/tasks", s.ListTasks)
	admin.POST("/tasks", s.CreateTask)
	admin.GET("/tasks/:id", s.GetTaskByID)
	admin.PATCH("/tasks/:id", s.UpdateTask)
	admin.DELETE("/tasks/:id", s.DeleteTask)

	// -------- Calendar accounts --------
	admin.GET("/calendar-accounts", s.ListCalendarAccounts)
	admin.POST("/calendar-accounts", s.CreateCalendarAccount)
	admin.GET("/calendar-accounts/:id", s.GetCalendarAccountByID)
	admin.POST("/calendar-accounts/:id/deactivate", s.DeactivateCalendarAccount)
}
