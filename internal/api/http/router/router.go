package router

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"github.com/Alijeyrad/medcenter_backend/config"
	"github.com/Alijeyrad/medcenter_backend/internal/api/http/handler"
	"github.com/Alijeyrad/medcenter_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/internal/service/appointment"
	"github.com/Alijeyrad/medcenter_backend/internal/service/auth"
	"github.com/Alijeyrad/medcenter_backend/internal/service/billing"
	"github.com/Alijeyrad/medcenter_backend/internal/service/center"
	"github.com/Alijeyrad/medcenter_backend/internal/service/dashboard"
	"github.com/Alijeyrad/medcenter_backend/internal/service/handoff"
	"github.com/Alijeyrad/medcenter_backend/internal/service/insurance"
	"github.com/Alijeyrad/medcenter_backend/internal/service/messaging"
	"github.com/Alijeyrad/medcenter_backend/internal/service/notification"
	"github.com/Alijeyrad/medcenter_backend/internal/service/patient"
	"github.com/Alijeyrad/medcenter_backend/internal/service/queue"
	"github.com/Alijeyrad/medcenter_backend/internal/service/rules"
	"github.com/Alijeyrad/medcenter_backend/internal/service/verification"
	"github.com/Alijeyrad/medcenter_backend/internal/service/visit"
	"github.com/Alijeyrad/medcenter_backend/internal/service/webhook"
	"github.com/Alijeyrad/medcenter_backend/internal/service/workflow"
	"github.com/Alijeyrad/medcenter_backend/pkg/authorize"
	pasetotoken "github.com/Alijeyrad/medcenter_backend/pkg/paseto"
)

// Module provides the Router to the fx graph.
var Module = fx.Module("router", fx.Provide(NewRouter))

type Params struct {
	fx.In

	Cfg       *config.Config
	Auth      authorize.IAuthorization
	DB        *repo.Client
	PasetoMgr *pasetotoken.Manager
	Sessions  auth.SessionStore

	AuthSvc         auth.Service
	CenterSvc       center.Service
	PatientSvc      patient.Service
	AppointmentSvc  appointment.Service
	QueueSvc        queue.Service
	HandoffSvc      handoff.Service
	VerificationSvc verification.Service
	VisitSvc        visit.Service
	BillingSvc      billing.Service
	InsuranceSvc    insurance.Service
	RuleSvc         rules.Service
	WorkflowSvc     workflow.Service
	NotificationSvc notification.Service
	MessagingSvc    messaging.Service
	WebhookSvc      webhook.Service
	DashboardSvc    dashboard.Service
}

type Router struct {
	p Params
}

func NewRouter(p Params) *Router {
	return &Router{p: p}
}

// permFunc builds a RequirePermission middleware for one resource/action pair.
type permFunc func(authorize.Resource, authorize.Action) fiber.Handler

func (r *Router) Register(app *fiber.App) {
	// 1. Health & Metrics
	r.registerSystemRoutes(app)

	// 2. Initialize Middlewares
	authRequired := middleware.AuthRequired(r.p.PasetoMgr, r.p.Sessions, handler.SessionCookie)
	tenancy := middleware.RepoTenancy{DB: r.p.DB}
	centerCtx := middleware.CenterContext(tenancy, r.p.Auth)
	centerHeader := middleware.CenterHeader(tenancy, r.p.Auth)

	// Permission helper
	requirePerm := func(res authorize.Resource, act authorize.Action) fiber.Handler {
		return middleware.RequirePermission(r.p.Auth, res, act)
	}

	// 3. Initialize Handlers
	authH := handler.NewAuthHandler(r.p.AuthSvc, r.p.Cfg)
	centerH := handler.NewCenterHandler(r.p.CenterSvc, r.p.Auth)
	patientH := handler.NewPatientHandler(r.p.PatientSvc)
	appointmentH := handler.NewAppointmentHandler(r.p.AppointmentSvc)
	queueH := handler.NewQueueHandler(r.p.QueueSvc, r.p.HandoffSvc, r.p.VerificationSvc)
	visitH := handler.NewVisitHandler(r.p.VisitSvc)
	billingH := handler.NewBillingHandler(r.p.BillingSvc)
	insuranceH := handler.NewInsuranceHandler(r.p.InsuranceSvc)
	ruleH := handler.NewRuleHandler(r.p.RuleSvc)
	workflowH := handler.NewWorkflowHandler(r.p.WorkflowSvc)
	notificationH := handler.NewNotificationHandler(r.p.NotificationSvc)
	messageH := handler.NewMessageHandler(r.p.MessagingSvc)
	webhookH := handler.NewWebhookHandler(r.p.WebhookSvc)
	dashboardH := handler.NewDashboardHandler(r.p.DashboardSvc)

	api := app.Group("/api/v1")

	// 4. Public routes first so group middleware below never sees them
	r.registerWebhookRoutes(api, webhookH)
	api.Get("/payments/verify", billingH.VerifyOnlinePayment)

	// 5. Delegate to sub-files
	r.registerAuthRoutes(api, authH, authRequired)
	r.registerCenterRoutes(api, centerH, authRequired, centerCtx, requirePerm)
	r.registerPatientRoutes(api, patientH, authRequired, centerHeader, requirePerm)
	r.registerAppointmentRoutes(api, appointmentH, authRequired, centerHeader, requirePerm)
	r.registerQueueRoutes(api, queueH, authRequired, centerHeader, requirePerm)
	r.registerVisitRoutes(api, visitH, authRequired, centerHeader, requirePerm)
	r.registerBillingRoutes(api, billingH, authRequired, centerHeader, requirePerm)
	r.registerInsuranceRoutes(api, insuranceH, authRequired, centerHeader, requirePerm)
	r.registerRuleRoutes(api, ruleH, workflowH, authRequired, centerHeader, requirePerm)
	r.registerNotificationRoutes(api, notificationH, authRequired)
	r.registerMessageRoutes(api, messageH, authRequired, centerHeader, requirePerm)
	r.registerDashboardRoutes(api, dashboardH, authRequired, centerHeader, requirePerm)
}

func (r *Router) registerSystemRoutes(app *fiber.App) {
	app.Get(healthcheck.LivenessEndpoint, healthcheck.New())
	app.Get(healthcheck.ReadinessEndpoint, healthcheck.New(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool { return authorize.IsPolicyHealthy() },
	}))
	app.Get(healthcheck.StartupEndpoint, healthcheck.New())

	if r.p.Cfg.Observability.Enabled && r.p.Cfg.Observability.Metrics.Enabled {
		path := r.p.Cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		app.Get(path, adaptor.HTTPHandler(promhttp.Handler()))
	}
}
