package app

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/medcenter_backend/config"
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
	"github.com/Alijeyrad/medcenter_backend/pkg/crypto"
	"github.com/Alijeyrad/medcenter_backend/pkg/email"
	"github.com/Alijeyrad/medcenter_backend/pkg/events"
	"github.com/Alijeyrad/medcenter_backend/pkg/observability"
	pasetotoken "github.com/Alijeyrad/medcenter_backend/pkg/paseto"
	"github.com/Alijeyrad/medcenter_backend/pkg/phone"
	"github.com/Alijeyrad/medcenter_backend/pkg/util/password"
)

// ServiceModule provides all application service dependencies.
var ServiceModule = fx.Module("services",
	fx.Provide(
		ProvidePasetoManager,
		ProvideSessionStore,
		ProvideAuthService,
		ProvideCenterService,
		ProvidePatientService,
		ProvideRuleService,
		ProvideAppointmentService,
		ProvideQueueService,
		ProvideVerificationService,
		ProvideHandoffService,
		ProvideVisitService,
		ProvideBillingService,
		ProvideInsuranceService,
		ProvideWorkflowService,
		ProvideNotificationService,
		ProvideMessagingService,
		ProvideWebhookService,
		ProvideDashboardService,
	),
)

func ProvidePasetoManager(cfg *config.Config) (*pasetotoken.Manager, error) {
	return pasetotoken.NewPasetoManager(cfg)
}

func ProvideSessionStore(rdb *redis.Client) auth.SessionStore {
	return auth.NewRedisSessions(rdb)
}

func ProvideAuthService(
	db *repo.Client,
	sessions auth.SessionStore,
	paseto *pasetotoken.Manager,
	hasher *password.Hasher,
	phones *phone.Normalizer,
	cfg *config.Config,
) auth.Service {
	return auth.New(db.User, db.Member, sessions, paseto, hasher, phones, cfg)
}

func ProvideCenterService(
	db *repo.Client,
	authz authorize.IAuthorization,
	mailer *email.Client,
	hasher *password.Hasher,
	phones *phone.Normalizer,
	cfg *config.Config,
) center.Service {
	return center.New(db, authz, mailer, hasher, phones, cfg)
}

func ProvidePatientService(db *repo.Client, cipher *crypto.FieldCipher, phones *phone.Normalizer) patient.Service {
	return patient.New(db.Patient, cipher, phones)
}

func ProvideRuleService(db *repo.Client, rdb *redis.Client, cfg *config.Config, metrics *observability.Metrics) rules.Service {
	return rules.New(db.Rule, rdb, cfg, metrics)
}

func ProvideAppointmentService(db *repo.Client, rulesSvc rules.Service, pub events.Publisher) appointment.Service {
	return appointment.New(appointment.NewRepoStore(db), rulesSvc, pub)
}

func ProvideQueueService(db *repo.Client) queue.Service {
	return queue.New(queue.NewRepoStore(db))
}

func ProvideVerificationService(db *repo.Client, cfg *config.Config) verification.Service {
	return verification.New(verification.NewRepoStore(db), cfg)
}

func ProvideHandoffService(
	db *repo.Client,
	verifier verification.Service,
	rulesSvc rules.Service,
	pub events.Publisher,
	metrics *observability.Metrics,
) handoff.Service {
	return handoff.New(handoff.NewRepoStore(db), verifier, rulesSvc, pub, metrics)
}

func ProvideVisitService(db *repo.Client) visit.Service {
	return visit.New(visit.NewRepoStore(db))
}

func ProvideBillingService(
	db *repo.Client,
	rulesSvc rules.Service,
	gateway billing.Gateway,
	pub events.Publisher,
	metrics *observability.Metrics,
	cfg *config.Config,
) billing.Service {
	return billing.New(billing.NewRepoStore(db), rulesSvc, gateway, pub, metrics, cfg)
}

func ProvideInsuranceService(db *repo.Client, blobs insurance.Blobs, pub events.Publisher) insurance.Service {
	return insurance.New(insurance.NewRepoStore(db), blobs, pub)
}

func ProvideWorkflowService(db *repo.Client) workflow.Service {
	return workflow.New(db.Workflow)
}

func ProvideNotificationService(db *repo.Client) notification.Service {
	return notification.New(db.Notification)
}

func ProvideMessagingService(db *repo.Client, phones *phone.Normalizer, pub events.Publisher, cfg *config.Config) messaging.Service {
	return messaging.New(messaging.NewRepoStore(db), phones, pub, cfg)
}

func ProvideWebhookService(db *repo.Client, phones *phone.Normalizer, metrics *observability.Metrics, cfg *config.Config) webhook.Service {
	return webhook.New(webhook.NewRepoStore(db), phones, metrics, cfg)
}

func ProvideDashboardService(db *repo.Client, cfg *config.Config) dashboard.Service {
	return dashboard.New(db.Dashboard, cfg.Billing.Currency)
}
