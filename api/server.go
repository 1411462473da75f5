package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"relato/api/handlers"
	"relato/config"
	"relato/core/accounts"
	"relato/core/auth"
	"relato/core/authz"
	"relato/core/classify"
	"relato/core/comments"
	"relato/core/incidents"
	"relato/core/notify"
	"relato/core/store"
	"relato/core/utils"
)

// BackgroundWorker is anything the runtime starts next to the HTTP server and
// stops on shutdown.
type BackgroundWorker interface {
	StartWithContext(ctx context.Context)
	StopWithContext(ctx context.Context) error
}

type ServerDeps struct {
	Users        store.UsersStore
	Sessions     store.SessionsStore
	Audits       store.AuditStore
	Policy       *authz.Policy
	SessionMgr   *auth.SessionManager
	AccountsSvc  *accounts.Service
	IncidentsSvc *incidents.Service
	CommentsSvc  *comments.Service
	NotifySvc    *notify.Service
	Classifier   classify.Classifier
}

type Server struct {
	cfg             *config.AppConfig
	logger          *utils.Logger
	sessions        store.SessionsStore
	policy          *authz.Policy
	deps            ServerDeps
	activityTracker *sessionActivity
	loginLimiter    *requestLimiter
}

func NewServer(cfg *config.AppConfig, deps ServerDeps, logger *utils.Logger) *Server {
	burst := cfg.Security.LoginRateBurst
	if burst <= 0 {
		burst = 5
	}
	window := time.Duration(cfg.Security.LoginRateWindow) * time.Second
	if window <= 0 {
		window = time.Minute
	}
	return &Server{
		cfg:             cfg,
		logger:          logger,
		sessions:        deps.Sessions,
		policy:          deps.Policy,
		deps:            deps,
		activityTracker: newSessionActivity(),
		loginLimiter:    newLimiter(burst, window),
	}
}

type routeHandlers struct {
	auth          *handlers.AuthHandler
	incidents     *handlers.IncidentsHandler
	notifications *handlers.NotificationsHandler
	users         *handlers.UsersHandler
	classify      *handlers.ClassifyHandler
	logs          *handlers.LogsHandler
}

func (s *Server) newRouteHandlers() routeHandlers {
	return routeHandlers{
		auth:          handlers.NewAuthHandler(s.cfg, s.deps.AccountsSvc, s.deps.Users, s.deps.SessionMgr, s.deps.Audits, s.logger),
		incidents:     handlers.NewIncidentsHandler(s.deps.IncidentsSvc, s.deps.CommentsSvc, s.logger),
		notifications: handlers.NewNotificationsHandler(s.deps.NotifySvc, s.logger),
		users:         handlers.NewUsersHandler(s.deps.AccountsSvc, s.logger),
		classify:      handlers.NewClassifyHandler(s.deps.Classifier, s.logger),
		logs:          handlers.NewLogsHandler(s.deps.Audits),
	}
}

// Routes assembles the router: global middleware, the public auth endpoints
// and the guarded API surface.
func (s *Server) Routes() http.Handler {
	h := s.newRouteHandlers()

	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.securityHeadersMiddleware)
	r.Use(s.loggingMiddleware)

	r.Route("/api", func(apiRouter chi.Router) {
		apiRouter.Use(s.jsonMiddleware)

		apiRouter.MethodFunc(http.MethodPost, "/auth/register", h.auth.Register)
		apiRouter.MethodFunc(http.MethodPost, "/auth/login", s.loginRateLimitMiddleware(h.auth.Login))
		apiRouter.MethodFunc(http.MethodPost, "/auth/logout", s.withSession(h.auth.Logout))
		apiRouter.MethodFunc(http.MethodGet, "/auth/me", s.withSession(h.auth.Me))

		apiRouter.Route("/incidents", func(incidentsRouter chi.Router) {
			incidentsRouter.MethodFunc(http.MethodGet, "/", s.guard(authz.PermIncidentsView, h.incidents.List))
			incidentsRouter.MethodFunc(http.MethodPost, "/", s.guard(authz.PermIncidentsCreate, h.incidents.Create))
			incidentsRouter.MethodFunc(http.MethodGet, "/{id:[0-9]+}", s.guard(authz.PermIncidentsView, h.incidents.Get))
			incidentsRouter.MethodFunc(http.MethodPut, "/{id:[0-9]+}", s.guard(authz.PermIncidentsEdit, h.incidents.Update))
			incidentsRouter.MethodFunc(http.MethodDelete, "/{id:[0-9]+}", s.guard(authz.PermIncidentsEdit, h.incidents.Delete))
			incidentsRouter.MethodFunc(http.MethodGet, "/{id:[0-9]+}/comments", s.guard(authz.PermIncidentsView, h.incidents.ListComments))
			incidentsRouter.MethodFunc(http.MethodPost, "/{id:[0-9]+}/comments", s.guard(authz.PermCommentsWrite, h.incidents.AddComment))
		})

		apiRouter.Route("/notifications", func(notifRouter chi.Router) {
			notifRouter.MethodFunc(http.MethodGet, "/", s.guard(authz.PermNotificationsView, h.notifications.List))
			notifRouter.MethodFunc(http.MethodPost, "/", s.guard(authz.PermNotificationsAdmin, h.notifications.Create))
			notifRouter.MethodFunc(http.MethodPost, "/{id:[0-9]+}/read", s.guard(authz.PermNotificationsView, h.notifications.MarkRead))
			notifRouter.MethodFunc(http.MethodPost, "/{id:[0-9]+}/unread", s.guard(authz.PermNotificationsView, h.notifications.MarkUnread))
			notifRouter.MethodFunc(http.MethodPost, "/read-all", s.guard(authz.PermNotificationsView, h.notifications.MarkAllRead))
			notifRouter.MethodFunc(http.MethodDelete, "/{id:[0-9]+}", s.guard(authz.PermNotificationsView, h.notifications.Delete))
		})

		apiRouter.Route("/users", func(usersRouter chi.Router) {
			usersRouter.MethodFunc(http.MethodGet, "/", s.guard(authz.PermAccountsManage, h.users.List))
			usersRouter.MethodFunc(http.MethodGet, "/{id:[0-9]+}", s.guard(authz.PermAccountsManage, h.users.Get))
			usersRouter.MethodFunc(http.MethodPut, "/{id:[0-9]+}/role", s.guard(authz.PermAccountsManage, h.users.SetRole))
			usersRouter.MethodFunc(http.MethodDelete, "/{id:[0-9]+}", s.guard(authz.PermAccountsManage, h.users.Delete))
		})

		apiRouter.MethodFunc(http.MethodPost, "/classify", s.guard(authz.PermIncidentsCreate, h.classify.Suggest))

		apiRouter.Route("/logs", func(logsRouter chi.Router) {
			logsRouter.MethodFunc(http.MethodGet, "/", s.guard(authz.PermAuditView, h.logs.List))
		})
	})

	return r
}

func (s *Server) guard(perm authz.Permission, next http.HandlerFunc) http.HandlerFunc {
	return s.withSession(s.requirePermission(perm)(next))
}
