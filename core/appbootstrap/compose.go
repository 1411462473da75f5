package appbootstrap

import (
	"relato/api"
	"relato/config"
	"relato/core/accounts"
	"relato/core/auth"
	"relato/core/authz"
	"relato/core/classify"
	"relato/core/comments"
	"relato/core/incidents"
	"relato/core/maintenance"
	"relato/core/notify"
	"relato/core/store"
	"relato/core/utils"
)

type runtimeComposition struct {
	serverDeps api.ServerDeps
	sessions   store.SessionsStore
	users      store.UsersStore
	workers    []api.BackgroundWorker
}

func composeRuntime(cfg *config.AppConfig, db *store.DB, logger *utils.Logger) (*runtimeComposition, error) {
	users := store.NewUsersStore(db)
	sessions := store.NewSessionsStore(db)
	incidentsStore := store.NewIncidentsStore(db)
	commentsStore := store.NewCommentsStore(db)
	notificationsStore := store.NewNotificationsStore(db)
	audits := store.NewAuditStore(db)

	policy, err := authz.NewPolicy()
	if err != nil {
		return nil, err
	}
	sessionManager := auth.NewSessionManager(sessions, cfg, logger)
	classifier := classify.FromConfig(cfg.Classifier)

	notifySvc := notify.NewService(notificationsStore, users, policy, logger)
	incidentsSvc := incidents.NewService(incidentsStore, audits, policy, notifySvc, classifier, cfg.Incidents, logger)
	commentsSvc := comments.NewService(commentsStore, incidentsStore, policy, notifySvc)
	accountsSvc := accounts.NewService(users, sessions, audits, policy, logger)
	sweeper := maintenance.NewSweeper(cfg.Retention, sessions, notificationsStore, logger)

	return &runtimeComposition{
		serverDeps: api.ServerDeps{
			Users:        users,
			Sessions:     sessions,
			Audits:       audits,
			Policy:       policy,
			SessionMgr:   sessionManager,
			AccountsSvc:  accountsSvc,
			IncidentsSvc: incidentsSvc,
			CommentsSvc:  commentsSvc,
			NotifySvc:    notifySvc,
			Classifier:   classifier,
		},
		sessions: sessions,
		users:    users,
		workers:  []api.BackgroundWorker{sweeper},
	}, nil
}
