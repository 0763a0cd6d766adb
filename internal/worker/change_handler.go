package worker

import (
	"context"
	"errors"
	"fmt"

	"fincache/internal/amqp"
	"fincache/internal/identity"
	"fincache/internal/log"
	"fincache/internal/services"
)

// ChangeHandler refreshes the cache when another process reports a mutation.
type ChangeHandler struct {
	origin     string
	user       identity.Provider
	refreshers map[string]services.Refresher
	logger     *log.Logger
}

// NewChangeHandler ignores messages published with origin, which is this
// process's own publisher id.
func NewChangeHandler(origin string, user identity.Provider, refreshers map[string]services.Refresher, logger *log.Logger) *ChangeHandler {
	if logger == nil {
		logger = log.Default(log.ComponentWorker)
	}
	return &ChangeHandler{origin: origin, user: user, refreshers: refreshers, logger: logger}
}

// affected lists the domains to reload after a change to resource.
// Statistics are derived from transactions.
func affected(resource string) []string {
	if resource == services.DomainTransactions {
		return []string{services.DomainTransactions, services.DomainStatistics}
	}
	return []string{resource}
}

// Handle is an amqp consumer callback. A returned error requeues the message.
func (h *ChangeHandler) Handle(ctx context.Context, msg *amqp.ChangeMessage) error {
	if msg.Origin != "" && msg.Origin == h.origin {
		return nil
	}
	if h.user != nil && msg.UserID != h.user.CurrentUserID() {
		h.logger.DebugContext(ctx, "Ignoring change for another user",
			log.FieldUserID, msg.UserID,
			log.FieldDomain, msg.Resource)
		return nil
	}

	var errs []error
	for _, d := range affected(msg.Resource) {
		r, ok := h.refreshers[d]
		if !ok {
			h.logger.WarnContext(ctx, "Change for unknown domain", log.FieldDomain, d)
			continue
		}
		if err := r.Refresh(ctx); err != nil {
			errs = append(errs, fmt.Errorf("refresh %s: %w", d, err))
			continue
		}
		h.logger.InfoContext(ctx, "Refreshed after remote change",
			log.FieldOperation, log.OpRefresh,
			log.FieldDomain, d,
			"op", msg.Op,
			log.FieldEntityID, msg.ID,
			"origin", msg.Origin)
	}
	return errors.Join(errs...)
}
