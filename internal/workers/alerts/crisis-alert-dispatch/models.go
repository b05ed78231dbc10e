package crisisalertdispatch

import (
	"context"

	"crisis-alerts/internal/alert/history"
	"crisis-alerts/internal/common/aws"
	"crisis-alerts/internal/common/logger"
	"crisis-alerts/internal/common/observability"
	"crisis-alerts/internal/models"

	"github.com/jonboulle/clockwork"
)

// Input is a dispatch request plus the key that makes redelivery safe.
type Input struct {
	models.DispatchRequest
	IdempotencyKey string `json:"-"`
}

// Output is returned to callers and completed onto the job as {email, sms}.
type Output = models.DispatchResult

// Providers is the part of the provider registry the service needs.
type Providers interface {
	Email() aws.EmailSender
	SMS() aws.SMSSender
	Await(ctx context.Context) (aws.ProviderStatus, error)
}

type ServiceDependencies struct {
	Providers     Providers
	Cache         *ResultCache // optional
	History       history.Sink // optional
	Clock         clockwork.Clock
	Logger        logger.Logger
	Observability *observability.Observability // optional
}
