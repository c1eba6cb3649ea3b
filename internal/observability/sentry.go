package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
		SendDefaultPII:   false,
	})
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

// Breadcrumb attaches a trail entry to the current Sentry scope. It is a no-op
// when Sentry was never initialised.
func Breadcrumb(category, message string, data map[string]any) {
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Category:  category,
		Message:   message,
		Data:      data,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now().UTC(),
	})
}
