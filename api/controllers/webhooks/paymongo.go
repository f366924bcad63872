package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/jmab/shop-backend/api/responses"
	paymongowebhook "github.com/jmab/shop-backend/internal/webhooks/paymongo"
	pkgerrors "github.com/jmab/shop-backend/pkg/errors"
	"github.com/jmab/shop-backend/pkg/logger"
	"github.com/jmab/shop-backend/pkg/metrics"
)

const paymongoSignatureHeader = "Paymongo-Signature"

type PaymongoWebhookService interface {
	Process(ctx context.Context, body []byte) error
}

type SignatureVerifier interface {
	VerifySignature(body []byte, header string) error
}

// PaymongoWebhook verifies and applies payment lifecycle events.
func PaymongoWebhook(svc PaymongoWebhookService, verifier SignatureVerifier, m *metrics.OrderMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "signature verifier unavailable"))
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if err := verifier.VerifySignature(body, r.Header.Get(paymongoSignatureHeader)); err != nil {
			if m != nil {
				m.IncWebhookEvent("unverified", false)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		eventType := "invalid"
		if event, err := paymongowebhook.ParseEvent(body); err == nil {
			eventType = event.Type
		}

		if err := svc.Process(ctx, body); err != nil {
			if m != nil {
				m.IncWebhookEvent(eventType, false)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if m != nil {
			m.IncWebhookEvent(eventType, true)
		}
		responses.WriteSuccess(w, nil)
	}
}
