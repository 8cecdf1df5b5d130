package middleware

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/davidbz/turnstile/internal/domain"
	"github.com/davidbz/turnstile/internal/observability"
)

// PaymentHeader carries the base64-encoded JSON payment proof.
const PaymentHeader = "X-Payment"

// paymentRequiredBody is the 402 response payload. The requirement set is
// actionable data for the caller, not an error detail.
type paymentRequiredBody struct {
	Error       string                      `json:"error"`
	Reason      string                      `json:"reason,omitempty"`
	Description string                      `json:"description,omitempty"`
	MimeType    string                      `json:"mimeType,omitempty"`
	Accepts     []domain.PaymentRequirement `json:"accepts"`
}

// Payment gates a route behind the payment gate. The route key, description
// and mime type identify the logical resource being sold; only an Allow
// decision reaches next.
func Payment(gate *domain.PaymentGate, routeKey, description, mimeType string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := observability.WithRouteKey(r.Context(), routeKey)
			r = r.WithContext(ctx)
			logger := observability.FromContext(ctx)

			// A malformed header degrades to no proof: the 402 must still
			// carry the full requirement set so the caller can retry.
			proof, decodeErr := decodeProof(r.Header.Get(PaymentHeader))
			if decodeErr != nil {
				logger.Info("malformed payment header", observability.Error(decodeErr))
				proof = nil
			}

			decision, err := gate.Evaluate(ctx, routeKey, description, mimeType, proof)
			if err != nil {
				logger.Error("payment gate evaluation failed", observability.Error(err))
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}

			if decision.Outcome == domain.OutcomeAllow {
				next.ServeHTTP(w, r)
				return
			}

			body := paymentRequiredBody{
				Error:       "payment required",
				Reason:      decision.Reason,
				Description: description,
				MimeType:    mimeType,
				Accepts:     decision.Requirements,
			}
			if decision.Outcome == domain.OutcomeDenyInvalid {
				body.Error = "payment invalid"
			}
			if decodeErr != nil {
				body.Error = "invalid payment header"
			}
			writePaymentRequired(w, body)
		})
	}
}

// decodeProof parses the payment header. An absent header is a nil proof,
// not an error: the gate answers it with a quote.
func decodeProof(header string) (*domain.PaymentProof, error) {
	if header == "" {
		return nil, nil
	}

	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, err
	}

	var proof domain.PaymentProof
	if err := json.Unmarshal(raw, &proof); err != nil {
		return nil, err
	}

	return &proof, nil
}

func writePaymentRequired(w http.ResponseWriter, body paymentRequiredBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	_ = json.NewEncoder(w).Encode(body)
}
