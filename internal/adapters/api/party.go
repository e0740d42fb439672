package api

import (
	"context"
	"net/http"

	"inputbid-service/internal/domain/shared"
)

const (
	HeaderPartyKind = "X-Party-Kind"
	HeaderPartyID   = "X-Party-ID"
)

type partyKey struct{}

// requireParty resolves the calling party from the identity headers set by
// the fronting gateway.
func (h *Handler) requireParty(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		party, err := shared.ParseParty(r.Header.Get(HeaderPartyKind), r.Header.Get(HeaderPartyID))
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), partyKey{}, party)))
	})
}

func partyFrom(r *http.Request) shared.Party {
	party, _ := r.Context().Value(partyKey{}).(shared.Party)
	return party
}
