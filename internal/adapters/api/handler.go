package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"inputbid-service/internal/domain/offer"
	"inputbid-service/internal/domain/request"
	"inputbid-service/internal/domain/shared"
	"inputbid-service/internal/ports/inbound"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	errBusinessOnly = fmt.Errorf("%w: only a business can publish bid requests", shared.ErrNotAuthorized)
	errRetailerOnly = fmt.Errorf("%w: only a retailer can submit bids", shared.ErrNotAuthorized)
	errInvalidID    = fmt.Errorf("%w: malformed identifier", shared.ErrValidation)
	errInvalidQuery = fmt.Errorf("%w: malformed query parameter", shared.ErrValidation)
)

// Handler serves the REST surface of the marketplace
type Handler struct {
	requests   inbound.RequestService
	offers     inbound.OfferService
	acceptance inbound.AcceptanceService
	logger     zerolog.Logger
}

type HandlerParams struct {
	Requests   inbound.RequestService
	Offers     inbound.OfferService
	Acceptance inbound.AcceptanceService
	Logger     zerolog.Logger
}

func NewHandler(params HandlerParams) *Handler {
	return &Handler{
		requests:   params.Requests,
		offers:     params.Offers,
		acceptance: params.Acceptance,
		logger:     params.Logger.With().Str("component", "api_handler").Logger(),
	}
}

// Routes mounts the versioned API
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.requireParty)

	r.Route("/requests", func(r chi.Router) {
		r.Post("/", h.createRequest)
		r.Get("/", h.listRequests)
		r.Route("/{requestID}", func(r chi.Router) {
			r.Get("/", h.getRequest)
			r.Delete("/", h.deleteRequest)
			r.Patch("/notes", h.updateNotes)
			r.Post("/close", h.closeRequest)
			r.Get("/pricing", h.pricingSummary)
			r.Post("/bids", h.submitBid)
			r.Get("/bids", h.listBids)
		})
	})

	r.Route("/bids/{bidID}", func(r chi.Router) {
		r.Get("/", h.getBid)
		r.Delete("/", h.withdrawBid)
		r.Post("/accept", h.acceptBid)
	})

	return r
}

func (h *Handler) createRequest(w http.ResponseWriter, r *http.Request) {
	party := partyFrom(r)
	if party.Kind != shared.PartyBusiness {
		writeError(w, h.logger, errBusinessOnly)
		return
	}

	var in inbound.CreateRequestInput
	if err := decode(r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	in.BusinessID = party.ID

	created, err := h.requests.CreateRequest(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"request_id": created.ID, "request": created})
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request) {
	var in inbound.ListRequestsInput
	query := r.URL.Query()

	if raw := query.Get("status"); raw != "" {
		status := request.Status(raw)
		if status != request.StatusOpen && status != request.StatusClosed {
			writeError(w, h.logger, errInvalidQuery)
			return
		}
		in.Status = &status
	}
	var err error
	if in.Page, err = intParam(query.Get("page")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if in.PageSize, err = intParam(query.Get("page_size")); err != nil {
		writeError(w, h.logger, err)
		return
	}

	requests, err := h.requests.ListRequests(r.Context(), partyFrom(r), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

func (h *Handler) getRequest(w http.ResponseWriter, r *http.Request) {
	requestID, err := uuidParam(r, "requestID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	req, err := h.requests.GetRequest(r.Context(), requestID, partyFrom(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) updateNotes(w http.ResponseWriter, r *http.Request) {
	requestID, err := uuidParam(r, "requestID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var body struct {
		Notes string `json:"notes"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, h.logger, err)
		return
	}
	req, err := h.requests.UpdateNotes(r.Context(), requestID, partyFrom(r), body.Notes)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) closeRequest(w http.ResponseWriter, r *http.Request) {
	requestID, err := uuidParam(r, "requestID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.requests.CloseRequest(r.Context(), requestID, partyFrom(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request_id": requestID, "status": request.StatusClosed})
}

func (h *Handler) deleteRequest(w http.ResponseWriter, r *http.Request) {
	requestID, err := uuidParam(r, "requestID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.requests.DeleteRequest(r.Context(), requestID, partyFrom(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pricingSummary(w http.ResponseWriter, r *http.Request) {
	requestID, err := uuidParam(r, "requestID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	summary, err := h.requests.PricingSummary(r.Context(), requestID, partyFrom(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) submitBid(w http.ResponseWriter, r *http.Request) {
	party := partyFrom(r)
	if party.Kind != shared.PartyRetailer {
		writeError(w, h.logger, errRetailerOnly)
		return
	}
	requestID, err := uuidParam(r, "requestID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var in inbound.SubmitBidInput
	if err := decode(r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	in.RequestID = requestID
	in.RetailerID = party.ID

	bid, err := h.offers.SubmitBid(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"bid_id": bid.ID, "bid": bid})
}

func (h *Handler) listBids(w http.ResponseWriter, r *http.Request) {
	requestID, err := uuidParam(r, "requestID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	bids, err := h.offers.ListBids(r.Context(), requestID, partyFrom(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bids": bids})
}

func (h *Handler) getBid(w http.ResponseWriter, r *http.Request) {
	bidID, err := uuidParam(r, "bidID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	bid, err := h.offers.GetBid(r.Context(), bidID, partyFrom(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, bid)
}

func (h *Handler) withdrawBid(w http.ResponseWriter, r *http.Request) {
	bidID, err := uuidParam(r, "bidID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.offers.WithdrawBid(r.Context(), bidID, partyFrom(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) acceptBid(w http.ResponseWriter, r *http.Request) {
	bidID, err := uuidParam(r, "bidID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	bid, err := h.acceptance.AcceptBid(r.Context(), bidID, partyFrom(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bid_id": bid.ID, "status": offer.StatusAccepted})
}

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", shared.ErrValidation, err)
	}
	return nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, errInvalidID
	}
	return id, nil
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errInvalidQuery
	}
	return n, nil
}
