package httpapi

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	appPurchase "github.com/tixswap/tixswap/internal/application/purchase"
	"github.com/tixswap/tixswap/internal/domain/listing"
	"github.com/tixswap/tixswap/internal/domain/purchase"
)

type purchaseCreateRequest struct {
	Quantity int `json:"quantity"`
}

type transitionRequest struct {
	Status purchase.Status `json:"status"`
}

type availabilityResponse struct {
	ListingID uuid.UUID        `json:"listingId"`
	Available bool             `json:"available"`
	Reason    string           `json:"reason,omitempty"`
	Listing   *listing.Listing `json:"listing,omitempty"`
}

func (s *Server) getAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "listingId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid listingId")
		return
	}
	l, err := s.gate.CanPurchase(r.Context(), id, callerID(r))
	if err != nil {
		if code, ok := conflictCode(err); ok {
			respondJSON(w, http.StatusOK, availabilityResponse{ListingID: id, Reason: code})
			return
		}
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, availabilityResponse{ListingID: id, Available: true, Listing: l})
}

func (s *Server) createPurchase(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "listingId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid listingId")
		return
	}
	var req purchaseCreateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	p, err := s.purchaseSvc.CreateDirect(r.Context(), appPurchase.DirectInput{
		ListingID: id,
		BuyerID:   callerID(r),
		Quantity:  req.Quantity,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (s *Server) listPurchases(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r, 50, 200)
	q := r.URL.Query()

	var role *purchase.Role
	if v := q.Get("role"); v != "" {
		rl := purchase.Role(strings.ToUpper(v))
		role = &rl
	}
	var status *purchase.Status
	if v := q.Get("status"); v != "" {
		st := purchase.Status(strings.ToUpper(v))
		if !st.IsValid() {
			respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid status")
			return
		}
		status = &st
	}

	ps, err := s.purchaseSvc.ListForUser(r.Context(), callerID(r), role, status, limit, offset)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"purchases": ps})
}

func (s *Server) getPurchase(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "purchaseId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid purchaseId")
		return
	}
	p, err := s.purchaseSvc.Get(r.Context(), id, callerID(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) getPurchaseHistory(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "purchaseId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid purchaseId")
		return
	}
	records, err := s.purchaseSvc.History(r.Context(), id, callerID(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"transitions": records})
}

func (s *Server) transitionPurchase(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "purchaseId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid purchaseId")
		return
	}
	var req transitionRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	target := purchase.Status(strings.ToUpper(string(req.Status)))
	if !target.IsValid() {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid status")
		return
	}
	p, err := s.purchaseSvc.Transition(r.Context(), id, callerID(r), target)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}
