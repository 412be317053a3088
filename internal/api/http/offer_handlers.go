package httpapi

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/tixswap/tixswap/internal/domain/offer"
)

type proposalCreateRequest struct {
	Price       decimal.Decimal `json:"price"`
	SectionInfo string          `json:"sectionInfo"`
}

func (s *Server) createOffer(w http.ResponseWriter, r *http.Request) {
	var req offer.Criteria
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	o, err := s.negotiationSvc.CreateOffer(r.Context(), callerID(r), req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

func (s *Server) listOffers(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r, 50, 200)
	offers, err := s.negotiationSvc.ListOpenOffers(r.Context(), limit, offset)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"offers": offers})
}

func (s *Server) getOffer(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "offerId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid offerId")
		return
	}
	o, err := s.negotiationSvc.GetOffer(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (s *Server) closeOffer(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "offerId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid offerId")
		return
	}
	o, err := s.negotiationSvc.CloseOffer(r.Context(), id, callerID(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (s *Server) submitProposal(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "offerId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid offerId")
		return
	}
	var req proposalCreateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	p, err := s.negotiationSvc.SubmitProposal(r.Context(), id, callerID(r), req.Price, req.SectionInfo)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (s *Server) listProposals(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "offerId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid offerId")
		return
	}
	ps, err := s.negotiationSvc.ListProposals(r.Context(), id, callerID(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"proposals": ps})
}

func (s *Server) acceptProposal(w http.ResponseWriter, r *http.Request) {
	offerID, err := parseUUIDParam(r, "offerId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid offerId")
		return
	}
	proposalID, err := parseUUIDParam(r, "proposalId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid proposalId")
		return
	}
	p, err := s.negotiationSvc.AcceptProposal(r.Context(), offerID, proposalID, callerID(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (s *Server) rejectProposal(w http.ResponseWriter, r *http.Request) {
	offerID, err := parseUUIDParam(r, "offerId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid offerId")
		return
	}
	proposalID, err := parseUUIDParam(r, "proposalId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid proposalId")
		return
	}
	p, err := s.negotiationSvc.RejectProposal(r.Context(), offerID, proposalID, callerID(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}
