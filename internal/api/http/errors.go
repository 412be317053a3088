package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/tixswap/tixswap/internal/domain/listing"
	"github.com/tixswap/tixswap/internal/domain/notification"
	"github.com/tixswap/tixswap/internal/domain/offer"
	"github.com/tixswap/tixswap/internal/domain/purchase"
	"github.com/tixswap/tixswap/internal/domain/validation"
)

type errorCode struct {
	err  error
	code string
}

var notFoundErrors = []error{
	listing.ErrNotFound,
	offer.ErrOfferNotFound,
	offer.ErrProposalNotFound,
	purchase.ErrNotFound,
	notification.ErrNotFound,
}

var forbiddenErrors = []error{
	offer.ErrNotAuthorized,
	purchase.ErrNotParticipant,
	notification.ErrNotRecipient,
}

// conflictCodes are the stable codes clients can branch on.
var conflictCodes = []errorCode{
	{listing.ErrAlreadyInProgress, "ALREADY_IN_PROGRESS"},
	{listing.ErrSelfPurchase, "SELF_PURCHASE"},
	{listing.ErrNotActive, "LISTING_NOT_ACTIVE"},
	{offer.ErrAlreadyProcessed, "ALREADY_PROCESSED"},
	{offer.ErrDuplicateProposal, "DUPLICATE_PROPOSAL"},
	{offer.ErrSelfProposal, "SELF_PROPOSAL"},
	{offer.ErrOfferClosed, "OFFER_CLOSED"},
	{purchase.ErrSourceUnavailable, "SOURCE_UNAVAILABLE"},
	{purchase.ErrDuplicateOrderNumber, "ORDER_NUMBER_CONFLICT"},
	{notification.ErrAlreadyRead, "ALREADY_READ"},
}

func conflictCode(err error) (string, bool) {
	for _, c := range conflictCodes {
		if errors.Is(err, c.err) {
			return c.code, true
		}
	}
	return "", false
}

func matchesAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// respondServiceError maps an application error onto a status code and error body.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "INVALID_PARAM",
			"message": verr.Error(),
			"field":   verr.Field,
		})
		return
	}
	var terr *purchase.TransitionError
	if errors.As(err, &terr) {
		from := string(terr.From)
		if terr.From == purchase.StatusNone {
			from = "NONE"
		}
		respondJSON(w, http.StatusConflict, map[string]interface{}{
			"error":   "INVALID_TRANSITION",
			"message": terr.Error(),
			"from":    from,
			"to":      terr.To,
		})
		return
	}
	switch {
	case matchesAny(err, notFoundErrors):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	case matchesAny(err, forbiddenErrors):
		respondError(w, http.StatusForbidden, "FORBIDDEN", err.Error())
		return
	}
	if code, ok := conflictCode(err); ok {
		respondError(w, http.StatusConflict, code, err.Error())
		return
	}

	s.logger.Error().Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("path", r.URL.Path).
		Msg("request failed")
	respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
}
