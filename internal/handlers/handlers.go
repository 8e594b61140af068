package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jigardave8/icitizen-market/internal/logger"
	"github.com/jigardave8/icitizen-market/internal/marketplace"
	"github.com/jigardave8/icitizen-market/internal/models"
	"github.com/jigardave8/icitizen-market/internal/service"
)

// Handler contains HTTP request handlers.
type Handler struct {
	market *service.MarketplaceService
	auth   *AuthMiddleware
	log    *logger.Logger
}

// NewHandler creates a new HTTP handler. jwtSecret may be empty, in which
// case write routes are open (dev mode).
func NewHandler(market *service.MarketplaceService, jwtSecret string, log *logger.Logger) *Handler {
	return &Handler{
		market: market,
		auth:   NewAuthMiddleware(jwtSecret, log),
		log:    log,
	}
}

// SetupRoutes configures all HTTP routes.
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/listings", h.ListListings).Methods("GET")
	api.HandleFunc("/listings/{id}", h.GetListing).Methods("GET")
	api.HandleFunc("/listings/{id}/bids", h.GetBidHistory).Methods("GET")
	api.HandleFunc("/sellers/{id}", h.GetSeller).Methods("GET")

	protected := api.NewRoute().Subrouter()
	protected.Use(h.auth.Authenticate)
	protected.HandleFunc("/listings", h.CreateListing).Methods("POST")
	protected.HandleFunc("/listings/{id}/bids", h.PlaceBid).Methods("POST")
	protected.HandleFunc("/listings/{id}/purchase", h.PurchaseNow).Methods("POST")
	protected.HandleFunc("/listings/{id}/withdraw", h.WithdrawListing).Methods("POST")
	protected.HandleFunc("/sellers", h.CreateSeller).Methods("POST")

	router.Use(h.loggingMiddleware)
	router.Use(corsMiddleware)

	return router
}

// HealthCheck returns service health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "api-server",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// CreateListing handles listing creation requests.
func (h *Handler) CreateListing(w http.ResponseWriter, r *http.Request) {
	var req models.CreateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sellerID := actorID(r, req.SellerID)
	if sellerID == "" {
		respondError(w, http.StatusBadRequest, "Seller ID is required")
		return
	}

	listing, err := h.market.CreateListing(r.Context(), marketplace.CreateListingParams{
		SellerID:     sellerID,
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Location:     req.Location,
		Price:        req.Price,
		AuctionStart: req.AuctionStart,
		AuctionEnd:   req.AuctionEnd,
	}, time.Now().UTC())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, listing)
}

// ListListings returns all listings for the marketplace browse screen.
func (h *Handler) ListListings(w http.ResponseWriter, r *http.Request) {
	listings, err := h.market.ListListings(r.Context(), time.Now().UTC())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if listings == nil {
		listings = []*models.Listing{}
	}

	respondJSON(w, http.StatusOK, listings)
}

// GetListing retrieves a listing with its current-bid summary. Auction
// settlement happens lazily here, so a finished auction reads as sold.
func (h *Handler) GetListing(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		respondError(w, http.StatusBadRequest, "Listing ID is required")
		return
	}

	listing, err := h.market.GetListing(r.Context(), id, time.Now().UTC())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, listing)
}

// GetBidHistory returns the chronological accepted-bid history.
func (h *Handler) GetBidHistory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	bids, err := h.market.BidHistory(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if bids == nil {
		bids = []*models.Bid{}
	}

	respondJSON(w, http.StatusOK, bids)
}

// PlaceBid handles bid placement requests.
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req models.BidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.BidderID = actorID(r, req.BidderID)
	if req.BidderID == "" {
		respondError(w, http.StatusBadRequest, "Bidder ID is required")
		return
	}
	if req.Amount <= 0 {
		respondError(w, http.StatusBadRequest, "Bid amount must be positive")
		return
	}

	resp, err := h.market.PlaceBid(r.Context(), id, &req, time.Now().UTC())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to place bid")
		return
	}

	statusCode := http.StatusOK
	if !resp.Success {
		statusCode = http.StatusConflict
		if resp.Reason == marketplace.ReasonListingNotFound {
			statusCode = http.StatusNotFound
		}
	}

	respondJSON(w, statusCode, resp)
}

// PurchaseNow handles fixed-price purchase requests.
func (h *Handler) PurchaseNow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req models.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	buyerID := actorID(r, req.BuyerID)
	if buyerID == "" {
		respondError(w, http.StatusBadRequest, "Buyer ID is required")
		return
	}

	listing, err := h.market.PurchaseNow(r.Context(), id, buyerID, time.Now().UTC())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, listing)
}

// WithdrawListing handles seller withdrawal requests.
func (h *Handler) WithdrawListing(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req models.WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sellerID := actorID(r, req.SellerID)
	if sellerID == "" {
		respondError(w, http.StatusBadRequest, "Seller ID is required")
		return
	}

	listing, err := h.market.Withdraw(r.Context(), id, sellerID, time.Now().UTC())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, listing)
}

// CreateSeller handles seller registration.
func (h *Handler) CreateSeller(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSellerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "Seller name is required")
		return
	}

	seller, err := h.market.CreateSeller(r.Context(), &req, time.Now().UTC())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, seller)
}

// GetSeller retrieves a seller by id.
func (h *Handler) GetSeller(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	seller, err := h.market.GetSeller(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, seller)
}

// respondDomainError maps domain errors to HTTP status codes: missing
// records to 404, malformed input to 400, business-rule rejections to 409
// with the machine-readable reason code.
func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, marketplace.ErrListingNotFound), errors.Is(err, marketplace.ErrSellerNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, marketplace.ErrInvalidListing):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		if r, ok := marketplace.AsRejection(err); ok {
			status := http.StatusConflict
			if r.Reason == marketplace.ReasonListingNotFound {
				status = http.StatusNotFound
			}
			respondJSON(w, status, map[string]string{
				"error":  r.Message,
				"reason": r.Reason,
			})
			return
		}
		h.log.Error("internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
