package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"marketplace-auction/internal/domain"
	"marketplace-auction/internal/services"
	"marketplace-auction/pkg/logger"
)

type BidHandler struct {
	bids *services.BidService
	log  logger.Logger
}

func NewBidHandler(bids *services.BidService, log logger.Logger) *BidHandler {
	return &BidHandler{
		bids: bids,
		log:  log,
	}
}

func (h *BidHandler) Register(g *echo.Group) {
	g.POST("/auctions/:id/bids", h.PlaceBid)
	g.GET("/auctions/:id/bids", h.ListAuctionBids)
	g.GET("/auctions/:id/tick", h.TickSize)
	g.GET("/auctions/:id", h.GetAuction)
	g.GET("/bidders/:id/bids", h.ListBidderBids)
}

type PlaceBidRequest struct {
	BidderID int64 `json:"bidder_id"`
	BidPrice int64 `json:"bid_price"`
}

type BidResponse struct {
	ID        int64     `json:"id"`
	AuctionID int64     `json:"auction_id"`
	BidderID  int64     `json:"bidder_id"`
	BidPrice  int64     `json:"bid_price"`
	BidTime   time.Time `json:"bid_time"`
}

type AuctionResponse struct {
	ID           int64     `json:"id"`
	ItemID       int64     `json:"item_id"`
	StartPrice   int64     `json:"start_price"`
	CurrentPrice int64     `json:"current_price"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Status       string    `json:"status"`
	WinnerID     *int64    `json:"winner_id,omitempty"`
	WinningPrice *int64    `json:"winning_price,omitempty"`
	BidCount     int       `json:"bid_count"`
}

func (h *BidHandler) PlaceBid(c echo.Context) error {
	auctionID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid auction id"))
	}

	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid request body"))
	}

	bid, err := h.bids.PlaceBid(c.Request().Context(), auctionID, req.BidderID, req.BidPrice)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusCreated, toBidResponse(bid))
}

func (h *BidHandler) ListAuctionBids(c echo.Context) error {
	auctionID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid auction id"))
	}

	page, size := pageParams(c)
	bids, err := h.bids.BidsForAuction(c.Request().Context(), auctionID, page, size)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, toBidResponses(bids))
}

func (h *BidHandler) ListBidderBids(c echo.Context) error {
	bidderID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid bidder id"))
	}

	page, size := pageParams(c)
	bids, err := h.bids.BidsForBidder(c.Request().Context(), bidderID, page, size)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, toBidResponses(bids))
}

func (h *BidHandler) TickSize(c echo.Context) error {
	auctionID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid auction id"))
	}

	info, err := h.bids.TickSizeForAuction(c.Request().Context(), auctionID)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, info)
}

func (h *BidHandler) GetAuction(c echo.Context) error {
	auctionID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid auction id"))
	}

	auction, err := h.bids.GetAuction(c.Request().Context(), auctionID)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, AuctionResponse{
		ID:           auction.ID,
		ItemID:       auction.ItemID,
		StartPrice:   auction.StartPrice,
		CurrentPrice: auction.CurrentPrice,
		StartTime:    auction.StartTime,
		EndTime:      auction.EndTime,
		Status:       auction.Status.String(),
		WinnerID:     auction.WinnerID,
		WinningPrice: auction.WinningPrice,
		BidCount:     auction.BidCount,
	})
}

func (h *BidHandler) writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrAuctionNotFound), errors.Is(err, domain.ErrBidderNotFound):
		return c.JSON(http.StatusNotFound, errorBody(err.Error()))
	case errors.Is(err, domain.ErrAuctionNotBiddable):
		return c.JSON(http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrBidBelowMinimum),
		errors.Is(err, domain.ErrOffTick),
		errors.Is(err, domain.ErrDuplicatePrice),
		errors.Is(err, domain.ErrRepeatedPrice):
		return c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, domain.ErrLockWaitTimeout):
		return c.JSON(http.StatusServiceUnavailable, errorBody("Auction is busy, retry shortly"))
	default:
		h.log.Error("Request failed", "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("Internal error"))
	}
}

func pathID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

func pageParams(c echo.Context) (page, size int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	size, _ = strconv.Atoi(c.QueryParam("size"))
	return page, size
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func toBidResponse(bid *domain.Bid) BidResponse {
	return BidResponse{
		ID:        bid.ID,
		AuctionID: bid.AuctionID,
		BidderID:  bid.BidderID,
		BidPrice:  bid.Price,
		BidTime:   bid.PlacedAt,
	}
}

func toBidResponses(bids []*domain.Bid) []BidResponse {
	out := make([]BidResponse, 0, len(bids))
	for _, bid := range bids {
		out = append(out, toBidResponse(bid))
	}
	return out
}
