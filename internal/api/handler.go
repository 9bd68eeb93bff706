package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/estaciona/parkops-server/internal/analytics"
	"github.com/estaciona/parkops-server/internal/apperr"
	"github.com/estaciona/parkops-server/internal/auth"
	"github.com/estaciona/parkops-server/internal/ledger"
	"github.com/estaciona/parkops-server/internal/models"
	"github.com/estaciona/parkops-server/pkg/ws"
)

// Handler wires the HTTP surface to the services.
type Handler struct {
	auth     auth.Service
	ledger   *ledger.Service
	errs     *apperr.Handler
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

// NewHandler creates a new API handler. hub may be nil when the live feed is
// disabled.
func NewHandler(authSvc auth.Service, ledgerSvc *ledger.Service, errs *apperr.Handler, hub *ws.Hub) *Handler {
	return &Handler{
		auth:   authSvc,
		ledger: ledgerSvc,
		errs:   errs,
		hub:    hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// SetupRoutes registers all routes on the router.
func (h *Handler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/signup", h.SignUp)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/logout", AuthMiddleware(h.auth), h.Logout)
		authGroup.GET("/me", AuthMiddleware(h.auth), h.Me)
	}

	protected := api.Group("", AuthMiddleware(h.auth))
	{
		protected.GET("/spots", h.ListSpots)
		protected.POST("/spots/:id/occupy", h.OccupySpot)
		protected.POST("/spots/:id/free", h.FreeSpot)
		protected.GET("/vehicles", h.ListVehicles)
		protected.GET("/transactions", h.ListTransactions)
		protected.POST("/transactions/:id/pay", h.PayTransaction)
		protected.GET("/tickets", h.ListTickets)
		protected.GET("/tickets/:id", h.GetTicket)
	}

	reports := api.Group("/analytics", AuthMiddleware(h.auth), RequireRole(models.RoleAdmin))
	{
		reports.GET("/stats", h.Stats)
		reports.GET("/dashboard", h.Dashboard)
		reports.GET("/metrics", h.Metrics)
		reports.GET("/revenue-by-day", h.RevenueByDay)
		reports.GET("/hourly", h.HourlyDistribution)
		reports.GET("/peak-hours", h.PeakHours)
		reports.GET("/vehicle-types", h.VehicleTypes)
		reports.GET("/spot-efficiency", h.SpotEfficiency)
		reports.GET("/top-spots", h.TopSpots)
		reports.GET("/spot-type-revenue", h.SpotTypeRevenue)
		reports.GET("/daily-performance", h.DailyPerformance)
		reports.GET("/filtered", h.FilteredStats)
	}

	if h.hub != nil {
		router.GET("/ws", h.LiveFeed)
	}
}

// Authentication handlers

func (h *Handler) SignUp(c *gin.Context) {
	var req models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrDuplicateEmail) {
			handled := h.errs.Handle(err, "signup")
			c.JSON(http.StatusConflict, models.ErrorResponse{
				Status:  "error",
				Code:    "DUPLICATE_EMAIL",
				Message: handled.UserMessage,
			})
			return
		}
		h.internalError(c, err, "signup")
		return
	}

	c.JSON(http.StatusCreated, models.SignUpResponse{
		Status: "success",
		User:   *user,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	user, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) && appErr.Code == apperr.CodeAuth {
			handled := h.errs.Handle(err, "login")
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Status:  "error",
				Code:    "UNAUTHORIZED",
				Message: handled.UserMessage,
			})
			return
		}
		h.internalError(c, err, "login")
		return
	}

	c.JSON(http.StatusOK, models.AuthResponse{
		Status:    "success",
		User:      user,
		Token:     user.Token,
		ExpiresIn: int(h.auth.TokenDuration().Seconds()),
	})
}

func (h *Handler) Logout(c *gin.Context) {
	user := CurrentUser(c)
	if err := h.auth.Logout(c.Request.Context(), user.Token); err != nil {
		h.internalError(c, err, "logout")
		return
	}
	c.JSON(http.StatusOK, models.StatusResponse{Status: "success"})
}

func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, models.AuthResponse{
		Status: "success",
		User:   CurrentUser(c),
	})
}

// Ledger handlers

func (h *Handler) ListSpots(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "success", "spots": h.ledger.Spots()})
}

func (h *Handler) OccupySpot(c *gin.Context) {
	spotID, ok := h.spotID(c)
	if !ok {
		return
	}

	var req models.OccupySpotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	res, err := h.ledger.OccupySpot(c.Request.Context(), h.actor(c), spotID, ledger.VehicleData{
		LicensePlate: req.LicensePlate,
		Type:         models.VehicleType(req.VehicleType),
	})
	if err != nil {
		h.internalError(c, err, "occupy spot")
		return
	}
	if res.Status == ledger.StatusNoOp {
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Status:  "error",
			Code:    "SPOT_UNAVAILABLE",
			Message: "Spot does not exist or is already occupied",
		})
		return
	}

	c.JSON(http.StatusCreated, models.OccupySpotResponse{
		Status:  "success",
		Vehicle: res.Vehicle,
		Ticket:  res.Ticket,
	})
}

func (h *Handler) FreeSpot(c *gin.Context) {
	spotID, ok := h.spotID(c)
	if !ok {
		return
	}

	res, err := h.ledger.FreeSpot(c.Request.Context(), h.actor(c), spotID)
	if err != nil {
		h.internalError(c, err, "free spot")
		return
	}
	if res.Status == ledger.StatusNoOp {
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Status:  "error",
			Code:    "SPOT_NOT_OCCUPIED",
			Message: "Spot does not exist or is not occupied",
		})
		return
	}

	c.JSON(http.StatusOK, models.FreeSpotResponse{
		Status:      "success",
		Transaction: res.Transaction,
	})
}

func (h *Handler) ListVehicles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "success", "vehicles": h.ledger.Vehicles()})
}

func (h *Handler) ListTransactions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "success", "transactions": h.ledger.Transactions()})
}

func (h *Handler) PayTransaction(c *gin.Context) {
	res, err := h.ledger.MarkAsPaid(c.Request.Context(), h.actor(c), c.Param("id"))
	if err != nil {
		h.internalError(c, err, "pay transaction")
		return
	}
	if res.Status == ledger.StatusNoOp {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Status:  "error",
			Code:    "TRANSACTION_NOT_FOUND",
			Message: "Transaction does not exist or is already paid",
		})
		return
	}

	c.JSON(http.StatusOK, models.PayTransactionResponse{
		Status:      "success",
		Transaction: res.Transaction,
		Ticket:      res.Ticket,
	})
}

func (h *Handler) ListTickets(c *gin.Context) {
	var tickets []models.Ticket
	switch c.Query("status") {
	case "active":
		tickets = h.ledger.ActiveTickets()
	case "completed":
		tickets = h.ledger.CompletedTickets()
	default:
		tickets = h.ledger.Tickets()
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "tickets": tickets})
}

func (h *Handler) GetTicket(c *gin.Context) {
	ticket := h.ledger.TicketByID(c.Param("id"))
	if ticket == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Status:  "error",
			Code:    "TICKET_NOT_FOUND",
			Message: "Ticket not found",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "ticket": ticket})
}

// Analytics handlers

func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, analytics.ComputeStats(h.ledger.Snapshot()))
}

func (h *Handler) Dashboard(c *gin.Context) {
	c.JSON(http.StatusOK, analytics.DashboardMetrics(h.ledger.Snapshot(), time.Now()))
}

func (h *Handler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, analytics.AdvancedMetrics(h.ledger.Snapshot()))
}

func (h *Handler) RevenueByDay(c *gin.Context) {
	c.JSON(http.StatusOK, analytics.RevenueByDay(h.ledger.Snapshot(), time.Now()))
}

func (h *Handler) HourlyDistribution(c *gin.Context) {
	c.JSON(http.StatusOK, analytics.HourlyDistribution(h.ledger.Snapshot()))
}

func (h *Handler) PeakHours(c *gin.Context) {
	c.JSON(http.StatusOK, analytics.PeakHours(h.ledger.Snapshot()))
}

func (h *Handler) VehicleTypes(c *gin.Context) {
	c.JSON(http.StatusOK, analytics.VehicleTypeDistribution(h.ledger.Snapshot()))
}

func (h *Handler) SpotEfficiency(c *gin.Context) {
	c.JSON(http.StatusOK, analytics.SpotEfficiency(h.ledger.Snapshot()))
}

func (h *Handler) TopSpots(c *gin.Context) {
	c.JSON(http.StatusOK, analytics.TopSpots(h.ledger.Snapshot()))
}

func (h *Handler) SpotTypeRevenue(c *gin.Context) {
	c.JSON(http.StatusOK, analytics.RevenueBySpotType(h.ledger.Snapshot()))
}

func (h *Handler) DailyPerformance(c *gin.Context) {
	c.JSON(http.StatusOK, analytics.DailyPerformance(h.ledger.Snapshot(), time.Now()))
}

func (h *Handler) FilteredStats(c *gin.Context) {
	filters := analytics.Filters{
		StartDate:     c.Query("startDate"),
		EndDate:       c.Query("endDate"),
		SpotType:      models.SpotType(c.Query("spotType")),
		PaymentStatus: c.Query("paymentStatus"),
		VehicleType:   models.VehicleType(c.Query("vehicleType")),
	}
	c.JSON(http.StatusOK, analytics.Filtered(h.ledger.Snapshot(), filters))
}

// LiveFeed upgrades the connection and streams ledger events. The token is
// taken from the query string because browsers cannot set headers on
// WebSocket upgrades.
func (h *Handler) LiveFeed(c *gin.Context) {
	user, err := h.auth.CheckAuth(c.Request.Context(), c.Query("token"))
	if err != nil {
		h.internalError(c, err, "live feed auth")
		return
	}
	if user == nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Status:  "error",
			Code:    "UNAUTHORIZED",
			Message: "Authentication required",
		})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := ws.NewClient(h.hub, conn)
	client.Register()
	go client.WritePump()
	client.ReadPump()
}

// Helpers

func (h *Handler) spotID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_REQUEST",
			Message: "Invalid spot id",
		})
		return 0, false
	}
	return id, true
}

func (h *Handler) actor(c *gin.Context) string {
	if user := CurrentUser(c); user != nil {
		return user.ID
	}
	return "system"
}

func (h *Handler) internalError(c *gin.Context, err error, context string) {
	handled := h.errs.Handle(err, context)
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Status:  "error",
		Code:    "INTERNAL_ERROR",
		Message: handled.UserMessage,
	})
}
