package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kenfolio/internal/auth"
	"kenfolio/internal/models"
	"kenfolio/internal/persistence"
	"kenfolio/internal/portfolio"
	"kenfolio/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const ctxSession = "session"
const ctxToken = "token"

type Handler struct {
	ctx      context.Context
	dir      *auth.Directory
	gateway  *persistence.Gateway
	valuer   *portfolio.Valuer
	sessions *session.Registry
	log      *logrus.Logger
}

// NewHandler builds the HTTP surface. ctx outlives single requests and is
// handed to session controllers for their sign-in loads.
func NewHandler(ctx context.Context, dir *auth.Directory, gw *persistence.Gateway, valuer *portfolio.Valuer, sessions *session.Registry, log *logrus.Logger) *Handler {
	return &Handler{ctx: ctx, dir: dir, gateway: gw, valuer: valuer, sessions: sessions, log: log}
}

func (h *Handler) Register(rg *gin.Engine) {
	rg.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	rg.POST("/auth/signup", h.SignUp)
	rg.POST("/auth/signin", h.SignIn)

	authed := rg.Group("/", h.requireSession)
	authed.POST("/auth/signout", h.SignOut)
	authed.GET("/portfolio", h.GetPortfolio)
	authed.GET("/transactions", h.GetTransactions)
	authed.POST("/transactions", h.PostTransaction)
	authed.PUT("/transactions/:index", h.EditTransaction)
	authed.DELETE("/transactions/:index", h.DeleteTransaction)
	authed.POST("/reset", h.Reset)
}

// RequestLogger logs one line per request.
func RequestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"ip":      c.ClientIP(),
			"latency": time.Since(start),
		}).Info("http_request")
	}
}

type CredentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type TransactionRequest struct {
	Symbol   string           `json:"symbol" binding:"required"`
	Quantity *decimal.Decimal `json:"quantity" binding:"required"`
	Price    *decimal.Decimal `json:"price" binding:"required"`
	Type     string           `json:"type" binding:"required"`
}

type EditRequest struct {
	Quantity *decimal.Decimal `json:"quantity" binding:"required"`
	Price    *decimal.Decimal `json:"price" binding:"required"`
}

type ResetRequest struct {
	Confirm bool `json:"confirm"`
}

func (h *Handler) SignUp(c *gin.Context) {
	h.startSession(c, func(ctrl *session.Controller, req CredentialsRequest) error {
		return ctrl.SignUp(c.Request.Context(), req.Email, req.Password)
	}, http.StatusCreated)
}

func (h *Handler) SignIn(c *gin.Context) {
	h.startSession(c, func(ctrl *session.Controller, req CredentialsRequest) error {
		return ctrl.SignIn(c.Request.Context(), req.Email, req.Password)
	}, http.StatusOK)
}

func (h *Handler) startSession(c *gin.Context, signIn func(*session.Controller, CredentialsRequest) error, status int) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid credentials body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctrl := session.NewController(h.ctx, h.dir.NewClient(), h.gateway, h.valuer, h.log)
	if err := signIn(ctrl, req); err != nil {
		h.fail(c, err)
		return
	}
	token, err := h.sessions.Put(ctrl)
	if err != nil {
		h.log.Errorf("store session failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	id := ctrl.Identity()
	c.JSON(status, gin.H{"token": token, "user_id": id.UserID})
}

func (h *Handler) requireSession(c *gin.Context) {
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	ctrl, ok := h.sessions.Get(token)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown or expired session"})
		return
	}
	c.Set(ctxSession, ctrl)
	c.Set(ctxToken, token)
	c.Next()
}

func controller(c *gin.Context) *session.Controller {
	return c.MustGet(ctxSession).(*session.Controller)
}

func (h *Handler) SignOut(c *gin.Context) {
	if err := controller(c).SignOut(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	h.sessions.Drop(c.GetString(ctxToken))
	c.JSON(http.StatusOK, gin.H{"status": "signed_out"})
}

func (h *Handler) GetPortfolio(c *gin.Context) {
	rep, err := controller(c).Report(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	assets := []gin.H{}
	for _, a := range rep.Assets {
		assets = append(assets, gin.H{
			"symbol":          strings.ToUpper(a.Symbol),
			"quantity":        a.Quantity.String(),
			"average_cost":    a.AverageCost.StringFixed(2),
			"current_price":   a.CurrentPrice.StringFixed(2),
			"price_available": a.PriceAvailable,
			"invested":        a.Invested.StringFixed(2),
			"current":         a.Current.StringFixed(2),
			"pnl":             a.PnL.StringFixed(2),
			"profit":          a.Profit(),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"assets":         assets,
		"total_invested": rep.TotalInvested.StringFixed(2),
		"total_current":  rep.TotalCurrent.StringFixed(2),
		"total_pnl":      rep.TotalPnL.StringFixed(2),
	})
}

func (h *Handler) GetTransactions(c *gin.Context) {
	h.render(c, http.StatusOK)
}

func (h *Handler) PostTransaction(c *gin.Context) {
	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid transaction body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kind := models.Kind(strings.ToLower(req.Type))
	if _, err := controller(c).Submit(c.Request.Context(), req.Symbol, kind, *req.Quantity, *req.Price); err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusCreated)
}

func (h *Handler) EditTransaction(c *gin.Context) {
	index, ok := h.index(c)
	if !ok {
		return
	}
	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid edit body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := controller(c).Edit(c.Request.Context(), index, *req.Quantity, *req.Price); err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK)
}

func (h *Handler) DeleteTransaction(c *gin.Context) {
	index, ok := h.index(c)
	if !ok {
		return
	}
	if err := controller(c).Delete(c.Request.Context(), index); err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK)
}

func (h *Handler) Reset(c *gin.Context) {
	var req ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := controller(c).Reset(c.Request.Context(), req.Confirm); err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK)
}

func (h *Handler) index(c *gin.Context) (int, bool) {
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be an integer"})
		return 0, false
	}
	return i, true
}

// render answers with the refreshed log and positions.
func (h *Handler) render(c *gin.Context, status int) {
	v, err := controller(c).View()
	if err != nil {
		h.fail(c, err)
		return
	}
	txs := make([]gin.H, 0, len(v.Transactions))
	for i, t := range v.Transactions {
		txs = append(txs, gin.H{
			"index": i,
			"date":  t.Timestamp.Format(time.RFC3339),
			"coin":  t.Symbol,
			"type":  t.Kind,
			"qty":   t.Quantity.String(),
			"price": t.Price.String(),
		})
	}
	positions := gin.H{}
	for sym, p := range v.Positions {
		positions[sym] = gin.H{"qty": p.Quantity.String(), "cost": p.CostBasis.StringFixed(2)}
	}
	c.JSON(status, gin.H{"user_id": v.UserID, "positions": positions, "transactions": txs})
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case portfolio.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, portfolio.ErrConfirmationRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, portfolio.ErrIndexOutOfRange):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrNotSignedIn):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrEmailInUse):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrInvalidEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case persistence.IsPersistence(err):
		h.log.Errorf("persistence failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable, please retry"})
	default:
		h.log.Errorf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}
