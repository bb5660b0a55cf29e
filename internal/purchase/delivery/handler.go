package delivery

import (
	"net/http"
	"strconv"

	authdomain "receiptradar-backend/internal/auth/domain"
	authrepo "receiptradar-backend/internal/auth/repository"
	"receiptradar-backend/internal/purchase/usecase"

	"github.com/gin-gonic/gin"
)

const defaultListLimit = 50

type PurchaseHandler struct {
	purchaseUsecase usecase.PurchaseUsecase
	userRepo        authrepo.UserRepository
}

func NewPurchaseHandler(purchaseUsecase usecase.PurchaseUsecase, userRepo authrepo.UserRepository) *PurchaseHandler {
	return &PurchaseHandler{
		purchaseUsecase: purchaseUsecase,
		userRepo:        userRepo,
	}
}

func currentUser(c *gin.Context) *authdomain.User {
	v, ok := c.Get("user")
	if !ok {
		return nil
	}
	user, _ := v.(*authdomain.User)
	return user
}

func listLimit(c *gin.Context) int {
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return defaultListLimit
}

func (h *PurchaseHandler) ListDrafts(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	drafts, err := h.purchaseUsecase.ListDrafts(user.ID, listLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"drafts": drafts})
}

type draftStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *PurchaseHandler) UpdateDraftStatus(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req draftStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.purchaseUsecase.SetDraftStatus(user.ID, c.Param("id"), req.Status); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

func (h *PurchaseHandler) ListEvidence(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	evidence, err := h.purchaseUsecase.ListEvidence(user.ID, listLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"evidence": evidence})
}

func (h *PurchaseHandler) ListPreAlerts(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	alerts, err := h.purchaseUsecase.ListPreAlerts(user.ID, listLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pre_alerts": alerts})
}

// fullSyncRequest optionally narrows the sync to a provider search query.
type fullSyncRequest struct {
	Query string `json:"query"`
}

// TriggerFullSync runs a full mailbox sync for the authenticated user and
// returns the run report.
func (h *PurchaseHandler) TriggerFullSync(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	// The body is optional; an empty or absent one means a full scan.
	var req fullSyncRequest
	_ = c.ShouldBindJSON(&req)

	report, err := h.purchaseUsecase.FullSync(c.Request.Context(), user.ID, req.Query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// syncWebhookRequest is the payload posted by mailbox-change webhooks when
// push delivery runs over HTTP instead of Pub/Sub.
type syncWebhookRequest struct {
	AccountIdentifier string `json:"accountIdentifier" binding:"required"`
	NewCursor         uint64 `json:"newCursor"`
}

// SyncWebhook handles a mailbox-change webhook: look up the account by
// email and run an incremental sync from the stored cursor.
func (h *PurchaseHandler) SyncWebhook(c *gin.Context) {
	var req syncWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userRepo.FindByEmail(req.AccountIdentifier)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if user == nil {
		// Unknown accounts are acknowledged, not retried.
		c.JSON(http.StatusOK, gin.H{"message": "unknown account"})
		return
	}

	if err := h.purchaseUsecase.IncrementalSync(c.Request.Context(), user.ID, req.NewCursor); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "sync completed"})
}
