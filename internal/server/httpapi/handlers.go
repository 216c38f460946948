package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/wxcounter/internal/common"
	"github.com/dmitrijs2005/wxcounter/internal/server/models"
	"github.com/dmitrijs2005/wxcounter/internal/server/services"
	"github.com/gin-gonic/gin"
)

// CounterLedger is the counter API the handlers depend on.
type CounterLedger interface {
	Create(ctx context.Context, ownerID int64, in services.NewCounter) (*models.Counter, error)
	List(ctx context.Context, ownerID int64) ([]*models.Counter, error)
	Get(ctx context.Context, id, ownerID int64) (*models.Counter, error)
	Reconfigure(ctx context.Context, id, ownerID int64, in services.CounterSettings) error
	Delete(ctx context.Context, id, ownerID int64) error
	ApplyDelta(ctx context.Context, id, ownerID, step int64) (*models.CounterRecord, error)
	Reorder(ctx context.Context, id, ownerID int64) (int64, error)
	ListRecords(ctx context.Context, id, ownerID int64) ([]*models.CounterRecord, error)
}

// SessionIssuer mints a token for a one-time login code.
type SessionIssuer interface {
	Login(ctx context.Context, code string) (string, error)
}

// Exporter uploads a snapshot of the caller's counters.
type Exporter interface {
	Export(ctx context.Context, ownerID int64) (*models.CounterExport, error)
}

type loginRequest struct {
	Code string `json:"code"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type createCounterRequest struct {
	Name      string `json:"name"`
	Value     int64  `json:"value"`
	Step      int64  `json:"step"`
	InputStep bool   `json:"input_step"`
}

type updateCounterRequest struct {
	Name      string `json:"name"`
	Step      int64  `json:"step"`
	InputStep bool   `json:"input_step"`
}

type addRecordRequest struct {
	CounterID int64 `json:"counter_id"`
	Step      int64 `json:"step"`
}

type handler struct {
	counters CounterLedger
	sessions SessionIssuer
	exports  Exporter
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		abortWithError(c, fmt.Errorf("%w: bad request body: %v", common.ErrorValidation, err))
		return false
	}
	return true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abortWithError(c, fmt.Errorf("%w: invalid id %q", common.ErrorValidation, c.Param("id")))
		return 0, false
	}
	return id, true
}

func respondOK(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{})
}

func (h *handler) login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	token, err := h.sessions.Login(c.Request.Context(), req.Code)
	if err != nil {
		loggerFrom(c).Info(c.Request.Context(), "login failed", "error", err.Error())
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{AccessToken: token, TokenType: common.BearerScheme})
}

func (h *handler) listCounters(c *gin.Context) {
	list, err := h.counters.List(c.Request.Context(), userIDFrom(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handler) createCounter(c *gin.Context) {
	var req createCounterRequest
	if !bindJSON(c, &req) {
		return
	}

	counter, err := h.counters.Create(c.Request.Context(), userIDFrom(c), services.NewCounter{
		Name:      req.Name,
		Value:     req.Value,
		Step:      req.Step,
		InputStep: req.InputStep,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, counter)
}

func (h *handler) showCounter(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	counter, err := h.counters.Get(c.Request.Context(), id, userIDFrom(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, counter)
}

func (h *handler) updateCounter(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req updateCounterRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.counters.Reconfigure(c.Request.Context(), id, userIDFrom(c), services.CounterSettings{
		Name:      req.Name,
		Step:      req.Step,
		InputStep: req.InputStep,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	respondOK(c)
}

func (h *handler) deleteCounter(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	if err := h.counters.Delete(c.Request.Context(), id, userIDFrom(c)); err != nil {
		abortWithError(c, err)
		return
	}
	respondOK(c)
}

func (h *handler) topCounter(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	if _, err := h.counters.Reorder(c.Request.Context(), id, userIDFrom(c)); err != nil {
		abortWithError(c, err)
		return
	}
	respondOK(c)
}

// addRecord applies a delta to the counter named in the path. A counter_id
// in the body, when given, must agree with it.
func (h *handler) addRecord(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req addRecordRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.CounterID != 0 && req.CounterID != id {
		abortWithError(c, fmt.Errorf("%w: counter_id %d does not match path id %d", common.ErrorValidation, req.CounterID, id))
		return
	}

	if _, err := h.counters.ApplyDelta(c.Request.Context(), id, userIDFrom(c), req.Step); err != nil {
		abortWithError(c, err)
		return
	}
	respondOK(c)
}

func (h *handler) listRecords(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	list, err := h.counters.ListRecords(c.Request.Context(), id, userIDFrom(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handler) export(c *gin.Context) {
	out, err := h.exports.Export(c.Request.Context(), userIDFrom(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
