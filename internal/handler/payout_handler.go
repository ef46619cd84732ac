package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/isolexIO/chainlink-pos-sub003/internal/auth"
	"github.com/isolexIO/chainlink-pos-sub003/internal/logger"
	"github.com/isolexIO/chainlink-pos-sub003/internal/logic"
	"github.com/isolexIO/chainlink-pos-sub003/internal/model"
	"github.com/isolexIO/chainlink-pos-sub003/internal/scheduler"
)

type PayoutHandler struct {
	payoutLogic   *logic.PayoutLogic
	dispatchLogic *logic.DispatchLogic
	scheduler     *scheduler.PayoutScheduler
	policy        *auth.Policy
	now           func() time.Time
}

func NewPayoutHandler(payoutLogic *logic.PayoutLogic, dispatchLogic *logic.DispatchLogic, payoutScheduler *scheduler.PayoutScheduler, policy *auth.Policy, now func() time.Time) *PayoutHandler {
	if now == nil {
		now = time.Now
	}
	return &PayoutHandler{
		payoutLogic:   payoutLogic,
		dispatchLogic: dispatchLogic,
		scheduler:     payoutScheduler,
		policy:        policy,
		now:           now,
	}
}

// bindOptionalJSON 允许空请求体
func bindOptionalJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// AggregatePayouts 生成周期打款单
func (h *PayoutHandler) AggregatePayouts(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req AggregatePayoutsRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	start, err := parseOptionalTime("force_period_start", req.ForcePeriodStart)
	if err != nil {
		HandleError(c, err)
		return
	}
	end, err := parseOptionalTime("force_period_end", req.ForcePeriodEnd)
	if err != nil {
		HandleError(c, err)
		return
	}

	result, err := h.payoutLogic.AggregatePayouts(c.Request.Context(), actor, logic.AggregateRequest{
		DealerId:         req.DealerId,
		ForcePeriodStart: start,
		ForcePeriodEnd:   end,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Payout aggregation finished", result)
}

// PreviewPayout 预估经销商本周期打款
func (h *PayoutHandler) PreviewPayout(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req PreviewPayoutRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	start, err := parseOptionalTime("period_start", req.PeriodStart)
	if err != nil {
		HandleError(c, err)
		return
	}
	end, err := parseOptionalTime("period_end", req.PeriodEnd)
	if err != nil {
		HandleError(c, err)
		return
	}

	preview, err := h.payoutLogic.PreviewPayout(c.Request.Context(), actor, req.DealerId, start, end)
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Payout preview", PreviewPayoutResponse{Preview: preview})
}

// ProcessPayout 派发单个打款单
func (h *PayoutHandler) ProcessPayout(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req ProcessPayoutRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	if req.PayoutId == "" {
		ErrorResponse(c, http.StatusBadRequest, "payout_id is required")
		return
	}

	result, err := h.dispatchLogic.Dispatch(c.Request.Context(), actor, req.PayoutId)
	respondDispatch(c, result, err)
}

// RunSchedule 手动执行一次每日调度
func (h *PayoutHandler) RunSchedule(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if err := h.policy.Authorize(actor, auth.ActionRunSchedule, auth.Resource{}); err != nil {
		HandleError(c, err)
		return
	}

	result, err := h.scheduler.RunDaily(c.Request.Context(), h.now())
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Payout schedule run finished", result)
}

// CancelPayout 取消打款单
func (h *PayoutHandler) CancelPayout(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req CancelPayoutRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	if req.PayoutId == "" {
		ErrorResponse(c, http.StatusBadRequest, "payout_id is required")
		return
	}

	payout, err := h.payoutLogic.CancelPayout(c.Request.Context(), actor, req.PayoutId, req.Reason)
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Payout canceled", CancelPayoutResponse{
		PayoutId: payout.Id,
		Status:   payout.Status,
		Payout:   payout,
	})
}

// TriggerPayout 人工触发打款
func (h *PayoutHandler) TriggerPayout(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req TriggerPayoutRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	if req.PayoutId == "" {
		ErrorResponse(c, http.StatusBadRequest, "payout_id is required")
		return
	}
	bypass, err := parseBool("bypass_minimum", req.BypassMinimum)
	if err != nil {
		HandleError(c, err)
		return
	}

	result, err := h.payoutLogic.TriggerPayout(c.Request.Context(), actor, req.PayoutId, bypass)
	respondDispatch(c, result, err)
}

// GetPayout 获取打款单详情
func (h *PayoutHandler) GetPayout(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	payout, err := h.payoutLogic.GetPayout(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "", GetPayoutResponse{Payout: payout})
}

// GetDealerPayouts 分页获取经销商打款单
func (h *PayoutHandler) GetDealerPayouts(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	status := model.PayoutStatus(c.Query("status"))

	payouts, total, err := h.payoutLogic.ListDealerPayouts(c.Request.Context(), actor, c.Param("id"), status, page, pageSize)
	if err != nil {
		HandleError(c, err)
		return
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	SuccessResponse(c, http.StatusOK, "", GetDealerPayoutsResponse{
		Payouts:    payouts,
		Pagination: newPagination(page, pageSize, total),
	})
}

// respondDispatch 输出派发结果：渠道失败为 422，派发中异常为 500，两者都带结果
func respondDispatch(c *gin.Context, result *logic.DispatchResult, err error) {
	if err != nil {
		if result != nil && errors.Is(err, logic.ErrDispatchFailed) {
			logger.Error("Dispatch of payout %s failed unexpectedly: %v", result.PayoutId, err)
			FailureResponse(c, http.StatusInternalServerError, "payout dispatch failed", result)
			return
		}
		HandleError(c, err)
		return
	}
	if !result.Success {
		FailureResponse(c, http.StatusUnprocessableEntity, result.Error, result)
		return
	}
	SuccessResponse(c, http.StatusOK, "Payout dispatched", result)
}
