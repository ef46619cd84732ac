package handler

import (
	"fmt"
	"time"

	"github.com/isolexIO/chainlink-pos-sub003/internal/logic"
	"github.com/isolexIO/chainlink-pos-sub003/internal/model"
	"github.com/spf13/cast"
)

// 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// 分页信息结构
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"pageSize"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"totalPage"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	p := Pagination{Page: page, PageSize: pageSize, Total: total}
	if pageSize > 0 {
		p.TotalPage = (total + int64(pageSize) - 1) / int64(pageSize)
	}
	return p
}

// 请求模型；时间与布尔字段用 interface{} 接收，兼容字符串或原生类型

// AggregatePayoutsRequest 聚合打款请求
type AggregatePayoutsRequest struct {
	DealerId         string      `json:"dealer_id"`
	ForcePeriodStart interface{} `json:"force_period_start"`
	ForcePeriodEnd   interface{} `json:"force_period_end"`
}

// PreviewPayoutRequest 打款预览请求
type PreviewPayoutRequest struct {
	DealerId    string      `json:"dealer_id"`
	PeriodStart interface{} `json:"period_start"`
	PeriodEnd   interface{} `json:"period_end"`
}

// ProcessPayoutRequest 派发打款请求
type ProcessPayoutRequest struct {
	PayoutId string `json:"payout_id"`
}

// CancelPayoutRequest 取消打款请求
type CancelPayoutRequest struct {
	PayoutId string `json:"payout_id"`
	Reason   string `json:"reason"`
}

// TriggerPayoutRequest 人工触发打款请求
type TriggerPayoutRequest struct {
	PayoutId      string      `json:"payout_id"`
	BypassMinimum interface{} `json:"bypass_minimum"`
}

// 响应模型

// PreviewPayoutResponse 打款预览响应
type PreviewPayoutResponse struct {
	Preview *logic.Preview `json:"preview"`
}

// GetPayoutResponse 打款单详情响应
type GetPayoutResponse struct {
	Payout *model.DealerPayoutModel `json:"payout"`
}

// CancelPayoutResponse 取消打款响应
type CancelPayoutResponse struct {
	PayoutId string                   `json:"payout_id"`
	Status   model.PayoutStatus       `json:"status"`
	Payout   *model.DealerPayoutModel `json:"payout"`
}

// GetDealerPayoutsResponse 经销商打款单列表响应
type GetDealerPayoutsResponse struct {
	Payouts    []model.DealerPayoutModel `json:"payouts"`
	Pagination Pagination                `json:"pagination"`
}

// parseOptionalTime 解析可选时间，支持 RFC3339 与 YYYY-MM-DD，按 UTC 解释
func parseOptionalTime(field string, v interface{}) (*time.Time, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok && s == "" {
		return nil, nil
	}
	t, err := cast.ToTimeInDefaultLocationE(v, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not a valid time", logic.ErrInvalidInput, field)
	}
	t = t.UTC()
	return &t, nil
}

func parseBool(field string, v interface{}) (bool, error) {
	if v == nil {
		return false, nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", logic.ErrInvalidInput, field)
	}
	return b, nil
}
