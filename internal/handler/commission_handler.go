package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/isolexIO/chainlink-pos-sub003/internal/logic"
)

type CommissionHandler struct {
	commissionLogic *logic.CommissionLogic
}

func NewCommissionHandler(commissionLogic *logic.CommissionLogic) *CommissionHandler {
	return &CommissionHandler{
		commissionLogic: commissionLogic,
	}
}

// AccrueCommissions 为当前结算月计提全部经销商佣金
func (h *CommissionHandler) AccrueCommissions(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	result, err := h.commissionLogic.AccrueCommissions(c.Request.Context(), actor)
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Commission accrual finished", result)
}
