package payment

import (
	"encoding/json"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/cbhub/internal/common"
)

// Handler exposes the verification endpoint.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type verifyReq struct {
	Reference string `json:"reference" validate:"required"`
}

type verifyResp struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// VerifyPayment handles POST /verify-payment.
func (h Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "verification unavailable", nil)
		return
	}
	var req verifyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSON(w, http.StatusBadRequest, verifyResp{Message: "Invalid request body"})
		return
	}
	req.Reference = strings.TrimSpace(req.Reference)
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSON(w, http.StatusBadRequest, verifyResp{Message: "No reference provided"})
			return
		}
	}

	res, err := h.Svc.Verify(r.Context(), req.Reference)
	if err != nil {
		status, msg := common.StatusOf(err, http.StatusInternalServerError, "Server error during verification")
		common.JSON(w, status, verifyResp{Message: msg})
		return
	}
	common.JSON(w, http.StatusOK, verifyResp{Success: res.Success, Message: res.Message, Data: res.Data})
}
