package controllers

import (
	"net/http"

	apperrors "github.com/AriMathi1/Fitness-app-server/common/errors"
	"github.com/AriMathi1/Fitness-app-server/middleware"
	"github.com/AriMathi1/Fitness-app-server/models"
	"github.com/AriMathi1/Fitness-app-server/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PaymentController struct {
	service  services.PaymentService
	verifier EventVerifier
	logger   *zap.Logger
}

func NewPaymentController(service services.PaymentService, verifier EventVerifier, logger *zap.Logger) *PaymentController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentController{service: service, verifier: verifier, logger: logger}
}

func principalOrAbort(c *gin.Context) (string, bool) {
	p, err := middleware.GetPrincipal(c)
	if err != nil {
		apperrors.Respond(c, apperrors.ErrUnauthorized)
		return "", false
	}
	return p.UserID, true
}

// CreateIntent opens a processor intent for the caller's booking.
func (pc *PaymentController) CreateIntent(c *gin.Context) {
	userID, ok := principalOrAbort(c)
	if !ok {
		return
	}

	var req models.CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, apperrors.Validation(bindingMessage(err), err))
		return
	}

	res, err := pc.service.CreateIntent(c.Request.Context(), services.CreateIntentInput{
		BookingID:     req.BookingID,
		UserID:        userID,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		pc.respondError(c, "create intent failed", err)
		return
	}

	c.JSON(http.StatusCreated, models.CreateIntentResponse{
		PaymentID:    res.PaymentID,
		ClientSecret: res.ClientSecret,
		Amount:       res.Amount,
	})
}

// Confirm completes a payment once the processor reports the intent succeeded.
func (pc *PaymentController) Confirm(c *gin.Context) {
	if _, ok := principalOrAbort(c); !ok {
		return
	}

	var req models.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, apperrors.Validation(bindingMessage(err), err))
		return
	}

	payment, err := pc.service.Confirm(c.Request.Context(), req.PaymentIntentID)
	if err != nil {
		pc.respondError(c, "confirm payment failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// Refund fully refunds one of the caller's completed payments.
func (pc *PaymentController) Refund(c *gin.Context) {
	userID, ok := principalOrAbort(c)
	if !ok {
		return
	}

	var req models.RefundRequest
	// The body is optional.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			apperrors.Respond(c, apperrors.Validation(bindingMessage(err), err))
			return
		}
	}

	res, err := pc.service.Refund(c.Request.Context(), services.RefundInput{
		PaymentID: c.Param("id"),
		UserID:    userID,
		Reason:    req.Reason,
	})
	if err != nil {
		pc.respondError(c, "refund failed", err)
		return
	}

	c.JSON(http.StatusOK, models.RefundResponse{
		RefundID:  res.RefundID,
		PaymentID: res.PaymentID,
		Amount:    res.Amount,
		Status:    res.Status,
	})
}

func (pc *PaymentController) ListPayments(c *gin.Context) {
	userID, ok := principalOrAbort(c)
	if !ok {
		return
	}

	var q models.ListPaymentsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		apperrors.Respond(c, apperrors.Validation(bindingMessage(err), err))
		return
	}

	payments, total, err := pc.service.ListPayments(c.Request.Context(), userID, q.Page, q.Limit)
	if err != nil {
		pc.respondError(c, "list payments failed", err)
		return
	}
	if payments == nil {
		payments = []models.Payment{}
	}

	c.JSON(http.StatusOK, models.PaymentListResponse{
		Payments: payments,
		Total:    total,
		Page:     q.Page,
		Limit:    q.Limit,
	})
}

func (pc *PaymentController) GetPayment(c *gin.Context) {
	p, err := middleware.GetPrincipal(c)
	if err != nil {
		apperrors.Respond(c, apperrors.ErrUnauthorized)
		return
	}

	payment, err := pc.service.GetPayment(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		pc.respondError(c, "get payment failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// respondError logs server-side failures and writes the JSON error body.
func (pc *PaymentController) respondError(c *gin.Context, msg string, err error) {
	appErr := apperrors.From(err)
	if appErr.Code >= http.StatusInternalServerError {
		pc.logger.Error(msg, zap.Int("status", appErr.Code), zap.Error(err))
	} else {
		pc.logger.Warn(msg, zap.Int("status", appErr.Code), zap.String("error", appErr.Message))
	}
	apperrors.Respond(c, appErr)
}
