package handler

import (
	"net/http"

	"app/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type PaymentHandler struct {
	uc        *usecase.PaymentUsecase
	publicKey string
}

func NewPaymentHandler(uc *usecase.PaymentUsecase, publicKey string) *PaymentHandler {
	return &PaymentHandler{uc: uc, publicKey: publicKey}
}

type CartItemRequest struct {
	ID          int64           `json:"id"`
	ProductName string          `json:"productName"`
	Qty         int64           `json:"qty"`
	Price       decimal.Decimal `json:"price"`
}

type CheckoutUserRequest struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type GuestDetailsRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type VerifyPaymentRequest struct {
	Reference    string               `json:"reference"`
	CartItems    []CartItemRequest    `json:"cartItems"`
	Address      string               `json:"address"`
	User         *CheckoutUserRequest `json:"user"`
	GuestDetails *GuestDetailsRequest `json:"guestDetails"`
}

type VerifyPaymentResponse struct {
	Success bool                        `json:"success"`
	Message string                      `json:"message"`
	Data    usecase.VerifyPaymentOutput `json:"data"`
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/payment")

	//ゲスト購入もあるので認証は必須にしない
	g.GET("/config", h.config)
	g.POST("/verify", h.verify)
}

// フロントがPaystackの初期化に使う公開キーを返す
func (h *PaymentHandler) config(c echo.Context) error {
	if h.publicKey == "" {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "public key not configured"})
	}
	return c.JSON(http.StatusOK, map[string]string{"key": h.publicKey})
}

func (h *PaymentHandler) verify(c echo.Context) error {
	var req VerifyPaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	in := usecase.VerifyPaymentInput{
		Reference:       req.Reference,
		DeliveryAddress: req.Address,
	}

	//ログイン済みかゲストかで連絡先の出どころが変わる
	if req.User != nil {
		in.CustomerName = req.User.Name
		in.CustomerEmail = req.User.Email
		in.CustomerPhone = req.User.Phone
		if req.User.ID > 0 {
			id := req.User.ID
			in.UserID = &id
		}
	} else if req.GuestDetails != nil {
		in.CustomerName = req.GuestDetails.Name
		in.CustomerEmail = req.GuestDetails.Email
		in.CustomerPhone = req.GuestDetails.Phone
	}

	in.Items = make([]usecase.CartItemInput, 0, len(req.CartItems))
	for _, it := range req.CartItems {
		in.Items = append(in.Items, usecase.CartItemInput{
			DrugID:      it.ID,
			ProductName: it.ProductName,
			Quantity:    it.Qty,
			Price:       it.Price,
		})
	}

	out, err := h.uc.VerifyAndReconcile(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, VerifyPaymentResponse{
		Success: true,
		Message: "payment verified",
		Data:    out,
	})
}
