package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"app/internal/domain/model"
	"app/internal/logging"
	repo "app/internal/repository"

	"github.com/shopspring/decimal"
)

type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// ゲートウェイに届かない（タイムアウト等）。同じ参照で再試行してよい
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// ゲートウェイ照会の結果
type VerifyResult struct {
	Captured    bool
	AmountMinor int64 // 最小通貨単位（kobo）
	PayerEmail  string
}

type PaymentGateway interface {
	Verify(ctx context.Context, reference string) (VerifyResult, error)
}

type OrderConfirmation struct {
	OrderID      int64
	CustomerName string
	TotalAmount  decimal.Decimal
	Address      string
	Items        []OrderItemOutput
}

type Mailer interface {
	SendOrderConfirmation(ctx context.Context, to string, o OrderConfirmation) error
}

type PaymentUsecase struct {
	tx       repo.TransactionManager
	orders   repo.OrderRepository // tx外の読み直し用
	gateway  PaymentGateway
	identity *IdentityResolver
	mailer   Mailer
}

func NewPaymentUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	gateway PaymentGateway,
	identity *IdentityResolver,
	mailer Mailer,
) *PaymentUsecase {
	return &PaymentUsecase{tx: tx, orders: orders, gateway: gateway, identity: identity, mailer: mailer}
}

type CartItemInput struct {
	DrugID      int64 // 0はカタログ参照なし
	ProductName string
	Quantity    int64
	Price       decimal.Decimal
}

type VerifyPaymentInput struct {
	Reference       string
	Items           []CartItemInput
	DeliveryAddress string
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	UserID          *int64 // ログイン済みならそのアカウント
}

type VerifyPaymentOutput struct {
	OrderID     int64           `json:"order_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      string          `json:"status"`
}

// VerifyAndReconcile はゲートウェイで支払いを確定確認し、注文を一度だけ永続化する。
// 同じ参照で何度呼ばれても注文は1件、返るIDも同じ。
func (u *PaymentUsecase) VerifyAndReconcile(ctx context.Context, in VerifyPaymentInput) (VerifyPaymentOutput, error) {
	reference := strings.TrimSpace(in.Reference)
	if reference == "" || len(reference) > 100 {
		return VerifyPaymentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid reference")
	}
	if len(in.Items) == 0 {
		return VerifyPaymentOutput{}, NewHTTPError(http.StatusBadRequest, "cart empty")
	}
	if strings.TrimSpace(in.DeliveryAddress) == "" {
		return VerifyPaymentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid address")
	}
	if strings.TrimSpace(in.CustomerName) == "" || strings.TrimSpace(in.CustomerEmail) == "" {
		return VerifyPaymentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid customer details")
	}
	for _, it := range in.Items {
		if strings.TrimSpace(it.ProductName) == "" {
			return VerifyPaymentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid item name")
		}
		if it.Quantity <= 0 {
			return VerifyPaymentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid item quantity")
		}
		if it.Price.IsNegative() {
			return VerifyPaymentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid item price")
		}
	}

	//ゲートウェイに照会。ここで書き込みはまだしない
	res, err := u.gateway.Verify(ctx, reference)
	if err != nil {
		if errors.Is(err, ErrGatewayUnavailable) {
			return VerifyPaymentOutput{}, NewHTTPError(http.StatusBadGateway, "payment gateway unavailable")
		}
		return VerifyPaymentOutput{}, NewHTTPError(http.StatusBadGateway, "payment verification failed")
	}
	if !res.Captured {
		return VerifyPaymentOutput{}, NewHTTPError(http.StatusBadRequest, "payment not captured")
	}

	//金額はゲートウェイ確定値（kobo→naira）
	total := decimal.NewFromInt(res.AmountMinor).Div(decimal.NewFromInt(100))

	//所有アカウントを解決（ゲストはメール一致で後付けリンク）
	userID, err := u.identity.Resolve(ctx, in.UserID, in.CustomerEmail)
	if err != nil {
		return VerifyPaymentOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	var out VerifyPaymentOutput
	created := false

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じ参照なら既存注文を返す
		existing, found, err := r.Orders().FindByReference(ctx, reference)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if found {
			out = VerifyPaymentOutput{OrderID: existing.ID, TotalAmount: existing.TotalAmount, Status: string(existing.Status)}
			return nil
		}

		//スナップショット（チェックアウト時点の名前・単価）
		now := time.Now()
		orderItems := make([]model.OrderItem, 0, len(in.Items))
		for _, it := range in.Items {
			var drugID *int64
			if it.DrugID > 0 {
				id := it.DrugID
				drugID = &id
			}
			orderItems = append(orderItems, model.OrderItem{
				DrugID:      drugID,
				ProductName: it.ProductName,
				Quantity:    it.Quantity,
				Price:       it.Price,
				CreatedAt:   now,
			})
		}

		orderID, err := r.Orders().Create(ctx, model.Order{
			UserID:            userID,
			CustomerName:      in.CustomerName,
			CustomerEmail:     in.CustomerEmail,
			CustomerPhone:     in.CustomerPhone,
			DeliveryAddress:   in.DeliveryAddress,
			TotalAmount:       total,
			PaystackReference: reference,
			Status:            model.OrderStatusPaid,
			CreatedAt:         now,
		})
		if err != nil {
			//一意制約違反後のtxは中断状態になるので、ここでは読み直さず
			//そのまま返してロールバックさせる
			if errors.Is(err, repo.ErrDuplicateReference) {
				return err
			}
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//注文明細一括作成
		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//在庫減算。支払いは外部で確定済みなので不足でも注文は落とさない
		u.decreaseStock(ctx, r, reference, in.Items)

		out = VerifyPaymentOutput{OrderID: orderID, TotalAmount: total, Status: string(model.OrderStatusPaid)}
		created = true
		return nil
	})

	if err != nil {
		//競合（同時照合が先に勝った）。相手のINSERTは一意制約違反が上がった時点で
		//コミット済みなので、新しいセッションで検索して同じ結果を返す
		if errors.Is(err, repo.ErrDuplicateReference) {
			existing, found, err2 := u.orders.FindByReference(ctx, reference)
			if err2 != nil || !found {
				return VerifyPaymentOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
			}
			return VerifyPaymentOutput{
				OrderID:     existing.ID,
				TotalAmount: existing.TotalAmount,
				Status:      string(existing.Status),
			}, nil
		}
		return VerifyPaymentOutput{}, err
	}

	//確認メールはベストエフォート。失敗してもコミット済みの注文は有効
	if created && u.mailer != nil {
		confirmation := OrderConfirmation{
			OrderID:      out.OrderID,
			CustomerName: in.CustomerName,
			TotalAmount:  total,
			Address:      in.DeliveryAddress,
			Items:        toItemOutputs(in.Items),
		}
		if err := u.mailer.SendOrderConfirmation(ctx, in.CustomerEmail, confirmation); err != nil {
			logging.FromCtx(ctx).Warn("order confirmation mail failed",
				"order_id", out.OrderID, "error", err)
		}
	}

	return out, nil
}

func (u *PaymentUsecase) decreaseStock(ctx context.Context, r repo.TxRepos, reference string, items []CartItemInput) {
	log := logging.FromCtx(ctx)
	for _, it := range items {
		if it.DrugID <= 0 {
			continue
		}
		d, err := r.Drugs().FindByID(ctx, it.DrugID)
		if err != nil {
			log.Warn("stock decrement skipped: drug not found",
				"reference", reference, "drug_id", it.DrugID)
			continue
		}
		ok, err := r.Inventory().DecreaseStockIfEnough(ctx, d.ID, it.Quantity)
		if err != nil {
			log.Warn("stock decrement failed",
				"reference", reference, "drug_id", d.ID, "error", err)
			continue
		}
		if !ok {
			log.Warn("stock decrement skipped: insufficient stock",
				"reference", reference, "drug_id", d.ID, "qty", it.Quantity)
		}
	}
}

func toItemOutputs(items []CartItemInput) []OrderItemOutput {
	outs := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		var drugID *int64
		if it.DrugID > 0 {
			id := it.DrugID
			drugID = &id
		}
		outs = append(outs, OrderItemOutput{
			DrugID:      drugID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.Price,
		})
	}
	return outs
}
