package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"app/internal/domain/model"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// TxManager / TxRepos mocks
// =====================

// TxManagerMock は WithinTx の中で渡す repos を固定して unit テストを回す
type TxManagerMock struct {
	mock.Mock
	Repos repo.TxRepos
}

func (m *TxManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	// 呼ばれた事実だけ記録（ctxの具体値は問わない）
	m.Called(ctx)
	return fn(m.Repos)
}

type TxReposMock struct {
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	drugs      repo.DrugRepository
	inventory  repo.InventoryRepository
}

func (r *TxReposMock) Orders() repo.OrderRepository         { return r.orders }
func (r *TxReposMock) OrderItems() repo.OrderItemRepository { return r.orderItems }
func (r *TxReposMock) Drugs() repo.DrugRepository           { return r.drugs }
func (r *TxReposMock) Inventory() repo.InventoryRepository  { return r.inventory }

// =====================
// Repository mocks
// =====================

type OrderRepoMock struct{ mock.Mock }

func (m *OrderRepoMock) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	panic("not used in PaymentUsecase tests")
}

func (m *OrderRepoMock) Create(ctx context.Context, order model.Order) (int64, error) {
	args := m.Called(ctx, order)
	return args.Get(0).(int64), args.Error(1)
}

func (m *OrderRepoMock) UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	panic("not used in PaymentUsecase tests")
}

func (m *OrderRepoMock) FindByReference(ctx context.Context, reference string) (model.Order, bool, error) {
	args := m.Called(ctx, reference)
	o, _ := args.Get(0).(model.Order)
	return o, args.Bool(1), args.Error(2)
}

func (m *OrderRepoMock) ListByUserID(ctx context.Context, userID int64) ([]model.Order, error) {
	panic("not used in PaymentUsecase tests")
}

func (m *OrderRepoMock) ListAll(ctx context.Context) ([]model.Order, error) {
	panic("not used in PaymentUsecase tests")
}

type OrderItemRepoMock struct{ mock.Mock }

func (m *OrderItemRepoMock) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	args := m.Called(ctx, orderID, items)
	return args.Error(0)
}

func (m *OrderItemRepoMock) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	panic("not used in PaymentUsecase tests")
}

func (m *OrderItemRepoMock) ListByOrderIDs(ctx context.Context, orderIDs []int64) ([]model.OrderItem, error) {
	panic("not used in PaymentUsecase tests")
}

type DrugRepoMock struct{ mock.Mock }

func (m *DrugRepoMock) FindByID(ctx context.Context, id int64) (model.Drug, error) {
	args := m.Called(ctx, id)
	d, _ := args.Get(0).(model.Drug)
	return d, args.Error(1)
}

type InventoryRepoMock struct{ mock.Mock }

func (m *InventoryRepoMock) DecreaseStockIfEnough(ctx context.Context, drugID int64, qty int64) (bool, error) {
	args := m.Called(ctx, drugID, qty)
	return args.Bool(0), args.Error(1)
}

type UserRepoMock struct{ mock.Mock }

func (m *UserRepoMock) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

// =====================
// Collaborator mocks
// =====================

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) Verify(ctx context.Context, reference string) (usecase.VerifyResult, error) {
	args := m.Called(ctx, reference)
	res, _ := args.Get(0).(usecase.VerifyResult)
	return res, args.Error(1)
}

type MailerMock struct{ mock.Mock }

func (m *MailerMock) SendOrderConfirmation(ctx context.Context, to string, o usecase.OrderConfirmation) error {
	args := m.Called(ctx, to, o)
	return args.Error(0)
}

// =====================
// Helpers
// =====================

func assertErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, strings.Contains(err.Error(), wantSubstr), "err=%q want contains %q", err.Error(), wantSubstr)
	}
}

func guestInput(reference string) usecase.VerifyPaymentInput {
	return usecase.VerifyPaymentInput{
		Reference: reference,
		Items: []usecase.CartItemInput{
			{DrugID: 7, ProductName: "Panadol Extra", Quantity: 2, Price: decimal.NewFromInt(500)},
		},
		DeliveryAddress: "12 Lagos Rd",
		CustomerName:    "Ada Obi",
		CustomerEmail:   "ada@example.com",
		CustomerPhone:   "08030000000",
	}
}

func newEngine(tx *TxManagerMock, outsideOrders *OrderRepoMock, gw *GatewayMock, users *UserRepoMock, mailer usecase.Mailer) *usecase.PaymentUsecase {
	return usecase.NewPaymentUsecase(tx, outsideOrders, gw, usecase.NewIdentityResolver(users), mailer)
}

// =====================
// Validation
// =====================

func TestVerifyAndReconcile_EmptyReference(t *testing.T) {
	uc := newEngine(new(TxManagerMock), new(OrderRepoMock), new(GatewayMock), new(UserRepoMock), nil)

	in := guestInput("")
	_, err := uc.VerifyAndReconcile(context.Background(), in)
	assertErrContains(t, err, "invalid reference")
}

func TestVerifyAndReconcile_EmptyCart(t *testing.T) {
	uc := newEngine(new(TxManagerMock), new(OrderRepoMock), new(GatewayMock), new(UserRepoMock), nil)

	in := guestInput("REF-1001")
	in.Items = nil
	_, err := uc.VerifyAndReconcile(context.Background(), in)
	assertErrContains(t, err, "cart empty")
}

func TestVerifyAndReconcile_EmptyAddress(t *testing.T) {
	uc := newEngine(new(TxManagerMock), new(OrderRepoMock), new(GatewayMock), new(UserRepoMock), nil)

	in := guestInput("REF-1001")
	in.DeliveryAddress = "  "
	_, err := uc.VerifyAndReconcile(context.Background(), in)
	assertErrContains(t, err, "invalid address")
}

func TestVerifyAndReconcile_InvalidQuantity(t *testing.T) {
	uc := newEngine(new(TxManagerMock), new(OrderRepoMock), new(GatewayMock), new(UserRepoMock), nil)

	in := guestInput("REF-1001")
	in.Items[0].Quantity = 0
	_, err := uc.VerifyAndReconcile(context.Background(), in)
	assertErrContains(t, err, "invalid item quantity")
}

// =====================
// Gateway outcomes
// =====================

func TestVerifyAndReconcile_GatewayUnavailable(t *testing.T) {
	tx := new(TxManagerMock)
	gw := new(GatewayMock)

	gw.On("Verify", mock.Anything, "REF-3003").
		Return(usecase.VerifyResult{}, usecase.ErrGatewayUnavailable)

	uc := newEngine(tx, new(OrderRepoMock), gw, new(UserRepoMock), nil)

	_, err := uc.VerifyAndReconcile(context.Background(), guestInput("REF-3003"))
	assertErrContains(t, err, "payment gateway unavailable")
	tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

func TestVerifyAndReconcile_NotCaptured_NoOrderCreated(t *testing.T) {
	tx := new(TxManagerMock)
	gw := new(GatewayMock)

	gw.On("Verify", mock.Anything, "REF-2002").
		Return(usecase.VerifyResult{Captured: false}, nil)

	uc := newEngine(tx, new(OrderRepoMock), gw, new(UserRepoMock), nil)

	_, err := uc.VerifyAndReconcile(context.Background(), guestInput("REF-2002"))
	assertErrContains(t, err, "payment not captured")

	//行は一切書かれない
	tx.AssertNotCalled(t, "WithinTx", mock.Anything)
	gw.AssertExpectations(t)
}

// =====================
// Reconciliation
// =====================

func TestVerifyAndReconcile_CreatesOrderWithGatewayTotal(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	gw := new(GatewayMock)
	users := new(UserRepoMock)
	ordersRepo := new(OrderRepoMock)
	itemsRepo := new(OrderItemRepoMock)
	drugsRepo := new(DrugRepoMock)
	invRepo := new(InventoryRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, orderItems: itemsRepo, drugs: drugsRepo, inventory: invRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	//500000 kobo = 5000.00 naira
	gw.On("Verify", mock.Anything, "REF-1001").
		Return(usecase.VerifyResult{Captured: true, AmountMinor: 500000, PayerEmail: "ada@example.com"}, nil)

	//純粋なゲスト
	users.On("FindByEmail", mock.Anything, "ada@example.com").Return(nil, repo.ErrUserNotFound)

	ordersRepo.On("FindByReference", mock.Anything, "REF-1001").Return(model.Order{}, false, nil)
	ordersRepo.On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.UserID == nil &&
			o.PaystackReference == "REF-1001" &&
			o.Status == model.OrderStatusPaid &&
			o.TotalAmount.Equal(decimal.NewFromInt(5000)) &&
			o.DeliveryAddress == "12 Lagos Rd"
	})).Return(int64(42), nil)

	itemsRepo.On("CreateBulk", mock.Anything, int64(42), mock.MatchedBy(func(items []model.OrderItem) bool {
		return len(items) == 1 &&
			items[0].ProductName == "Panadol Extra" &&
			items[0].Quantity == 2 &&
			items[0].Price.Equal(decimal.NewFromInt(500)) &&
			items[0].DrugID != nil && *items[0].DrugID == 7
	})).Return(nil)

	drugsRepo.On("FindByID", mock.Anything, int64(7)).Return(model.Drug{ID: 7, Name: "Panadol Extra", Stock: 10}, nil)
	invRepo.On("DecreaseStockIfEnough", mock.Anything, int64(7), int64(2)).Return(true, nil)

	uc := newEngine(tx, new(OrderRepoMock), gw, users, nil)

	out, err := uc.VerifyAndReconcile(ctx, guestInput("REF-1001"))
	assert.NoError(t, err)
	assert.Equal(t, int64(42), out.OrderID)
	assert.True(t, out.TotalAmount.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, "paid", out.Status)

	tx.AssertExpectations(t)
	ordersRepo.AssertExpectations(t)
	itemsRepo.AssertExpectations(t)
	invRepo.AssertExpectations(t)
}

func TestVerifyAndReconcile_SameReferenceReturnsExistingOrder(t *testing.T) {
	tx := new(TxManagerMock)
	gw := new(GatewayMock)
	users := new(UserRepoMock)
	ordersRepo := new(OrderRepoMock)
	mailer := new(MailerMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	gw.On("Verify", mock.Anything, "REF-1001").
		Return(usecase.VerifyResult{Captured: true, AmountMinor: 500000}, nil)
	users.On("FindByEmail", mock.Anything, "ada@example.com").Return(nil, repo.ErrUserNotFound)

	existing := model.Order{ID: 42, TotalAmount: decimal.NewFromInt(5000), Status: model.OrderStatusPaid}
	ordersRepo.On("FindByReference", mock.Anything, "REF-1001").Return(existing, true, nil)

	uc := newEngine(tx, new(OrderRepoMock), gw, users, mailer)

	out, err := uc.VerifyAndReconcile(context.Background(), guestInput("REF-1001"))
	assert.NoError(t, err)
	assert.Equal(t, int64(42), out.OrderID)

	//Createは呼ばれず、メールも再送しない
	ordersRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	mailer.AssertNotCalled(t, "SendOrderConfirmation", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyAndReconcile_DuplicateRaceFallsBackToExisting(t *testing.T) {
	tx := new(TxManagerMock)
	gw := new(GatewayMock)
	users := new(UserRepoMock)
	txOrders := new(OrderRepoMock)
	outsideOrders := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: txOrders}
	tx.On("WithinTx", mock.Anything).Return(nil)

	gw.On("Verify", mock.Anything, "REF-1001").
		Return(usecase.VerifyResult{Captured: true, AmountMinor: 500000}, nil)
	users.On("FindByEmail", mock.Anything, "ada@example.com").Return(nil, repo.ErrUserNotFound)

	//tx内では未作成→Createで一意制約違反。
	//23505後のtxは中断状態なので、再検索はロールバック後に別セッションで行うこと
	existing := model.Order{ID: 77, TotalAmount: decimal.NewFromInt(5000), Status: model.OrderStatusPaid}
	txOrders.On("FindByReference", mock.Anything, "REF-1001").Return(model.Order{}, false, nil).Once()
	txOrders.On("Create", mock.Anything, mock.Anything).Return(int64(0), repo.ErrDuplicateReference)
	outsideOrders.On("FindByReference", mock.Anything, "REF-1001").Return(existing, true, nil).Once()

	uc := newEngine(tx, outsideOrders, gw, users, nil)

	out, err := uc.VerifyAndReconcile(context.Background(), guestInput("REF-1001"))
	assert.NoError(t, err)
	assert.Equal(t, int64(77), out.OrderID)
	assert.Equal(t, "paid", out.Status)

	//失敗したtx側のreposで読み直していないこと
	txOrders.AssertNumberOfCalls(t, "FindByReference", 1)
	txOrders.AssertExpectations(t)
	outsideOrders.AssertExpectations(t)
}

// =====================
// Guest linking
// =====================

func TestVerifyAndReconcile_GuestEmailLinksExistingAccount(t *testing.T) {
	tx := new(TxManagerMock)
	gw := new(GatewayMock)
	users := new(UserRepoMock)
	ordersRepo := new(OrderRepoMock)
	itemsRepo := new(OrderItemRepoMock)
	drugsRepo := new(DrugRepoMock)
	invRepo := new(InventoryRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, orderItems: itemsRepo, drugs: drugsRepo, inventory: invRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	gw.On("Verify", mock.Anything, "REF-5005").
		Return(usecase.VerifyResult{Captured: true, AmountMinor: 100000}, nil)

	//メール一致で既存アカウントにリンク
	users.On("FindByEmail", mock.Anything, "ada@example.com").
		Return(&model.User{ID: 9, Email: "ada@example.com"}, nil)

	ordersRepo.On("FindByReference", mock.Anything, "REF-5005").Return(model.Order{}, false, nil)
	ordersRepo.On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.UserID != nil && *o.UserID == 9
	})).Return(int64(1), nil)
	itemsRepo.On("CreateBulk", mock.Anything, int64(1), mock.Anything).Return(nil)
	drugsRepo.On("FindByID", mock.Anything, int64(7)).Return(model.Drug{ID: 7}, nil)
	invRepo.On("DecreaseStockIfEnough", mock.Anything, int64(7), int64(2)).Return(true, nil)

	uc := newEngine(tx, new(OrderRepoMock), gw, users, nil)

	_, err := uc.VerifyAndReconcile(context.Background(), guestInput("REF-5005"))
	assert.NoError(t, err)
	ordersRepo.AssertExpectations(t)
}

// =====================
// Notification
// =====================

func TestVerifyAndReconcile_MailFailureDoesNotFailOrder(t *testing.T) {
	tx := new(TxManagerMock)
	gw := new(GatewayMock)
	users := new(UserRepoMock)
	ordersRepo := new(OrderRepoMock)
	itemsRepo := new(OrderItemRepoMock)
	drugsRepo := new(DrugRepoMock)
	invRepo := new(InventoryRepoMock)
	mailer := new(MailerMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, orderItems: itemsRepo, drugs: drugsRepo, inventory: invRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	gw.On("Verify", mock.Anything, "REF-6006").
		Return(usecase.VerifyResult{Captured: true, AmountMinor: 250000}, nil)
	users.On("FindByEmail", mock.Anything, "ada@example.com").Return(nil, repo.ErrUserNotFound)

	ordersRepo.On("FindByReference", mock.Anything, "REF-6006").Return(model.Order{}, false, nil)
	ordersRepo.On("Create", mock.Anything, mock.Anything).Return(int64(5), nil)
	itemsRepo.On("CreateBulk", mock.Anything, int64(5), mock.Anything).Return(nil)
	drugsRepo.On("FindByID", mock.Anything, int64(7)).Return(model.Drug{ID: 7}, nil)
	invRepo.On("DecreaseStockIfEnough", mock.Anything, int64(7), int64(2)).Return(true, nil)

	mailer.On("SendOrderConfirmation", mock.Anything, "ada@example.com", mock.Anything).
		Return(errors.New("smtp down"))

	uc := newEngine(tx, new(OrderRepoMock), gw, users, mailer)

	out, err := uc.VerifyAndReconcile(context.Background(), guestInput("REF-6006"))
	assert.NoError(t, err)
	assert.Equal(t, int64(5), out.OrderID)
	mailer.AssertExpectations(t)
}

// =====================
// Stock decrement
// =====================

func TestVerifyAndReconcile_InsufficientStockStillCommitsOrder(t *testing.T) {
	tx := new(TxManagerMock)
	gw := new(GatewayMock)
	users := new(UserRepoMock)
	ordersRepo := new(OrderRepoMock)
	itemsRepo := new(OrderItemRepoMock)
	drugsRepo := new(DrugRepoMock)
	invRepo := new(InventoryRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, orderItems: itemsRepo, drugs: drugsRepo, inventory: invRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	gw.On("Verify", mock.Anything, "REF-7007").
		Return(usecase.VerifyResult{Captured: true, AmountMinor: 500000}, nil)
	users.On("FindByEmail", mock.Anything, "ada@example.com").Return(nil, repo.ErrUserNotFound)

	ordersRepo.On("FindByReference", mock.Anything, "REF-7007").Return(model.Order{}, false, nil)
	ordersRepo.On("Create", mock.Anything, mock.Anything).Return(int64(8), nil)
	itemsRepo.On("CreateBulk", mock.Anything, int64(8), mock.Anything).Return(nil)
	drugsRepo.On("FindByID", mock.Anything, int64(7)).Return(model.Drug{ID: 7}, nil)

	//在庫不足。支払いは確定済みなので注文はそのまま通る
	invRepo.On("DecreaseStockIfEnough", mock.Anything, int64(7), int64(2)).Return(false, nil)

	uc := newEngine(tx, new(OrderRepoMock), gw, users, nil)

	out, err := uc.VerifyAndReconcile(context.Background(), guestInput("REF-7007"))
	assert.NoError(t, err)
	assert.Equal(t, int64(8), out.OrderID)
	invRepo.AssertExpectations(t)
}
