package service

import (
	"context"
	"strings"
	"time"

	"kart-checkout/internal/gateway"
	"kart-checkout/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockTx is a minimal mock implementation of pgx.Tx for testing.
type MockTx struct {
	mock.Mock
	committed  bool
	rolledBack bool
}

func (m *MockTx) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	m.committed = true
	return args.Error(0)
}

func (m *MockTx) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	m.rolledBack = true
	return args.Error(0)
}

// Stub methods to satisfy pgx.Tx interface - these are not used in our tests
func (m *MockTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }
func (m *MockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (m *MockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (m *MockTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (m *MockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (m *MockTx) Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error) {
	return
}
func (m *MockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (m *MockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (m *MockTx) Conn() *pgx.Conn                                               { return nil }

// newMockTx returns a tx whose rollback is tolerated and whose commit succeeds.
func newMockTx() *MockTx {
	tx := &MockTx{}
	tx.On("Rollback", mock.Anything).Return(nil).Maybe()
	tx.On("Commit", mock.Anything).Return(nil).Maybe()
	return tx
}

func beginTx(args mock.Arguments) (pgx.Tx, error) {
	if tx, ok := args.Get(0).(pgx.Tx); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockCartRepository is a mock implementation of CartRepository.
type MockCartRepository struct {
	mock.Mock
}

func (m *MockCartRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return beginTx(m.Called(ctx))
}

func (m *MockCartRepository) GetCart(ctx context.Context, id uuid.UUID) (*model.Cart, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Cart), args.Error(1)
}

func (m *MockCartRepository) GetActiveCartForUpdate(ctx context.Context, tx pgx.Tx, customerID string) (*model.Cart, error) {
	args := m.Called(ctx, tx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Cart), args.Error(1)
}

func (m *MockCartRepository) CreateCart(ctx context.Context, tx pgx.Tx, cart *model.Cart) (bool, error) {
	args := m.Called(ctx, tx, cart)
	return args.Bool(0), args.Error(1)
}

func (m *MockCartRepository) GetLineForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.CartLine, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CartLine), args.Error(1)
}

func (m *MockCartRepository) FindOpenLine(ctx context.Context, tx pgx.Tx, cartID uuid.UUID, productID, size string, color *string) (*model.CartLine, error) {
	args := m.Called(ctx, tx, cartID, productID, size, color)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CartLine), args.Error(1)
}

func (m *MockCartRepository) InsertLine(ctx context.Context, tx pgx.Tx, line *model.CartLine) error {
	return m.Called(ctx, tx, line).Error(0)
}

func (m *MockCartRepository) UpdateLineQuantity(ctx context.Context, tx pgx.Tx, id uuid.UUID, quantity int, total decimal.Decimal) error {
	return m.Called(ctx, tx, id, quantity, total).Error(0)
}

func (m *MockCartRepository) DeleteLine(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	return m.Called(ctx, tx, id).Error(0)
}

func (m *MockCartRepository) RecalculateTotal(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, tx, cartID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockCartRepository) ClaimLines(ctx context.Context, tx pgx.Tx, cartID uuid.UUID, lineIDs []uuid.UUID) ([]model.CartLine, error) {
	args := m.Called(ctx, tx, cartID, lineIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CartLine), args.Error(1)
}

func (m *MockCartRepository) MarkCheckedOut(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) error {
	return m.Called(ctx, tx, cartID).Error(0)
}

// MockOrderRepository is a mock implementation of OrderRepository.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return beginTx(m.Called(ctx))
}

func (m *MockOrderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	return m.Called(ctx, tx, order).Error(0)
}

func (m *MockOrderRepository) CreateOrderLines(ctx context.Context, tx pgx.Tx, lines []model.OrderLine) error {
	return m.Called(ctx, tx, lines).Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, []model.OrderLine, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*model.Order), args.Get(1).([]model.OrderLine), args.Error(2)
}

func (m *MockOrderRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) GetLines(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]model.OrderLine, error) {
	args := m.Called(ctx, tx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OrderLine), args.Error(1)
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status model.OrderStatus) error {
	return m.Called(ctx, tx, id, status).Error(0)
}

func (m *MockOrderRepository) UpdateShippingAddress(ctx context.Context, tx pgx.Tx, id uuid.UUID, address string) error {
	return m.Called(ctx, tx, id, address).Error(0)
}

func (m *MockOrderRepository) AppendEvent(ctx context.Context, tx pgx.Tx, event *model.OrderEvent) error {
	return m.Called(ctx, tx, event).Error(0)
}

func (m *MockOrderRepository) ListEvents(ctx context.Context, orderID uuid.UUID) ([]model.OrderEvent, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OrderEvent), args.Error(1)
}

func (m *MockOrderRepository) ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]model.Order, error) {
	args := m.Called(ctx, customerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderRepository) ListByStatus(ctx context.Context, status model.OrderStatus, limit, offset int) ([]model.Order, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

// MockProductRepository is a mock implementation of ProductRepository.
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductRepository) RestoreStock(ctx context.Context, tx pgx.Tx, id string, quantity int) (bool, error) {
	args := m.Called(ctx, tx, id, quantity)
	return args.Bool(0), args.Error(1)
}

// MockCustomerRepository is a mock implementation of CustomerRepository.
type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) GetByID(ctx context.Context, id string) (*model.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Customer), args.Error(1)
}

// MockPaymentRepository is a mock implementation of PaymentRepository.
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return beginTx(m.Called(ctx))
}

func (m *MockPaymentRepository) Create(ctx context.Context, tx pgx.Tx, txn *model.PaymentTransaction) (bool, error) {
	args := m.Called(ctx, tx, txn)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) txnResult(args mock.Arguments) (*model.PaymentTransaction, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentTransaction), args.Error(1)
}

func (m *MockPaymentRepository) FindActiveForUpdate(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, methodID string) (*model.PaymentTransaction, error) {
	return m.txnResult(m.Called(ctx, tx, orderID, methodID))
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PaymentTransaction, error) {
	return m.txnResult(m.Called(ctx, id))
}

func (m *MockPaymentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.PaymentTransaction, error) {
	return m.txnResult(m.Called(ctx, tx, id))
}

func (m *MockPaymentRepository) FindByCorrelation(ctx context.Context, key string) (*model.PaymentTransaction, error) {
	return m.txnResult(m.Called(ctx, key))
}

func (m *MockPaymentRepository) FindByCorrelationForUpdate(ctx context.Context, tx pgx.Tx, key string) (*model.PaymentTransaction, error) {
	return m.txnResult(m.Called(ctx, tx, key))
}

func (m *MockPaymentRepository) SaveArtifact(ctx context.Context, tx pgx.Tx, id uuid.UUID, artifact *model.PaymentArtifact) error {
	return m.Called(ctx, tx, id, artifact).Error(0)
}

func (m *MockPaymentRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, update model.StatusUpdate) error {
	return m.Called(ctx, tx, id, update).Error(0)
}

func (m *MockPaymentRepository) AppendRound(ctx context.Context, tx pgx.Tx, id uuid.UUID, round model.GatewayRound) error {
	return m.Called(ctx, tx, id, round).Error(0)
}

func (m *MockPaymentRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.PaymentTransaction, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PaymentTransaction), args.Error(1)
}

func (m *MockPaymentRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.PaymentTransaction, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PaymentTransaction), args.Error(1)
}

// stubMethods is an in-memory PaymentMethodRepository.
type stubMethods map[string]model.PaymentMethod

func (s stubMethods) GetByID(_ context.Context, id string) (*model.PaymentMethod, error) {
	if m, ok := s[id]; ok {
		return &m, nil
	}
	return nil, nil
}

func (s stubMethods) GetByCode(_ context.Context, code string) (*model.PaymentMethod, error) {
	for _, m := range s {
		if strings.EqualFold(m.Code, code) {
			return &m, nil
		}
	}
	return nil, nil
}

func (s stubMethods) List(_ context.Context, activeOnly bool) ([]model.PaymentMethod, error) {
	out := []model.PaymentMethod{}
	for _, m := range s {
		if !activeOnly || m.IsActive {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s stubMethods) Upsert(_ context.Context, m *model.PaymentMethod) error {
	s[m.ID] = *m
	return nil
}

// MockAdapter is a mock implementation of gateway.Adapter.
type MockAdapter struct {
	mock.Mock
	code string
}

func (m *MockAdapter) Code() string { return m.code }

func (m *MockAdapter) CreateArtifact(ctx context.Context, req gateway.ArtifactRequest) (*model.PaymentArtifact, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentArtifact), args.Error(1)
}

func (m *MockAdapter) MapStatus(providerCode string) model.CanonicalStatus {
	return model.CanonicalStatus(m.Called(providerCode).String(0))
}

func (m *MockAdapter) VerifySignature(payload []byte, mac string) bool {
	return m.Called(payload, mac).Bool(0)
}

func (m *MockAdapter) ParseCallback(body []byte) (*gateway.Outcome, error) {
	args := m.Called(body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Outcome), args.Error(1)
}

func (m *MockAdapter) QueryRemote(ctx context.Context, txn *model.PaymentTransaction) (*gateway.Outcome, error) {
	args := m.Called(ctx, txn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Outcome), args.Error(1)
}

// MockPublisher records published events.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	return m.Called(ctx, topic, key, event).Error(0)
}

func (m *MockPublisher) Close() error { return nil }

// gatewayMap is a Gateways backed by a map.
type gatewayMap map[string]gateway.Adapter

func (g gatewayMap) Get(code string) (gateway.Adapter, bool) {
	a, ok := g[code]
	return a, ok
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testMethods() stubMethods {
	maxMomo := dec("50000000")
	return stubMethods{
		"PM001": {ID: "PM001", Code: "cod", Name: "Cash on Delivery", FeePercentage: decimal.Zero, FeeFixed: decimal.Zero, MinimumAmount: decimal.Zero, IsActive: true},
		"PM002": {ID: "PM002", Code: "momo", Name: "MoMo", FeePercentage: dec("1.5"), FeeFixed: decimal.Zero, MinimumAmount: dec("10000"), MaximumAmount: &maxMomo, IsActive: true},
		"PM009": {ID: "PM009", Code: "legacy", Name: "Legacy", MinimumAmount: decimal.Zero, IsActive: false},
	}
}

// decEq matches a decimal argument by value rather than representation.
func decEq(s string) any {
	want := dec(s)
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(want) })
}
