package repository

import (
	"context"
	"time"

	"kart-checkout/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TxBeginner starts database transactions.
type TxBeginner interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)
}

// ProductRepository defines product access needed by carts and cancellation.
type ProductRepository interface {
	// GetByID retrieves a single product by its ID. Returns nil when absent.
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// RestoreStock adds quantity back to a tracked product's stock.
	// Returns false when the product is missing or its stock is untracked.
	RestoreStock(ctx context.Context, tx pgx.Tx, id string, quantity int) (bool, error)
}

// CustomerRepository reads the customer directory.
type CustomerRepository interface {
	// GetByID retrieves a customer. Returns nil when absent.
	GetByID(ctx context.Context, id string) (*model.Customer, error)
}

// CartRepository defines cart and cart-line data access.
type CartRepository interface {
	TxBeginner

	// GetCart retrieves a cart with all of its lines. Returns nil when absent.
	GetCart(ctx context.Context, id uuid.UUID) (*model.Cart, error)

	// GetActiveCartForUpdate locks and returns the customer's active cart, or nil.
	GetActiveCartForUpdate(ctx context.Context, tx pgx.Tx, customerID string) (*model.Cart, error)

	// CreateCart inserts an empty cart; false means another active cart won.
	CreateCart(ctx context.Context, tx pgx.Tx, cart *model.Cart) (bool, error)

	// GetLineForUpdate locks and returns a cart line, or nil.
	GetLineForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.CartLine, error)

	// FindOpenLine returns the not-checked-out line holding the variant, or nil.
	// A nil color only matches a nil color.
	FindOpenLine(ctx context.Context, tx pgx.Tx, cartID uuid.UUID, productID, size string, color *string) (*model.CartLine, error)

	// InsertLine inserts a new cart line.
	InsertLine(ctx context.Context, tx pgx.Tx, line *model.CartLine) error

	// UpdateLineQuantity sets quantity and total of an open line.
	UpdateLineQuantity(ctx context.Context, tx pgx.Tx, id uuid.UUID, quantity int, total decimal.Decimal) error

	// DeleteLine removes an open line.
	DeleteLine(ctx context.Context, tx pgx.Tx, id uuid.UUID) error

	// RecalculateTotal sets the cart total to the sum of its open lines and returns it.
	RecalculateTotal(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) (decimal.Decimal, error)

	// ClaimLines marks the given open lines as checked out in one conditional
	// update and returns the lines actually claimed. Lines already checked out
	// or belonging to another cart are not returned.
	ClaimLines(ctx context.Context, tx pgx.Tx, cartID uuid.UUID, lineIDs []uuid.UUID) ([]model.CartLine, error)

	// MarkCheckedOut moves an active cart to checked_out. A cart that is
	// already checked out is left unchanged.
	MarkCheckedOut(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) error
}

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	TxBeginner

	// CreateOrder inserts a new order within the provided transaction.
	CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// CreateOrderLines inserts the order's line snapshots within the provided transaction.
	CreateOrderLines(ctx context.Context, tx pgx.Tx, lines []model.OrderLine) error

	// GetByID retrieves an order by its ID along with its lines.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, []model.OrderLine, error)

	// GetForUpdate locks and returns an order, or nil.
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error)

	// GetLines returns the order lines inside the transaction.
	GetLines(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]model.OrderLine, error)

	// UpdateStatus sets the order status.
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status model.OrderStatus) error

	// UpdateShippingAddress sets the shipping address.
	UpdateShippingAddress(ctx context.Context, tx pgx.Tx, id uuid.UUID, address string) error

	// AppendEvent adds an entry to the order's audit trail.
	AppendEvent(ctx context.Context, tx pgx.Tx, event *model.OrderEvent) error

	// ListEvents returns the audit trail oldest first.
	ListEvents(ctx context.Context, orderID uuid.UUID) ([]model.OrderEvent, error)

	// ListByCustomer returns a customer's orders, newest first.
	ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]model.Order, error)

	// ListByStatus returns orders in a status, newest first.
	ListByStatus(ctx context.Context, status model.OrderStatus, limit, offset int) ([]model.Order, error)
}

// PaymentMethodRepository defines payment-method reference data access.
type PaymentMethodRepository interface {
	// GetByID retrieves a method by ID. Returns nil when absent.
	GetByID(ctx context.Context, id string) (*model.PaymentMethod, error)

	// GetByCode retrieves a method by its stable code. Returns nil when absent.
	GetByCode(ctx context.Context, code string) (*model.PaymentMethod, error)

	// List returns all methods, optionally only active ones, ordered by ID.
	List(ctx context.Context, activeOnly bool) ([]model.PaymentMethod, error)

	// Upsert inserts or replaces a method keyed by ID.
	Upsert(ctx context.Context, method *model.PaymentMethod) error
}

// PaymentRepository defines payment-transaction data access.
type PaymentRepository interface {
	TxBeginner

	// Create inserts a transaction unless an active one already exists for the
	// same order and method. Returns false when the insert was skipped.
	Create(ctx context.Context, tx pgx.Tx, txn *model.PaymentTransaction) (bool, error)

	// FindActiveForUpdate locks and returns the pending or processing
	// transaction for an order and method, or nil.
	FindActiveForUpdate(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, methodID string) (*model.PaymentTransaction, error)

	// GetByID retrieves a transaction. Returns nil when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.PaymentTransaction, error)

	// GetForUpdate locks and returns a transaction, or nil.
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.PaymentTransaction, error)

	// FindByCorrelation returns the newest transaction whose ID, gateway
	// transaction ID or reference number equals key, or nil.
	FindByCorrelation(ctx context.Context, key string) (*model.PaymentTransaction, error)

	// FindByCorrelationForUpdate is FindByCorrelation with a row lock.
	FindByCorrelationForUpdate(ctx context.Context, tx pgx.Tx, key string) (*model.PaymentTransaction, error)

	// SaveArtifact persists a gateway artifact onto the transaction.
	SaveArtifact(ctx context.Context, tx pgx.Tx, id uuid.UUID, artifact *model.PaymentArtifact) error

	// UpdateStatus writes a status change and appends its gateway round.
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, update model.StatusUpdate) error

	// AppendRound appends a gateway round without changing status.
	AppendRound(ctx context.Context, tx pgx.Tx, id uuid.UUID, round model.GatewayRound) error

	// ListByOrder returns the order's transactions, newest first.
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.PaymentTransaction, error)

	// ListPendingBefore returns up to limit pending transactions created before cutoff, oldest first.
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.PaymentTransaction, error)
}
