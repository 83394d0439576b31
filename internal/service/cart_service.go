package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kart-checkout/internal/model"
	"kart-checkout/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// cartService implements CartService.
type cartService struct {
	carts     repository.CartRepository
	products  repository.ProductRepository
	customers repository.CustomerRepository
	logger    zerolog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(
	carts repository.CartRepository,
	products repository.ProductRepository,
	customers repository.CustomerRepository,
	logger zerolog.Logger,
) CartService {
	return &cartService{
		carts:     carts,
		products:  products,
		customers: customers,
		logger:    logger.With().Str("service", "cart").Logger(),
	}
}

func (s *cartService) AddLine(ctx context.Context, req *model.AddLineRequest) (*model.Cart, error) {
	if req == nil || strings.TrimSpace(req.CustomerID) == "" {
		return nil, model.ErrCustomerNotFound
	}
	if strings.TrimSpace(req.ProductID) == "" {
		return nil, model.ErrProductNotFound
	}
	if req.Quantity < 1 {
		return nil, model.ErrInvalidQuantity
	}

	customer, err := s.customers.GetByID(ctx, req.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}
	if customer == nil {
		return nil, model.ErrCustomerNotFound
	}

	product, err := s.products.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if product == nil {
		s.logger.Debug().Str("product_id", req.ProductID).Msg("product not found")
		return nil, model.ErrProductNotFound
	}

	tx, err := s.carts.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to add cart line: %w", err)
	}
	defer rollback(ctx, tx, s.logger)

	cart, err := s.activeCart(ctx, tx, req.CustomerID)
	if err != nil {
		return nil, err
	}

	existing, err := s.carts.FindOpenLine(ctx, tx, cart.ID, product.ID, req.Size, req.Color)
	if err != nil {
		return nil, fmt.Errorf("failed to add cart line: %w", err)
	}

	if existing != nil {
		quantity := existing.Quantity + req.Quantity
		if err := s.carts.UpdateLineQuantity(ctx, tx, existing.ID, quantity, model.LineTotal(existing.UnitPrice, quantity)); err != nil {
			return nil, err
		}
		s.logger.Debug().Str("cart_id", cart.ID.String()).Str("line_id", existing.ID.String()).Int("quantity", quantity).Msg("cart line merged")
	} else {
		image := req.Image
		if image == nil {
			image = product.Image
		}
		now := time.Now().UTC()
		line := &model.CartLine{
			ID:          uuid.New(),
			CartID:      cart.ID,
			ProductID:   product.ID,
			ProductName: product.Name,
			UnitPrice:   product.Price,
			Quantity:    req.Quantity,
			TotalPrice:  model.LineTotal(product.Price, req.Quantity),
			Size:        req.Size,
			Color:       req.Color,
			Image:       image,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.carts.InsertLine(ctx, tx, line); err != nil {
			return nil, err
		}
	}

	if _, err := s.carts.RecalculateTotal(ctx, tx, cart.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to add cart line: %w", err)
	}

	s.logger.Info().
		Str("cart_id", cart.ID.String()).
		Str("product_id", product.ID).
		Int("quantity", req.Quantity).
		Msg("cart line added")

	return s.GetCart(ctx, cart.ID)
}

// activeCart returns the customer's locked active cart, creating it when absent.
// A concurrent request that created the cart first wins, and its cart is reused.
func (s *cartService) activeCart(ctx context.Context, tx pgx.Tx, customerID string) (*model.Cart, error) {
	cart, err := s.carts.GetActiveCartForUpdate(ctx, tx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active cart: %w", err)
	}
	if cart != nil {
		return cart, nil
	}

	now := time.Now().UTC()
	cart = &model.Cart{
		ID:         uuid.New(),
		CustomerID: customerID,
		Status:     model.CartActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	created, err := s.carts.CreateCart(ctx, tx, cart)
	if err != nil {
		return nil, err
	}
	if created {
		return cart, nil
	}

	cart, err = s.carts.GetActiveCartForUpdate(ctx, tx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active cart: %w", err)
	}
	if cart == nil {
		return nil, model.ErrCheckoutConflict
	}
	s.logger.Debug().Str("customer_id", customerID).Str("cart_id", cart.ID.String()).Msg("reusing concurrently created cart")
	return cart, nil
}

func (s *cartService) UpdateLineQuantity(ctx context.Context, lineID uuid.UUID, quantity int) (*model.Cart, error) {
	if quantity < 1 {
		return nil, model.ErrInvalidQuantity
	}
	return s.mutateLine(ctx, lineID, func(tx pgx.Tx, line *model.CartLine) error {
		return s.carts.UpdateLineQuantity(ctx, tx, line.ID, quantity, model.LineTotal(line.UnitPrice, quantity))
	})
}

func (s *cartService) RemoveLine(ctx context.Context, lineID uuid.UUID) (*model.Cart, error) {
	return s.mutateLine(ctx, lineID, func(tx pgx.Tx, line *model.CartLine) error {
		return s.carts.DeleteLine(ctx, tx, line.ID)
	})
}

// mutateLine locks an open line, applies fn and recomputes the cart total.
func (s *cartService) mutateLine(ctx context.Context, lineID uuid.UUID, fn func(pgx.Tx, *model.CartLine) error) (*model.Cart, error) {
	tx, err := s.carts.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update cart line: %w", err)
	}
	defer rollback(ctx, tx, s.logger)

	line, err := s.carts.GetLineForUpdate(ctx, tx, lineID)
	if err != nil {
		return nil, fmt.Errorf("failed to update cart line: %w", err)
	}
	if line == nil {
		return nil, model.ErrLineNotFound
	}
	if line.IsCheckedOut {
		s.logger.Warn().Str("line_id", lineID.String()).Msg("attempt to modify checked out cart line")
		return nil, model.ErrLineCheckedOut
	}

	if err := fn(tx, line); err != nil {
		return nil, err
	}
	if _, err := s.carts.RecalculateTotal(ctx, tx, line.CartID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to update cart line: %w", err)
	}

	return s.GetCart(ctx, line.CartID)
}

func (s *cartService) GetCart(ctx context.Context, id uuid.UUID) (*model.Cart, error) {
	cart, err := s.carts.GetCart(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("cart_id", id.String()).Msg("failed to get cart")
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	if cart == nil {
		return nil, model.ErrCartNotFound
	}
	return cart, nil
}
