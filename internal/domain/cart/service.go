// internal/domain/cart/service.go
package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// countLoadTimeout bounds a shared count load, which outlives the request that started it
const countLoadTimeout = 5 * time.Second

// Service handles cart business logic
type Service struct {
	repo     Repository
	products ProductReader
	counts   CountCache
	log      logrus.FieldLogger
	sfg      singleflight.Group
}

// NewService creates a new cart service. counts may be nil to disable count caching.
func NewService(repo Repository, products ProductReader, counts CountCache, log logrus.FieldLogger) *Service {
	if counts == nil {
		counts = nopCountCache{}
	}
	return &Service{
		repo:     repo,
		products: products,
		counts:   counts,
		log:      log,
	}
}

// GetCart returns the caller's lines decorated with current product data plus the summary
func (s *Service) GetCart(ctx context.Context, caller Caller) (*Cart, error) {
	if !caller.Authenticated {
		return nil, ErrUnauthenticated
	}

	items, _, err := s.load(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}

	return &Cart{Items: items, Summary: Summarize(items)}, nil
}

// Add puts quantity units of a product in the caller's cart, merging with an existing line
func (s *Service) Add(ctx context.Context, caller Caller, req AddRequest) (*Item, error) {
	if !caller.Authenticated {
		return nil, ErrUnauthenticated
	}
	if req.ProductID == 0 {
		return nil, fmt.Errorf("%w: productId is required", ErrInvalidInput)
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
	}
	if utf8.RuneCountInString(strings.TrimSpace(req.Size)) > MaxSizeLength {
		return nil, fmt.Errorf("%w: size must be at most %d characters", ErrInvalidInput, MaxSizeLength)
	}

	p, err := s.products.FindProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if !p.InStock {
		return nil, fmt.Errorf("%w: %s", ErrOutOfStock, p.Name)
	}

	size := resolveSize(req.Size, p.Sizes)

	items, _, err := s.load(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	quantities := []int{quantity}
	others := make([]Item, 0, len(items))
	for _, item := range items {
		if item.ProductID == p.ID && item.Size == size {
			quantities = append(quantities, item.Quantity)
			continue
		}
		others = append(others, item)
	}
	if !fitsSummary(others, p.Price, quantities...) {
		return nil, fmt.Errorf("%w: quantity is too large", ErrInvalidInput)
	}

	line, err := s.repo.UpsertLine(ctx, caller.UserID, p.ID, size, quantity)
	if err != nil {
		return nil, err
	}
	s.invalidateCount(ctx, caller.UserID)

	s.log.WithFields(logrus.Fields{
		"user_id":    caller.UserID,
		"product_id": p.ID,
		"size":       line.Size,
		"quantity":   line.Quantity,
	}).Debug("cart line added")

	item := newItem(*line, p)
	return &item, nil
}

// Update sets a line's quantity. Zero removes the line and returns a nil item.
func (s *Service) Update(ctx context.Context, caller Caller, req UpdateRequest) (*Item, error) {
	if !caller.Authenticated {
		return nil, ErrUnauthenticated
	}
	if req.CartItemID == 0 {
		return nil, fmt.Errorf("%w: cartItemId is required", ErrInvalidInput)
	}
	if req.Quantity == nil {
		return nil, fmt.Errorf("%w: quantity is required", ErrInvalidInput)
	}
	if *req.Quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", ErrInvalidInput)
	}

	if *req.Quantity == 0 {
		if err := s.repo.DeleteLine(ctx, caller.UserID, req.CartItemID); err != nil {
			return nil, err
		}
		s.invalidateCount(ctx, caller.UserID)
		return nil, nil
	}

	current, err := s.repo.GetLine(ctx, caller.UserID, req.CartItemID)
	if err != nil {
		return nil, err
	}

	items, _, err := s.load(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	// p stays nil when the line's product left the catalog
	var p *ProductSnapshot
	others := make([]Item, 0, len(items))
	for _, item := range items {
		if item.ID == current.ID {
			p = item.Product
			continue
		}
		others = append(others, item)
	}
	var price int64
	if p != nil {
		price = p.Price
	}
	if !fitsSummary(others, price, *req.Quantity) {
		return nil, fmt.Errorf("%w: quantity is too large", ErrInvalidInput)
	}

	line, err := s.repo.UpdateQuantity(ctx, caller.UserID, current.ID, *req.Quantity)
	if err != nil {
		return nil, err
	}
	s.invalidateCount(ctx, caller.UserID)

	item := newItem(*line, p)
	return &item, nil
}

// Remove deletes one of the caller's lines
func (s *Service) Remove(ctx context.Context, caller Caller, lineID uint) error {
	if !caller.Authenticated {
		return ErrUnauthenticated
	}
	if lineID == 0 {
		return fmt.Errorf("%w: itemId is required", ErrInvalidInput)
	}

	if err := s.repo.DeleteLine(ctx, caller.UserID, lineID); err != nil {
		return err
	}
	s.invalidateCount(ctx, caller.UserID)
	return nil
}

// Clear empties the caller's cart atomically and returns the number of removed lines
func (s *Service) Clear(ctx context.Context, caller Caller) (int64, error) {
	if !caller.Authenticated {
		return 0, ErrUnauthenticated
	}

	removed, err := s.repo.DeleteAll(ctx, caller.UserID)
	if err != nil {
		return 0, err
	}
	s.invalidateCount(ctx, caller.UserID)

	s.log.WithFields(logrus.Fields{
		"user_id": caller.UserID,
		"removed": removed,
	}).Info("cart cleared")

	return removed, nil
}

// Count returns the summary item count, served from the count cache when possible
func (s *Service) Count(ctx context.Context, caller Caller) (int, error) {
	if !caller.Authenticated {
		return 0, ErrUnauthenticated
	}

	key := strconv.FormatUint(uint64(caller.UserID), 10)
	ch := s.sfg.DoChan(key, func() (interface{}, error) {
		// Shared by every waiter, so it must not end with the first caller's request
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), countLoadTimeout)
		defer cancel()
		return s.loadCount(loadCtx, caller.UserID)
	})

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(int), nil
	}
}

// loadCount serves the count from the cache, or computes and caches it. The version is
// read before the lines so that a write landing mid-count keeps the result out of the cache.
func (s *Service) loadCount(ctx context.Context, ownerID uint) (int, error) {
	n, err := s.counts.Get(ctx, ownerID)
	if err == nil {
		return n, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.log.WithError(err).WithField("user_id", ownerID).Warn("cart count cache read failed")
	}

	version, versionErr := s.counts.Version(ctx, ownerID)
	if versionErr != nil {
		s.log.WithError(versionErr).WithField("user_id", ownerID).Warn("cart count version read failed")
	}

	items, _, err := s.load(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	n = Summarize(items).ItemCount

	if versionErr != nil {
		return n, nil
	}
	switch err := s.counts.SetIfVersion(ctx, ownerID, n, version); {
	case errors.Is(err, ErrStaleCount):
		s.log.WithField("user_id", ownerID).Debug("cart changed while counting, not caching")
	case err != nil:
		s.log.WithError(err).WithField("user_id", ownerID).Warn("cart count cache write failed")
	}
	return n, nil
}

// Validate reports lines that cannot be checked out: out of stock or no longer in the catalog
func (s *Service) Validate(ctx context.Context, caller Caller) (*Validation, error) {
	if !caller.Authenticated {
		return nil, ErrUnauthenticated
	}

	items, orphans, err := s.load(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}

	problems := make([]Problem, 0)
	for _, item := range items {
		if !item.Product.InStock {
			problems = append(problems, Problem{
				ItemID:    item.ID,
				ProductID: item.ProductID,
				Name:      item.Product.Name,
				Reason:    ProblemOutOfStock,
			})
		}
	}
	for _, line := range orphans {
		problems = append(problems, Problem{
			ItemID:    line.ID,
			ProductID: line.ProductID,
			Reason:    ProblemUnavailable,
		})
	}

	return &Validation{
		Valid:    len(problems) == 0,
		Problems: problems,
		Summary:  Summarize(items),
	}, nil
}

// load returns the owner's priced items and the lines whose product no longer exists
func (s *Service) load(ctx context.Context, ownerID uint) ([]Item, []CartLine, error) {
	lines, err := s.repo.ListLines(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}

	ids := make([]uint, 0, len(lines))
	seen := make(map[uint]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; !ok {
			seen[line.ProductID] = struct{}{}
			ids = append(ids, line.ProductID)
		}
	}

	products, err := s.products.FindProducts(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	items := make([]Item, 0, len(lines))
	var orphans []CartLine
	for _, line := range lines {
		p, ok := products[line.ProductID]
		if !ok {
			s.log.WithFields(logrus.Fields{
				"user_id":    ownerID,
				"line_id":    line.ID,
				"product_id": line.ProductID,
			}).Warn("cart line references a missing product")
			orphans = append(orphans, line)
			continue
		}
		items = append(items, newItem(line, p))
	}

	return items, orphans, nil
}

func (s *Service) invalidateCount(ctx context.Context, ownerID uint) {
	if err := s.counts.Delete(ctx, ownerID); err != nil {
		s.log.WithError(err).WithField("user_id", ownerID).Warn("cart count cache invalidation failed")
	}
}
