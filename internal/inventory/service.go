package inventory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"product-inventory-service/internal/domain"
	"product-inventory-service/internal/export"
	"product-inventory-service/internal/store"
)

// Prompts shown before confirmation-gated side effects.
const (
	promptExportAfterCreate = "Would you like to download the updated products.json file now?"
	promptExportAfterUpdate = "Download updated products.json to persist changes to file?"
)

// Confirmer answers a yes/no question before a gated side effect runs.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

var (
	// AlwaysConfirm answers yes to every prompt.
	AlwaysConfirm Confirmer = ConfirmFunc(func(context.Context, string) bool { return true })
	// NeverConfirm answers no to every prompt.
	NeverConfirm Confirmer = ConfirmFunc(func(context.Context, string) bool { return false })
)

// Exporter externalizes the collection after a confirmed save.
type Exporter interface {
	Export(ctx context.Context, products []domain.Product) error
}

// Options tune the service behaviour.
type Options struct {
	// RecomputeStatusOnAdjust re-derives In Stock / Low Stock after every stock
	// adjustment. When false the status is only refreshed by the form path.
	RecomputeStatusOnAdjust bool
	// NewID generates product ids; NewProductID when nil.
	NewID func() string
}

// ListParams filters List results. Empty fields match everything.
type ListParams struct {
	Search   string
	Category string
	Status   domain.Status
}

// Service runs every product operation as a load, transform, save cycle.
type Service struct {
	mu       sync.Mutex // serialises read-modify-write cycles
	version  uint64     // bumped on every save, guarded by mu
	store    store.ProductStorer
	exporter Exporter
	validate *validator.Validate
	opts     Options

	exportMu        sync.Mutex // serialises exports
	exportedVersion uint64     // newest snapshot exported, guarded by exportMu
}

// snapshot is a saved collection together with its save sequence number.
type snapshot struct {
	products []domain.Product
	version  uint64
}

// NewService creates a Service. exporter may be nil, which disables post-save exports.
func NewService(ps store.ProductStorer, exporter Exporter, opts Options) *Service {
	if opts.NewID == nil {
		opts.NewID = NewProductID
	}
	return &Service{
		store:    ps,
		exporter: exporter,
		validate: newFormValidator(),
		opts:     opts,
	}
}

// Create validates input, prepends the new record and saves the collection.
func (s *Service) Create(ctx context.Context, input domain.FormFields, confirm Confirmer) (domain.Product, error) {
	if err := s.validate.Struct(input); err != nil {
		return domain.Product{}, fromValidator(err)
	}

	s.mu.Lock()
	products := s.store.Load(ctx)
	taken := make(map[string]struct{}, len(products))
	for _, p := range products {
		taken[p.ID] = struct{}{}
	}
	created, err := BuildNew(input, taken, s.opts.NewID)
	if err != nil {
		s.mu.Unlock()
		return domain.Product{}, err
	}
	updated := make([]domain.Product, 0, len(products)+1)
	updated = append(updated, created)
	updated = append(updated, products...)
	saved, err := s.save(ctx, updated)
	if err != nil {
		s.mu.Unlock()
		return domain.Product{}, fmt.Errorf("inventory: Create failed to save: %w", err)
	}
	s.mu.Unlock()

	zap.L().Info("product added", zap.String("id", created.ID), zap.String("name", created.Name))
	s.offerExport(ctx, saved, confirm, promptExportAfterCreate)
	return created.Clone(), nil
}

// Update merges input onto the record with the given id and saves the collection.
func (s *Service) Update(ctx context.Context, id string, input domain.FormFields, confirm Confirmer) (domain.Product, error) {
	if err := s.validate.Struct(input); err != nil {
		return domain.Product{}, fmt.Errorf("inventory: update of %s rejected: %w", id, fromValidator(err))
	}

	var saved snapshot
	p, err := s.mutate(ctx, id, func(existing domain.Product) (domain.Product, bool, error) {
		next, err := ApplyUpdate(existing, input)
		if err != nil {
			return domain.Product{}, false, err
		}
		return next, true, nil
	}, &saved)
	if err != nil {
		return domain.Product{}, err
	}

	zap.L().Info("product updated", zap.String("id", p.ID))
	s.offerExport(ctx, saved, confirm, promptExportAfterUpdate)
	return p, nil
}

// AdjustStock adds delta to the on-hand quantity, never going below zero.
func (s *Service) AdjustStock(ctx context.Context, id string, delta int) (domain.Product, error) {
	p, err := s.mutate(ctx, id, func(existing domain.Product) (domain.Product, bool, error) {
		next := existing.Clone()
		next.QtyOnHand = adjustedQuantity(existing.QtyOnHand, delta)
		if s.opts.RecomputeStatusOnAdjust && !next.IsArchived() {
			next.Status = domain.StatusForQuantity(next.QtyOnHand)
		}
		return next, true, nil
	}, nil)
	if err != nil {
		return domain.Product{}, err
	}
	zap.L().Info("stock adjusted", zap.String("id", id), zap.Int("delta", delta), zap.Int("qtyOnHand", p.QtyOnHand))
	return p, nil
}

// Archive marks the record as archived once confirm agrees. Archiving an
// archived record changes nothing.
func (s *Service) Archive(ctx context.Context, id string, confirm Confirmer) (domain.Product, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	if confirm == nil || !confirm.Confirm(ctx, fmt.Sprintf("Archive %s?", current.Name)) {
		return domain.Product{}, ErrNotConfirmed
	}

	p, err := s.mutate(ctx, id, func(existing domain.Product) (domain.Product, bool, error) {
		if existing.IsArchived() {
			return existing, false, nil
		}
		next := existing.Clone()
		next.Status = domain.StatusArchived
		return next, true, nil
	}, nil)
	if err != nil {
		return domain.Product{}, err
	}
	zap.L().Info("product archived", zap.String("id", id))
	return p, nil
}

// Get returns the record with the given id.
func (s *Service) Get(ctx context.Context, id string) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	products := s.store.Load(ctx)
	i := indexOf(products, id)
	if i < 0 {
		return domain.Product{}, fmt.Errorf("inventory: product %s: %w", id, ErrProductNotFound)
	}
	return products[i].Clone(), nil
}

// List returns the records matching params, newest first.
func (s *Service) List(ctx context.Context, params ListParams) ([]domain.Product, error) {
	s.mu.Lock()
	products := s.store.Load(ctx)
	s.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(params.Search))
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Brand), search) {
			continue
		}
		if params.Category != "" && p.Category != params.Category {
			continue
		}
		if params.Status != "" && p.Status != params.Status {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Categories returns the distinct categories in use, sorted.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	products := s.store.Load(ctx)
	s.mu.Unlock()

	seen := make(map[string]struct{})
	categories := make([]string, 0)
	for _, p := range products {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		categories = append(categories, p.Category)
	}
	sort.Strings(categories)
	return categories, nil
}

// Export renders the current collection in the given format.
func (s *Service) Export(ctx context.Context, format export.Format) ([]byte, error) {
	s.mu.Lock()
	products := s.store.Load(ctx)
	s.mu.Unlock()
	return export.Render(format, products)
}

// mutate loads the collection, replaces the record with the given id by the
// result of fn and saves when fn reports a change. When saved is non-nil it
// receives the collection as written.
func (s *Service) mutate(
	ctx context.Context,
	id string,
	fn func(existing domain.Product) (domain.Product, bool, error),
	saved *snapshot,
) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := s.store.Load(ctx)
	i := indexOf(products, id)
	if i < 0 {
		return domain.Product{}, fmt.Errorf("inventory: product %s: %w", id, ErrProductNotFound)
	}
	next, changed, err := fn(products[i])
	if err != nil {
		return domain.Product{}, err
	}
	next.ID = products[i].ID
	products[i] = next
	snap := snapshot{products: products, version: s.version}
	if changed {
		snap, err = s.save(ctx, products)
		if err != nil {
			return domain.Product{}, fmt.Errorf("inventory: failed to save product %s: %w", id, err)
		}
	}
	if saved != nil {
		*saved = snap
	}
	return next.Clone(), nil
}

// save writes products and numbers the write. Callers hold mu.
func (s *Service) save(ctx context.Context, products []domain.Product) (snapshot, error) {
	if err := s.store.Save(ctx, products); err != nil {
		return snapshot{}, err
	}
	s.version++
	return snapshot{products: products, version: s.version}, nil
}

// offerExport asks confirm whether to export the saved collection. Exports
// run one at a time and a snapshot older than the last exported one is
// skipped. Export failures are logged only; the collection is already persisted.
func (s *Service) offerExport(ctx context.Context, saved snapshot, confirm Confirmer, prompt string) {
	if s.exporter == nil || confirm == nil || !confirm.Confirm(ctx, prompt) {
		return
	}

	s.exportMu.Lock()
	defer s.exportMu.Unlock()
	if saved.version < s.exportedVersion {
		zap.L().Debug("skipping stale export", zap.Uint64("version", saved.version), zap.Uint64("exported", s.exportedVersion))
		return
	}
	if err := s.exporter.Export(ctx, saved.products); err != nil {
		zap.L().Warn("export after save failed", zap.Error(err))
		return
	}
	s.exportedVersion = saved.version
}

// adjustedQuantity returns max(0, qty+delta) without wrapping around.
func adjustedQuantity(qty, delta int) int {
	switch {
	case delta > 0 && qty > math.MaxInt-delta:
		return math.MaxInt
	case delta < 0 && qty < math.MinInt-delta:
		return 0
	}
	return max(0, qty+delta)
}

func indexOf(products []domain.Product, id string) int {
	for i := range products {
		if products[i].ID == id {
			return i
		}
	}
	return -1
}
