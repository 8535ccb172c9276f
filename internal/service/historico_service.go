package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vanzer80/solicitacao-materiais-api/internal/dataloader"
	"github.com/vanzer80/solicitacao-materiais-api/internal/dto"
	"github.com/vanzer80/solicitacao-materiais-api/internal/models"
	appErrors "github.com/vanzer80/solicitacao-materiais-api/pkg/errors"
)

type historicoRepository interface {
	List(ctx context.Context, filter models.SolicitacaoFilter) ([]models.MaterialRequest, int, error)
	RequestsByIDs(ctx context.Context, requestIDs []string) (map[string]models.MaterialRequest, error)
	ItemsByRequestIDs(ctx context.Context, requestIDs []string) (map[string][]models.MaterialItem, error)
	CountItemsByRequestIDs(ctx context.Context, requestIDs []string) (map[string]int, error)
	Count(ctx context.Context) (int, error)
}

// HistoricoService reads the local submission mirror. Request headers,
// item lists and per-row item counts all go through batching loaders so
// one listing page costs a constant number of queries regardless of its
// length, and repeated detail reads hit the memoization cache.
type HistoricoService struct {
	repo          historicoRepository
	requestLoader *dataloader.Loader[*models.MaterialRequest]
	countLoader   *dataloader.Loader[int]
	itemsLoader   *dataloader.Loader[[]models.MaterialItem]
	logger        *zap.Logger
}

// NewHistoricoService wires the loaders around the repository.
func NewHistoricoService(repo historicoRepository, logger *zap.Logger) *HistoricoService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &HistoricoService{repo: repo, logger: logger}
	s.requestLoader = dataloader.New(func(ctx context.Context, keys []string) (map[string]*models.MaterialRequest, error) {
		found, err := repo.RequestsByIDs(ctx, keys)
		if err != nil {
			return nil, err
		}
		out := make(map[string]*models.MaterialRequest, len(found))
		for id := range found {
			req := found[id]
			out[id] = &req
		}
		return out, nil
	}, dataloader.Config{})
	s.countLoader = dataloader.New(func(ctx context.Context, keys []string) (map[string]int, error) {
		return repo.CountItemsByRequestIDs(ctx, keys)
	}, dataloader.Config{})
	s.itemsLoader = dataloader.New(func(ctx context.Context, keys []string) (map[string][]models.MaterialItem, error) {
		return repo.ItemsByRequestIDs(ctx, keys)
	}, dataloader.Config{})
	return s
}

// Listar returns one page of history rows enriched with material counts.
func (s *HistoricoService) Listar(ctx context.Context, query dto.HistoricoQuery) ([]dto.HistoricoRow, models.Pagination, error) {
	filter, err := buildFilter(query)
	if err != nil {
		return nil, models.Pagination{}, err
	}

	requests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, fmt.Errorf("list historico: %w", err)
	}

	keys := make([]string, len(requests))
	for i, req := range requests {
		keys[i] = req.RequestID
	}
	counts, err := s.countLoader.LoadMany(ctx, keys)
	if err != nil {
		// Counts are enrichment. Serve the page without them rather
		// than failing the listing.
		s.logger.Warn("item count batch failed", zap.Error(err))
		counts = make([]int, len(keys))
	}

	rows := make([]dto.HistoricoRow, len(requests))
	for i, req := range requests {
		rows[i] = dto.HistoricoRow{MaterialRequest: req, TotalItens: counts[i]}
	}

	limite := filter.Limite
	if limite <= 0 || limite > 100 {
		limite = 20
	}
	pagina := filter.Pagina
	if pagina < 1 {
		pagina = 1
	}
	pagination := models.Pagination{
		Total:        total,
		Pagina:       pagina,
		Limite:       limite,
		TotalPaginas: (total + limite - 1) / limite,
	}
	return rows, pagination, nil
}

// Detalhe returns one request header with all of its material lines.
func (s *HistoricoService) Detalhe(ctx context.Context, requestID string) (*dto.HistoricoDetalhe, error) {
	if !models.RequestIDPattern.MatchString(requestID) {
		return nil, appErrors.ErrValidation.WithMessage("request_id inválido")
	}

	request, err := s.requestLoader.Load(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load historico request: %w", err)
	}
	if request == nil {
		return nil, appErrors.ErrNotFound.WithMessage("Solicitação não encontrada")
	}

	items, err := s.itemsLoader.Load(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load historico items: %w", err)
	}
	return &dto.HistoricoDetalhe{Solicitacao: request, Itens: items}, nil
}

// Contar returns the total number of mirrored submissions.
func (s *HistoricoService) Contar(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Invalidate drops the cached loader state for one request after a new
// submission touching it.
func (s *HistoricoService) Invalidate(requestID string) {
	s.requestLoader.Clear(requestID)
	s.countLoader.Clear(requestID)
	s.itemsLoader.Clear(requestID)
}

// InvalidateAll resets every loader.
func (s *HistoricoService) InvalidateAll() {
	s.requestLoader.ClearAll()
	s.countLoader.ClearAll()
	s.itemsLoader.ClearAll()
}

func buildFilter(query dto.HistoricoQuery) (models.SolicitacaoFilter, error) {
	filter := models.SolicitacaoFilter{
		LojaID:     query.LojaID,
		RequestID:  query.RequestID,
		Pagina:     query.Pagina,
		Limite:     query.Limite,
		OrdenarPor: query.OrdenarPor,
	}

	if query.DataInicio != "" {
		t, err := parseDateBound(query.DataInicio, false)
		if err != nil {
			return filter, appErrors.ErrValidation.WithMessage("dataInicio inválida, use YYYY-MM-DD")
		}
		filter.DataInicio = &t
	}
	if query.DataFim != "" {
		t, err := parseDateBound(query.DataFim, true)
		if err != nil {
			return filter, appErrors.ErrValidation.WithMessage("dataFim inválida, use YYYY-MM-DD")
		}
		filter.DataFim = &t
	}
	return filter, nil
}

// parseDateBound interprets a bare date as the start of the day, or the
// end of it for upper bounds so ranges are inclusive.
func parseDateBound(raw string, endOfDay bool) (time.Time, error) {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
