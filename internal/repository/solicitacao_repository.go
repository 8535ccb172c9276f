package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/vanzer80/solicitacao-materiais-api/internal/models"
)

// SolicitacaoRepository persists the local history mirror of submitted
// material requests. Writes happen only after the webhook confirmed the
// submission, so this store is read-heavy.
type SolicitacaoRepository struct {
	db *sqlx.DB
}

// NewSolicitacaoRepository creates the repository.
func NewSolicitacaoRepository(db *sqlx.DB) *SolicitacaoRepository {
	return &SolicitacaoRepository{db: db}
}

// Save inserts the request header and all of its material lines in one
// transaction so the mirror never holds a header without items.
func (r *SolicitacaoRepository) Save(ctx context.Context, request models.MaterialRequest, items []models.MaterialItem) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save solicitacao: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertRequest = `INSERT INTO material_requests
		(request_id, timestamp_envio, loja_id, loja_label, solicitante_nome, solicitante_telefone,
		 numero_chamado, tipo_equipe, empresa_terceira, tipo_servico, sistema_afetado,
		 descricao_geral_servico, status_compra)
		VALUES (:request_id, :timestamp_envio, :loja_id, :loja_label, :solicitante_nome, :solicitante_telefone,
		 :numero_chamado, :tipo_equipe, :empresa_terceira, :tipo_servico, :sistema_afetado,
		 :descricao_geral_servico, :status_compra)`
	if _, err := tx.NamedExecContext(ctx, insertRequest, request); err != nil {
		return fmt.Errorf("insert material request: %w", err)
	}

	const insertItem = `INSERT INTO material_items
		(request_id, material_descricao, material_especificacao, quantidade, unidade, urgencia, foto1_url, foto2_url)
		VALUES (:request_id, :material_descricao, :material_especificacao, :quantidade, :unidade, :urgencia, :foto1_url, :foto2_url)`
	for _, item := range items {
		item.RequestID = request.RequestID
		if _, err := tx.NamedExecContext(ctx, insertItem, item); err != nil {
			return fmt.Errorf("insert material item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save solicitacao: %w", err)
	}
	return nil
}

// List returns a page of request headers matching the filter plus the
// total match count.
func (r *SolicitacaoRepository) List(ctx context.Context, filter models.SolicitacaoFilter) ([]models.MaterialRequest, int, error) {
	where := []string{"1=1"}
	var args []interface{}
	if filter.DataInicio != nil {
		args = append(args, *filter.DataInicio)
		where = append(where, fmt.Sprintf("timestamp_envio >= $%d", len(args)))
	}
	if filter.DataFim != nil {
		args = append(args, *filter.DataFim)
		where = append(where, fmt.Sprintf("timestamp_envio <= $%d", len(args)))
	}
	if filter.LojaID != nil {
		args = append(args, *filter.LojaID)
		where = append(where, fmt.Sprintf("loja_id = $%d", len(args)))
	}
	if filter.RequestID != "" {
		// Technicians paste fragments of an id from the UI, so this is a
		// substring match rather than an exact one.
		args = append(args, "%"+filter.RequestID+"%")
		where = append(where, fmt.Sprintf("request_id LIKE $%d", len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM material_requests WHERE " + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count material requests: %w", err)
	}

	page := filter.Pagina
	if page < 1 {
		page = 1
	}
	size := filter.Limite
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, request_id, timestamp_envio, loja_id, loja_label, solicitante_nome,
		solicitante_telefone, numero_chamado, tipo_equipe, empresa_terceira, tipo_servico,
		sistema_afetado, descricao_geral_servico, status_compra, created_at
		FROM material_requests WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		whereClause, orderClause(filter.OrdenarPor), size, offset)

	var requests []models.MaterialRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list material requests: %w", err)
	}
	return requests, total, nil
}

// ItemsByRequestIDs resolves the material lines of several requests in one
// query, keyed by request id. Batch loaders depend on this shape.
func (r *SolicitacaoRepository) ItemsByRequestIDs(ctx context.Context, requestIDs []string) (map[string][]models.MaterialItem, error) {
	if len(requestIDs) == 0 {
		return map[string][]models.MaterialItem{}, nil
	}

	query, args, err := sqlx.In(`SELECT id, request_id, material_descricao, material_especificacao, quantidade,
		unidade, urgencia, foto1_url, foto2_url, created_at
		FROM material_items WHERE request_id IN (?) ORDER BY request_id, id`, requestIDs)
	if err != nil {
		return nil, fmt.Errorf("build items batch query: %w", err)
	}
	query = r.db.Rebind(query)

	var items []models.MaterialItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("batch list material items: %w", err)
	}

	grouped := make(map[string][]models.MaterialItem, len(requestIDs))
	for _, item := range items {
		grouped[item.RequestID] = append(grouped[item.RequestID], item)
	}
	return grouped, nil
}

// CountItemsByRequestIDs returns per-request material line counts in one
// query. Requests with no rows are simply absent from the map.
func (r *SolicitacaoRepository) CountItemsByRequestIDs(ctx context.Context, requestIDs []string) (map[string]int, error) {
	if len(requestIDs) == 0 {
		return map[string]int{}, nil
	}

	query, args, err := sqlx.In(`SELECT request_id, COUNT(*) AS total
		FROM material_items WHERE request_id IN (?) GROUP BY request_id`, requestIDs)
	if err != nil {
		return nil, fmt.Errorf("build item count query: %w", err)
	}
	query = r.db.Rebind(query)

	type row struct {
		RequestID string `db:"request_id"`
		Total     int    `db:"total"`
	}
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count material items: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, rrow := range rows {
		counts[rrow.RequestID] = rrow.Total
	}
	return counts, nil
}

// RequestsByIDs resolves several request headers in one query, keyed by
// request id.
func (r *SolicitacaoRepository) RequestsByIDs(ctx context.Context, requestIDs []string) (map[string]models.MaterialRequest, error) {
	if len(requestIDs) == 0 {
		return map[string]models.MaterialRequest{}, nil
	}

	query, args, err := sqlx.In(`SELECT id, request_id, timestamp_envio, loja_id, loja_label, solicitante_nome,
		solicitante_telefone, numero_chamado, tipo_equipe, empresa_terceira, tipo_servico,
		sistema_afetado, descricao_geral_servico, status_compra, created_at
		FROM material_requests WHERE request_id IN (?)`, requestIDs)
	if err != nil {
		return nil, fmt.Errorf("build requests batch query: %w", err)
	}
	query = r.db.Rebind(query)

	var requests []models.MaterialRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("batch list material requests: %w", err)
	}

	byID := make(map[string]models.MaterialRequest, len(requests))
	for _, req := range requests {
		byID[req.RequestID] = req
	}
	return byID, nil
}

// Count returns the total number of mirrored requests.
func (r *SolicitacaoRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM material_requests"); err != nil {
		return 0, fmt.Errorf("count material requests: %w", err)
	}
	return total, nil
}

func orderClause(ordenarPor string) string {
	switch ordenarPor {
	case "data_asc":
		return "timestamp_envio ASC, id ASC"
	case "loja":
		return "loja_label ASC, timestamp_envio DESC"
	default:
		return "timestamp_envio DESC, id DESC"
	}
}
