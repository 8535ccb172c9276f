package dto

import (
	"time"

	"github.com/vanzer80/solicitacao-materiais-api/internal/models"
)

// SubmitItemInput is one material line of an intake submission. Photos arrive
// base64-encoded in JSON and are optional, independently of each other.
type SubmitItemInput struct {
	MaterialDescricao     string `json:"material_descricao" validate:"required"`
	MaterialEspecificacao string `json:"material_especificacao"`
	Quantidade            int    `json:"quantidade" validate:"required,min=1"`
	Unidade               string `json:"unidade" validate:"required,oneof=un cx par m kg L rolo kit outro"`
	Urgencia              string `json:"urgencia" validate:"required,oneof=Alta Média Baixa"`
	Foto1                 []byte `json:"foto1,omitempty"`
	Foto1Type             string `json:"foto1_type,omitempty"`
	Foto2                 []byte `json:"foto2,omitempty"`
	Foto2Type             string `json:"foto2_type,omitempty"`
}

// SubmitSolicitacaoRequest is the validated record consumed by the
// submission orchestrator. The honeypot field must stay empty for
// legitimate submissions; ConexaoLenta selects the aggressive photo
// compression tier.
type SubmitSolicitacaoRequest struct {
	LojaID                int               `json:"loja_id" validate:"min=0"`
	LojaLabel             string            `json:"loja_label" validate:"required"`
	SolicitanteNome       string            `json:"solicitante_nome" validate:"required"`
	SolicitanteTelefone   string            `json:"solicitante_telefone"`
	NumeroChamado         string            `json:"numero_chamado"`
	TipoEquipe            string            `json:"tipo_equipe" validate:"required,oneof=Própria Terceirizada"`
	EmpresaTerceira       string            `json:"empresa_terceira"`
	TipoServico           string            `json:"tipo_servico" validate:"required,oneof=Preventiva Corretiva"`
	SistemaAfetado        string            `json:"sistema_afetado" validate:"required,oneof=HVAC Elétrica Hidráulica Civil PPCI Outros"`
	DescricaoGeralServico string            `json:"descricao_geral_servico" validate:"required"`
	Items                 []SubmitItemInput `json:"items" validate:"min=1,dive"`
	Honeypot              string            `json:"honeypot"`
	ConexaoLenta          bool              `json:"conexao_lenta"`
}

// SubmitResult is returned to the caller after a submission attempt.
// Warning is set when the webhook accepted the record but the local
// history mirror could not be written.
type SubmitResult struct {
	Success   bool   `json:"success"`
	RequestID string `json:"requestId"`
	Message   string `json:"message,omitempty"`
	Warning   string `json:"warning,omitempty"`
}

// HistoricoQuery filters and paginates history listings.
type HistoricoQuery struct {
	DataInicio string `form:"dataInicio"`
	DataFim    string `form:"dataFim"`
	LojaID     *int   `form:"loja_id"`
	RequestID  string `form:"request_id"`
	Pagina     int    `form:"pagina,default=1"`
	Limite     int    `form:"limite,default=20"`
	OrdenarPor string `form:"ordenarPor,default=data_desc"`
}

// HistoricoRow is a summary row in the history listing, enriched with the
// number of material lines resolved through the batching loader.
type HistoricoRow struct {
	models.MaterialRequest
	TotalItens int `json:"totalItens"`
}

// HistoricoDetalhe bundles a request header with its material lines.
type HistoricoDetalhe struct {
	Solicitacao *models.MaterialRequest `json:"solicitacao"`
	Itens       []models.MaterialItem   `json:"itens"`
}

// UploadResult reports the outcome of a photo upload. Failures are values,
// not errors: the pipeline treats photos as best-effort enrichment.
type UploadResult struct {
	Success bool   `json:"success"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ExportRequest starts an asynchronous history export.
type ExportRequest struct {
	Formato    string `json:"formato" validate:"required,oneof=csv pdf"`
	DataInicio string `json:"dataInicio"`
	DataFim    string `json:"dataFim"`
	LojaID     *int   `json:"loja_id"`
	RequestID  string `json:"request_id"`
}

// ExportStatus is returned when polling an export job.
type ExportStatus struct {
	ID          string     `json:"id"`
	Formato     string     `json:"formato"`
	Status      string     `json:"status"`
	DownloadURL string     `json:"downloadUrl,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}
