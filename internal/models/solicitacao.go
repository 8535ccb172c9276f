package models

import "time"

// Team, service and urgency enumerations mirror the intake form options.
const (
	TipoEquipePropria      = "Própria"
	TipoEquipeTerceirizada = "Terceirizada"

	TipoServicoPreventiva = "Preventiva"
	TipoServicoCorretiva  = "Corretiva"

	UrgenciaAlta  = "Alta"
	UrgenciaMedia = "Média"
	UrgenciaBaixa = "Baixa"
)

// StatusCompraInicial is assigned to every request at submission time.
const StatusCompraInicial = "Não comprado"

var (
	TiposEquipe      = []string{TipoEquipePropria, TipoEquipeTerceirizada}
	TiposServico     = []string{TipoServicoPreventiva, TipoServicoCorretiva}
	SistemasAfetados = []string{"HVAC", "Elétrica", "Hidráulica", "Civil", "PPCI", "Outros"}
	Unidades         = []string{"un", "cx", "par", "m", "kg", "L", "rolo", "kit", "outro"}
	Urgencias        = []string{UrgenciaAlta, UrgenciaMedia, UrgenciaBaixa}
)

// MaterialRequest is the submission header persisted locally after a
// confirmed webhook delivery. RequestID is immutable and unique.
type MaterialRequest struct {
	ID                    int64     `db:"id" json:"id"`
	RequestID             string    `db:"request_id" json:"requestId"`
	TimestampEnvio        time.Time `db:"timestamp_envio" json:"timestampEnvio"`
	LojaID                int       `db:"loja_id" json:"lojaId"`
	LojaLabel             string    `db:"loja_label" json:"lojaLabel"`
	SolicitanteNome       string    `db:"solicitante_nome" json:"solicitanteNome"`
	SolicitanteTelefone   string    `db:"solicitante_telefone" json:"solicitanteTelefone"`
	NumeroChamado         string    `db:"numero_chamado" json:"numeroChamado"`
	TipoEquipe            string    `db:"tipo_equipe" json:"tipoEquipe"`
	EmpresaTerceira       string    `db:"empresa_terceira" json:"empresaTerceira"`
	TipoServico           string    `db:"tipo_servico" json:"tipoServico"`
	SistemaAfetado        string    `db:"sistema_afetado" json:"sistemaAfetado"`
	DescricaoGeralServico string    `db:"descricao_geral_servico" json:"descricaoGeralServico"`
	StatusCompra          string    `db:"status_compra" json:"statusCompra"`
	CreatedAt             time.Time `db:"created_at" json:"createdAt"`
}

// MaterialItem is a single material line under a MaterialRequest.
type MaterialItem struct {
	ID                    int64     `db:"id" json:"id"`
	RequestID             string    `db:"request_id" json:"requestId"`
	MaterialDescricao     string    `db:"material_descricao" json:"materialDescricao"`
	MaterialEspecificacao string    `db:"material_especificacao" json:"materialEspecificacao"`
	Quantidade            int       `db:"quantidade" json:"quantidade"`
	Unidade               string    `db:"unidade" json:"unidade"`
	Urgencia              string    `db:"urgencia" json:"urgencia"`
	Foto1URL              string    `db:"foto1_url" json:"foto1Url"`
	Foto2URL              string    `db:"foto2_url" json:"foto2Url"`
	CreatedAt             time.Time `db:"created_at" json:"createdAt"`
}

// SolicitacaoFilter narrows history listings.
type SolicitacaoFilter struct {
	DataInicio *time.Time
	DataFim    *time.Time
	LojaID     *int
	RequestID  string
	Pagina     int
	Limite     int
	OrdenarPor string
}

// Pagination follows the history wire contract.
type Pagination struct {
	Total        int `json:"total"`
	Pagina       int `json:"pagina"`
	Limite       int `json:"limite"`
	TotalPaginas int `json:"totalPaginas"`
}

// Loja is a store directory entry as served by the spreadsheet.
type Loja struct {
	LojaID    string `json:"loja_id"`
	LojaLabel string `json:"loja_label"`
}

// Export job lifecycle states.
const (
	ExportStatusPending    = "pending"
	ExportStatusProcessing = "processing"
	ExportStatusDone       = "done"
	ExportStatusFailed     = "failed"

	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

// ExportJob tracks an asynchronous history export.
type ExportJob struct {
	ID            string     `db:"id" json:"id"`
	Formato       string     `db:"formato" json:"formato"`
	Status        string     `db:"status" json:"status"`
	FilterJSON    string     `db:"filter_json" json:"-"`
	FilePath      string     `db:"file_path" json:"-"`
	DownloadToken string     `db:"download_token" json:"downloadToken,omitempty"`
	ErrorMessage  string     `db:"error_message" json:"errorMessage,omitempty"`
	ExpiresAt     *time.Time `db:"expires_at" json:"expiresAt,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}
