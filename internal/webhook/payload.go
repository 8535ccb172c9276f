package webhook

// SolicitacaoHeader carries the submission header fields in the canonical
// snake_case wire names expected by the spreadsheet endpoint.
type SolicitacaoHeader struct {
	LojaID                int    `json:"loja_id"`
	LojaLabel             string `json:"loja_label"`
	SolicitanteNome       string `json:"solicitante_nome"`
	SolicitanteTelefone   string `json:"solicitante_telefone"`
	NumeroChamado         string `json:"numero_chamado"`
	TipoEquipe            string `json:"tipo_equipe"`
	EmpresaTerceira       string `json:"empresa_terceira"`
	TipoServico           string `json:"tipo_servico"`
	SistemaAfetado        string `json:"sistema_afetado"`
	DescricaoGeralServico string `json:"descricao_geral_servico"`
}

// MaterialItemPayload is one material line on the wire.
type MaterialItemPayload struct {
	MaterialDescricao     string `json:"material_descricao"`
	MaterialEspecificacao string `json:"material_especificacao"`
	Quantidade            int    `json:"quantidade"`
	Unidade               string `json:"unidade"`
	Urgencia              string `json:"urgencia"`
	Foto1URL              string `json:"foto1_url"`
	Foto2URL              string `json:"foto2_url"`
}

// SolicitacaoPayload is the fully assembled submission sent to the webhook.
type SolicitacaoPayload struct {
	RequestID      string                `json:"request_id"`
	TimestampEnvio string                `json:"timestamp_envio"`
	Header         SolicitacaoHeader     `json:"header"`
	Items          []MaterialItemPayload `json:"items"`
}
