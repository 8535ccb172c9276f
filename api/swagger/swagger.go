package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Solicitação de Materiais API",
        "description": "Intake, delivery and history API for field-technician material requests",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Solicitacoes", "description": "Material request intake"},
        {"name": "Historico", "description": "Submission history and exports"},
        {"name": "Lojas", "description": "Store directory"},
        {"name": "Uploads", "description": "Photo uploads"},
        {"name": "Webhook", "description": "Delivery endpoint diagnostics"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/api/v1/solicitacoes": {
            "post": {
                "tags": ["Solicitacoes"],
                "summary": "Submit a material request",
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Validation failure"},
                    "502": {"description": "Webhook delivery failure"}
                }
            }
        },
        "/api/v1/historico": {
            "get": {
                "tags": ["Historico"],
                "summary": "List submitted material requests",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/api/v1/historico/{requestId}": {
            "get": {
                "tags": ["Historico"],
                "summary": "Get one material request with its items",
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/api/v1/historico/exportacoes": {
            "post": {
                "tags": ["Historico"],
                "summary": "Start an asynchronous history export",
                "responses": {
                    "202": {"description": "Accepted"}
                }
            }
        },
        "/api/v1/lojas": {
            "get": {
                "tags": ["Lojas"],
                "summary": "List stores available on the intake form",
                "responses": {
                    "200": {"description": "OK"},
                    "503": {"description": "Upstream unavailable"}
                }
            }
        },
        "/api/v1/uploads": {
            "post": {
                "tags": ["Uploads"],
                "summary": "Upload one photo",
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Rejected"}
                }
            }
        },
        "/api/v1/webhook/diagnostico": {
            "post": {
                "tags": ["Webhook"],
                "summary": "Probe the spreadsheet webhook",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        }
    }
}`

// SwaggerInfo holds exported swagger metadata.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "Solicitação de Materiais API",
	Description:      "Intake, delivery and history API for field-technician material requests",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
