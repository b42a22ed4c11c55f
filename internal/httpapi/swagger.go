//go:build swagger

package httpapi

import (
	"github.com/go-chi/chi/v5"
	"github.com/swaggo/swag"

	httpSwagger "github.com/swaggo/http-swagger"
)

// swaggerTemplate is kept in step with the handler annotations by hand until
// the generated docs package replaces it.
const swaggerTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/generate": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["generation"],
                "summary": "Generate a completion",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/types.GenerateRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.GenerateResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "415": {"description": "Unsupported Media Type", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "504": {"description": "Gateway Timeout", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/embeddings": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["generation"],
                "summary": "Embed text",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/types.EmbeddingsRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.EmbeddingsResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Backend health",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.HealthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/models": {
            "get": {
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "List backend models",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelsResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Service status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.GenerateRequest": {
            "type": "object",
            "required": ["prompt"],
            "properties": {
                "model": {"type": "string", "example": "mistral"},
                "prompt": {"type": "string", "example": "Write a haiku about the ocean."},
                "system": {"type": "string"},
                "max_tokens": {"type": "integer", "example": 500},
                "temperature": {"type": "number", "example": 0.7},
                "top_p": {"type": "number", "example": 0.9},
                "top_k": {"type": "integer", "example": 40},
                "repeat_penalty": {"type": "number", "example": 1.1}
            }
        },
        "types.GenerateResponse": {
            "type": "object",
            "properties": {"response": {"type": "string"}}
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {"detail": {"type": "string", "example": "prompt is required"}}
        },
        "types.HealthResponse": {
            "type": "object",
            "properties": {"status": {"type": "string", "example": "healthy"}}
        },
        "types.ModelsResponse": {
            "type": "object",
            "properties": {"models": {"type": "array", "items": {"type": "string"}}}
        },
        "types.EmbeddingsRequest": {
            "type": "object",
            "properties": {"model": {"type": "string"}, "prompt": {"type": "string"}}
        },
        "types.EmbeddingsResponse": {
            "type": "object",
            "properties": {"embedding": {"type": "array", "items": {"type": "number"}}}
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "default_model": {"type": "string"},
                "mode": {"type": "string"},
                "uptime_seconds": {"type": "integer"},
                "requests_total": {"type": "integer"},
                "fallback_total": {"type": "integer"}
            }
        }
    }
}`

// swaggerInfo holds exported Swagger Info so clients can modify it.
var swaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "lowkeyllama API",
	Description:      "Local LLM facade: one prompt in, one complete answer out.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  swaggerTemplate,
}

func init() {
	swag.Register(swaggerInfo.InstanceName(), swaggerInfo)
}

// MountSwagger serves the Swagger UI and doc.json under /swagger/.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}
