// Package docs is generated by swag from the handler annotations
// (swag init -g cmd/server/main.go). Regenerate it after editing them.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Meta"],
                "summary": "Service information",
                "operationId": "root",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ServiceInfo"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Meta"],
                "summary": "Liveness probe",
                "operationId": "health",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.HealthResponse"}}
                }
            }
        },
        "/clips": {
            "post": {
                "description": "Stores text under a fresh short code for ` + "`" + `timer` + "`" + ` seconds.\nSupports idempotency via the Idempotency-Key header (same key → same clip while it lives).",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Clips"],
                "summary": "Create a clip",
                "operationId": "createClip",
                "parameters": [
                    {
                        "type": "string",
                        "example": "7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab",
                        "description": "Idempotency key for safe retries",
                        "name": "Idempotency-Key",
                        "in": "header"
                    },
                    {
                        "description": "Clip payload",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/handlers.CreateClipRequest"}
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {"$ref": "#/definitions/handlers.CreateClipResponse"},
                        "headers": {
                            "Idempotent-Replayed": {"type": "string", "description": "true when the response replays an earlier request"}
                        }
                    },
                    "400": {"description": "Invalid text or timer", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "413": {"description": "Body too large", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/clips/{code}": {
            "get": {
                "description": "Returns the text of a live clip. Codes are matched case-insensitively.",
                "produces": ["application/json"],
                "tags": ["Clips"],
                "summary": "Read a clip",
                "operationId": "getClip",
                "parameters": [
                    {"type": "string", "example": "K7QP2M", "description": "Clip code", "name": "code", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ClipResponse"}},
                    "400": {"description": "Malformed code", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Clip not found or expired", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "delete": {
                "description": "Removes a live clip before it expires.",
                "tags": ["Clips"],
                "summary": "Delete a clip",
                "operationId": "deleteClip",
                "parameters": [
                    {"type": "string", "example": "K7QP2M", "description": "Clip code", "name": "code", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "400": {"description": "Malformed code", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Clip not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.ClipResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "K7QP2M"},
                "expires_at": {"type": "string"},
                "remaining_seconds": {"type": "integer", "example": 42},
                "text": {"type": "string", "example": "hello world"}
            }
        },
        "handlers.CreateClipRequest": {
            "type": "object",
            "properties": {
                "text": {"type": "string", "example": "hello world"},
                "timer": {"type": "integer", "maximum": 600, "minimum": 30, "example": 60}
            }
        },
        "handlers.CreateClipResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "K7QP2M"},
                "expires_at": {"type": "string"},
                "message": {"type": "string", "example": "Clip created successfully"},
                "timer": {"type": "integer", "example": 60}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "not_found"},
                "message": {"type": "string", "example": "clip not found or expired"},
                "request_id": {"type": "string", "example": "2f1d7f3e-6c1a-4d7b-9d8b-1e9f3c2a4b5d"}
            }
        },
        "handlers.HealthResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string", "example": "QuickClip API is running"},
                "status": {"type": "string", "example": "healthy"},
                "timestamp": {"type": "string"}
            }
        },
        "handlers.ServiceInfo": {
            "type": "object",
            "properties": {
                "docs": {"type": "string", "example": "/docs/index.html"},
                "environment": {"type": "string", "example": "development"},
                "health": {"type": "string", "example": "/health"},
                "name": {"type": "string", "example": "QuickClip API"},
                "version": {"type": "string", "example": "1.0.0"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "QuickClip API",
	Description:      "Share short-lived text snippets through short codes.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
