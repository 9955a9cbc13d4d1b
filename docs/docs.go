// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

// Package docs holds the Swagger 2.0 document served at /swagger/doc.json.
// Keep it in step with the @Router annotations in internal/api.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "GitHub Repository",
            "url": "https://github.com/tomtom215/releasewatch"
        },
        "license": {
            "name": "AGPL-3.0-or-later",
            "url": "https://www.gnu.org/licenses/agpl-3.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "description": "Always 200. status is degraded when the store ping fails or the catalog circuit breaker is open.",
                "produces": ["application/json"],
                "tags": ["Core"],
                "summary": "Get service health",
                "responses": {
                    "200": {
                        "description": "Health status",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/api.APIResponse"},
                                {"type": "object", "properties": {"data": {"$ref": "#/definitions/api.HealthStatus"}}}
                            ]
                        }
                    }
                }
            }
        },
        "/health/live": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Core"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {"description": "Process is alive", "schema": {"$ref": "#/definitions/api.APIResponse"}}
                }
            }
        },
        "/health/ready": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Core"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "Store reachable", "schema": {"$ref": "#/definitions/api.APIResponse"}},
                    "503": {"description": "Store unreachable", "schema": {"$ref": "#/definitions/api.APIResponse"}}
                }
            }
        },
        "/metrics": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["Core"],
                "summary": "Prometheus metrics",
                "responses": {
                    "200": {"description": "Prometheus exposition format"}
                }
            }
        },
        "/api/v1/subscribe": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Subscriptions"],
                "summary": "Get a subscription",
                "parameters": [
                    {"type": "string", "description": "Subscriber email", "name": "email", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {
                        "description": "Subscriber",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/api.APIResponse"},
                                {"type": "object", "properties": {"data": {"$ref": "#/definitions/models.Subscriber"}}}
                            ]
                        }
                    },
                    "400": {"description": "Invalid email", "schema": {"$ref": "#/definitions/api.APIResponse"}},
                    "404": {"description": "Subscriber not found", "schema": {"$ref": "#/definitions/api.APIResponse"}}
                }
            },
            "post": {
                "description": "Creates or updates a subscriber. followed_artists is always replaced; channels and addresses change only when provided.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Subscriptions"],
                "summary": "Subscribe to new-release notifications",
                "parameters": [
                    {"description": "Subscription", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.SubscribeRequest"}}
                ],
                "responses": {
                    "200": {"description": "Subscriber updated", "schema": {"$ref": "#/definitions/api.APIResponse"}},
                    "201": {"description": "Subscriber created", "schema": {"$ref": "#/definitions/api.APIResponse"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/api.APIResponse"}},
                    "413": {"description": "Request body too large", "schema": {"$ref": "#/definitions/api.APIResponse"}}
                }
            }
        },
        "/api/v1/update-telegram-id": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Subscriptions"],
                "summary": "Set a subscriber's Telegram chat ID",
                "parameters": [
                    {"description": "Email and chat ID", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.UpdateChatIDRequest"}}
                ],
                "responses": {
                    "200": {"description": "Subscriber updated", "schema": {"$ref": "#/definitions/api.APIResponse"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/api.APIResponse"}},
                    "404": {"description": "Subscriber not found", "schema": {"$ref": "#/definitions/api.APIResponse"}}
                }
            }
        },
        "/api/v1/update-phone-number": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Subscriptions"],
                "summary": "Set a subscriber's phone number",
                "parameters": [
                    {"description": "Email and E.164 phone number", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.UpdatePhoneRequest"}}
                ],
                "responses": {
                    "200": {"description": "Subscriber updated", "schema": {"$ref": "#/definitions/api.APIResponse"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/api.APIResponse"}},
                    "404": {"description": "Subscriber not found", "schema": {"$ref": "#/definitions/api.APIResponse"}}
                }
            }
        },
        "/api/v1/search_artists": {
            "get": {
                "description": "Proxies the Spotify artist search. /api/v1/search-artists is an alias.",
                "produces": ["application/json"],
                "tags": ["Catalog"],
                "summary": "Search artists",
                "parameters": [
                    {"maxLength": 100, "minLength": 1, "type": "string", "description": "Search text", "name": "q", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {
                        "description": "Matching artists",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/api.APIResponse"},
                                {"type": "object", "properties": {"data": {"type": "array", "items": {"$ref": "#/definitions/models.Artist"}}}}
                            ]
                        }
                    },
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/api.APIResponse"}},
                    "502": {"description": "Catalog upstream error", "schema": {"$ref": "#/definitions/api.APIResponse"}},
                    "503": {"description": "Catalog not configured", "schema": {"$ref": "#/definitions/api.APIResponse"}}
                }
            }
        },
        "/api/v1/admin/notifications": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "List sent notifications, newest first",
                "parameters": [
                    {"maximum": 500, "minimum": 1, "type": "integer", "default": 100, "description": "Maximum entries", "name": "limit", "in": "query"},
                    {"type": "string", "description": "Only this subscriber", "name": "email", "in": "query"}
                ],
                "responses": {
                    "200": {
                        "description": "Ledger entries",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/api.APIResponse"},
                                {"type": "object", "properties": {"data": {"type": "array", "items": {"$ref": "#/definitions/models.NotificationRecord"}}}}
                            ]
                        }
                    },
                    "400": {"description": "Invalid limit", "schema": {"$ref": "#/definitions/api.APIResponse"}},
                    "401": {"description": "Admin token required", "schema": {"$ref": "#/definitions/api.APIResponse"}},
                    "403": {"description": "Admin role required", "schema": {"$ref": "#/definitions/api.APIResponse"}}
                }
            }
        },
        "/api/v1/admin/cycles": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Runs one reconciliation cycle synchronously. metadata.count is the number of dispatched notifications.",
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Run a reconciliation cycle",
                "responses": {
                    "200": {
                        "description": "Cycle summary",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/api.APIResponse"},
                                {"type": "object", "properties": {"data": {"$ref": "#/definitions/models.CycleSummary"}}}
                            ]
                        }
                    },
                    "401": {"description": "Admin token required", "schema": {"$ref": "#/definitions/api.APIResponse"}},
                    "409": {"description": "A cycle is already running", "schema": {"$ref": "#/definitions/api.APIResponse"}}
                }
            }
        },
        "/api/v1/admin/cycles/last": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Get the last cycle summary",
                "responses": {
                    "200": {
                        "description": "Cycle summary",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/api.APIResponse"},
                                {"type": "object", "properties": {"data": {"$ref": "#/definitions/models.CycleSummary"}}}
                            ]
                        }
                    },
                    "401": {"description": "Admin token required", "schema": {"$ref": "#/definitions/api.APIResponse"}},
                    "404": {"description": "No cycle has run yet", "schema": {"$ref": "#/definitions/api.APIResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.APIResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "success"},
                "data": {},
                "metadata": {"$ref": "#/definitions/api.Metadata"},
                "error": {"$ref": "#/definitions/api.APIError"}
            }
        },
        "api.Metadata": {
            "type": "object",
            "properties": {
                "timestamp": {"type": "string", "format": "date-time"},
                "request_id": {"type": "string"},
                "count": {"type": "integer"}
            }
        },
        "api.APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "VALIDATION_ERROR"},
                "message": {"type": "string"},
                "details": {"type": "object"}
            }
        },
        "api.HealthStatus": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "healthy"},
                "version": {"type": "string"},
                "uptime_seconds": {"type": "number"},
                "store": {"type": "string"},
                "store_error": {"type": "string"},
                "catalog_breaker": {"type": "string", "example": "closed"},
                "events": {"type": "string"},
                "cycle_running": {"type": "boolean"},
                "last_cycle": {"$ref": "#/definitions/models.CycleSummary"}
            }
        },
        "api.SubscribeRequest": {
            "type": "object",
            "required": ["email"],
            "properties": {
                "email": {"type": "string", "maxLength": 254, "example": "fan@example.com"},
                "followed_artists": {"type": "array", "items": {"$ref": "#/definitions/models.FollowedArtist"}},
                "subscribed_artists": {"type": "array", "description": "Legacy alias of followed_artists", "items": {"$ref": "#/definitions/models.FollowedArtist"}},
                "notification_channels": {"type": "array", "items": {"type": "string", "enum": ["email", "chat", "sms"]}},
                "notification_methods": {"type": "array", "description": "Legacy alias of notification_channels", "items": {"type": "string"}},
                "telegram_chat_id": {"type": "string"},
                "phone_number": {"type": "string", "example": "+15551234567"}
            }
        },
        "api.UpdateChatIDRequest": {
            "type": "object",
            "required": ["email", "telegram_chat_id"],
            "properties": {
                "email": {"type": "string"},
                "telegram_chat_id": {"type": "string"}
            }
        },
        "api.UpdatePhoneRequest": {
            "type": "object",
            "required": ["email", "phone_number"],
            "properties": {
                "email": {"type": "string"},
                "phone_number": {"type": "string"}
            }
        },
        "models.FollowedArtist": {
            "type": "object",
            "required": ["id"],
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "url": {"type": "string"}
            }
        },
        "models.Subscriber": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "followed_artists": {"type": "array", "items": {"$ref": "#/definitions/models.FollowedArtist"}},
                "notification_channels": {"type": "array", "items": {"type": "string"}},
                "telegram_chat_id": {"type": "string"},
                "phone_number": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        },
        "models.Artist": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "popularity": {"type": "integer"},
                "genres": {"type": "array", "items": {"type": "string"}},
                "image_url": {"type": "string"},
                "url": {"type": "string"}
            }
        },
        "models.NotificationRecord": {
            "type": "object",
            "properties": {
                "subscriber_email": {"type": "string"},
                "release_id": {"type": "string"},
                "channel": {"type": "string"},
                "release_name": {"type": "string"},
                "release_url": {"type": "string"},
                "release_artist_ids": {"type": "array", "items": {"type": "string"}},
                "matched_artist_ids": {"type": "array", "items": {"type": "string"}},
                "address": {"type": "string"},
                "external_id": {"type": "string"},
                "cycle_id": {"type": "string"},
                "sent_at": {"type": "string", "format": "date-time"}
            }
        },
        "models.CycleSummary": {
            "type": "object",
            "properties": {
                "cycle_id": {"type": "string"},
                "result": {"type": "string", "enum": ["ok", "overlap", "store_error", "catalog_error", "canceled", "panic"]},
                "started_at": {"type": "string", "format": "date-time"},
                "finished_at": {"type": "string", "format": "date-time"},
                "duration_ns": {"type": "integer"},
                "subscribers": {"type": "integer"},
                "releases": {"type": "integer"},
                "matches": {"type": "integer"},
                "dispatched": {"type": "integer"},
                "failed": {"type": "integer"},
                "already_notified": {"type": "integer"},
                "missing_address": {"type": "integer"},
                "channel_disabled": {"type": "integer"},
                "ledger_write_failures": {"type": "integer"},
                "error": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Admin JWT minted with releasectl token: \"Bearer {token}\"",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Releasewatch API",
	Description:      "Subscribe to new-release notifications for followed artists by email, Telegram or SMS.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
