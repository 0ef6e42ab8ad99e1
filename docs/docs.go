// Package docs registers the Swagger specification for the API.
// Regenerate with: swag init -g cmd/concatly-core/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "Concatly OSS",
            "url": "https://github.com/custodia-labs/concatly-core/issues"
        },
        "license": {
            "name": "Apache 2.0",
            "url": "http://www.apache.org/licenses/LICENSE-2.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/auth/token": {
            "post": {
                "description": "Exchanges a tenant API key for a short-lived JWT.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Issue an access token",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/pairs": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["pairs"],
                "summary": "List candidate duplicate pairs",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/pairs/scan": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["pairs"],
                "summary": "Scan the index for duplicate pairs",
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request"},
                    "502": {"description": "Bad Gateway"}
                }
            }
        },
        "/pairs/{id}/ignore": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["pairs"],
                "summary": "Mark a pair as not a duplicate",
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found"},
                    "409": {"description": "Conflict"}
                }
            }
        },
        "/merges": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["merges"],
                "summary": "List recorded merge operations",
                "responses": {
                    "200": {"description": "OK"}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["merges"],
                "summary": "Merge a duplicate pair",
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Conflict"},
                    "502": {"description": "Bad Gateway"}
                }
            }
        },
        "/merges/preview": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["merges"],
                "summary": "Draft merged content without applying it",
                "responses": {
                    "200": {"description": "OK"},
                    "502": {"description": "Bad Gateway"}
                }
            }
        },
        "/merges/{id}/undo": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["merges"],
                "summary": "Undo a recorded merge",
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Conflict"}
                }
            }
        },
        "/merges/consistency": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["merges"],
                "summary": "Report ledger and repository mismatches",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/documents/{id}/lineage": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["documents"],
                "summary": "Merge lineage of a document",
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/ingest": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["ingest"],
                "summary": "Ingest a repository container into the index",
                "responses": {
                    "200": {"description": "OK"},
                    "202": {"description": "Accepted"}
                }
            }
        },
        "/tasks/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["ingest"],
                "summary": "Background task status",
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/credentials": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["credentials"],
                "summary": "Current repository connection settings",
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found"}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["credentials"],
                "summary": "Save repository connection settings",
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Bad Request"}
                }
            }
        },
        "/credentials/test": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["credentials"],
                "summary": "Test the repository connection",
                "responses": {
                    "204": {"description": "No Content"},
                    "502": {"description": "Bad Gateway"}
                }
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header",
            "description": "JWT Bearer token. Format: \"Bearer {token}\""
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Concatly Core API",
	Description:      "Duplicate detection and merge-lineage engine.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
