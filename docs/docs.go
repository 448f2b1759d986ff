// Package docs は /swagger で配信する API ドキュメント。
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
    "securityDefinitions": {
        "Bearer": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["auth"], "summary": "Register a user account",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}],
                "responses": {"201": {"description": "created", "schema": {"$ref": "#/definitions/User"}}, "403": {"description": "admin self-registration"}, "409": {"description": "duplicate username or email"}}
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["auth"], "summary": "Log in and obtain a bearer token",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}],
                "responses": {"200": {"description": "ok", "schema": {"$ref": "#/definitions/LoginResponse"}}, "401": {"description": "invalid credentials"}}
            }
        },
        "/auth/forgot-password": {
            "post": {"tags": ["auth"], "summary": "Request a password reset", "responses": {"202": {"description": "accepted"}}}
        },
        "/users": {
            "get": {"tags": ["admin"], "security": [{"Bearer": []}], "summary": "List users", "responses": {"200": {"description": "ok", "schema": {"type": "array", "items": {"$ref": "#/definitions/User"}}}}}
        },
        "/admin/create-admin": {
            "post": {
                "tags": ["admin"], "security": [{"Bearer": []}], "summary": "Create an admin account",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}],
                "responses": {"201": {"description": "created", "schema": {"$ref": "#/definitions/User"}}}
            }
        },
        "/admin/users/{id}": {
            "delete": {
                "tags": ["admin"], "security": [{"Bearer": []}], "summary": "Delete an admin account",
                "parameters": [{"in": "path", "name": "id", "type": "integer", "required": true}],
                "responses": {"200": {"description": "deleted"}, "403": {"description": "target is not an admin"}, "409": {"description": "self deletion"}}
            }
        },
        "/keys": {
            "get": {
                "tags": ["keys"], "security": [{"Bearer": []}], "summary": "List keys",
                "parameters": [
                    {"in": "query", "name": "status", "type": "string"},
                    {"in": "query", "name": "department", "type": "string"},
                    {"in": "query", "name": "q", "type": "string"}
                ],
                "responses": {"200": {"description": "ok", "schema": {"type": "array", "items": {"$ref": "#/definitions/Key"}}}}
            },
            "post": {
                "tags": ["keys"], "security": [{"Bearer": []}], "summary": "Create a key",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/KeyInput"}}],
                "responses": {"201": {"description": "created", "schema": {"$ref": "#/definitions/Key"}}}
            }
        },
        "/keys/stats": {
            "get": {"tags": ["keys"], "security": [{"Bearer": []}], "summary": "Key counts by status", "responses": {"200": {"description": "ok", "schema": {"$ref": "#/definitions/Stats"}}}}
        },
        "/keys/{id}": {
            "get": {"tags": ["keys"], "security": [{"Bearer": []}], "summary": "Get a key", "parameters": [{"in": "path", "name": "id", "type": "integer", "required": true}], "responses": {"200": {"description": "ok", "schema": {"$ref": "#/definitions/Key"}}, "404": {"description": "not found"}}},
            "put": {"tags": ["keys"], "security": [{"Bearer": []}], "summary": "Edit key fields", "parameters": [{"in": "path", "name": "id", "type": "integer", "required": true}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/KeyInput"}}], "responses": {"200": {"description": "ok", "schema": {"$ref": "#/definitions/Key"}}, "409": {"description": "invalid state"}}},
            "delete": {"tags": ["keys"], "security": [{"Bearer": []}], "summary": "Delete a key and its history", "parameters": [{"in": "path", "name": "id", "type": "integer", "required": true}], "responses": {"200": {"description": "deleted"}}}
        },
        "/keys/{id}/assign": {
            "post": {"tags": ["keys"], "security": [{"Bearer": []}], "summary": "Assign an available key", "parameters": [{"in": "path", "name": "id", "type": "integer", "required": true}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/AssignRequest"}}], "responses": {"200": {"description": "ok", "schema": {"$ref": "#/definitions/Key"}}, "409": {"description": "key is not available"}}}
        },
        "/keys/{id}/return": {
            "post": {"tags": ["keys"], "security": [{"Bearer": []}], "summary": "Return an assigned key", "parameters": [{"in": "path", "name": "id", "type": "integer", "required": true}], "responses": {"200": {"description": "ok", "schema": {"$ref": "#/definitions/Key"}}, "409": {"description": "key is not assigned"}}}
        },
        "/keys/{id}/history": {
            "get": {"tags": ["keys"], "security": [{"Bearer": []}], "summary": "Key history, newest first", "parameters": [{"in": "path", "name": "id", "type": "integer", "required": true}], "responses": {"200": {"description": "ok", "schema": {"type": "array", "items": {"$ref": "#/definitions/HistoryEvent"}}}}}
        },
        "/departments": {
            "get": {"tags": ["departments"], "summary": "List departments", "responses": {"200": {"description": "ok"}}},
            "post": {"tags": ["departments"], "security": [{"Bearer": []}], "summary": "Create a department", "responses": {"201": {"description": "created"}, "409": {"description": "duplicate name"}}}
        },
        "/activity": {
            "get": {"tags": ["reports"], "security": [{"Bearer": []}], "summary": "Last 10 history events", "responses": {"200": {"description": "ok"}}}
        },
        "/reports": {
            "post": {"tags": ["reports"], "security": [{"Bearer": []}], "summary": "Generate a report", "responses": {"200": {"description": "ok"}}}
        },
        "/backup": {
            "post": {"tags": ["backup"], "security": [{"Bearer": []}], "summary": "Download a store snapshot", "produces": ["application/octet-stream"], "responses": {"200": {"description": "file"}}}
        }
    },
    "definitions": {
        "RegisterRequest": {"type": "object", "properties": {"username": {"type": "string"}, "email": {"type": "string"}, "password": {"type": "string"}, "department": {"type": "string"}, "role": {"type": "string"}}},
        "LoginRequest": {"type": "object", "properties": {"username": {"type": "string"}, "password": {"type": "string"}}},
        "LoginResponse": {"type": "object", "properties": {"token": {"type": "string"}, "id": {"type": "integer"}, "username": {"type": "string"}, "role": {"type": "string"}, "expiresAt": {"type": "string"}}},
        "User": {"type": "object", "properties": {"id": {"type": "integer"}, "username": {"type": "string"}, "email": {"type": "string"}, "department": {"type": "string"}, "role": {"type": "string"}, "createdAt": {"type": "string"}}},
        "KeyInput": {"type": "object", "properties": {"name": {"type": "string"}, "type": {"type": "string"}, "status": {"type": "string"}, "department": {"type": "string"}, "faculty": {"type": "string"}, "building": {"type": "string"}, "room": {"type": "string"}, "notes": {"type": "string"}}},
        "Key": {"type": "object", "properties": {"id": {"type": "integer"}, "name": {"type": "string"}, "type": {"type": "string"}, "status": {"type": "string", "enum": ["Available", "Assigned", "Lost", "Damaged"]}, "assignedTo": {"type": "string"}, "department": {"type": "string"}, "faculty": {"type": "string"}, "building": {"type": "string"}, "room": {"type": "string"}, "notes": {"type": "string"}, "lastUpdated": {"type": "string"}}},
        "AssignRequest": {"type": "object", "properties": {"person": {"type": "string"}, "department": {"type": "string"}, "faculty": {"type": "string"}, "notes": {"type": "string"}}},
        "HistoryEvent": {"type": "object", "properties": {"id": {"type": "integer"}, "ulid": {"type": "string"}, "keyId": {"type": "integer"}, "action": {"type": "string"}, "person": {"type": "string"}, "department": {"type": "string"}, "faculty": {"type": "string"}, "date": {"type": "string"}, "notes": {"type": "string"}, "actor": {"type": "string"}}},
        "Stats": {"type": "object", "properties": {"totalKeys": {"type": "integer"}, "assignedKeys": {"type": "integer"}, "availableKeys": {"type": "integer"}, "lostKeys": {"type": "integer"}, "damagedKeys": {"type": "integer"}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "KeyTrack API",
	Description:      "University key inventory tracker.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
