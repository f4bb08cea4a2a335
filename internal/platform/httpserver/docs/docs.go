// Package docs registers the OpenAPI document served under /swagger/.
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
        "/v1/polls": {
            "post": {
                "summary": "Initialize a poll",
                "parameters": [
                    {"type": "string", "name": "Idempotency-Key", "in": "header"},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.InitializePoolRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/http.InitializePoolResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/v1/polls/{poll_id}": {
            "get": {
                "summary": "Read a poll account",
                "parameters": [{"type": "integer", "name": "poll_id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.PollResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/v1/polls/{poll_id}/candidates": {
            "get": {
                "summary": "List candidates of a poll",
                "parameters": [{"type": "integer", "name": "poll_id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.CandidateListResponse"}}
                }
            },
            "post": {
                "summary": "Register a candidate",
                "parameters": [
                    {"type": "integer", "name": "poll_id", "in": "path", "required": true},
                    {"type": "string", "name": "Idempotency-Key", "in": "header"},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.InitializeCandidateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/http.InitializeCandidateResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/v1/polls/{poll_id}/candidates/{name}": {
            "get": {
                "summary": "Read a candidate account",
                "parameters": [
                    {"type": "integer", "name": "poll_id", "in": "path", "required": true},
                    {"type": "string", "name": "name", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.CandidateResponse"}}
                }
            }
        },
        "/v1/polls/{poll_id}/votes": {
            "post": {
                "summary": "Cast a vote as the signer",
                "parameters": [
                    {"type": "integer", "name": "poll_id", "in": "path", "required": true},
                    {"type": "string", "name": "Idempotency-Key", "in": "header"},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.VoteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.VoteResponse"}},
                    "409": {"description": "Already voted or poll closed", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/v1/polls/{poll_id}/close": {
            "post": {
                "summary": "Close a poll (authority only)",
                "parameters": [
                    {"type": "integer", "name": "poll_id", "in": "path", "required": true},
                    {"type": "string", "name": "Idempotency-Key", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.ClosePollResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/v1/polls/{poll_id}/voters/{voter_id}": {
            "get": {
                "summary": "Read a voter record",
                "parameters": [
                    {"type": "integer", "name": "poll_id", "in": "path", "required": true},
                    {"type": "string", "name": "voter_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.VoterRecordResponse"}}
                }
            }
        }
    },
    "definitions": {
        "http.ErrorResponse": {
            "type": "object",
            "properties": {"code": {"type": "string"}, "message": {"type": "string"}}
        },
        "http.InitializePoolRequest": {
            "type": "object",
            "properties": {
                "poll_id": {"type": "integer"},
                "start_time": {"type": "integer"},
                "end_time": {"type": "integer"},
                "question": {"type": "string", "maxLength": 280}
            }
        },
        "http.InitializeCandidateRequest": {
            "type": "object",
            "properties": {"candidate_name": {"type": "string", "maxLength": 100}}
        },
        "http.VoteRequest": {
            "type": "object",
            "properties": {"candidate_name": {"type": "string"}}
        },
        "http.PollResponse": {
            "type": "object",
            "properties": {
                "address": {"type": "string"},
                "poll_id": {"type": "integer"},
                "question": {"type": "string"},
                "start_time": {"type": "integer"},
                "end_time": {"type": "integer"},
                "candidate_count": {"type": "integer"},
                "closed": {"type": "boolean"},
                "authority": {"type": "string"}
            }
        },
        "http.CandidateResponse": {
            "type": "object",
            "properties": {
                "address": {"type": "string"},
                "poll_id": {"type": "integer"},
                "name": {"type": "string"},
                "vote_count": {"type": "integer"}
            }
        },
        "http.VoterRecordResponse": {
            "type": "object",
            "properties": {
                "address": {"type": "string"},
                "poll_id": {"type": "integer"},
                "voter": {"type": "string"},
                "has_voted": {"type": "boolean"},
                "timestamp": {"type": "integer"},
                "candidate": {"type": "string"}
            }
        },
        "http.InitializePoolResponse": {
            "type": "object",
            "properties": {
                "poll": {"$ref": "#/definitions/http.PollResponse"},
                "logs": {"type": "array", "items": {"type": "string"}},
                "replayed": {"type": "boolean"}
            }
        },
        "http.InitializeCandidateResponse": {
            "type": "object",
            "properties": {
                "candidate": {"$ref": "#/definitions/http.CandidateResponse"},
                "poll": {"$ref": "#/definitions/http.PollResponse"},
                "logs": {"type": "array", "items": {"type": "string"}},
                "replayed": {"type": "boolean"}
            }
        },
        "http.VoteResponse": {
            "type": "object",
            "properties": {
                "voter_record": {"$ref": "#/definitions/http.VoterRecordResponse"},
                "candidate": {"$ref": "#/definitions/http.CandidateResponse"},
                "logs": {"type": "array", "items": {"type": "string"}},
                "replayed": {"type": "boolean"}
            }
        },
        "http.ClosePollResponse": {
            "type": "object",
            "properties": {
                "poll": {"$ref": "#/definitions/http.PollResponse"},
                "logs": {"type": "array", "items": {"type": "string"}},
                "replayed": {"type": "boolean"}
            }
        },
        "http.CandidateListResponse": {
            "type": "object",
            "properties": {
                "poll_id": {"type": "integer"},
                "items": {"type": "array", "items": {"$ref": "#/definitions/http.CandidateResponse"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "pollchain API",
	Description:      "Poll program instructions and account reads.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
