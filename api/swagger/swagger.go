package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Defense Allocation API",
        "description": "Schedules thesis defenses, allocates areas and case studies, and balances juries.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "in": "header", "name": "Authorization"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Defenses", "description": "Defense allocation, grading and rooms"},
        {"name": "Juries", "description": "Jury assignment and workload"}
    ],
    "paths": {
        "/defenses/allocations": {
            "post": {
                "tags": ["Defenses"],
                "summary": "Allocate defenses for a batch of students",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AllocateDefensesRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Allocation rejected, nothing persisted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/defenses": {
            "get": {
                "tags": ["Defenses"],
                "summary": "List defenses",
                "parameters": [
                    {"name": "student_id", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["PENDIENTE", "ASIGNADO", "APROBADO", "REPROBADO"]},
                    {"name": "date", "in": "query", "type": "string", "format": "date"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/defenses/export": {
            "get": {
                "tags": ["Defenses"],
                "summary": "Export the defense schedule",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "student_id", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "date", "in": "query", "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}}
                }
            }
        },
        "/defenses/{id}": {
            "get": {
                "tags": ["Defenses"],
                "summary": "Get defense detail",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/defenses/{id}/grade": {
            "put": {
                "tags": ["Defenses"],
                "summary": "Record the final grade of a defense",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordGradeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/defenses/{id}/room": {
            "put": {
                "tags": ["Defenses"],
                "summary": "Assign the room of a defense",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordRoomRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/juries/assignments": {
            "post": {
                "tags": ["Juries"],
                "summary": "Assign jurors to defenses",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AssignJuryRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Assignment rejected", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/juries/suggestions": {
            "get": {
                "tags": ["Juries"],
                "summary": "List jurors with workload suggestion",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "AllocateDefensesRequest": {
            "type": "object",
            "required": ["student_ids", "defense_type_id", "scheduled_at"],
            "properties": {
                "student_ids": {"type": "array", "items": {"type": "string"}},
                "defense_type_id": {"type": "string"},
                "scheduled_at": {"type": "string", "format": "date-time"},
                "auto_pick_area": {"type": "boolean"},
                "auto_pick_case": {"type": "boolean"},
                "area_id": {"type": "string"},
                "case_study_id": {"type": "string"}
            }
        },
        "RecordGradeRequest": {
            "type": "object",
            "required": ["grade"],
            "properties": {
                "grade": {"type": "number", "minimum": 0, "maximum": 100}
            }
        },
        "RecordRoomRequest": {
            "type": "object",
            "required": ["room"],
            "properties": {
                "room": {"type": "string", "maxLength": 100}
            }
        },
        "AssignJuryRequest": {
            "type": "object",
            "required": ["defense_ids"],
            "properties": {
                "defense_ids": {"type": "array", "items": {"type": "string"}},
                "auto": {"type": "boolean"},
                "jury_ids": {"type": "array", "items": {"type": "string"}}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
