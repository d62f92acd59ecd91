package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Bus Dispatch API",
        "description": "Bus assignment lifecycle and station clearance workflow",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Assignments", "description": "Bus, crew and route pairings"},
        {"name": "Clearance", "description": "Station departure and arrival clearance"}
    ],
    "paths": {
        "/assignments": {
            "get": {
                "tags": ["Assignments"],
                "summary": "List assignments",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "description": "Comma separated statuses"},
                    {"name": "busId", "in": "query", "type": "string"},
                    {"name": "driverId", "in": "query", "type": "string"},
                    {"name": "conductorId", "in": "query", "type": "string"},
                    {"name": "routeId", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Assignments"],
                "summary": "Create an active assignment",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateAssignmentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Bus, route or crew member not found"},
                    "409": {"description": "RESOURCE_BUSY or INVALID_STATE"},
                    "422": {"description": "ROLE_MISMATCH"}
                }
            }
        },
        "/assignments/current": {
            "get": {
                "tags": ["Assignments"],
                "summary": "Active assignment of the calling crew member",
                "responses": {"200": {"description": "OK"}, "404": {"description": "No active assignment"}}
            }
        },
        "/assignments/{id}": {
            "get": {
                "tags": ["Assignments"],
                "summary": "Get assignment detail",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            }
        },
        "/assignments/{id}/transition": {
            "post": {
                "tags": ["Assignments"],
                "summary": "Change assignment status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TransitionRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "409": {"description": "INVALID_TRANSITION"}}
            }
        },
        "/assignments/{id}/position": {
            "post": {
                "tags": ["Assignments"],
                "summary": "Report station progress",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AdvanceStationRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "409": {"description": "INVALID_STATE"}}
            }
        },
        "/assignments/{id}/trip-sheet": {
            "get": {
                "tags": ["Assignments"],
                "summary": "Export the trip sheet",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {"200": {"description": "File"}, "404": {"description": "Not found or disabled"}}
            }
        },
        "/assignments/{id}/requests": {
            "post": {
                "tags": ["Clearance"],
                "summary": "Request clearance at a station",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitClearanceRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "INVALID_STATE"},
                    "422": {"description": "STATION_NOT_ON_ROUTE"}
                }
            }
        },
        "/requests": {
            "get": {
                "tags": ["Clearance"],
                "summary": "List clearance requests",
                "parameters": [
                    {"name": "stationId", "in": "query", "type": "string"},
                    {"name": "assignmentId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/requests/{id}": {
            "get": {
                "tags": ["Clearance"],
                "summary": "Get clearance request",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            }
        },
        "/requests/{id}/resolve": {
            "post": {
                "tags": ["Clearance"],
                "summary": "Approve or reject a pending request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ResolveClearanceRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "409": {"description": "ALREADY_RESOLVED or INVALID_STATE"}}
            }
        }
    },
    "definitions": {
        "CreateAssignmentRequest": {
            "type": "object",
            "required": ["busId", "driverId", "conductorId", "routeId", "startTime"],
            "properties": {
                "busId": {"type": "string"},
                "driverId": {"type": "string"},
                "conductorId": {"type": "string"},
                "routeId": {"type": "string"},
                "startTime": {"type": "string", "format": "date-time"}
            }
        },
        "TransitionRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {"status": {"type": "string", "enum": ["ACTIVE", "COMPLETED", "CANCELLED"]}}
        },
        "AdvanceStationRequest": {
            "type": "object",
            "required": ["stationId"],
            "properties": {"stationId": {"type": "string"}, "inTransit": {"type": "boolean"}}
        },
        "SubmitClearanceRequest": {
            "type": "object",
            "required": ["stationId"],
            "properties": {
                "stationId": {"type": "string"},
                "requestType": {"type": "string", "enum": ["DEPARTURE", "ARRIVAL"]}
            }
        },
        "ResolveClearanceRequest": {
            "type": "object",
            "required": ["decision"],
            "properties": {
                "decision": {"type": "string", "enum": ["APPROVE", "REJECT"]},
                "reason": {"type": "string", "maxLength": 500}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "Page": {
            "type": "object",
            "properties": {
                "limit": {"type": "integer"},
                "offset": {"type": "integer"},
                "count": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "page": {"$ref": "#/definitions/Page"},
                "meta": {"type": "object"}
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
