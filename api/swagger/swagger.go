package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Melodia School API",
        "description": "Music school API: public catalogue, admin back office, and family portal",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Auth", "description": "Sessions, Google sign-in, and password management"},
        {"name": "Students", "description": "Student records and lifecycle status"},
        {"name": "Families", "description": "Family records and lifecycle status"},
        {"name": "Status", "description": "Status catalogue, rules, and capabilities"},
        {"name": "Programs", "description": "Program catalogue"},
        {"name": "Teachers", "description": "Instructor roster"},
        {"name": "Offerings", "description": "Scheduled class offerings"},
        {"name": "Calendar", "description": "Derived schedule calendar"},
        {"name": "Enrollments", "description": "Student enrollment into offerings"},
        {"name": "Finance", "description": "Invoices, balances, and statements"},
        {"name": "Dashboard", "description": "Admin aggregates and runtime metrics"},
        {"name": "Users", "description": "Account administration"}
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
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Email and password login",
                "responses": {
                    "200": {"description": "Session issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/google": {
            "post": {
                "tags": ["Auth"],
                "summary": "Google sign-in",
                "responses": {
                    "200": {"description": "Session issued"}
                }
            }
        },
        "/students/{id}/status": {
            "put": {
                "tags": ["Students"],
                "summary": "Change a student's lifecycle status",
                "responses": {
                    "200": {"description": "Status changed"},
                    "403": {"description": "Role may not edit status"},
                    "422": {"description": "Transition not allowed"}
                }
            }
        },
        "/families/{id}/status": {
            "put": {
                "tags": ["Families"],
                "summary": "Change a family's lifecycle status",
                "responses": {
                    "200": {"description": "Status changed with impact summary"},
                    "403": {"description": "Role may not edit status"}
                }
            }
        },
        "/calendar/events": {
            "get": {
                "tags": ["Calendar"],
                "summary": "Expand offerings into calendar events for a date window",
                "responses": {
                    "200": {"description": "Events"},
                    "400": {"description": "Invalid window"}
                }
            }
        }
    },
    "definitions": {
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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
