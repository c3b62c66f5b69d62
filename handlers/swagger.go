package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger serves a Swagger UI page and the OpenAPI document it loads.
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>portal - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "portal", "version": "v0.1.0" },
  "paths": {
    "/endpoint": {
      "post": {
        "summary": "Submit a signed enrollment token",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"token":{"type":"string"}}}}}},
        "responses": { "200": { "description": "stored; returns confirmation code" }, "400": { "description": "malformed body, invalid token or processing error" }, "401": { "description": "token carried no claims" } }
      }
    },
    "/user-badges": {
      "get": { "summary": "List a user's badges, newest first", "parameters": [{"name":"username","in":"query","required":true,"schema":{"type":"string"}}], "responses": { "200": { "description": "badges" }, "400": { "description": "username missing" } } }
    },
    "/badge/{code}": {
      "get": { "summary": "Verify a badge award", "parameters": [{"name":"code","in":"path","required":true,"schema":{"type":"string"}}], "responses": { "200": { "description": "award details" }, "404": { "description": "unknown code" } } }
    },
    "/badges": {
      "get": { "summary": "Badge admin listing (approved staff)", "responses": { "200": { "description": "badges and awards" }, "302": { "description": "not signed in or not approved" } } },
      "post": { "summary": "Badge admin action: add_badge, edit_badge, grant_badge, revoke_badge, delete_badge", "responses": { "200": { "description": "outcome message plus listing" } } }
    },
    "/enrollments": { "get": { "summary": "Reconciled enrollment table (approved staff)", "responses": { "200": { "description": "columns and rows" } } } },
    "/enrollments/csv": { "get": { "summary": "Enrollment table as CSV (approved staff)", "responses": { "200": { "description": "text/csv attachment" } } } },
    "/manage": {
      "get": { "summary": "Staff accounts by approval (approved staff)", "responses": { "200": { "description": "accounts" } } },
      "post": { "summary": "Approve or unapprove a staff account", "responses": { "200": { "description": "outcome message plus accounts" } } }
    },
    "/auth/logout": {
      "post": { "summary": "Revoke the caller's bearer token", "responses": { "200": { "description": "logged out" }, "401": { "description": "missing or invalid token" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics" } } } }
  }
}`
