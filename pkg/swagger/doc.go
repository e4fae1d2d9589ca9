// Package swagger serves the OpenAPI description of the depgraph HTTP API
// at /openapi.yaml and /openapi.json, and a Swagger UI page at /swagger-ui.
package swagger
