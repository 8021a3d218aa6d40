package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
)

func registerDocs(r chi.Router, basePath string, playerHeader bool) {
	page := swaggerHTML(basePath, playerHeader)
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, page)
	})
}

// registerOpenAPI serves the generated document with the error envelope and
// security schemes filled in. It is rendered once, on first request, after
// every operation has been registered.
func registerOpenAPI(r chi.Router, api huma.API, basePath string, playerHeader bool) {
	var (
		once sync.Once
		doc  []byte
		err  error
	)
	r.Get(path.Join("/", basePath, "openapi.json"), func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			addErrorResponses(oas)
			addSecurity(oas, basePath, playerHeader)
			doc, err = json.Marshal(oas)
		})
		if err != nil {
			respondStatusError(w, newAPIError(http.StatusInternalServerError, "", err.Error(), nil))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(doc)
	})
}

func operations(item *huma.PathItem) []*huma.Operation {
	var ops []*huma.Operation
	for _, op := range []*huma.Operation{item.Get, item.Put, item.Post, item.Delete, item.Patch} {
		if op != nil {
			ops = append(ops, op)
		}
	}
	return ops
}

func addErrorResponses(oas *huma.OpenAPI) {
	if oas == nil {
		return
	}
	errResp := &huma.Response{
		Description: "Error envelope: {\"error\": {code, message, details}}",
		Content: map[string]*huma.MediaType{
			"application/json": {Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"}},
		},
	}
	for _, item := range oas.Paths {
		for _, op := range operations(item) {
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = errResp
		}
	}
}

func addSecurity(oas *huma.OpenAPI, basePath string, playerHeader bool) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	schemes := map[string]*huma.SecurityScheme{
		"bearerAuth": {Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
		"apiKeyAuth": {Type: "apiKey", In: "header", Name: "X-Api-Key"},
	}
	security := []map[string][]string{{"bearerAuth": {}}, {"apiKeyAuth": {}}}
	if playerHeader {
		schemes["playerHeader"] = &huma.SecurityScheme{Type: "apiKey", In: "header", Name: "X-Player-Id"}
		security = append(security, map[string][]string{"playerHeader": {}})
	}
	oas.Components.SecuritySchemes = schemes
	oas.Security = security
	open := openPaths(basePath)
	for route, item := range oas.Paths {
		for _, op := range operations(item) {
			if open[route] {
				op.Security = []map[string][]string{}
			} else {
				op.Security = security
			}
		}
	}
}

const swaggerPage = `<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Courtline API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css"/>
  </head>
  <body>
    <p style="padding: 0 1rem; font-family: sans-serif; color: #444;">%s</p>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({url: '%s', dom_id: '#swagger-ui', persistAuthorization: true});
      };
    </script>
  </body>
</html>`

func swaggerHTML(basePath string, playerHeader bool) string {
	hint := "Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key."
	if playerHeader {
		hint = "Authenticate with a bearer token, X-Api-Key, or X-Player-Id (trusted on this server)."
	}
	return fmt.Sprintf(swaggerPage, hint, path.Join("/", basePath, "openapi.json"))
}
