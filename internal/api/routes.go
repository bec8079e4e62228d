package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ListGroupsParams defines parameters for ListGroups.
type ListGroupsParams struct {
	// Limit caps the number of groups returned.
	Limit *int `form:"limit,omitempty" json:"limit,omitempty"`
}

// RunDedupParams defines parameters for RunDedup.
type RunDedupParams struct {
	DryRun *bool `form:"dry_run,omitempty" json:"dry_run,omitempty"`
	Limit  *int  `form:"limit,omitempty" json:"limit,omitempty"`
}

// ListBatchesParams defines parameters for ListBatches.
type ListBatchesParams struct {
	Limit *int `form:"limit,omitempty" json:"limit,omitempty"`
}

// IngestParams defines parameters for Ingest.
type IngestParams struct {
	// Preview tags the batch without storing it.
	Preview *bool `form:"preview,omitempty" json:"preview,omitempty"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// (GET /health)
	GetHealth(w http.ResponseWriter, r *http.Request)
	// (GET /dedup/groups)
	ListGroups(w http.ResponseWriter, r *http.Request, params ListGroupsParams)
	// (POST /dedup/run)
	RunDedup(w http.ResponseWriter, r *http.Request, params RunDedupParams)
	// (GET /batches)
	ListBatches(w http.ResponseWriter, r *http.Request, params ListBatchesParams)
	// (POST /batches/{batchId}/restore)
	RestoreBatch(w http.ResponseWriter, r *http.Request, batchId string)
	// (POST /ingest)
	Ingest(w http.ResponseWriter, r *http.Request, params IngestParams)
	// (GET /stats)
	GetStats(w http.ResponseWriter, r *http.Request)
}

// ServerInterfaceWrapper converts contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// InvalidParamFormatError is returned when a parameter cannot be bound.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

// GetHealth operation middleware
func (siw *ServerInterfaceWrapper) GetHealth(w http.ResponseWriter, r *http.Request) {
	siw.Handler.GetHealth(w, r)
}

// ListGroups operation middleware
func (siw *ServerInterfaceWrapper) ListGroups(w http.ResponseWriter, r *http.Request) {
	var params ListGroupsParams

	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &params.Limit); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "limit", Err: err})
		return
	}

	siw.Handler.ListGroups(w, r, params)
}

// RunDedup operation middleware
func (siw *ServerInterfaceWrapper) RunDedup(w http.ResponseWriter, r *http.Request) {
	var params RunDedupParams

	if err := runtime.BindQueryParameter("form", true, false, "dry_run", r.URL.Query(), &params.DryRun); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "dry_run", Err: err})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &params.Limit); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "limit", Err: err})
		return
	}

	siw.Handler.RunDedup(w, r, params)
}

// ListBatches operation middleware
func (siw *ServerInterfaceWrapper) ListBatches(w http.ResponseWriter, r *http.Request) {
	var params ListBatchesParams

	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &params.Limit); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "limit", Err: err})
		return
	}

	siw.Handler.ListBatches(w, r, params)
}

// RestoreBatch operation middleware
func (siw *ServerInterfaceWrapper) RestoreBatch(w http.ResponseWriter, r *http.Request) {
	var batchId string

	err := runtime.BindStyledParameterWithOptions("simple", "batchId", chi.URLParam(r, "batchId"), &batchId,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "batchId", Err: err})
		return
	}

	siw.Handler.RestoreBatch(w, r, batchId)
}

// Ingest operation middleware
func (siw *ServerInterfaceWrapper) Ingest(w http.ResponseWriter, r *http.Request) {
	var params IngestParams

	if err := runtime.BindQueryParameter("form", true, false, "preview", r.URL.Query(), &params.Preview); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "preview", Err: err})
		return
	}

	siw.Handler.Ingest(w, r, params)
}

// GetStats operation middleware
func (siw *ServerInterfaceWrapper) GetStats(w http.ResponseWriter, r *http.Request) {
	siw.Handler.GetStats(w, r)
}

// HandlerFromMux registers the operations of si on r.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	wrapper := ServerInterfaceWrapper{
		Handler: si,
		ErrorHandlerFunc: func(w http.ResponseWriter, r *http.Request, err error) {
			writeError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
		},
	}

	r.Get("/health", wrapper.GetHealth)
	r.Get("/dedup/groups", wrapper.ListGroups)
	r.Post("/dedup/run", wrapper.RunDedup)
	r.Get("/batches", wrapper.ListBatches)
	r.Post("/batches/{batchId}/restore", wrapper.RestoreBatch)
	r.Post("/ingest", wrapper.Ingest)
	r.Get("/stats", wrapper.GetStats)

	return r
}
