// Package http exposes the preprocessors over a JSON API.
package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"go.ngs.io/climate-preproc/internal/adapter/store/csv"
	"go.ngs.io/climate-preproc/internal/domain"
	"go.ngs.io/climate-preproc/internal/preprocessor"
	"go.ngs.io/climate-preproc/internal/preprocessor/derive"
	"go.ngs.io/climate-preproc/internal/usecase"
)

// Handler handles HTTP requests for the preprocessors.
type Handler struct {
	preprocessUC *usecase.PreprocessUseCase
	log          logrus.FieldLogger
}

// NewHandler creates a new HTTP handler.
func NewHandler(preprocessUC *usecase.PreprocessUseCase, log logrus.FieldLogger) *Handler {
	return &Handler{
		preprocessUC: preprocessUC,
		log:          log,
	}
}

// fxFilesParam accepts fx fields either as an ordered list of
// {"name", "path"} objects or as an object keyed by field name, which is
// ordered by name.
type fxFilesParam preprocessor.FxFiles

func (f *fxFilesParam) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var m map[string]string
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return err
		}
		*f = fxFilesParam(preprocessor.FxFilesFromMap(m))
		return nil
	}
	var list []preprocessor.FxFile
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return err
	}
	*f = list
	return nil
}

type statisticsBody struct {
	File     string       `json:"file" binding:"required"`
	Variable string       `json:"variable"`
	Operator string       `json:"operator" binding:"required,operator"`
	Project  string       `json:"project"`
	Dataset  string       `json:"dataset"`
	FxFiles  fxFilesParam `json:"fx_files"`
}

type extractRegionBody struct {
	File           string   `json:"file" binding:"required"`
	Variable       string   `json:"variable"`
	StartLongitude *float64 `json:"start_longitude" binding:"required"`
	EndLongitude   *float64 `json:"end_longitude" binding:"required"`
	StartLatitude  *float64 `json:"start_latitude" binding:"required,gte=-90,lte=90"`
	EndLatitude    *float64 `json:"end_latitude" binding:"required,gte=-90,lte=90"`
}

type namedRegionsBody struct {
	File     string `json:"file" binding:"required"`
	Variable string `json:"variable"`
	Regions  any    `json:"regions" binding:"required"`
}

type deriveBody struct {
	Files   map[string]string `json:"files" binding:"required,min=1"`
	Dataset string            `json:"dataset"`
	FxFiles fxFilesParam      `json:"fx_files"`
}

type fixBody struct {
	Project   string `json:"project" binding:"required"`
	Dataset   string `json:"dataset" binding:"required"`
	Variable  string `json:"variable" binding:"required"`
	File      string `json:"file" binding:"required"`
	OutputDir string `json:"output_dir" binding:"required"`
}

// Statistics handles POST /v1/preprocess/{area,zonal,meridional}-statistics.
func (h *Handler) Statistics(kind usecase.StatisticKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body statisticsBody
		if !h.bind(c, &body) {
			return
		}
		cube, err := h.preprocessUC.Statistics(kind, usecase.StatisticsRequest{
			File:     body.File,
			Variable: body.Variable,
			Operator: body.Operator,
			Project:  body.Project,
			Dataset:  body.Dataset,
			FxFiles:  preprocessor.FxFiles(body.FxFiles),
		})
		h.respondCube(c, cube, err)
	}
}

// ExtractRegion handles POST /v1/preprocess/extract-region.
func (h *Handler) ExtractRegion(c *gin.Context) {
	var body extractRegionBody
	if !h.bind(c, &body) {
		return
	}
	cube, err := h.preprocessUC.ExtractRegion(usecase.RegionRequest{
		File:           body.File,
		Variable:       body.Variable,
		StartLongitude: *body.StartLongitude,
		EndLongitude:   *body.EndLongitude,
		StartLatitude:  *body.StartLatitude,
		EndLatitude:    *body.EndLatitude,
	})
	h.respondCube(c, cube, err)
}

// ExtractNamedRegions handles POST /v1/preprocess/extract-named-regions.
func (h *Handler) ExtractNamedRegions(c *gin.Context) {
	var body namedRegionsBody
	if !h.bind(c, &body) {
		return
	}
	cube, err := h.preprocessUC.ExtractNamedRegions(usecase.NamedRegionsRequest{
		File:     body.File,
		Variable: body.Variable,
		Regions:  body.Regions,
	})
	h.respondCube(c, cube, err)
}

// Derive handles POST /v1/derive/:name.
func (h *Handler) Derive(c *gin.Context) {
	var body deriveBody
	if !h.bind(c, &body) {
		return
	}
	cube, err := h.preprocessUC.Derive(c.Param("name"), usecase.DeriveRequest{
		Files:   body.Files,
		Dataset: body.Dataset,
		FxFiles: preprocessor.FxFiles(body.FxFiles),
	})
	h.respondCube(c, cube, err)
}

// ApplyFixes handles POST /v1/fixes/apply.
func (h *Handler) ApplyFixes(c *gin.Context) {
	var body fixBody
	if !h.bind(c, &body) {
		return
	}
	result, err := h.preprocessUC.ApplyFixes(usecase.FixRequest{
		Project:   body.Project,
		Dataset:   body.Dataset,
		Variable:  body.Variable,
		File:      body.File,
		OutputDir: body.OutputDir,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetOperators handles GET /v1/operators.
func (h *Handler) GetOperators(c *gin.Context) {
	operators := usecase.Operators()
	c.JSON(http.StatusOK, gin.H{
		"operators": operators,
		"count":     len(operators),
	})
}

// GetDerivedVariables handles GET /v1/derive.
func (h *Handler) GetDerivedVariables(c *gin.Context) {
	variables := usecase.DerivedVariables()
	c.JSON(http.StatusOK, gin.H{
		"variables": variables,
		"count":     len(variables),
	})
}

// GetFixes handles GET /v1/fixes.
func (h *Handler) GetFixes(c *gin.Context) {
	keys := h.preprocessUC.FixKeys()
	c.JSON(http.StatusOK, gin.H{
		"fixes": keys,
		"count": len(keys),
	})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// bind decodes the JSON body into dst and writes a 400 response on failure.
func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      bindingMessage(err),
			"kind":       "invalid_request",
			"request_id": c.GetString("request_id"),
		})
		return false
	}
	return true
}

func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Sprintf("invalid request body: %v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := toSnake(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "operator":
			msgs = append(msgs, (&domain.InvalidOperatorError{Token: fmt.Sprint(fe.Value())}).Error())
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		}
	}
	return strings.Join(msgs, "; ")
}

// toSnake converts a Go field name such as StartLongitude to start_longitude.
func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// respondCube writes cube as JSON, or as CSV when format=csv.
func (h *Handler) respondCube(c *gin.Context, cube *domain.Cube, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	switch c.DefaultQuery("format", "json") {
	case "csv":
		var buf bytes.Buffer
		if err := csv.WriteCube(&buf, cube); err != nil {
			h.respondError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	case "json":
		resp, err := usecase.NewCubeResponse(cube)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      fmt.Sprintf("unsupported format %q: expected json or csv", c.Query("format")),
			"kind":       "invalid_request",
			"request_id": c.GetString("request_id"),
		})
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status, kind := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).WithField("request_id", c.GetString("request_id")).Error("Preprocessing failed")
	}
	c.JSON(status, gin.H{
		"error":      err.Error(),
		"kind":       kind,
		"request_id": c.GetString("request_id"),
	})
}

// classify maps an error to an HTTP status and an error kind.
func classify(err error) (int, string) {
	var (
		kindErr    domain.KindError
		notFound   *usecase.NotFoundError
		unknownVar *derive.UnknownVariableError
		missing    *derive.MissingInputError
		noCoord    *domain.CoordNotFoundError
	)
	switch {
	case errors.Is(err, usecase.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.As(err, &notFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &unknownVar):
		return http.StatusNotFound, "unknown_variable"
	case errors.As(err, &missing):
		return http.StatusBadRequest, "missing_input"
	case errors.As(err, &kindErr):
		switch kindErr.Kind() {
		case domain.KindInvalidOperator, domain.KindInvalidRegionSelector, domain.KindInvalidRange:
			return http.StatusBadRequest, string(kindErr.Kind())
		case domain.KindUnknownRegion:
			return http.StatusNotFound, string(kindErr.Kind())
		default:
			return http.StatusUnprocessableEntity, string(kindErr.Kind())
		}
	case errors.As(err, &noCoord):
		return http.StatusUnprocessableEntity, "coordinate_not_found"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
