package routes

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/relgraph/internal/queue"
	"github.com/OFFIS-RIT/relgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/relgraph/pkg/graph"
	"github.com/OFFIS-RIT/relgraph/pkg/loader"
	"github.com/OFFIS-RIT/relgraph/pkg/logger"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

var (
	errInvalidBody      = errors.New("invalid request body")
	errMissingInput     = errors.New("either file or text must be provided")
	errAmbiguousInput   = errors.New("provide either file or text, not both")
	errNotPDF           = errors.New("only PDF files are supported")
	errUnreadablePDF    = errors.New("could not read PDF file")
	errEmptyDocument    = errors.New("document contains no extractable text")
	errInvalidEntities  = errors.New("configured_entities must be a JSON array of non-empty strings")
	errInvalidThreshold = errors.New("threshold must be a number between 0 and 1")
)

type messageResponse struct {
	Message string `json:"message"`
}

type extractInput struct {
	Text      string   `validate:"required"`
	Labels    []string `validate:"dive,required"`
	Threshold float64  `validate:"gte=0,lte=1"`
}

type extractJSONBody struct {
	Text               string          `json:"text"`
	ConfiguredEntities json.RawMessage `json:"configured_entities"`
	Threshold          *float64        `json:"threshold"`
}

// ExtractHandler runs the extraction pipeline on an uploaded PDF or on
// plain text and returns the entities and relationships found.
func ExtractHandler(c echo.Context) error {
	input, err := parseExtractRequest(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: err.Error()})
	}

	app := c.(*middleware.AppContext).App
	result, err := app.Pipeline.Run(c.Request().Context(), graph.Request{
		Text:      input.Text,
		Labels:    input.Labels,
		Threshold: input.Threshold,
	})
	if err != nil {
		logger.Error("[Extract] Pipeline failed", "err", err)
		return c.JSON(http.StatusInternalServerError, messageResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, result)
}

// ExtractAsyncHandler validates like ExtractHandler and queues the request
// as an extraction job.
func ExtractAsyncHandler(c echo.Context) error {
	type extractAsyncResponse struct {
		JobID string `json:"job_id"`
	}

	app := c.(*middleware.AppContext).App
	if app.Queue == nil {
		return c.JSON(http.StatusServiceUnavailable, messageResponse{
			Message: "Async extraction is not available",
		})
	}

	input, err := parseExtractRequest(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: err.Error()})
	}

	job, err := queue.NewExtractionJob(input.Text, input.Labels, input.Threshold)
	if err != nil {
		logger.Error("[Extract] Failed to create job", "err", err)
		return c.JSON(http.StatusInternalServerError, messageResponse{
			Message: "Internal server error",
		})
	}
	if err := queue.PublishJob(c.Request().Context(), app.Queue, job); err != nil {
		logger.Error("[Extract] Failed to publish job", "job_id", job.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, messageResponse{
			Message: "Internal server error",
		})
	}

	logger.Info("[Extract] Queued extraction job", "job_id", job.ID)
	return c.JSON(http.StatusAccepted, extractAsyncResponse{JobID: job.ID})
}

func parseExtractRequest(c echo.Context) (*extractInput, error) {
	var (
		input *extractInput
		err   error
	)
	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(contentType, echo.MIMEMultipartForm) ||
		strings.HasPrefix(contentType, echo.MIMEApplicationForm) {
		input, err = parseFormRequest(c)
	} else {
		input, err = parseJSONRequest(c)
	}
	if err != nil {
		return nil, err
	}

	if err := c.Validate(input); err != nil {
		return nil, validationError(err)
	}
	return input, nil
}

func parseFormRequest(c echo.Context) (*extractInput, error) {
	text := c.FormValue("text")

	var fh *multipart.FileHeader
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		var err error
		fh, err = c.FormFile("file")
		if err != nil && !errors.Is(err, http.ErrMissingFile) {
			return nil, errInvalidBody
		}
	}

	hasText := strings.TrimSpace(text) != ""
	if fh != nil && hasText {
		return nil, errAmbiguousInput
	}
	if fh == nil && !hasText {
		return nil, errMissingInput
	}

	if fh != nil {
		if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
			return nil, errNotPDF
		}
		src, err := fh.Open()
		if err != nil {
			return nil, errUnreadablePDF
		}
		defer src.Close()

		data, err := io.ReadAll(src)
		if err != nil {
			return nil, errUnreadablePDF
		}
		text, err = loader.ExtractPDFText(c.Request().Context(), data)
		if errors.Is(err, loader.ErrEmptyDocument) {
			return nil, errEmptyDocument
		}
		if err != nil {
			logger.Warn("[Extract] Failed to read PDF", "file", fh.Filename, "err", err)
			return nil, errUnreadablePDF
		}
	}

	labels, err := parseLabels(c.FormValue("configured_entities"))
	if err != nil {
		return nil, err
	}

	var threshold float64
	if raw := strings.TrimSpace(c.FormValue("threshold")); raw != "" {
		threshold, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errInvalidThreshold
		}
	}

	return &extractInput{Text: text, Labels: labels, Threshold: threshold}, nil
}

func parseJSONRequest(c echo.Context) (*extractInput, error) {
	body := new(extractJSONBody)
	if err := c.Bind(body); err != nil {
		return nil, errInvalidBody
	}
	if strings.TrimSpace(body.Text) == "" {
		return nil, errMissingInput
	}

	raw := strings.TrimSpace(string(body.ConfiguredEntities))
	if strings.HasPrefix(raw, `"`) {
		if err := json.Unmarshal(body.ConfiguredEntities, &raw); err != nil {
			return nil, errInvalidEntities
		}
	}
	labels, err := parseLabels(raw)
	if err != nil {
		return nil, err
	}

	input := &extractInput{Text: body.Text, Labels: labels}
	if body.Threshold != nil {
		input.Threshold = *body.Threshold
	}
	return input, nil
}

// parseLabels decodes a JSON array of label names. An empty value selects
// the default labels.
func parseLabels(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}

	var labels []string
	if err := json.Unmarshal([]byte(raw), &labels); err != nil {
		return nil, errInvalidEntities
	}
	for i := range labels {
		labels[i] = strings.TrimSpace(labels[i])
	}
	return labels, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errInvalidBody
	}
	for _, fe := range verrs {
		switch {
		case fe.StructField() == "Text":
			return errMissingInput
		case strings.HasPrefix(fe.StructField(), "Labels"):
			return errInvalidEntities
		case fe.StructField() == "Threshold":
			return errInvalidThreshold
		}
	}
	return errInvalidBody
}
