package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"product-inventory-service/internal/domain"
	"product-inventory-service/internal/export"
	"product-inventory-service/internal/inventory"
)

// ProductService is the set of inventory operations served over HTTP.
type ProductService interface {
	Create(ctx context.Context, input domain.FormFields, confirm inventory.Confirmer) (domain.Product, error)
	Update(ctx context.Context, id string, input domain.FormFields, confirm inventory.Confirmer) (domain.Product, error)
	AdjustStock(ctx context.Context, id string, delta int) (domain.Product, error)
	Archive(ctx context.Context, id string, confirm inventory.Confirmer) (domain.Product, error)
	Get(ctx context.Context, id string) (domain.Product, error)
	List(ctx context.Context, params inventory.ListParams) ([]domain.Product, error)
	Categories(ctx context.Context) ([]string, error)
	Export(ctx context.Context, format export.Format) ([]byte, error)
}

const defaultMaxUploadBytes = 8 << 20

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	products       ProductService
	validate       *validator.Validate
	maxUploadBytes int64
}

// NewHTTPHandler creates a new HTTPHandler. maxUploadBytes <= 0 selects 8 MiB.
func NewHTTPHandler(ps ProductService, maxUploadBytes int64) *HTTPHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &HTTPHandler{
		products:       ps,
		validate:       validator.New(),
		maxUploadBytes: maxUploadBytes,
	}
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			zap.L().Error("failed to encode JSON response", zap.Error(err))
		}
	}
}

// respondWithServiceError maps inventory errors onto HTTP status codes.
func respondWithServiceError(w http.ResponseWriter, err error, action string) {
	var verr *inventory.ValidationError
	switch {
	case errors.As(err, &verr):
		respondWithJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed: " + verr.Error(), Field: verr.Field})
	case errors.Is(err, inventory.ErrProductNotFound):
		respondWithError(w, http.StatusNotFound, inventory.ErrProductNotFound.Error())
	case errors.Is(err, inventory.ErrNotConfirmed):
		respondWithError(w, http.StatusPreconditionFailed, "Confirmation required: repeat the request with confirm=true")
	default:
		zap.L().Error("product operation failed", zap.String("action", action), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to "+action)
	}
}

// queryConfirmer answers every prompt with the boolean query parameter param.
func queryConfirmer(r *http.Request, param string) inventory.Confirmer {
	answer := cast.ToBool(r.URL.Query().Get(param))
	return inventory.ConfirmFunc(func(_ context.Context, prompt string) bool {
		zap.L().Debug("confirmation prompt", zap.String("prompt", prompt), zap.Bool("answer", answer))
		return answer
	})
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// --- Product Handlers ---

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := inventory.ListParams{
		Search:   q.Get("q"),
		Category: q.Get("category"),
		Status:   domain.Status(q.Get("status")),
	}
	if params.Category == "all" {
		params.Category = ""
	}
	if params.Status == "all" {
		params.Status = ""
	}

	products, err := h.products.List(r.Context(), params)
	if err != nil {
		respondWithServiceError(w, err, "retrieve products")
		return
	}
	response := struct {
		Data  []domain.Product `json:"data"`
		Total int              `json:"total"`
	}{Data: products, Total: len(products)}
	respondWithJSON(w, http.StatusOK, response)
}

func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.products.Categories(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "retrieve categories")
		return
	}
	respondWithJSON(w, http.StatusOK, categories)
}

func (h *HTTPHandler) GetProductByID(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	product, err := h.products.Get(r.Context(), productID)
	if err != nil {
		respondWithServiceError(w, err, "retrieve product")
		return
	}
	respondWithJSON(w, http.StatusOK, product)
}

// CreateProduct accepts a JSON body or a multipart form with an optional image file.
func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeForm(w, r)
	if !ok {
		return
	}
	created, err := h.products.Create(r.Context(), input, queryConfirmer(r, "export"))
	if err != nil {
		respondWithServiceError(w, err, "create product")
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	input, ok := h.decodeForm(w, r)
	if !ok {
		return
	}
	updated, err := h.products.Update(r.Context(), productID, input, queryConfirmer(r, "export"))
	if err != nil {
		respondWithServiceError(w, err, "update product")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

// UploadProductImage replaces the image of a product with an uploaded file.
func (h *HTTPHandler) UploadProductImage(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	if !isMultipart(r) {
		respondWithError(w, http.StatusUnsupportedMediaType, "Expected multipart/form-data with an image file")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	dataURL, found, err := readImageField(r)
	if err != nil {
		respondWithServiceError(w, err, "read image")
		return
	}
	if !found {
		respondWithError(w, http.StatusBadRequest, "Missing image file")
		return
	}
	updated, err := h.products.Update(r.Context(), productID, domain.FormFields{Image: &dataURL}, queryConfirmer(r, "export"))
	if err != nil {
		respondWithServiceError(w, err, "update product image")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

// StockAdjustmentInput defines the expected input for a stock adjustment.
type StockAdjustmentInput struct {
	Delta *int `json:"delta" validate:"required"`
}

func (h *HTTPHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	var input StockAdjustmentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	updated, err := h.products.AdjustStock(r.Context(), productID, *input.Delta)
	if err != nil {
		respondWithServiceError(w, err, "adjust stock")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *HTTPHandler) ArchiveProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	archived, err := h.products.Archive(r.Context(), productID, queryConfirmer(r, "confirm"))
	if err != nil {
		respondWithServiceError(w, err, "archive product")
		return
	}
	respondWithJSON(w, http.StatusOK, archived)
}

// ExportProducts serves the collection as a file download.
func (h *HTTPHandler) ExportProducts(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid format. Allowed: json, csv")
		return
	}
	data, err := h.products.Export(r.Context(), format)
	if err != nil {
		respondWithServiceError(w, err, "export products")
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.FileName()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		zap.L().Warn("export download interrupted", zap.Error(err))
	}
}

// --- Form decoding ---

// decodeForm reads FormFields from JSON or multipart. It writes the error
// response itself and reports false when decoding failed.
func (h *HTTPHandler) decodeForm(w http.ResponseWriter, r *http.Request) (domain.FormFields, bool) {
	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
		if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
			return domain.FormFields{}, false
		}
		input, err := formFieldsFromMultipart(r)
		if err != nil {
			respondWithServiceError(w, err, "read product form")
			return domain.FormFields{}, false
		}
		return input, true
	}

	var input domain.FormFields
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return domain.FormFields{}, false
	}
	defer r.Body.Close()
	return input, true
}

var multipartTextFields = []string{
	"name", "brand", "category", "model", "storage", "color",
	"source", "warranty", "imei", "serial", "notes",
}

// formFieldsFromMultipart maps a parsed multipart form onto FormFields.
// Blank numeric fields count as not supplied.
func formFieldsFromMultipart(r *http.Request) (domain.FormFields, error) {
	var input domain.FormFields
	form := r.MultipartForm

	text := make(map[string]*string, len(multipartTextFields))
	for _, name := range multipartTextFields {
		if vals, ok := form.Value[name]; ok && len(vals) > 0 {
			v := vals[0]
			text[name] = &v
		}
	}
	input.Name = text["name"]
	input.Brand = text["brand"]
	input.Category = text["category"]
	input.Model = text["model"]
	input.Storage = text["storage"]
	input.Color = text["color"]
	input.Source = text["source"]
	input.Warranty = text["warranty"]
	input.IMEI = text["imei"]
	input.Serial = text["serial"]
	input.Notes = text["notes"]

	if v := strings.TrimSpace(r.FormValue("qtyOnHand")); v != "" {
		qty, err := cast.ToIntE(v)
		if err != nil {
			return input, &inventory.ValidationError{Field: "qtyOnHand", Message: "quantity must be a whole number"}
		}
		input.QtyOnHand = &qty
	}
	if v := strings.TrimSpace(r.FormValue("costPrice")); v != "" {
		price, err := cast.ToFloat64E(v)
		if err != nil {
			return input, &inventory.ValidationError{Field: "costPrice", Message: "price must be a number"}
		}
		input.CostPrice = &price
	}
	if v := strings.TrimSpace(r.FormValue("salePrice")); v != "" {
		price, err := cast.ToFloat64E(v)
		if err != nil {
			return input, &inventory.ValidationError{Field: "salePrice", Message: "price must be a number"}
		}
		input.SalePrice = &price
	}

	dataURL, found, err := readImageField(r)
	if err != nil {
		return input, err
	}
	if found {
		input.Image = &dataURL
	}
	return input, nil
}

// readImageField embeds the "image" file of a parsed multipart form as a data URL.
func readImageField(r *http.Request) (string, bool, error) {
	file, _, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("api: failed to open image upload: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return "", false, fmt.Errorf("api: failed to read image upload: %w", err)
	}
	dataURL, err := inventory.ImageDataURL(content)
	if err != nil {
		return "", false, err
	}
	return dataURL, true, nil
}

// --- Route Registration ---

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Post("/", h.CreateProduct)
		// Static paths go before {productId} so they are not taken for ids.
		r.Get("/categories", h.ListCategories)
		r.Get("/export", h.ExportProducts)

		r.Route("/{productId}", func(r chi.Router) {
			r.Get("/", h.GetProductByID)
			r.Put("/", h.UpdateProduct)
			r.Put("/image", h.UploadProductImage)
			r.Post("/stock", h.AdjustStock)
			r.Post("/archive", h.ArchiveProduct)
		})
	})
}
