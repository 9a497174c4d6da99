package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"drawing-core/internal/drawing/codec"
	"drawing-core/internal/drawing/models"
	"drawing-core/internal/drawing/patch"
	"drawing-core/internal/drawing/repository"
	"drawing-core/internal/drawing/service"
	"drawing-core/internal/drawing/validation"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
)

// ============================================================
// Drawing Handler
// ============================================================

type DrawingHandler struct {
	editor         *service.Editor
	log            zerolog.Logger
	rejectWarnings bool
}

func NewDrawingHandler(editor *service.Editor, log zerolog.Logger, rejectWarnings bool) *DrawingHandler {
	return &DrawingHandler{
		editor:         editor,
		log:            log.With().Str("component", "handlers").Logger(),
		rejectWarnings: rejectWarnings,
	}
}

// Register вешает маршруты документа на роутер.
func (h *DrawingHandler) Register(r fiber.Router) {
	r.Post("/validate", h.Validate)
	r.Post("/canonicalize", h.Canonicalize)

	r.Get("/drawings", h.List)
	r.Post("/drawings", h.Create)
	r.Get("/drawings/:id", h.Get)
	r.Put("/drawings/:id", h.Put)
	r.Delete("/drawings/:id", h.Delete)

	r.Get("/drawings/:id/patches", h.Journal)
	r.Post("/drawings/:id/patches", h.ApplyPatch)
	r.Post("/drawings/:id/undo", h.Undo)
	r.Post("/drawings/:id/redo", h.Redo)
	r.Post("/drawings/:id/export", h.Export)
}

type createRequest struct {
	Name string `json:"name"`
	Page struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
		Units  string  `json:"units"`
	} `json:"page"`
}

type documentResponse struct {
	Drawing    json.RawMessage        `json:"drawing"`
	Hash       string                 `json:"hash"`
	Version    int                    `json:"version"`
	Violations []validation.Violation `json:"violations"`
}

type summaryPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     int    `json:"version"`
	SyncStatus  string `json:"syncStatus"`
	ContentHash string `json:"contentHash"`
	UpdatedAt   int64  `json:"updatedAt"`
	CreatedAt   string `json:"createdAt"`
}

type journalPayload struct {
	Seq       int             `json:"seq"`
	Action    string          `json:"action"`
	Kind      string          `json:"kind,omitempty"`
	Op        json.RawMessage `json:"op,omitempty"`
	Version   int             `json:"version"`
	AppliedAt int64           `json:"appliedAt"`
}

// Validate разбирает тело как документ и возвращает находки проверки.
// Сам документ не сохраняется.
func (h *DrawingHandler) Validate(c fiber.Ctx) error {
	if len(c.Body()) == 0 {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "empty body"})
	}

	opts := []validation.Option{validation.RejectWarnings(h.rejectWarnings || c.Query("rejectWarnings") == "true")}
	res, err := validation.ValidateSafe(c.Body(), opts...)
	if err != nil {
		return h.fail(c, err)
	}

	hash, err := codec.ContentHash(res.Drawing)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"valid":      true,
		"id":         res.Drawing.ID,
		"hash":       hash.String(),
		"violations": nonNil(res.Violations),
	})
}

// Canonicalize возвращает стабильную форму документа.
func (h *DrawingHandler) Canonicalize(c fiber.Ctx) error {
	if len(c.Body()) == 0 {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "empty body"})
	}
	out, err := codec.Canonicalize(c.Body())
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	c.Set("X-Content-Hash", codec.HashBytes(out).String())
	return c.Send(out)
}

func (h *DrawingHandler) List(c fiber.Ctx) error {
	stored, err := h.editor.List(c.Context())
	if err != nil {
		return h.fail(c, err)
	}

	out := make([]summaryPayload, 0, len(stored))
	for _, s := range stored {
		out = append(out, summaryPayload{
			ID:          s.ID,
			Name:        s.Name,
			Version:     s.Version,
			SyncStatus:  s.SyncStatus,
			ContentHash: s.ContentHash,
			UpdatedAt:   s.UpdatedAt,
			CreatedAt:   s.CreatedAt,
		})
	}
	return c.JSON(out)
}

func (h *DrawingHandler) Create(c fiber.Ctx) error {
	var req createRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
	}

	page := models.Page{Width: req.Page.Width, Height: req.Page.Height, Units: models.Units(req.Page.Units)}
	doc, err := h.editor.Create(c.Context(), req.Name, page)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(document(doc))
}

func (h *DrawingHandler) Get(c fiber.Ctx) error {
	doc, err := h.editor.Get(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(document(doc))
}

// Put заменяет документ целиком; id в теле должен совпадать с id в пути.
func (h *DrawingHandler) Put(c fiber.Ctx) error {
	if len(c.Body()) == 0 {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "empty body"})
	}
	doc, err := h.editor.Put(c.Context(), c.Params("id"), c.Body())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(document(doc))
}

func (h *DrawingHandler) Delete(c fiber.Ctx) error {
	if err := h.editor.Delete(c.Context(), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// ApplyPatch принимает одну операцию или массив операций.
func (h *DrawingHandler) ApplyPatch(c fiber.Ctx) error {
	ops, err := patch.UnmarshalOperations(c.Body())
	if err != nil {
		return h.fail(c, err)
	}
	doc, err := h.editor.ApplyPatch(c.Context(), c.Params("id"), ops)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(document(doc))
}

func (h *DrawingHandler) Undo(c fiber.Ctx) error {
	doc, err := h.editor.Undo(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(document(doc))
}

func (h *DrawingHandler) Redo(c fiber.Ctx) error {
	doc, err := h.editor.Redo(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(document(doc))
}

func (h *DrawingHandler) Journal(c fiber.Ctx) error {
	records, err := h.editor.Journal(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}

	out := make([]journalPayload, 0, len(records))
	for _, r := range records {
		p := journalPayload{Seq: r.Seq, Action: r.Action, Kind: r.Kind, Version: r.Version, AppliedAt: r.AppliedAt}
		if r.Operation != nil {
			p.Op = r.Op
		}
		out = append(out, p)
	}
	return c.JSON(out)
}

func (h *DrawingHandler) Export(c fiber.Ctx) error {
	exp, err := h.editor.Export(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"json": exp.JSONPath,
		"cbor": exp.CBORPath,
		"hash": exp.Hash.String(),
	})
}

// ============================================================
// Helpers
// ============================================================

func document(doc *service.Document) documentResponse {
	return documentResponse{
		Drawing:    doc.Stable,
		Hash:       doc.Hash.String(),
		Version:    doc.Drawing.Version,
		Violations: nonNil(doc.Violations),
	}
}

func nonNil(v []validation.Violation) []validation.Violation {
	if v == nil {
		return []validation.Violation{}
	}
	return v
}

// fail переводит ошибку слоя сервиса в HTTP-ответ.
func (h *DrawingHandler) fail(c fiber.Ctx, err error) error {
	var failure *validation.Failure
	if errors.As(err, &failure) {
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":      failure.Message,
			"violations": nonNil(failure.Violations),
		})
	}

	status := statusOf(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return c.Status(status).JSON(fiber.Map{"error": "internal error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrIDMismatch),
		errors.Is(err, service.ErrUnsafeID),
		errors.Is(err, patch.ErrUnknownOperation),
		errors.Is(err, patch.ErrMalformedOperation):
		return http.StatusBadRequest
	case errors.Is(err, patch.ErrNodeNotFound),
		errors.Is(err, patch.ErrMemberNotFound),
		errors.Is(err, patch.ErrDuplicateID),
		errors.Is(err, patch.ErrNodeInUse),
		errors.Is(err, patch.ErrStaleOperation),
		errors.Is(err, patch.ErrNothingToUndo),
		errors.Is(err, patch.ErrNothingToRedo):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
