package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/careslot/careslot-api/internal/model"
	"github.com/careslot/careslot-api/internal/repository"
)

// ReviewHandler serves review creation and listing for doctors and labs.
// Creating a review and recomputing the subject's denormalized mean rating
// happen inside one transaction, so the stored aggregate always equals the
// mean of the live review set no matter how creations interleave.
type ReviewHandler struct {
	Reviews  *repository.ReviewRepo
	Subjects *repository.SubjectRepo
}

func NewReviewHandler(r *repository.ReviewRepo, s *repository.SubjectRepo) *ReviewHandler {
	if r == nil || s == nil {
		panic("nil repository passed to NewReviewHandler")
	}
	return &ReviewHandler{Reviews: r, Subjects: s}
}

type createReviewReq struct {
	Rating float64 `json:"rating"`
	Text   string  `json:"text"`
}

type reviewResp struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `json:"user_id"`
	SubjectID uint64    `json:"subject_id"`
	Rating    float64   `json:"rating"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateForDoctor handles POST /v1/doctors/:id/reviews.
func (h *ReviewHandler) CreateForDoctor(c echo.Context) error {
	return h.create(c, model.SubjectDoctor)
}

// CreateForLab handles POST /v1/labs/:id/reviews.
func (h *ReviewHandler) CreateForLab(c echo.Context) error {
	return h.create(c, model.SubjectLab)
}

// ListForDoctor handles GET /v1/doctors/:id/reviews.
func (h *ReviewHandler) ListForDoctor(c echo.Context) error {
	return h.list(c, model.SubjectDoctor)
}

// ListForLab handles GET /v1/labs/:id/reviews.
func (h *ReviewHandler) ListForLab(c echo.Context) error {
	return h.list(c, model.SubjectLab)
}

func (h *ReviewHandler) create(c echo.Context, kind model.SubjectKind) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	subjectID, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid subject id"})
	}
	var req createReviewReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Rating < 0 || req.Rating > 5 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rating must be between 0 and 5"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rev := model.Review{
		UserID:      userID,
		SubjectKind: kind,
		SubjectID:   subjectID,
		Rating:      req.Rating,
		Text:        strings.TrimSpace(req.Text),
	}

	// Lock the subject, insert the review, recompute the mean over the
	// full live set, and write the aggregate back in one transaction.
	// The up-front row lock serializes concurrent reviews of the same
	// subject, so each recomputed mean sees every committed review.
	tx, err := h.Reviews.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	exists, err := h.Subjects.LockTx(ctx, tx, kind, subjectID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !exists {
		return c.JSON(http.StatusNotFound, echo.Map{"error": string(kind) + " not found"})
	}
	if err := h.Reviews.CreateTx(ctx, tx, &rev); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create review failed"})
	}
	mean, count, err := h.Reviews.MeanForSubjectTx(ctx, tx, kind, subjectID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "recompute rating failed"})
	}
	if err := h.Subjects.UpdateRatingTx(ctx, tx, kind, subjectID, mean, count); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update rating failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	return c.JSON(http.StatusCreated, reviewResp{
		ID: rev.ID, UserID: rev.UserID, SubjectID: rev.SubjectID,
		Rating: rev.Rating, Text: rev.Text, CreatedAt: rev.CreatedAt,
	})
}

func (h *ReviewHandler) list(c echo.Context, kind model.SubjectKind) error {
	subjectID, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid subject id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	exists, err := h.Subjects.Exists(ctx, kind, subjectID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !exists {
		return c.JSON(http.StatusNotFound, echo.Map{"error": string(kind) + " not found"})
	}

	reviews, err := h.Reviews.ListBySubject(ctx, kind, subjectID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]reviewResp, 0, len(reviews))
	for _, rev := range reviews {
		out = append(out, reviewResp{
			ID: rev.ID, UserID: rev.UserID, SubjectID: rev.SubjectID,
			Rating: rev.Rating, Text: rev.Text, CreatedAt: rev.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, out)
}
