package handlers

import (
	"context"
	"net/http"
	"net/mail"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ledger-api/internal/coordinator"
	"ledger-api/internal/domain/ledger"
	"ledger-api/internal/infrastructure/messaging"
	"ledger-api/internal/infrastructure/store"
	"ledger-api/internal/pkg/apierr"
	"ledger-api/internal/pkg/logging"
	"ledger-api/internal/pkg/validation"
)

type createUserRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// MakeCreateUserHandler handles POST /api/users: a write endpoint gated by
// the idempotency key like every other posting operation, even though it
// has no ledger side effects of its own.
func MakeCreateUserHandler(deps HandlerDependencies) gin.HandlerFunc {
	coord := deps.GetCoordinator()
	publisher := deps.GetEventPublisher()

	return func(c *gin.Context) {
		key := c.GetHeader("Idempotency-Key")
		if key == "" {
			apiErr := apierr.NewMissingIdempotencyKeyError()
			c.JSON(apiErr.Status, apiErr)
			return
		}

		var req createUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apiErr := apierr.NewValidationError("invalid request body")
			c.JSON(apiErr.Status, apiErr)
			return
		}

		if _, err := mail.ParseAddress(req.Email); err != nil {
			apiErr := apierr.NewValidationError("email is not a valid address")
			c.JSON(apiErr.Status, apiErr)
			return
		}
		if err := validation.ValidateOwnerName(req.FullName); err != nil {
			apiErr := apierr.NewValidationError(err.Error())
			c.JSON(apiErr.Status, apiErr)
			return
		}

		op := func(ctx context.Context, tx store.Tx) (UserResponse, error) {
			u := &ledger.User{
				ID:        uuid.New(),
				Email:     req.Email,
				FullName:  req.FullName,
				IsActive:  true,
				CreatedAt: time.Now().UTC(),
			}
			if err := tx.CreateUser(ctx, u); err != nil {
				return UserResponse{}, err
			}
			return newUserResponse(u), nil
		}

		outcome, err := coordinator.Run(c.Request.Context(), coord, key, req, http.StatusCreated, op)
		if err != nil {
			respondError(c, err)
			return
		}

		if !outcome.Replayed {
			if pubErr := publisher.PublishUserCreated(messaging.UserCreatedEvent{
				UserID:    outcome.Result.ID.String(),
				Name:      outcome.Result.FullName,
				Timestamp: time.Now().UTC(),
			}); pubErr != nil {
				logging.Error("failed to publish user created event", pubErr, map[string]interface{}{"user_id": outcome.Result.ID.String()})
			}
		}

		c.JSON(outcome.StatusCode, outcome.Result)
	}
}

// MakeListUsersHandler handles GET /api/users?limit&offset.
func MakeListUsersHandler(deps HandlerDependencies) gin.HandlerFunc {
	st := deps.GetStore()

	return func(c *gin.Context) {
		users, err := st.ListUsers(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}

		limit, _ := strconv.Atoi(c.Query("limit"))
		offset, _ := strconv.Atoi(c.Query("offset"))
		if limit <= 0 {
			limit = len(users)
		}

		total := len(users)
		if offset > total {
			offset = total
		}
		end := offset + limit
		if end > total || limit == 0 {
			end = total
		}
		page := users[offset:end]

		items := make([]UserResponse, 0, len(page))
		for i := range page {
			items = append(items, newUserResponse(&page[i]))
		}

		c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
	}
}

// MakeGetUserHandler handles GET /api/users/{id}.
func MakeGetUserHandler(deps HandlerDependencies) gin.HandlerFunc {
	st := deps.GetStore()

	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			apiErr := apierr.NewValidationError("invalid user id")
			c.JSON(apiErr.Status, apiErr)
			return
		}

		u, err := st.GetUser(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, newUserResponse(u))
	}
}
