package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"candle-shop/apperrors"
	"candle-shop/auth"
	"candle-shop/middleware"
	"candle-shop/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userColumns = "id, name, email, password_hash, role, created_at"

type AuthHandler struct {
	db     *sql.DB
	tokens *auth.TokenManager
	logger *zap.Logger
}

func NewAuthHandler(db *sql.DB, tokens *auth.TokenManager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		db:     db,
		tokens: tokens,
		logger: logger,
	}
}

func scanUser(row interface{ Scan(...any) error }) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	return user, err
}

func (h *AuthHandler) Register(c *gin.Context) {
	ctx := c.Request.Context()

	var req models.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	var existingID int
	err := h.db.QueryRowContext(ctx, "SELECT id FROM users WHERE email = $1", req.Email).Scan(&existingID)
	if err == nil {
		fail(c, apperrors.Conflict("User already exists"))
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		fail(c, apperrors.Internal(fmt.Errorf("failed to look up user: %w", err)))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		fail(c, apperrors.Internal(err))
		return
	}

	user, err := scanUser(h.db.QueryRowContext(ctx,
		"INSERT INTO users (name, email, password_hash, role) VALUES ($1, $2, $3, $4) RETURNING "+userColumns,
		req.Name, req.Email, hash, models.RoleUser,
	))
	if pqCode(err) == pqUniqueViolation {
		// Lost a race with a concurrent registration.
		fail(c, apperrors.Conflict("User already exists"))
		return
	} else if err != nil {
		fail(c, apperrors.Internal(fmt.Errorf("failed to create user: %w", err)))
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		fail(c, apperrors.Internal(err))
		return
	}

	h.logger.Info("User registered",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.Int("user_id", user.ID),
	)
	respond(c, http.StatusCreated, models.LoginResponse{Token: token, User: user})
}

func (h *AuthHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()

	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := scanUser(h.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1", req.Email))
	if errors.Is(err, sql.ErrNoRows) {
		fail(c, apperrors.Unauthorized("Invalid email or password"))
		return
	}
	if err != nil {
		fail(c, apperrors.Internal(fmt.Errorf("failed to look up user: %w", err)))
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		fail(c, apperrors.Unauthorized("Invalid email or password"))
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		fail(c, apperrors.Internal(err))
		return
	}

	h.logger.Info("User logged in",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.Int("user_id", user.ID),
	)
	respond(c, http.StatusOK, models.LoginResponse{Token: token, User: user})
}

func (h *AuthHandler) loadUser(c *gin.Context, id int) (models.User, bool) {
	user, err := scanUser(h.db.QueryRowContext(c.Request.Context(),
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		fail(c, apperrors.NotFound("User not found"))
		return user, false
	}
	if err != nil {
		fail(c, apperrors.Internal(fmt.Errorf("failed to load user: %w", err)))
		return user, false
	}
	return user, true
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := h.loadUser(c, claims(c).UserID)
	if !ok {
		return
	}
	respond(c, http.StatusOK, user)
}

// UpdateProfile changes name, email and optionally the password, and
// returns a fresh token since the email is part of the claims.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	ctx := c.Request.Context()

	var req models.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	user, ok := h.loadUser(c, claims(c).UserID)
	if !ok {
		return
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Email != "" && req.Email != user.Email {
		var existingID int
		err := h.db.QueryRowContext(ctx, "SELECT id FROM users WHERE email = $1", req.Email).Scan(&existingID)
		if err == nil {
			fail(c, apperrors.Conflict("Email already in use"))
			return
		} else if !errors.Is(err, sql.ErrNoRows) {
			fail(c, apperrors.Internal(fmt.Errorf("failed to look up user: %w", err)))
			return
		}
		user.Email = req.Email
	}
	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			fail(c, apperrors.Internal(err))
			return
		}
		user.PasswordHash = hash
	}

	updated, err := scanUser(h.db.QueryRowContext(ctx,
		"UPDATE users SET name = $1, email = $2, password_hash = $3 WHERE id = $4 RETURNING "+userColumns,
		user.Name, user.Email, user.PasswordHash, user.ID,
	))
	if pqCode(err) == pqUniqueViolation {
		fail(c, apperrors.Conflict("Email already in use"))
		return
	} else if err != nil {
		fail(c, apperrors.Internal(fmt.Errorf("failed to update user: %w", err)))
		return
	}

	token, err := h.tokens.Issue(updated)
	if err != nil {
		fail(c, apperrors.Internal(err))
		return
	}
	respond(c, http.StatusOK, models.LoginResponse{Token: token, User: updated})
}

func (h *AuthHandler) ListUsers(c *gin.Context) {
	rows, err := h.db.QueryContext(c.Request.Context(),
		"SELECT "+userColumns+" FROM users ORDER BY created_at DESC, id DESC")
	if err != nil {
		fail(c, apperrors.Internal(fmt.Errorf("failed to list users: %w", err)))
		return
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			fail(c, apperrors.Internal(fmt.Errorf("failed to scan user: %w", err)))
			return
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		fail(c, apperrors.Internal(err))
		return
	}
	respond(c, http.StatusOK, users)
}

func (h *AuthHandler) DeleteUser(c *gin.Context) {
	id, ok := pathID(c, "user")
	if !ok {
		return
	}
	if id == claims(c).UserID {
		fail(c, apperrors.BadRequest("Cannot delete your own account"))
		return
	}

	result, err := h.db.ExecContext(c.Request.Context(), "DELETE FROM users WHERE id = $1", id)
	if pqCode(err) == pqForeignKeyViolation {
		fail(c, apperrors.Conflict("User has orders and cannot be removed"))
		return
	}
	if err != nil {
		fail(c, apperrors.Internal(fmt.Errorf("failed to delete user: %w", err)))
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		fail(c, apperrors.NotFound("User not found"))
		return
	}

	h.logger.Info("User deleted",
		zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
		zap.Int("user_id", id),
		zap.Int("admin_id", claims(c).UserID),
	)
	respond(c, http.StatusOK, gin.H{"message": "User removed"})
}
