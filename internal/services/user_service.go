package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mohamed20039/Renter/internal/apperrors"
	"github.com/mohamed20039/Renter/internal/auth"
	"github.com/mohamed20039/Renter/internal/database"
	"github.com/mohamed20039/Renter/internal/models"
	"github.com/mohamed20039/Renter/internal/validator"
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	GetAllUsers(ctx context.Context) ([]models.User, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
	CreateUser(ctx context.Context, input CreateUserInput) (models.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (models.User, error)
	UpdateUser(ctx context.Context, actorID, targetID string, input UpdateUserInput) (models.User, error)
}

// CreateUserInput carries registration fields. Every field except Image is required.
type CreateUserInput struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Username  string `json:"username" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,notblank"`
	Role      string `json:"role" validate:"required"`
	Image     string `json:"-"`
}

// UpdateUserInput carries a partial profile update; nil fields are left unchanged.
type UpdateUserInput struct {
	FirstName *string `json:"firstName" validate:"omitempty,min=1"`
	LastName  *string `json:"lastName" validate:"omitempty,min=1"`
	Username  *string `json:"username" validate:"omitempty,min=1"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Password  *string `json:"password" validate:"omitempty,min=1,notblank"`
	Role      *string `json:"role" validate:"omitempty,min=1"`
	Image     *string `json:"-"`
}

// UserService provides business logic for user management.
type UserService struct {
	db         *database.DB
	validator  *validator.Validator
	properties PropertyServiceProvider
	events     EventServiceProvider
}

// NewUserService creates a new UserService.
func NewUserService(db *database.DB, v *validator.Validator, properties PropertyServiceProvider, events EventServiceProvider) *UserService {
	return &UserService{db: db, validator: v, properties: properties, events: events}
}

const userColumns = "id, first_name, last_name, username, email, role, image, password_hash, created_at, updated_at"

// scanUser is a helper to scan a user from a row or rows object.
func scanUser(scanner interface{ Scan(...interface{}) error }) (models.User, error) {
	var user models.User
	err := scanner.Scan(
		&user.ID, &user.FirstName, &user.LastName, &user.Username, &user.Email,
		&user.Role, &user.Image, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt,
	)
	return user, err
}

// GetAllUsers retrieves every user without relations.
func (s *UserService) GetAllUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// GetUserByID retrieves a single user by their ID, including the property
// relation that matches their role.
func (s *UserService) GetUserByID(ctx context.Context, id string) (models.User, error) {
	user, err := s.findOne(ctx, "id", id)
	if err != nil {
		return models.User{}, err
	}
	if err := s.loadProperties(ctx, &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *UserService) findOne(ctx context.Context, column, value string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind("SELECT "+userColumns+" FROM users WHERE "+column+" = ?"), value)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, apperrors.NotFound("User not found")
		}
		return models.User{}, fmt.Errorf("failed to query user by %s: %w", column, err)
	}
	return user, nil
}

func (s *UserService) exists(ctx context.Context, column, value, exceptID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		s.db.Rebind("SELECT COUNT(*) FROM users WHERE "+column+" = ? AND id <> ?"), value, exceptID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check %s uniqueness: %w", column, err)
	}
	return n > 0, nil
}

func (s *UserService) loadProperties(ctx context.Context, user *models.User) error {
	if s.properties == nil {
		return nil
	}
	var err error
	if user.Role == models.RoleOwner {
		user.OwnedProperties, err = s.properties.GetPropertiesByOwner(ctx, user.ID)
	} else {
		user.RentedProperties, err = s.properties.GetPropertiesByRenter(ctx, user.ID)
	}
	return err
}

// CreateUser registers a new user, hashing their password.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (models.User, error) {
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.Username = strings.TrimSpace(input.Username)
	input.Email = normalizeEmail(input.Email)
	input.Role = strings.TrimSpace(input.Role)

	if err := s.validate(input); err != nil {
		return models.User{}, err
	}

	role, ok := models.ParseRole(input.Role)
	if !ok {
		return models.User{}, apperrors.BadRequest("Invalid role: " + string(role))
	}

	taken, err := s.exists(ctx, "email", input.Email, "")
	if err != nil {
		return models.User{}, err
	}
	if taken {
		return models.User{}, apperrors.Conflict("User already exists")
	}
	if taken, err = s.exists(ctx, "username", input.Username, ""); err != nil {
		return models.User{}, err
	} else if taken {
		return models.User{}, apperrors.Conflict("Username already taken")
	}

	hashed, err := auth.HashPassword(input.Password)
	if err != nil {
		return models.User{}, err
	}

	image := input.Image
	if image == "" {
		image = models.DefaultUserImage
	}

	now := time.Now().UTC()
	user := models.User{
		ID:           uuid.New().String(),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Username:     input.Username,
		Email:        input.Email,
		Role:         role,
		Image:        image,
		PasswordHash: hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = s.db.ExecContext(ctx,
		s.db.Rebind("INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		user.ID, user.FirstName, user.LastName, user.Username, user.Email,
		user.Role, user.Image, user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		// A concurrent registration won the race between the check and the insert.
		if database.IsUniqueViolation(err) {
			return models.User{}, apperrors.Conflict("User already exists").WithErr(err)
		}
		return models.User{}, fmt.Errorf("failed to insert user: %w", err)
	}

	if role == models.RoleOwner {
		user.OwnedProperties = []models.Property{}
	} else {
		user.RentedProperties = []models.Property{}
	}

	recordEvent(ctx, s.events, "user.register", fmt.Sprintf("User '%s' registered as %s.", user.Username, user.Role), user.ID)
	return user, nil
}

// AuthenticateUser verifies a user's credentials and returns the user with
// their property relation.
func (s *UserService) AuthenticateUser(ctx context.Context, email, password string) (models.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return models.User{}, apperrors.BadRequest("Please provide all required fields")
	}

	user, err := s.findOne(ctx, "email", email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return models.User{}, apperrors.BadRequest("User does not exist")
		}
		return models.User{}, err
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return models.User{}, apperrors.BadRequest("Invalid password")
	}

	if err := s.loadProperties(ctx, &user); err != nil {
		return models.User{}, err
	}

	recordEvent(ctx, s.events, "user.login", fmt.Sprintf("User '%s' logged in.", user.Username), user.ID)
	return user, nil
}

// UpdateUser applies a partial update to the actor's own account. New
// passwords are hashed the same way as at registration.
func (s *UserService) UpdateUser(ctx context.Context, actorID, targetID string, input UpdateUserInput) (models.User, error) {
	if targetID == "" || targetID != actorID {
		return models.User{}, apperrors.Forbidden("You aren't allowed to update this user")
	}

	input.FirstName = trimmed(input.FirstName)
	input.LastName = trimmed(input.LastName)
	input.Username = trimmed(input.Username)
	input.Role = trimmed(input.Role)
	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		input.Email = &email
	}
	if err := s.validate(input); err != nil {
		return models.User{}, err
	}

	user, err := s.findOne(ctx, "id", targetID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return models.User{}, apperrors.NotFound("User doesn't exist")
		}
		return models.User{}, err
	}

	if input.FirstName != nil {
		user.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		user.LastName = *input.LastName
	}
	if input.Username != nil {
		username := *input.Username
		if username != user.Username {
			taken, err := s.exists(ctx, "username", username, user.ID)
			if err != nil {
				return models.User{}, err
			}
			if taken {
				return models.User{}, apperrors.Conflict("Username already taken")
			}
		}
		user.Username = username
	}
	if input.Email != nil {
		email := *input.Email
		if email != user.Email {
			taken, err := s.exists(ctx, "email", email, user.ID)
			if err != nil {
				return models.User{}, err
			}
			if taken {
				return models.User{}, apperrors.Conflict("Email already in use")
			}
		}
		user.Email = email
	}
	if input.Role != nil {
		role, ok := models.ParseRole(*input.Role)
		if !ok {
			return models.User{}, apperrors.BadRequest("Invalid role: " + string(role))
		}
		if role != user.Role {
			if err := s.checkRoleChange(ctx, user.ID, role); err != nil {
				return models.User{}, err
			}
		}
		user.Role = role
	}
	if input.Password != nil {
		hashed, err := auth.HashPassword(*input.Password)
		if err != nil {
			return models.User{}, err
		}
		user.PasswordHash = hashed
	}
	if input.Image != nil && *input.Image != "" {
		user.Image = *input.Image
	}
	user.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE users
		SET first_name = ?, last_name = ?, username = ?, email = ?, role = ?, image = ?, password_hash = ?, updated_at = ?
		WHERE id = ?`),
		user.FirstName, user.LastName, user.Username, user.Email, user.Role, user.Image, user.PasswordHash, user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.User{}, apperrors.Conflict("Email or username already in use").WithErr(err)
		}
		return models.User{}, fmt.Errorf("failed to update user: %w", err)
	}

	recordEvent(ctx, s.events, "user.update", fmt.Sprintf("User '%s' updated their profile.", user.Username), user.ID)
	return s.GetUserByID(ctx, user.ID)
}

// checkRoleChange rejects a role switch while the user still holds
// properties under their current role.
func (s *UserService) checkRoleChange(ctx context.Context, userID string, to models.Role) error {
	column, msg := "renter_id", "Release your rented property before becoming an owner"
	if to == models.RoleRenter {
		column, msg = "owner_id", "Delete your properties before becoming a renter"
	}

	var n int
	err := s.db.QueryRowContext(ctx,
		s.db.Rebind("SELECT COUNT(*) FROM properties WHERE "+column+" = ?"), userID,
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to count properties by %s: %w", column, err)
	}
	if n > 0 {
		return apperrors.Conflict(msg)
	}
	return nil
}

// validate runs struct validation and maps failures to a BadRequest.
func (s *UserService) validate(input interface{}) error {
	err := s.validator.Validate(input)
	if err == nil {
		return nil
	}

	var verr *validator.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	msg := "Invalid request fields"
	for _, m := range verr.Fields {
		if m == "is required" {
			msg = "Please provide all required fields"
			break
		}
	}
	return apperrors.Validation(msg, verr.Fields)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
