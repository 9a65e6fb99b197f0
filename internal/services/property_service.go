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
	"github.com/mohamed20039/Renter/internal/database"
	"github.com/mohamed20039/Renter/internal/models"
	"github.com/mohamed20039/Renter/internal/validator"
)

// Notifier publishes listing changes to live subscribers.
type Notifier interface {
	Publish(action string, payload interface{})
}

// PropertyServiceProvider defines the interface for property services.
type PropertyServiceProvider interface {
	GetAllProperties(ctx context.Context, onlyAvailable bool) ([]models.Property, error)
	GetPropertyByID(ctx context.Context, id string) (models.Property, error)
	GetPropertiesByOwner(ctx context.Context, ownerID string) ([]models.Property, error)
	GetPropertiesByRenter(ctx context.Context, renterID string) ([]models.Property, error)
	CreateProperty(ctx context.Context, ownerID string, input CreatePropertyInput) (models.Property, error)
	RentProperty(ctx context.Context, renterID, propertyID string) (models.Property, error)
	ReleaseProperty(ctx context.Context, userID, propertyID string) (models.Property, error)
	DeleteProperty(ctx context.Context, userID, propertyID string) error
}

// CreatePropertyInput carries the fields of a new listing.
type CreatePropertyInput struct {
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description"`
	Location    string  `json:"location" validate:"required"`
	Price       float64 `json:"price" validate:"gte=0"`
	Image       string  `json:"-"`
}

// PropertyService provides business logic for rental listings.
type PropertyService struct {
	db        *database.DB
	validator *validator.Validator
	events    EventServiceProvider
	notifier  Notifier
}

// NewPropertyService creates a new PropertyService. notifier may be nil.
func NewPropertyService(db *database.DB, v *validator.Validator, events EventServiceProvider, notifier Notifier) *PropertyService {
	return &PropertyService{db: db, validator: v, events: events, notifier: notifier}
}

const propertyColumns = "id, title, description, location, price, image, owner_id, renter_id, created_at, updated_at"

// scanProperty is a helper to scan a property from a row or rows object.
func scanProperty(scanner interface{ Scan(...interface{}) error }) (models.Property, error) {
	var p models.Property
	var renterID sql.NullString
	err := scanner.Scan(
		&p.ID, &p.Title, &p.Description, &p.Location, &p.Price,
		&p.Image, &p.OwnerID, &renterID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return p, err
	}
	if renterID.Valid {
		p.RenterID = &renterID.String
	}
	return p, nil
}

func (s *PropertyService) query(ctx context.Context, where string, args ...interface{}) ([]models.Property, error) {
	q := "SELECT " + propertyColumns + " FROM properties"
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	defer rows.Close()

	properties := []models.Property{}
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		properties = append(properties, p)
	}
	return properties, rows.Err()
}

// GetAllProperties lists properties, optionally only those not rented.
func (s *PropertyService) GetAllProperties(ctx context.Context, onlyAvailable bool) ([]models.Property, error) {
	if onlyAvailable {
		return s.query(ctx, "renter_id IS NULL")
	}
	return s.query(ctx, "")
}

// GetPropertiesByOwner lists the properties an owner published.
func (s *PropertyService) GetPropertiesByOwner(ctx context.Context, ownerID string) ([]models.Property, error) {
	return s.query(ctx, "owner_id = ?", ownerID)
}

// GetPropertiesByRenter lists the properties a renter currently rents.
func (s *PropertyService) GetPropertiesByRenter(ctx context.Context, renterID string) ([]models.Property, error) {
	return s.query(ctx, "renter_id = ?", renterID)
}

// GetPropertyByID retrieves a single property.
func (s *PropertyService) GetPropertyByID(ctx context.Context, id string) (models.Property, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind("SELECT "+propertyColumns+" FROM properties WHERE id = ?"), id)
	p, err := scanProperty(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Property{}, apperrors.NotFound("Property not found")
		}
		return models.Property{}, fmt.Errorf("failed to query property: %w", err)
	}
	return p, nil
}

// roleOf returns the role of the given user.
func (s *PropertyService) roleOf(ctx context.Context, userID string) (models.Role, error) {
	var role models.Role
	err := s.db.QueryRowContext(ctx, s.db.Rebind("SELECT role FROM users WHERE id = ?"), userID).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperrors.NotFound("User not found")
		}
		return "", fmt.Errorf("failed to query user role: %w", err)
	}
	return role, nil
}

// CreateProperty publishes a new listing. Only owners may publish.
func (s *PropertyService) CreateProperty(ctx context.Context, ownerID string, input CreatePropertyInput) (models.Property, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Location = strings.TrimSpace(input.Location)
	if err := s.validator.Validate(input); err != nil {
		var verr *validator.ValidationError
		if errors.As(err, &verr) {
			return models.Property{}, apperrors.Validation("Please provide all required fields", verr.Fields)
		}
		return models.Property{}, err
	}

	role, err := s.roleOf(ctx, ownerID)
	if err != nil {
		return models.Property{}, err
	}
	if role != models.RoleOwner {
		return models.Property{}, apperrors.Forbidden("Only owners can publish properties")
	}

	now := time.Now().UTC()
	p := models.Property{
		ID:          uuid.New().String(),
		Title:       input.Title,
		Description: strings.TrimSpace(input.Description),
		Location:    input.Location,
		Price:       input.Price,
		Image:       input.Image,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = s.db.ExecContext(ctx,
		s.db.Rebind("INSERT INTO properties ("+propertyColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		p.ID, p.Title, p.Description, p.Location, p.Price, p.Image, p.OwnerID, p.RenterID, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return models.Property{}, fmt.Errorf("failed to insert property: %w", err)
	}

	recordEvent(ctx, s.events, "property.create", fmt.Sprintf("Property '%s' published.", p.Title), ownerID)
	s.publish("property.created", p)
	return p, nil
}

// RentProperty assigns an available property to a renter.
func (s *PropertyService) RentProperty(ctx context.Context, renterID, propertyID string) (models.Property, error) {
	role, err := s.roleOf(ctx, renterID)
	if err != nil {
		return models.Property{}, err
	}
	if role != models.RoleRenter {
		return models.Property{}, apperrors.Forbidden("Only renters can rent properties")
	}

	// Conditional update so two renters cannot both win.
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE properties SET renter_id = ?, updated_at = ? WHERE id = ? AND renter_id IS NULL"),
		renterID, time.Now().UTC(), propertyID,
	)
	if err != nil {
		return models.Property{}, fmt.Errorf("failed to rent property: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return models.Property{}, err
	} else if n == 0 {
		if _, err := s.GetPropertyByID(ctx, propertyID); err != nil {
			return models.Property{}, err
		}
		return models.Property{}, apperrors.Conflict("Property is already rented")
	}

	p, err := s.GetPropertyByID(ctx, propertyID)
	if err != nil {
		return models.Property{}, err
	}

	recordEvent(ctx, s.events, "property.rent", fmt.Sprintf("Property '%s' rented.", p.Title), renterID)
	s.publish("property.rented", p)
	return p, nil
}

// ReleaseProperty ends a rental. The current renter or the owner may release.
func (s *PropertyService) ReleaseProperty(ctx context.Context, userID, propertyID string) (models.Property, error) {
	p, err := s.GetPropertyByID(ctx, propertyID)
	if err != nil {
		return models.Property{}, err
	}
	if p.Available() {
		return models.Property{}, apperrors.Conflict("Property is not rented")
	}
	if userID != p.OwnerID && userID != *p.RenterID {
		return models.Property{}, apperrors.Forbidden("You aren't allowed to release this property")
	}

	_, err = s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE properties SET renter_id = NULL, updated_at = ? WHERE id = ?"),
		time.Now().UTC(), propertyID,
	)
	if err != nil {
		return models.Property{}, fmt.Errorf("failed to release property: %w", err)
	}

	p, err = s.GetPropertyByID(ctx, propertyID)
	if err != nil {
		return models.Property{}, err
	}

	recordEvent(ctx, s.events, "property.release", fmt.Sprintf("Property '%s' released.", p.Title), userID)
	s.publish("property.released", p)
	return p, nil
}

// DeleteProperty removes a listing. Only its owner may delete it.
func (s *PropertyService) DeleteProperty(ctx context.Context, userID, propertyID string) error {
	p, err := s.GetPropertyByID(ctx, propertyID)
	if err != nil {
		return err
	}
	if p.OwnerID != userID {
		return apperrors.Forbidden("You aren't allowed to delete this property")
	}

	if _, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM properties WHERE id = ?"), propertyID); err != nil {
		return fmt.Errorf("failed to delete property: %w", err)
	}

	recordEvent(ctx, s.events, "property.delete", fmt.Sprintf("Property '%s' deleted.", p.Title), userID)
	s.publish("property.deleted", map[string]string{"id": p.ID})
	return nil
}

func (s *PropertyService) publish(action string, payload interface{}) {
	if s.notifier != nil {
		s.notifier.Publish(action, payload)
	}
}
