package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mohamed20039/Renter/internal/apperrors"
	"github.com/mohamed20039/Renter/internal/auth"
	"github.com/mohamed20039/Renter/internal/database"
	"github.com/mohamed20039/Renter/internal/models"
	"github.com/mohamed20039/Renter/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser_Success(t *testing.T) {
	f := newFixture(t)

	u, err := f.users.CreateUser(context.Background(), registerInput("jane", "renter"))
	require.NoError(t, err)

	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "jane@example.com", u.Email)
	assert.Equal(t, models.RoleRenter, u.Role)
	assert.Equal(t, models.DefaultUserImage, u.Image)
	assert.NotNil(t, u.RentedProperties)
	assert.Nil(t, u.OwnedProperties)
	assert.NotEqual(t, "p4ssw0rd", u.PasswordHash)
	assert.True(t, auth.CheckPassword(u.PasswordHash, "p4ssw0rd"))
}

func TestCreateUser_UsesUploadedImage(t *testing.T) {
	f := newFixture(t)
	in := registerInput("imgy", "owner")
	in.Image = "/uploads/users/a.png"

	u, err := f.users.CreateUser(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/users/a.png", u.Image)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "jane", "renter")

	dup := registerInput("someone-else", "owner")
	dup.Email = "JANE@example.com"
	_, err := f.users.CreateUser(ctx, dup)

	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, 1, f.countUsers(t, "jane@example.com"))
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	f := newFixture(t)
	f.register(t, "jane", "renter")

	dup := registerInput("jane", "renter")
	dup.Email = "other@example.com"
	_, err := f.users.CreateUser(context.Background(), dup)

	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestCreateUser_RoleIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)

	upper, err := f.users.CreateUser(context.Background(), registerInput("upper", "OWNER"))
	require.NoError(t, err)
	lower, err := f.users.CreateUser(context.Background(), registerInput("lower", "owner"))
	require.NoError(t, err)

	assert.Equal(t, models.RoleOwner, upper.Role)
	assert.Equal(t, lower.Role, upper.Role)
	assert.NotNil(t, upper.OwnedProperties)
}

func TestCreateUser_InvalidRole(t *testing.T) {
	f := newFixture(t)

	_, err := f.users.CreateUser(context.Background(), registerInput("tim", "tenant"))

	require.ErrorIs(t, err, apperrors.ErrBadRequest)
	assert.Contains(t, err.Error(), "Invalid role: tenant")
	assert.Equal(t, 0, f.countUsers(t, "tim@example.com"))
}

func TestCreateUser_EachFieldRequired(t *testing.T) {
	f := newFixture(t)
	blank := map[string]func(*CreateUserInput){
		"firstName": func(in *CreateUserInput) { in.FirstName = "" },
		"lastName":  func(in *CreateUserInput) { in.LastName = "" },
		"username":  func(in *CreateUserInput) { in.Username = "" },
		"email":     func(in *CreateUserInput) { in.Email = "" },
		"password":  func(in *CreateUserInput) { in.Password = "" },
		"role":      func(in *CreateUserInput) { in.Role = "" },
	}
	whitespace := map[string]func(*CreateUserInput){
		"firstName": func(in *CreateUserInput) { in.FirstName = "   " },
		"lastName":  func(in *CreateUserInput) { in.LastName = "\t" },
		"username":  func(in *CreateUserInput) { in.Username = " \n " },
		"email":     func(in *CreateUserInput) { in.Email = "  " },
		"password":  func(in *CreateUserInput) { in.Password = "    " },
		"role":      func(in *CreateUserInput) { in.Role = " " },
	}
	for field, clear := range whitespace {
		blank[field+"/whitespace"] = clear
	}

	for name, clear := range blank {
		t.Run(name, func(t *testing.T) {
			field := strings.TrimSuffix(name, "/whitespace")
			in := registerInput("req-"+field, "renter")
			clear(&in)

			_, err := f.users.CreateUser(context.Background(), in)

			appErr, ok := apperrors.As(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, apperrors.CodeBadRequest, appErr.Code)
			assert.Equal(t, "Please provide all required fields", appErr.Message)
			assert.Equal(t, map[string]string{field: "is required"}, appErr.Fields)
		})
	}
	assert.Equal(t, 0, f.countUsers(t, "req-firstName@example.com"))
}

func TestCreateUser_InvalidEmail(t *testing.T) {
	f := newFixture(t)
	in := registerInput("bad", "renter")
	in.Email = "not-an-email"

	_, err := f.users.CreateUser(context.Background(), in)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "Invalid request fields", appErr.Message)
	assert.Contains(t, appErr.Fields, "email")
}

func TestAuthenticateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	registered := f.register(t, "jane", "renter")

	u, err := f.users.AuthenticateUser(ctx, " Jane@Example.com ", "p4ssw0rd")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, u.ID)
	assert.NotNil(t, u.RentedProperties)

	_, err = f.users.AuthenticateUser(ctx, "jane@example.com", "wrong")
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
	assert.Contains(t, err.Error(), "Invalid password")

	_, err = f.users.AuthenticateUser(ctx, "nobody@example.com", "p4ssw0rd")
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
	assert.Contains(t, err.Error(), "User does not exist")

	_, err = f.users.AuthenticateUser(ctx, "", "p4ssw0rd")
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
	assert.Contains(t, err.Error(), "Please provide all required fields")
}

func TestRegisterLoginProfile_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	registered, err := f.users.CreateUser(ctx, registerInput("round", "Owner"))
	require.NoError(t, err)
	loggedIn, err := f.users.AuthenticateUser(ctx, "round@example.com", "p4ssw0rd")
	require.NoError(t, err)
	profile, err := f.users.GetUserByID(ctx, loggedIn.ID)
	require.NoError(t, err)

	for _, u := range []models.User{loggedIn, profile} {
		assert.Equal(t, registered.ID, u.ID)
		assert.Equal(t, registered.Email, u.Email)
		assert.Equal(t, registered.Username, u.Username)
		assert.Equal(t, registered.Role, u.Role)
	}
}

func TestGetUserByID_IncludesRelationForRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.register(t, "olivia", "owner")
	renter := f.register(t, "ron", "renter")

	p, err := f.properties.CreateProperty(ctx, owner.ID, CreatePropertyInput{Title: "Loft", Location: "Berlin", Price: 1200})
	require.NoError(t, err)
	_, err = f.properties.RentProperty(ctx, renter.ID, p.ID)
	require.NoError(t, err)

	gotOwner, err := f.users.GetUserByID(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, gotOwner.OwnedProperties, 1)
	assert.Equal(t, p.ID, gotOwner.OwnedProperties[0].ID)
	assert.Empty(t, gotOwner.RentedProperties)

	gotRenter, err := f.users.GetUserByID(ctx, renter.ID)
	require.NoError(t, err)
	require.Len(t, gotRenter.RentedProperties, 1)
	assert.Equal(t, p.ID, gotRenter.RentedProperties[0].ID)
	assert.Empty(t, gotRenter.OwnedProperties)
}

func TestGetUserByID_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.users.GetUserByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateUser_Forbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	victim := f.register(t, "victim", "renter")
	attacker := f.register(t, "attacker", "renter")

	_, err := f.users.UpdateUser(ctx, attacker.ID, victim.ID, UpdateUserInput{Email: ptr("pwned@example.com")})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	stored, err := f.users.GetUserByID(ctx, victim.ID)
	require.NoError(t, err)
	assert.Equal(t, "victim@example.com", stored.Email)
}

func TestUpdateUser_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.users.UpdateUser(context.Background(), "ghost", "ghost", UpdateUserInput{FirstName: ptr("Casper")})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateUser_PartialFieldsAndRehash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "jane", "renter")

	updated, err := f.users.UpdateUser(ctx, u.ID, u.ID, UpdateUserInput{
		FirstName: ptr("Janet"),
		Password:  ptr("n3w-secret"),
		Role:      ptr("OWNER"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Janet", updated.FirstName)
	assert.Equal(t, "Doe", updated.LastName)
	assert.Equal(t, models.RoleOwner, updated.Role)
	assert.Equal(t, u.Image, updated.Image)
	assert.NotEqual(t, "n3w-secret", updated.PasswordHash)

	_, err = f.users.AuthenticateUser(ctx, "jane@example.com", "n3w-secret")
	assert.NoError(t, err)
	_, err = f.users.AuthenticateUser(ctx, "jane@example.com", "p4ssw0rd")
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestUpdateUser_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "jane", "renter")
	f.register(t, "taken", "renter")

	_, err := f.users.UpdateUser(ctx, u.ID, u.ID, UpdateUserInput{Role: ptr("landlord")})
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = f.users.UpdateUser(ctx, u.ID, u.ID, UpdateUserInput{Email: ptr("nope")})
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = f.users.UpdateUser(ctx, u.ID, u.ID, UpdateUserInput{FirstName: ptr("")})
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)

	for _, in := range []UpdateUserInput{
		{FirstName: ptr("   ")},
		{LastName: ptr("\t")},
		{Username: ptr("   ")},
		{Password: ptr("  ")},
	} {
		_, err = f.users.UpdateUser(ctx, u.ID, u.ID, in)
		assert.ErrorIs(t, err, apperrors.ErrBadRequest)
	}
	stored, err := f.users.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "jane", stored.Username)
	assert.Equal(t, "Jane", stored.FirstName)
	assert.Equal(t, "Doe", stored.LastName)

	_, err = f.users.UpdateUser(ctx, u.ID, u.ID, UpdateUserInput{Email: ptr("taken@example.com")})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = f.users.UpdateUser(ctx, u.ID, u.ID, UpdateUserInput{Username: ptr("taken")})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestUpdateUser_TrimsFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "jane", "renter")

	updated, err := f.users.UpdateUser(ctx, u.ID, u.ID, UpdateUserInput{
		FirstName: ptr("  Janet "),
		Username:  ptr(" janet "),
		Email:     ptr(" Janet@Example.com "),
	})
	require.NoError(t, err)
	assert.Equal(t, "Janet", updated.FirstName)
	assert.Equal(t, "janet", updated.Username)
	assert.Equal(t, "janet@example.com", updated.Email)
}

func TestUpdateUser_RoleChangeWithProperties(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.register(t, "olivia", "owner")
	renter := f.register(t, "ron", "renter")

	p, err := f.properties.CreateProperty(ctx, owner.ID, CreatePropertyInput{Title: "Flat", Location: "Oslo", Price: 900})
	require.NoError(t, err)
	_, err = f.properties.RentProperty(ctx, renter.ID, p.ID)
	require.NoError(t, err)

	_, err = f.users.UpdateUser(ctx, owner.ID, owner.ID, UpdateUserInput{Role: ptr("renter")})
	require.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Contains(t, err.Error(), "Delete your properties before becoming a renter")

	_, err = f.users.UpdateUser(ctx, renter.ID, renter.ID, UpdateUserInput{Role: ptr("owner")})
	require.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Contains(t, err.Error(), "Release your rented property before becoming an owner")

	stored, err := f.users.GetUserByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, stored.Role)
	require.Len(t, stored.OwnedProperties, 1)
	assert.Equal(t, p.ID, stored.OwnedProperties[0].ID)

	// Same role is not a switch.
	_, err = f.users.UpdateUser(ctx, owner.ID, owner.ID, UpdateUserInput{Role: ptr("Owner")})
	assert.NoError(t, err)

	_, err = f.properties.ReleaseProperty(ctx, renter.ID, p.ID)
	require.NoError(t, err)
	updated, err := f.users.UpdateUser(ctx, renter.ID, renter.ID, UpdateUserInput{Role: ptr("owner")})
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, updated.Role)
}

func TestGetAllUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	users, err := f.users.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	f.register(t, "a", "renter")
	f.register(t, "b", "owner")

	users, err = f.users.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestUserEventsRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "jane", "renter")
	_, err := f.users.AuthenticateUser(ctx, "jane@example.com", "p4ssw0rd")
	require.NoError(t, err)

	events, err := f.events.GetRecentEvents(ctx, u.ID, 10)
	require.NoError(t, err)

	var types []string
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.ElementsMatch(t, []string{"user.register", "user.login"}, types)
}

func TestGetUserByID_StoreUnavailable(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + userColumns + " FROM users WHERE id = ?")).
		WithArgs("u1").
		WillReturnError(errors.New("connection refused"))

	svc := NewUserService(&database.DB{DB: sqlDB, Dialect: database.DialectSQLite}, validator.New(), nil, nil)
	_, err = svc.GetUserByID(context.Background(), "u1")

	require.Error(t, err)
	_, isAppErr := apperrors.As(err)
	assert.False(t, isAppErr)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}
