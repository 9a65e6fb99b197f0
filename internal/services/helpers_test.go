package services

import (
	"context"
	"sync"
	"testing"

	"github.com/mohamed20039/Renter/internal/database"
	"github.com/mohamed20039/Renter/internal/models"
	"github.com/mohamed20039/Renter/internal/validator"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db         *database.DB
	events     *EventService
	properties *PropertyService
	users      *UserService
	notifier   *recordingNotifier
}

type published struct {
	action  string
	payload interface{}
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []published
}

func (n *recordingNotifier) Publish(action string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, published{action: action, payload: payload})
}

func (n *recordingNotifier) actions() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, p := range n.sent {
		out = append(out, p.action)
	}
	return out
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.New(ctx, "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))

	v := validator.New()
	notifier := &recordingNotifier{}
	events := NewEventService(db)
	properties := NewPropertyService(db, v, events, notifier)
	users := NewUserService(db, v, properties, events)

	return &fixture{db: db, events: events, properties: properties, users: users, notifier: notifier}
}

func registerInput(username, role string) CreateUserInput {
	return CreateUserInput{
		FirstName: "Jane",
		LastName:  "Doe",
		Username:  username,
		Email:     username + "@example.com",
		Password:  "p4ssw0rd",
		Role:      role,
	}
}

func (f *fixture) register(t *testing.T, username, role string) models.User {
	t.Helper()
	u, err := f.users.CreateUser(context.Background(), registerInput(username, role))
	require.NoError(t, err)
	return u
}

func (f *fixture) countUsers(t *testing.T, email string) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.QueryRow("SELECT COUNT(*) FROM users WHERE email = ?", email).Scan(&n))
	return n
}

func ptr[T any](v T) *T { return &v }
