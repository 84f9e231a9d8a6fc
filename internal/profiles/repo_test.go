package profiles

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/models"
	"github.com/riohdigital/rio-digital-hub-connect-sub000/pkg/database"
)

func setupRepo(t *testing.T) (*Repo, sqlmock.Sqlmock, *miniredis.Miniredis) {
	mockDB, mock, err := sqlmock.New()
	assert.NoError(t, err)

	db := sqlx.NewDb(mockDB, "sqlmock")

	miniRedis, err := miniredis.Run()
	assert.NoError(t, err)
	t.Cleanup(miniRedis.Close)

	redisClient := redis.NewClient(&redis.Options{Addr: miniRedis.Addr()})

	clients := &database.Clients{DB: db, Redis: redisClient}
	return NewRepo(clients, time.Minute, nil), mock, miniRedis
}

func profileRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "full_name", "avatar_url", "role", "plan", "allowed_assistants",
		"whatsapp_jid", "google_access_token", "google_refresh_token",
		"google_token_expiry", "updated_at",
	})
}

func TestFetchProfileFromDatabase(t *testing.T) {
	repo, mock, miniRedis := setupRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM profiles WHERE id = \\$1").
		WithArgs("u1").
		WillReturnRows(profileRows().AddRow(
			"u1", "Ana", "", models.RoleAdmin, "free",
			"{digirioh}", "", "", "", nil, time.Now(),
		))

	profile, err := repo.FetchProfile(context.Background(), "u1")
	assert.NoError(t, err)
	assert.Equal(t, "u1", profile.ID)
	assert.Equal(t, models.RoleAdmin, profile.Role)
	assert.Equal(t, pq.StringArray{"digirioh"}, profile.AllowedAssistants)

	assert.True(t, miniRedis.Exists("profile:u1"), "fetched profile should be cached")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchProfileFromCache(t *testing.T) {
	repo, mock, miniRedis := setupRepo(t)

	cached, _ := json.Marshal(&models.Profile{ID: "u1", Role: models.RoleBasicUser})
	miniRedis.Set("profile:u1", string(cached))

	profile, err := repo.FetchProfile(context.Background(), "u1")
	assert.NoError(t, err)
	assert.Equal(t, models.RoleBasicUser, profile.Role)

	// No database round trip.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchProfileNotFound(t *testing.T) {
	repo, mock, _ := setupRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM profiles WHERE id = \\$1").
		WithArgs("missing").
		WillReturnRows(profileRows())

	profile, err := repo.FetchProfile(context.Background(), "missing")
	assert.NoError(t, err, "a missing row is not an error")
	assert.Nil(t, profile)
}

func TestInsertProfile(t *testing.T) {
	repo, mock, _ := setupRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO profiles (id, full_name, updated_at) VALUES ($1, $2, NOW())")).
		WithArgs("u1", "Ana").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.InsertProfile(context.Background(), "u1", "Ana"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateInvalidatesCache(t *testing.T) {
	repo, mock, miniRedis := setupRepo(t)

	miniRedis.Set("profile:u1", `{"id":"u1"}`)

	mock.ExpectExec("UPDATE profiles SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), &models.Profile{ID: "u1", Role: models.RoleBasicUser})
	assert.NoError(t, err)
	assert.False(t, miniRedis.Exists("profile:u1"))
}

func TestFetchPlans(t *testing.T) {
	repo, mock, _ := setupRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, plan_name, expires_at, created_at FROM user_plans WHERE user_id = $1 ORDER BY created_at DESC")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "plan_name", "expires_at", "created_at"}).
			AddRow("u1", "free", nil, time.Now()).
			AddRow("u1", "digirioh", nil, time.Now()))

	plans, err := repo.FetchPlans(context.Background(), "u1")
	assert.NoError(t, err)
	assert.Len(t, plans, 2)
}
