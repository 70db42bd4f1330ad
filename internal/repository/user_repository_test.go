package repository_test

import (
	"context"
	"testing"

	"taskboard/internal/model"
	"taskboard/internal/repository"
	"taskboard/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		DriverName:           "postgres",
		Conn:                 db,
		PreferSimpleProtocol: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock
}

func TestUserRepository_CreateAndFindByEmail(t *testing.T) {
	db := testutil.NewDB(t)
	userRepo := repository.NewUserRepository(db)

	user := &model.User{
		Email:          "test@example.com",
		HashedPassword: "hashed_password",
		Name:           "Test User",
		Role:           model.RoleManager,
	}
	require.NoError(t, userRepo.Create(context.Background(), user))
	assert.NotEqual(t, uuid.Nil, user.ID)

	found, err := userRepo.FindByEmail(context.Background(), "test@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, "Test User", found.Name)
	assert.Equal(t, model.RoleManager, found.Role)
}

func TestUserRepository_CreateDuplicateEmail(t *testing.T) {
	db := testutil.NewDB(t)
	userRepo := repository.NewUserRepository(db)

	first := &model.User{Email: "dup@example.com", HashedPassword: "x", Name: "One", Role: model.RoleUser}
	second := &model.User{Email: "dup@example.com", HashedPassword: "y", Name: "Two", Role: model.RoleUser}

	require.NoError(t, userRepo.Create(context.Background(), first))
	assert.Error(t, userRepo.Create(context.Background(), second))
}

func TestUserRepository_FindByEmail_NotFound(t *testing.T) {
	userRepo := repository.NewUserRepository(testutil.NewDB(t))

	user, err := userRepo.FindByEmail(context.Background(), "nonexistent@example.com")

	assert.NoError(t, err) // Метод не возвращает ошибку при отсутствии записи
	assert.Nil(t, user)
}

func TestUserRepository_FindByEmail_Error(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	userRepo := repository.NewUserRepository(gormDB)

	mock.ExpectQuery(`SELECT .* FROM "users" WHERE email = .*`).
		WillReturnError(assert.AnError)

	user, err := userRepo.FindByEmail(context.Background(), "test@example.com")

	assert.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByID(t *testing.T) {
	db := testutil.NewDB(t)
	userRepo := repository.NewUserRepository(db)
	alice := testutil.CreateUser(t, db, "alice", model.RoleUser)

	found, err := userRepo.GetByID(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.Email, found.Email)

	_, err = userRepo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestUserRepository_ListByRoles(t *testing.T) {
	db := testutil.NewDB(t)
	userRepo := repository.NewUserRepository(db)
	u := testutil.CreateUser(t, db, "user", model.RoleUser)
	m := testutil.CreateUser(t, db, "manager", model.RoleManager)
	testutil.CreateUser(t, db, "admin", model.RoleAdmin)

	users, err := userRepo.ListByRoles(context.Background(), model.RoleUser, model.RoleManager)
	require.NoError(t, err)

	var ids []uuid.UUID
	for _, user := range users {
		ids = append(ids, user.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{u.ID, m.ID}, ids)
}

func TestUserRepository_ListIDsByRole(t *testing.T) {
	db := testutil.NewDB(t)
	userRepo := repository.NewUserRepository(db)
	u1 := testutil.CreateUser(t, db, "u1", model.RoleUser)
	u2 := testutil.CreateUser(t, db, "u2", model.RoleUser)
	testutil.CreateUser(t, db, "boss", model.RoleManager)

	ids, err := userRepo.ListIDsByRole(context.Background(), model.RoleUser)

	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{u1.ID, u2.ID}, ids)
}

func TestUserRepository_ListIDsByRole_Error(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	userRepo := repository.NewUserRepository(gormDB)

	mock.ExpectQuery(`SELECT "id" FROM "users" WHERE role = .*`).
		WillReturnError(assert.AnError)

	_, err := userRepo.ListIDsByRole(context.Background(), model.RoleUser)

	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}
