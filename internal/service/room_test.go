package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-hub/internal/domain"
	"chat-hub/internal/repository"
	"chat-hub/internal/repository/mocks"
	"chat-hub/internal/service"
)

func newRoomService(t *testing.T, roomRepo *mocks.RoomRepository, userRepo *mocks.UserRepository) *service.RoomService {
	t.Helper()
	codes := service.NewCodeService(roomRepo, userRepo)
	return service.NewRoomService(roomRepo, codes)
}

func TestRoomService_CreateRoom_Success(t *testing.T) {
	// Arrange
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	roomService := newRoomService(t, mockRoomRepo, mockUserRepo)
	ctx := context.Background()

	mockRoomRepo.On("IsCodeExists", ctx, mock.AnythingOfType("string")).Return(false, nil).Once()
	mockRoomRepo.On("Save", ctx, mock.MatchedBy(func(room *domain.Room) bool {
		assert.Equal(t, "My Study Group", room.Name)
		assert.Equal(t, domain.CategoryCustom, room.Category)
		assert.False(t, room.IsPublic, "user-created rooms are private")
		assert.Equal(t, uint(3), room.CreatorID)
		assert.Len(t, room.Code, 8)
		return true
	})).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.Room).ID = 42
		}).
		Return(nil).
		Once()

	// Act
	room, err := roomService.CreateRoom(ctx, "My Study Group", 3)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, room)
	assert.Equal(t, uint(42), room.ID)
	assert.Len(t, room.Code, 8)

	mockRoomRepo.AssertExpectations(t)
}

func TestRoomService_CreateRoom_DuplicateNamesAllowed(t *testing.T) {
	// Arrange: two rooms with the same name get distinct codes.
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	roomService := newRoomService(t, mockRoomRepo, mockUserRepo)
	ctx := context.Background()

	mockRoomRepo.On("IsCodeExists", ctx, mock.AnythingOfType("string")).Return(false, nil).Twice()
	mockRoomRepo.On("Save", ctx, mock.AnythingOfType("*domain.Room")).Return(nil).Twice()

	// Act
	first, err1 := roomService.CreateRoom(ctx, "Homework", 1)
	second, err2 := roomService.CreateRoom(ctx, "Homework", 2)

	// Assert
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.NotEqual(t, first.Code, second.Code)
}

func TestRoomService_Resolve_UppercasesInput(t *testing.T) {
	// Arrange
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	roomService := newRoomService(t, mockRoomRepo, mockUserRepo)
	ctx := context.Background()
	stored := &domain.Room{ID: 1, Code: "AB12CD34", Name: "IIT Bombay"}

	mockRoomRepo.On("FindByCode", ctx, "AB12CD34").Return(stored, nil).Once()

	// Act
	room, err := roomService.Resolve(ctx, "  ab12cd34 ")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "AB12CD34", room.Code)

	mockRoomRepo.AssertExpectations(t)
}

func TestRoomService_Resolve_NotFound(t *testing.T) {
	// Arrange
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	roomService := newRoomService(t, mockRoomRepo, mockUserRepo)
	ctx := context.Background()

	mockRoomRepo.On("FindByCode", ctx, "ZZZZ9999").Return(nil, repository.ErrRoomNotFound).Once()

	// Act
	room, err := roomService.Resolve(ctx, "zzzz9999")

	// Assert
	require.Error(t, err)
	assert.Nil(t, room)
	assert.True(t, errors.Is(err, service.ErrRoomNotFound))
}

func TestRoomService_ListPublicByCategory_SectionOrder(t *testing.T) {
	// Arrange: repository returns rooms in arbitrary order; the listing must
	// follow the catalog's category order.
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	roomService := newRoomService(t, mockRoomRepo, mockUserRepo)
	ctx := context.Background()

	publicRooms := []domain.Room{
		{ID: 3, Code: "CCCC3333", Name: "Funny Jokes", Category: domain.CategoryEntertainment, IsPublic: true},
		{ID: 1, Code: "AAAA1111", Name: "IIT Bombay", Category: domain.CategoryStudents, IsPublic: true},
		{ID: 2, Code: "BBBB2222", Name: "IIT KGP", Category: domain.CategoryStudents, IsPublic: true},
	}
	mockRoomRepo.On("FindPublic", ctx).Return(publicRooms, nil).Once()

	// Act
	listings, err := roomService.ListPublicByCategory(ctx)

	// Assert
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, domain.CategoryStudents, listings[0].Category)
	require.Len(t, listings[0].Rooms, 2)
	assert.Equal(t, "IIT Bombay", listings[0].Rooms[0].Name)
	assert.Equal(t, domain.CategoryEntertainment, listings[1].Category)

	mockRoomRepo.AssertExpectations(t)
}

func TestRoomService_SeedCatalog_Idempotent(t *testing.T) {
	// Arrange: a two-room catalog; the first seed run creates both rooms, the
	// second run finds them and creates nothing.
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	roomService := newRoomService(t, mockRoomRepo, mockUserRepo)
	ctx := context.Background()
	catalog := map[domain.Category][]string{
		domain.CategoryStudents: {"IIT Bombay"},
		domain.CategoryParents:  {"Parenting Tips"},
	}

	// First run: both lookups miss.
	mockRoomRepo.On("FindByNameCategory", ctx, "IIT Bombay", domain.CategoryStudents).
		Return(nil, repository.ErrRoomNotFound).Once()
	mockRoomRepo.On("FindByNameCategory", ctx, "Parenting Tips", domain.CategoryParents).
		Return(nil, repository.ErrRoomNotFound).Once()
	mockRoomRepo.On("IsCodeExists", ctx, mock.AnythingOfType("string")).Return(false, nil).Twice()
	mockRoomRepo.On("Save", ctx, mock.MatchedBy(func(room *domain.Room) bool {
		return room.IsPublic && room.CreatorID == 1
	})).Return(nil).Twice()

	roomService.SeedCatalog(ctx, catalog, 1)
	mockRoomRepo.AssertExpectations(t)

	// Second run: both lookups hit, nothing else happens.
	mockRoomRepo.On("FindByNameCategory", ctx, "IIT Bombay", domain.CategoryStudents).
		Return(&domain.Room{ID: 1}, nil).Once()
	mockRoomRepo.On("FindByNameCategory", ctx, "Parenting Tips", domain.CategoryParents).
		Return(&domain.Room{ID: 2}, nil).Once()

	roomService.SeedCatalog(ctx, catalog, 1)

	mockRoomRepo.AssertExpectations(t)
	mockRoomRepo.AssertNumberOfCalls(t, "Save", 2)
}

func TestRoomService_SeedCatalog_SkipsFailedRoom(t *testing.T) {
	// Arrange: one room's save fails; seeding continues with the rest.
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	roomService := newRoomService(t, mockRoomRepo, mockUserRepo)
	ctx := context.Background()
	catalog := map[domain.Category][]string{
		domain.CategoryStudents: {"IIT Bombay", "IIT KGP"},
	}

	mockRoomRepo.On("FindByNameCategory", ctx, "IIT Bombay", domain.CategoryStudents).
		Return(nil, repository.ErrRoomNotFound).Once()
	mockRoomRepo.On("FindByNameCategory", ctx, "IIT KGP", domain.CategoryStudents).
		Return(nil, repository.ErrRoomNotFound).Once()
	mockRoomRepo.On("IsCodeExists", ctx, mock.AnythingOfType("string")).Return(false, nil).Twice()
	mockRoomRepo.On("Save", ctx, mock.MatchedBy(func(room *domain.Room) bool {
		return room.Name == "IIT Bombay"
	})).Return(errors.New("disk full")).Once()
	mockRoomRepo.On("Save", ctx, mock.MatchedBy(func(room *domain.Room) bool {
		return room.Name == "IIT KGP"
	})).Return(nil).Once()

	// Act: must not panic or abort.
	roomService.SeedCatalog(ctx, catalog, 1)

	// Assert
	mockRoomRepo.AssertExpectations(t)
}
