package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"chat-hub/internal/domain"
	"chat-hub/internal/service"
)

// PresenceCounter reads the advisory online member count for a room.
type PresenceCounter interface {
	Count(ctx context.Context, roomCode string) (int, error)
}

// RoomHandler wraps the room directory and history endpoints.
type RoomHandler struct {
	roomService    *service.RoomService
	messageService *service.MessageService
	authService    *service.AuthService
	presence       PresenceCounter // optional
}

// NewRoomHandler creates a RoomHandler instance. presence may be nil.
func NewRoomHandler(roomService *service.RoomService, messageService *service.MessageService, authService *service.AuthService, presence PresenceCounter) *RoomHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for RoomHandler")
	}
	if messageService == nil {
		panic("MessageService cannot be nil for RoomHandler")
	}
	if authService == nil {
		panic("AuthService cannot be nil for RoomHandler")
	}
	return &RoomHandler{
		roomService:    roomService,
		messageService: messageService,
		authService:    authService,
		presence:       presence,
	}
}

// CreateRoomRequest is the room creation request body.
type CreateRoomRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

// CreateRoomResponse returns the new room's id and code.
type CreateRoomResponse struct {
	Message string `json:"message"`
	RoomID  uint   `json:"room_id"`
	Code    string `json:"code"`
}

// CreateRoom handles creation of a private custom room.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		logrus.Warn("Handler.CreateRoom: User ID not found in context")
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.CreateRoom: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: name is required")
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), req.Name, userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": room.ID, "code": room.Code}).Info("Handler.CreateRoom: Room created")
	SuccessResponse(c, http.StatusOK, CreateRoomResponse{
		Message: "Room created successfully",
		RoomID:  room.ID,
		Code:    room.Code,
	})
}

// JoinRoomRequest is the join-by-code request body.
type JoinRoomRequest struct {
	Code string `json:"code" binding:"required,len=8"`
}

// JoinRoomResponse confirms the resolved room.
type JoinRoomResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Name    string `json:"name"`
}

// JoinRoom resolves a room code for a client about to open a WebSocket and
// subscribe. Codes arrive in any case and resolve uppercased.
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	if _, ok := authedUserID(c); !ok {
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.JoinRoom: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: code is required")
		return
	}

	room, err := h.roomService.Resolve(c.Request.Context(), req.Code)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, JoinRoomResponse{
		Message: "Room found",
		Code:    room.Code,
		Name:    room.Name,
	})
}

// LobbyRoom is one public room in the lobby listing.
type LobbyRoom struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Online int    `json:"online"`
}

// LobbySection is one category block of the lobby listing.
type LobbySection struct {
	Category domain.Category `json:"category"`
	Rooms    []LobbyRoom     `json:"rooms"`
}

// Lobby lists the public catalog grouped by category, in seed order, with
// advisory online counts.
func (h *RoomHandler) Lobby(c *gin.Context) {
	listings, err := h.roomService.ListPublicByCategory(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	sections := make([]LobbySection, 0, len(listings))
	for _, listing := range listings {
		section := LobbySection{Category: listing.Category, Rooms: make([]LobbyRoom, 0, len(listing.Rooms))}
		for _, room := range listing.Rooms {
			online := 0
			if h.presence != nil {
				if n, err := h.presence.Count(c.Request.Context(), room.Code); err == nil {
					online = n
				} else {
					logrus.WithError(err).WithField("room", room.Code).Warn("Handler.Lobby: presence count failed")
				}
			}
			section.Rooms = append(section.Rooms, LobbyRoom{Code: room.Code, Name: room.Name, Online: online})
		}
		sections = append(sections, section)
	}

	SuccessResponse(c, http.StatusOK, gin.H{"rooms": sections})
}

// HistoryMessage is one message in a history response, with the author
// fields the chat view renders.
type HistoryMessage struct {
	Content          string `json:"content"`
	Username         string `json:"username"`
	VerificationCode string `json:"verification_code"`
	Timestamp        string `json:"timestamp"`
}

// History returns a room's messages ascending. An optional ?limit= caps the
// result; the default is the full history.
func (h *RoomHandler) History(c *gin.Context) {
	if _, ok := authedUserID(c); !ok {
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	room, err := h.roomService.Resolve(c.Request.Context(), c.Param("code"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	messages, err := h.messageService.History(c.Request.Context(), room.Code, limit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	// Author identities are resolved per user id, cached across the result.
	identities := make(map[uint]*domain.User)
	history := make([]HistoryMessage, 0, len(messages))
	for _, msg := range messages {
		user, ok := identities[msg.UserID]
		if !ok {
			user, err = h.authService.Identity(c.Request.Context(), msg.UserID)
			if err != nil {
				logrus.WithError(err).WithField("user_id", msg.UserID).Warn("Handler.History: author lookup failed")
				user = &domain.User{Name: "unknown"}
			}
			identities[msg.UserID] = user
		}
		history = append(history, HistoryMessage{
			Content:          msg.Content,
			Username:         user.Name,
			VerificationCode: user.VerificationCode,
			Timestamp:        msg.Timestamp.Format(domain.DisplayClock),
		})
	}

	SuccessResponse(c, http.StatusOK, gin.H{"room": room.Code, "messages": history})
}
