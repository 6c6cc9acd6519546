package room

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vidroom/server/internal/domain"
	"github.com/vidroom/server/internal/repository/connection"
	"github.com/vidroom/server/internal/repository/session"
)

const inviteTokenLength = 12

type CreateRoomParams struct {
	VideoId  string
	UserId   string
	Nickname string
}

type CreateRoomResponse struct {
	Room        RoomSnapshot
	InviteToken string
}

// CreateRoom creates a room around the given video with the creator as sole
// member, initial lease holder, and revision 1.
func (s *service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	userId := strings.TrimSpace(params.UserId)
	if userId == "" {
		return CreateRoomResponse{}, ErrMissingUserId
	}

	if params.VideoId == "" {
		return CreateRoomResponse{}, ErrMissingVideoId
	}

	video, err := s.videoRepo.Resolve(ctx, params.VideoId)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to resolve video", "error", err)
		return CreateRoomResponse{}, ErrVideoNotFound
	}

	now := s.now()
	room := domain.NewRoom(uuid.NewString(), userId, s.generator.GenerateRandomString(inviteTokenLength), video, now, s.cfg.LeaseDuration)

	if params.Nickname != "" {
		if err := room.AddMember(userId, params.Nickname); err != nil {
			return CreateRoomResponse{}, err
		}
	}

	if err := s.roomRepo.Add(room); err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to add room: %w", err)
	}

	s.logger.InfoContext(ctx, "room created", "roomId", room.Id, "creatorId", userId, "videoId", video.Id)

	return CreateRoomResponse{
		Room:        s.roomSnapshot(room, now),
		InviteToken: room.InviteToken,
	}, nil
}

type CreateJoinSessionParams struct {
	RoomId      string
	UserId      string
	Nickname    string
	InviteToken string
}

// CreateJoinSession validates the admission triple up front, parks it in
// the session store and returns a signed single-use connect token for the
// websocket handshake.
func (s *service) CreateJoinSession(ctx context.Context, params *CreateJoinSessionParams) (string, error) {
	userId := strings.TrimSpace(params.UserId)

	s.mu.Lock()
	err := s.checkAdmission(params.RoomId, userId, params.InviteToken)
	s.mu.Unlock()
	if err != nil {
		return "", err
	}

	sessionId := uuid.NewString()
	if err := s.sessionRepo.SetConnectSession(ctx, &session.SetConnectSessionParams{
		SessionId:   sessionId,
		RoomId:      params.RoomId,
		UserId:      userId,
		Nickname:    params.Nickname,
		InviteToken: params.InviteToken,
	}); err != nil {
		return "", fmt.Errorf("failed to set connect session: %w", err)
	}

	connectToken, err := s.signConnectToken(sessionId)
	if err != nil {
		return "", fmt.Errorf("failed to sign connect token: %w", err)
	}

	return connectToken, nil
}

type ConnectParams struct {
	Conn        connection.Conn
	RoomId      string
	UserId      string
	Nickname    string
	InviteToken string
}

type ConnectResponse struct {
	RoomId string
	UserId string
}

// Connect admits the connection, joins the user to the room and sends the
// welcome message. Join is idempotent on membership but always bumps the
// revision; everyone else learns about it through a room_state broadcast.
func (s *service) Connect(ctx context.Context, params *ConnectParams) (ConnectResponse, error) {
	userId := strings.TrimSpace(params.UserId)
	now := s.now()

	s.mu.Lock()

	if err := s.checkAdmission(params.RoomId, userId, params.InviteToken); err != nil {
		s.mu.Unlock()
		return ConnectResponse{}, err
	}

	room, err := s.roomRepo.Get(params.RoomId)
	if err != nil {
		s.mu.Unlock()
		return ConnectResponse{}, ErrRoomNotFound
	}

	if s.cfg.MembersLimit > 0 && !room.HasMember(userId) && len(room.Members) >= s.cfg.MembersLimit {
		s.mu.Unlock()
		return ConnectResponse{}, ErrRoomFull
	}

	if err := room.AddMember(userId, params.Nickname); err != nil {
		s.mu.Unlock()
		return ConnectResponse{}, err
	}

	if err := s.connRepo.Add(params.Conn, room.Id, userId); err != nil {
		s.mu.Unlock()
		return ConnectResponse{}, fmt.Errorf("failed to add conn: %w", err)
	}

	room.Playback = room.Playback.Extrapolate(now)
	room.BumpRevision()

	snapshot := s.roomSnapshot(room, now)
	messages := make([]ChatMessage, 0, len(room.Messages))
	for _, msg := range room.Messages {
		messages = append(messages, chatMessageDTO(msg))
	}
	sender := domain.UserSender(userId, room.DisplayName(userId))
	conns := s.connRepo.GetConnsByRoomId(room.Id)

	// the welcome is written before the lock is released: every broadcast
	// collects its fanout list under the same lock, so nothing addressed to
	// this connection can be written ahead of it
	s.writeToConn(ctx, params.Conn, &Output{
		Type: "welcome",
		Payload: WelcomePayload{
			Room:     snapshot,
			Messages: messages,
		},
	})

	s.mu.Unlock()

	s.broadcast(ctx, conns, roomStateOutput(snapshot, ReasonJoin, sender, ""), params.Conn)

	s.logger.InfoContext(ctx, "member connected", "roomId", room.Id, "userId", userId)

	return ConnectResponse{RoomId: room.Id, UserId: userId}, nil
}

type ConnectWithTokenParams struct {
	Conn         connection.Conn
	ConnectToken string
}

// ConnectWithToken resolves a connect session minted by CreateJoinSession
// and admits the connection with the stored triple.
func (s *service) ConnectWithToken(ctx context.Context, params *ConnectWithTokenParams) (ConnectResponse, error) {
	sessionId, err := s.parseConnectToken(params.ConnectToken)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to parse connect token", "error", err)
		return ConnectResponse{}, ErrInvalidConnectToken
	}

	connectSession, err := s.sessionRepo.GetConnectSession(ctx, sessionId)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to get connect session", "error", err)
		return ConnectResponse{}, ErrInvalidConnectToken
	}

	return s.Connect(ctx, &ConnectParams{
		Conn:        params.Conn,
		RoomId:      connectSession.RoomId,
		UserId:      connectSession.UserId,
		Nickname:    connectSession.Nickname,
		InviteToken: connectSession.InviteToken,
	})
}

type DisconnectParams struct {
	Conn connection.Conn
}

// Disconnect drops the connection. The user leaves the room only when this
// was their last open connection; other tabs keep the membership alive.
func (s *service) Disconnect(ctx context.Context, params *DisconnectParams) error {
	now := s.now()

	s.mu.Lock()

	roomId, userId, remaining, err := s.connRepo.RemoveByConn(params.Conn)
	if err != nil {
		s.mu.Unlock()
		return nil
	}

	if remaining > 0 {
		s.mu.Unlock()
		return nil
	}

	room, err := s.roomRepo.Get(roomId)
	if err != nil {
		s.mu.Unlock()
		return nil
	}

	displayName := room.DisplayName(userId)
	if !room.RemoveMember(userId) {
		s.mu.Unlock()
		return nil
	}

	s.cancelBurst(roomId, userId)

	room.Playback = room.Playback.Extrapolate(now)
	room.BumpRevision()

	snapshot := s.roomSnapshot(room, now)
	sender := domain.UserSender(userId, displayName)
	conns := s.connRepo.GetConnsByRoomId(roomId)

	s.mu.Unlock()

	s.broadcast(ctx, conns, roomStateOutput(snapshot, ReasonLeave, sender, ""), nil)

	s.logger.InfoContext(ctx, "member left", "roomId", roomId, "userId", userId)

	return nil
}

// checkAdmission runs the connect preconditions. Callers hold s.mu.
func (s *service) checkAdmission(roomId, userId, inviteToken string) error {
	if userId == "" {
		return ErrMissingUserId
	}

	room, err := s.roomRepo.Get(roomId)
	if err != nil {
		return ErrRoomNotFound
	}

	if inviteToken != room.InviteToken {
		return ErrInvalidInviteToken
	}

	return nil
}
