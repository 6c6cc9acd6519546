package room

import "context"

type PostChatMessageParams struct {
	RoomId           string
	UserId           string
	Text             string
	ReplyToMessageId *string
}

type PostChatMessageResponse struct {
	Message  ChatMessage
	Revision int64
}

// PostChatMessage appends to the room's bounded chat log and broadcasts to
// every connection, the author included, who needs the assigned id.
func (s *service) PostChatMessage(ctx context.Context, params *PostChatMessageParams) (PostChatMessageResponse, error) {
	s.mu.Lock()

	room, err := s.roomRepo.Get(params.RoomId)
	if err != nil {
		s.mu.Unlock()
		return PostChatMessageResponse{}, ErrRoomNotFound
	}

	msg, err := room.PostMessage(params.UserId, params.Text, params.ReplyToMessageId, s.now(), s.cfg.ChatHistoryLimit)
	if err != nil {
		s.mu.Unlock()
		return PostChatMessageResponse{}, err
	}

	revision := room.BumpRevision()

	dto := chatMessageDTO(msg)
	conns := s.connRepo.GetConnsByRoomId(room.Id)

	s.mu.Unlock()

	s.broadcast(ctx, conns, &Output{
		Type: "chat_message",
		Payload: ChatMessagePayload{
			Message:  dto,
			Revision: revision,
		},
	}, nil)

	return PostChatMessageResponse{
		Message:  dto,
		Revision: revision,
	}, nil
}
