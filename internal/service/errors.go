package service

import "errors"

// 业务层通用错误，handler 依据错误类型映射到合适的 HTTP 状态码或事件。
var (
	ErrEmailTaken         = errors.New("email taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRoomNotFound       = errors.New("room not found")
	ErrNotRoomCreator     = errors.New("only room creator can delete the room")
	ErrEmptyContent       = errors.New("empty message content")
	ErrContentTooLong     = errors.New("message content too long")
)
