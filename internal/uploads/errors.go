package uploads

import (
	"errors"
)

var (
	ErrRoomIDRequired      = errors.New("room_id is required")
	ErrContentTypeRequired = errors.New("content_type is required")
	ErrRoomForbidden       = errors.New("room access denied")
)
