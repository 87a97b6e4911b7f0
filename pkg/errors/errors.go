// Package errors 提供房間伺服器的應用程式錯誤
package errors

import (
	"errors"
	"fmt"
)

// 定義錯誤碼（同時作為協議中 error 訊息的 code 欄位）
const (
	// ErrCodeRoomNotFound 房間不存在
	ErrCodeRoomNotFound = "ROOM_NOT_FOUND"
	// ErrCodeAlreadyStarted 遊戲已開始或已結束，不可加入
	ErrCodeAlreadyStarted = "ALREADY_STARTED"
	// ErrCodeNotHost 非房主操作
	ErrCodeNotHost = "NOT_HOST"
	// ErrCodeInsufficientPlayers 玩家人數不足
	ErrCodeInsufficientPlayers = "INSUFFICIENT_PLAYERS"
	// ErrCodeInvalidState 當前狀態不允許此操作
	ErrCodeInvalidState = "INVALID_STATE"
	// ErrCodeForbidden 連線未綁定到訊息指定的房間
	ErrCodeForbidden = "FORBIDDEN"
	// ErrCodeMalformedMessage 無法解析的訊息
	ErrCodeMalformedMessage = "MALFORMED_MESSAGE"
	// ErrCodeRateLimited 訊息頻率超限
	ErrCodeRateLimited = "RATE_LIMITED"
	// ErrCodeRoomLimitReached 房間數量已達上限
	ErrCodeRoomLimitReached = "ROOM_LIMIT_REACHED"
	// ErrCodeInternal 內部錯誤
	ErrCodeInternal = "INTERNAL_ERROR"
)

// AppError 應用程式錯誤
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

// Error 實現 error 介面
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 實現 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 實現 errors.Is（以錯誤碼比對）
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New 創建新的應用程式錯誤
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包裝錯誤
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails 返回附帶詳細資訊的副本
//
// 預定義錯誤是共享的，不能原地修改。
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// 預定義錯誤
var (
	ErrRoomNotFound        = New(ErrCodeRoomNotFound, "Room not found")
	ErrAlreadyStarted      = New(ErrCodeAlreadyStarted, "Game already started or finished")
	ErrNotHost             = New(ErrCodeNotHost, "Only host can start the game")
	ErrInsufficientPlayers = New(ErrCodeInsufficientPlayers, "At least 2 players are required")
	ErrInvalidState        = New(ErrCodeInvalidState, "Operation not allowed in current state")
	ErrForbidden           = New(ErrCodeForbidden, "Not a member of this room")
	ErrMalformedMessage    = New(ErrCodeMalformedMessage, "Invalid message format")
	ErrRateLimited         = New(ErrCodeRateLimited, "Too many messages")
	ErrRoomLimitReached    = New(ErrCodeRoomLimitReached, "No room codes available")
	ErrInternal            = New(ErrCodeInternal, "Internal server error")
)

// CodeOf 取出錯誤碼，非 AppError 一律視為內部錯誤
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// MessageOf 取出可回傳給客戶端的訊息
//
// 非 AppError 不外洩原始錯誤內容。
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Details != "" {
			return appErr.Message + ": " + appErr.Details
		}
		return appErr.Message
	}
	return ErrInternal.Message
}

func hasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsRoomNotFound 檢查是否為房間不存在錯誤
func IsRoomNotFound(err error) bool { return hasCode(err, ErrCodeRoomNotFound) }

// IsAlreadyStarted 檢查是否為遊戲已開始錯誤
func IsAlreadyStarted(err error) bool { return hasCode(err, ErrCodeAlreadyStarted) }

// IsNotHost 檢查是否為非房主錯誤
func IsNotHost(err error) bool { return hasCode(err, ErrCodeNotHost) }

// IsInsufficientPlayers 檢查是否為人數不足錯誤
func IsInsufficientPlayers(err error) bool { return hasCode(err, ErrCodeInsufficientPlayers) }

// IsInvalidState 檢查是否為狀態錯誤
func IsInvalidState(err error) bool { return hasCode(err, ErrCodeInvalidState) }

// IsForbidden 檢查是否為未綁定房間錯誤
func IsForbidden(err error) bool { return hasCode(err, ErrCodeForbidden) }

// IsMalformedMessage 檢查是否為訊息格式錯誤
func IsMalformedMessage(err error) bool { return hasCode(err, ErrCodeMalformedMessage) }
